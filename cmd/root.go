package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hackreview/judge/internal/output"
	"github.com/hackreview/judge/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *zap.Logger
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "judge",
	Short: "Hackathon judge - automated review of submitted projects",
	Long: `judge reviews hackathon submissions. For each project it checks the
GitHub repository, validates the commit timeline against the event window,
grades the code with an LLM and decides prize eligibility.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(ui.Out, "judge %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/judge/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("JUDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_driver", "sqlite")
	viper.SetDefault("db_path", filepath.Join(dir, "judge.db"))
	viper.SetDefault("database_url", "")

	viper.SetDefault("github.token", "")
	viper.SetDefault("github.base_url", "")

	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.max_attempts", 3)
	viper.SetDefault("llm.max_tokens", 8192)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")

	viper.SetDefault("fetch.concurrency", 4)
	viper.SetDefault("fetch.max_file_bytes", 200000)
	viper.SetDefault("fetch.exclude", []string{})

	viper.SetDefault("review.prize_batch_size", 1)

	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.bucket", "")
	viper.SetDefault("archive.endpoint", "")
	viper.SetDefault("archive.region", "auto")
	viper.SetDefault("archive.access_key_id", "")
	viper.SetDefault("archive.secret_access_key", "")
	viper.SetDefault("archive.prefix", "codepacks")

	viper.SetDefault("worker.interval", "30s")
	viper.SetDefault("worker.concurrency", 2)
	viper.SetDefault("worker.batch_size", 20)

	viper.SetDefault("port", 8080)
	viper.SetDefault("log.level", "info")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	l, err := newLogger(viper.GetString("log.level"), verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger = l

	// The store opens lazily so config/version commands run without a db.
}

// newLogger builds a production JSON logger on stderr. verbose forces debug.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return l, nil
}

// commandContext returns the context of the running command, cancelled on
// SIGINT/SIGTERM.
func commandContext() context.Context {
	if ctx := rootCmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	var (
		s   store.Store
		err error
	)
	switch driver := viper.GetString("db_driver"); driver {
	case "sqlite", "":
		s, err = store.NewSQLiteStore(viper.GetString("db_path"))
	case "postgres":
		dsn := viper.GetString("database_url")
		if dsn == "" {
			return nil, fmt.Errorf("database_url is required when db_driver is postgres")
		}
		s, err = store.NewGormStore(dsn)
	default:
		return nil, fmt.Errorf("unknown db_driver %q (want sqlite or postgres)", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(commandContext()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
