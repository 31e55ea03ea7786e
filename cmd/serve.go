package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/api"
	"github.com/hackreview/judge/internal/daemon"
	"github.com/hackreview/judge/internal/worker"
)

var serveNoWorker bool

const (
	shutdownTimeout = 10 * time.Second
	stopTimeout     = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and review worker",
	Long: `Run the REST API and the background review worker in the foreground.
By default it listens on port 8080. Use --port to change it.

Use 'judge serve start' to run it in the background instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "Serve the API only; do not review pending projects")

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "judge-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "judge-serve.log")
}

func serveRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return fmt.Errorf("judge serve: %w", err)
	}
	defer func() { _ = pf.Release() }()

	var inflight api.InFlightChecker
	if !serveNoWorker {
		p, err := newPipeline(ctx, s)
		if err != nil {
			return err
		}
		w := worker.New(s, p, worker.DefaultConfig(), logger)
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := w.Stop(); err != nil {
				logger.Warn("worker shutdown", zap.Error(err))
			}
		}()
		inflight = w
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(s, inflight, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("api listening", zap.String("addr", addr), zap.Bool("worker", !serveNoWorker))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("judge serve is already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("port"))}
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if serveNoWorker {
		args = append(args, "--no-worker")
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %v (log: %s)", exe, args, serveLogPath())
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := pf.WritePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("judge serve started (pid %d, port %d)", child.Process.Pid, viper.GetInt("port"))
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		if pid != 0 {
			_ = pf.Remove()
		}
		return fmt.Errorf("judge serve is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop judge serve (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	if !pf.WaitExit(context.Background(), stopTimeout, 200*time.Millisecond) {
		ui.Warning("pid %d did not exit after %s; killing", pid, stopTimeout)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill pid %d: %w", pid, err)
		}
	}
	_ = pf.Remove()
	ui.Success("judge serve stopped (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("judge serve is not running")
		return nil
	}
	ui.Success("judge serve is running (pid %d)", pid)
	ui.Info("Logs: %s", serveLogPath())
	return nil
}
