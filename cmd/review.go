package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/archive"
	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/output"
	"github.com/hackreview/judge/internal/pipeline"
	"github.com/hackreview/judge/internal/store"
	"github.com/hackreview/judge/internal/worker"
)

var reviewPending bool

var reviewCmd = &cobra.Command{
	Use:   "review [project-id...]",
	Short: "Review projects now",
	Long: `Run the review pipeline in the foreground.

With project IDs, each project is reviewed regardless of its current status.
With --pending, one batch of pending projects is reviewed the way the
worker in 'judge serve' would.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !reviewPending {
			return fmt.Errorf("give at least one project ID or --pending")
		}
		return reviewRun(cmd.Context(), args)
	},
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewPending, "pending", false, "Review pending projects")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context, ids []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		for _, id := range ids {
			ui.DryRunMsg("Would review project %s", id)
		}
		if reviewPending {
			ui.DryRunMsg("Would review up to %d pending projects", viper.GetInt("worker.batch_size"))
		}
		return nil
	}

	p, err := newPipeline(ctx, s)
	if err != nil {
		return err
	}
	w := worker.New(s, p, worker.DefaultConfig(), logger)

	for _, id := range ids {
		if err := w.RunProject(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				ui.Error("Project not found: %s", id)
				continue
			}
			return err
		}
		printVerdictLine(ctx, s, id)
	}

	if reviewPending {
		n, err := w.Poll(ctx)
		if err != nil {
			return err
		}
		ui.Info("Reviewed %d pending project(s)", n)
	}
	return nil
}

func printVerdictLine(ctx context.Context, s store.Store, id string) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return
	}
	msg := ""
	if p.StatusMessage != nil {
		msg = " - " + *p.StatusMessage
	}
	fmt.Fprintf(ui.Out, "%s  %s%s\n", output.Cyan(p.Name), output.StatusColor(string(p.Status)), msg)
}

// newPipeline wires the review pipeline from config.
func newPipeline(ctx context.Context, s store.Store) (*pipeline.Pipeline, error) {
	gh, err := github.NewRESTClient(viper.GetString("github.token"), viper.GetString("github.base_url"))
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	if viper.GetString("github.token") == "" {
		logger.Warn("github.token is not set; unauthenticated requests are heavily rate limited")
	}

	fetcher := github.NewFetcher(gh, github.FetchOptions{
		Concurrency:  viper.GetInt("fetch.concurrency"),
		MaxFileBytes: viper.GetInt("fetch.max_file_bytes"),
		Exclude:      viper.GetStringSlice("fetch.exclude"),
	}, logger)

	gen, err := newGenerator(ctx)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Store:     s,
		GitHub:    gh,
		Fetcher:   fetcher,
		Generator: gen,
		Logger:    logger,
	}
	if viper.GetBool("archive.enabled") {
		a, err := archive.New(ctx, archive.Config{
			Bucket:          viper.GetString("archive.bucket"),
			Endpoint:        viper.GetString("archive.endpoint"),
			Region:          viper.GetString("archive.region"),
			AccessKeyID:     viper.GetString("archive.access_key_id"),
			SecretAccessKey: viper.GetString("archive.secret_access_key"),
			Prefix:          viper.GetString("archive.prefix"),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		deps.Archiver = a
		logger.Debug("code pack archive enabled", zap.String("bucket", viper.GetString("archive.bucket")))
	}

	return pipeline.New(deps, pipeline.DefaultConfig()), nil
}
