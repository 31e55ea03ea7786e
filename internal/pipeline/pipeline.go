// Package pipeline runs a hackathon project through the review stages:
// repository validation, timeline validation, code review and prize review.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/llm"
	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/store"
)

// Generator produces a validated structured value; *llm.Structured implements it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request, out any) error
}

// Archiver stores a copy of a run's code pack. Failures never affect the verdict.
type Archiver interface {
	Archive(ctx context.Context, projectID, runID, content string) (string, error)
}

// Config holds pipeline tuning.
type Config struct {
	// PrizeBatchSize is how many prize slugs share one prize review call.
	PrizeBatchSize int
}

// DefaultConfig returns the default pipeline config, reading from viper when available.
func DefaultConfig() Config {
	batch := viper.GetInt("review.prize_batch_size")
	if batch <= 0 {
		batch = 1
	}
	return Config{PrizeBatchSize: batch}
}

// Deps are the collaborators a Pipeline needs. Archiver and Logger are optional.
type Deps struct {
	Store     store.Store
	GitHub    github.Client
	Fetcher   *github.Fetcher
	Generator Generator
	Archiver  Archiver
	Logger    *zap.Logger
}

// Pipeline reviews one project per Run call. It holds no per-run state, so a
// single Pipeline may run different projects concurrently.
type Pipeline struct {
	store     store.Store
	github    github.Client
	fetcher   *github.Fetcher
	generator Generator
	archiver  Archiver
	cfg       Config
	logger    *zap.Logger
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.PrizeBatchSize <= 0 {
		cfg.PrizeBatchSize = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = github.NewFetcher(deps.GitHub, github.DefaultFetchOptions(), logger)
	}
	return &Pipeline{
		store:     deps.Store,
		github:    deps.GitHub,
		fetcher:   fetcher,
		generator: deps.Generator,
		archiver:  deps.Archiver,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run reviews a project end to end. It returns nil once a terminal status
// (processed, invalid:* or errored) has been persisted. A non-nil error means
// the project could not be loaded, a store write failed, or ctx was cancelled;
// in those cases the project may be left at a processing:* status until the
// next run resets it.
func (p *Pipeline) Run(ctx context.Context, projectID string) error {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("project_id", projectID), zap.String("run_id", runID))

	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		log.Error("load project failed", zap.Error(err))
		return fmt.Errorf("load project %s: %w", projectID, err)
	}

	st, err := p.markProcessing(ctx, RunState{RunID: runID, Project: *project, log: log})
	if err != nil {
		log.Error("mark processing failed", zap.Error(err))
		return err
	}
	log.Info("review started", zap.Int("prizes", len(st.Project.PrizeSlugs)))

	gating := []struct {
		name string
		run  func(context.Context, RunState) (RunState, error)
	}{
		{"repository", p.validateRepository},
		{"timeline", p.validateTimeline},
		{"code_review", p.reviewCode},
	}
	for _, stage := range gating {
		st, err = stage.run(ctx, st)
		if done, err := p.finish(log.With(zap.String("stage", stage.name)), err); done {
			return err
		}
	}

	st, err = p.update(ctx, st, models.ProjectUpdate{Status: ptr(models.ProjectStatusPrizeReview)})
	if err != nil {
		log.Error("status update failed", zap.Error(err))
		return err
	}

	for _, batch := range chunk(st.Project.PrizeSlugs, p.cfg.PrizeBatchSize) {
		st, err = p.reviewPrizes(ctx, st, batch)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("review cancelled", zap.Strings("slugs", batch), zap.Error(ctxErr))
			return ctxErr
		}
		var bf *batchFailure
		if !errors.As(err, &bf) {
			log.Error("prize review write failed", zap.Strings("slugs", batch), zap.Error(err))
			return err
		}
		log.Warn("prize batch failed", zap.String("stage", "prize_review"), zap.Strings("slugs", batch), zap.Error(err))
	}

	_, err = p.update(ctx, st, models.ProjectUpdate{
		Status:        ptr(models.ProjectStatusProcessed),
		StatusMessage: ptr(""),
	})
	if err != nil {
		log.Error("status update failed", zap.Error(err))
		return err
	}
	log.Info("review processed")
	return nil
}

// finish classifies a gating stage result. done is true when the run must stop;
// the returned error is nil for a persisted verdict.
func (p *Pipeline) finish(log *zap.Logger, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	var v *Verdict
	if errors.As(err, &v) {
		log.Info("review stopped", zap.String("status", string(v.Status)), zap.String("message", v.Message))
		return true, nil
	}
	log.Error("stage failed", zap.Error(err))
	return true, err
}

// markProcessing resets every AI-derived field and marks each opted-in prize
// processing, all in one write.
func (p *Pipeline) markProcessing(ctx context.Context, st RunState) (RunState, error) {
	results := make(map[string]models.PrizeReviewResult, len(st.Project.PrizeSlugs))
	for _, slug := range st.Project.PrizeSlugs {
		results[slug] = models.PrizeReviewResult{Status: models.PrizeResultProcessing}
	}
	return p.update(ctx, st, models.ProjectUpdate{
		Status:                     ptr(models.ProjectStatusCodeReview),
		StatusMessage:              ptr(""),
		DescriptionAccuracyLevel:   ptr(""),
		DescriptionAccuracyMessage: ptr(""),
		TechnicalComplexity:        ptr(""),
		TechnicalComplexityMessage: ptr(""),
		TechStack:                  ptr([]string{}),
		PrizeResults:               results,
	})
}

// update persists u and mirrors it into the returned state.
func (p *Pipeline) update(ctx context.Context, st RunState, u models.ProjectUpdate) (RunState, error) {
	if err := p.store.UpdateProject(ctx, st.Project.ID, u); err != nil {
		return st, fmt.Errorf("update project %s: %w", st.Project.ID, err)
	}
	st.Project = u.Apply(st.Project)
	return st, nil
}

// fail persists a terminal status and returns it as a *Verdict. When ctx is
// already cancelled nothing is written and ctx's error is returned instead.
func (p *Pipeline) fail(ctx context.Context, st RunState, status models.ProjectStatus, msg string) (RunState, error) {
	if err := ctx.Err(); err != nil {
		return st, err
	}
	st, err := p.update(ctx, st, models.ProjectUpdate{Status: &status, StatusMessage: &msg})
	if err != nil {
		return st, err
	}
	return st, &Verdict{Status: status, Message: msg}
}

// mergePrizes merges results into the stored prize map and mirrors the
// merged map into the returned state.
func (p *Pipeline) mergePrizes(ctx context.Context, st RunState, results map[string]models.PrizeReviewResult) (RunState, error) {
	merged, err := p.store.MergePrizeResults(ctx, st.Project.ID, results)
	if err != nil {
		return st, fmt.Errorf("merge prize results for %s: %w", st.Project.ID, err)
	}
	st.Project = st.Project.Clone()
	st.Project.PrizeResults = merged
	return st, nil
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
