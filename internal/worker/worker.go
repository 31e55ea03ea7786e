// Package worker drains the review queue: it polls for pending projects on
// a schedule and runs the pipeline for each with bounded concurrency.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/store"
)

// ErrInFlight is returned when a project is already being reviewed by this process.
var ErrInFlight = errors.New("review already in flight")

// Runner reviews one project; *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, projectID string) error
}

// Config holds worker settings.
type Config struct {
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// DefaultConfig reads worker.* settings from viper.
func DefaultConfig() Config {
	cfg := Config{
		Interval:    viper.GetDuration("worker.interval"),
		Concurrency: viper.GetInt("worker.concurrency"),
		BatchSize:   viper.GetInt("worker.batch_size"),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	return c
}

// Worker runs queued reviews. Runs of the same project never overlap within
// one process; nothing prevents another process from picking it up.
type Worker struct {
	store  store.Store
	runner Runner
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	sched    gocron.Scheduler
}

// New creates a Worker.
func New(st store.Store, runner Runner, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:    st,
		runner:   runner,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

func (w *Worker) acquire(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inflight[id]; ok {
		return false
	}
	w.inflight[id] = struct{}{}
	return true
}

func (w *Worker) release(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, id)
}

// InFlight reports whether id is currently being reviewed.
func (w *Worker) InFlight(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inflight[id]
	return ok
}

// RunProject reviews one project now, unless it is already in flight.
func (w *Worker) RunProject(ctx context.Context, id string) error {
	if !w.acquire(id) {
		return fmt.Errorf("project %s: %w", id, ErrInFlight)
	}
	defer w.release(id)
	return w.runner.Run(ctx, id)
}

// Poll reviews up to BatchSize pending projects and returns how many were
// started. Individual run errors are logged, not returned.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	projects, err := w.store.ListProjects(ctx, store.ProjectListFilter{
		Status: models.ProjectStatusPending,
		Limit:  w.cfg.BatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list pending projects: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	started := 0
	for _, p := range projects {
		if !w.acquire(p.ID) {
			continue
		}
		started++
		id := p.ID
		g.Go(func() error {
			defer w.release(id)
			if err := w.runner.Run(gctx, id); err != nil {
				w.logger.Warn("review run failed", zap.String("project_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return started, ctx.Err()
}

// Start schedules Poll every Interval until ctx is done or Stop is called.
// Overlapping polls are skipped.
func (w *Worker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.cfg.Interval),
		gocron.NewTask(func(ctx context.Context) {
			n, err := w.Poll(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("poll failed", zap.Error(err))
				return
			}
			if n > 0 {
				w.logger.Info("reviews completed", zap.Int("count", n))
			}
		}),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("review-queue"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule poll: %w", err)
	}

	w.mu.Lock()
	w.sched = sched
	w.mu.Unlock()

	sched.Start()
	w.logger.Info("worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("concurrency", w.cfg.Concurrency))
	return nil
}

// Stop shuts the scheduler down, waiting for a running poll to return.
func (w *Worker) Stop() error {
	w.mu.Lock()
	sched := w.sched
	w.sched = nil
	w.mu.Unlock()
	if sched == nil {
		return nil
	}
	return sched.Shutdown()
}
