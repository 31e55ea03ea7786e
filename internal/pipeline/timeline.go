package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/models"
)

// validateTimeline checks that the first and last commits fall inside the
// event's [start, end] window. Events without both bounds accept any history.
func (p *Pipeline) validateTimeline(ctx context.Context, st RunState) (RunState, error) {
	log := st.logger("timeline")

	if !st.HasContent() {
		return p.fail(ctx, st, models.ProjectStatusGitHubInaccessible, msgFetchFailed)
	}

	tl, err := github.ReadTimeline(ctx, p.github, st.Repo.Owner, st.Repo.Name)
	if errors.Is(err, github.ErrNoCommits) {
		return p.fail(ctx, st, models.ProjectStatusGitHubInaccessible, msgNoTimestamps)
	}
	if err != nil {
		log.Warn("commit history fetch failed", zap.Error(err))
		return p.fail(ctx, st, models.ProjectStatusErrored, "Commit history fetch failed: "+err.Error())
	}

	ev := st.Project.Event
	if !ev.HasWindow() {
		return st, nil
	}
	if !ev.Contains(tl.First) || !ev.Contains(tl.Last) {
		log.Info("commits outside event window",
			zap.Time("first_commit", tl.First),
			zap.Time("last_commit", tl.Last),
			zap.Time("starts_at", *ev.StartsAt),
			zap.Time("ends_at", *ev.EndsAt))
		return p.fail(ctx, st, models.ProjectStatusRuleViolation, msgOutsideWindow)
	}
	log.Debug("timeline within window", zap.Duration("span", tl.Last.Sub(tl.First).Round(time.Minute)))
	return st, nil
}
