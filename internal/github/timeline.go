package github

import (
	"context"
	"fmt"
	"time"
)

// Timeline is the span of a repository's commit history.
type Timeline struct {
	First time.Time
	Last  time.Time
}

// ReadTimeline finds the oldest and newest commit timestamps using two
// requests at most: page 1 with one commit per page gives the newest, and
// the last page reported by the pagination links gives the oldest.
func ReadTimeline(ctx context.Context, c Client, owner, repo string) (*Timeline, error) {
	newest, err := c.Commits(ctx, owner, repo, 1, 1)
	if err != nil {
		return nil, err
	}
	last, err := commitDate(newest)
	if err != nil {
		return nil, err
	}

	first := last
	if newest.LastPage > 1 {
		oldest, err := c.Commits(ctx, owner, repo, newest.LastPage, 1)
		if err != nil {
			return nil, err
		}
		if first, err = commitDate(oldest); err != nil {
			return nil, err
		}
	}
	return &Timeline{First: first, Last: last}, nil
}

func commitDate(p *CommitPage) (time.Time, error) {
	if p == nil || len(p.Commits) == 0 {
		return time.Time{}, fmt.Errorf("empty commit page: %w", ErrNoCommits)
	}
	d := p.Commits[0].Date
	if d.IsZero() {
		return time.Time{}, fmt.Errorf("commit %s has no timestamp: %w", p.Commits[0].SHA, ErrNoCommits)
	}
	return d, nil
}
