package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/models"
)

// RepositoryInfo identifies the repository under review and, once fetched,
// carries its code pack. It lives only for one run.
type RepositoryInfo struct {
	Owner         string
	Name          string
	DefaultBranch string
	Content       string
	Files         int
}

// RunState is the working state of one run. Stages take it by value and
// return an updated copy; Project always mirrors what has been persisted.
type RunState struct {
	RunID   string
	Project models.Project
	Repo    *RepositoryInfo

	log *zap.Logger
}

func (s RunState) logger(stage string) *zap.Logger {
	if s.log == nil {
		return zap.NewNop()
	}
	return s.log.With(zap.String("stage", stage))
}

// HasContent reports whether a non-empty code pack is attached.
func (s RunState) HasContent() bool {
	return s.Repo != nil && s.Repo.Content != ""
}

func (s RunState) withRepo(r RepositoryInfo) RunState {
	s.Repo = &r
	return s
}

// Verdict is a terminal outcome that has already been persisted on the
// project. Stages return it as an error to stop the run.
type Verdict struct {
	Status  models.ProjectStatus
	Message string
}

func (v *Verdict) Error() string {
	return fmt.Sprintf("%s: %s", v.Status, v.Message)
}

// Stage messages persisted as status_message.
const (
	msgInvalidURL       = "Invalid GitHub repository URL"
	msgInaccessible     = "Repository is private or does not exist"
	msgFetchFailed      = "Failed to fetch repository content"
	msgNoTimestamps     = "Could not read commit timestamps"
	msgOutsideWindow    = "Commits fall outside event window"
	msgPrizeNotFound    = "Prize category configuration not found"
	msgPrizeMissingResp = "No verdict returned for this prize"
)
