package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/models"
)

// validateRepository parses the repository URL, confirms the repository is
// public, and attaches its code pack. A URL that is not a github.com URL is
// rejected before any network call.
func (p *Pipeline) validateRepository(ctx context.Context, st RunState) (RunState, error) {
	log := st.logger("repository")

	owner, name, err := github.ParseRepoURL(st.Project.RepoURL)
	if err != nil {
		log.Info("invalid repository url", zap.String("repo_url", st.Project.RepoURL), zap.Error(err))
		return p.fail(ctx, st, models.ProjectStatusGitHubInaccessible, msgInvalidURL)
	}

	repo, err := p.github.Repository(ctx, owner, name)
	if errors.Is(err, github.ErrInaccessible) {
		return p.fail(ctx, st, models.ProjectStatusGitHubInaccessible, msgInaccessible)
	}
	if err != nil {
		log.Warn("repository lookup failed", zap.Error(err))
		return p.fail(ctx, st, models.ProjectStatusErrored, "Repository lookup failed: "+err.Error())
	}

	pack, err := p.fetcher.CodePack(ctx, owner, name, repo.DefaultBranch)
	if err != nil {
		log.Warn("code pack fetch failed", zap.Error(err))
		return p.fail(ctx, st, models.ProjectStatusErrored, "Repository content fetch failed: "+err.Error())
	}
	if pack.Text == "" {
		return p.fail(ctx, st, models.ProjectStatusGitHubInaccessible, msgFetchFailed)
	}
	log.Info("code pack fetched", zap.Int("files", pack.Files), zap.Int("bytes", len(pack.Text)))

	st = st.withRepo(RepositoryInfo{
		Owner:         owner,
		Name:          name,
		DefaultBranch: repo.DefaultBranch,
		Content:       pack.Text,
		Files:         pack.Files,
	})
	p.archive(ctx, st)
	return st, nil
}

func (p *Pipeline) archive(ctx context.Context, st RunState) {
	if p.archiver == nil {
		return
	}
	log := st.logger("repository")
	loc, err := p.archiver.Archive(ctx, st.Project.ID, st.RunID, st.Repo.Content)
	if err != nil {
		log.Warn("code pack archive failed", zap.Error(err))
		return
	}
	log.Debug("code pack archived", zap.String("location", loc))
}
