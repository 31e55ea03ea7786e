package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/llm"
	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/store"
)

var (
	errBoom = errors.New("boom")

	eventStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	eventEnd   = time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)
)

const codeReviewJSON = `{"description_accuracy_level":"high","description_accuracy_message":"Matches.",` +
	`"technical_complexity":"intermediate","technical_complexity_message":"Solid.","tech_stack":["Go","Postgres"]}`

// fakeGitHub serves a single repository. calls counts every request.
type fakeGitHub struct {
	repoErr error
	treeErr error
	tree    []github.TreeEntry
	files   map[string]string
	first   time.Time
	last    time.Time
	commErr error

	calls atomic.Int32
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		tree: []github.TreeEntry{
			{Path: "main.go", Type: "blob", Size: 40},
			{Path: "README.md", Type: "blob", Size: 20},
		},
		files: map[string]string{
			"main.go":   "package main\n\nimport \"github.com/jackc/pgx\"\n",
			"README.md": "# Demo\n",
		},
		first: eventStart.Add(time.Hour),
		last:  eventEnd.Add(-time.Hour),
	}
}

func (f *fakeGitHub) Repository(_ context.Context, owner, repo string) (*github.Repository, error) {
	f.calls.Add(1)
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return &github.Repository{Owner: owner, Name: repo, DefaultBranch: "main"}, nil
}

func (f *fakeGitHub) Tree(context.Context, string, string, string) ([]github.TreeEntry, error) {
	f.calls.Add(1)
	return f.tree, f.treeErr
}

func (f *fakeGitHub) FileContent(_ context.Context, _, _, path, _ string) (string, error) {
	f.calls.Add(1)
	return f.files[path], nil
}

func (f *fakeGitHub) Commits(_ context.Context, _, _ string, page, _ int) (*github.CommitPage, error) {
	f.calls.Add(1)
	if f.commErr != nil {
		return nil, f.commErr
	}
	if page == 1 {
		return &github.CommitPage{Commits: []github.Commit{{SHA: "new", Date: f.last}}, LastPage: 12}, nil
	}
	return &github.CommitPage{Commits: []github.Commit{{SHA: "old", Date: f.first}}, LastPage: 12}, nil
}

// fakeGenerator answers by schema name. prize receives the slugs of one batch.
type fakeGenerator struct {
	mu       sync.Mutex
	review   string
	reviewE  error
	prize    func(slugs []string) (string, error)
	onReview func()
	batches  [][]string
	calls    []string
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req.Schema.Name)

	switch req.Schema.Name {
	case "code_review":
		if g.onReview != nil {
			g.onReview()
		}
		if g.reviewE != nil {
			return g.reviewE
		}
		return json.Unmarshal([]byte(g.review), out)
	case "prize_review":
		var slugs []string
		for _, s := range req.Schema.JSON["required"].([]any) {
			slugs = append(slugs, s.(string))
		}
		g.batches = append(g.batches, slugs)
		if g.prize == nil {
			return errors.New("unexpected prize review")
		}
		data, err := g.prize(slugs)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(data), out)
	}
	return fmt.Errorf("unknown schema %s", req.Schema.Name)
}

func (g *fakeGenerator) prizeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.batches)
}

func allValid(slugs []string) (string, error) {
	m := make(map[string]PrizeVerdict, len(slugs))
	for _, s := range slugs {
		m[s] = PrizeVerdict{Status: "valid", Message: "Qualifies."}
	}
	data, err := json.Marshal(m)
	return string(data), err
}

type harness struct {
	store *store.SQLiteStore
	gh    *fakeGitHub
	gen   *fakeGenerator
	event *models.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "judge.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	start, end := eventStart, eventEnd
	ev := &models.Event{Name: "spring-jam", StartsAt: &start, EndsAt: &end}
	require.NoError(t, s.CreateEvent(context.Background(), ev))

	return &harness{
		store: s,
		gh:    newFakeGitHub(),
		gen:   &fakeGenerator{review: codeReviewJSON, prize: allValid},
		event: ev,
	}
}

func (h *harness) pipeline(t *testing.T, batch int) *Pipeline {
	return New(Deps{
		Store:     h.store,
		GitHub:    h.gh,
		Generator: h.gen,
		Logger:    zaptest.NewLogger(t),
	}, Config{PrizeBatchSize: batch})
}

func (h *harness) project(t *testing.T, repoURL string, slugs ...string) *models.Project {
	t.Helper()
	p := &models.Project{
		EventID:     h.event.ID,
		Name:        "Demo",
		RepoURL:     repoURL,
		Description: "A Go service backed by Postgres.",
		PrizeSlugs:  slugs,
	}
	require.NoError(t, h.store.CreateProject(context.Background(), p))
	return p
}

func (h *harness) prize(t *testing.T, slug, name string, keywords ...string) {
	t.Helper()
	require.NoError(t, h.store.UpsertPrizeCategory(context.Background(), &models.PrizeCategory{
		Slug: slug, Name: name, Prompt: "Judge " + name + ".", Keywords: keywords,
	}))
}

func (h *harness) load(t *testing.T, id string) *models.Project {
	t.Helper()
	p, err := h.store.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p
}

func msg(p *models.Project) string {
	if p.StatusMessage == nil {
		return ""
	}
	return *p.StatusMessage
}

func TestRun_Processed(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "best-db", "Best Database Use", "postgres", "pgx")
	h.prize(t, "open", "Open Category")
	p := h.project(t, "https://github.com/acme/demo", "best-db", "open")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Nil(t, got.StatusMessage)
	assert.Equal(t, "high", got.DescriptionAccuracyLevel)
	assert.Equal(t, "Matches.", got.DescriptionAccuracyMessage)
	assert.Equal(t, "intermediate", got.TechnicalComplexity)
	assert.Equal(t, "Solid.", got.TechnicalComplexityMessage)
	assert.Equal(t, []string{"Go", "Postgres"}, got.TechStack)
	assert.Equal(t, map[string]models.PrizeReviewResult{
		"best-db": {Status: models.PrizeResultValid, Message: "Qualifies."},
		"open":    {Status: models.PrizeResultValid, Message: "Qualifies."},
	}, got.PrizeResults)
	assert.Equal(t, [][]string{{"best-db"}, {"open"}}, h.gen.batches)
}

func TestRun_BadHostMakesNoNetworkCalls(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "open", "Open Category")
	p := h.project(t, "https://bad-host.example/x/y", "open")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusGitHubInaccessible, got.Status)
	assert.Equal(t, msgInvalidURL, msg(got))
	assert.Zero(t, h.gh.calls.Load())
	assert.Empty(t, h.gen.calls)
	assert.Equal(t, map[string]models.PrizeReviewResult{
		"open": {Status: models.PrizeResultProcessing},
	}, got.PrizeResults)
}

func TestRun_RepositoryInaccessible(t *testing.T) {
	h := newHarness(t)
	h.gh.repoErr = fmt.Errorf("get repo: %w", github.ErrInaccessible)
	p := h.project(t, "https://github.com/acme/private")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusGitHubInaccessible, got.Status)
	assert.Equal(t, msgInaccessible, msg(got))
}

func TestRun_RepositoryLookupErrored(t *testing.T) {
	h := newHarness(t)
	h.gh.repoErr = errBoom
	p := h.project(t, "https://github.com/acme/demo")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusErrored, got.Status)
	assert.Contains(t, msg(got), "boom")
}

func TestRun_EmptyRepository(t *testing.T) {
	h := newHarness(t)
	h.gh.treeErr = github.ErrEmptyRepository
	p := h.project(t, "https://github.com/acme/empty")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusGitHubInaccessible, got.Status)
	assert.Equal(t, "Failed to fetch repository content", msg(got))
	assert.Empty(t, h.gen.calls)
}

func TestRun_TimelineWindow(t *testing.T) {
	tests := []struct {
		name   string
		first  time.Time
		last   time.Time
		status models.ProjectStatus
	}{
		{"inside", eventStart.Add(time.Minute), eventEnd.Add(-time.Minute), models.ProjectStatusProcessed},
		{"on the bounds", eventStart, eventEnd, models.ProjectStatusProcessed},
		{"first before start", eventStart.Add(-time.Second), eventEnd.Add(-time.Hour), models.ProjectStatusRuleViolation},
		{"last after end", eventStart.Add(time.Hour), eventEnd.Add(time.Second), models.ProjectStatusRuleViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gh.first, h.gh.last = tt.first, tt.last
			p := h.project(t, "https://github.com/acme/demo")

			require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

			got := h.load(t, p.ID)
			assert.Equal(t, tt.status, got.Status)
			if tt.status == models.ProjectStatusRuleViolation {
				assert.Equal(t, msgOutsideWindow, msg(got))
				assert.Empty(t, h.gen.calls)
			}
		})
	}
}

func TestRun_NoWindowAcceptsAnyHistory(t *testing.T) {
	h := newHarness(t)
	h.gh.first = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := &models.Event{Name: "open-ended"}
	require.NoError(t, h.store.CreateEvent(context.Background(), ev))
	h.event = ev
	p := h.project(t, "https://github.com/acme/demo")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))
	assert.Equal(t, models.ProjectStatusProcessed, h.load(t, p.ID).Status)
}

func TestRun_NoCommitTimestamps(t *testing.T) {
	h := newHarness(t)
	h.gh.commErr = fmt.Errorf("empty page: %w", github.ErrNoCommits)
	p := h.project(t, "https://github.com/acme/demo")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusGitHubInaccessible, got.Status)
	assert.Equal(t, msgNoTimestamps, msg(got))
}

func TestRun_CommitTransportErrored(t *testing.T) {
	h := newHarness(t)
	h.gh.commErr = errBoom
	p := h.project(t, "https://github.com/acme/demo")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))
	assert.Equal(t, models.ProjectStatusErrored, h.load(t, p.ID).Status)
}

func TestRun_CodeReviewFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.gen.reviewE = errBoom
	h.prize(t, "open", "Open Category")
	p := h.project(t, "https://github.com/acme/demo", "open")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusErrored, got.Status)
	assert.Equal(t, "Code review failed: boom", msg(got))
	assert.Zero(t, h.gen.prizeCalls())
	assert.Equal(t, models.PrizeResultProcessing, got.PrizeResults["open"].Status)
}

func TestRun_KeywordMissSkipsModel(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "best-ai", "Best AI Hack", "openai", "re:claude|gemini")
	p := h.project(t, "https://github.com/acme/demo", "best-ai")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Equal(t, models.PrizeReviewResult{
		Status:  models.PrizeResultInvalid,
		Message: "Keyword check failed for Best AI Hack",
	}, got.PrizeResults["best-ai"])
	assert.Equal(t, []string{"code_review"}, h.gen.calls)
}

func TestRun_KeywordHitInvokesModel(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "best-db", "Best Database Use", "PGX")
	p := h.project(t, "https://github.com/acme/demo", "best-db")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	assert.Equal(t, [][]string{{"best-db"}}, h.gen.batches)
	assert.Equal(t, models.PrizeResultValid, h.load(t, p.ID).PrizeResults["best-db"].Status)
}

func TestRun_MissingPrizeConfiguration(t *testing.T) {
	h := newHarness(t)
	p := h.project(t, "https://github.com/acme/demo", "ghost")

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Equal(t, models.PrizeReviewResult{Status: models.PrizeResultInvalid, Message: msgPrizeNotFound}, got.PrizeResults["ghost"])
	assert.Zero(t, h.gen.prizeCalls())
}

func TestRun_BatchFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	for _, slug := range []string{"a", "b", "c", "d"} {
		h.prize(t, slug, "Prize "+slug)
	}
	h.gen.prize = func(slugs []string) (string, error) {
		if slugs[0] == "a" {
			return "", errBoom
		}
		return allValid(slugs)
	}
	p := h.project(t, "https://github.com/acme/demo", "a", "b", "c", "d")

	require.NoError(t, h.pipeline(t, 3).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, h.gen.batches)
	for _, slug := range []string{"a", "b", "c"} {
		assert.Equal(t, models.PrizeReviewResult{Status: models.PrizeResultErrored, Message: "boom"}, got.PrizeResults[slug], slug)
	}
	assert.Equal(t, models.PrizeResultValid, got.PrizeResults["d"].Status)
}

// prizeLoadFailStore fails the first prize category lookup.
type prizeLoadFailStore struct {
	store.Store
	calls atomic.Int32
}

func (s *prizeLoadFailStore) GetPrizeCategories(ctx context.Context, slugs []string) ([]*models.PrizeCategory, error) {
	if s.calls.Add(1) == 1 {
		return nil, errBoom
	}
	return s.Store.GetPrizeCategories(ctx, slugs)
}

func TestRun_PrizeConfigLoadFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "a", "Prize A")
	h.prize(t, "b", "Prize B")
	p := h.project(t, "https://github.com/acme/demo", "a", "b")

	pl := New(Deps{
		Store:     &prizeLoadFailStore{Store: h.store},
		GitHub:    h.gh,
		Generator: h.gen,
		Logger:    zaptest.NewLogger(t),
	}, Config{PrizeBatchSize: 1})
	require.NoError(t, pl.Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Equal(t, models.PrizeResultErrored, got.PrizeResults["a"].Status)
	assert.Contains(t, got.PrizeResults["a"].Message, "load prize categories: boom")
	assert.Equal(t, models.PrizeResultValid, got.PrizeResults["b"].Status)
	assert.Equal(t, [][]string{{"b"}}, h.gen.batches)
}

func TestRun_MissingVerdictErrorsBatch(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "a", "Prize A")
	h.prize(t, "b", "Prize B")
	h.gen.prize = func([]string) (string, error) {
		return `{"a":{"status":"valid","message":"Yes."}}`, nil
	}
	p := h.project(t, "https://github.com/acme/demo", "a", "b")

	require.NoError(t, h.pipeline(t, 2).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Equal(t, models.PrizeResultErrored, got.PrizeResults["a"].Status)
	assert.Equal(t, models.PrizeResultErrored, got.PrizeResults["b"].Status)
	assert.Contains(t, got.PrizeResults["b"].Message, msgPrizeMissingResp)
}

func TestRun_ResetsStaleResults(t *testing.T) {
	h := newHarness(t)
	h.prize(t, "open", "Open Category")
	p := h.project(t, "https://github.com/acme/demo", "open")
	stale := "old failure"
	require.NoError(t, h.store.UpdateProject(context.Background(), p.ID, models.ProjectUpdate{
		Status:                     ptr(models.ProjectStatusErrored),
		StatusMessage:              &stale,
		DescriptionAccuracyLevel:   ptr("low"),
		DescriptionAccuracyMessage: ptr("stale"),
		TechnicalComplexity:        ptr("advanced"),
		TechnicalComplexityMessage: ptr("stale"),
		TechStack:                  ptr([]string{"COBOL"}),
		PrizeResults: map[string]models.PrizeReviewResult{
			"open":    {Status: models.PrizeResultValid, Message: "stale"},
			"retired": {Status: models.PrizeResultValid, Message: "stale"},
		},
	}))
	h.gen.reviewE = errBoom

	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusErrored, got.Status)
	assert.Equal(t, "Code review failed: boom", msg(got))
	assert.Empty(t, got.DescriptionAccuracyLevel)
	assert.Empty(t, got.DescriptionAccuracyMessage)
	assert.Empty(t, got.TechnicalComplexity)
	assert.Empty(t, got.TechnicalComplexityMessage)
	assert.Empty(t, got.TechStack)
	assert.Equal(t, map[string]models.PrizeReviewResult{
		"open": {Status: models.PrizeResultProcessing},
	}, got.PrizeResults)

	h.gen.reviewE = nil
	require.NoError(t, h.pipeline(t, 1).Run(context.Background(), p.ID))
	got = h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusProcessed, got.Status)
	assert.Equal(t, models.PrizeResultValid, got.PrizeResults["open"].Status)
}

func TestRun_ProjectNotFound(t *testing.T) {
	h := newHarness(t)
	err := h.pipeline(t, 1).Run(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_CancelledLeavesProcessing(t *testing.T) {
	h := newHarness(t)
	p := h.project(t, "https://github.com/acme/demo")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.gen.onReview = cancel
	h.gen.reviewE = context.Canceled

	err := h.pipeline(t, 1).Run(ctx, p.ID)
	assert.ErrorIs(t, err, context.Canceled)

	got := h.load(t, p.ID)
	assert.Equal(t, models.ProjectStatusCodeReview, got.Status)
	assert.Nil(t, got.StatusMessage)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 2))
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, chunk([]string{"a", "b", "c"}, 1))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b", "c"}}, chunk([]string{"a", "b", "c"}, 5))
}
