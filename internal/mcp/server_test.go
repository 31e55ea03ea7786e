package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/store"
)

type inflightSet map[string]bool

func (s inflightSet) InFlight(id string) bool { return s[id] }

func newTestServer(t *testing.T, inflight InFlightChecker) (*Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewServer(s, inflight, "test"), s
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func seedProject(t *testing.T, s store.Store, name string, status models.ProjectStatus) *models.Project {
	t.Helper()
	p := &models.Project{Name: name, RepoURL: "https://github.com/acme/" + name, Status: status, PrizeSlugs: []string{"open"}}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestMCPServer_RegistersTools(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{"judge_list_projects", "judge_get_verdict", "judge_queue_review", "judge_list_prizes"} {
		assert.Contains(t, tools, name)
	}
}

func TestListProjects(t *testing.T) {
	srv, s := newTestServer(t, nil)
	seedProject(t, s, "alpha", models.ProjectStatusProcessed)
	seedProject(t, s, "beta", models.ProjectStatusPending)

	result, err := srv.handleListProjects(context.Background(), callToolReq("judge_list_projects", map[string]any{"status": "processed"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out []projectSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "alpha", out[0].Name)
	assert.Equal(t, models.ProjectStatusProcessed, out[0].Status)
}

func TestGetVerdict(t *testing.T) {
	srv, s := newTestServer(t, inflightSet{})
	p := seedProject(t, s, "alpha", models.ProjectStatusProcessed)
	level := "high"
	require.NoError(t, s.UpdateProject(context.Background(), p.ID, models.ProjectUpdate{
		DescriptionAccuracyLevel: &level,
		PrizeResults: map[string]models.PrizeReviewResult{
			"open": {Status: models.PrizeResultValid, Message: "Yes."},
		},
	}))

	result, err := srv.handleGetVerdict(context.Background(), callToolReq("judge_get_verdict", map[string]any{"project_id": p.ID}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var got verdict
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, "high", got.DescriptionAccuracyLevel)
	assert.Equal(t, models.PrizeResultValid, got.PrizeResults["open"].Status)
	assert.False(t, got.InFlight)
}

func TestGetVerdict_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	result, err := srv.handleGetVerdict(context.Background(), callToolReq("judge_get_verdict", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleGetVerdict(context.Background(), callToolReq("judge_get_verdict", map[string]any{"project_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "project not found")
}

func TestQueueReview(t *testing.T) {
	inflight := inflightSet{}
	srv, s := newTestServer(t, inflight)
	p := seedProject(t, s, "alpha", models.ProjectStatusErrored)

	result, err := srv.handleQueueReview(context.Background(), callToolReq("judge_queue_review", map[string]any{"project_id": p.ID}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	got, err := s.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPending, got.Status)

	inflight[p.ID] = true
	result, err = srv.handleQueueReview(context.Background(), callToolReq("judge_queue_review", map[string]any{"project_id": p.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already being reviewed")
}

func TestListPrizes(t *testing.T) {
	srv, s := newTestServer(t, nil)

	result, err := srv.handleListPrizes(context.Background(), callToolReq("judge_list_prizes", nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, result))

	require.NoError(t, s.UpsertPrizeCategory(context.Background(), &models.PrizeCategory{
		Slug: "best-ai", Name: "Best AI", Keywords: []string{"openai"},
	}))
	result, err = srv.handleListPrizes(context.Background(), callToolReq("judge_list_prizes", nil))
	require.NoError(t, err)

	var prizes []models.PrizeCategory
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &prizes))
	require.Len(t, prizes, 1)
	assert.Equal(t, []string{"openai"}, prizes[0].Keywords)
}
