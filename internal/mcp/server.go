package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/store"
)

// InFlightChecker reports whether a project is being reviewed right now.
type InFlightChecker interface {
	InFlight(id string) bool
}

// Server wraps the judge data layer and exposes it as MCP tools.
type Server struct {
	store    store.Store
	inflight InFlightChecker
	version  string
}

// NewServer creates the MCP server wrapper. inflight may be nil.
func NewServer(s store.Store, inflight InFlightChecker, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, inflight: inflight, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("judge", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.getVerdictTool())
	srv.AddTool(s.queueReviewTool())
	srv.AddTool(s.listPrizesTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// judge_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("judge_list_projects",
		mcp.WithDescription("List submitted projects with their review status. Returns a JSON array of {id, name, repo_url, status, status_message}."),
		mcp.WithString("event_id", mcp.Description("Only projects of this event")),
		mcp.WithString("status", mcp.Description("Only projects with this status, e.g. processed or invalid:rule_violation")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of projects to return")),
	)
	return tool, s.handleListProjects
}

type projectSummary struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	RepoURL       string               `json:"repo_url"`
	Status        models.ProjectStatus `json:"status"`
	StatusMessage *string              `json:"status_message"`
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx, store.ProjectListFilter{
		EventID: request.GetString("event_id", ""),
		Status:  models.ProjectStatus(request.GetString("status", "")),
		Limit:   request.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	out := make([]projectSummary, len(projects))
	for i, p := range projects {
		out[i] = projectSummary{
			ID:            p.ID,
			Name:          p.Name,
			RepoURL:       p.RepoURL,
			Status:        p.Status,
			StatusMessage: p.StatusMessage,
		}
	}
	return jsonResult(out)
}

// judge_get_verdict
func (s *Server) getVerdictTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("judge_get_verdict",
		mcp.WithDescription("Get the full review verdict for a project: status, code review grades, tech stack and per-prize results."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
	)
	return tool, s.handleGetVerdict
}

type verdict struct {
	ID                         string                              `json:"id"`
	Name                       string                              `json:"name"`
	Status                     models.ProjectStatus                `json:"status"`
	StatusMessage              *string                             `json:"status_message"`
	DescriptionAccuracyLevel   string                              `json:"description_accuracy_level,omitempty"`
	DescriptionAccuracyMessage string                              `json:"description_accuracy_message,omitempty"`
	TechnicalComplexity        string                              `json:"technical_complexity,omitempty"`
	TechnicalComplexityMessage string                              `json:"technical_complexity_message,omitempty"`
	TechStack                  []string                            `json:"tech_stack"`
	PrizeResults               map[string]models.PrizeReviewResult `json:"prize_results"`
	InFlight                   bool                                `json:"in_flight"`
}

func (s *Server) handleGetVerdict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project_id"), nil
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return projectError(id, err), nil
	}

	return jsonResult(verdict{
		ID:                         p.ID,
		Name:                       p.Name,
		Status:                     p.Status,
		StatusMessage:              p.StatusMessage,
		DescriptionAccuracyLevel:   p.DescriptionAccuracyLevel,
		DescriptionAccuracyMessage: p.DescriptionAccuracyMessage,
		TechnicalComplexity:        p.TechnicalComplexity,
		TechnicalComplexityMessage: p.TechnicalComplexityMessage,
		TechStack:                  p.TechStack,
		PrizeResults:               p.PrizeResults,
		InFlight:                   s.inflight != nil && s.inflight.InFlight(p.ID),
	})
}

// judge_queue_review
func (s *Server) queueReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("judge_queue_review",
		mcp.WithDescription("Queue a project for (re-)review. The review worker picks up pending projects on its next poll."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
	)
	return tool, s.handleQueueReview
}

func (s *Server) handleQueueReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project_id"), nil
	}
	if _, err := s.store.GetProject(ctx, id); err != nil {
		return projectError(id, err), nil
	}
	if s.inflight != nil && s.inflight.InFlight(id) {
		return mcp.NewToolResultError(fmt.Sprintf("project %s is already being reviewed", id)), nil
	}

	status := models.ProjectStatusPending
	empty := ""
	if err := s.store.UpdateProject(ctx, id, models.ProjectUpdate{Status: &status, StatusMessage: &empty}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to queue review: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Queued project %s for review.", id)), nil
}

// judge_list_prizes
func (s *Server) listPrizesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("judge_list_prizes",
		mcp.WithDescription("List configured prize categories with their slugs, names and keyword filters."),
	)
	return tool, s.handleListPrizes
}

func (s *Server) handleListPrizes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prizes, err := s.store.ListPrizeCategories(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list prizes: %v", err)), nil
	}
	if prizes == nil {
		prizes = []*models.PrizeCategory{}
	}
	return jsonResult(prizes)
}

func projectError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", id))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to load project: %v", err))
}
