package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/store"
)

// InFlightChecker reports whether a project is being reviewed right now.
// *worker.Worker implements it.
type InFlightChecker interface {
	InFlight(id string) bool
}

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	inflight InFlightChecker
	logger   *zap.Logger
}

// NewServer creates a new API server. inflight may be nil when no worker
// runs in this process.
func NewServer(s store.Store, inflight InFlightChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: s, inflight: inflight, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Get("/api/v1/health", s.health)

	r.Route("/api/v1/events", func(r chi.Router) {
		r.Get("/", s.listEvents)
		r.Get("/{id}", s.getEvent)
	})

	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Post("/", s.createProject)
		r.Get("/{id}", s.getProject)
		r.Delete("/{id}", s.deleteProject)
		r.Post("/{id}/review", s.queueReview)
	})

	r.Get("/api/v1/prizes", s.listPrizes)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store.ErrNotFound to 404 and anything else to 500.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Events ---

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProjectListFilter{
		EventID: q.Get("event_id"),
		Status:  models.ProjectStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	projects, err := s.store.ListProjects(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(projects))
}

type createProjectRequest struct {
	EventID     string   `json:"event_id"`
	Name        string   `json:"name"`
	RepoURL     string   `json:"repo_url"`
	Description string   `json:"description"`
	PrizeSlugs  []string `json:"prize_slugs"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" || req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "name and repo_url are required")
		return
	}
	if req.EventID != "" {
		if _, err := s.store.GetEvent(r.Context(), req.EventID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "unknown event_id")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	p := &models.Project{
		EventID:     req.EventID,
		Name:        req.Name,
		RepoURL:     req.RepoURL,
		Description: req.Description,
		Status:      models.ProjectStatusPending,
		PrizeSlugs:  req.PrizeSlugs,
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	created, err := s.store.GetProject(r.Context(), p.ID)
	if err != nil {
		writeStoreError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err, "project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queueReview puts a project back to pending so the worker picks it up.
// Invalid URLs are still queued; the pipeline records the verdict.
func (s *Server) queueReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "project")
		return
	}
	if s.inflight != nil && s.inflight.InFlight(id) {
		writeError(w, http.StatusConflict, "review already in progress")
		return
	}

	status := models.ProjectStatusPending
	empty := ""
	if err := s.store.UpdateProject(r.Context(), id, models.ProjectUpdate{Status: &status, StatusMessage: &empty}); err != nil {
		writeStoreError(w, err, "project")
		return
	}
	s.logger.Info("review queued", zap.String("project_id", id), zap.Bool("valid_url", validURL(p.RepoURL)))

	p, err = s.store.GetProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "project")
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func validURL(raw string) bool {
	_, _, err := github.ParseRepoURL(raw)
	return err == nil
}

// --- Prizes ---

func (s *Server) listPrizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := s.store.ListPrizeCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prizes))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
