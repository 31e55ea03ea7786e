package store

import (
	"context"
	"errors"

	"github.com/hackreview/judge/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ProjectListFilter specifies filters for listing projects.
type ProjectListFilter struct {
	EventID string
	Status  models.ProjectStatus
	Limit   int
}

// Store defines the persistence interface for judge.
//
// Every project write is a partial update keyed by project id; no method
// replaces a whole row.
type Store interface {
	// Events
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetEventByName(ctx context.Context, name string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, filter ProjectListFilter) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// UpdateProject applies a partial update.
	UpdateProject(ctx context.Context, id string, u models.ProjectUpdate) error
	// MergePrizeResults merges results into the stored prize_results map
	// (read-modify-write in one transaction) and returns the merged map.
	MergePrizeResults(ctx context.Context, id string, results map[string]models.PrizeReviewResult) (map[string]models.PrizeReviewResult, error)

	// Prize categories
	UpsertPrizeCategory(ctx context.Context, c *models.PrizeCategory) error
	GetPrizeCategories(ctx context.Context, slugs []string) ([]*models.PrizeCategory, error)
	ListPrizeCategories(ctx context.Context) ([]*models.PrizeCategory, error)
	DeletePrizeCategory(ctx context.Context, slug string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
