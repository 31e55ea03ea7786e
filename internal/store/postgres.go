package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/hackreview/judge/internal/models"
)

// GormStore implements Store on Postgres through gorm. It is selected with
// db_driver=postgres and is the store used when judges share a hosted database.
type GormStore struct {
	db *gorm.DB
}

type eventRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
}

func (eventRow) TableName() string { return "events" }

type projectRow struct {
	ID                         string  `gorm:"primaryKey"`
	EventID                    *string `gorm:"index"`
	Name                       string  `gorm:"not null"`
	RepoURL                    string
	Description                string
	Status                     string `gorm:"index;not null;default:pending"`
	StatusMessage              *string
	PrizeSlugs                 []string `gorm:"serializer:json"`
	DescriptionAccuracyLevel   string
	DescriptionAccuracyMessage string
	TechnicalComplexity        string
	TechnicalComplexityMessage string
	TechStack                  []string                            `gorm:"serializer:json"`
	PrizeResults               map[string]models.PrizeReviewResult `gorm:"serializer:json"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (projectRow) TableName() string { return "projects" }

type prizeRow struct {
	Slug      string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Prompt    string
	Keywords  []string `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (prizeRow) TableName() string { return "prize_categories" }

// NewGormStore connects to Postgres using the given DSN.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Migrate creates or updates the tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&eventRow{}, &projectRow{}, &prizeRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, kind, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", kind, err)
}

// --- Events ---

func (s *GormStore) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	e.CreatedAt = time.Now().UTC()
	row := eventRow{ID: e.ID, Name: e.Name, StartsAt: e.StartsAt, EndsAt: e.EndsAt, CreatedAt: e.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r eventRow) model() *models.Event {
	return &models.Event{ID: r.ID, Name: r.Name, StartsAt: r.StartsAt, EndsAt: r.EndsAt, CreatedAt: r.CreatedAt}
}

func (s *GormStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "event", id)
	}
	return row.model(), nil
}

func (s *GormStore) GetEventByName(ctx context.Context, name string) (*models.Event, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		return nil, notFound(err, "event", name)
	}
	return row.model(), nil
}

func (s *GormStore) ListEvents(ctx context.Context) ([]*models.Event, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]*models.Event, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// --- Projects ---

func (s *GormStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	row := projectRow{
		ID:                         p.ID,
		Name:                       p.Name,
		RepoURL:                    p.RepoURL,
		Description:                p.Description,
		Status:                     string(p.Status),
		StatusMessage:              p.StatusMessage,
		PrizeSlugs:                 nonNilSlice(p.PrizeSlugs),
		DescriptionAccuracyLevel:   p.DescriptionAccuracyLevel,
		DescriptionAccuracyMessage: p.DescriptionAccuracyMessage,
		TechnicalComplexity:        p.TechnicalComplexity,
		TechnicalComplexityMessage: p.TechnicalComplexityMessage,
		TechStack:                  nonNilSlice(p.TechStack),
		PrizeResults:               nonNilResults(p.PrizeResults),
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if p.EventID != "" {
		row.EventID = &p.EventID
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r projectRow) model() *models.Project {
	p := &models.Project{
		ID:                         r.ID,
		Name:                       r.Name,
		RepoURL:                    r.RepoURL,
		Description:                r.Description,
		Status:                     models.ProjectStatus(r.Status),
		StatusMessage:              r.StatusMessage,
		PrizeSlugs:                 r.PrizeSlugs,
		DescriptionAccuracyLevel:   r.DescriptionAccuracyLevel,
		DescriptionAccuracyMessage: r.DescriptionAccuracyMessage,
		TechnicalComplexity:        r.TechnicalComplexity,
		TechnicalComplexityMessage: r.TechnicalComplexityMessage,
		TechStack:                  r.TechStack,
		PrizeResults:               r.PrizeResults,
		CreatedAt:                  r.CreatedAt,
		UpdatedAt:                  r.UpdatedAt,
	}
	if r.EventID != nil {
		p.EventID = *r.EventID
	}
	return p
}

func (s *GormStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var row projectRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	p := row.model()
	if p.EventID != "" {
		ev, err := s.GetEvent(ctx, p.EventID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		p.Event = ev
	}
	return p, nil
}

func (s *GormStore) ListProjects(ctx context.Context, filter ProjectListFilter) ([]*models.Project, error) {
	q := s.db.WithContext(ctx).Model(&projectRow{})
	if filter.EventID != "" {
		q = q.Where("event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []projectRow
	if err := q.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]*models.Project, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *GormStore) DeleteProject(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&projectRow{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) UpdateProject(ctx context.Context, id string, u models.ProjectUpdate) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if u.Status != nil {
		updates["status"] = string(*u.Status)
	}
	if u.StatusMessage != nil {
		if *u.StatusMessage == "" {
			updates["status_message"] = nil
		} else {
			updates["status_message"] = *u.StatusMessage
		}
	}
	if u.DescriptionAccuracyLevel != nil {
		updates["description_accuracy_level"] = *u.DescriptionAccuracyLevel
	}
	if u.DescriptionAccuracyMessage != nil {
		updates["description_accuracy_message"] = *u.DescriptionAccuracyMessage
	}
	if u.TechnicalComplexity != nil {
		updates["technical_complexity"] = *u.TechnicalComplexity
	}
	if u.TechnicalComplexityMessage != nil {
		updates["technical_complexity_message"] = *u.TechnicalComplexityMessage
	}
	if u.TechStack != nil {
		data, err := marshalJSON(nonNilSlice(*u.TechStack))
		if err != nil {
			return err
		}
		updates["tech_stack"] = data
	}
	if u.PrizeResults != nil {
		data, err := marshalJSON(u.PrizeResults)
		if err != nil {
			return err
		}
		updates["prize_results"] = data
	}

	res := s.db.WithContext(ctx).Table("projects").Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) MergePrizeResults(ctx context.Context, id string, results map[string]models.PrizeReviewResult) (map[string]models.PrizeReviewResult, error) {
	var merged map[string]models.PrizeReviewResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row projectRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "prize_results").First(&row, "id = ?", id).Error; err != nil {
			return notFound(err, "project", id)
		}
		merged = nonNilResults(row.PrizeResults)
		for slug, r := range results {
			merged[slug] = r
		}
		data, err := marshalJSON(merged)
		if err != nil {
			return err
		}
		return tx.Table("projects").Where("id = ?", id).
			Updates(map[string]any{"prize_results": data, "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("merge prize results: %w", err)
	}
	return merged, nil
}

// --- Prize categories ---

func (s *GormStore) UpsertPrizeCategory(ctx context.Context, c *models.PrizeCategory) error {
	if c.Slug == "" {
		return fmt.Errorf("prize category slug is required")
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	row := prizeRow{Slug: c.Slug, Name: c.Name, Prompt: c.Prompt, Keywords: nonNilSlice(c.Keywords), CreatedAt: c.CreatedAt, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "prompt", "keywords", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert prize category: %w", err)
	}
	return nil
}

func (r prizeRow) model() *models.PrizeCategory {
	return &models.PrizeCategory{Slug: r.Slug, Name: r.Name, Prompt: r.Prompt, Keywords: r.Keywords, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (s *GormStore) GetPrizeCategories(ctx context.Context, slugs []string) ([]*models.PrizeCategory, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	var rows []prizeRow
	if err := s.db.WithContext(ctx).Where("slug IN ?", slugs).Order("slug").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get prize categories: %w", err)
	}
	out := make([]*models.PrizeCategory, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *GormStore) ListPrizeCategories(ctx context.Context) ([]*models.PrizeCategory, error) {
	var rows []prizeRow
	if err := s.db.WithContext(ctx).Order("slug").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list prize categories: %w", err)
	}
	out := make([]*models.PrizeCategory, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *GormStore) DeletePrizeCategory(ctx context.Context, slug string) error {
	res := s.db.WithContext(ctx).Delete(&prizeRow{}, "slug = ?", slug)
	if res.Error != nil {
		return fmt.Errorf("delete prize category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("prize category %s: %w", slug, ErrNotFound)
	}
	return nil
}
