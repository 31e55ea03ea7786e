package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hackreview/judge/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access and keeps MergePrizeResults transactions from
	// hitting "database is locked" when the worker reviews projects in parallel.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Events ---

func (s *SQLiteStore) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, name, starts_at, ends_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, nullTime(e.StartsAt), nullTime(e.EndsAt), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

const eventColumns = `id, name, starts_at, ends_at, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	e := &models.Event{}
	var startsAt, endsAt sql.NullTime
	if err := row.Scan(&e.ID, &e.Name, &startsAt, &endsAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	if startsAt.Valid {
		t := startsAt.Time.UTC()
		e.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time.UTC()
		e.EndsAt = &t
	}
	return e, nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) GetEventByName(ctx context.Context, name string) (*models.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event by name: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	slugs, err := marshalJSON(nonNilSlice(p.PrizeSlugs))
	if err != nil {
		return err
	}
	stack, err := marshalJSON(nonNilSlice(p.TechStack))
	if err != nil {
		return err
	}
	results, err := marshalJSON(nonNilResults(p.PrizeResults))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, event_id, name, repo_url, description, status, status_message, prize_slugs,
			description_accuracy_level, description_accuracy_message, technical_complexity, technical_complexity_message,
			tech_stack, prize_results, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nullString(p.EventID), p.Name, p.RepoURL, p.Description, string(p.Status), p.StatusMessage, slugs,
		p.DescriptionAccuracyLevel, p.DescriptionAccuracyMessage, p.TechnicalComplexity, p.TechnicalComplexityMessage,
		stack, results, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

const projectColumns = `id, event_id, name, repo_url, description, status, status_message, prize_slugs,
	description_accuracy_level, description_accuracy_message, technical_complexity, technical_complexity_message,
	tech_stack, prize_results, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	var eventID, statusMessage sql.NullString
	var status, slugs, stack, results string

	err := row.Scan(&p.ID, &eventID, &p.Name, &p.RepoURL, &p.Description, &status, &statusMessage, &slugs,
		&p.DescriptionAccuracyLevel, &p.DescriptionAccuracyMessage, &p.TechnicalComplexity, &p.TechnicalComplexityMessage,
		&stack, &results, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.EventID = eventID.String
	p.Status = models.ProjectStatus(status)
	if statusMessage.Valid {
		msg := statusMessage.String
		p.StatusMessage = &msg
	}
	if err := json.Unmarshal([]byte(slugs), &p.PrizeSlugs); err != nil {
		return nil, fmt.Errorf("decode prize_slugs: %w", err)
	}
	if err := json.Unmarshal([]byte(stack), &p.TechStack); err != nil {
		return nil, fmt.Errorf("decode tech_stack: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &p.PrizeResults); err != nil {
		return nil, fmt.Errorf("decode prize_results: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	if p.EventID != "" {
		ev, err := s.GetEvent(ctx, p.EventID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		p.Event = ev
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter ProjectListFilter) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var conditions []string
	var args []any

	if filter.EventID != "" {
		conditions = append(conditions, "event_id = ?")
		args = append(args, filter.EventID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, id string, u models.ProjectUpdate) error {
	sets, args, err := updateAssignments(u)
	if err != nil {
		return err
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE projects SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// updateAssignments turns the non-nil fields of u into SET clauses.
func updateAssignments(u models.ProjectUpdate) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.StatusMessage != nil {
		add("status_message", nullString(*u.StatusMessage))
	}
	if u.DescriptionAccuracyLevel != nil {
		add("description_accuracy_level", *u.DescriptionAccuracyLevel)
	}
	if u.DescriptionAccuracyMessage != nil {
		add("description_accuracy_message", *u.DescriptionAccuracyMessage)
	}
	if u.TechnicalComplexity != nil {
		add("technical_complexity", *u.TechnicalComplexity)
	}
	if u.TechnicalComplexityMessage != nil {
		add("technical_complexity_message", *u.TechnicalComplexityMessage)
	}
	if u.TechStack != nil {
		data, err := marshalJSON(nonNilSlice(*u.TechStack))
		if err != nil {
			return nil, nil, err
		}
		add("tech_stack", data)
	}
	if u.PrizeResults != nil {
		data, err := marshalJSON(u.PrizeResults)
		if err != nil {
			return nil, nil, err
		}
		add("prize_results", data)
	}
	return sets, args, nil
}

func (s *SQLiteStore) MergePrizeResults(ctx context.Context, id string, results map[string]models.PrizeReviewResult) (map[string]models.PrizeReviewResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT prize_results FROM projects WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read prize results: %w", err)
	}

	merged := map[string]models.PrizeReviewResult{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return nil, fmt.Errorf("decode prize_results: %w", err)
	}
	if merged == nil {
		merged = map[string]models.PrizeReviewResult{}
	}
	for slug, r := range results {
		merged[slug] = r
	}

	data, err := marshalJSON(merged)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE projects SET prize_results = ?, updated_at = ? WHERE id = ?",
		data, time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("write prize results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return merged, nil
}

// --- Prize categories ---

func (s *SQLiteStore) UpsertPrizeCategory(ctx context.Context, c *models.PrizeCategory) error {
	if c.Slug == "" {
		return fmt.Errorf("prize category slug is required")
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	keywords, err := marshalJSON(nonNilSlice(c.Keywords))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prize_categories (slug, name, prompt, keywords, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET name=excluded.name, prompt=excluded.prompt,
			keywords=excluded.keywords, updated_at=excluded.updated_at`,
		c.Slug, c.Name, c.Prompt, keywords, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert prize category: %w", err)
	}
	return nil
}

const prizeColumns = `slug, name, prompt, keywords, created_at, updated_at`

func scanPrize(row interface{ Scan(...any) error }) (*models.PrizeCategory, error) {
	c := &models.PrizeCategory{}
	var keywords string
	if err := row.Scan(&c.Slug, &c.Name, &c.Prompt, &keywords, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetPrizeCategories(ctx context.Context, slugs []string) ([]*models.PrizeCategory, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(slugs))
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		placeholders[i] = "?"
		args[i] = slug
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+prizeColumns+` FROM prize_categories WHERE slug IN (%s) ORDER BY slug`, strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("get prize categories: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectPrizes(rows)
}

func (s *SQLiteStore) ListPrizeCategories(ctx context.Context) ([]*models.PrizeCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+prizeColumns+` FROM prize_categories ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list prize categories: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectPrizes(rows)
}

func collectPrizes(rows *sql.Rows) ([]*models.PrizeCategory, error) {
	var out []*models.PrizeCategory
	for rows.Next() {
		c, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prize category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeletePrizeCategory(ctx context.Context, slug string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM prize_categories WHERE slug = ?", slug)
	if err != nil {
		return fmt.Errorf("delete prize category: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("prize category %s: %w", slug, ErrNotFound)
	}
	return nil
}

// --- helpers ---

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilResults(m map[string]models.PrizeReviewResult) map[string]models.PrizeReviewResult {
	if m == nil {
		return map[string]models.PrizeReviewResult{}
	}
	return m
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
