// Package sqlite stores pipeline documents in a SQLite database.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary; Open applies any pending migration.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements ports.PipelineStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it to the latest schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// An in-memory database lives as long as its single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	// Closing m would close the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Save inserts or replaces the document row.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id cannot be empty", domain.ErrInvalidOperation)
	}
	stack, err := json.Marshal(doc.ConfigStack)
	if err != nil {
		return fmt.Errorf("failed to marshal config stack: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipelines (id, name, description, folder, parent_id, updated_at, config_stack)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			folder = excluded.folder,
			parent_id = excluded.parent_id,
			updated_at = excluded.updated_at,
			config_stack = excluded.config_stack`,
		doc.ID, doc.Name, doc.Description, doc.Folder, doc.ParentID,
		formatTime(doc.UpdatedAt), string(stack),
	)
	if err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}
	return nil
}

// Load reads the document row with the given id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Document, error) {
	var (
		doc       domain.Document
		updatedAt string
		stack     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, folder, parent_id, updated_at, config_stack
		FROM pipelines WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Name, &doc.Description, &doc.Folder, &doc.ParentID, &updatedAt, &stack)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPipelineNotFound
		}
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}

	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(stack), &doc.ConfigStack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config stack of %s: %w", id, err)
	}
	return &doc, nil
}

// Delete removes the document row.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	return nil
}

// List returns every id in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM pipelines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Children returns the ids of documents whose parent is parentID.
func (s *Store) Children(ctx context.Context, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM pipelines WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child pipelines: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
