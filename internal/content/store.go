package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"renderbot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.ContentStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS content_categories (
		id          TEXT PRIMARY KEY,
		renderer    TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS content_items (
		id          TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		data        TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_items_category ON content_items(category_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) PutCategory(ctx context.Context, cat domain.ContentCategory) error {
	if cat.ID == "" {
		return fmt.Errorf("category id must be non-empty: %w", domain.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_categories (id, renderer, description) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET renderer=excluded.renderer, description=excluded.description`,
		cat.ID, cat.Renderer, cat.Description,
	)
	return err
}

func (s *SQLiteStore) PutItem(ctx context.Context, item domain.ContentItem) error {
	if item.ID == "" || item.CategoryID == "" {
		return fmt.Errorf("content item needs id and category: %w", domain.ErrValidation)
	}
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("encode item data: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_items (id, category_id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET category_id=excluded.category_id, data=excluded.data, updated_at=excluded.updated_at`,
		item.ID, item.CategoryID, string(data), now, now,
	)
	return err
}

// GetItem returns (nil, nil) when the id is unknown.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, category_id, data, created_at, updated_at FROM content_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.CategoryID, &data, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &item.Data); err != nil {
		return nil, fmt.Errorf("decode data for item %s: %w", id, err)
	}
	return &item, nil
}

// GetCategory returns (nil, nil) when the id is unknown.
func (s *SQLiteStore) GetCategory(ctx context.Context, id string) (*domain.ContentCategory, error) {
	var cat domain.ContentCategory
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, renderer, description FROM content_categories WHERE id = ?`, id,
	).Scan(&cat.ID, &cat.Renderer, &desc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cat.Description = desc.String
	return &cat, nil
}

func (s *SQLiteStore) ListItems(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category_id, data, created_at, updated_at
		 FROM content_items ORDER BY id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		var item domain.ContentItem
		var data string
		if err := rows.Scan(&item.ID, &item.CategoryID, &data, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &item.Data); err != nil {
			return nil, fmt.Errorf("decode data for item %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.ContentStore = (*SQLiteStore)(nil)
