package knowledgebase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/autoact/pkg/types"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS contexts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLiteStore keeps items in a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create knowledge base directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	// A single connection serializes writers; the database is small.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize knowledge base schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// List returns all items ordered by creation.
func (s *SQLiteStore) List(ctx context.Context) ([]types.ContextItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description FROM contexts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	defer rows.Close()

	items := []types.ContextItem{}
	for rows.Next() {
		var item types.ContextItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Description); err != nil {
			return nil, fmt.Errorf("failed to scan context: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	return items, nil
}

// Get returns the item with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (types.ContextItem, error) {
	var item types.ContextItem
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description FROM contexts WHERE id = ?`, id,
	).Scan(&item.ID, &item.Title, &item.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ContextItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.ContextItem{}, fmt.Errorf("failed to get context %s: %w", id, err)
	}
	return item, nil
}

// Add inserts a new item.
func (s *SQLiteStore) Add(ctx context.Context, values types.ContextFormValues) (types.ContextItem, error) {
	values, err := normalize(values)
	if err != nil {
		return types.ContextItem{}, err
	}

	item := types.ContextItem{
		ID:          uuid.New().String(),
		Title:       values.Title,
		Description: values.Description,
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contexts (id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, now, now,
	)
	if err != nil {
		return types.ContextItem{}, fmt.Errorf("failed to add context: %w", err)
	}
	return item, nil
}

// Update rewrites an existing item's title and description.
func (s *SQLiteStore) Update(ctx context.Context, item types.ContextItem) (types.ContextItem, error) {
	values, err := normalize(item.Values())
	if err != nil {
		return types.ContextItem{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contexts SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		values.Title, values.Description, time.Now().UTC().Format(time.RFC3339Nano), item.ID,
	)
	if err != nil {
		return types.ContextItem{}, fmt.Errorf("failed to update context %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.ContextItem{}, fmt.Errorf("failed to update context %s: %w", item.ID, err)
	}
	if n == 0 {
		return types.ContextItem{}, fmt.Errorf("%w: %s", ErrNotFound, item.ID)
	}

	return types.ContextItem{ID: item.ID, Title: values.Title, Description: values.Description}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
