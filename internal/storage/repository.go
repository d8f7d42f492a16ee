// Package storage implements the persistence provider over a single SQLite
// file. Queries are built with squirrel and scanned with sqlx; the schema is
// managed by embedded golang-migrate migrations.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

// Repository is the SQLite-backed store for categories, transactions and
// budgets. It implements the service-layer store interfaces.
type Repository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// New opens (creating if needed) the SQLite database at dbPath and applies
// pending migrations.
func New(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// joinTags flattens a tag list into the single-column representation. Tags
// are short labels; commas inside tags are not supported.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// utc normalizes timestamps before they hit the database so date-range
// comparisons bind consistently.
func utc(t time.Time) time.Time {
	return t.UTC()
}
