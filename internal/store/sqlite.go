package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c5t/c5t/internal/types"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLite is the embedded SQLite entity store.
//
// The database runs with WAL journaling so readers are not blocked while
// an import writes, and with foreign keys enforced so a child can never be
// stored before its parent.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and makes
// sure the schema exists.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.OpenSQLite(filepath.Join(dataDir, "c5t.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func OpenSQLite(path string) (*SQLite, error) {
	return OpenSQLiteContext(context.Background(), path)
}

// OpenSQLiteContext is OpenSQLite with context support.
func OpenSQLiteContext(ctx context.Context, path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)",
		filepath.ToSlash(path))
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{conn: conn, path: path}
	if err := s.InitSchemaContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection after checkpointing the WAL.
func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("failed to checkpoint WAL", "path", s.path, "error", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchemaContext creates the schema if it doesn't exist. It is safe to
// call multiple times.
func (s *SQLite) InitSchemaContext(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// ListAll implements Store.
func (s *SQLite) ListAll(ctx context.Context, kind types.Kind) ([]types.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(t.columns, ", "), t.name)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []types.Entity
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		e.Normalize()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}
	return out, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, kind types.Kind, id string) (types.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(t.columns, ", "), t.name)
	e, err := t.scan(s.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
	}
	e.Normalize()
	return e, nil
}

// Upsert implements Store.
func (s *SQLite) Upsert(ctx context.Context, e types.Entity) error {
	kind := e.EntityKind()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", kind, err)
	}
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	args, err := t.args(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, e.EntityID(), err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	updates := make([]string, 0, len(t.columns)-1)
	for _, col := range t.columns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		t.name, strings.Join(t.columns, ", "), placeholders, strings.Join(updates, ", "))

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind, e.EntityID(), err)
	}
	return nil
}

// ListLinks implements Store.
func (s *SQLite) ListLinks(ctx context.Context, rel types.Relation) ([]types.Link, error) {
	if !rel.IsValid() {
		return nil, fmt.Errorf("unknown relation %q", rel)
	}
	colA, colB := rel.Columns()

	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s, %s", colA, colB, rel, colA, colB)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel, err)
	}
	defer rows.Close()

	var out []types.Link
	for rows.Next() {
		l := types.Link{Relation: rel}
		if err := rows.Scan(&l.A, &l.B); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", rel, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", rel, err)
	}
	return out, nil
}

// AddLink implements Store.
func (s *SQLite) AddLink(ctx context.Context, l types.Link) (bool, error) {
	if err := l.Validate(); err != nil {
		return false, err
	}
	colA, colB := l.Relation.Columns()

	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)", l.Relation, colA, colB)
	res, err := s.conn.ExecContext(ctx, query, l.A, l.B)
	if err != nil {
		return false, fmt.Errorf("failed to add %s: %w", l, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add %s: %w", l, err)
	}
	return n > 0, nil
}

// Count returns the number of records of a kind.
func (s *SQLite) Count(ctx context.Context, kind types.Kind) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

func tableFor(kind types.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return t, nil
}
