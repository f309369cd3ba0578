package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
)

// SQLite is a Store backed by a single-table SQLite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens/creates the database at dbPath and initializes the schema.
// Pass ":memory:" for an in-memory database.
func OpenSQLite(dbPath string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent across calls.
	conn.SetMaxOpenConns(1)

	s := &SQLite{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize index schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracked_files (
		path TEXT PRIMARY KEY,
		line_id TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) Find(ctx context.Context, path string) (*model.TrackedFile, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT path, line_id, created_at FROM tracked_files WHERE path = ?`, path)
	return scanTracked(row)
}

func (s *SQLite) FindByLine(ctx context.Context, lineID string) (*model.TrackedFile, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT path, line_id, created_at FROM tracked_files WHERE line_id = ?`, lineID)
	return scanTracked(row)
}

func (s *SQLite) Insert(ctx context.Context, tf model.TrackedFile) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracked_files WHERE path = ? OR line_id = ?`, tf.Path, tf.LineID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if n > 0 {
		return errclass.ErrDuplicateEntry.WithMessagef("path %s or line %s already indexed", tf.Path, tf.LineID)
	}

	created := tf.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tracked_files (path, line_id, created_at) VALUES (?, ?, ?)`,
		tf.Path, tf.LineID, created.UnixNano()); err != nil {
		return fmt.Errorf("insert tracked file: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Remove(ctx context.Context, path string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tracked_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove tracked file: %w", err)
	}
	return nil
}

func (s *SQLite) All(ctx context.Context) ([]model.TrackedFile, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT path, line_id, created_at FROM tracked_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query tracked files: %w", err)
	}
	defer rows.Close()

	var out []model.TrackedFile
	for rows.Next() {
		var (
			tf      model.TrackedFile
			created int64
		)
		if err := rows.Scan(&tf.Path, &tf.LineID, &created); err != nil {
			return nil, fmt.Errorf("scan tracked file: %w", err)
		}
		tf.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, tf)
	}
	return out, rows.Err()
}

func scanTracked(row *sql.Row) (*model.TrackedFile, error) {
	var (
		tf      model.TrackedFile
		created int64
	)
	if err := row.Scan(&tf.Path, &tf.LineID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan tracked file: %w", err)
	}
	tf.CreatedAt = time.Unix(0, created).UTC()
	return &tf, nil
}
