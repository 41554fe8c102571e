package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Postgres stores documents as JSONB rows keyed by path.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed store and ensures the schema exists.
func NewPostgres(ctx context.Context, db *sql.DB) (*Postgres, error) {
	s := &Postgres{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("docstore migrate: %w", err)
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			fields     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, path)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_student ON documents (collection, (fields->>'studentId'))`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get loads the document at path.
func (s *Postgres) Get(ctx context.Context, path string) (Doc, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Doc{}, fmt.Errorf("decode document %s: %w", path, err)
	}
	return Doc{Path: path, Fields: fields}, nil
}

// Set writes the full document at path, replacing any existing fields.
func (s *Postgres) Set(ctx context.Context, path string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()
	`, path, PathCollection(path), raw)
	return err
}

// Delete removes the document at path. Absent documents are a no-op.
func (s *Postgres) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	return err
}

// DeleteBatch removes the given paths in one transaction.
func (s *Postgres) DeleteBatch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range paths {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns up to limit documents of a collection ordered by path,
// starting after the given path cursor.
func (s *Postgres) List(ctx context.Context, collection, after string, limit int) ([]Doc, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, fields FROM documents
		WHERE collection = $1 AND path > $2
		ORDER BY path
		LIMIT $3
	`, collection, after, limit)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows)
}

// Query returns up to limit documents of a collection whose field equals
// value, ordered by path starting after the cursor.
func (s *Postgres) Query(ctx context.Context, collection, field, value, after string, limit int) ([]Doc, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, fields FROM documents
		WHERE collection = $1 AND fields->>($2::text) = $3 AND path > $4
		ORDER BY path
		LIMIT $5
	`, collection, field, value, after, limit)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows)
}

func scanDocs(rows *sql.Rows) ([]Doc, error) {
	defer rows.Close()
	var docs []Doc
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", path, err)
		}
		docs = append(docs, Doc{Path: path, Fields: fields})
	}
	return docs, rows.Err()
}
