package docstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when no document exists at the path.
var ErrNotFound = errors.New("docstore: document not found")

// Doc is a document at a path. Fields hold the JSON-compatible payload.
type Doc struct {
	Path   string
	Fields map[string]any
}

// ID returns the last path segment of the document.
func (d Doc) ID() string {
	return PathID(d.Path)
}

// Store is the record-store contract the application depends on.
//
// Deletes are idempotent: deleting an absent document is a no-op, not an
// error. DeleteBatch is atomic per call only, not across calls. List and
// Query return documents ordered by path; `after` is an exclusive path
// cursor for pagination, "" starts from the beginning.
type Store interface {
	Get(ctx context.Context, path string) (Doc, error)
	Set(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	DeleteBatch(ctx context.Context, paths []string) error
	List(ctx context.Context, collection, after string, limit int) ([]Doc, error)
	Query(ctx context.Context, collection, field, value, after string, limit int) ([]Doc, error)
}

// PathID returns the last segment of a document path.
func PathID(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// PathCollection returns the collection part of a document path,
// i.e. everything before the last segment.
func PathCollection(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
