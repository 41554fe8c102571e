package school

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus/internal/docstore"
	"campus/internal/metrics"
)

// Denormalizer keeps the two copies of every fee and result record in sync:
// one under students/{uid}/{collection}/{id}, one in the global flat
// {collection}/{id}. There is no cross-document transaction in the store, so
// a crash between the two writes can leave one copy behind; the sweeper in
// internal/reconcile repairs that out of band.
type Denormalizer struct {
	store docstore.Store
}

// NewDenormalizer creates a writer over the given store.
func NewDenormalizer(store docstore.Store) *Denormalizer {
	return &Denormalizer{store: store}
}

// Upsert writes the record to both locations. The caller assigns the record
// id and must reuse it on update. Any createdAt value is generated once per
// call and shared by both copies so they never diverge on it.
func (d *Denormalizer) Upsert(ctx context.Context, kind RecordKind, studentID string, fields map[string]any) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	if studentID == "" {
		return errors.New("student id required")
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return errors.New("record id required")
	}

	fields["studentId"] = studentID
	if _, ok := fields["createdAt"]; !ok {
		fields["createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if err := d.store.Set(ctx, scopedPath(studentID, collection, id), fields); err != nil {
		metrics.DualWriteFailures.Inc()
		return fmt.Errorf("write scoped %s %s: %w", kind, id, err)
	}
	if err := d.store.Set(ctx, globalPath(collection, id), fields); err != nil {
		metrics.DualWriteFailures.Inc()
		return fmt.Errorf("write global %s %s: %w", kind, id, err)
	}
	return nil
}

// Remove deletes both copies of a record. Deleting an absent copy is a no-op
// in the store contract, so repeat removal converges.
func (d *Denormalizer) Remove(ctx context.Context, kind RecordKind, studentID, id string) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	if studentID == "" || id == "" {
		return errors.New("student id and record id required")
	}

	if err := d.store.Delete(ctx, scopedPath(studentID, collection, id)); err != nil {
		metrics.DualWriteFailures.Inc()
		return fmt.Errorf("delete scoped %s %s: %w", kind, id, err)
	}
	if err := d.store.Delete(ctx, globalPath(collection, id)); err != nil {
		metrics.DualWriteFailures.Inc()
		return fmt.Errorf("delete global %s %s: %w", kind, id, err)
	}
	return nil
}
