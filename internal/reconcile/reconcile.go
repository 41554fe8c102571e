// Package reconcile repairs dual-location drift. The denormalization writer
// has no cross-document transaction, so a crash between its two writes (or
// two deletes) can strand one copy; the sweeper walks both locations and
// restores or removes copies until they agree.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"campus/internal/docstore"
	"campus/internal/metrics"
)

const pageSize = 100

// collections holding dual-location records.
var collections = []string{"fees", "academicResults"}

// Sweeper compares student-scoped and global copies and repairs drift.
type Sweeper struct {
	store docstore.Store
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store docstore.Store) *Sweeper {
	return &Sweeper{store: store}
}

// SweepStudent reconciles one student's records. When the student's profile
// is gone the global copies are dangling leftovers of a partial deletion and
// are removed; otherwise missing counterparts are restored in both
// directions.
func (s *Sweeper) SweepStudent(ctx context.Context, uid string) error {
	if uid == "" {
		return errors.New("uid required")
	}

	_, err := s.store.Get(ctx, docstore.Join("students", uid))
	profileGone := errors.Is(err, docstore.ErrNotFound)
	if err != nil && !profileGone {
		return fmt.Errorf("load profile %s: %w", uid, err)
	}

	for _, collection := range collections {
		if err := s.sweepCollection(ctx, uid, collection, profileGone); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) sweepCollection(ctx context.Context, uid, collection string, profileGone bool) error {
	scopedColl := docstore.Join("students", uid, collection)

	scoped, err := s.readAll(ctx, func(after string) ([]docstore.Doc, error) {
		return s.store.List(ctx, scopedColl, after, pageSize)
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", scopedColl, err)
	}
	global, err := s.readAll(ctx, func(after string) ([]docstore.Doc, error) {
		return s.store.Query(ctx, collection, "studentId", uid, after, pageSize)
	})
	if err != nil {
		return fmt.Errorf("query %s for %s: %w", collection, uid, err)
	}

	if profileGone {
		// the owner is deleted; anything left in either location is dangling
		var paths []string
		for _, doc := range append(scoped, global...) {
			paths = append(paths, doc.Path)
		}
		for start := 0; start < len(paths); start += pageSize {
			end := min(start+pageSize, len(paths))
			if err := s.store.DeleteBatch(ctx, paths[start:end]); err != nil {
				return fmt.Errorf("remove dangling %s records for %s: %w", collection, uid, err)
			}
		}
		if len(paths) > 0 {
			metrics.ReconcileRepairs.WithLabelValues("removed").Add(float64(len(paths)))
			log.Printf("reconcile %s: removed %d dangling %s records", uid, len(paths), collection)
		}
		return nil
	}

	scopedByID := indexByID(scoped)
	globalByID := indexByID(global)

	for id, doc := range scopedByID {
		if _, ok := globalByID[id]; ok {
			continue
		}
		if err := s.store.Set(ctx, docstore.Join(collection, id), doc.Fields); err != nil {
			return fmt.Errorf("restore global %s/%s: %w", collection, id, err)
		}
		metrics.ReconcileRepairs.WithLabelValues("restored").Inc()
		log.Printf("reconcile %s: restored global %s/%s", uid, collection, id)
	}
	for id, doc := range globalByID {
		if _, ok := scopedByID[id]; ok {
			continue
		}
		if err := s.store.Set(ctx, docstore.Join("students", uid, collection, id), doc.Fields); err != nil {
			return fmt.Errorf("restore scoped %s/%s: %w", collection, id, err)
		}
		metrics.ReconcileRepairs.WithLabelValues("restored").Inc()
		log.Printf("reconcile %s: restored scoped %s/%s", uid, collection, id)
	}
	return nil
}

// SweepAll reconciles every student with a profile, then removes global
// records whose owner has no profile at all.
func (s *Sweeper) SweepAll(ctx context.Context) error {
	known := map[string]bool{}
	profiles, err := s.readAll(ctx, func(after string) ([]docstore.Doc, error) {
		return s.store.List(ctx, "students", after, pageSize)
	})
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	for _, doc := range profiles {
		uid := doc.ID()
		known[uid] = true
		if err := s.SweepStudent(ctx, uid); err != nil {
			return err
		}
	}

	// orphan scan over the flat collections
	swept := map[string]bool{}
	for _, collection := range collections {
		docs, err := s.readAll(ctx, func(after string) ([]docstore.Doc, error) {
			return s.store.List(ctx, collection, after, pageSize)
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", collection, err)
		}
		for _, doc := range docs {
			owner, _ := doc.Fields["studentId"].(string)
			if owner == "" || known[owner] || swept[owner] {
				continue
			}
			swept[owner] = true
			if err := s.SweepStudent(ctx, owner); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sweeper) readAll(ctx context.Context, page func(after string) ([]docstore.Doc, error)) ([]docstore.Doc, error) {
	var out []docstore.Doc
	after := ""
	for {
		docs, err := page(after)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return out, nil
		}
		out = append(out, docs...)
		after = docs[len(docs)-1].Path
	}
}

func indexByID(docs []docstore.Doc) map[string]docstore.Doc {
	m := make(map[string]docstore.Doc, len(docs))
	for _, doc := range docs {
		m[doc.ID()] = doc
	}
	return m
}
