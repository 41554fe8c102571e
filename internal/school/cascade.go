package school

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"campus/internal/docstore"
	"campus/internal/identity"
	"campus/internal/metrics"
)

// DefaultDeleteBatchSize bounds each purge round so a single request never
// exceeds the store's per-request operation limits.
const DefaultDeleteBatchSize = 50

// DeleteResult is the orchestrator's caller-facing outcome. No internal
// error escapes DeleteAccount; everything is translated into this shape.
type DeleteResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Deleter is the cascading deletion orchestrator. Every step is idempotent,
// so a failed invocation is safely retried as a whole.
type Deleter struct {
	store     docstore.Store
	identity  identity.Service
	batchSize int
}

// NewDeleter creates an orchestrator. batchSize <= 0 uses the default.
func NewDeleter(store docstore.Store, idsvc identity.Service, batchSize int) *Deleter {
	if batchSize <= 0 {
		batchSize = DefaultDeleteBatchSize
	}
	return &Deleter{store: store, identity: idsvc, batchSize: batchSize}
}

// DeleteAccount removes the student's profile, every nested record, every
// matching global record, any admin grant, and finally the identity account.
// Store records go first: if deletion fails partway the account still exists
// and the whole operation can be re-run against it.
func (d *Deleter) DeleteAccount(ctx context.Context, uid string) DeleteResult {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return d.fail("validate input", errors.New("uid required"))
	}

	// Primary profile. Absence is fine: the goal is convergence to "fully
	// deleted", including after a partial prior run.
	if _, err := d.store.Get(ctx, profilePath(uid)); err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return d.fail("load profile", err)
		}
		log.Printf("cascade %s: no profile, continuing", uid)
	} else if err := d.store.Delete(ctx, profilePath(uid)); err != nil {
		return d.fail("delete profile", err)
	}

	for _, collection := range []string{collResults, collFees} {
		if err := d.purgeScoped(ctx, uid, collection); err != nil {
			return d.fail("purge "+collection+" subcollection", err)
		}
		if err := d.purgeGlobal(ctx, uid, collection); err != nil {
			return d.fail("purge global "+collection, err)
		}
	}

	if err := d.store.Delete(ctx, grantPath(uid)); err != nil {
		return d.fail("delete admin grant", err)
	}

	if err := d.identity.DeleteAccount(ctx, uid); err != nil && !errors.Is(err, identity.ErrNotFound) {
		return d.fail("delete account", err)
	}

	metrics.AccountDeletions.WithLabelValues("ok").Inc()
	return DeleteResult{Success: true}
}

// purgeScoped empties students/{uid}/{collection} in bounded rounds. Each
// round re-reads from the start of the collection; termination is guaranteed
// because every committed batch strictly shrinks the remainder, and an empty
// page is the exit condition.
func (d *Deleter) purgeScoped(ctx context.Context, uid, collection string) error {
	for {
		docs, err := d.store.List(ctx, scopedCollection(uid, collection), "", d.batchSize)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		if err := d.deleteDocs(ctx, docs); err != nil {
			return err
		}
	}
}

// purgeGlobal removes every document in the flat collection owned by uid,
// query-then-batch-delete, until the filtered view is empty.
func (d *Deleter) purgeGlobal(ctx context.Context, uid, collection string) error {
	for {
		docs, err := d.store.Query(ctx, collection, "studentId", uid, "", d.batchSize)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		if err := d.deleteDocs(ctx, docs); err != nil {
			return err
		}
	}
}

func (d *Deleter) deleteDocs(ctx context.Context, docs []docstore.Doc) error {
	paths := make([]string, len(docs))
	for i, doc := range docs {
		paths[i] = doc.Path
	}
	if err := d.store.DeleteBatch(ctx, paths); err != nil {
		return err
	}
	metrics.DocumentsPurged.Add(float64(len(paths)))
	return nil
}

func (d *Deleter) fail(step string, err error) DeleteResult {
	log.Printf("cascade: %s failed: %v", step, err)
	metrics.AccountDeletions.WithLabelValues("failed").Inc()
	return DeleteResult{Error: fmt.Sprintf("%s: %v", step, err)}
}
