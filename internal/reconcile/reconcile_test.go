package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/docstore"
)

func TestSweepRestoresMissingGlobalCopy(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, "students/s1", map[string]any{"id": "s1"}))
	// scoped copy present, global copy lost
	require.NoError(t, store.Set(ctx, "students/s1/fees/f1", map[string]any{
		"id": "f1", "studentId": "s1", "amount": 500.0,
	}))

	require.NoError(t, NewSweeper(store).SweepStudent(ctx, "s1"))

	global, err := store.Get(ctx, "fees/f1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, global.Fields["amount"])
}

func TestSweepRestoresMissingScopedCopy(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, "students/s1", map[string]any{"id": "s1"}))
	require.NoError(t, store.Set(ctx, "academicResults/r1", map[string]any{
		"id": "r1", "studentId": "s1", "grade": "A",
	}))

	require.NoError(t, NewSweeper(store).SweepStudent(ctx, "s1"))

	scoped, err := store.Get(ctx, "students/s1/academicResults/r1")
	require.NoError(t, err)
	assert.Equal(t, "A", scoped.Fields["grade"])
}

func TestSweepRemovesDanglingRecordsAfterDeletion(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	// no students/s1 profile: these are leftovers of a partial cascade
	require.NoError(t, store.Set(ctx, "fees/f1", map[string]any{"id": "f1", "studentId": "s1"}))
	require.NoError(t, store.Set(ctx, "students/s1/fees/f2", map[string]any{"id": "f2", "studentId": "s1"}))

	require.NoError(t, NewSweeper(store).SweepStudent(ctx, "s1"))

	_, err := store.Get(ctx, "fees/f1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = store.Get(ctx, "students/s1/fees/f2")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestSweepConsistentStudentIsNoop(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, "students/s1", map[string]any{"id": "s1"}))
	fields := map[string]any{"id": "f1", "studentId": "s1", "amount": 100.0}
	require.NoError(t, store.Set(ctx, "students/s1/fees/f1", fields))
	require.NoError(t, store.Set(ctx, "fees/f1", fields))

	require.NoError(t, NewSweeper(store).SweepStudent(ctx, "s1"))

	scoped, err := store.List(ctx, "students/s1/fees", "", 50)
	require.NoError(t, err)
	global, err := store.List(ctx, "fees", "", 50)
	require.NoError(t, err)
	assert.Len(t, scoped, 1)
	assert.Len(t, global, 1)
}

func TestSweepAllCoversKnownAndOrphanedOwners(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	// s1 exists and lost a global copy
	require.NoError(t, store.Set(ctx, "students/s1", map[string]any{"id": "s1"}))
	require.NoError(t, store.Set(ctx, "students/s1/fees/f1", map[string]any{"id": "f1", "studentId": "s1"}))

	// s2 is deleted but left a dangling global record
	require.NoError(t, store.Set(ctx, "fees/f9", map[string]any{"id": "f9", "studentId": "s2"}))

	require.NoError(t, NewSweeper(store).SweepAll(ctx))

	_, err := store.Get(ctx, "fees/f1")
	assert.NoError(t, err, "missing global copy restored")
	_, err = store.Get(ctx, "fees/f9")
	assert.ErrorIs(t, err, docstore.ErrNotFound, "dangling record removed")
}

func TestSweepStudentRequiresUID(t *testing.T) {
	assert.Error(t, NewSweeper(docstore.NewMemory()).SweepStudent(context.Background(), ""))
}
