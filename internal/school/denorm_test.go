package school

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/docstore"
)

func TestUpsertWritesBothCopies(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	d := NewDenormalizer(store)

	err := d.Upsert(ctx, KindFee, "s1", map[string]any{
		"id":         "f1",
		"amount":     1000.0,
		"amountPaid": 1000.0,
	})
	require.NoError(t, err)

	scoped, err := store.Get(ctx, "students/s1/fees/f1")
	require.NoError(t, err)
	global, err := store.Get(ctx, "fees/f1")
	require.NoError(t, err)

	// field-identical copies, location aside
	assert.Equal(t, scoped.Fields, global.Fields)
	assert.Equal(t, "s1", global.Fields["studentId"])
	assert.NotEmpty(t, global.Fields["createdAt"], "writer stamps a creation time")
}

func TestUpsertSharesOneTimestamp(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	d := NewDenormalizer(store)

	require.NoError(t, d.Upsert(ctx, KindResult, "s1", map[string]any{"id": "r1", "grade": "A"}))

	scoped, err := store.Get(ctx, "students/s1/academicResults/r1")
	require.NoError(t, err)
	global, err := store.Get(ctx, "academicResults/r1")
	require.NoError(t, err)
	assert.Equal(t, scoped.Fields["createdAt"], global.Fields["createdAt"])
}

func TestUpsertSameIDUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	d := NewDenormalizer(store)

	require.NoError(t, d.Upsert(ctx, KindFee, "s1", map[string]any{"id": "f1", "amount": 100.0}))
	require.NoError(t, d.Upsert(ctx, KindFee, "s1", map[string]any{"id": "f1", "amount": 250.0}))

	docs, err := store.List(ctx, "fees", "", 50)
	require.NoError(t, err)
	require.Len(t, docs, 1, "reusing the id must update, not duplicate")
	assert.Equal(t, 250.0, docs[0].Fields["amount"])
}

func TestUpsertRejectsMissingIDs(t *testing.T) {
	d := NewDenormalizer(docstore.NewMemory())
	assert.Error(t, d.Upsert(context.Background(), KindFee, "", map[string]any{"id": "f1"}))
	assert.Error(t, d.Upsert(context.Background(), KindFee, "s1", map[string]any{}))
	assert.Error(t, d.Upsert(context.Background(), RecordKind("unknown"), "s1", map[string]any{"id": "x"}))
}

func TestRemoveDeletesBothCopies(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	d := NewDenormalizer(store)

	require.NoError(t, d.Upsert(ctx, KindFee, "s1", map[string]any{"id": "f1", "amount": 100.0}))
	require.NoError(t, d.Remove(ctx, KindFee, "s1", "f1"))

	_, err := store.Get(ctx, "students/s1/fees/f1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = store.Get(ctx, "fees/f1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	// repeat removal converges, no error
	assert.NoError(t, d.Remove(ctx, KindFee, "s1", "f1"))
}
