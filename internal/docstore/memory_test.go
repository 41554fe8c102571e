package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "students/s1", map[string]any{"firstName": "Ada", "age": 12}))

	doc, err := m.Get(ctx, "students/s1")
	require.NoError(t, err)
	assert.Equal(t, "students/s1", doc.Path)
	assert.Equal(t, "s1", doc.ID())
	assert.Equal(t, "Ada", doc.Fields["firstName"])
	// numbers normalize to float64, same as any JSON document store
	assert.Equal(t, float64(12), doc.Fields["age"])
}

func TestMemoryGetAbsent(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "students/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	assert.NoError(t, m.Delete(ctx, "students/nope"))
	assert.NoError(t, m.DeleteBatch(ctx, []string{"a/b", "c/d"}))
}

func TestMemoryListOrderingAndCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, id := range []string{"c", "a", "b", "d"} {
		require.NoError(t, m.Set(ctx, "fees/"+id, map[string]any{"id": id}))
	}
	// unrelated collections must not leak in
	require.NoError(t, m.Set(ctx, "students/s1/fees/x", map[string]any{"id": "x"}))

	page, err := m.List(ctx, "fees", "", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "fees/a", page[0].Path)
	assert.Equal(t, "fees/b", page[1].Path)
	assert.Equal(t, "fees/c", page[2].Path)

	rest, err := m.List(ctx, "fees", page[2].Path, 3)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "fees/d", rest[0].Path)
}

func TestMemoryQueryEquality(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "fees/f1", map[string]any{"studentId": "s1"}))
	require.NoError(t, m.Set(ctx, "fees/f2", map[string]any{"studentId": "s2"}))
	require.NoError(t, m.Set(ctx, "fees/f3", map[string]any{"studentId": "s1"}))

	docs, err := m.Query(ctx, "fees", "studentId", "s1", "", 50)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "fees/f1", docs[0].Path)
	assert.Equal(t, "fees/f3", docs[1].Path)
}

func TestMemoryCloneIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fields := map[string]any{"name": "Year 1"}
	require.NoError(t, m.Set(ctx, "classes/c1", fields))

	fields["name"] = "mutated"
	doc, err := m.Get(ctx, "classes/c1")
	require.NoError(t, err)
	assert.Equal(t, "Year 1", doc.Fields["name"])

	doc.Fields["name"] = "mutated again"
	again, err := m.Get(ctx, "classes/c1")
	require.NoError(t, err)
	assert.Equal(t, "Year 1", again.Fields["name"])
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "f1", PathID("students/s1/fees/f1"))
	assert.Equal(t, "students/s1/fees", PathCollection("students/s1/fees/f1"))
	assert.Equal(t, "", PathCollection("fees"))
	assert.Equal(t, "students/s1/fees/f1", Join("students", "s1", "fees", "f1"))
}
