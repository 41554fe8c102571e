package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Kind: KindReconcileStudent, StudentID: "s1"}))
	require.NoError(t, q.Publish(ctx, Message{Kind: KindReconcileAll}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-msgs
	assert.Equal(t, KindReconcileStudent, first.Kind)
	assert.Equal(t, "s1", first.StudentID)

	second := <-msgs
	assert.Equal(t, KindReconcileAll, second.Kind)
	assert.Empty(t, second.StudentID)
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Kind: KindReconcileAll}))
	// queue full, publish must give up when the context expires
	err := q.Publish(ctx, Message{Kind: KindReconcileAll})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
