package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func qc(id string, priority int, ts int64) QueuedCommand {
	return QueuedCommand{
		ID:        id,
		Type:      "shell",
		Content:   json.RawMessage(`{"command":"uptime"}`),
		Priority:  priority,
		Timeout:   300,
		Timestamp: ts,
	}
}

func TestCommandQueue_PopHighestPriorityFirst(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	base := time.Now().UnixMilli()
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("low", 0, base)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("high", 90, base+1)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("mid", 50, base+2)))

	var got []string
	for {
		cmd, err := q.PopHighest(ctx, "agent-1")
		require.NoError(t, err)
		if cmd == nil {
			break
		}
		got = append(got, cmd.ID)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, got)
}

func TestCommandQueue_EqualPriorityIsFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	base := time.Now().UnixMilli()
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("first", 50, base)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("second", 50, base+10)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("third", 50, base+20)))

	for _, want := range []string{"first", "second", "third"} {
		cmd, err := q.PopHighest(ctx, "agent-1")
		require.NoError(t, err)
		require.NotNil(t, cmd)
		assert.Equal(t, want, cmd.ID)
	}
}

func TestCommandQueue_PopIsDestructive(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("only", 10, 0)))

	cmd, err := q.PopHighest(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "only", cmd.ID)
	assert.Equal(t, 10, cmd.Priority)
	assert.JSONEq(t, `{"command":"uptime"}`, string(cmd.Content))

	cmd, err = q.PopHighest(ctx, "agent-1")
	require.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestCommandQueue_PopEmptyQueue(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	cmd, err := q.PopHighest(ctx, "no-such-agent")
	require.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestCommandQueue_PeekDoesNotRemove(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("head", 10, 0)))

	for i := 0; i < 2; i++ {
		cmd, err := q.PeekHighest(ctx, "agent-1")
		require.NoError(t, err)
		require.NotNil(t, cmd)
		assert.Equal(t, "head", cmd.ID)
	}

	n, err := q.Count(ctx, "agent-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCommandQueue_ListTop(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	base := time.Now().UnixMilli()
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("a", 10, base)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("b", 20, base)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("c", 30, base)))

	top, err := q.ListTop(ctx, "agent-1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].ID)
	assert.Equal(t, "b", top[1].ID)

	n, err := q.Count(ctx, "agent-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestCommandQueue_RemoveByID(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("keep", 10, 0)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("drop", 20, 0)))

	removed, err := q.RemoveByID(ctx, "agent-1", "drop")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.RemoveByID(ctx, "agent-1", "drop")
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err := q.Contains(ctx, "agent-1", "keep")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = q.Contains(ctx, "agent-1", "drop")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommandQueue_QueuesAreIsolatedPerAgent(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("one", 10, 0)))
	require.NoError(t, q.Enqueue(ctx, "agent-2", qc("two", 10, 0)))

	cmd, err := q.PopHighest(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "one", cmd.ID)

	n, err := q.Count(ctx, "agent-2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCommandQueue_DrainAll(t *testing.T) {
	ctx := context.Background()
	q := NewCommandQueue(newTestRedis(t), time.Hour)

	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("a", 10, 0)))
	require.NoError(t, q.Enqueue(ctx, "agent-1", qc("b", 20, 0)))

	n, err := q.DrainAll(ctx, "agent-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = q.Count(ctx, "agent-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
