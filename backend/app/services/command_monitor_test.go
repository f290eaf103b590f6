package services

import (
	"context"
	"testing"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expireDeadline replaces the armed entry with one already in the past so a
// sweep sees it immediately.
func expireDeadline(t *testing.T, env *testEnv, agentID, commandID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.watch.Disarm(ctx, agentID, commandID))
	require.NoError(t, env.watch.Arm(ctx, agentID, commandID, -time.Minute))
}

func TestCommandMonitor_SweepRequeuesWhenRetriesLeft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mon := NewCommandMonitor(env.svc, time.Second, 6)

	id := env.enqueue(t, EnqueueInput{Timeout: 10, MaxRetries: 2})
	_, err := env.svc.Fetch(ctx, "agent-1", 1)
	require.NoError(t, err)
	expireDeadline(t, env, "agent-1", id)

	require.NoError(t, mon.Sweep(ctx))

	cmd, err := env.commands.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, cmd.Status)
	assert.Equal(t, 1, cmd.RetryCount)
	assert.Nil(t, cmd.StartedAt)

	queued, err := env.queue.Contains(ctx, "agent-1", id)
	require.NoError(t, err)
	assert.True(t, queued)

	armed, err := env.watch.IsArmed(ctx, "agent-1", id)
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestCommandMonitor_SweepFailsWithTimeoutWhenRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mon := NewCommandMonitor(env.svc, time.Second, 6)

	id := env.enqueue(t, EnqueueInput{Timeout: 15, MaxRetries: 1})

	// first silence: requeued
	_, err := env.svc.Fetch(ctx, "agent-1", 1)
	require.NoError(t, err)
	expireDeadline(t, env, "agent-1", id)
	require.NoError(t, mon.Sweep(ctx))

	cmd, err := env.commands.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, cmd.Status)
	assert.Equal(t, 1, cmd.RetryCount)

	// second silence: retries exhausted, fails for good
	_, err = env.svc.Fetch(ctx, "agent-1", 1)
	require.NoError(t, err)
	expireDeadline(t, env, "agent-1", id)
	require.NoError(t, mon.Sweep(ctx))

	cmd, err = env.commands.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimeout, cmd.Status)
	require.NotNil(t, cmd.CompletedAt)
	assert.Contains(t, cmd.ErrorMessage, "timed out after 15 seconds")

	armed, err := env.watch.IsArmed(ctx, "agent-1", id)
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestCommandMonitor_SweepDropsStaleWatchEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mon := NewCommandMonitor(env.svc, time.Second, 6)

	id := env.enqueue(t, EnqueueInput{})
	_, err := env.svc.Fetch(ctx, "agent-1", 1)
	require.NoError(t, err)

	// the agent reported back but an expired watch entry lingers
	require.NoError(t, env.svc.SubmitResult(ctx, id, models.StatusSuccess, "ok", ""))
	require.NoError(t, env.watch.Arm(ctx, "agent-1", id, -time.Minute))

	require.NoError(t, mon.Sweep(ctx))

	cmd, err := env.commands.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, cmd.Status)
	assert.Equal(t, 0, cmd.RetryCount)

	armed, err := env.watch.IsArmed(ctx, "agent-1", id)
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestCommandMonitor_ReconcileRequeuesOrphanedPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mon := NewCommandMonitor(env.svc, time.Second, 1)

	id := env.enqueue(t, EnqueueInput{})

	// simulate a lost queue entry (expired key, crash between writes)
	_, err := env.queue.DrainAll(ctx, "agent-1")
	require.NoError(t, err)

	require.NoError(t, mon.Reconcile(ctx))

	queued, err := env.queue.Contains(ctx, "agent-1", id)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestCommandMonitor_ReconcileRearmsExecutingWithTimeLeft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mon := NewCommandMonitor(env.svc, time.Second, 1)

	id := env.enqueue(t, EnqueueInput{Timeout: 3600})
	_, err := env.svc.Fetch(ctx, "agent-1", 1)
	require.NoError(t, err)

	require.NoError(t, env.watch.Disarm(ctx, "agent-1", id))

	require.NoError(t, mon.Reconcile(ctx))

	armed, err := env.watch.IsArmed(ctx, "agent-1", id)
	require.NoError(t, err)
	assert.True(t, armed)

	cmd, err := env.commands.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuting, cmd.Status)
}

func TestCommandMonitor_ReconcileExpiresUnwatchedOverdueCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mon := NewCommandMonitor(env.svc, time.Second, 1)

	id := env.enqueue(t, EnqueueInput{Timeout: 30, MaxRetries: 1})
	_, err := env.svc.Fetch(ctx, "agent-1", 1)
	require.NoError(t, err)
	require.NoError(t, env.watch.Disarm(ctx, "agent-1", id))

	// push the start time past the deadline
	cmd, err := env.commands.FindByID(id)
	require.NoError(t, err)
	started := time.Now().Add(-time.Hour)
	cmd.StartedAt = &started
	require.NoError(t, env.commands.Save(cmd))

	require.NoError(t, mon.Reconcile(ctx))

	cmd, err = env.commands.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, cmd.Status, "first expiry re-queues")
	assert.Equal(t, 1, cmd.RetryCount)
}

func TestCommandMonitor_StartStop(t *testing.T) {
	env := newTestEnv(t)
	mon := NewCommandMonitor(env.svc, 10*time.Millisecond, 2)

	mon.Start()
	mon.Start() // second start is a no-op

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, mon.Stop(ctx))
	require.NoError(t, mon.Stop(ctx)) // stopping again is a no-op
}
