package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_ResultRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewResultCache(newTestRedis(t), time.Hour, time.Minute)

	got, err := c.GetResult(ctx, "cmd-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := CommandResult{Status: "success", Output: "done", CompletedAt: "2026-08-31T10:00:00Z"}
	require.NoError(t, c.SetResult(ctx, "cmd-1", want))

	got, err = c.GetResult(ctx, "cmd-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestResultCache_ProgressOverwrite(t *testing.T) {
	ctx := context.Background()
	c := NewResultCache(newTestRedis(t), time.Hour, time.Minute)

	require.NoError(t, c.SetProgress(ctx, "cmd-1", 30, "extracting"))
	require.NoError(t, c.SetProgress(ctx, "cmd-1", 70, "uploading"))

	got, err := c.GetProgress(ctx, "cmd-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 70, got.Progress)
	assert.Equal(t, "uploading", got.Message)
	assert.NotZero(t, got.Timestamp)
}

func TestResultCache_MissingProgress(t *testing.T) {
	ctx := context.Background()
	c := NewResultCache(newTestRedis(t), time.Hour, time.Minute)

	got, err := c.GetProgress(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}
