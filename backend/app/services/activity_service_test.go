package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newActivityService(t *testing.T, capacity int) *ActivityService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.AgentActivity{}))
	return NewActivityService(repo.NewActivityRepository(gdb), capacity)
}

func TestActivityService_RecentNewestFirst(t *testing.T) {
	svc := newActivityService(t, 10)

	for i := 1; i <= 3; i++ {
		require.NoError(t, svc.Record(&models.AgentActivity{
			AgentID: "agent-1",
			Action:  fmt.Sprintf("step-%d", i),
		}))
	}

	got, err := svc.Recent("agent-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "step-3", got[0].Action)
	assert.Equal(t, "step-2", got[1].Action)
	assert.Equal(t, "step-1", got[2].Action)
}

func TestActivityService_RingIsBounded(t *testing.T) {
	svc := newActivityService(t, 5)

	for i := 1; i <= 12; i++ {
		require.NoError(t, svc.Record(&models.AgentActivity{
			AgentID: "agent-1",
			Action:  fmt.Sprintf("step-%d", i),
		}))
	}

	got, err := svc.Recent("agent-1", 100)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "step-12", got[0].Action)
	assert.Equal(t, "step-8", got[4].Action)
}

func TestActivityService_RingsAreIsolatedPerAgent(t *testing.T) {
	svc := newActivityService(t, 5)

	require.NoError(t, svc.Record(&models.AgentActivity{AgentID: "agent-1", Action: "one"}))
	require.NoError(t, svc.Record(&models.AgentActivity{AgentID: "agent-2", Action: "two"}))

	got, err := svc.Recent("agent-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Action)
}

func TestActivityService_FallsBackToStoreWhenRingCold(t *testing.T) {
	svc := newActivityService(t, 5)

	require.NoError(t, svc.repo.Create(&models.AgentActivity{AgentID: "agent-1", Action: "persisted"}))

	got, err := svc.Recent("agent-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].Action)
}
