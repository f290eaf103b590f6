package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/controllers"
	jwtutil "github.com/moonseeker1/agent-manage/backend/app/jwt"
	"github.com/moonseeker1/agent-manage/backend/app/middleware"
	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/notify"
	"github.com/moonseeker1/agent-manage/backend/app/queue"
	"github.com/moonseeker1/agent-manage/backend/app/repo"
	"github.com/moonseeker1/agent-manage/backend/app/services"
	"github.com/moonseeker1/agent-manage/backend/global"
	"github.com/moonseeker1/agent-manage/backend/router"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type apiHarness struct {
	srv        *httptest.Server
	adminToken string
	userToken  string
	agentID    string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	global.Logger = zerolog.Nop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.User{}, &models.Agent{}, &models.AgentCommand{}, &models.AgentActivity{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	q := queue.NewCommandQueue(rdb, time.Hour)
	w := queue.NewTimeoutWatch(rdb)
	c := queue.NewResultCache(rdb, time.Hour, time.Minute)

	userSvc := services.NewUserService(repo.NewUserRepository(gdb))
	agentRepo := repo.NewAgentRepository(gdb)
	agentSvc := services.NewAgentService(agentRepo)
	actSvc := services.NewActivityService(repo.NewActivityRepository(gdb), 50)
	cmdSvc := services.NewCommandService(repo.NewAgentCommandRepository(gdb), agentRepo, q, w, c, notify.Noop{}, services.CommandServiceOptions{})

	require.NoError(t, userSvc.EnsureAdmin("admin", "admin123"))
	require.NoError(t, userSvc.CreateUser("viewer", "viewer123", "user"))

	agent := models.Agent{Name: "test-agent", Hostname: "host-1"}
	require.NoError(t, agentSvc.Register(&agent))

	signer := &jwtutil.Signer{Secret: []byte("test-secret"), Issuer: "agent-manage", ExpMin: 60}
	mw := &middleware.Auth{Signer: signer}

	h := router.NewRouter(
		controllers.NewAuthController(userSvc, signer),
		controllers.NewAdminController(userSvc),
		controllers.NewAgentController(agentSvc),
		controllers.NewCommandController(cmdSvc),
		controllers.NewActivityController(actSvc),
		mw,
	)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	har := &apiHarness{srv: srv, agentID: agent.ID}
	har.adminToken = har.login(t, "admin", "admin123")
	har.userToken = har.login(t, "viewer", "viewer123")
	return har
}

func (h *apiHarness) login(t *testing.T, username, password string) string {
	t.Helper()
	body, status := h.request(t, http.MethodPost, "/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body, &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func (h *apiHarness) request(t *testing.T, method, path, token string, payload any) ([]byte, int) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return raw, resp.StatusCode
}

func TestAPI_CommandLifecycle(t *testing.T) {
	h := newAPIHarness(t)

	// enqueue (admin)
	body, status := h.request(t, http.MethodPost, "/agents/"+h.agentID+"/commands", h.adminToken, map[string]any{
		"type": "shell", "content": map[string]string{"command": "uptime"}, "priority": 10, "timeout": 60,
	})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		CommandID string `json:"command_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.CommandID)

	// agent polls unauthenticated
	body, status = h.request(t, http.MethodGet, "/agents/"+h.agentID+"/commands?limit=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	var fetched struct {
		Commands []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"commands"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &fetched))
	require.Equal(t, 1, fetched.Count)
	assert.Equal(t, created.CommandID, fetched.Commands[0].ID)

	// progress then result, also unauthenticated
	_, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/progress", "", map[string]any{
		"progress": 50, "message": "working",
	})
	require.Equal(t, http.StatusOK, status)

	_, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/result", "", map[string]any{
		"status": "success", "output": "up 3 days",
	})
	require.Equal(t, http.StatusOK, status)

	// status poll serves the cached snapshots
	body, status = h.request(t, http.MethodGet, "/commands/"+created.CommandID+"/status", h.userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var st struct {
		Result *struct {
			Status string `json:"status"`
			Output string `json:"output"`
		} `json:"result"`
		Progress *struct {
			Progress int `json:"progress"`
		} `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(body, &st))
	require.NotNil(t, st.Result)
	assert.Equal(t, "success", st.Result.Status)
	assert.Equal(t, "up 3 days", st.Result.Output)
	require.NotNil(t, st.Progress)
	assert.Equal(t, 50, st.Progress.Progress)

	// history shows the terminal row
	body, status = h.request(t, http.MethodGet, "/commands/"+created.CommandID, h.userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var cmd struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &cmd))
	assert.Equal(t, "success", cmd.Status)
}

func TestAPI_CreateValidation(t *testing.T) {
	h := newAPIHarness(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing type", map[string]any{"priority": 5}},
		{"priority too high", map[string]any{"type": "shell", "priority": 101}},
		{"priority negative", map[string]any{"type": "shell", "priority": -1}},
		{"timeout too low", map[string]any{"type": "shell", "timeout": 5}},
		{"timeout too high", map[string]any{"type": "shell", "timeout": 4000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status := h.request(t, http.MethodPost, "/agents/"+h.agentID+"/commands", h.adminToken, tt.payload)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}

	_, status := h.request(t, http.MethodPost, "/agents/unknown-agent/commands", h.adminToken, map[string]any{"type": "shell"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_AdminGuards(t *testing.T) {
	h := newAPIHarness(t)

	// no token at all
	_, status := h.request(t, http.MethodPost, "/agents/"+h.agentID+"/commands", "", map[string]any{"type": "shell"})
	assert.Equal(t, http.StatusUnauthorized, status)

	// non-admin token
	_, status = h.request(t, http.MethodPost, "/agents/"+h.agentID+"/commands", h.userToken, map[string]any{"type": "shell"})
	assert.Equal(t, http.StatusForbidden, status)

	_, status = h.request(t, http.MethodPost, "/admin/users", h.userToken, map[string]string{"username": "x", "password": "y"})
	assert.Equal(t, http.StatusForbidden, status)

	// reads need some valid token
	_, status = h.request(t, http.MethodGet, "/commands", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	_, status = h.request(t, http.MethodGet, "/commands", h.userToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_RetryAndCancel(t *testing.T) {
	h := newAPIHarness(t)

	body, status := h.request(t, http.MethodPost, "/agents/"+h.agentID+"/commands", h.adminToken, map[string]any{
		"type": "shell", "max_retries": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		CommandID string `json:"command_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	// retry of a pending command is a state error
	_, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/retry", h.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// fail it, then retry succeeds
	_, status = h.request(t, http.MethodGet, "/agents/"+h.agentID+"/commands", "", nil)
	require.Equal(t, http.StatusOK, status)
	_, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/result", "", map[string]any{
		"status": "error", "error_message": "exit 1",
	})
	require.Equal(t, http.StatusOK, status)

	body, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/retry", h.adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var retried struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &retried))
	assert.EqualValues(t, 1, retried.Data["retry_count"])

	// cancel the re-queued command
	_, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/cancel", h.adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	// cancelling again is a state error
	_, status = h.request(t, http.MethodPost, "/commands/"+created.CommandID+"/cancel", h.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	_, status = h.request(t, http.MethodPost, "/commands/no-such-id/cancel", h.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_FetchLimitValidation(t *testing.T) {
	h := newAPIHarness(t)

	_, status := h.request(t, http.MethodGet, "/agents/"+h.agentID+"/commands?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	_, status = h.request(t, http.MethodGet, "/agents/"+h.agentID+"/commands?limit=51", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	_, status = h.request(t, http.MethodGet, "/agents/"+h.agentID+"/commands?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ActivityFeed(t *testing.T) {
	h := newAPIHarness(t)

	_, status := h.request(t, http.MethodPost, "/agents/"+h.agentID+"/activities", "", map[string]any{
		"action": "scan", "thought": "checking disks", "status": "running",
	})
	require.Equal(t, http.StatusCreated, status)

	_, status = h.request(t, http.MethodPost, "/agents/"+h.agentID+"/activities", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	body, status := h.request(t, http.MethodGet, "/agents/"+h.agentID+"/activities?limit=10", h.userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var acts []struct {
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(body, &acts))
	require.Len(t, acts, 1)
	assert.Equal(t, "scan", acts[0].Action)
}

func TestAPI_StatsSummary(t *testing.T) {
	h := newAPIHarness(t)

	for i := 0; i < 3; i++ {
		_, status := h.request(t, http.MethodPost, "/agents/"+h.agentID+"/commands", h.adminToken, map[string]any{"type": "shell"})
		require.Equal(t, http.StatusCreated, status)
	}

	body, status := h.request(t, http.MethodGet, "/commands/stats/summary?agent_id="+h.agentID, h.userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var stats struct {
		StatusCounts map[string]int64 `json:"status_counts"`
		QueueDepth   int64            `json:"queue_depth"`
		Total        int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.EqualValues(t, 3, stats.StatusCounts["pending"])
	assert.EqualValues(t, 3, stats.QueueDepth)
	assert.EqualValues(t, 3, stats.Total)
}
