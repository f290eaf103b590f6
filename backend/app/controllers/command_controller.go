package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/dto"
	"github.com/moonseeker1/agent-manage/backend/app/middleware"
	"github.com/moonseeker1/agent-manage/backend/app/repo"
	"github.com/moonseeker1/agent-manage/backend/app/services"
	"github.com/moonseeker1/agent-manage/backend/global"
)

type CommandController struct {
	Commands *services.CommandService
}

func NewCommandController(commands *services.CommandService) *CommandController {
	return &CommandController{Commands: commands}
}

// Create handles POST /agents/{id}/commands (admin).
func (c *CommandController) Create(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	var req dto.CommandCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.Priority < 0 || req.Priority > 100 {
		writeError(w, http.StatusBadRequest, "priority must be 0-100")
		return
	}
	if req.Timeout != 0 && (req.Timeout < 10 || req.Timeout > 3600) {
		writeError(w, http.StatusBadRequest, "timeout must be 10-3600 seconds")
		return
	}

	id, err := c.Commands.Enqueue(r.Context(), services.EnqueueInput{
		AgentID:    agentID,
		Type:       req.Type,
		Content:    req.Content,
		Priority:   req.Priority,
		Timeout:    req.Timeout,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		global.Logger.Info().Str("user", claims.Username).Str("agent", agentID).Str("command", id).Msg("command enqueued")
	}
	writeJSON(w, http.StatusCreated, dto.CommandCreateResponse{CommandID: id})
}

// Fetch handles GET /agents/{id}/commands?limit=, the agent poll. No auth:
// it is called by the executing agent itself.
func (c *CommandController) Fetch(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be 1-50")
			return
		}
		limit = n
	}

	entries, err := c.Commands.Fetch(r.Context(), agentID, limit)
	if err != nil {
		global.Logger.Error().Err(err).Str("agent", agentID).Msg("fetch commands")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]dto.CommandQueueItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.CommandQueueItem{
			ID: e.ID, Type: e.Type, Content: e.Content,
			Priority: e.Priority, Timeout: e.Timeout, Timestamp: e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, dto.CommandQueueResponse{Commands: items, Count: len(items)})
}

// SubmitResult handles POST /commands/{id}/result (agent-facing).
func (c *CommandController) SubmitResult(w http.ResponseWriter, r *http.Request) {
	commandID := r.PathValue("id")
	var req dto.CommandResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if err := c.Commands.SubmitResult(r.Context(), commandID, req.Status, req.Output, req.ErrorMessage); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SimpleResponse{Success: true, Message: "result recorded"})
}

// ReportProgress handles POST /commands/{id}/progress (agent-facing).
func (c *CommandController) ReportProgress(w http.ResponseWriter, r *http.Request) {
	commandID := r.PathValue("id")
	var req dto.CommandProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		writeError(w, http.StatusBadRequest, "progress must be 0-100")
		return
	}
	if err := c.Commands.ReportProgress(r.Context(), commandID, req.Progress, req.Message); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SimpleResponse{Success: true, Message: "progress recorded"})
}

// Retry handles POST /commands/{id}/retry (admin).
func (c *CommandController) Retry(w http.ResponseWriter, r *http.Request) {
	commandID := r.PathValue("id")
	count, err := c.Commands.Retry(r.Context(), commandID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SimpleResponse{
		Success: true,
		Message: "command re-queued",
		Data:    map[string]any{"retry_count": count},
	})
}

// Cancel handles POST /commands/{id}/cancel (admin).
func (c *CommandController) Cancel(w http.ResponseWriter, r *http.Request) {
	commandID := r.PathValue("id")
	if err := c.Commands.Cancel(r.Context(), commandID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SimpleResponse{Success: true, Message: "command cancelled"})
}

// List handles GET /commands with optional filters.
func (c *CommandController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.CommandFilter{
		AgentID: q.Get("agent_id"),
		Status:  q.Get("status"),
		Type:    q.Get("type"),
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	cmds, total, err := c.Commands.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]dto.CommandResponse, 0, len(cmds))
	for i := range cmds {
		items = append(items, dto.NewCommandResponse(&cmds[i]))
	}
	writeJSON(w, http.StatusOK, dto.CommandListResponse{
		Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize,
	})
}

// Get handles GET /commands/{id}.
func (c *CommandController) Get(w http.ResponseWriter, r *http.Request) {
	cmd, err := c.Commands.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewCommandResponse(cmd))
}

// Status handles GET /commands/{id}/status: the cache-backed fast poll.
func (c *CommandController) Status(w http.ResponseWriter, r *http.Request) {
	res, prog, err := c.Commands.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dto.CommandStatusResponse{Result: res, Progress: prog})
}

// Stats handles GET /commands/stats/summary?agent_id=.
func (c *CommandController) Stats(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	counts, depth, err := c.Commands.Stats(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, dto.CommandStatsResponse{StatusCounts: counts, QueueDepth: depth, Total: total})
}
