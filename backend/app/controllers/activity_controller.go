package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/moonseeker1/agent-manage/backend/app/dto"
	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/services"
)

type ActivityController struct{ Activities *services.ActivityService }

func NewActivityController(s *services.ActivityService) *ActivityController {
	return &ActivityController{Activities: s}
}

// Post handles POST /agents/{id}/activities, agents reporting what they do.
func (c *ActivityController) Post(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	var req dto.ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	a := models.AgentActivity{
		AgentID: agentID,
		Action:  req.Action,
		Thought: req.Thought,
		Status:  req.Status,
		Detail:  string(req.Detail),
	}
	if err := c.Activities.Record(&a); err != nil {
		writeError(w, http.StatusInternalServerError, "record failed")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetRecent handles GET /agents/{id}/activities?limit=.
func (c *ActivityController) GetRecent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	acts, err := c.Activities.Recent(agentID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]dto.ActivityResponse, 0, len(acts))
	for _, a := range acts {
		out = append(out, dto.ActivityResponse{
			ID: a.ID, AgentID: a.AgentID, Action: a.Action, Thought: a.Thought,
			Status: a.Status, Detail: json.RawMessage(a.Detail), CreatedAt: a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
