package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/moonseeker1/agent-manage/backend/app/dto"
	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/services"
)

type AgentController struct{ Agents *services.AgentService }

func NewAgentController(agents *services.AgentService) *AgentController {
	return &AgentController{Agents: agents}
}

func (c *AgentController) List(w http.ResponseWriter, r *http.Request) {
	agents, err := c.Agents.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (c *AgentController) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	a := models.Agent{
		Name: req.Name, Hostname: req.Hostname, OSName: req.OSName,
		Arch: req.Arch, Description: req.Description, Enabled: true,
	}
	if err := c.Agents.Register(&a); err != nil {
		writeError(w, http.StatusInternalServerError, "register failed")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (c *AgentController) Get(w http.ResponseWriter, r *http.Request) {
	a, err := c.Agents.FindByID(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (c *AgentController) Update(w http.ResponseWriter, r *http.Request) {
	a, err := c.Agents.FindByID(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req dto.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Name != "" {
		a.Name = req.Name
	}
	a.Hostname = req.Hostname
	a.OSName = req.OSName
	a.Arch = req.Arch
	a.Description = req.Description
	if err := c.Agents.Update(a); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (c *AgentController) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := c.Agents.FindByID(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := c.Agents.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *AgentController) Enable(w http.ResponseWriter, r *http.Request) {
	c.setEnabled(w, r, true)
}

func (c *AgentController) Disable(w http.ResponseWriter, r *http.Request) {
	c.setEnabled(w, r, false)
}

func (c *AgentController) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := r.PathValue("id")
	if _, err := c.Agents.FindByID(id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := c.Agents.SetEnabled(id, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}
