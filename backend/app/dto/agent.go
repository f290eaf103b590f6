package dto

import (
	"encoding/json"
	"time"
)

type AgentRequest struct {
	Name        string `json:"name"`
	Hostname    string `json:"hostname"`
	OSName      string `json:"os_name"`
	Arch        string `json:"arch"`
	Description string `json:"description"`
}

type ActivityRequest struct {
	Action  string          `json:"action"`
	Thought string          `json:"thought,omitempty"`
	Status  string          `json:"status,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

type ActivityResponse struct {
	ID        uint            `json:"id"`
	AgentID   string          `json:"agent_id"`
	Action    string          `json:"action"`
	Thought   string          `json:"thought,omitempty"`
	Status    string          `json:"status,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
