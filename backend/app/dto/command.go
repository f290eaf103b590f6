package dto

import (
	"encoding/json"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/queue"
)

type CommandCreateRequest struct {
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content,omitempty"`
	Priority   int             `json:"priority"`
	Timeout    int             `json:"timeout"`
	MaxRetries int             `json:"max_retries"`
}

type CommandCreateResponse struct {
	CommandID string `json:"command_id"`
}

type CommandResultRequest struct {
	Status       string `json:"status"`
	Output       string `json:"output,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type CommandProgressRequest struct {
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// CommandQueueItem is what a polling agent receives.
type CommandQueueItem struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	Priority  int             `json:"priority"`
	Timeout   int             `json:"timeout"`
	Timestamp int64           `json:"timestamp"`
}

type CommandQueueResponse struct {
	Commands []CommandQueueItem `json:"commands"`
	Count    int                `json:"count"`
}

type CommandResponse struct {
	ID              string          `json:"id"`
	AgentID         string          `json:"agent_id"`
	Type            string          `json:"type"`
	Content         json.RawMessage `json:"content"`
	Status          string          `json:"status"`
	Priority        int             `json:"priority"`
	Timeout         int             `json:"timeout"`
	Output          string          `json:"output,omitempty"`
	Progress        int             `json:"progress"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func NewCommandResponse(cmd *models.AgentCommand) CommandResponse {
	content := json.RawMessage(cmd.Content)
	if len(content) == 0 {
		content = json.RawMessage(`{}`)
	}
	return CommandResponse{
		ID:              cmd.ID,
		AgentID:         cmd.AgentID,
		Type:            cmd.Type,
		Content:         content,
		Status:          cmd.Status,
		Priority:        cmd.Priority,
		Timeout:         cmd.Timeout,
		Output:          cmd.Output,
		Progress:        cmd.Progress,
		ProgressMessage: cmd.ProgressMessage,
		ErrorMessage:    cmd.ErrorMessage,
		RetryCount:      cmd.RetryCount,
		MaxRetries:      cmd.MaxRetries,
		CreatedAt:       cmd.CreatedAt,
		StartedAt:       cmd.StartedAt,
		CompletedAt:     cmd.CompletedAt,
		UpdatedAt:       cmd.UpdatedAt,
	}
}

type CommandListResponse struct {
	Items    []CommandResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type CommandStatusResponse struct {
	Result   *queue.CommandResult   `json:"result,omitempty"`
	Progress *queue.CommandProgress `json:"progress,omitempty"`
}

type CommandStatsResponse struct {
	StatusCounts map[string]int64 `json:"status_counts"`
	QueueDepth   int64            `json:"queue_depth"`
	Total        int64            `json:"total"`
}

type SimpleResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
