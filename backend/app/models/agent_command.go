package models

import "time"

// Command statuses. Pending and Executing are the only non-terminal states;
// everything else is final.
const (
	StatusPending   = "pending"
	StatusExecuting = "executing"
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

// AgentCommand is the durable record of one command issued to an agent. The
// row is the source of truth; the Redis queue and timeout entries are derived
// from it.
type AgentCommand struct {
	ID      string `gorm:"primaryKey;size:36"`
	AgentID string `gorm:"size:36;index;not null"`

	Type    string `gorm:"size:50;not null"`
	Content string `gorm:"type:longtext"` // opaque JSON payload, forwarded verbatim

	Status   string `gorm:"size:20;index;default:pending"`
	Priority int    `gorm:"default:0"` // higher is served first
	Timeout  int    `gorm:"default:300"`

	Output          string `gorm:"type:longtext"`
	Progress        int    `gorm:"default:0"`
	ProgressMessage string `gorm:"size:1024"`
	ErrorMessage    string `gorm:"size:1024"`
	RetryCount      int    `gorm:"default:0"`
	MaxRetries      int    `gorm:"default:3"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Terminal reports whether the status admits no further transitions.
func Terminal(status string) bool {
	switch status {
	case StatusSuccess, StatusError, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Retriable commands are the ones Retry accepts: failed or timed out.
func Retriable(status string) bool {
	return status == StatusError || status == StatusTimeout
}
