package models

import "time"

// AgentActivity is one free-form activity report from an agent (what it is
// doing, what it is thinking). Durable so the feed survives restarts; recent
// entries are additionally cached in memory, see services.ActivityService.
type AgentActivity struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   string `gorm:"size:36;index;not null"`
	Action    string `gorm:"size:191"`
	Thought   string `gorm:"type:longtext"`
	Status    string `gorm:"size:32"`
	Detail    string `gorm:"type:longtext"` // opaque JSON
	CreatedAt time.Time
}
