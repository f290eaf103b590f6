package models

import "time"

// Agent is a registered command executor. Agents poll the backend for work;
// the backend never pushes to them.
type Agent struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:191;not null"`
	Hostname    string `gorm:"size:191"`
	OSName      string `gorm:"size:64"`
	Arch        string `gorm:"size:32"`
	Description string `gorm:"size:512"`
	Enabled     bool   `gorm:"default:true"`
	LastSeenAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
