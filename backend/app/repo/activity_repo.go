package repo

import (
	"github.com/moonseeker1/agent-manage/backend/app/models"

	"gorm.io/gorm"
)

type ActivityRepository struct{ db *gorm.DB }

func NewActivityRepository(db *gorm.DB) *ActivityRepository { return &ActivityRepository{db: db} }

func (r *ActivityRepository) Create(a *models.AgentActivity) error { return r.db.Create(a).Error }

func (r *ActivityRepository) LatestByAgent(agentID string, limit int) ([]models.AgentActivity, error) {
	if limit <= 0 {
		limit = 1
	}
	var acts []models.AgentActivity
	err := r.db.Where("agent_id = ?", agentID).Order("id DESC").Limit(limit).Find(&acts).Error
	return acts, err
}
