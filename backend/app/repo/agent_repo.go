package repo

import (
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"

	"gorm.io/gorm"
)

type AgentRepository struct{ db *gorm.DB }

func NewAgentRepository(db *gorm.DB) *AgentRepository { return &AgentRepository{db: db} }

func (r *AgentRepository) Create(a *models.Agent) error { return r.db.Create(a).Error }

func (r *AgentRepository) Save(a *models.Agent) error { return r.db.Save(a).Error }

func (r *AgentRepository) FindByID(id string) (*models.Agent, error) {
	var a models.Agent
	if err := r.db.Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) ListAll() ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.Order("created_at ASC").Find(&agents).Error
	return agents, err
}

func (r *AgentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Agent{}).Error
}

func (r *AgentRepository) SetEnabled(id string, enabled bool) error {
	return r.db.Model(&models.Agent{}).Where("id = ?", id).Update("enabled", enabled).Error
}

// TouchLastSeen records that the agent just polled.
func (r *AgentRepository) TouchLastSeen(id string, at time.Time) error {
	return r.db.Model(&models.Agent{}).Where("id = ?", id).Update("last_seen_at", at).Error
}
