package repo

import (
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"

	"gorm.io/gorm"
)

type AgentCommandRepository struct {
	db *gorm.DB
}

func NewAgentCommandRepository(db *gorm.DB) *AgentCommandRepository {
	return &AgentCommandRepository{db: db}
}

func (r *AgentCommandRepository) Create(cmd *models.AgentCommand) error {
	return r.db.Create(cmd).Error
}

func (r *AgentCommandRepository) FindByID(id string) (*models.AgentCommand, error) {
	var cmd models.AgentCommand
	if err := r.db.Where("id = ?", id).First(&cmd).Error; err != nil {
		return nil, err
	}
	return &cmd, nil
}

func (r *AgentCommandRepository) Save(cmd *models.AgentCommand) error {
	return r.db.Save(cmd).Error
}

// CommandFilter narrows List; zero values mean "any".
type CommandFilter struct {
	AgentID  string
	Status   string
	Type     string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// List returns a page of commands newest-first plus the unpaged total.
func (r *AgentCommandRepository) List(f CommandFilter) ([]models.AgentCommand, int64, error) {
	q := r.db.Model(&models.AgentCommand{})
	if f.AgentID != "" {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	var cmds []models.AgentCommand
	err := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&cmds).Error
	return cmds, total, err
}

// ListExecuting returns in-flight commands that have actually been dispatched.
// The timeout monitor uses it as a fallback when watch entries were lost.
func (r *AgentCommandRepository) ListExecuting() ([]models.AgentCommand, error) {
	var cmds []models.AgentCommand
	err := r.db.Where("status = ? AND started_at IS NOT NULL", models.StatusExecuting).Find(&cmds).Error
	return cmds, err
}

// ListPending returns rows that should have a queue entry; used by the
// reconciliation sweep.
func (r *AgentCommandRepository) ListPending() ([]models.AgentCommand, error) {
	var cmds []models.AgentCommand
	err := r.db.Where("status = ?", models.StatusPending).Find(&cmds).Error
	return cmds, err
}

// CountByStatus returns command counts grouped by status, optionally scoped
// to one agent.
func (r *AgentCommandRepository) CountByStatus(agentID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	q := r.db.Model(&models.AgentCommand{}).Select("status, count(id) as count").Group("status")
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, v := range rows {
		out[v.Status] = v.Count
	}
	return out, nil
}
