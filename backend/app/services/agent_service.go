package services

import (
	"errors"

	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/repo"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AgentService struct{ agents *repo.AgentRepository }

func NewAgentService(agents *repo.AgentRepository) *AgentService {
	return &AgentService{agents: agents}
}

func (s *AgentService) Register(a *models.Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.agents.Create(a)
}

func (s *AgentService) Update(a *models.Agent) error { return s.agents.Save(a) }

func (s *AgentService) FindByID(id string) (*models.Agent, error) {
	a, err := s.agents.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AgentService) ListAll() ([]models.Agent, error) { return s.agents.ListAll() }

func (s *AgentService) Delete(id string) error { return s.agents.Delete(id) }

func (s *AgentService) SetEnabled(id string, enabled bool) error {
	return s.agents.SetEnabled(id, enabled)
}
