package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/dto"
	"github.com/moonseeker1/agent-manage/backend/app/models"
)

// Session is an authenticated HTTP client against the backend API. A zero
// Token means not logged in yet.
type Session struct {
	BaseURL string
	Token   string
	http    *http.Client
}

func NewSession(baseURL string) *Session {
	return &Session{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Session) do(method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.BaseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (s *Session) Login(username, password string) error {
	var tok dto.TokenResponse
	if err := s.do(http.MethodPost, "/login", dto.LoginRequest{Username: username, Password: password}, &tok); err != nil {
		return err
	}
	s.Token = tok.AccessToken
	return nil
}

func (s *Session) ListAgents() ([]models.Agent, error) {
	var agents []models.Agent
	err := s.do(http.MethodGet, "/agents", nil, &agents)
	return agents, err
}

func (s *Session) GetAgent(id string) (*models.Agent, error) {
	var a models.Agent
	if err := s.do(http.MethodGet, "/agents/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) ListCommands(agentID string, pageSize int) (*dto.CommandListResponse, error) {
	var resp dto.CommandListResponse
	path := fmt.Sprintf("/commands?agent_id=%s&page_size=%d", url.QueryEscape(agentID), pageSize)
	if err := s.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Session) EnqueueCommand(agentID string, req dto.CommandCreateRequest) (string, error) {
	var resp dto.CommandCreateResponse
	if err := s.do(http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/commands", req, &resp); err != nil {
		return "", err
	}
	return resp.CommandID, nil
}

func (s *Session) RetryCommand(id string) error {
	return s.do(http.MethodPost, "/commands/"+url.PathEscape(id)+"/retry", nil, nil)
}

func (s *Session) CancelCommand(id string) error {
	return s.do(http.MethodPost, "/commands/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (s *Session) CommandStats(agentID string) (*dto.CommandStatsResponse, error) {
	var resp dto.CommandStatsResponse
	path := "/commands/stats/summary"
	if agentID != "" {
		path += "?agent_id=" + url.QueryEscape(agentID)
	}
	if err := s.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Session) RecentActivities(agentID string, limit int) ([]dto.ActivityResponse, error) {
	var acts []dto.ActivityResponse
	path := fmt.Sprintf("/agents/%s/activities?limit=%d", url.PathEscape(agentID), limit)
	err := s.do(http.MethodGet, path, nil, &acts)
	return acts, err
}
