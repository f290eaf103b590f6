package services

import (
	"sync"

	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/repo"
)

// activityRing keeps the last N activities for one agent in memory. Fixed
// capacity, oldest entries overwritten; it can never grow with traffic.
type activityRing struct {
	buf  []models.AgentActivity
	next int
	full bool
}

func (r *activityRing) add(a models.AgentActivity) {
	r.buf[r.next] = a
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// latest returns up to n entries, newest first.
func (r *activityRing) latest(n int) []models.AgentActivity {
	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if n > size {
		n = size
	}
	out := make([]models.AgentActivity, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}

// ActivityService records agent activity reports durably and mirrors the
// recent tail per agent into a bounded ring buffer, so the "what is this
// agent doing" read stays cheap without unbounded process memory.
type ActivityService struct {
	repo     *repo.ActivityRepository
	capacity int

	mu    sync.RWMutex
	rings map[string]*activityRing
}

func NewActivityService(r *repo.ActivityRepository, capacity int) *ActivityService {
	if capacity <= 0 {
		capacity = 100
	}
	return &ActivityService{repo: r, capacity: capacity, rings: make(map[string]*activityRing)}
}

func (s *ActivityService) Record(a *models.AgentActivity) error {
	if err := s.repo.Create(a); err != nil {
		return err
	}
	s.mu.Lock()
	ring, ok := s.rings[a.AgentID]
	if !ok {
		ring = &activityRing{buf: make([]models.AgentActivity, s.capacity)}
		s.rings[a.AgentID] = ring
	}
	ring.add(*a)
	s.mu.Unlock()
	return nil
}

// Recent returns the newest activities for an agent. The ring serves warm
// reads; after a restart it falls through to the durable store.
func (s *ActivityService) Recent(agentID string, limit int) ([]models.AgentActivity, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	ring, ok := s.rings[agentID]
	var cached []models.AgentActivity
	if ok {
		cached = ring.latest(limit)
	}
	s.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}
	return s.repo.LatestByAgent(agentID, limit)
}
