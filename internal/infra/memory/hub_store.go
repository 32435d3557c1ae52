package memory

import (
	"sync"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
)

// HubStore is an in-memory implementation of app.HubRepository.
type HubStore struct {
	mu   sync.RWMutex
	hubs map[string]*app.Hub
}

func NewHubStore() *HubStore {
	return &HubStore{
		hubs: make(map[string]*app.Hub),
	}
}

func (s *HubStore) GetOrCreate(leagueID string) *app.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hub, ok := s.hubs[leagueID]; ok {
		return hub
	}
	hub := app.NewHub(leagueID)
	s.hubs[leagueID] = hub
	return hub
}

func (s *HubStore) Get(leagueID string) (*app.Hub, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hub, ok := s.hubs[leagueID]
	return hub, ok
}

func (s *HubStore) DeleteIfIdle(leagueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[leagueID]
	if !ok {
		return
	}
	if hub.IsIdle() {
		delete(s.hubs, leagueID)
	}
}
