package redis

import (
	"context"
	"sync"
	"time"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
	"github.com/redis/go-redis/v9"
)

// HubStore is a Redis-aware implementation of app.HubRepository.
// Notes:
//   - It keeps a local in-memory map of hubs to reuse the in-process
//     broadcast logic.
//   - Redis marks which leagues have live viewers on some instance
//     (league:live:{leagueID}, refreshed with a TTL).
type HubStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	hubs   map[string]*app.Hub
}

func NewHubStore(client *redis.Client, ttl time.Duration) *HubStore {
	return &HubStore{
		client: client,
		ttl:    ttl,
		hubs:   make(map[string]*app.Hub),
	}
}

func (s *HubStore) GetOrCreate(leagueID string) *app.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(leagueID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(leagueID)).Err()
	}
}

func (s *HubStore) key(leagueID string) string {
	return "league:live:" + leagueID
}
