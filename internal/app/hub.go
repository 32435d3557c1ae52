package app

import (
	"sync"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

// Hub fans leaderboard snapshots out to the live subscribers of one league.
type Hub struct {
	leagueID    string
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

// NewHub is exported for infrastructure layers that keep hubs.
func NewHub(leagueID string) *Hub {
	return &Hub{
		leagueID:    leagueID,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// IsIdle reports whether the hub has no subscribers.
func (h *Hub) IsIdle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) == 0
}

func (h *Hub) subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest snapshot so the newest one lands.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
