package scoring

import (
	"sort"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

// Rank returns a new slice ordered by score descending. At equal score a
// resolved tiebreak beats an unresolved one and the smaller distance wins.
// Entries still tied keep their input order and share a rank.
func Rank(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	ranked := make([]domain.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	for i := range ranked {
		if i > 0 && !less(ranked[i-1], ranked[i]) {
			ranked[i].Rank = ranked[i-1].Rank
			continue
		}
		ranked[i].Rank = i + 1
	}
	return ranked
}

func less(a, b domain.LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	switch {
	case a.TiebreakDiff != nil && b.TiebreakDiff == nil:
		return true
	case a.TiebreakDiff == nil:
		return false
	default:
		return *a.TiebreakDiff < *b.TiebreakDiff
	}
}
