package scoring_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/scoring"
)

func intp(n int) *int { return &n }

func TestRankTieBreakOrder(t *testing.T) {
	in := []domain.LeaderboardEntry{
		{ParticipantID: "a", Score: 10, TiebreakDiff: intp(3)},
		{ParticipantID: "b", Score: 10, TiebreakDiff: intp(1)},
		{ParticipantID: "c", Score: 8},
	}

	got := scoring.Rank(in)
	want := []domain.LeaderboardEntry{
		{ParticipantID: "b", Score: 10, TiebreakDiff: intp(1), Rank: 1},
		{ParticipantID: "a", Score: 10, TiebreakDiff: intp(3), Rank: 2},
		{ParticipantID: "c", Score: 8, Rank: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rank mismatch (-want +got):\n%s", diff)
	}
	if in[0].ParticipantID != "a" || in[0].Rank != 0 {
		t.Fatalf("input slice was modified: %+v", in)
	}
}

func TestRankResolvedTiebreakBeatsUnresolved(t *testing.T) {
	in := []domain.LeaderboardEntry{
		{ParticipantID: "unknown", Score: 10},
		{ParticipantID: "far", Score: 10, TiebreakDiff: intp(40)},
		{ParticipantID: "exact", Score: 10, TiebreakDiff: intp(0)},
	}

	got := scoring.Rank(in)
	order := []string{got[0].ParticipantID, got[1].ParticipantID, got[2].ParticipantID}
	if diff := cmp.Diff([]string{"exact", "far", "unknown"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRankIsStableForFullTies(t *testing.T) {
	in := []domain.LeaderboardEntry{
		{ParticipantID: "first", Score: 4},
		{ParticipantID: "second", Score: 4},
		{ParticipantID: "third", Score: 4, TiebreakDiff: intp(2)},
		{ParticipantID: "fourth", Score: 4, TiebreakDiff: intp(2)},
	}

	got := scoring.Rank(in)
	want := []domain.LeaderboardEntry{
		{ParticipantID: "third", Score: 4, TiebreakDiff: intp(2), Rank: 1},
		{ParticipantID: "fourth", Score: 4, TiebreakDiff: intp(2), Rank: 1},
		{ParticipantID: "first", Score: 4, Rank: 3},
		{ParticipantID: "second", Score: 4, Rank: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rank mismatch (-want +got):\n%s", diff)
	}
}

func TestRankEmpty(t *testing.T) {
	if got := scoring.Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %+v", got)
	}
}
