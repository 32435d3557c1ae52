package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/config"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/questions"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDepsMemory(t *testing.T) {
	ctx := context.Background()
	d, err := buildDeps(ctx, config.Config{}, discardLogger())
	require.NoError(t, err)
	defer d.Close()

	league, err := d.service.CreateLeague(ctx, "pool", questions.DefaultSetID)
	require.NoError(t, err)
	_, err = d.service.Join(ctx, league.ID, "Hawks")
	require.NoError(t, err)

	var out bytes.Buffer
	lb, err := d.service.Recalculate(ctx, league.ID)
	require.NoError(t, err)
	require.NoError(t, printLeaderboard(&out, lb))
	assert.Contains(t, out.String(), "Hawks")
	assert.Contains(t, out.String(), "RANK")
}

func TestBuildDepsRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.Config{}
	cfg.Storage.Driver = "redis"
	cfg.Redis.Addr = mr.Addr()

	ctx := context.Background()
	d, err := buildDeps(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer d.Close()

	league, err := d.service.CreateLeague(ctx, "pool", questions.DefaultSetID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("league:"+league.ID))
	assert.True(t, mr.Exists("questionset:"+questions.DefaultSetID))
}

func TestBuildDepsRejectsBadStorage(t *testing.T) {
	cfg := config.Config{}
	cfg.Storage.Driver = "redis"
	_, err := buildDeps(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "requires redis.addr")

	cfg.Storage.Driver = "sqlite"
	_, err = buildDeps(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestPrintLeaderboardMarksUnknownTiebreak(t *testing.T) {
	diff := 2
	var out bytes.Buffer
	require.NoError(t, printLeaderboard(&out, domain.Leaderboard{Entries: []domain.LeaderboardEntry{
		{Rank: 1, TeamName: "Hawks", Score: 8, TiebreakDiff: &diff},
		{Rank: 2, TeamName: "Pats", Score: 3},
	}}))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "2")
	assert.Contains(t, string(lines[2]), "-")
}
