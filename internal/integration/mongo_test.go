package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/memory"
	inframongo "github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/mongo"
)

func TestMongoLeagueStoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	uri, cleanup := startMongo(t, ctx)
	defer cleanup()

	client, db, err := inframongo.Connect(ctx, uri, "league_e2e")
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer client.Disconnect(ctx)

	store := inframongo.NewLeagueStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	questionRepo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleSet()), time.Minute)
	service := app.NewLeagueService(store, questionRepo, memory.NewHubStore())

	league, err := service.CreateLeague(ctx, "Office", "sb-e2e")
	if err != nil {
		t.Fatalf("create league: %v", err)
	}
	p, err := service.Join(ctx, league.ID, "Hawks Nest")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(ctx, league.ID, "hawks-nest"); !errors.Is(err, domain.ErrTeamNameTaken) {
		t.Fatalf("expected ErrTeamNameTaken, got %v", err)
	}

	// Separate edits to different fields must both survive.
	if _, err := service.SavePredictions(ctx, league.ID, p.ID, domain.Answers{"winner": domain.TextAnswer("Patriots")}); err != nil {
		t.Fatalf("save winner: %v", err)
	}
	saved, err := service.SavePredictions(ctx, league.ID, p.ID, domain.Answers{"total": domain.NumberAnswer(44)})
	if err != nil {
		t.Fatalf("save total: %v", err)
	}
	if saved.Answers["winner"] != domain.TextAnswer("Patriots") || saved.Answers["total"] != domain.NumberAnswer(44) {
		t.Fatalf("expected merged answers, got %+v", saved.Answers)
	}

	lb, err := service.SaveResults(ctx, league.ID, domain.Answers{
		"winner": domain.TextAnswer("Patriots"),
		"total":  domain.NumberAnswer(50),
	})
	if err != nil {
		t.Fatalf("save results: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].Score != 5 {
		t.Fatalf("unexpected leaderboard: %+v", lb.Entries)
	}
	if d := lb.Entries[0].TiebreakDiff; d == nil || *d != 6 {
		t.Fatalf("expected tiebreak diff 6, got %v", d)
	}
}

func startMongo(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start mongo: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("mongo host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("mongo port: %v", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}
