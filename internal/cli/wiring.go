package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/config"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/memory"
	inframongo "github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/mongo"
	pgloader "github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/postgres"
	infraredis "github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/redis"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/logging"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/metrics"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/questions"
)

// deps holds the wired service and what must be closed on exit.
type deps struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	service *app.LeagueService
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// buildDeps wires storage, question loading, hubs and metrics from cfg.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, logger: logger, metrics: metrics.New()}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuestionLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		loader = pgloader.NewQuestionLoader(pool)
	} else {
		fileLoader, err := questions.NewFileLoader(cfg.Questions.Files...)
		if err != nil {
			d.Close()
			return nil, err
		}
		loader = fileLoader
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	var hubs app.HubRepository
	if redisClient != nil {
		questionRepo = infraredis.NewQuestionRepository(redisClient, loader, questionTTL)
		hubs = infraredis.NewHubStore(redisClient, redisTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, questionTTL)
		hubs = memory.NewHubStore()
	}

	store, err := buildLeagueStore(ctx, d, redisClient)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.service = app.NewLeagueService(store, questionRepo, hubs,
		app.WithLogger(logger),
		app.WithRecalculationRecorder(d.metrics),
	)
	return d, nil
}

func buildLeagueStore(ctx context.Context, d *deps, redisClient *redis.Client) (app.LeagueStore, error) {
	switch d.cfg.Storage.Driver {
	case "", "memory":
		return memory.NewLeagueStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("storage driver redis requires redis.addr")
		}
		return infraredis.NewLeagueStore(redisClient), nil
	case "mongo":
		if d.cfg.Mongo.URI == "" {
			return nil, errors.New("storage driver mongo requires mongo.uri")
		}
		client, db, err := inframongo.Connect(ctx, d.cfg.Mongo.URI, d.cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = client.Disconnect(context.Background()) })
		store := inframongo.NewLeagueStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", d.cfg.Storage.Driver)
	}
}
