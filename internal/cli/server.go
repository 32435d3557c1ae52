package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/config"
	transport "github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, envPort string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the league server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", envPort, "port to listen on (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if cfg.Auth.JWTSecret == "" || cfg.Auth.JWTSecret == "change-me" {
		logger.Warn("auth.jwt_secret is not set; admin tokens use an insecure default")
	}
	tokens := transport.NewTokenIssuer(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 30*24*time.Hour))

	limit := rate.Inf
	if cfg.RateLimit.PerSecond > 0 {
		limit = rate.Limit(cfg.RateLimit.PerSecond)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	wsHandler := transport.NewWSHandler(d.service,
		transport.WithWSLogger(logger),
		transport.WithAutosaveDelays(
			config.TTLDuration(cfg.Autosave.SelectionDelay, 500*time.Millisecond),
			config.TTLDuration(cfg.Autosave.TypingDelay, 3*time.Second),
		),
		transport.WithSaveObserver(d.metrics),
		transport.WithConnectionObserver(d.metrics),
	)

	handler := transport.NewRouter(transport.Routes{
		Leagues: transport.NewLeagueHandlers(d.service, tokens, logger),
		WS:      wsHandler,
		Tokens:  tokens,
		Limiter: transport.NewIPRateLimiter(limit, burst),
		Metrics: d.metrics.Handler(),

		TrustProxy: cfg.Server.TrustProxy,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting league service", slog.String("addr", server.Addr), slog.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
