package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/webradegast/internal/config"
	"github.com/prudhvinik1/webradegast/internal/database"
	"github.com/prudhvinik1/webradegast/internal/grid"
	"github.com/prudhvinik1/webradegast/internal/handlers"
	"github.com/prudhvinik1/webradegast/internal/hub"
	"github.com/prudhvinik1/webradegast/internal/logging"
	"github.com/prudhvinik1/webradegast/internal/metrics"
	"github.com/prudhvinik1/webradegast/internal/repositories"
	"github.com/prudhvinik1/webradegast/internal/services"
	"go.uber.org/zap"
)

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer postgresPool.Close()

	if err := database.EnsureSchema(ctx, postgresPool); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	operatorRepo := repositories.NewPostgresOperatorRepository(postgresPool)
	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient, logger)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// No grid session survives a restart.
	if err := accountRepo.ResetStatuses(ctx); err != nil {
		return fmt.Errorf("failed to reset account statuses: %w", err)
	}

	registry := metrics.NewRegistry()
	presenceMetrics := metrics.NewPresenceMetrics(registry)

	sessions := grid.NewRegistry()
	tracker := services.NewConnectionTracker(logger.Named("tracker"))
	presence := services.NewPresenceService(sessions, presenceMetrics, logger.Named("presence"), cfg.EventBuffer)
	accounts := services.NewAccountService(accountRepo, sessions, presence, tracker, services.LocalSessionFactory, logger.Named("accounts"))
	auth := services.NewAuthService(operatorRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry)

	wsHub := hub.New(tracker, presence, accounts, auth, cfg.HubMessageRate, presenceMetrics, logger.Named("hub"))

	dispatcher := services.NewStatusDispatcher(presence.Changes(), logger.Named("dispatcher"))
	dispatcher.Register("hub", wsHub)
	dispatcher.Register("presence-store", services.PresenceStoreSink(presenceRepo, cfg.PresenceTTL))
	dispatcher.Register("account-status", services.AccountStatusSink(accountRepo))
	dispatcher.OnDrained(presence.FlushPending)

	cleaner := services.NewConnectionCleaner(tracker, presenceMetrics, cfg.CleanupInterval, logger.Named("cleaner"))

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		cleaner.Start(bgCtx)
	}()

	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:        auth,
		Accounts:    accounts,
		Presence:    presence,
		Connections: tracker,
		Hub:         wsHub,
		Metrics:     metrics.Handler(registry),
		Checks: map[string]handlers.ReadyCheck{
			"postgres": postgresPool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		Logger: logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	// Logging every account out queues the final offline events; the
	// dispatcher drains them before it returns.
	accounts.Shutdown(shutdownCtx)
	cancelBackground()
	wg.Wait()
	return nil
}
