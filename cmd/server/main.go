package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/team-balancer/internal/capacity"
	"github.com/team-balancer/internal/config"
	"github.com/team-balancer/internal/handler"
	"github.com/team-balancer/internal/kafka"
	"github.com/team-balancer/internal/metrics"
	"github.com/team-balancer/internal/postgres"
	"github.com/team-balancer/internal/redis"
	"github.com/team-balancer/internal/service"
	"github.com/team-balancer/internal/skill"
	"github.com/team-balancer/internal/websocket"
	"github.com/team-balancer/internal/worker"
)

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	loadErr := err
	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	if loadErr != nil {
		logger.Warn("failed to load config file, using defaults", "error", loadErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis for match locks and the team cache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	m := metrics.New()

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Services
	estimator := skill.NewEstimator(repo, skill.Scale{Min: cfg.Balancing.RatingMin, Max: cfg.Balancing.RatingMax})
	alertService := service.NewAlertService(repo, wsHub, m, logger)
	teamService := service.NewTeamService(
		repo,
		estimator,
		redis.NewMatchLock(redisClient, cfg.Balancing.LockTTL, logger),
		redis.NewTeamCache(redisClient, cfg.Balancing.CacheTTL),
		&cfg.Balancing,
		m,
		logger,
	)
	ratingService := service.NewRatingService(repo, estimator, logger)
	notifier := capacity.NewNotifier(repo, alertService, cfg.Alerts.LowCapacityThreshold, logger)

	// Roster events from the match-lifecycle service
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = kafka.NewConsumer(&cfg.Kafka, notifier, m, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without roster events", "error", err)
		} else if err := consumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without roster events", "error", err)
			consumer = nil
		}
	} else {
		logger.Warn("roster ingestion disabled, capacity alerts will not be raised")
	}

	// Alert retention
	purgeWorker := worker.NewPurgeWorker(alertService, &cfg.Alerts, logger)
	if cfg.Alerts.PurgeEnabled {
		if err := purgeWorker.Start(); err != nil {
			logger.Error("failed to start purge worker", "error", err)
			os.Exit(1)
		}
	}

	httpHandler := handler.NewHandler(handler.Config{
		Teams:    teamService,
		Alerts:   alertService,
		Ratings:  ratingService,
		Capacity: notifier,
		Hub:      wsHub,
		Metrics:  m,
		ReadyChecks: map[string]handler.Pinger{
			"postgres": repo.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		RetentionDays: cfg.Alerts.RetentionDays,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	purgeWorker.Stop()
	wsHub.Stop()

	logger.Info("server stopped")
}
