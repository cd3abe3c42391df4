package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"interview-scheduler/internal/app"
	"interview-scheduler/internal/config"
	"interview-scheduler/internal/observability"
	"interview-scheduler/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to db", "error", err)
		return
	}
	defer pool.Close()
	store := app.NewPGStore(pool)

	var lock app.SlotLock = app.NoopSlotLock{}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			return
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, booking lock disabled", "error", err)
		} else {
			lock = app.NewRedisSlotLock(client, cfg.SlotLockTTL)
			defer client.Close()
		}
	} else {
		logger.Warn("no REDIS_URL configured, booking lock disabled")
	}

	google := app.NewGoogleCalendar(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	var calendar app.CalendarProvider
	if google != nil {
		calendar = google
	} else {
		logger.Warn("Google Calendar not configured, external busy data disabled")
	}

	email := &app.LogEmailSender{Logger: logger}

	appInstance := app.NewApp(store, calendar, google, email, lock, logger)

	sweeper := app.NewReminderSweeper(store, email, logger, cfg.ReminderSweepInterval, cfg.ReminderBatchSize)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	appInstance.RegisterRoutes(router, app.AuthMiddleware(cfg.StaticTokens, cfg.JWTSecret))

	if err := server.Run(ctx, router, ":"+cfg.Port, logger); err != nil {
		logger.Error("http server failed", "error", err)
	}
}
