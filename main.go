package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"streak-tracker/config"
	"streak-tracker/handlers"
	"streak-tracker/middleware"
	"streak-tracker/models"
	"streak-tracker/services"
	"streak-tracker/utils"
	"streak-tracker/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return gorm.Open(sqlite.Open(cfg.URL), &gorm.Config{})
	}
	return gorm.Open(postgres.Open(cfg.URL), &gorm.Config{})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		newLogger("").Fatal("invalid configuration", zap.Error(err))
	}
	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	// Per-participant serialization is always in-process; Redis extends it
	// across replicas and also guards the scheduled cleanup.
	var locker services.Locker = services.NewKeyedMutex()
	schedOpts := services.SchedulerOptions{
		DefaultExpression: cfg.Cleanup.Schedule,
		Location:          cfg.Cleanup.Location,
	}
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		// the lease is not renewed; it must outlast services.DefaultSubmitTimeout,
		// which bounds every locked submission
		redisLocker := utils.NewRedisLocker(rdb, "streak:lock:", services.DefaultSubmitTimeout+10*time.Second)
		locker = services.ChainLocker{locker, redisLocker}
		schedOpts.Locker = redisLocker.ForScheduler(10 * time.Minute)
		logger.Info("redis locking enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var archiver services.RunArchiver
	r2cfg := utils.R2Config(cfg.R2)
	if r2cfg.Enabled() {
		a, err := utils.NewR2Archiver(ctx, r2cfg)
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		archiver = a
		logger.Info("cleanup runs archived to R2", zap.String("bucket", r2cfg.Bucket))
	}

	submissionService := services.NewSubmissionService(db, locker, logger, metrics)
	participantService := services.NewParticipantService(db, logger)
	cleanupService := services.NewCleanupService(db, logger, metrics, archiver)
	reconciler := services.NewReconciler(db, locker, logger)
	scheduler := services.NewCleanupScheduler(cleanupService, logger, schedOpts)

	if cfg.Cleanup.Enabled {
		if _, err := scheduler.Start(""); err != nil {
			logger.Fatal("failed to start cleanup scheduler", zap.Error(err))
		}
	}
	defer func() { _, _ = scheduler.Stop() }()

	if cfg.Sync.Enabled() {
		syncWorker := workers.NewParticipantSyncWorker(db, logger, cfg.Sync.ServiceURL, cfg.Sync.Endpoint,
			cfg.Sync.ServiceToken, cfg.Sync.Interval)
		syncWorker.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// health and metrics are scraped directly, not through the gateway
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupRoutes(app, handlers.Services{
		Submissions:  submissionService,
		Participants: participantService,
		Cleanup:      cleanupService,
		Scheduler:    scheduler,
		Reconciler:   reconciler,
		Window:       middleware.SubmissionWindow(cfg.Window.StartHour, cfg.Window.EndHour, cfg.Window.Location, nil),
	}, logger)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()
	logger.Info("server running",
		zap.String("port", cfg.Port),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("cleanup_scheduler", cfg.Cleanup.Enabled))

	<-ctx.Done()
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
