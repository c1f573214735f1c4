package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Dosada05/matchday/balancing"
	"github.com/Dosada05/matchday/cache"
	"github.com/Dosada05/matchday/config"
	"github.com/Dosada05/matchday/db"
	"github.com/Dosada05/matchday/handlers"
	"github.com/Dosada05/matchday/jobs"
	"github.com/Dosada05/matchday/live"
	"github.com/Dosada05/matchday/progress"
	"github.com/Dosada05/matchday/repositories"
	api "github.com/Dosada05/matchday/routes"
	"github.com/Dosada05/matchday/services"
	"github.com/Dosada05/matchday/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const cachePrefix = "matchday:cache"

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.DBConnectTimeout)
	dbConn, err := db.Connect(pingCtx, cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, logger)
	cancelPing()
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	redisClient, err := db.ConnectRedis(cfg.RedisURL, cfg.DBConnectTimeout)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis connection", slog.Any("error", err))
		}
	}()
	logger.Info("redis connection established")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Архив отчётов в Cloudflare R2 - опционален
	var (
		reportArchiver jobs.ReportArchiver
		reportRemover  services.ReportRemover
	)
	r2Config := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.Enabled() {
		store, err := storage.NewCloudflareR2Store(ctx, r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		archive := storage.NewReportArchive(store)
		reportArchiver, reportRemover = archive, archive
		logger.Info("Cloudflare R2 report archive initialized", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Warn("R2 is not configured, match report archiving disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	fixtureRepo := repositories.NewPostgresFixtureRepository(dbConn)
	poolRepo := repositories.NewPostgresPoolRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	matchRepo := repositories.NewPostgresCompletedMatchRepository(dbConn)
	jobRepo := repositories.NewPostgresStatsJobRepository(dbConn)
	tenantRepo := repositories.NewPostgresTenantRepository(dbConn)
	statsRepo := repositories.NewPostgresStatsRepository(dbConn)
	transactor := repositories.NewTransactor(dbConn)
	logger.Info("Repositories initialized")

	progressStore := progress.NewRedisStore(redisClient, cfg.ProgressTTL)
	tagPurger := cache.NewRedisTagPurger(redisClient, cachePrefix)
	invalidator := cache.NewInvalidator(tagPurger, logger)

	// Инициализация сервисов
	bounds := balancing.Bounds{MinPlayers: cfg.BalanceMinPlayers, MaxPlayers: cfg.BalanceMaxPlayers}
	statsJobService := services.NewStatsJobService(jobRepo, tenantRepo, cfg.JobMaxRetries, cfg.JobWorkers, logger)
	poolService := services.NewPoolService(fixtureRepo, poolRepo, transactor, wsHub, logger)
	fixtureService := services.NewFixtureService(
		fixtureRepo,
		matchRepo,
		poolService,
		transactor,
		bounds,
		statsJobService,
		reportRemover,
		wsHub,
		logger,
	)
	balanceService := services.NewBalanceService(fixtureRepo, playerRepo, poolService, transactor, bounds, wsHub, logger)
	logger.Info("Services initialized")

	// Метрики и фоновая обработка очереди пересчёта статистики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := jobs.NewMetrics(registry)

	processor, err := jobs.NewProcessor(
		jobRepo,
		tenantRepo,
		transactor,
		jobs.DefaultPipeline(statsRepo, reportArchiver),
		invalidator,
		progressStore,
		jobs.NewRedisTenantLease(redisClient, jobs.DefaultLeaseTTL),
		metrics,
		jobs.Config{
			Workers:      cfg.JobWorkers,
			PollInterval: cfg.JobPollInterval,
			StepTimeout:  cfg.JobStepTimeout,
		},
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize job processor", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler := jobs.NewScheduler(statsJobService, cfg.StatsCronInterval, logger)

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		processor.Run(ctx)
	}()
	go func() {
		defer background.Done()
		scheduler.Run(ctx)
	}()

	// Инициализация обработчиков HTTP
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Fixture:   handlers.NewFixtureHandler(fixtureService, balanceService, progressStore),
		Pool:      handlers.NewPoolHandler(poolService),
		StatsJob:  handlers.NewStatsJobHandler(statsJobService),
		Cache:     handlers.NewCacheHandler(invalidator, tagPurger),
		WebSocket: handlers.NewWebSocketHandler(wsHub, fixtureService, logger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			exitCode = 1
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			exitCode = 1
		} else {
			logger.Info("server shutdown complete")
		}
	}

	// Останавливаем воркеры: текущие шаги дорабатывают, новые задачи не берутся
	stop()
	background.Wait()
	logger.Info("background workers stopped")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logger.Info("application exited")
}
