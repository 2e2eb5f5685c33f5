package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-progression/config"
	"github.com/Dosada05/tournament-progression/db"
	"github.com/Dosada05/tournament-progression/handlers"
	"github.com/Dosada05/tournament-progression/repositories"
	api "github.com/Dosada05/tournament-progression/routes"
	"github.com/Dosada05/tournament-progression/scheduler"
	"github.com/Dosada05/tournament-progression/services"
	"github.com/Dosada05/tournament-progression/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	os.Exit(run())
}

// run возвращает код выхода, чтобы отложенные close успели отработать.
func run() int {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return 1
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Duration("scheduler_interval", cfg.SchedulerInterval))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.RunMigrations(dbConn); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		return 1
	}
	logger.Info("migrations applied")

	// Снимки сеток в Cloudflare R2 (опционально)
	var snapshots storage.SnapshotStore
	r2Cfg := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Cfg.Enabled() {
		snapshots, err = storage.NewCloudflareR2Store(context.Background(), r2Cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 snapshot store", slog.Any("error", err))
			return 1
		}
		logger.Info("Cloudflare R2 snapshot store initialized")
	} else {
		logger.Info("R2 is not configured, bracket snapshots disabled")
	}

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	stageRepo := repositories.NewPostgresStageRepository(dbConn)
	rosterRepo := repositories.NewPostgresRosterRepository(dbConn)
	matchupRepo := repositories.NewPostgresMatchupRepository(dbConn)
	scoreRepo := repositories.NewPostgresScoreRepository(dbConn)
	generationRepo := repositories.NewPostgresGenerationRepository(dbConn)

	// Инициализация сервисов
	bracketService := services.NewBracketService(
		dbConn,
		stageRepo,
		tournamentRepo,
		rosterRepo,
		matchupRepo,
		scoreRepo,
		generationRepo,
		snapshots,
		services.GenerationConfig{
			RoundSpacing:  cfg.RoundSpacing,
			MatchSpacing:  cfg.GroupMatchSpacing,
			DefaultRating: cfg.DefaultRating,
		},
		logger,
	)
	progressionService := services.NewProgressionService(
		stageRepo,
		matchupRepo,
		bracketService,
		services.ProgressionConfig{
			LeadTime:            cfg.GenerationLeadTime,
			AdvancePerPool:      cfg.AdvancePerPool,
			AdvanceFromKnockout: cfg.AdvanceFromKnockout,
		},
		logger,
	)
	scoreService := services.NewScoreService(dbConn, matchupRepo, scoreRepo, bracketService, logger)
	logger.Info("services initialized")

	// Планировщик прогрессии стадий
	progression := scheduler.New("stage-progression", cfg.SchedulerInterval, func(ctx context.Context) error {
		_, err := progressionService.Tick(ctx)
		return err
	}, logger)
	progression.Start(context.Background())

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: []byte(cfg.JWTSecretKey), AllowedOrigins: cfg.CORSAllowedOrigins},
		handlers.NewHealthHandler(dbConn),
		handlers.NewStageHandler(bracketService),
		handlers.NewMatchupHandler(scoreService),
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	progression.Stop()
	logger.Info("application exited")
	return exitCode
}
