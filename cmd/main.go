package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/videflow/videflow/internal/api/http"
	"github.com/videflow/videflow/internal/config"
	"github.com/videflow/videflow/internal/repository"
	"github.com/videflow/videflow/internal/repository/model"
	"github.com/videflow/videflow/internal/service"
	"github.com/videflow/videflow/internal/signal"
	"github.com/videflow/videflow/lib/logger/sl"
	"github.com/videflow/videflow/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	historyRepo, err := setupHistoryRepository(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	history := service.NewHistory(historyRepo, cfg.Signal.HistoryQueueSize, log)
	defer history.Close()

	registry := signal.NewRegistry()
	directory := signal.NewDirectory()
	signalRouter := signal.NewRouter(registry, directory, history, log)

	hub := signal.NewHub(signalRouter, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	signalController := httpapi.NewSignalController(
		hub,
		history,
		service.QueryAuth{},
		cfg.WebRTC.STUNServers,
		cfg.Signal.SendBufferSize,
		log,
	)

	router := httpapi.SetupRouter(signalController, cfg.HTTP.AllowedOrigins)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupHistoryRepository(cfg config.DatabaseConfig, log *slog.Logger) (repository.HistoryRepository, error) {
	if cfg.DSN == "" {
		log.Info("no database dsn configured, keeping history in memory")
		return repository.NewInMemoryHistoryRepository(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.ChatMessage{}, &model.Attendance{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return repository.NewPostgresHistoryRepository(db), nil
}
