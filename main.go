package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/krshsl/interviewcoach/backend/repository"
	"github.com/krshsl/interviewcoach/backend/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	config := services.LoadConfig()

	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(config.Log.Level)})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, config *services.Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	store, closeStore, err := openStore(config.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	if config.Database.Seed {
		data, err := services.LoadSeedData()
		if err != nil {
			return err
		}
		if err := services.NewDatabaseSeeder(store, data).SeedDatabase(ctx); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
	}

	deps := services.ServerDeps{Store: store}

	if config.Redis.URL != "" {
		client, err := services.NewRedisClient(ctx, config.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Tracker = services.NewRedisActivityTracker(client)
		deps.Cache = services.NewRedisCatalogCache(client, config.Cache.TTL)
		slog.Info("Connected to redis")
	} else {
		slog.Warn("Redis URL not configured, using in-process activity tracking and no catalog cache")
	}

	if config.AI.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiService(ctx, config.AI.GeminiAPIKey, config.AI.GeminiModel)
		if err != nil {
			return err
		}
		deps.Model = gemini
		slog.Info("Gemini service initialized", "model", config.AI.GeminiModel)
	} else {
		slog.Warn("Gemini API key not configured, using template questions and heuristic scoring")
	}

	server := services.NewServer(config, deps)

	restored, err := server.Sessions().RestoreActivity(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore session activity: %w", err)
	}
	slog.Info("Restored active sessions", "count", restored)

	return server.Run(ctx)
}

// openStore connects to Postgres when a URL is configured, otherwise it falls back to memory
func openStore(cfg services.DatabaseConfig) (services.Store, func(), error) {
	if cfg.URL == "" {
		slog.Warn("Database URL not configured, using in-memory storage")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Connected to database")
	return repo, func() { sqlDB.Close() }, nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}
