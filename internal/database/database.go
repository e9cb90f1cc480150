// Package database handles database connections and migrations.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"emojifeed/internal/config"
	"emojifeed/internal/middleware"
	"emojifeed/internal/models"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PostgresDSN builds the libpq connection string from cfg.
func PostgresDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		sslMode,
	)
}

func dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == "sqlite" {
		return sqlite.Open(cfg.SQLitePath)
	}
	return postgres.Open(PostgresDSN(cfg))
}

// connectBackOff bounds how long Connect waits for the database to come up.
func connectBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// Connect opens the configured database, retrying with exponential backoff
// while it is unreachable or until ctx ends. It does not migrate.
func Connect(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	slow := cfg.DBSlowQuery
	if slow == 0 {
		slow = DefaultSlowQuery
	}

	var db *gorm.DB
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		if db, err = open(dialector(cfg), slow); err != nil {
			middleware.Logger.WarnContext(ctx, "Database not ready",
				slog.Int("attempt", attempt),
				slog.String("driver", cfg.DBDriver),
				slog.String("error", err.Error()),
			)
		}
		return err
	}, connectBackOff(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	middleware.Logger.InfoContext(ctx, "Database connected",
		slog.String("driver", cfg.DBDriver),
		slog.Int("attempts", attempt),
	)
	return db, nil
}

// OpenSQLite opens a SQLite database at path. ":memory:" yields a private in-memory database
// pinned to a single connection so every query sees the same schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := open(sqlite.Open(path), DefaultSlowQuery)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func open(d gorm.Dialector, slow time.Duration) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{Logger: NewGormLogger(middleware.Logger, slow)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the posts and liked_posts tables and their indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Post{}, &models.LikedPost{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	middleware.Logger.Info("Database migration completed")
	return nil
}

// Ping verifies the underlying connection is alive.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
