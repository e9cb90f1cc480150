// Package bootstrap assembles the runtime collaborators shared by the CLI commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"emojifeed/internal/cache"
	"emojifeed/internal/config"
	"emojifeed/internal/database"
	"emojifeed/internal/identity"
	"emojifeed/internal/middleware"
	"emojifeed/internal/models"
	"emojifeed/internal/ratelimit"
	"emojifeed/internal/seed"
	"emojifeed/internal/server"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo registers fake profiles in the in-memory directory and writes posts for them.
	SeedDemo bool
	// DemoProfiles is how many fake profiles SeedDemo creates.
	DemoProfiles int
}

// Runtime is everything the HTTP server needs.
type Runtime struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Directory identity.Directory
	Limiter   ratelimit.Limiter
}

// Deps adapts the runtime to server dependencies.
func (r *Runtime) Deps() server.Deps {
	return server.Deps{
		DB:        r.DB,
		Redis:     r.Redis,
		Directory: r.Directory,
		Limiter:   r.Limiter,
	}
}

// connect is swapped in tests to observe the pool InitRuntime opens.
var connect = database.Connect

// InitRuntime connects to the database and Redis and picks the identity directory.
// Outside production a missing Redis falls back to an in-process limiter and an
// empty IDENTITY_URL selects the in-memory directory. Connections opened before
// a failure are closed before the error is returned.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{DB: db}

	if !cfg.IsProduction() {
		// Keep AutoMigrate in non-production for developer/test ergonomics.
		if err := database.Migrate(db); err != nil {
			rt.Close()
			return nil, err
		}
	}

	rdb, err := cache.NewClient(ctx, cfg.RedisURL)
	switch {
	case err == nil:
		rt.Redis = rdb
		rt.Limiter = ratelimit.NewRedisLimiter(rdb, "writes", cfg.RateLimitMax, cfg.RateLimitWindow)
		middleware.Logger.InfoContext(ctx, "Redis connected successfully")
	case cfg.IsProduction():
		rt.Close()
		return nil, fmt.Errorf("rate limit store unavailable: %w", err)
	default:
		middleware.Logger.WarnContext(ctx, "Redis unavailable, using in-process rate limiter",
			slog.String("error", err.Error()))
		rt.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	var memDir *identity.MemoryDirectory
	if cfg.IdentityURL != "" {
		rt.Directory = identity.NewHTTPDirectory(cfg.IdentityURL, cfg.IdentityAPIKey, cfg.IdentityTimeout)
	} else {
		memDir = identity.NewMemoryDirectory()
		rt.Directory = memDir
	}

	if opts.SeedDemo {
		if err := seedDemo(ctx, rt.DB, memDir, opts); err != nil {
			rt.Close()
			return nil, err
		}
	}

	return rt, nil
}

func seedDemo(ctx context.Context, db *gorm.DB, dir *identity.MemoryDirectory, opts Options) error {
	if dir == nil {
		middleware.Logger.WarnContext(ctx, "Skipping demo seed: profiles cannot be registered in a remote identity directory")
		return nil
	}

	n := opts.DemoProfiles
	if n <= 0 {
		n = 8
	}
	profiles := seed.NewFactory(0).Profiles(n)
	for _, p := range profiles {
		dir.Add(p)
	}

	_, err := seed.Seed(ctx, db, seed.Options{
		AuthorIDs:       lo.Map(profiles, func(p models.AuthorProfile, _ int) string { return p.UserID }),
		PostsPerAuthor:  5,
		MaxLikesPerPost: 4,
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	return nil
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.DB == nil {
		return
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
