package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"emojifeed/internal/bootstrap"
	"emojifeed/internal/config"
	"emojifeed/internal/database"
	"emojifeed/internal/middleware"
	"emojifeed/internal/observability"
	"emojifeed/internal/seed"
	"emojifeed/internal/server"

	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

func RootApp() *cli.App {
	return &cli.App{
		Name:    "emojifeed",
		Usage:   "An emoji-only social feed",
		Version: version,
		Description: `Serves the post feed, likes and profile lookups over HTTP.

		Configuration comes from config.yml, config.<APP_ENV>.yml and
		environment variables, e.g. PORT, DB_DRIVER, REDIS_URL, IDENTITY_URL.
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			seedCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "seed",
				Usage:   "Register demo profiles and posts (in-memory identity directory only)",
				EnvVars: []string{"SEED_DEMO"},
			},
			&cli.IntFlag{
				Name:  "demo-profiles",
				Usage: "Number of demo profiles created by --seed",
				Value: 8,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
				ServiceName:    "emojifeed-api",
				ServiceVersion: version,
				Environment:    cfg.Env,
				Enabled:        cfg.TracingEnabled,
				Exporter:       cfg.TracingExporter,
				OTLPEndpoint:   cfg.OTLPEndpoint,
				SamplerRatio:   1.0,
			})
			if err != nil {
				return err
			}
			defer func() {
				tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracing(tctx)
			}()

			if c.Bool("seed") && cfg.IsProduction() {
				return fmt.Errorf("--seed is not allowed in production")
			}

			rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
				SeedDemo:     c.Bool("seed"),
				DemoProfiles: c.Int("demo-profiles"),
			})
			if err != nil {
				return err
			}

			srv, err := server.NewServerWithDeps(cfg, rt.Deps())
			if err != nil {
				rt.Close()
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				rt.Close()
				return err
			case <-ctx.Done():
			}

			middleware.Logger.Info("Shutting down server...")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Creates or updates the posts and liked_posts tables on the configured database.`,
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			db, err := database.Connect(c.Context, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()
			return database.Migrate(db)
		},
	}
}

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Write demo emoji posts and likes for existing identity directory users",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "author",
				Usage:    "Identity directory user id to author posts (repeatable)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "posts",
				Usage: "Posts per author",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  "likes",
				Usage: "Maximum likes per post, drawn from the authors",
				Value: 3,
			},
			&cli.IntFlag{
				Name:  "days",
				Usage: "Spread created_at over this many trailing days",
				Value: 30,
			},
			&cli.Int64Flag{
				Name:  "rand-seed",
				Usage: "Fixed random seed for reproducible output",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("seeding is not allowed in production")
			}

			db, err := database.Connect(c.Context, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()
			if err := database.Migrate(db); err != nil {
				return err
			}

			res, err := seed.Seed(c.Context, db, seed.Options{
				AuthorIDs:       c.StringSlice("author"),
				PostsPerAuthor:  c.Int("posts"),
				MaxLikesPerPost: c.Int("likes"),
				MaxDays:         c.Int("days"),
				RandSeed:        c.Int64("rand-seed"),
			})
			if err != nil {
				return err
			}
			middleware.Logger.Info("Seeded database",
				slog.Int("posts", res.Posts),
				slog.Int("likes", res.Likes),
			)
			return nil
		},
	}
}
