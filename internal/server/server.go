// Package server contains the HTTP handlers for the feed and profile APIs.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "emojifeed/docs" // swagger docs
	"emojifeed/internal/config"
	"emojifeed/internal/database"
	"emojifeed/internal/identity"
	"emojifeed/internal/middleware"
	"emojifeed/internal/models"
	"emojifeed/internal/observability"
	"emojifeed/internal/ratelimit"
	"emojifeed/internal/repository"
	"emojifeed/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultOrigins      = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	ipRequestsPerMinute = 300
	readinessTimeout    = 5 * time.Second
)

// Deps are the collaborators a Server needs. Redis may be nil when the
// limiter does not use it.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Directory identity.Directory
	Limiter   ratelimit.Limiter
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	directory      identity.Directory
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	postService    *service.PostService
	profileService *service.ProfileService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("server: identity directory is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("server: rate limiter is required")
	}

	postRepo := repository.NewPostRepository(deps.DB)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		directory:      deps.Directory,
		promMiddleware: observability.InitMetrics("emojifeed-api"),
		postService: service.NewPostService(postRepo, deps.Directory, deps.Limiter,
			service.WithFeedLimits(cfg.FeedLimit, cfg.AuthorFeedLimit)),
		profileService: service.NewProfileService(deps.Directory),
	}
	s.app = s.NewApp()
	return s, nil
}

// App returns the configured fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Emoji Feed API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware installs the request pipeline. Order matters: tracing and
// request ids must exist before the logger runs, and CORS must precede the
// limiter so rejected responses still carry CORS headers.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Per-IP flood guard. The per-actor write budget is enforced by PostService.
	app.Use(limiter.New(limiter.Config{
		Max:        ipRequestsPerMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewTooManyRequestsError())
		},
	}))

	app.Use(middleware.ResolveActor(s.config.JWTSecret))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// posts router
	posts := api.Group("/posts")
	posts.Get("/", s.GetAllPosts)
	posts.Get("/:id", s.GetPostByID)
	posts.Post("/", middleware.ActorRequired(), s.CreatePost)
	posts.Post("/:id/likes", middleware.ActorRequired(), s.CreateLikedPostEntry)
	posts.Delete("/:id/likes", middleware.ActorRequired(), s.DeleteLikedPostEntry)

	api.Get("/users/:userId/posts", s.GetPostsByUserID)

	// profile router
	api.Get("/profiles/:username", s.GetUserByUsername)
}

// LivenessCheck reports that the process is serving requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

type probe struct {
	name string
	ping func(context.Context) error
}

func (s *Server) probes() []probe {
	ps := []probe{
		{"database", func(ctx context.Context) error { return database.Ping(ctx, s.db) }},
		{"identity", s.directory.Ping},
	}
	if s.redis != nil {
		ps = append(ps, probe{"redis", func(ctx context.Context) error { return s.redis.Ping(ctx).Err() }})
	}
	return ps
}

// ReadinessCheck pings the database, the identity directory and Redis in
// parallel. Redis reports not_configured when the limiter runs in memory.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	probes := s.probes()
	results := make([]error, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = p.ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	checks := fiber.Map{"redis": "not_configured"}
	status, overall := fiber.StatusOK, "healthy"
	for i, p := range probes {
		if results[i] != nil {
			middleware.Logger.WarnContext(ctx, "Readiness probe failed",
				slog.String("dependency", p.name),
				slog.String("error", results[i].Error()),
			)
			checks[p.name] = "unhealthy"
			status, overall = fiber.StatusServiceUnavailable, "unhealthy"
			continue
		}
		checks[p.name] = "healthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown drains in-flight requests, then closes the database and Redis
// connections. All close errors are returned.
func (s *Server) Shutdown(ctx context.Context) error {
	errs := []error{s.app.ShutdownWithContext(ctx)}
	if sqlDB, err := s.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}

	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
