// Package server contains the HTTP handlers for the post lifecycle API.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "postflow/docs" // swagger docs
	"postflow/internal/bootstrap"
	"postflow/internal/cache"
	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/lock"
	"postflow/internal/middleware"
	"postflow/internal/models"
	"postflow/internal/moderation"
	"postflow/internal/repository"
	"postflow/internal/service"
	"postflow/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Write endpoints are limited per client IP.
const (
	writeRateLimit  = 30
	writeRateWindow = time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	postRepo       repository.PostRepository
	lifecycle      *service.LifecycleService
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, rt.DB, rt.Redis, rt.Classifier, rt.Locker), nil
}

// NewServerWithDeps creates a Server using already-initialized connections.
// The classifier and locker are built from cfg.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	classifier, err := bootstrap.NewClassifier(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("classifier setup failed: %w", err)
	}
	locker, err := bootstrap.NewLocker(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("lock setup failed: %w", err)
	}
	return newServer(cfg, db, redisClient, classifier, locker), nil
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, classifier moderation.Classifier, locker lock.Locker) *Server {
	postRepo := repository.NewPostRepository(db, locker)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("postflow-api"),
		postRepo:       postRepo,
		lifecycle:      service.NewLifecycleService(postRepo, validation.NewValidator(classifier)),
	}
}

// NewApp builds a Fiber app with the server's error handler, middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Postflow API",
		BodyLimit:    1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler renders errors that escape a handler, such as unknown routes
// or recovered panics, in the standard error body.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusMethodNotAllowed, fiber.StatusRequestEntityTooLarge:
			code = models.CodeValidation
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	// Server span; sets the traceID local read by ContextMiddleware
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. rate limit)
	// so browser clients still receive CORS headers on error responses.
	origins := ""
	if s.config != nil {
		origins = s.config.AllowedOrigins
	}
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		MaxAge:       86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	s.registerPostRoutes(app)
	s.registerPostRoutes(app.Group("/api"))
}

func (s *Server) registerPostRoutes(r fiber.Router) {
	write := middleware.RateLimit(s.redis, writeRateLimit, writeRateWindow, "post_write")

	posts := r.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", write, s.CreatePost)
	// Define specific /:id/:action routes BEFORE generic /:id route
	posts.Post("/:id/submit", write, s.SubmitPost)
	posts.Patch("/:id/publish", write, s.PublishPost)
	posts.Get("/:id", s.GetPost)
	posts.Patch("/:id", write, s.EditPost)

	r.Get("/stats", s.GetStats)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it posts lock in process and verdicts are not cached.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", "error", err)
	}

	if s.redis != nil {
		var err error
		if s.redis == cache.GetClient() {
			err = cache.Close()
		} else {
			err = s.redis.Close()
		}
		if err != nil {
			middleware.Logger.Error("error closing redis", "error", err)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
