// Package server contains the HTTP handlers and routing for the agora API.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/policy"
	"agora/internal/repository"
	"agora/internal/service"
	"agora/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	redis           *redis.Client
	blobs           storage.Store
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	featureFlags    *featureflags.Manager
	tokens          *middleware.Tokens
	media           *service.Media
	userService     *service.UserService
	authService     *service.AuthService
	postService     *service.PostService
	commentService  *service.CommentService
	reactionService *service.ReactionService
}

// NewServer connects to Postgres, Redis and the blob store described by cfg
// and applies the schema.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("schema setup failed: %w", err)
	}

	redisClient := cache.Connect(ctx, cfg.RedisURL)

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, blobs)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, rate limits and events then become no-ops.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, blobs storage.Store) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if blobs == nil {
		return nil, errors.New("media storage is required")
	}

	store := repository.NewStore(db)
	gate := policy.NewGate(store.Users)
	c := cache.New(redisClient)
	notifier := notifications.NewNotifier(redisClient)
	flags := featureflags.NewManager(cfg.FeatureFlags)
	media := service.NewMedia(blobs, int64(cfg.MediaMaxUploadMB)<<20)
	tokens := middleware.NewTokens(middleware.JWTConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  time.Duration(cfg.AccessTokenTTLMins) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTokenTTLHours) * time.Hour,
	}, redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		blobs:          blobs,
		promMiddleware: middleware.InitMetrics("agora-api"),
		featureFlags:   flags,
		tokens:         tokens,
		media:          media,
	}
	s.userService = service.NewUserService(store, gate, media, c, notifier)
	s.authService = service.NewAuthService(s.userService, tokens)
	s.postService = service.NewPostService(store, gate, media, c, notifier)
	s.commentService = service.NewCommentService(store, gate, c, notifier)
	s.reactionService = service.NewReactionService(store, gate, c, notifier, flags)
	return s, nil
}

// Users exposes the account service to bootstrap code.
func (s *Server) Users() *service.UserService {
	return s.userService
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Agora API",
		BodyLimit:    (s.config.MediaMaxUploadMB + 1) << 20,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler turns errors that escaped a handler into JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusUnauthorized:
			code = models.CodeUnauthorized
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			code = models.CodeValidation
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err, "path", c.Path())
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Uploaded images are loaded by front ends on other origins.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || middleware.RateLimitBypass
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if local, ok := s.blobs.(*storage.LocalStore); ok && strings.HasPrefix(s.config.MediaBaseURL, "/") {
		app.Static(s.config.MediaBaseURL, local.Root(), fiber.Static{ByteRange: true})
	}

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := s.tokens.AuthRequired()
	signupLimit := middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", signupLimit, s.Register)
	authGroup.Post("/login", middleware.RateLimitWithPolicy(s.redis, 10, 5*time.Minute, middleware.FailClosed, "login"), s.Login)
	authGroup.Post("/refresh", s.Refresh)
	authGroup.Post("/logout", auth, s.Logout)

	// Users
	api.Post("/users", signupLimit, s.Register)
	api.Get("/users", auth, s.GetUsers)
	api.Post("/users/:id/change_password", auth, s.ChangePassword)
	api.Get("/users/:id", auth, s.GetUser)
	api.Put("/users/:id", auth, s.UpdateUser)
	api.Delete("/users/:id", auth, s.DeactivateUser)
	api.Get("/users-search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchUsers)
	api.Get("/user-logged", auth, s.GetLoggedUser)

	// Posts
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	s.reactionRoutes(posts, models.TargetPost, auth)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", auth, s.UpdatePost)
	posts.Delete("/:id", auth, s.DeletePost)

	// Comments
	comments := api.Group("/comments")
	comments.Get("/", s.GetComments)
	comments.Post("/", auth, middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	s.reactionRoutes(comments, models.TargetComment, auth)
	comments.Get("/:id", s.GetComment)
	comments.Put("/:id", auth, s.UpdateComment)
	if s.featureFlags.On(featureflags.CommentDelete) {
		comments.Delete("/:id", auth, s.DeleteComment)
	}
}

// reactionRoutes mounts like/dislike toggles for target under group. The
// remove-* paths are the historical names; DELETE on the plain verb is an alias.
func (s *Server) reactionRoutes(group fiber.Router, target models.TargetType, auth fiber.Handler) {
	group.Post("/:id/like", auth, s.React(target, service.ActionLike))
	group.Delete("/:id/like", auth, s.React(target, service.ActionUnlike))
	group.Delete("/:id/remove-like", auth, s.React(target, service.ActionUnlike))
	group.Post("/:id/dislike", auth, s.React(target, service.ActionDislike))
	group.Delete("/:id/dislike", auth, s.React(target, service.ActionUndislike))
	group.Delete("/:id/remove-dislike", auth, s.React(target, service.ActionUndislike))
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown drains HTTP connections and closes the database and Redis clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
