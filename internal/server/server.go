// Package server assembles the API: storage, services, gates and routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/transconnect-go/internal/domain/post"
	"github.com/transconnect-go/internal/domain/resource"
	"github.com/transconnect-go/internal/domain/user"
	authhandlers "github.com/transconnect-go/internal/services/auth/handlers"
	"github.com/transconnect-go/internal/services/auth/rbac"
	authservice "github.com/transconnect-go/internal/services/auth/service"
	bathroomclient "github.com/transconnect-go/internal/services/bathroom/client"
	bathroomhandlers "github.com/transconnect-go/internal/services/bathroom/handlers"
	posthandlers "github.com/transconnect-go/internal/services/post/handlers"
	postrepo "github.com/transconnect-go/internal/services/post/repository"
	postservice "github.com/transconnect-go/internal/services/post/service"
	resourcehandlers "github.com/transconnect-go/internal/services/resource/handlers"
	resourcerepo "github.com/transconnect-go/internal/services/resource/repository"
	resourceservice "github.com/transconnect-go/internal/services/resource/service"
	userhandlers "github.com/transconnect-go/internal/services/user/handlers"
	userrepo "github.com/transconnect-go/internal/services/user/repository"
	userservice "github.com/transconnect-go/internal/services/user/service"
	"github.com/transconnect-go/pkg/auth/jwt"
	"github.com/transconnect-go/pkg/config"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/metrics"
	authmw "github.com/transconnect-go/pkg/middleware/auth"
	"github.com/transconnect-go/pkg/middleware/requestid"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "api"

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	db         *database.DB
	eventBus   events.Bus
	telemetry  *telemetry.Telemetry
}

type handlerSet struct {
	auth      *authhandlers.AuthHandlers
	users     *userhandlers.UserHandlers
	posts     *posthandlers.PostHandlers
	resources *resourcehandlers.ResourceHandlers
	bathrooms *bathroomhandlers.BathroomHandlers
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.New(cfg.Database.ToDatabaseConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	srv, err := NewWithDatabase(cfg, log, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithDatabase builds the server on an already opened database. Tests
// pass an in-memory SQLite one.
func NewWithDatabase(cfg *config.Config, log logger.Logger, db *database.DB) (*Server, error) {
	if err := db.Migrate(&user.User{}, &post.Tag{}, &post.Post{}, &post.Comment{}, &resource.Type{}, &resource.Resource{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize capability store
	enforcer, err := rbac.NewEnforcer(db, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	// Initialize JWT manager
	jwtManager, err := jwt.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT manager: %w", err)
	}

	// Initialize event bus
	var eventBus events.Bus = events.NewNopBus()
	if cfg.Events.Enabled {
		kafkaBus, err := events.NewKafkaBus(cfg.Events.ToKafkaConfig(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		eventBus = kafkaBus
	}

	// Initialize tracing
	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig(cfg.Env))
	if err != nil {
		_ = eventBus.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize repositories
	users := userrepo.NewUserRepository(db)
	posts := postrepo.NewPostRepository(db)
	resources := resourcerepo.NewResourceRepository(db)

	// Initialize services and handlers
	handlers := handlerSet{
		auth: authhandlers.NewAuthHandlers(
			authservice.NewAuthService(users, jwtManager, eventBus, cfg.Auth.BcryptCost, log)),
		users: userhandlers.NewUserHandlers(
			userservice.NewUserService(users, jwtManager, enforcer, eventBus, cfg.Auth.BcryptCost, log)),
		posts: posthandlers.NewPostHandlers(
			postservice.NewPostService(posts, eventBus, log)),
		resources: resourcehandlers.NewResourceHandlers(
			resourceservice.NewResourceService(resources, enforcer, eventBus, log)),
		bathrooms: bathroomhandlers.NewBathroomHandlers(
			bathroomclient.NewClient(cfg.Bathrooms, tel, log), cfg.Bathrooms),
	}

	s := &Server{
		config:    cfg,
		logger:    log,
		db:        db,
		eventBus:  eventBus,
		telemetry: tel,
	}
	s.router = s.setupRouter(handlers, authmw.NewResolver(jwtManager), enforcer)
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	return s, nil
}

func (s *Server) setupRouter(h handlerSet, resolver *authmw.Resolver, enforcer *rbac.Enforcer) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(requestid.Middleware())
	router.Use(loggingMiddleware(s.logger, s.config.IsTest()))
	router.Use(response.ErrorHandler(s.logger, s.config.IsTest()))
	router.Use(response.Recovery())
	router.Use(corsMiddleware())
	router.Use(metrics.HTTPMiddleware(serviceName))
	router.Use(s.telemetry.HTTPMiddleware())
	router.Use(resolver.Authenticate())
	router.Use(principalSpanMiddleware())

	router.NoRoute(response.NotFoundHandler)

	// Health checks
	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/token", h.auth.Token)
		auth.POST("/register", h.auth.Register)
	}

	users := router.Group("/users")
	{
		self := authmw.SelfByNameOrAdmin(authmw.FromParam("username"))
		userPost := authmw.SelfOrAdmin(h.posts.UserPostEvidence())

		users.POST("", authmw.Admin(), h.users.CreateUser)
		users.GET("", authmw.Admin(), h.users.ListUsers)
		users.GET("/:username", authmw.LoggedIn(), h.users.GetUser)
		users.PATCH("/:username", self, h.users.UpdateUser)
		users.DELETE("/:username", self, h.users.DeleteUser)
		users.GET("/:username/posts", h.posts.ListUserPosts)
		users.PATCH("/:username/posts/:post_id", userPost, h.posts.UpdateUserPost)
		users.DELETE("/:username/posts/:post_id", userPost, h.posts.DeleteUserPost)
	}

	posts := router.Group("/posts")
	{
		postOwner := authmw.SelfByNameOrAdmin(h.posts.PostOwnerEvidence())
		commentOwner := authmw.SelfByNameOrAdmin(h.posts.CommentOwnerEvidence())

		posts.GET("", h.posts.ListPosts)
		posts.GET("/tags", h.posts.ListTags)
		posts.POST("", authmw.LoggedIn(), h.posts.CreatePost)
		posts.GET("/:post_id", authmw.LoggedIn(), h.posts.GetPost)
		posts.PATCH("/:post_id", postOwner, h.posts.UpdatePost)
		posts.DELETE("/:post_id", postOwner, h.posts.DeletePost)
		posts.GET("/:post_id/comments", h.posts.ListComments)
		posts.POST("/:post_id/comments", authmw.LoggedIn(), h.posts.AddComment)
		posts.PATCH("/:post_id/comments/:comment_id", commentOwner, h.posts.UpdateComment)
		posts.DELETE("/:post_id/comments/:comment_id", commentOwner, h.posts.DeleteComment)
	}

	comments := router.Group("/comments")
	{
		commentOwner := authmw.SelfByNameOrAdmin(h.posts.CommentOwnerEvidence())

		comments.GET("/:post_id", authmw.LoggedIn(), h.posts.ListComments)
		comments.GET("/:post_id/:comment_id", authmw.LoggedIn(), h.posts.GetComment)
		comments.POST("/:post_id", authmw.LoggedIn(), h.posts.AddComment)
		comments.PATCH("/:post_id/:comment_id", commentOwner, h.posts.EditComment)
		comments.DELETE("/:post_id/:comment_id", commentOwner, h.posts.RemoveComment)
	}

	resources := router.Group("/resources")
	{
		resources.GET("", h.resources.ListResources)
		resources.GET("/types", h.resources.ListTypes)
		resources.POST("/types", authmw.Admin(),
			authmw.RequireCapability(enforcer, rbac.ObjectTypes, rbac.ActionCreate), h.resources.CreateType)
		resources.GET("/:resource_id", h.resources.GetResource)
		resources.POST("", h.resources.SubmitResource)
		resources.PATCH("/:resource_id", authmw.Admin(), h.resources.UpdateResource)
		resources.DELETE("/:resource_id", authmw.Admin(), h.resources.DeleteResource)
	}

	router.GET("/bathrooms", h.bathrooms.ListBathrooms)

	return router
}

// Router exposes the configured engine for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr, "env", s.config.Env)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	// Close event bus
	if err := s.eventBus.Close(); err != nil {
		s.logger.Error("Failed to close event bus", "error", err)
	}

	// Flush traces
	if err := s.telemetry.Close(ctx); err != nil {
		s.logger.Error("Failed to close telemetry", "error", err)
	}

	// Close database
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}

	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Middleware functions
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+requestid.Header)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestid.Header)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(log logger.Logger, quiet bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if quiet {
			c.Next()
			return
		}

		// Start timer
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
			"request_id", requestid.FromContext(c.Request.Context()),
		)
	}
}

// principalSpanMiddleware tags the server span with the resolved principal.
func principalSpanMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal := authmw.PrincipalFrom(c); principal != nil {
			trace.SpanFromContext(c.Request.Context()).SetAttributes(
				telemetry.UsernameAttribute(principal.Username),
				telemetry.RoleAttribute(string(principal.Role)),
			)
		}
		c.Next()
	}
}
