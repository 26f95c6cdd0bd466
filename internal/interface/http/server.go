// Package http implements the EduAid REST API on gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/eduaid/eduaid-hub/internal/application/command"
	"github.com/eduaid/eduaid-hub/internal/application/query"
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/auth"
	"github.com/eduaid/eduaid-hub/internal/interface/http/handlers"
	"github.com/eduaid/eduaid-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS.
	AllowedOrigins []string

	// Version is reported by /health and the response envelope.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		AllowedOrigins: []string{"http://localhost:3000"},
		Version:        "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HTTPObserver records request metrics.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, duration time.Duration)
}

// SessionCloser ends a learner's session on logout.
type SessionCloser interface {
	Close(userID string) bool
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	StartLesson           *command.StartLessonHandler
	UpdateLessonProgress  *command.UpdateLessonProgressHandler
	CompleteLesson        *command.CompleteLessonHandler
	CompleteActivity      *command.CompleteActivityHandler
	MarkNotificationsRead *command.MarkNotificationsReadHandler

	// Query Handlers (CQRS Read Side)
	GetDashboard     *query.GetDashboardHandler
	GetCalendar      *query.GetCalendarHandler
	GetProgress      *query.GetProgressHandler
	GetNotifications *query.GetNotificationsHandler

	Catalog *catalog.Catalog
	Auth    auth.Authenticator

	// Optional
	Sessions       SessionCloser
	HealthChecker  handlers.HealthChecker
	MetricsHandler http.Handler
	Observer       HTTPObserver

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("http: authenticator is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("http: catalog is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker(config.Version)
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With(logger.Component("http")),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.engine,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// Handler returns the root handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupMiddleware() {
	s.engine.Use(s.recoveryMiddleware(), s.requestIDMiddleware(), s.loggingMiddleware())

	if len(s.config.AllowedOrigins) > 0 {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", headerRequestID},
			ExposeHeaders:    []string{headerRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Metrics
	// ─────────────────────────────────────────────────────────────────────────
	s.engine.GET("/health", s.handleHealth)
	if s.deps.MetricsHandler != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.MetricsHandler))
	}

	v1 := s.engine.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Public
	// ─────────────────────────────────────────────────────────────────────────
	v1.POST("/auth/login", s.handleLogin)
	v1.POST("/auth/2fa", s.handleVerify2FA)
	v1.GET("/catalog", s.handleGetCatalog)

	// ─────────────────────────────────────────────────────────────────────────
	// Learner (bearer token)
	// ─────────────────────────────────────────────────────────────────────────
	learner := v1.Group("")
	learner.Use(s.requireAuth())

	learner.POST("/auth/logout", s.handleLogout)

	learner.POST("/lessons/:id/start", s.handleStartLesson)
	learner.PUT("/lessons/:id/progress", s.handleUpdateLessonProgress)
	learner.POST("/lessons/:id/save-exit", s.handleSaveAndExitLesson)
	learner.POST("/lessons/:id/complete", s.handleCompleteLesson)

	learner.POST("/activities/:id/complete", s.handleCompleteActivity)

	learner.GET("/dashboard", s.handleGetDashboard)
	learner.GET("/calendar", s.handleGetCalendar)
	learner.GET("/progress", s.handleGetProgress)

	learner.GET("/notifications", s.handleGetNotifications)
	learner.POST("/notifications/read-all", s.handleMarkAllNotificationsRead)
	learner.POST("/notifications/:id/read", s.handleMarkNotificationRead)

	s.engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "route not found")
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens and serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("http: listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("http server started", logger.String("address", ln.Addr().String()))

	err := s.httpServer.Serve(ln)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
