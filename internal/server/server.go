// Package server exposes an owner's tasks over HTTP and a websocket feed.
// Every /api/v1 route requires a bearer token from the identity package.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"taskdeck/internal/identity"
	"taskdeck/internal/lifecycle"
	"taskdeck/internal/scheduler"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

// bodyLimit fits the largest attachment base64-encoded in a JSON body.
const bodyLimit = task.MaxAttachmentSize*4/3 + 1<<20

// Config holds server settings.
type Config struct {
	// Location is where form dates are interpreted and labels rendered.
	Location *time.Location

	// RequestLog receives one access log line per request. Nil disables it.
	RequestLog io.Writer

	// Now replaces time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server is the HTTP API.
type Server struct {
	app    *fiber.App
	store  store.Store
	lc     *lifecycle.Engine
	auth   *identity.Issuer
	pool   *scheduler.Pool
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// New creates the server and registers its routes. pool may be nil, in which
// case no archival runs for API users and the live feed is unavailable.
func New(st store.Store, lc *lifecycle.Engine, auth *identity.Issuer, pool *scheduler.Pool, cfg Config) *Server {
	s := &Server{
		store:  st,
		lc:     lc,
		auth:   auth,
		pool:   pool,
		loc:    cfg.Location,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "taskdeck",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	if cfg.RequestLog != nil {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
			Output: cfg.RequestLog,
		}))
	}
	s.registerRoutes()
	return s
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api/v1", AuthMiddleware(s.auth, s.startScheduler))
	api.Get("/tasks", s.listTasks)
	api.Post("/tasks", s.createTask)
	api.Get("/tasks/:id", s.getTask)
	api.Patch("/tasks/:id", s.updateTask)
	api.Delete("/tasks/:id", s.deleteTask)
	api.Post("/tasks/:id/complete", s.completeTask)
	api.Post("/tasks/:id/reopen", s.reopenTask)
	api.Get("/tasks/:id/attachment", s.downloadAttachment)
	api.Get("/stats", s.stats)

	api.Use("/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/live", websocket.New(s.live))
}

// startScheduler makes sure archival runs for every owner using the API.
func (s *Server) startScheduler(ownerID string) {
	if s.pool != nil {
		s.pool.Get(ownerID)
	}
}

// errorHandler maps domain errors onto status codes.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code, kind := statusOf(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: kind, Message: err.Error()})
}

func statusOf(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case task.IsValidation(err):
		return fiber.StatusBadRequest, "invalid_input"
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return fiber.StatusConflict, "invalid_transition"
	case task.IsOperation(err), errors.Is(err, store.ErrUnauthorized):
		return fiber.StatusBadGateway, "store_error"
	case errors.As(err, &fe):
		return fe.Code, "request_error"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}
