// Package api exposes the HTTP surface: uploads (direct and chunked), job
// status and live progress streams, the settings endpoint, and the domain
// watchlist. All endpoints speak the APIResponse envelope.
package api

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lootsift/lootsift/internal/chunkstore"
	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/importer"
	"github.com/lootsift/lootsift/internal/progress"
)

// Server wires the HTTP routes to the ingestion components.
type Server struct {
	app      *fiber.App
	cfg      *config.Manager
	repo     *database.Repository
	chunks   *chunkstore.Store
	pipeline *importer.Pipeline
	registry *importer.Registry
	broker   *progress.Broker
	log      *slog.Logger
	ready    atomic.Bool
}

type ServerOptions struct {
	Config   *config.Manager
	Repo     *database.Repository
	Chunks   *chunkstore.Store
	Pipeline *importer.Pipeline
	Registry *importer.Registry
	Broker   *progress.Broker
}

func NewServer(opts ServerOptions) *Server {
	s := &Server{
		cfg:      opts.Config,
		repo:     opts.Repo,
		chunks:   opts.Chunks,
		pipeline: opts.Pipeline,
		registry: opts.Registry,
		broker:   opts.Broker,
		log:      slog.Default().With("component", "api"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "lootsift",
		BodyLimit:             int(opts.Config.Get().MaxFileSizeBytes()) + (1 << 20),
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.registerRoutes()
	return s
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start))
	return err
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")

	api.Get("/health", s.handleHealth)

	api.Post("/upload", s.requireReady, s.handleUpload)
	api.Post("/upload/chunk", s.requireReady, s.handleUploadChunk)
	api.Post("/upload/complete", s.requireReady, s.handleUploadComplete)
	api.Delete("/upload/:fileID", s.requireReady, s.handleUploadAbort)

	api.Get("/jobs", s.handleListJobs)
	api.Get("/jobs/:id", s.handleGetJob)
	api.Post("/jobs/:id/cancel", s.handleCancelJob)
	api.Get("/jobs/:id/events", s.handleJobEvents)

	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handleUpdateSettings)

	api.Get("/monitor/domains", s.handleListMonitoredDomains)
	api.Post("/monitor/domains", s.handleAddMonitoredDomain)
}

// SetReady marks the server as ready to accept uploads.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether initialization has finished.
func (s *Server) IsReady() bool {
	return s.ready.Load()
}

func (s *Server) requireReady(c *fiber.Ctx) error {
	if !s.IsReady() {
		return RespondServiceUnavailable(c, "Service is initializing", "Try again shortly")
	}
	return c.Next()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return RespondSuccess(c, fiber.Map{
		"status":       "ok",
		"ready":        s.IsReady(),
		"running_jobs": s.registry.Running(),
	})
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
