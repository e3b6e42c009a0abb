package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/observability"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// Server is the HTTP API server for driving and inspecting the chronos
// memory engine.
type Server struct {
	config Config
	engine *memory.Engine
	storer storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The engine and storer are injected so
// they can be shared with other surfaces (e.g. the CLI chat loop).
func NewServer(config Config, engine *memory.Engine, storer storage.Driver, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: engine,
		storer: storer,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/turns", s.handleProcessTurn)
	app.Get("/v1/recall", s.handleRecall)
	app.Get("/v1/summaries/:date", s.handleGetSummary)
	app.Get("/metrics", adaptor.HTTPHandler(observability.MetricsHandler()))

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
