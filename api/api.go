package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/engine"
	"github.com/engramhq/engram/pkg/filter"
)

// Server is the API server for inspecting and updating per-user memory.
type Server struct {
	config Config
	engine *engine.Engine
	filter *filter.Filter
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The engine and filter are injected so
// they can be shared with other components in the same process.
func NewServer(config Config, eng *engine.Engine, filt *filter.Filter, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: eng,
		filter: filt,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/memory/:user", s.handleGetMemory)
	app.Get("/memory/:user/context", s.handleGetContext)
	app.Post("/memory/:user/turns", s.handlePostTurns)
	app.Post("/filter/inlet", s.handleFilterInlet)
	app.Post("/filter/outlet", s.handleFilterOutlet)

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
