package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/ene/pkg/ledger"
	"github.com/papercomputeco/ene/pkg/session"
)

// Server is the API server for live sessions and ledger inspection.
type Server struct {
	config Config
	store  ledger.Store
	loop   *session.Loop
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store and session loop are injected so they can be shared with the
// consolidation worker.
func NewServer(config Config, store ledger.Store, loop *session.Loop, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		store:  store,
		loop:   loop,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/conversations/:id/messages", s.handleListMessages)
	app.Get("/conversations/:id/reflections", s.handleListReflections)
	app.Get("/tags", s.handleListTags)
	app.Get("/ws/:id", s.websocketHandler())

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
