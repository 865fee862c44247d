package server

import (
	"context"
	"cuecard/app/config"
	"cuecard/app/service/engine"
	"cuecard/app/service/queue"
	"cuecard/app/service/session"
	"cuecard/app/service/settings"
	"cuecard/app/service/surface"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
)

const shutdownTimeout = 5 * time.Second

type Deps struct {
	Sessions *session.Service
	Engine   *engine.Service
	Queue    *queue.Service
	Surface  *surface.Service
	Settings *settings.Service
}

type Server struct {
	Deps

	listen   string
	app      *fiber.App
	validate *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(cfg.Server.Listen, Deps{
		Sessions: do.MustInvoke[*session.Service](di),
		Engine:   do.MustInvoke[*engine.Service](di),
		Queue:    do.MustInvoke[*queue.Service](di),
		Surface:  do.MustInvoke[*surface.Service](di),
		Settings: do.MustInvoke[*settings.Service](di),
	}), nil
}

func NewServer(listen string, deps Deps) *Server {
	s := &Server{
		Deps:     deps,
		listen:   listen,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "cuecard",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")

	api.Get("/session", s.getSession)
	api.Post("/session", s.startSession)
	api.Delete("/session", s.endSession)

	api.Post("/fragments", s.addFragment)

	api.Get("/messages", s.getMessages)
	api.Post("/messages", s.addMessage)
	api.Post("/messages/:id/resend", s.resendMessage)

	api.Get("/guidance", s.getGuidance)

	api.Get("/settings", s.getSettings)
	api.Put("/settings", s.updateSettings)

	api.Get("/personas", s.getPersonas)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.serveWS))

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Warn("HTTP server shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "listen", s.listen)

	return s.app.Listen(s.listen)
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}
