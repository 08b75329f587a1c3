package service

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/metrics"
	"github.com/theapemachine/mediagen/pkg/notify"
	"github.com/theapemachine/mediagen/pkg/processor"
	"github.com/theapemachine/mediagen/pkg/queue"
	"github.com/theapemachine/mediagen/pkg/stores"
)

/*
Server exposes the media agent over HTTP: JSON-RPC endpoints for task
submission, a REST surface for inspection and cancellation, and SSE
streams fed by the notification hub.  Safe for concurrent use because
the store, queue, and hub are.
*/
type Server struct {
	app       *fiber.App
	card      *a2a.AgentCard
	store     stores.TaskStore
	hub       *notify.Hub
	queue     *queue.Queue
	processor *processor.Processor
	metrics   *metrics.DeliveryMetrics
	addr      string
}

type ServerOption func(*Server)

// WithAddr overrides the default listen address.
func WithAddr(addr string) ServerOption {
	return func(server *Server) {
		server.addr = addr
	}
}

/*
WithDeliveryMetrics shares the hub's delivery counters with the /status
endpoint.  Pass the same instance the hub was built with, otherwise
/status reports zeros.
*/
func WithDeliveryMetrics(m *metrics.DeliveryMetrics) ServerOption {
	return func(server *Server) {
		server.metrics = m
	}
}

/*
NewServer constructs the HTTP layer on top of an assembled store, hub,
queue, and processor.  Routes are registered immediately so tests can
drive the app without a listener.
*/
func NewServer(
	card *a2a.AgentCard,
	store stores.TaskStore,
	hub *notify.Hub,
	taskQueue *queue.Queue,
	taskProcessor *processor.Processor,
	options ...ServerOption,
) *Server {
	server := &Server{
		app: fiber.New(fiber.Config{
			AppName:           card.Name,
			ServerHeader:      "MediaGen-Server",
			StreamRequestBody: true,
		}),
		card:      card,
		store:     store,
		hub:       hub,
		queue:     taskQueue,
		processor: taskProcessor,
		metrics:   metrics.NewDeliveryMetrics(),
		addr:      ":3210",
	}

	for _, option := range options {
		option(server)
	}

	server.routes()

	return server
}

func (server *Server) routes() {
	server.app.Use(logger.New(logger.Config{
		// Skip logging for the SSE endpoints to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/tasks/sendSubscribe" ||
				(c.Method() == fiber.MethodGet && strings.HasSuffix(c.Path(), "/notifications"))
		},
	}))

	server.app.Get("/health", server.handleHealth)
	server.app.Get("/.well-known/agent.json", server.handleAgentCard)
	server.app.Get("/status", server.handleStatus)

	server.app.Post("/tasks/send", server.handleRPC)
	server.app.Post("/tasks/sendSubscribe", server.handleRPC)

	server.app.Get("/tasks", server.handleListTasks)
	server.app.Get("/tasks/:id", server.handleGetTask)
	server.app.Get("/tasks/:id/history", server.handleGetHistory)
	server.app.Post("/tasks/:id/cancel", server.handleCancelTask)
	server.app.Post("/tasks/:id/notifications", server.handleRegisterWebhook)
	server.app.Get("/tasks/:id/notifications", server.handleNotificationStream)
}

/*
Start listens on the configured address and blocks until the listener
fails or Shutdown is called.
*/
func (server *Server) Start() error {
	log.Info("starting server", "addr", server.addr, "agent", server.card.Name)

	return server.app.Listen(server.addr, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
}

// Shutdown stops accepting connections and drains in-flight requests.
func (server *Server) Shutdown(ctx context.Context) error {
	return server.app.ShutdownWithContext(ctx)
}

// App exposes the underlying fiber app so tests can drive requests
// in-process.
func (server *Server) App() *fiber.App {
	return server.app
}
