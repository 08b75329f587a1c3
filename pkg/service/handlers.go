package service

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/errors"
)

func (server *Server) handleHealth(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "healthy"})
}

func (server *Server) handleAgentCard(ctx fiber.Ctx) error {
	return ctx.JSON(server.card)
}

func (server *Server) handleStatus(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"queue":    server.queue.Status(),
		"delivery": server.metrics.GetMetrics(),
	})
}

func (server *Server) handleListTasks(ctx fiber.Ctx) error {
	var tasks []*a2a.Task

	if sessionID := ctx.Query("session_id"); sessionID != "" {
		tasks = server.store.ListBySession(ctx, sessionID)
	} else {
		tasks = server.store.List(ctx)
	}

	if tasks == nil {
		tasks = []*a2a.Task{}
	}

	return ctx.JSON(tasks)
}

func (server *Server) handleGetTask(ctx fiber.Ctx) error {
	task, rpcErr := server.store.Get(ctx, ctx.Params("id"))

	if rpcErr != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(rpcErr)
	}

	return ctx.JSON(task)
}

/*
handleGetHistory returns the full status trajectory, oldest first, with
the current status as the last element.
*/
func (server *Server) handleGetHistory(ctx fiber.Ctx) error {
	task, rpcErr := server.store.Get(ctx, ctx.Params("id"))

	if rpcErr != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(rpcErr)
	}

	history := make([]a2a.TaskStatus, 0, len(task.History)+1)
	history = append(history, task.History...)
	history = append(history, task.Status)

	return ctx.JSON(history)
}

/*
handleCancelTask cancels a task wherever it currently lives.  Pending
tasks leave the queue and get their terminal status written here;
running tasks receive a cooperative cancel and report the transition
through the worker, so the response carries the pre-cancel snapshot.
*/
func (server *Server) handleCancelTask(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	task, rpcErr := server.store.Get(ctx, id)

	if rpcErr != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(rpcErr)
	}

	if task.Terminal() {
		return ctx.Status(fiber.StatusConflict).JSON(
			errors.ErrTaskNotCancelable.WithMessagef("task %s is already %s", id, task.Status.State))
	}

	if server.queue.Cancel(id) {
		task.ToStatus(a2a.TaskStateCancelled,
			a2a.NewTextMessage("agent", "Task cancelled before processing started."))

		if rpcErr := server.store.Update(ctx, task); rpcErr != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(rpcErr)
		}

		return ctx.JSON(task)
	}

	if server.processor.RequestCancel(id) {
		return ctx.JSON(task)
	}

	return ctx.Status(fiber.StatusConflict).JSON(
		errors.ErrTaskNotCancelable.WithMessagef("task %s is not queued or running", id))
}

type webhookRegistration struct {
	WebhookURL string   `json:"webhookUrl"`
	Token      string   `json:"token,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
}

func (server *Server) handleRegisterWebhook(ctx fiber.Ctx) error {
	var registration webhookRegistration

	if err := ctx.Bind().Body(&registration); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			errors.ErrInvalidRequest.WithMessagef("invalid request body: %v", err))
	}

	parsed, err := url.Parse(registration.WebhookURL)

	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			errors.ErrInvalidParams.WithMessagef("webhookUrl must be an absolute http or https URL"))
	}

	id := ctx.Params("id")

	if _, rpcErr := server.store.Get(ctx, id); rpcErr != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(rpcErr)
	}

	server.hub.RegisterWebhook(id, registration.WebhookURL, registration.Token, registration.EventTypes)

	return ctx.JSON(fiber.Map{"status": "registered", "taskId": id})
}

/*
handleNotificationStream attaches an SSE stream to an existing task.
The optional eventTypes query parameter is a comma separated filter.
*/
func (server *Server) handleNotificationStream(ctx fiber.Ctx) error {
	id := ctx.Params("id")

	if _, rpcErr := server.store.Get(ctx, id); rpcErr != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(rpcErr)
	}

	var eventTypes []string

	if raw := ctx.Query("eventTypes"); raw != "" {
		eventTypes = strings.Split(raw, ",")
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		server.hub.ServeSSE(id, eventTypes, w, r)
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}
