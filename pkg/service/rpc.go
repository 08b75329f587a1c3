package service

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/errors"
	"github.com/theapemachine/mediagen/pkg/jsonrpc"
)

/*
handleRPC acts as the central routing for the a2a RPC methods.  Both
submission paths accept the same envelope; the method field selects the
behavior.
*/
func (server *Server) handleRPC(ctx fiber.Ctx) error {
	ctx.Set("Content-Type", "application/json")

	var request jsonrpc.Request

	if err := ctx.Bind().Body(&request); err != nil {
		return writeRPCError(ctx, fiber.StatusBadRequest, nil,
			errors.ErrInvalidRequest.WithMessagef("invalid request body: %v", err))
	}

	if rpcErr := validateEnvelope(&request); rpcErr != nil {
		return writeRPCError(ctx, fiber.StatusBadRequest, request.ID, rpcErr)
	}

	switch request.Method {
	case a2a.MethodSendTask:
		return server.handleSendTask(ctx, &request)
	case a2a.MethodSendTaskSubscribe:
		return server.handleSendTaskSubscribe(ctx, &request)
	default:
		return writeRPCError(ctx, fiber.StatusBadRequest, request.ID,
			errors.ErrMethodNotFound.WithMessagef("method not found: %s", request.Method))
	}
}

/*
validateEnvelope enforces the JSON-RPC 2.0 envelope shape before any
method-specific parsing happens.
*/
func validateEnvelope(request *jsonrpc.Request) *errors.RpcError {
	if request.JSONRPC != "2.0" {
		return errors.ErrInvalidRequest.WithMessagef("jsonrpc version must be 2.0")
	}

	if request.ID == nil {
		return errors.ErrInvalidRequest.WithMessagef("id is required")
	}

	if request.Method == "" {
		return errors.ErrInvalidRequest.WithMessagef("method is required")
	}

	if len(request.Params) == 0 {
		return errors.ErrInvalidRequest.WithMessagef("params are required")
	}

	return nil
}

func parseSendParams(request *jsonrpc.Request) (a2a.TaskSendParams, *errors.RpcError) {
	var params a2a.TaskSendParams

	if err := json.Unmarshal(request.Params, &params); err != nil {
		log.Error("failed to unmarshal params", "method", request.Method, "error", err)
		return params, errors.ErrInvalidParams.WithMessagef("failed to unmarshal params: %v", err)
	}

	if err := params.Validate(); err != nil {
		return params, errors.ErrInvalidParams.WithMessagef("%v", err)
	}

	return params, nil
}

/*
acceptTask persists a freshly minted task and hands it to the queue.
Unknown task types are accepted here on purpose; they fail with a
terminal status once dequeued, so the rejection reaches subscribers.
*/
func (server *Server) acceptTask(ctx fiber.Ctx, params a2a.TaskSendParams) (*a2a.Task, *errors.RpcError) {
	task := a2a.NewTask(params)

	if rpcErr := server.store.Create(ctx, task); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := server.queue.Enqueue(task); rpcErr != nil {
		return nil, rpcErr
	}

	log.Info("task accepted", "task_id", task.ID, "task_type", task.TaskType)

	return task, nil
}

func (server *Server) handleSendTask(ctx fiber.Ctx, request *jsonrpc.Request) error {
	params, rpcErr := parseSendParams(request)

	if rpcErr != nil {
		return writeRPCError(ctx, fiber.StatusBadRequest, request.ID, rpcErr)
	}

	task, rpcErr := server.acceptTask(ctx, params)

	if rpcErr != nil {
		return writeRPCError(ctx, statusFor(rpcErr), request.ID, rpcErr)
	}

	return ctx.Status(fiber.StatusOK).JSON(a2a.SendTaskResponse{
		Message: envelope(request.ID),
		Result:  task,
	})
}

/*
handleSendTaskSubscribe accepts a task and attaches a delivery channel
in one round trip.  Webhook mode registers with the hub before the task
is enqueued so no event can slip past the registration; SSE mode hands
the connection to the hub and never writes a JSON-RPC body.
*/
func (server *Server) handleSendTaskSubscribe(ctx fiber.Ctx, request *jsonrpc.Request) error {
	params, rpcErr := parseSendParams(request)

	if rpcErr != nil {
		return writeRPCError(ctx, fiber.StatusBadRequest, request.ID, rpcErr)
	}

	if taskType, _ := params.Metadata["taskType"].(string); taskType == "" {
		return writeRPCError(ctx, fiber.StatusBadRequest, request.ID,
			errors.ErrInvalidParams.WithMessagef("metadata.taskType is required for streaming requests"))
	}

	if cfg := params.Notification; cfg != nil && cfg.Mode == a2a.NotifyModeWebhook {
		task := a2a.NewTask(params)

		if rpcErr := server.store.Create(ctx, task); rpcErr != nil {
			return writeRPCError(ctx, statusFor(rpcErr), request.ID, rpcErr)
		}

		server.hub.RegisterWebhook(task.ID, cfg.URL, cfg.Token, cfg.EventTypes)

		if rpcErr := server.queue.Enqueue(task); rpcErr != nil {
			return writeRPCError(ctx, statusFor(rpcErr), request.ID, rpcErr)
		}

		log.Info("task accepted", "task_id", task.ID, "task_type", task.TaskType, "delivery", "webhook")

		return ctx.Status(fiber.StatusOK).JSON(a2a.SendTaskSubscribeResponse{
			Message: envelope(request.ID),
			Result:  &a2a.SubscribeResult{TaskID: task.ID},
		})
	}

	var eventTypes []string

	if params.Notification != nil {
		eventTypes = params.Notification.EventTypes
	}

	task, rpcErr := server.acceptTask(ctx, params)

	if rpcErr != nil {
		return writeRPCError(ctx, statusFor(rpcErr), request.ID, rpcErr)
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		server.hub.ServeSSE(task.ID, eventTypes, w, r)
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}

func envelope(id any) jsonrpc.Message {
	return jsonrpc.Message{
		MessageIdentifier: jsonrpc.MessageIdentifier{ID: id},
		JSONRPC:           "2.0",
	}
}

func writeRPCError(ctx fiber.Ctx, status int, id any, rpcErr *errors.RpcError) error {
	return ctx.Status(status).JSON(jsonrpc.Response{
		Message: envelope(id),
		Error: &jsonrpc.Error{
			Code:    rpcErr.Code,
			Message: rpcErr.Message,
			Data:    rpcErr.Data,
		},
	})
}

func statusFor(rpcErr *errors.RpcError) int {
	switch rpcErr.Code {
	case errors.ErrInvalidRequest.Code, errors.ErrInvalidParams.Code, errors.ErrMethodNotFound.Code:
		return fiber.StatusBadRequest
	case errors.ErrTaskNotFound.Code:
		return fiber.StatusNotFound
	case errors.ErrTaskNotCancelable.Code:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
