package a2a

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/google/uuid"
	"github.com/theapemachine/mediagen/pkg/errors"
	"github.com/theapemachine/mediagen/pkg/jsonrpc"
	"github.com/theapemachine/mediagen/pkg/utils"
)

/*
Client represents an A2A protocol client.
*/
type Client struct {
	baseURL string
	conn    *fiberClient.Client
}

/*
NewClient creates a new A2A client.
*/
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		conn:    fiberClient.New().SetBaseURL(baseURL),
	}
}

func newRequest(method string, params any) (jsonrpc.Request, error) {
	buf, err := json.Marshal(params)

	if err != nil {
		log.Error("failed to marshal params", "method", method, "error", err)
		return jsonrpc.Request{}, err
	}

	return jsonrpc.Request{
		Message: jsonrpc.Message{
			MessageIdentifier: jsonrpc.MessageIdentifier{ID: uuid.NewString()},
			JSONRPC:           "2.0",
		},
		Method: method,
		Params: buf,
	}, nil
}

/*
SendTask submits a task for processing and returns the accepted task.
*/
func (client *Client) SendTask(params TaskSendParams) (*Task, error) {
	req, err := newRequest(MethodSendTask, params)

	if err != nil {
		return nil, err
	}

	res, err := client.conn.Post("/tasks/send", fiberClient.Config{
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   req,
	})

	if err != nil {
		return nil, err
	}

	var resp SendTaskResponse

	if err := res.JSON(&resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, &errors.RpcError{Code: resp.Error.Code, Message: resp.Error.Message}
	}

	return resp.Result, nil
}

/*
SendTaskSubscribe submits a task and streams its notification events into
eventChan until the server ends the stream.
*/
func (client *Client) SendTaskSubscribe(params TaskSendParams, eventChan chan<- Event) error {
	req, err := newRequest(MethodSendTaskSubscribe, params)

	if err != nil {
		return err
	}

	res, err := client.conn.Post("/tasks/sendSubscribe", fiberClient.Config{
		Header: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "text/event-stream",
		},
		Body: req,
	})

	if err != nil {
		return err
	}

	reader := bufio.NewReader(bytes.NewReader(res.Body()))

	for {
		data, err := utils.ReadSSE(reader)

		if err != nil {
			if err == io.EOF {
				return nil
			}

			return fmt.Errorf("failed to read event stream: %w", err)
		}

		if data == "" {
			continue
		}

		var event Event

		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}

		eventChan <- event
	}
}

/*
SendTaskWebhook submits a task whose events are delivered to a webhook
and returns the accepted task id.
*/
func (client *Client) SendTaskWebhook(params TaskSendParams) (string, error) {
	req, err := newRequest(MethodSendTaskSubscribe, params)

	if err != nil {
		return "", err
	}

	res, err := client.conn.Post("/tasks/sendSubscribe", fiberClient.Config{
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   req,
	})

	if err != nil {
		return "", err
	}

	var resp SendTaskSubscribeResponse

	if err := res.JSON(&resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", &errors.RpcError{Code: resp.Error.Code, Message: resp.Error.Message}
	}

	if resp.Result == nil {
		return "", errors.ErrInternal.WithMessagef("subscribe returned no result")
	}

	return resp.Result.TaskID, nil
}

/*
GetTask retrieves the current snapshot of a task.
*/
func (client *Client) GetTask(id string) (*Task, error) {
	res, err := client.conn.Get("/tasks/" + id)

	if err != nil {
		return nil, err
	}

	if res.StatusCode() == fiber.StatusNotFound {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}

	task := &Task{}

	if err := res.JSON(task); err != nil {
		return nil, err
	}

	return task, nil
}

/*
GetHistory retrieves the status history of a task, oldest first.
*/
func (client *Client) GetHistory(id string) ([]TaskStatus, error) {
	res, err := client.conn.Get("/tasks/" + id + "/history")

	if err != nil {
		return nil, err
	}

	if res.StatusCode() == fiber.StatusNotFound {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}

	var history []TaskStatus

	if err := res.JSON(&history); err != nil {
		return nil, err
	}

	return history, nil
}

/*
CancelTask requests cancellation and returns the task as the server saw
it after the request.
*/
func (client *Client) CancelTask(id string) (*Task, error) {
	res, err := client.conn.Post("/tasks/" + id + "/cancel")

	if err != nil {
		return nil, err
	}

	if res.StatusCode() == fiber.StatusNotFound {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}

	if res.StatusCode() == fiber.StatusConflict {
		return nil, errors.ErrTaskNotCancelable.WithMessagef("task %s is already in a terminal state", id)
	}

	task := &Task{}

	if err := res.JSON(task); err != nil {
		return nil, err
	}

	return task, nil
}

/*
ListTasks retrieves all tasks, optionally filtered by session id.
*/
func (client *Client) ListTasks(sessionID string) ([]*Task, error) {
	cfg := fiberClient.Config{}

	if sessionID != "" {
		cfg.Param = map[string]string{"session_id": sessionID}
	}

	res, err := client.conn.Get("/tasks", cfg)

	if err != nil {
		return nil, err
	}

	var tasks []*Task

	if err := res.JSON(&tasks); err != nil {
		return nil, err
	}

	return tasks, nil
}

/*
RegisterWebhook binds a webhook to an existing task's notifications.
*/
func (client *Client) RegisterWebhook(id string, cfg NotificationConfig) error {
	res, err := client.conn.Post("/tasks/"+id+"/notifications", fiberClient.Config{
		Header: map[string]string{"Content-Type": "application/json"},
		Body: map[string]any{
			"webhookUrl": cfg.URL,
			"token":      cfg.Token,
			"eventTypes": cfg.EventTypes,
		},
	})

	if err != nil {
		return err
	}

	if res.StatusCode() == fiber.StatusNotFound {
		return errors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}

	if res.StatusCode() != fiber.StatusOK {
		return errors.ErrInternal.WithMessagef("webhook registration failed with status %d", res.StatusCode())
	}

	return nil
}

/*
AgentCard fetches the agent's discovery document.
*/
func (client *Client) AgentCard() (*AgentCard, error) {
	res, err := client.conn.Get("/.well-known/agent.json")

	if err != nil {
		return nil, err
	}

	card := &AgentCard{}

	if err := res.JSON(card); err != nil {
		return nil, err
	}

	return card, nil
}
