package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/errors"
	"github.com/theapemachine/mediagen/pkg/metrics"
	"github.com/theapemachine/mediagen/pkg/notify"
	"github.com/theapemachine/mediagen/pkg/processor"
	"github.com/theapemachine/mediagen/pkg/queue"
	"github.com/theapemachine/mediagen/pkg/stores"
	"github.com/theapemachine/mediagen/pkg/worker"
	"github.com/tj/assert"
)

type testEnv struct {
	server *Server
	store  stores.TaskStore
	hub    *notify.Hub
	queue  *queue.Queue
}

func newTestEnv(t *testing.T, config queue.Config, workers map[string]worker.Worker) *testEnv {
	t.Helper()

	store := stores.NewInMemoryTaskStore()

	m := metrics.NewDeliveryMetrics()
	hub := notify.NewHub(notify.NewDispatcher(2, 16, m), m)
	store.AddListener(hub.TaskUpdated)

	registry := worker.NewRegistry()

	for taskType, handler := range workers {
		registry.Register(taskType, handler)
	}

	proc, err := processor.New(store, registry)
	assert.NoError(t, err)

	taskQueue := queue.New(config, proc.Process, proc.RequestCancel)

	description := "test fixture"
	card := &a2a.AgentCard{
		Name:        "mediagen-test",
		Description: &description,
		URL:         "http://test.local",
		Version:     "0.0.1",
		Capabilities: a2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      true,
			StateTransitionHistory: true,
		},
		Skills: []a2a.AgentSkill{{ID: "text2image", Name: "Text to Image"}},
	}

	server := NewServer(card, store, hub, taskQueue, proc, WithDeliveryMetrics(m))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = taskQueue.Shutdown(ctx)
		hub.Close()
	})

	return &testEnv{server: server, store: store, hub: hub, queue: taskQueue}
}

func demoEnv(t *testing.T) *testEnv {
	t.Helper()

	return newTestEnv(t, queue.Config{MaxConcurrent: 2, MaxRetries: 0, RetryDelay: 10 * time.Millisecond},
		map[string]worker.Worker{
			"text2image": worker.NewDemoWorker("image", 5*time.Millisecond),
		})
}

// parkedEnv holds every accepted task in the pending queue forever.
func parkedEnv(t *testing.T) *testEnv {
	t.Helper()

	return newTestEnv(t, queue.Config{MaxConcurrent: 0, MaxRetries: 0, RetryDelay: time.Second},
		map[string]worker.Worker{
			"text2image": worker.NewDemoWorker("image", time.Second),
		})
}

func doRequest(t *testing.T, app *fiber.App, method string, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second, FailOnTimeout: true})
	assert.NoError(t, err)

	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()

	defer res.Body.Close()
	assert.NoError(t, json.NewDecoder(res.Body).Decode(out))
}

func sendBody(id string, taskType string, prompt string) map[string]any {
	params := a2a.TaskSendParams{
		ID:        id,
		SessionID: "session-1",
		Message: a2a.Message{
			Role:  "user",
			Parts: []a2a.Part{a2a.NewTextPart(prompt)},
		},
	}

	if taskType != "" {
		params.Metadata = map[string]any{"taskType": taskType}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  a2a.MethodSendTask,
		"params":  params,
	}
}

func awaitState(t *testing.T, app *fiber.App, id string, state a2a.TaskState) *a2a.Task {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)

	for time.Now().Before(deadline) {
		res := doRequest(t, app, http.MethodGet, "/tasks/"+id, nil)

		if res.StatusCode == http.StatusOK {
			task := &a2a.Task{}
			decodeBody(t, res, task)

			if task.Status.State == state {
				return task
			}
		} else {
			res.Body.Close()
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("task %s never reached state %s", id, state)
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	env := demoEnv(t)

	res := doRequest(t, env.server.App(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := map[string]string{}
	decodeBody(t, res, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestAgentCardEndpoint(t *testing.T) {
	env := demoEnv(t)

	res := doRequest(t, env.server.App(), http.MethodGet, "/.well-known/agent.json", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	card := &a2a.AgentCard{}
	decodeBody(t, res, card)
	assert.Equal(t, "mediagen-test", card.Name)
	assert.True(t, card.Capabilities.Streaming)
	assert.NotEmpty(t, card.Skills)
}

func TestGetTaskNotFound(t *testing.T) {
	env := demoEnv(t)

	res := doRequest(t, env.server.App(), http.MethodGet, "/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	rpcErr := &errors.RpcError{}
	decodeBody(t, res, rpcErr)
	assert.Equal(t, errors.ErrTaskNotFound.Code, rpcErr.Code)
}

func TestListTasksFiltersBySession(t *testing.T) {
	env := parkedEnv(t)
	app := env.server.App()

	first := sendBody("task-a", "text2image", "a red cube")
	doRequest(t, app, http.MethodPost, "/tasks/send", first).Body.Close()

	second := sendBody("task-b", "text2image", "a blue cube")
	params := second["params"].(a2a.TaskSendParams)
	params.SessionID = "session-2"
	second["params"] = params
	doRequest(t, app, http.MethodPost, "/tasks/send", second).Body.Close()

	res := doRequest(t, app, http.MethodGet, "/tasks?session_id=session-2", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var filtered []*a2a.Task
	decodeBody(t, res, &filtered)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "task-b", filtered[0].ID)

	res = doRequest(t, app, http.MethodGet, "/tasks", nil)
	var all []*a2a.Task
	decodeBody(t, res, &all)
	assert.Len(t, all, 2)
}

func TestHistoryTrajectory(t *testing.T) {
	env := demoEnv(t)
	app := env.server.App()

	doRequest(t, app, http.MethodPost, "/tasks/send", sendBody("task-history", "text2image", "a sunset")).Body.Close()
	awaitState(t, app, "task-history", a2a.TaskStateCompleted)

	res := doRequest(t, app, http.MethodGet, "/tasks/task-history/history", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var history []a2a.TaskStatus
	decodeBody(t, res, &history)
	assert.True(t, len(history) >= 3)
	assert.Equal(t, a2a.TaskStateSubmitted, history[0].State)
	assert.Equal(t, a2a.TaskStateCompleted, history[len(history)-1].State)
}

func TestHistoryNotFound(t *testing.T) {
	env := demoEnv(t)

	res := doRequest(t, env.server.App(), http.MethodGet, "/tasks/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()
}

func TestCancelPendingTask(t *testing.T) {
	env := parkedEnv(t)
	app := env.server.App()

	doRequest(t, app, http.MethodPost, "/tasks/send", sendBody("task-parked", "text2image", "a forest")).Body.Close()

	res := doRequest(t, app, http.MethodPost, "/tasks/task-parked/cancel", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	task := &a2a.Task{}
	decodeBody(t, res, task)
	assert.Equal(t, a2a.TaskStateCancelled, task.Status.State)

	// a second cancel hits the terminal guard
	res = doRequest(t, app, http.MethodPost, "/tasks/task-parked/cancel", nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	rpcErr := &errors.RpcError{}
	decodeBody(t, res, rpcErr)
	assert.Equal(t, errors.ErrTaskNotCancelable.Code, rpcErr.Code)
}

func TestCancelUnknownTask(t *testing.T) {
	env := demoEnv(t)

	res := doRequest(t, env.server.App(), http.MethodPost, "/tasks/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()
}

func TestCancelRunningTask(t *testing.T) {
	env := newTestEnv(t, queue.Config{MaxConcurrent: 1, MaxRetries: 0, RetryDelay: time.Second},
		map[string]worker.Worker{"text2image": &loopingWorker{}})
	app := env.server.App()

	doRequest(t, app, http.MethodPost, "/tasks/send", sendBody("task-running", "text2image", "a glacier")).Body.Close()
	awaitState(t, app, "task-running", a2a.TaskStateWorking)

	res := doRequest(t, app, http.MethodPost, "/tasks/task-running/cancel", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	awaitState(t, app, "task-running", a2a.TaskStateCancelled)
}

// loopingWorker renders forever until the job is cancelled.
type loopingWorker struct{}

func (w *loopingWorker) Handle(ctx context.Context, job *worker.Job) <-chan worker.Update {
	updates := make(chan worker.Update, 4)

	go func() {
		defer close(updates)
		updates <- worker.StatusUpdate(a2a.TaskStateWorking, "Rendering...")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}

			if job.Stopped() {
				updates <- worker.StatusUpdate(a2a.TaskStateCancelled, "Task cancelled by request.")
				return
			}
		}
	}()

	return updates
}

func TestWebhookRegistrationEndpoint(t *testing.T) {
	env := parkedEnv(t)
	app := env.server.App()

	doRequest(t, app, http.MethodPost, "/tasks/send", sendBody("task-hook", "text2image", "a lighthouse")).Body.Close()

	res := doRequest(t, app, http.MethodPost, "/tasks/task-hook/notifications", map[string]any{
		"webhookUrl": "not-a-url",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()

	res = doRequest(t, app, http.MethodPost, "/tasks/missing/notifications", map[string]any{
		"webhookUrl": "https://example.com/hook",
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()

	res = doRequest(t, app, http.MethodPost, "/tasks/task-hook/notifications", map[string]any{
		"webhookUrl": "https://example.com/hook",
		"eventTypes": []string{"completion"},
	})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := map[string]string{}
	decodeBody(t, res, &body)
	assert.Equal(t, "registered", body["status"])
	assert.Equal(t, "task-hook", body["taskId"])
}

func TestNotificationStreamUnknownTask(t *testing.T) {
	env := demoEnv(t)

	res := doRequest(t, env.server.App(), http.MethodGet, "/tasks/missing/notifications", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res.Body.Close()
}

func TestNotificationStreamClosesForFinishedTask(t *testing.T) {
	env := demoEnv(t)
	app := env.server.App()

	doRequest(t, app, http.MethodPost, "/tasks/send", sendBody("task-done", "text2image", "a canyon")).Body.Close()
	awaitState(t, app, "task-done", a2a.TaskStateCompleted)

	res := doRequest(t, app, http.MethodGet, "/tasks/task-done/notifications", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	payload, err := io.ReadAll(res.Body)
	res.Body.Close()
	assert.NoError(t, err)

	// connected preamble only; the stream ends because the task is
	// already terminal
	assert.Contains(t, string(payload), `"status":"connected"`)
	assert.False(t, bytes.Contains(payload, []byte(`"type":"completion"`)))
}

func TestStatusEndpoint(t *testing.T) {
	env := demoEnv(t)
	app := env.server.App()

	doRequest(t, app, http.MethodPost, "/tasks/send", sendBody("task-status", "text2image", "a meadow")).Body.Close()
	awaitState(t, app, "task-status", a2a.TaskStateCompleted)

	res := doRequest(t, app, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := struct {
		Queue    queue.Status   `json:"queue"`
		Delivery map[string]any `json:"delivery"`
	}{}
	decodeBody(t, res, &body)
	assert.Equal(t, 1, body.Queue.Completed)
	assert.NotNil(t, body.Delivery)
}
