package a2a

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mediagen/pkg/jsonrpc"
)

func TestSendTask(t *testing.T) {
	Convey("Given a server that accepts tasks/send", t, func(c C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.So(r.URL.Path, ShouldEqual, "/tasks/send")

			var req jsonrpc.Request
			c.So(json.NewDecoder(r.Body).Decode(&req), ShouldBeNil)
			c.So(req.Method, ShouldEqual, "tasks/send")

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(SendTaskResponse{
				Result: &Task{
					ID:     "task-1",
					Status: NewStatus(TaskStateSubmitted, nil),
				},
			})
		}))
		defer srv.Close()

		client := NewClient(srv.URL)
		task, err := client.SendTask(TaskSendParams{
			Message: *NewTextMessage("user", "a red bicycle"),
		})

		So(err, ShouldBeNil)
		So(task.ID, ShouldEqual, "task-1")
		So(task.Status.State, ShouldEqual, TaskStateSubmitted)
	})

	Convey("Given a server that responds with an RPC error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(SendTaskResponse{
				Error: &jsonrpc.Error{Code: -32602, Message: "Invalid params"},
			})
		}))
		defer srv.Close()

		client := NewClient(srv.URL)
		task, err := client.SendTask(TaskSendParams{})

		So(task, ShouldBeNil)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "-32602")
	})
}

func TestSendTaskSubscribe(t *testing.T) {
	Convey("Given a server that streams SSE frames", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")

			for _, event := range []Event{
				NewEvent(EventStatusUpdate, "task-1", map[string]any{"status": "connected"}),
				NewEvent(EventCompletion, "task-1", map[string]any{}),
			} {
				buf, _ := json.Marshal(event)
				_, _ = w.Write([]byte("data: " + string(buf) + "\n\n"))
			}
		}))
		defer srv.Close()

		client := NewClient(srv.URL)
		events := make(chan Event, 2)
		err := client.SendTaskSubscribe(TaskSendParams{
			Message: *NewTextMessage("user", "a red bicycle"),
		}, events)

		So(err, ShouldBeNil)
		first := <-events
		So(first.Type, ShouldEqual, EventStatusUpdate)
		So(first.TaskID, ShouldEqual, "task-1")
		second := <-events
		So(second.Type, ShouldEqual, EventCompletion)
	})
}

func TestGetTask(t *testing.T) {
	Convey("Given a server that knows one task", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tasks/task-1" {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Task{
				ID:     "task-1",
				Status: NewStatus(TaskStateWorking, nil),
			})
		}))
		defer srv.Close()

		client := NewClient(srv.URL)

		Convey("Then the known task is returned", func() {
			task, err := client.GetTask("task-1")
			So(err, ShouldBeNil)
			So(task.Status.State, ShouldEqual, TaskStateWorking)
		})

		Convey("Then an unknown id yields a not found error", func() {
			task, err := client.GetTask("missing")
			So(task, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "not found")
		})
	})
}
