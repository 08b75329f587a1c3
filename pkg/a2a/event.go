package a2a

import "time"

/*
EventType classifies the notifications a task emits over SSE and
webhooks.
*/
type EventType string

const (
	EventStatusUpdate    EventType = "status_update"
	EventArtifactCreated EventType = "artifact_created"
	EventCompletion      EventType = "completion"
	EventError           EventType = "error"
)

/*
Event is the wire envelope for a single task notification.  Data carries
at minimum the current status, plus the artifacts once the task is
terminal.
*/
type Event struct {
	Type      EventType      `json:"type"`
	TaskID    string         `json:"taskId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func NewEvent(eventType EventType, taskID string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
