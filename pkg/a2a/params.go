package a2a

import (
	"fmt"
	"net/url"

	v "github.com/cohesivestack/valgo"
)

// Notification delivery modes.
const (
	NotifyModeSSE     = "sse"
	NotifyModeWebhook = "webhook"
)

/*
NotificationConfig selects the delivery channel for task progress events.
Mode defaults to SSE; URL is required for webhooks.  An empty EventTypes
set subscribes to every event type.
*/
type NotificationConfig struct {
	Mode       string   `json:"mode,omitempty"`
	URL        string   `json:"url,omitempty"`
	Token      string   `json:"token,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
}

// TaskSendParams represents the parameters for sending a task message
type TaskSendParams struct {
	// ID is the unique identifier for the task being initiated or continued
	ID string `json:"id,omitempty"`
	// SessionID is an optional identifier for the session this task belongs to
	SessionID string `json:"sessionId,omitempty"`
	// Message is the message content to send to the agent for processing
	Message Message `json:"message"`
	// Notification is optional delivery configuration for progress events
	Notification *NotificationConfig `json:"notification,omitempty"`
	// Metadata is optional metadata associated with sending this message
	Metadata map[string]any `json:"metadata,omitempty"`
}

var (
	partTypes = []PartType{
		PartTypeText,
		PartTypeImage,
		PartTypeAudio,
		PartTypeVideo,
		PartTypeFile,
	}

	eventTypes = []string{
		string(EventStatusUpdate),
		string(EventArtifactCreated),
		string(EventCompletion),
		string(EventError),
	}
)

/*
Validate checks the structural requirements shared by tasks/send and
tasks/sendSubscribe.  Violations map onto the invalid params error code
at the RPC boundary.
*/
func (params *TaskSendParams) Validate() error {
	val := v.Is(
		v.String(params.Message.Role, "message.role").Not().Blank().InSlice([]string{"user", "agent"}),
		v.Number(len(params.Message.Parts), "message.parts").Not().Zero(),
	)

	for i, part := range params.Message.Parts {
		val.Is(v.String(part.Type, fmt.Sprintf("message.parts[%d].type", i)).InSlice(partTypes))
	}

	if cfg := params.Notification; cfg != nil {
		val.Is(v.String(cfg.Mode, "notification.mode").InSlice([]string{"", NotifyModeSSE, NotifyModeWebhook}))

		if cfg.Mode == NotifyModeWebhook {
			val.Is(v.String(cfg.URL, "notification.url").Not().Blank().Passing(isHTTPURL))
		}

		for i, eventType := range cfg.EventTypes {
			val.Is(v.String(eventType, fmt.Sprintf("notification.eventTypes[%d]", i)).InSlice(eventTypes))
		}
	}

	if !val.Valid() {
		return val.Error()
	}

	return nil
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)

	if err != nil {
		return false
	}

	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
