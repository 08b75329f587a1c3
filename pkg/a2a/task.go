package a2a

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	TaskType  string         `json:"taskType,omitempty"`
	Prompt    string         `json:"prompt,omitempty"`
	Message   *Message       `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []TaskStatus   `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
}

/*
NewTask builds a submitted task from send params, minting a uuid when the
caller did not provide an id.  Prompt is derived from the first text part
and TaskType from the metadata discriminator.
*/
func NewTask(params TaskSendParams) *Task {
	id := params.ID

	if id == "" {
		id = uuid.NewString()
	}

	task := &Task{
		ID:        id,
		SessionID: params.SessionID,
		Message:   &params.Message,
		Metadata:  params.Metadata,
		Prompt:    params.Message.FirstText(),
		Status:    NewStatus(TaskStateSubmitted, nil),
	}

	if taskType, ok := params.Metadata["taskType"].(string); ok {
		task.TaskType = taskType
	}

	return task
}

func NewTaskFromRequest(body []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

/*
ToStatus advances the task to a new status, appending the prior status to
History.  History stays ordered oldest first; the current status is never
duplicated in it.
*/
func (task *Task) ToStatus(state TaskState, message *Message) {
	log.Debug("task status update", "task_id", task.ID, "state", state)

	task.History = append(task.History, task.Status)
	task.Status = NewStatus(state, message)
}

/*
Terminal reports whether the task has reached a state it can never leave.
*/
func (task *Task) Terminal() bool {
	return task.Status.State.Terminal()
}

func (task *Task) AddArtifact(artifact Artifact) {
	artifact.Index = len(task.Artifacts)
	task.Artifacts = append(task.Artifacts, artifact)
}

/*
Clone returns a copy whose slices and maps are detached from the
original, so holders of the copy cannot mutate committed state.
*/
func (task *Task) Clone() *Task {
	clone := *task

	clone.Message = task.Message.Clone()
	clone.Status.Message = task.Status.Message.Clone()

	clone.History = make([]TaskStatus, len(task.History))
	for i, status := range task.History {
		status.Message = status.Message.Clone()
		clone.History[i] = status
	}

	clone.Artifacts = make([]Artifact, len(task.Artifacts))
	for i, artifact := range task.Artifacts {
		clone.Artifacts[i] = artifact.Clone()
	}

	if task.Metadata != nil {
		clone.Metadata = make(map[string]any, len(task.Metadata))
		for k, v := range task.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

/*
ImageURLs returns the metadata imageUrls entries as strings, tolerating
both decoded JSON and native slices.
*/
func (task *Task) ImageURLs() []string {
	switch list := task.Metadata["imageUrls"].(type) {
	case []string:
		return list
	case []any:
		urls := make([]string, 0, len(list))
		for _, entry := range list {
			if url, ok := entry.(string); ok && url != "" {
				urls = append(urls, url)
			}
		}
		return urls
	}

	return nil
}

/*
Duration returns the requested clip duration in seconds.  Only 5 and 10
are accepted; anything else is coerced to 10.
*/
func (task *Task) Duration() int {
	switch d := task.Metadata["duration"].(type) {
	case float64:
		if d == 5 || d == 10 {
			return int(d)
		}
	case int:
		if d == 5 || d == 10 {
			return d
		}
	}

	return 10
}

/*
MetaString returns the metadata value under key when it is a string, or
the empty string otherwise.
*/
func (task *Task) MetaString(key string) string {
	if value, ok := task.Metadata[key].(string); ok {
		return value
	}

	return ""
}

func (task *Task) String() string {
	var sb strings.Builder

	// Styles
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("212")).
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	// Indentation and box-drawing chars
	indent := "   "
	bullet := "│ "

	// Task Details Header
	sb.WriteString(headerStyle.Render("Task Details") + "\n")
	sb.WriteString(bullet + labelStyle.Render("ID: ") + valueStyle.Render(task.ID) + "\n")
	if task.SessionID != "" {
		sb.WriteString(bullet + labelStyle.Render("Session ID: ") + valueStyle.Render(task.SessionID) + "\n")
	}
	if task.TaskType != "" {
		sb.WriteString(bullet + labelStyle.Render("Type: ") + valueStyle.Render(task.TaskType) + "\n")
	}
	if task.Prompt != "" {
		sb.WriteString(bullet + labelStyle.Render("Prompt: ") + valueStyle.Render(task.Prompt) + "\n")
	}

	// Status Section
	sb.WriteString("\n" + sectionStyle.Render("Status") + "\n")
	sb.WriteString(bullet + labelStyle.Render("State: ") + valueStyle.Render(string(task.Status.State)) + "\n")
	if text := task.Status.Text(); text != "" {
		sb.WriteString(bullet + labelStyle.Render("Message: ") + valueStyle.Render(text) + "\n")
	}

	sb.WriteString(bullet + labelStyle.Render("Timestamp: ") + valueStyle.Render(task.Status.Timestamp.Format(time.RFC3339)) + "\n")

	// History Section
	if len(task.History) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("History") + "\n")
		for i, status := range task.History {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Status %d", i+1)) + "\n")
			sb.WriteString(bullet + indent + labelStyle.Render("State: ") + valueStyle.Render(string(status.State)) + "\n")
			if text := status.Text(); text != "" {
				sb.WriteString(bullet + indent + labelStyle.Render("Message: ") + valueStyle.Render(text) + "\n")
			}
			sb.WriteString(bullet + indent + labelStyle.Render("Timestamp: ") + valueStyle.Render(status.Timestamp.Format(time.RFC3339)) + "\n")
		}
	}

	// Artifacts Section
	if len(task.Artifacts) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Artifacts") + "\n")
		for i, artifact := range task.Artifacts {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Artifact %d", i+1)) + "\n")
			if artifact.Name != nil {
				sb.WriteString(bullet + indent + labelStyle.Render("Name: ") + valueStyle.Render(*artifact.Name) + "\n")
			}
			if artifact.Description != nil {
				sb.WriteString(bullet + indent + labelStyle.Render("Description: ") + valueStyle.Render(*artifact.Description) + "\n")
			}
			for j, part := range artifact.Parts {
				value := part.Text
				if part.URL != "" {
					value = part.URL
				}
				sb.WriteString(bullet + indent + labelStyle.Render(fmt.Sprintf("Part %d: ", j+1)) + valueStyle.Render(value) + "\n")
			}
		}
	}

	// Metadata Section
	if len(task.Metadata) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Metadata") + "\n")
		keys := make([]string, 0, len(task.Metadata))
		for k := range task.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(bullet + labelStyle.Render(k+": ") + valueStyle.Render(fmt.Sprintf("%v", task.Metadata[k])) + "\n")
		}
	}

	return sb.String()
}
