package a2a

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTask(t *testing.T) {
	params := TaskSendParams{
		SessionID: "session-1",
		Message:   *NewTextMessage("user", "a neon city at night"),
		Metadata:  map[string]any{"taskType": "text2image"},
	}

	task := NewTask(params)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "session-1", task.SessionID)
	assert.Equal(t, "text2image", task.TaskType)
	assert.Equal(t, "a neon city at night", task.Prompt)
	assert.Equal(t, TaskStateSubmitted, task.Status.State)
	assert.Empty(t, task.History)

	// Caller-supplied ids are kept as-is
	params.ID = "task-42"
	task = NewTask(params)
	assert.Equal(t, "task-42", task.ID)
}

func TestToStatus(t *testing.T) {
	task := NewTask(TaskSendParams{Message: *NewTextMessage("user", "prompt")})

	task.ToStatus(TaskStateWorking, NewTextMessage("agent", "Generating image... 10%"))
	assert.Equal(t, TaskStateWorking, task.Status.State)
	assert.Equal(t, "Generating image... 10%", task.Status.Text())

	// The prior status moved into history, oldest first
	assert.Len(t, task.History, 1)
	assert.Equal(t, TaskStateSubmitted, task.History[0].State)

	task.ToStatus(TaskStateCompleted, nil)
	assert.Len(t, task.History, 2)
	assert.Equal(t, TaskStateWorking, task.History[1].State)
	assert.True(t, task.Terminal())
}

func TestTerminalStates(t *testing.T) {
	assert.False(t, TaskStateSubmitted.Terminal())
	assert.False(t, TaskStateWorking.Terminal())
	assert.False(t, TaskStateInputReq.Terminal())
	assert.True(t, TaskStateCompleted.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.True(t, TaskStateCancelled.Terminal())
}

func TestAddArtifact(t *testing.T) {
	task := NewTask(TaskSendParams{Message: *NewTextMessage("user", "prompt")})

	task.AddArtifact(NewMediaArtifact("first", "", NewImagePart("https://cdn.example.com/a.png")))
	task.AddArtifact(NewMediaArtifact("second", "", NewImagePart("https://cdn.example.com/b.png")))

	assert.Len(t, task.Artifacts, 2)
	assert.Equal(t, 0, task.Artifacts[0].Index)
	assert.Equal(t, 1, task.Artifacts[1].Index)
	assert.Equal(t, "https://cdn.example.com/a.png", task.Artifacts[0].AssetURL())
}

func TestDuration(t *testing.T) {
	task := &Task{Metadata: map[string]any{"duration": float64(5)}}
	assert.Equal(t, 5, task.Duration())

	task.Metadata["duration"] = float64(10)
	assert.Equal(t, 10, task.Duration())

	// Anything else is coerced to 10
	task.Metadata["duration"] = float64(7)
	assert.Equal(t, 10, task.Duration())

	task.Metadata["duration"] = "5"
	assert.Equal(t, 10, task.Duration())

	task.Metadata = nil
	assert.Equal(t, 10, task.Duration())
}

func TestImageURLs(t *testing.T) {
	task := &Task{Metadata: map[string]any{
		"imageUrls": []any{"https://cdn.example.com/ref.png", 42, ""},
	}}
	assert.Equal(t, []string{"https://cdn.example.com/ref.png"}, task.ImageURLs())

	task.Metadata["imageUrls"] = []string{"https://cdn.example.com/other.png"}
	assert.Equal(t, []string{"https://cdn.example.com/other.png"}, task.ImageURLs())

	task.Metadata = nil
	assert.Nil(t, task.ImageURLs())
}

func TestClone(t *testing.T) {
	task := NewTask(TaskSendParams{
		Message:  *NewTextMessage("user", "prompt"),
		Metadata: map[string]any{"taskType": "text2image"},
	})
	task.ToStatus(TaskStateWorking, nil)
	task.AddArtifact(NewMediaArtifact("asset", "", NewImagePart("https://cdn.example.com/a.png")))

	clone := task.Clone()

	clone.ToStatus(TaskStateFailed, nil)
	clone.Metadata["taskType"] = "text2video"
	clone.Artifacts[0].Parts[0].URL = "tampered"

	assert.Equal(t, TaskStateWorking, task.Status.State)
	assert.Len(t, task.History, 1)
	assert.Equal(t, "text2image", task.Metadata["taskType"])
	assert.Equal(t, "https://cdn.example.com/a.png", task.Artifacts[0].AssetURL())
}
