package worker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
	"github.com/theapemachine/mediagen/pkg/utils"
)

func TestImageWorkerEmptyPrompt(t *testing.T) {
	worker := NewImageWorker(&fakeGenerator{})
	task := newMediaTask("text2image", "   ", nil)

	updates := collect(t, worker.Handle(t.Context(), &Job{Task: task}))

	require.Len(t, updates, 1)
	assert.Equal(t, a2a.TaskStateInputReq, updates[0].State)
	assert.Contains(t, updates[0].Message.FirstText(), "provide a prompt")
}

func TestImageWorkerShortPrompt(t *testing.T) {
	worker := NewImageWorker(&fakeGenerator{})
	task := newMediaTask("text2image", "cat", nil)

	updates := collect(t, worker.Handle(t.Context(), &Job{Task: task}))

	require.Len(t, updates, 1)
	assert.Equal(t, a2a.TaskStateInputReq, updates[0].State)
	assert.Contains(t, updates[0].Message.FirstText(), "more detailed")
}

func TestImageWorkerSuccess(t *testing.T) {
	backend := &fakeGenerator{script: []provider.JobStatus{
		{State: provider.JobWaiting, Progress: -1},
		{State: provider.JobProcessing, Progress: 30},
		{State: provider.JobSuccess, Progress: 100, ResultURLs: []string{"https://cdn.example.com/out.png"}},
	}}

	worker := NewImageWorker(backend, WithPollInterval(10*time.Millisecond))
	task := newMediaTask("text2image", "a lighthouse at dusk", map[string]any{
		"style": "photorealistic",
	})

	updates := collect(t, worker.Handle(t.Context(), &Job{Task: task}))

	assert.Equal(t, []string{
		"Submitting image generation job...",
		"Waiting in generation queue...",
		"Generating image... 30%",
		"Image generated successfully.",
	}, texts(updates))

	final := last(t, updates)
	require.Equal(t, a2a.TaskStateCompleted, final.State)
	require.Len(t, final.Artifacts, 1)

	artifact := final.Artifacts[0]
	assert.Equal(t, utils.Ptr("Generated Image"), artifact.Name)
	require.Len(t, artifact.Parts, 2)
	assert.Equal(t, a2a.PartTypeImage, artifact.Parts[0].Type)
	assert.Equal(t, "https://cdn.example.com/out.png", artifact.Parts[0].URL)
	assert.Equal(t, a2a.PartTypeText, artifact.Parts[1].Type)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(artifact.Parts[1].Text), &doc))
	assert.Equal(t, "a lighthouse at dusk", doc["title"])

	requests := backend.received()
	require.Len(t, requests, 1)
	assert.Equal(t, "image", requests[0].Kind)
	assert.Equal(t, "photorealistic", requests[0].Style)
	assert.Equal(t, task.ID, requests[0].TaskID)
}

func TestImageWorkerBackendFailure(t *testing.T) {
	backend := &fakeGenerator{script: []provider.JobStatus{
		{State: provider.JobFailed, Progress: -1, Error: "content policy"},
	}}

	worker := NewImageWorker(backend, WithPollInterval(10*time.Millisecond))
	task := newMediaTask("text2image", "a lighthouse at dusk", nil)

	final := last(t, collect(t, worker.Handle(t.Context(), &Job{Task: task})))

	assert.Equal(t, a2a.TaskStateFailed, final.State)
	assert.Contains(t, final.Message.FirstText(), "content policy")
}

func TestImageWorkerCreateError(t *testing.T) {
	backend := &fakeGenerator{createErr: errors.New("backend unreachable")}

	worker := NewImageWorker(backend)
	task := newMediaTask("text2image", "a lighthouse at dusk", nil)

	final := last(t, collect(t, worker.Handle(t.Context(), &Job{Task: task})))

	assert.Equal(t, a2a.TaskStateFailed, final.State)
	assert.Contains(t, final.Message.FirstText(), "backend unreachable")
}

func TestImageWorkerTimeout(t *testing.T) {
	backend := &fakeGenerator{script: []provider.JobStatus{
		{State: provider.JobProcessing, Progress: 10},
	}}

	worker := NewImageWorker(backend,
		WithTimeout(50*time.Millisecond),
		WithPollInterval(time.Second),
	)
	task := newMediaTask("text2image", "a lighthouse at dusk", nil)

	final := last(t, collect(t, worker.Handle(t.Context(), &Job{Task: task})))

	assert.Equal(t, a2a.TaskStateFailed, final.State)
	assert.Contains(t, final.Message.FirstText(), "timed out")
}

func TestImageWorkerCancellation(t *testing.T) {
	backend := &fakeGenerator{script: []provider.JobStatus{
		{State: provider.JobProcessing, Progress: 10},
	}}

	worker := NewImageWorker(backend, WithPollInterval(10*time.Millisecond))
	task := newMediaTask("text2image", "a lighthouse at dusk", nil)

	job := &Job{Task: task, Cancelled: func() bool { return true }}

	final := last(t, collect(t, worker.Handle(t.Context(), job)))

	assert.Equal(t, a2a.TaskStateCancelled, final.State)
}

func TestImageWorkerNoAsset(t *testing.T) {
	backend := &fakeGenerator{script: []provider.JobStatus{
		{State: provider.JobSuccess, Progress: 100},
	}}

	worker := NewImageWorker(backend, WithPollInterval(10*time.Millisecond))
	task := newMediaTask("text2image", "a lighthouse at dusk", nil)

	final := last(t, collect(t, worker.Handle(t.Context(), &Job{Task: task})))

	assert.Equal(t, a2a.TaskStateFailed, final.State)
	assert.Contains(t, final.Message.FirstText(), "no asset")
}
