package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
)

/*
fakeGenerator replays a scripted sequence of job states, holding the
last state once the script runs out.
*/
type fakeGenerator struct {
	mu        sync.Mutex
	requests  []provider.JobRequest
	script    []provider.JobStatus
	createErr error
	queryErr  error
	idx       int
}

func (fake *fakeGenerator) CreateJob(ctx context.Context, req provider.JobRequest) (string, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	if fake.createErr != nil {
		return "", fake.createErr
	}

	fake.requests = append(fake.requests, req)

	return "job-1", nil
}

func (fake *fakeGenerator) QueryJob(ctx context.Context, jobID string) (*provider.JobStatus, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	if fake.queryErr != nil {
		return nil, fake.queryErr
	}

	status := fake.script[fake.idx]

	if fake.idx < len(fake.script)-1 {
		fake.idx++
	}

	return &status, nil
}

func (fake *fakeGenerator) received() []provider.JobRequest {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	return append([]provider.JobRequest{}, fake.requests...)
}

func newMediaTask(taskType string, prompt string, metadata map[string]any) *a2a.Task {
	if metadata == nil {
		metadata = map[string]any{}
	}

	metadata["taskType"] = taskType

	return a2a.NewTask(a2a.TaskSendParams{
		Message:  *a2a.NewTextMessage("user", prompt),
		Metadata: metadata,
	})
}

/*
collect drains the worker's sequence, failing the test when it does not
end within the deadline.
*/
func collect(t *testing.T, updates <-chan Update) []Update {
	t.Helper()

	out := []Update{}
	deadline := time.After(5 * time.Second)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return out
			}

			out = append(out, update)
		case <-deadline:
			t.Fatal("timed out waiting for worker updates")
		}
	}
}

func last(t *testing.T, updates []Update) Update {
	t.Helper()

	if len(updates) == 0 {
		t.Fatal("worker yielded no updates")
	}

	return updates[len(updates)-1]
}

func texts(updates []Update) []string {
	out := make([]string, 0, len(updates))

	for _, update := range updates {
		if update.Message != nil {
			out = append(out, update.Message.FirstText())
		}
	}

	return out
}

func TestStoppedNilProbe(t *testing.T) {
	job := &Job{Task: newMediaTask("text2image", "a lighthouse", nil)}

	assert.False(t, job.Stopped())
}
