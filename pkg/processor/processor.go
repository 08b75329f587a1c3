package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/stores"
	"github.com/theapemachine/mediagen/pkg/worker"
)

/*
ErrWorkerIncomplete marks a worker sequence that ended without a
terminal update.  That is a bug in the worker, not a backend hiccup,
and it earns at most one retry.
*/
var ErrWorkerIncomplete = errors.New("worker ended without a terminal update")

/*
ErrAlreadyProcessing rejects a second attempt for a task that still has
a worker running.
*/
var ErrAlreadyProcessing = errors.New("task is already being processed")

/*
flight tracks one running attempt.  The cancelled flag is the
cooperative signal the worker's Job.Cancelled probe reads.
*/
type flight struct {
	cancelled atomic.Bool
}

/*
Processor drives one task through its worker sequence, committing every
accepted update to the store.  At most one attempt per task id runs at
a time.
*/
type Processor struct {
	store    stores.TaskStore
	registry *worker.Registry

	mu       sync.Mutex
	inflight map[string]*flight
}

func New(store stores.TaskStore, registry *worker.Registry) (*Processor, error) {
	if store == nil {
		return nil, fmt.Errorf("processor needs a task store")
	}

	if registry == nil {
		return nil, fmt.Errorf("processor needs a worker registry")
	}

	return &Processor{
		store:    store,
		registry: registry,
		inflight: make(map[string]*flight),
	}, nil
}

/*
Process runs one attempt.  Validation failures and unknown task types
are terminal immediately and never retried, and a worker asking for
more input ends the attempt the same way.  A worker-yielded failure
is only written as terminal when final is set; otherwise the attempt
returns an error so the queue can schedule another one, keeping the
history gathered so far.
*/
func (processor *Processor) Process(ctx context.Context, task *a2a.Task, final bool) error {
	attempt, err := processor.begin(task.ID)

	if err != nil {
		return err
	}

	defer processor.end(task.ID)

	// A whitespace-only prompt still reaches the worker, which asks for input.
	if task.Prompt == "" {
		processor.terminal(ctx, task, a2a.TaskStateFailed, "Task must contain a non-empty text prompt")
		return nil
	}

	task.ToStatus(a2a.TaskStateWorking, a2a.NewTextMessage("agent", "Processing task..."))

	if updateErr := processor.store.Update(ctx, task); updateErr != nil {
		return updateErr
	}

	handler, ok := processor.registry.Resolve(task.TaskType)

	if !ok {
		processor.terminal(ctx, task, a2a.TaskStateFailed, "invalid-taskType: "+task.TaskType)
		return nil
	}

	// An early return must release a worker blocked on its next yield.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	job := &worker.Job{Task: task, Cancelled: attempt.cancelled.Load}

	for update := range handler.Handle(ctx, job) {
		if duplicate(task, update) {
			continue
		}

		if update.State == a2a.TaskStateFailed && !final {
			reason := updateText(update, "generation failed")
			log.Warn("task attempt failed", "task_id", task.ID, "reason", reason)
			return fmt.Errorf("attempt failed: %s", reason)
		}

		task.ToStatus(update.State, update.Message)

		for _, artifact := range update.Artifacts {
			task.AddArtifact(artifact)
		}

		if updateErr := processor.store.Update(ctx, task); updateErr != nil {
			return updateErr
		}

		// A request for more input ends the attempt without a retry.
		if update.State.Terminal() || update.State == a2a.TaskStateInputReq {
			if update.State == a2a.TaskStateFailed {
				return fmt.Errorf("task failed: %s", updateText(update, "generation failed"))
			}

			return nil
		}
	}

	if final {
		processor.terminal(ctx, task, a2a.TaskStateFailed, "worker-did-not-complete")
	}

	return fmt.Errorf("%w: task %s", ErrWorkerIncomplete, task.ID)
}

/*
RequestCancel flips the cancellation flag for a running attempt and
reports whether the flag reached one.
*/
func (processor *Processor) RequestCancel(taskID string) bool {
	processor.mu.Lock()
	defer processor.mu.Unlock()

	attempt, running := processor.inflight[taskID]

	if !running {
		return false
	}

	attempt.cancelled.Store(true)

	return true
}

func (processor *Processor) begin(taskID string) (*flight, error) {
	processor.mu.Lock()
	defer processor.mu.Unlock()

	if _, running := processor.inflight[taskID]; running {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessing, taskID)
	}

	attempt := &flight{}
	processor.inflight[taskID] = attempt

	return attempt, nil
}

func (processor *Processor) end(taskID string) {
	processor.mu.Lock()
	defer processor.mu.Unlock()

	delete(processor.inflight, taskID)
}

func (processor *Processor) terminal(ctx context.Context, task *a2a.Task, state a2a.TaskState, text string) {
	task.ToStatus(state, a2a.NewTextMessage("agent", text))

	if updateErr := processor.store.Update(ctx, task); updateErr != nil {
		log.Error("failed to write terminal status", "task_id", task.ID, "error", updateErr)
	}
}

/*
duplicate filters worker heartbeats that would not change the stored
status: same state, no artifacts, same message text.
*/
func duplicate(task *a2a.Task, update worker.Update) bool {
	if update.State != task.Status.State {
		return false
	}

	if len(update.Artifacts) > 0 {
		return false
	}

	return update.Message.FirstText() == task.Status.Text()
}

func updateText(update worker.Update, fallback string) string {
	if text := update.Message.FirstText(); text != "" {
		return text
	}

	return fallback
}
