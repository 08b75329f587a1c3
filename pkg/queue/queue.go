package queue

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/errors"
	"github.com/theapemachine/mediagen/pkg/processor"
)

/*
ProcessFunc runs one attempt at a task.  final tells the processor this
is the last attempt, so a failure must be written as the terminal state.
*/
type ProcessFunc func(ctx context.Context, task *a2a.Task, final bool) error

/*
CancelFunc asks a running attempt to wind down and reports whether the
request reached one.
*/
type CancelFunc func(taskID string) bool

type Config struct {
	MaxConcurrent int
	MaxRetries    int
	RetryDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 5,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

/*
Status is a point-in-time snapshot of the queue's counters.  Queued
includes tasks waiting out a retry delay.
*/
type Status struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

/*
Queue dispatches tasks to the processor with bounded concurrency and a
retry budget.  One mutex serializes enqueue, cancel, and scheduling;
dispatched work runs outside it.
*/
type Queue struct {
	config  Config
	process ProcessFunc
	cancel  CancelFunc

	mu           sync.Mutex
	pending      []*a2a.Task
	processing   map[string]bool
	retries      map[string]int
	timers       map[string]*time.Timer
	workerBugged map[string]bool
	completed    int
	failed       int
	closed       bool

	wg      sync.WaitGroup
	ctx     context.Context
	ctxStop context.CancelFunc
}

func New(config Config, process ProcessFunc, cancel CancelFunc) *Queue {
	ctx, ctxStop := context.WithCancel(context.Background())

	return &Queue{
		config:       config,
		process:      process,
		cancel:       cancel,
		processing:   make(map[string]bool),
		retries:      make(map[string]int),
		timers:       make(map[string]*time.Timer),
		workerBugged: make(map[string]bool),
		ctx:          ctx,
		ctxStop:      ctxStop,
	}
}

/*
Enqueue accepts a task for processing.  Dispatch happens as soon as a
concurrency slot frees up, in arrival order.
*/
func (queue *Queue) Enqueue(task *a2a.Task) *errors.RpcError {
	if task == nil || task.ID == "" {
		return errors.ErrInvalidRequest.WithMessagef("cannot enqueue a task without an id")
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.closed {
		return errors.ErrInternal.WithMessagef("queue is shut down")
	}

	queue.pending = append(queue.pending, task)
	queue.schedule()

	return nil
}

/*
Cancel removes a task that has not started yet, including one waiting
out a retry delay, and reports whether it did.  The caller owns writing
the cancelled state.  Tasks already processing are the processor's to
cancel.
*/
func (queue *Queue) Cancel(id string) bool {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	for i, task := range queue.pending {
		if task.ID == id {
			queue.pending = append(queue.pending[:i], queue.pending[i+1:]...)
			queue.clear(id)
			return true
		}
	}

	if timer, ok := queue.timers[id]; ok {
		timer.Stop()
		queue.clear(id)
		return true
	}

	return false
}

func (queue *Queue) Status() Status {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	return Status{
		Queued:     len(queue.pending) + len(queue.timers),
		Processing: len(queue.processing),
		Completed:  queue.completed,
		Failed:     queue.failed,
	}
}

/*
Shutdown stops dispatching, asks running attempts to cancel, and waits
for them to drain.  When ctx expires first the remaining work is cut
loose and ctx's error returned.
*/
func (queue *Queue) Shutdown(ctx context.Context) error {
	queue.mu.Lock()

	queue.closed = true
	queue.pending = nil

	for id, timer := range queue.timers {
		timer.Stop()
		delete(queue.timers, id)
	}

	if queue.cancel != nil {
		for id := range queue.processing {
			queue.cancel(id)
		}
	}

	queue.mu.Unlock()

	done := make(chan struct{})

	go func() {
		queue.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		queue.ctxStop()
		return nil
	case <-ctx.Done():
		queue.ctxStop()
		return ctx.Err()
	}
}

/*
schedule fills free concurrency slots from the front of the pending
list.  Callers must hold queue.mu.  A MaxConcurrent of zero accepts
work but never dispatches it.
*/
func (queue *Queue) schedule() {
	for !queue.closed && len(queue.pending) > 0 && len(queue.processing) < queue.config.MaxConcurrent {
		task := queue.pending[0]
		queue.pending = queue.pending[1:]
		queue.processing[task.ID] = true

		final := queue.retries[task.ID] >= queue.config.MaxRetries || queue.workerBugged[task.ID]

		queue.wg.Add(1)
		go queue.dispatch(task, final)
	}
}

func (queue *Queue) dispatch(task *a2a.Task, final bool) {
	defer queue.wg.Done()

	err := queue.process(queue.ctx, task, final)

	queue.mu.Lock()
	defer queue.mu.Unlock()

	delete(queue.processing, task.ID)
	defer queue.schedule()

	if err == nil {
		queue.completed++
		queue.clear(task.ID)
		return
	}

	if final || queue.closed {
		queue.failed++
		queue.clear(task.ID)
		log.Error("task failed permanently", "task_id", task.ID, "error", err)
		return
	}

	// Worker bugs get exactly one more attempt, and that one is final.
	if stderrors.Is(err, processor.ErrWorkerIncomplete) {
		queue.workerBugged[task.ID] = true
	}

	queue.retries[task.ID]++
	delay := queue.retryDelay()

	log.Warn("retrying task",
		"task_id", task.ID,
		"attempt", queue.retries[task.ID],
		"delay", delay,
		"error", err,
	)

	queue.timers[task.ID] = time.AfterFunc(delay, func() {
		queue.requeue(task)
	})
}

func (queue *Queue) requeue(task *a2a.Task) {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	// A missing timer entry means Cancel or Shutdown won the race while
	// the timer was firing.
	if _, armed := queue.timers[task.ID]; !armed {
		return
	}

	delete(queue.timers, task.ID)

	if queue.closed {
		return
	}

	queue.pending = append(queue.pending, task)
	queue.schedule()
}

/*
retryDelay is the configured delay plus uniform jitter in
[0, RetryDelay/2), so batches of failures spread back out.
*/
func (queue *Queue) retryDelay() time.Duration {
	delay := queue.config.RetryDelay

	if half := queue.config.RetryDelay / 2; half > 0 {
		delay += rand.N(half)
	}

	return delay
}

/*
clear drops the retry bookkeeping for a task.  Callers must hold
queue.mu.
*/
func (queue *Queue) clear(id string) {
	delete(queue.retries, id)
	delete(queue.timers, id)
	delete(queue.workerBugged, id)
}
