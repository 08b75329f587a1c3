package stores

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/errors"
)

/*
TaskListener observes committed task writes.  Listeners receive their own
copy of the task and must not assume any ordering relative to other
listeners.
*/
type TaskListener func(task *a2a.Task)

/*
TaskStore persists tasks and fans committed writes out to registered
listeners.
*/
type TaskStore interface {
	Create(ctx context.Context, task *a2a.Task) *errors.RpcError
	Get(ctx context.Context, id string) (*a2a.Task, *errors.RpcError)
	Update(ctx context.Context, task *a2a.Task) *errors.RpcError
	Delete(ctx context.Context, id string) bool
	List(ctx context.Context) []*a2a.Task
	ListBySession(ctx context.Context, sessionID string) []*a2a.Task
	AddListener(fn TaskListener) int64
	RemoveListener(id int64)
}

/*
InMemoryTaskStore is the default TaskStore.  It keeps everything in a map
guarded by a read-write mutex, which is perfectly sufficient for a
single-process fabric; persistence can swap in behind the interface.
*/
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task

	// commitMu serializes the commit-then-notify sequence so each
	// listener observes updates in commit order.
	commitMu sync.Mutex

	listenerMu   sync.RWMutex
	listeners    map[int64]TaskListener
	nextListener int64

	sessions *SessionIndex
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:     make(map[string]*a2a.Task),
		listeners: make(map[int64]TaskListener),
		sessions:  NewSessionIndex(),
	}
}

/*
Create inserts a task iff its id is unused.  Listeners are notified with
the full task after the write commits.
*/
func (store *InMemoryTaskStore) Create(ctx context.Context, task *a2a.Task) *errors.RpcError {
	if task == nil || task.ID == "" {
		return errors.ErrInvalidRequest.WithMessagef("task is missing an id")
	}

	store.commitMu.Lock()
	defer store.commitMu.Unlock()

	store.mu.Lock()

	if _, exists := store.tasks[task.ID]; exists {
		store.mu.Unlock()
		return errors.ErrInvalidParams.WithMessagef("duplicate task id: %s", task.ID)
	}

	committed := task.Clone()
	store.tasks[task.ID] = committed
	store.mu.Unlock()

	if task.SessionID != "" {
		store.sessions.Add(task.SessionID, task.ID)
	}

	log.Debug("task created", "task_id", task.ID, "task_type", task.TaskType)
	store.notify(committed)

	return nil
}

/*
Get returns a copy of the task, so the caller cannot mutate committed
state.
*/
func (store *InMemoryTaskStore) Get(ctx context.Context, id string) (*a2a.Task, *errors.RpcError) {
	store.mu.RLock()
	task, ok := store.tasks[id]
	store.mu.RUnlock()

	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}

	return task.Clone(), nil
}

/*
Update replaces the record iff present.  Writes against a task that has
already reached a terminal state are dropped: terminal is sticky.
Listeners run after the write commits.
*/
func (store *InMemoryTaskStore) Update(ctx context.Context, task *a2a.Task) *errors.RpcError {
	if task == nil || task.ID == "" {
		return errors.ErrInvalidRequest.WithMessagef("task is missing an id")
	}

	store.commitMu.Lock()
	defer store.commitMu.Unlock()

	store.mu.Lock()

	current, ok := store.tasks[task.ID]

	if !ok {
		store.mu.Unlock()
		return errors.ErrTaskNotFound.WithMessagef("task %s not found", task.ID)
	}

	if current.Terminal() {
		store.mu.Unlock()
		log.Debug("dropping update for terminal task", "task_id", task.ID, "state", current.Status.State)
		return nil
	}

	committed := task.Clone()
	store.tasks[task.ID] = committed
	store.mu.Unlock()

	store.notify(committed)

	return nil
}

func (store *InMemoryTaskStore) Delete(ctx context.Context, id string) bool {
	store.mu.Lock()
	task, ok := store.tasks[id]

	if ok {
		delete(store.tasks, id)
	}

	store.mu.Unlock()

	if ok && task.SessionID != "" {
		store.sessions.Remove(task.SessionID, id)
	}

	return ok
}

/*
List returns a snapshot of every task.  Iteration order is unspecified
but the snapshot itself is stable.
*/
func (store *InMemoryTaskStore) List(ctx context.Context) []*a2a.Task {
	store.mu.RLock()
	defer store.mu.RUnlock()

	tasks := make([]*a2a.Task, 0, len(store.tasks))

	for _, task := range store.tasks {
		tasks = append(tasks, task.Clone())
	}

	return tasks
}

/*
ListBySession returns the tasks created under a session, in creation
order.
*/
func (store *InMemoryTaskStore) ListBySession(ctx context.Context, sessionID string) []*a2a.Task {
	ids := store.sessions.Tasks(sessionID)

	store.mu.RLock()
	defer store.mu.RUnlock()

	tasks := make([]*a2a.Task, 0, len(ids))

	for _, id := range ids {
		if task, ok := store.tasks[id]; ok {
			tasks = append(tasks, task.Clone())
		}
	}

	return tasks
}

/*
AddListener registers a listener and returns the id used to remove it.
*/
func (store *InMemoryTaskStore) AddListener(fn TaskListener) int64 {
	id := atomic.AddInt64(&store.nextListener, 1)

	store.listenerMu.Lock()
	store.listeners[id] = fn
	store.listenerMu.Unlock()

	return id
}

func (store *InMemoryTaskStore) RemoveListener(id int64) {
	store.listenerMu.Lock()
	delete(store.listeners, id)
	store.listenerMu.Unlock()
}

/*
notify runs every listener to completion.  A panicking listener is logged
and never surfaces to the writer; each listener gets its own copy of the
task.
*/
func (store *InMemoryTaskStore) notify(task *a2a.Task) {
	store.listenerMu.RLock()
	fns := make([]TaskListener, 0, len(store.listeners))

	for _, fn := range store.listeners {
		fns = append(fns, fn)
	}

	store.listenerMu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("task listener panicked", "task_id", task.ID, "error", r)
				}
			}()

			fn(task.Clone())
		}()
	}
}
