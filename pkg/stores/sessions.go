package stores

// SessionIndex maps session ids to the tasks created under them, so the
// session filter on task listings does not have to scan the whole store.
// It is intentionally minimal: an in‑memory map safe for concurrent use,
// which is perfectly sufficient for a single-process fabric.

import "sync"

type SessionIndex struct {
	mu    sync.RWMutex
	tasks map[string][]string
}

func NewSessionIndex() *SessionIndex {
	return &SessionIndex{
		tasks: make(map[string][]string),
	}
}

func (index *SessionIndex) Add(sessionID string, taskID string) {
	index.mu.Lock()
	index.tasks[sessionID] = append(index.tasks[sessionID], taskID)
	index.mu.Unlock()
}

/*
Tasks returns the task ids recorded for a session, in insertion order.
*/
func (index *SessionIndex) Tasks(sessionID string) []string {
	index.mu.RLock()
	defer index.mu.RUnlock()

	return append([]string(nil), index.tasks[sessionID]...)
}

func (index *SessionIndex) Remove(sessionID string, taskID string) {
	index.mu.Lock()
	defer index.mu.Unlock()

	ids := index.tasks[sessionID]

	for i, id := range ids {
		if id == taskID {
			index.tasks[sessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	if len(index.tasks[sessionID]) == 0 {
		delete(index.tasks, sessionID)
	}
}
