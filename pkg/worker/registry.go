package worker

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

/*
Registry maps task types to the workers that serve them.
*/
type Registry struct {
	workers *sync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		workers: new(sync.Map),
	}
}

func (registry *Registry) Register(taskType string, worker Worker) {
	log.Info("registering worker", "taskType", taskType)
	registry.workers.Store(taskType, worker)
}

func (registry *Registry) Resolve(taskType string) (Worker, bool) {
	value, ok := registry.workers.Load(taskType)

	if !ok {
		return nil, false
	}

	return value.(Worker), true
}

/*
Types returns the registered task types in sorted order.
*/
func (registry *Registry) Types() []string {
	types := make([]string, 0)

	registry.workers.Range(func(key, value any) bool {
		types = append(types, key.(string))
		return true
	})

	sort.Strings(types)

	return types
}
