package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/metrics"
)

const (
	defaultWorkers    = 4
	defaultMaxPending = 16
	dispatchQueueSize = 256
)

type webhookJob struct {
	taskID string
	url    string
	token  string
	event  a2a.Event
}

/*
Dispatcher posts webhook notifications from a bounded worker pool, so
delivery never blocks in-process fan-out.  Each task may have a limited
number of outstanding posts; overflow is dropped and logged.
*/
type Dispatcher struct {
	jobs    chan webhookJob
	client  *http.Client
	wg      sync.WaitGroup
	metrics *metrics.DeliveryMetrics

	mu         sync.Mutex
	pending    map[string]int
	maxPending int
	closed     bool
}

func NewDispatcher(workers int, maxPending int, m *metrics.DeliveryMetrics) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}

	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}

	if m == nil {
		m = metrics.NewDeliveryMetrics()
	}

	dispatcher := &Dispatcher{
		jobs: make(chan webhookJob, dispatchQueueSize),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		metrics:    m,
		pending:    make(map[string]int),
		maxPending: maxPending,
	}

	for i := 0; i < workers; i++ {
		dispatcher.wg.Add(1)
		go dispatcher.worker()
	}

	return dispatcher
}

/*
Submit queues one webhook delivery.  It reports false when the event was
dropped because the dispatcher is stopped or saturated.
*/
func (dispatcher *Dispatcher) Submit(taskID string, url string, token string, event a2a.Event) bool {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()

	if dispatcher.closed {
		return false
	}

	if dispatcher.pending[taskID] >= dispatcher.maxPending {
		log.Warn("webhook backlog full, dropping event", "task_id", taskID, "type", event.Type)
		dispatcher.metrics.RecordEvent(true)
		return false
	}

	// The send stays under the mutex so Stop cannot close the channel
	// between the closed check and the send.
	select {
	case dispatcher.jobs <- webhookJob{taskID: taskID, url: url, token: token, event: event}:
		dispatcher.pending[taskID]++
		return true
	default:
		log.Warn("webhook dispatcher saturated, dropping event", "task_id", taskID, "type", event.Type)
		dispatcher.metrics.RecordEvent(true)
		return false
	}
}

/*
Stop accepts no further work and blocks until the queued deliveries have
drained.
*/
func (dispatcher *Dispatcher) Stop() {
	dispatcher.mu.Lock()

	if dispatcher.closed {
		dispatcher.mu.Unlock()
		return
	}

	dispatcher.closed = true
	dispatcher.mu.Unlock()

	close(dispatcher.jobs)
	dispatcher.wg.Wait()
}

func (dispatcher *Dispatcher) worker() {
	defer dispatcher.wg.Done()

	for job := range dispatcher.jobs {
		dispatcher.deliver(job)
		dispatcher.release(job.taskID)
	}
}

func (dispatcher *Dispatcher) release(taskID string) {
	dispatcher.mu.Lock()

	dispatcher.pending[taskID]--

	if dispatcher.pending[taskID] <= 0 {
		delete(dispatcher.pending, taskID)
	}

	dispatcher.mu.Unlock()
}

func (dispatcher *Dispatcher) deliver(job webhookJob) {
	body, err := json.Marshal(job.event)

	if err != nil {
		log.Error("failed to marshal webhook event", "task_id", job.taskID, "error", err)
		dispatcher.metrics.RecordWebhook(false)
		return
	}

	req, err := http.NewRequest(http.MethodPost, job.url, bytes.NewReader(body))

	if err != nil {
		log.Error("failed to build webhook request", "task_id", job.taskID, "url", job.url, "error", err)
		dispatcher.metrics.RecordWebhook(false)
		return
	}

	req.Header.Set("Content-Type", "application/json")

	if job.token != "" {
		req.Header.Set("Authorization", "Bearer "+job.token)
	}

	resp, err := dispatcher.client.Do(req)

	if err != nil {
		log.Error("webhook delivery failed", "task_id", job.taskID, "url", job.url, "error", err)
		dispatcher.metrics.RecordWebhook(false)
		return
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("webhook rejected", "task_id", job.taskID, "url", job.url, "status", resp.StatusCode)
		dispatcher.metrics.RecordWebhook(false)
		return
	}

	dispatcher.metrics.RecordWebhook(true)
}
