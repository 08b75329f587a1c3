package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/metrics"
)

const terminalSendTimeout = time.Second

/*
subscriber is one open SSE connection.  Events are marshalled once and
fanned out over the channel; the serving goroutine owns the transport.
*/
type subscriber struct {
	ch    chan []byte
	types map[a2a.EventType]struct{}
}

func (sub *subscriber) wants(eventType a2a.EventType) bool {
	if len(sub.types) == 0 {
		return true
	}

	_, ok := sub.types[eventType]

	return ok
}

type webhookReg struct {
	url   string
	token string
	types map[a2a.EventType]struct{}
}

func (reg *webhookReg) wants(eventType a2a.EventType) bool {
	if len(reg.types) == 0 {
		return true
	}

	_, ok := reg.types[eventType]

	return ok
}

/*
lastSeen is the per-task diff state TaskUpdated compares against when it
derives events from a committed write.
*/
type lastSeen struct {
	state     a2a.TaskState
	artifacts int
}

/*
Hub routes task events to SSE subscribers and webhook registrations.
Each SSE event is sent as a single-line message of the form:

data: {json}\n\n

The hub derives events from committed task writes: wire it to a store
with one listener calling TaskUpdated.  After a task's terminal event the
hub tears the task's subscriptions down and sends nothing further for it.
*/
type Hub struct {
	mu       sync.RWMutex
	subs     map[string][]*subscriber
	hooks    map[string]*webhookReg
	seen     map[string]*lastSeen
	closed   bool
	testMode bool

	dispatcher *Dispatcher
	metrics    *metrics.DeliveryMetrics
}

/*
NewHub creates a new Hub.
*/
func NewHub(dispatcher *Dispatcher, m *metrics.DeliveryMetrics) *Hub {
	if m == nil {
		m = metrics.NewDeliveryMetrics()
	}

	if dispatcher == nil {
		dispatcher = NewDispatcher(0, 0, m)
	}

	return &Hub{
		subs:       make(map[string][]*subscriber),
		hooks:      make(map[string]*webhookReg),
		seen:       make(map[string]*lastSeen),
		dispatcher: dispatcher,
		metrics:    m,
	}
}

/*
NewTestHub creates a hub with a shorter heartbeat interval for testing
*/
func NewTestHub() *Hub {
	hub := NewHub(nil, nil)
	hub.testMode = true

	return hub
}

func typeSet(eventTypes []string) map[a2a.EventType]struct{} {
	if len(eventTypes) == 0 {
		return nil
	}

	set := make(map[a2a.EventType]struct{}, len(eventTypes))

	for _, eventType := range eventTypes {
		set[a2a.EventType(eventType)] = struct{}{}
	}

	return set
}

/*
ServeSSE upgrades the connection to an SSE stream for one task and blocks
until the client disconnects, the task reaches a terminal state, or the
hub shuts down.  Use from an HTTP handler.
*/
func (hub *Hub) ServeSSE(taskID string, eventTypes []string, w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := &subscriber{
		ch:    make(chan []byte, 16),
		types: typeSet(eventTypes),
	}

	hub.mu.Lock()

	if hub.closed {
		hub.mu.Unlock()
		http.Error(w, "hub closed", http.StatusGone)
		return
	}

	last, tracked := hub.seen[taskID]
	finished := tracked && last.state.Terminal()

	if !finished {
		hub.subs[taskID] = append(hub.subs[taskID], sub)
	}

	hub.mu.Unlock()

	hub.metrics.RecordConnection(true)
	defer hub.metrics.RecordConnection(false)

	// connected preamble, written before any derived events
	preamble, _ := json.Marshal(a2a.NewEvent(a2a.EventStatusUpdate, taskID, map[string]any{
		"status": "connected",
	}))
	writeFrame(w, flusher, preamble)

	// A task that already hit a terminal state will never emit again, so
	// end the stream rather than leave the client on heartbeats.
	if finished {
		return
	}

	// heartbeat ticker to keep the connection alive in the presence of
	// proxies.
	tickerInterval := 25 * time.Second

	if hub.testMode {
		tickerInterval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			hub.removeSubscriber(taskID, sub)
			return
		case msg, ok := <-sub.ch:
			if !ok {
				// terminal teardown or hub shutdown
				return
			}

			writeFrame(w, flusher, msg)
		case <-ticker.C:
			// comment heartbeat
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, msg []byte) {
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(msg)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}

/*
RegisterWebhook binds a webhook to a task.  A second registration for the
same task replaces the prior one.
*/
func (hub *Hub) RegisterWebhook(taskID string, url string, token string, eventTypes []string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.closed {
		return
	}

	hub.hooks[taskID] = &webhookReg{
		url:   url,
		token: token,
		types: typeSet(eventTypes),
	}
}

/*
UnregisterWebhook drops a task's webhook registration, reporting whether
one existed.
*/
func (hub *Hub) UnregisterWebhook(taskID string) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	_, ok := hub.hooks[taskID]
	delete(hub.hooks, taskID)

	return ok
}

/*
Notify delivers a single event to every subscriber of the task whose
event-type set includes it.
*/
func (hub *Hub) Notify(taskID string, event a2a.Event) {
	hub.emit(taskID, event, false)
}

/*
TaskUpdated derives notification events from a committed task write and
emits them in order: artifact_created for each new artifact, then
status_update, then completion or error when the task just became
terminal.  Cancellation ends with the final status_update alone.
*/
func (hub *Hub) TaskUpdated(task *a2a.Task) {
	hub.mu.Lock()

	if hub.closed {
		hub.mu.Unlock()
		return
	}

	seen, ok := hub.seen[task.ID]

	if !ok {
		seen = &lastSeen{}
		hub.seen[task.ID] = seen
	}

	if seen.state.Terminal() {
		hub.mu.Unlock()
		return
	}

	var events []a2a.Event

	for i := seen.artifacts; i < len(task.Artifacts); i++ {
		events = append(events, a2a.NewEvent(a2a.EventArtifactCreated, task.ID, map[string]any{
			"artifact": task.Artifacts[i],
		}))
	}

	events = append(events, a2a.NewEvent(a2a.EventStatusUpdate, task.ID, map[string]any{
		"status": task.Status,
	}))

	switch task.Status.State {
	case a2a.TaskStateCompleted:
		events = append(events, a2a.NewEvent(a2a.EventCompletion, task.ID, map[string]any{
			"status":    task.Status,
			"artifacts": task.Artifacts,
		}))
	case a2a.TaskStateFailed:
		events = append(events, a2a.NewEvent(a2a.EventError, task.ID, map[string]any{
			"status": task.Status,
			"error":  task.Status.Text(),
		}))
	}

	seen.state = task.Status.State
	seen.artifacts = len(task.Artifacts)
	terminal := task.Terminal()
	hub.mu.Unlock()

	for _, event := range events {
		hub.emit(task.ID, event, terminal)
	}

	if terminal {
		hub.closeTask(task.ID)
	}
}

/*
emit fans one event out to the task's SSE subscribers and webhook.  Final
events get a bounded blocking send so a slow subscriber still receives
the terminal frame; non-final events are dropped when the subscriber's
buffer is full.
*/
func (hub *Hub) emit(taskID string, event a2a.Event, final bool) {
	msg, err := json.Marshal(event)

	if err != nil {
		log.Error("failed to marshal event", "task_id", taskID, "type", event.Type, "error", err)
		return
	}

	hub.mu.RLock()

	if hub.closed {
		hub.mu.RUnlock()
		return
	}

	subs := append([]*subscriber(nil), hub.subs[taskID]...)

	var hook *webhookReg

	if reg, ok := hub.hooks[taskID]; ok && reg.wants(event.Type) {
		hook = reg
	}

	hub.mu.RUnlock()

	for _, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}

		if final {
			select {
			case sub.ch <- msg:
				hub.metrics.RecordEvent(false)
			case <-time.After(terminalSendTimeout):
				log.Warn("subscriber too slow for terminal event", "task_id", taskID, "type", event.Type)
				hub.metrics.RecordEvent(true)
			}

			continue
		}

		select {
		case sub.ch <- msg:
			hub.metrics.RecordEvent(false)
		default:
			// slow client – drop message to avoid blocking.
			hub.metrics.RecordEvent(true)
		}
	}

	if hook != nil {
		hub.dispatcher.Submit(taskID, hook.url, hook.token, event)
	}
}

/*
closeTask tears down a task's subscriptions after its terminal event.
Deliveries already queued to the webhook dispatcher are unaffected.
*/
func (hub *Hub) closeTask(taskID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for _, sub := range hub.subs[taskID] {
		close(sub.ch)
	}

	delete(hub.subs, taskID)
	delete(hub.hooks, taskID)
}

/*
removeSubscriber detaches a subscriber after its client disconnected.
The channel is left open: an emit running against a stale copy of the
subscriber list may still send into it, and nobody reads it again.
*/
func (hub *Hub) removeSubscriber(taskID string, sub *subscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	subs := hub.subs[taskID]

	for i, candidate := range subs {
		if candidate == sub {
			hub.subs[taskID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}

	if len(hub.subs[taskID]) == 0 {
		delete(hub.subs, taskID)
	}
}

/*
Close disconnects every subscriber, stops the webhook dispatcher after
its queue drains, and prevents further subscriptions.
*/
func (hub *Hub) Close() {
	hub.mu.Lock()

	if hub.closed {
		hub.mu.Unlock()
		return
	}

	hub.closed = true

	for _, subs := range hub.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}

	hub.subs = map[string][]*subscriber{}
	hub.hooks = map[string]*webhookReg{}
	hub.mu.Unlock()

	hub.dispatcher.Stop()
}
