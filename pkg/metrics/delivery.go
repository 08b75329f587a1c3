package metrics

import "sync"

// DeliveryMetrics tracks how task notifications move through the hub
type DeliveryMetrics struct {
	mu sync.RWMutex

	// Connection metrics
	OpenedConnections int64
	ClosedConnections int64

	// Event metrics
	DeliveredEvents int64
	DroppedEvents   int64

	// Webhook metrics
	WebhookPosts    int64
	WebhookFailures int64
}

// NewDeliveryMetrics creates a new DeliveryMetrics instance
func NewDeliveryMetrics() *DeliveryMetrics {
	return &DeliveryMetrics{}
}

// RecordConnection records an SSE subscriber arriving or leaving
func (m *DeliveryMetrics) RecordConnection(opened bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opened {
		m.OpenedConnections++
	} else {
		m.ClosedConnections++
	}
}

// RecordEvent records an event delivery attempt to one subscriber
func (m *DeliveryMetrics) RecordEvent(dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dropped {
		m.DroppedEvents++
	} else {
		m.DeliveredEvents++
	}
}

// RecordWebhook records a webhook POST outcome
func (m *DeliveryMetrics) RecordWebhook(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WebhookPosts++
	if !ok {
		m.WebhookFailures++
	}
}

// GetMetrics returns a snapshot of the current metrics
func (m *DeliveryMetrics) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"opened_connections": m.OpenedConnections,
		"closed_connections": m.ClosedConnections,
		"delivered_events":   m.DeliveredEvents,
		"dropped_events":     m.DroppedEvents,
		"webhook_posts":      m.WebhookPosts,
		"webhook_failures":   m.WebhookFailures,
	}
}
