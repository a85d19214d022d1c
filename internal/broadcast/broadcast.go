// Package broadcast implements the notification broadcaster: storing
// every MCP notification durably via SessionStorage and best-effort
// fanning it out to whatever live SSE streams are currently attached,
// generalized from the teacher's telemetry emitter/queue pair
// (typed per-kind "emit" helpers plus a bounded delivery queue) from
// telemetry operations to MCP notification methods.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bc-dunia/mcpgo/internal/mcpsession"
	"github.com/bc-dunia/mcpgo/mcp"
)

// MetricsRecorder records fan-out outcomes for one SendNotification
// call; typically an *otelmcp.Metrics. A nil recorder (the default)
// disables instrumentation entirely.
type MetricsRecorder interface {
	RecordBroadcast(ctx context.Context, delivered int, latency time.Duration)
}

// Config configures the broadcaster's per-subscriber live queue.
type Config struct {
	// LiveQueueSize bounds each live subscriber's undelivered-event
	// mailbox; once full, the oldest queued event is evicted (it
	// remains durable in storage and can be replayed via
	// Last-Event-ID). Default 1024, per §4.4.
	LiveQueueSize int
}

// DefaultConfig returns the spec's default live queue size of 1024.
func DefaultConfig() *Config {
	return &Config{LiveQueueSize: 1024}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	if c.LiveQueueSize <= 0 {
		cp := *c
		cp.LiveQueueSize = 1024
		return &cp
	}
	return c
}

// Broadcaster delivers MCP notifications at-least-once to storage and
// best-effort to whatever live subscribers are currently attached to a
// session.
type Broadcaster struct {
	storage mcpsession.SessionStorage
	config  *Config
	metrics MetricsRecorder

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// New creates a Broadcaster backed by storage.
func New(storage mcpsession.SessionStorage, config *Config) *Broadcaster {
	return &Broadcaster{
		storage: storage,
		config:  config.withDefaults(),
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// SetMetrics installs the fan-out latency/delivery recorder, typically
// an *otelmcp.Metrics. Must be called before the broadcaster serves
// traffic.
func (b *Broadcaster) SetMetrics(m MetricsRecorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// Subscribe attaches a new live subscriber to sessionID's event feed,
// for the duration of one GET /mcp SSE stream.
func (b *Broadcaster) Subscribe(sessionID string) *Subscription {
	sub := newSubscriber(b.config.LiveQueueSize)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[*subscriber]struct{})
	}
	b.subs[sessionID][sub] = struct{}{}
	b.mu.Unlock()

	return &Subscription{sessionID: sessionID, sub: sub, b: b}
}

func (b *Broadcaster) unsubscribe(sessionID string, sub *subscriber) {
	sub.close()

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[sessionID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sessionID)
	}
}

// liveSubscriberCount reports how many live streams are attached to
// sessionID, for tests and diagnostics.
func (b *Broadcaster) liveSubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// SendNotification stores a JSON-RPC notification for method/params in
// sessionID's durable event journal (the at-least-once leg) and then
// best-effort fans it out to every currently attached live subscriber,
// returning how many subscribers were notified.
func (b *Broadcaster) SendNotification(ctx context.Context, sessionID, method string, params any) (int, error) {
	start := time.Now()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("broadcast: marshal params for %s: %w", method, err)
	}

	notif := mcp.Notification{JSONRPC: mcp.Version, Method: method, Params: paramsJSON}
	data, err := json.Marshal(notif)
	if err != nil {
		return 0, fmt.Errorf("broadcast: marshal notification for %s: %w", method, err)
	}

	event, err := b.storage.StoreEvent(ctx, sessionID, mcp.SseEvent{
		EventType: method,
		Data:      data,
	})
	if err != nil {
		return 0, fmt.Errorf("broadcast: store event for session %s: %w", sessionID, err)
	}

	delivered := b.fanOut(sessionID, event)
	if b.metrics != nil {
		b.metrics.RecordBroadcast(ctx, delivered, time.Since(start))
	}
	return delivered, nil
}

func (b *Broadcaster) fanOut(sessionID string, event mcp.SseEvent) int {
	b.mu.RLock()
	set := b.subs[sessionID]
	subs := make([]*subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	notified := 0
	for _, sub := range subs {
		if sub.push(event) {
			notified++
		}
	}
	return notified
}

// BroadcastToAllSessions sends the same notification to every known
// session, iterating storage.ListSessions — the fan-out-to-subscribers
// shape the teacher's control-plane event distribution uses, adapted
// here from a single run's subscriber set to the whole session table.
// Storage errors for individual sessions are logged and skipped so one
// bad session never aborts delivery to the rest.
func (b *Broadcaster) BroadcastToAllSessions(ctx context.Context, method string, params any) (delivered int, err error) {
	ids, err := b.storage.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("broadcast: list sessions: %w", err)
	}

	for _, id := range ids {
		if _, err := b.SendNotification(ctx, id, method, params); err != nil {
			slog.Error("broadcast_to_all_sessions_failed", "session_id", id, "method", method, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}
