package broadcast

import (
	"sync"

	"github.com/bc-dunia/mcpgo/mcp"
)

// subscriber is one live GET /mcp SSE stream attached to a session. Its
// mailbox is a bounded, oldest-evicted queue: events always remain
// durable in storage (the source of truth), so dropping a live-queue
// entry only means that particular stream must fall back to
// storage.GetEventsAfter to catch up — never a lost notification.
type subscriber struct {
	mu     sync.Mutex
	events []mcp.SseEvent
	maxLen int
	notify chan struct{}
	closed bool
}

func newSubscriber(maxLen int) *subscriber {
	if maxLen <= 0 {
		maxLen = 1024
	}
	return &subscriber{
		maxLen: maxLen,
		notify: make(chan struct{}, 1),
	}
}

// push appends an event to the mailbox, evicting the oldest if over
// capacity, and wakes the subscriber's goroutine via the notify
// channel. Returns false if the subscriber is already closed.
func (s *subscriber) push(ev mcp.SseEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.events = append(s.events, ev)
	if len(s.events) > s.maxLen {
		s.events = s.events[len(s.events)-s.maxLen:]
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns every event currently queued.
func (s *subscriber) drain() []mcp.SseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return nil
	}
	out := s.events
	s.events = nil
	return out
}

// Notify returns the channel signaled whenever a new event is pushed
// (or the subscriber is closed). Reads should always re-call drain
// after a wakeup, since multiple pushes may coalesce into one signal.
func (s *subscriber) Notify() <-chan struct{} {
	return s.notify
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.notify)
}

// Subscription is the handle a transport-layer GET stream holds for the
// duration of its connection to one session's live event feed.
type Subscription struct {
	sessionID string
	sub       *subscriber
	b         *Broadcaster
}

// Events drains and returns every event queued since the last call.
func (s *Subscription) Events() []mcp.SseEvent {
	return s.sub.drain()
}

// Notify returns the wakeup channel for this subscription.
func (s *Subscription) Notify() <-chan struct{} {
	return s.sub.Notify()
}

// Close detaches the subscription from the broadcaster.
func (s *Subscription) Close() {
	s.b.unsubscribe(s.sessionID, s.sub)
}
