package mcpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bc-dunia/mcpgo/mcp"
)

// MemoryStore is the reference SessionStorage backend: a
// sync.RWMutex-guarded map keyed by session id, an insertion-order
// slice of ids (nothing is evicted: creation fails with
// ErrSessionCapacityReached once MaxSessions is reached), and a
// per-session journal with a
// truncation flag once MaxEventsPerSession is exceeded — the same
// idiom as the teacher's TelemetryStore (map + runOrder + Config).
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*sessionEntry
	sessionOrd []string
	config     *Config
}

type sessionEntry struct {
	info             *mcp.SessionInfo
	state            map[string]json.RawMessage
	journal          []mcp.SseEvent
	nextEventID      uint64
	journalTruncated bool
}

// NewMemoryStore creates a MemoryStore with DefaultConfig.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(nil)
}

// NewMemoryStoreWithConfig creates a MemoryStore with the given config
// (nil falls back to DefaultConfig).
func NewMemoryStoreWithConfig(config *Config) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*sessionEntry),
		sessionOrd: make([]string, 0),
		config:     config.withDefaults(),
	}
}

func newSessionEntry(id string, caps InitCaps) *sessionEntry {
	now := time.Now()
	return &sessionEntry{
		info: &mcp.SessionInfo{
			SessionID:          id,
			State:              mcp.StateInitializing,
			CreatedAt:          now,
			LastActivity:       now,
			LoggingLevel:       mcp.LevelInfo,
			ProtocolVersion:    caps.ProtocolVersion,
			ClientInfo:         caps.ClientInfo,
			ClientCapabilities: json.RawMessage(caps.ClientCapabilities),
			ServerCapabilities: json.RawMessage(caps.ServerCapabilities),
		},
		state:       make(map[string]json.RawMessage),
		journal:     make([]mcp.SseEvent, 0),
		nextEventID: 1,
	}
}

// CreateSession assigns a fresh uuid as the session id. The server is
// the sole authority on session ids, per §4.4 — clients never invent
// one, so MemoryStore always generates it here.
func (m *MemoryStore) CreateSession(ctx context.Context, caps InitCaps) (*mcp.SessionInfo, error) {
	return m.CreateSessionWithID(ctx, uuid.Must(uuid.NewV7()).String(), caps)
}

// CreateSessionWithID creates a session under the given id, as the
// initialize handler does with the id the transport pre-assigned.
func (m *MemoryStore) CreateSessionWithID(ctx context.Context, id string, caps InitCaps) (*mcp.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, ErrSessionCapacityReached
	}

	entry := newSessionEntry(id, caps)
	m.sessions[id] = entry
	m.sessionOrd = append(m.sessionOrd, id)
	return entry.info.Clone(), nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*mcp.SessionInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return entry.info.Clone(), true, nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, info *mcp.SessionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[info.SessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, info.SessionID)
	}
	entry.info = info.Clone()
	entry.info.LastActivity = time.Now()
	return nil
}

func (m *MemoryStore) SetState(ctx context.Context, id, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	entry.state[key] = json.RawMessage(value)
	entry.info.LastActivity = time.Now()
	return nil
}

func (m *MemoryStore) GetState(ctx context.Context, id, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	value, ok := entry.state[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

func (m *MemoryStore) RemoveState(ctx context.Context, id, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(entry.state, key)
	entry.info.LastActivity = time.Now()
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	for i, sid := range m.sessionOrd {
		if sid == id {
			m.sessionOrd = append(m.sessionOrd[:i], m.sessionOrd[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.sessionOrd))
	copy(ids, m.sessionOrd)
	return ids, nil
}

// StoreEvent assigns a strictly increasing id and enforces the
// per-session journal bound, dropping the oldest retained event (and
// setting journalTruncated) once MaxEventsPerSession is exceeded —
// mirroring the teacher's MaxOperationsPerRun truncation idiom.
func (m *MemoryStore) StoreEvent(ctx context.Context, id string, event mcp.SseEvent) (mcp.SseEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return mcp.SseEvent{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	event.ID = entry.nextEventID
	entry.nextEventID++
	entry.journal = append(entry.journal, event)
	entry.info.LastActivity = time.Now()

	if m.config.MaxEventsPerSession > 0 && len(entry.journal) > m.config.MaxEventsPerSession {
		drop := len(entry.journal) - m.config.MaxEventsPerSession
		entry.journal = entry.journal[drop:]
		if !entry.journalTruncated {
			entry.journalTruncated = true
			slog.Warn("session_journal_truncated", "session_id", id, "limit", m.config.MaxEventsPerSession)
		}
	}

	return event, nil
}

func (m *MemoryStore) GetEventsAfter(ctx context.Context, id string, afterEventID uint64) ([]mcp.SseEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	result := make([]mcp.SseEvent, 0, len(entry.journal))
	for _, ev := range entry.journal {
		if ev.ID > afterEventID {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetRecentEvents(ctx context.Context, id string, n int) ([]mcp.SseEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if n <= 0 || n >= len(entry.journal) {
		result := make([]mcp.SseEvent, len(entry.journal))
		copy(result, entry.journal)
		return result, nil
	}
	start := len(entry.journal) - n
	result := make([]mcp.SseEvent, n)
	copy(result, entry.journal[start:])
	return result, nil
}

func (m *MemoryStore) DeleteEventsBefore(ctx context.Context, id string, cut uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	kept := entry.journal[:0]
	for _, ev := range entry.journal {
		if ev.ID >= cut {
			kept = append(kept, ev)
		}
	}
	entry.journal = kept
	return nil
}

// OldestRetainedEventID implements OldestRetainedEventIDer.
func (m *MemoryStore) OldestRetainedEventID(ctx context.Context, id string) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if len(entry.journal) == 0 {
		return 0, false, nil
	}
	return entry.journal[0].ID, true, nil
}

// ExpireSessions deletes sessions whose last_activity is older than
// olderThan, returning the expired ids for the caller to notify.
func (m *MemoryStore) ExpireSessions(ctx context.Context, olderThan time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var expired []string
	for _, id := range m.sessionOrd {
		entry := m.sessions[id]
		if entry.info.LastActivity.Before(cutoff) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(m.sessions, id)
	}
	if len(expired) > 0 {
		remaining := m.sessionOrd[:0]
		expiredSet := make(map[string]struct{}, len(expired))
		for _, id := range expired {
			expiredSet[id] = struct{}{}
		}
		for _, id := range m.sessionOrd {
			if _, gone := expiredSet[id]; !gone {
				remaining = append(remaining, id)
			}
		}
		m.sessionOrd = remaining
	}

	return expired, nil
}

// Maintenance is a no-op for MemoryStore: there is no disk compaction
// to perform, and expiry/truncation already happen inline.
func (m *MemoryStore) Maintenance(ctx context.Context) error {
	return nil
}

// SessionCount reports the number of live sessions, for tests and
// admin endpoints.
func (m *MemoryStore) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
