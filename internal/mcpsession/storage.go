// Package mcpsession defines the SessionStorage abstraction — the single
// pluggable boundary between in-memory, disk, and remote session
// backends — along with a reference in-memory implementation and a
// ticker-driven expiry sweep manager.
package mcpsession

import (
	"context"
	"errors"
	"time"

	"github.com/bc-dunia/mcpgo/mcp"
)

// ErrSessionNotFound is returned by operations that address a session
// id unknown to the store.
var ErrSessionNotFound = errors.New("mcpsession: session not found")

// ErrSessionCapacityReached is returned by CreateSession when the
// store's configured session cap has been hit.
var ErrSessionCapacityReached = errors.New("mcpsession: session capacity reached")

// ErrSessionExists is returned by CreateSessionWithID when id is
// already in use.
var ErrSessionExists = errors.New("mcpsession: session id already exists")

// InitCaps carries the negotiated state recorded at session creation:
// the protocol version and both sides' capability blobs, as sent in
// initialize's params/result.
type InitCaps struct {
	ProtocolVersion    string
	ClientInfo         *mcp.ClientInfo
	ClientCapabilities []byte
	ServerCapabilities []byte
}

// SessionStorage is the one pluggable boundary between in-memory, disk,
// and remote backends, per §4.3's operation table. Every operation may
// fail with a typed storage error (ErrSessionNotFound,
// ErrSessionCapacityReached, ErrSessionExists, or a backend-specific
// wrapped error) and none panic on a missing id.
type SessionStorage interface {
	// CreateSession assigns a fresh, server-chosen session id.
	CreateSession(ctx context.Context, caps InitCaps) (*mcp.SessionInfo, error)
	// CreateSessionWithID creates a session under a caller-chosen id; the
	// initialize handler uses it with the id the transport pre-assigned.
	CreateSessionWithID(ctx context.Context, id string, caps InitCaps) (*mcp.SessionInfo, error)
	// GetSession is a read-only lookup; ok is false if id is unknown.
	GetSession(ctx context.Context, id string) (info *mcp.SessionInfo, ok bool, err error)
	// UpdateSession is a full replace, last-writer-wins.
	UpdateSession(ctx context.Context, info *mcp.SessionInfo) error
	// SetState/GetState/RemoveState manage per-session keyed state and
	// update last_activity on any mutation.
	SetState(ctx context.Context, id, key string, value []byte) error
	GetState(ctx context.Context, id, key string) (value []byte, ok bool, err error)
	RemoveState(ctx context.Context, id, key string) error
	// DeleteSession also deletes the session's event journal.
	DeleteSession(ctx context.Context, id string) error
	// ListSessions is for admin tooling and the expiry sweep.
	ListSessions(ctx context.Context) ([]string, error)

	// StoreEvent assigns a strictly increasing id (per session) and
	// enforces the per-session journal bound, returning the event with
	// its assigned id filled in.
	StoreEvent(ctx context.Context, id string, event mcp.SseEvent) (mcp.SseEvent, error)
	// GetEventsAfter returns events with id > afterEventID in id order,
	// for resumption.
	GetEventsAfter(ctx context.Context, id string, afterEventID uint64) ([]mcp.SseEvent, error)
	// GetRecentEvents is a tail read of the last n events.
	GetRecentEvents(ctx context.Context, id string, n int) ([]mcp.SseEvent, error)
	// DeleteEventsBefore compacts the journal, dropping events with
	// id < cut.
	DeleteEventsBefore(ctx context.Context, id string, cut uint64) error

	// ExpireSessions deletes sessions whose last_activity is older than
	// olderThan and returns their ids, for the caller to notify.
	// Expiry never interleaves with an in-progress write for the same
	// session (implementations serialize per-session).
	ExpireSessions(ctx context.Context, olderThan time.Duration) ([]string, error)
	// Maintenance is an opaque hook for pruning/compaction beyond
	// expiry (e.g. trimming oversize journals); no-op is a valid impl.
	Maintenance(ctx context.Context) error
}

// OldestRetainedEventID reports the oldest event id still held for a
// session's journal, used by the transport layer to decide whether a
// Last-Event-ID request is satisfiable or must be answered lossy/409.
// Implementations that support compaction should also implement this;
// it is queried via a type assertion since it's not part of every
// conceivable backend (e.g. a remote store might not expose it cheaply).
type OldestRetainedEventIDer interface {
	OldestRetainedEventID(ctx context.Context, id string) (oldest uint64, hasEvents bool, err error)
}
