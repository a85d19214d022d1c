package mcp

import (
	"encoding/json"
	"time"
)

// SessionState is the server-side lifecycle state of one MCP session, per
// the precondition rules of §2 "Control flow" and §4.6 "initialize
// request handler".
type SessionState string

const (
	// StateInitializing is set the moment initialize responds, before the
	// client has sent notifications/initialized.
	StateInitializing SessionState = "initializing"
	// StateActive is set once notifications/initialized is received; every
	// method besides initialize/ping requires this state.
	StateActive SessionState = "active"
	// StateTerminated marks a session that no longer accepts streams; the
	// transport answers a GET for such a session with 410. MemoryStore
	// never sets it: deleting or expiring a session removes it outright.
	StateTerminated SessionState = "terminated"
)

// SessionInfo is the durable, storage-owned record of one session. No
// other component holds a mutable reference to it — callers resolve by
// ID against SessionStorage each time.
type SessionInfo struct {
	SessionID          string                     `json:"session_id"`
	State              SessionState               `json:"state"`
	CreatedAt          time.Time                  `json:"created_at"`
	LastActivity       time.Time                  `json:"last_activity"`
	LoggingLevel       LoggingLevel               `json:"logging_level"`
	ProtocolVersion    string                     `json:"protocol_version,omitempty"`
	ClientInfo         *ClientInfo                `json:"client_info,omitempty"`
	ClientCapabilities json.RawMessage            `json:"client_capabilities,omitempty"`
	ServerCapabilities json.RawMessage            `json:"server_capabilities,omitempty"`
	State_             map[string]json.RawMessage `json:"state_kv,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to callers outside the
// storage lock: the State_ map is copied, everything else is a value.
func (s *SessionInfo) Clone() *SessionInfo {
	if s == nil {
		return nil
	}
	cp := *s
	if s.State_ != nil {
		cp.State_ = make(map[string]json.RawMessage, len(s.State_))
		for k, v := range s.State_ {
			cp.State_[k] = v
		}
	}
	if s.ClientInfo != nil {
		ci := *s.ClientInfo
		cp.ClientInfo = &ci
	}
	return &cp
}

// SseEvent is one entry of a session's event journal: assigned a strictly
// increasing ID by storage at store time, and replayed verbatim (same ID)
// on resumption.
type SseEvent struct {
	ID        uint64          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Retry     *int            `json:"retry,omitempty"`
}

// EventTypeMessage is the generic SSE event type carrying a JSON-RPC
// notification or response. Notification-specific event types mirror the
// method name instead (e.g. "notifications/progress").
const EventTypeMessage = "message"

// EventTypeHeartbeat is a periodic no-data keepalive frame.
const EventTypeHeartbeat = "heartbeat"
