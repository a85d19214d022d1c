package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/bc-dunia/mcpgo/mcp"
)

// Message is either a request (ID present) or a notification (ID absent)
// as read off the wire, before the dispatcher decides which it is.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *mcp.RequestID  `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this message has no id.
func (m Message) IsNotification() bool {
	return m.ID == nil || !m.ID.IsValid()
}

func (m Message) asRequest() *mcp.Request {
	id := mcp.RequestID{}
	if m.ID != nil {
		id = *m.ID
	}
	return &mcp.Request{JSONRPC: m.JSONRPC, ID: id, Method: m.Method, Params: m.Params}
}

func (m Message) asNotification() *mcp.Notification {
	return &mcp.Notification{JSONRPC: m.JSONRPC, Method: m.Method, Params: m.Params}
}

// ParseBody parses an inbound POST body as either a single JSON-RPC
// message or a batch (JSON array), per §4.2's batch semantics: an empty
// array is rejected outright (caller should reply -32600).
func ParseBody(body []byte) (messages []Message, batch bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("jsonrpc: empty request body")
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, true, fmt.Errorf("jsonrpc: malformed batch: %w", err)
		}
		if len(messages) == 0 {
			return nil, true, ErrEmptyBatch
		}
		return messages, true, nil
	}

	var single Message
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, false, fmt.Errorf("jsonrpc: malformed message: %w", err)
	}
	return []Message{single}, false, nil
}

// ErrEmptyBatch is returned by ParseBody for a `[]` body; callers map
// this to a -32600 Invalid Request response, per §4.2.
var ErrEmptyBatch = fmt.Errorf("jsonrpc: batch request must not be empty")

// HandleBody dispatches every message in body (single or batch) and
// returns the responses to write back — one per request, none for
// notifications — together with whether body was a batch and any parse
// error. Errors returned by notification handlers are discarded here and
// never surfaced to the client or the caller. If body was a
// single message, exactly zero or one Response is returned; if it was a
// batch, the caller serializes the returned slice as a JSON array, per
// §4.2's "batch semantics": "an array of responses (notifications
// omitted)".
func (d *Dispatcher) HandleBody(ctx context.Context, body []byte) (responses []*mcp.Response, batch bool, parseErr error) {
	messages, isBatch, err := ParseBody(body)
	if err != nil {
		return nil, isBatch, err
	}

	for _, msg := range messages {
		if msg.IsNotification() {
			if err := d.HandleNotification(ctx, msg.asNotification()); err != nil {
				// Notification errors never produce a wire response and
				// are not returned to the caller.
				continue
			}
			continue
		}
		responses = append(responses, d.HandleRequest(ctx, msg.asRequest()))
	}
	return responses, isBatch, nil
}
