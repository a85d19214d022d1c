// Package jsonrpc implements the JSON-RPC 2.0 message dispatcher: method
// routing, batch handling, and domain-error-to-wire-code mapping. It has
// no knowledge of sessions or transports — callers inject whatever
// per-request context a handler needs (e.g. a session context) via the
// standard context.Context passed to HandleRequest/HandleNotification.
package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bc-dunia/mcpgo/mcp"
)

// Handler executes one JSON-RPC method call and returns its result (which
// will be marshaled into the response's "result" field) or an error.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationHandler executes one JSON-RPC notification. Errors are
// logged, never sent back to the caller (notifications have no reply).
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// Dispatcher routes inbound JSON-RPC messages to registered handlers. It
// is built once (via Register/RegisterNotification/SetDefault) and then
// used read-only from any number of goroutines — the registries below
// are never mutated after the server starts serving requests, so no
// locking is needed on the hot path.
type Dispatcher struct {
	methods       map[string]Handler
	notifications map[string]NotificationHandler
	defaultFn     Handler
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		methods:       make(map[string]Handler),
		notifications: make(map[string]NotificationHandler),
	}
}

// Register associates method with handler. Multiple methods may share the
// same handler (e.g. every "notifications/*/listChanged" notification).
func (d *Dispatcher) Register(method string, handler Handler) {
	d.methods[method] = handler
}

// RegisterNotification associates a notification method with handler.
func (d *Dispatcher) RegisterNotification(method string, handler NotificationHandler) {
	d.notifications[method] = handler
}

// SetDefault installs a catch-all handler invoked when no method in the
// registry matches. If unset, unmatched methods yield -32601.
func (d *Dispatcher) SetDefault(handler Handler) {
	d.defaultFn = handler
}

// HandleRequest dispatches a single JSON-RPC request and never panics:
// handler panics are recovered at this boundary and surfaced as
// -32603 Internal error without taking down the caller's goroutine.
func (d *Dispatcher) HandleRequest(ctx context.Context, req *mcp.Request) (resp *mcp.Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("jsonrpc_handler_panic", "method", req.Method, "panic", r)
			resp = mcp.NewErrorResponse(req.ID, mcp.CodeInternalError, "internal error", nil)
		}
	}()

	handler := d.methods[req.Method]
	if handler == nil {
		handler = d.defaultFn
	}
	if handler == nil {
		return mcp.NewErrorResponse(req.ID, mcp.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		return errorResponse(req.ID, err)
	}

	response, marshalErr := mcp.NewResponse(req.ID, result)
	if marshalErr != nil {
		slog.Error("jsonrpc_result_marshal_failed", "method", req.Method, "error", marshalErr)
		return mcp.NewErrorResponse(req.ID, mcp.CodeInternalError, "failed to serialize result", nil)
	}
	return response
}

// HandleNotification dispatches a single JSON-RPC notification. Unknown
// methods are silently dropped, per §4.2's contract — a client sending a
// notification the server doesn't understand should not see any reply,
// error or otherwise.
func (d *Dispatcher) HandleNotification(ctx context.Context, notif *mcp.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("jsonrpc_notification_panic", "method", notif.Method, "panic", r)
			err = fmt.Errorf("jsonrpc: panic handling notification %s: %v", notif.Method, r)
		}
	}()

	handler := d.notifications[notif.Method]
	if handler == nil {
		return nil
	}
	return handler(ctx, notif.Params)
}

// errorResponse converts a handler error into a JSON-RPC error response
// using CodeFor's domain-error mapping.
func errorResponse(id mcp.RequestID, err error) *mcp.Response {
	code := CodeFor(err)
	return mcp.NewErrorResponse(id, code, err.Error(), nil)
}
