package streamtransport

import "context"

type ctxKey int

const sessionIDKey ctxKey = iota

// WithSessionID returns a context carrying id as the in-flight
// request's resolved session id. The transport sets this before
// invoking the dispatcher, so handlers never see the raw HTTP header.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session id the transport resolved
// for the in-flight request, if any. Handlers for "initialize" use this
// to learn the id the transport pre-assigned (the server is the sole
// authority on session ids; a client never supplies one at creation
// time).
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
