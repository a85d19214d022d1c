package mcpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/bc-dunia/mcpgo/mcp"
)

// Notification is one server-pushed message delivered over the GET SSE
// stream: a JSON-RPC notification (progress, log message, list-changed)
// or a heartbeat with no payload.
type Notification struct {
	EventType string
	Method    string
	Params    json.RawMessage
}

// Subscribe opens the session's GET SSE stream and delivers every
// server-pushed notification on the returned channel until ctx is
// cancelled, the session is terminated server-side, or an
// unrecoverable error occurs — in which case it is sent on errc and
// both channels are closed. A dropped connection is retried from the
// last delivered event id (State transitions Active -> Reconnecting ->
// Active), mirroring the reconnect-with-Last-Event-ID behavior
// §4.7 asks the client mirror to implement; the teacher's own
// StreamableHTTPConnection never had to reconnect since its load-test
// runs are one-shot request/response, so this loop is new code
// following the teacher's doRequest retry-free style rather than
// adapted from an existing method.
func (c *Connection) Subscribe(ctx context.Context) (<-chan Notification, <-chan error) {
	notifc := make(chan Notification, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(notifc)
		defer close(errc)

		backoff := 500 * time.Millisecond
		const maxBackoff = 10 * time.Second

		for {
			if ctx.Err() != nil {
				return
			}
			err := c.subscribeOnce(ctx, notifc)
			if err == nil {
				return // context cancelled cleanly inside subscribeOnce
			}
			if ce, ok := err.(*ClientError); ok && (ce.HTTPStatus == http.StatusNotFound || ce.HTTPStatus == http.StatusGone) {
				c.setState(StateTerminated)
				errc <- err
				return
			}

			c.setState(StateReconnecting)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}()

	return notifc, errc
}

func (c *Connection) subscribeOnce(ctx context.Context, notifc chan<- Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint, nil)
	if err != nil {
		return MapError(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setHeaders(req, true)

	resp, err := c.client.Do(req)
	if err != nil {
		return MapError(err)
	}
	defer resp.Body.Close()

	if httpErr := MapHTTPStatus(resp.StatusCode, ""); httpErr != nil {
		return httpErr
	}

	c.setState(StateActive)
	decoder := newSSEDecoder(resp.Body, c.config.Timeouts.StreamStallTimeout)
	defer decoder.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		event, err := decoder.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return MapProtocolError("stream closed by server")
			}
			return MapError(err)
		}

		if event.ID != "" {
			c.setLastEventID(event.ID)
		}

		if event.Event == mcp.EventTypeHeartbeat || event.Data == "" {
			continue
		}

		var notif mcp.Notification
		if err := json.Unmarshal([]byte(event.Data), &notif); err != nil {
			continue
		}
		select {
		case notifc <- Notification{EventType: event.Event, Method: notif.Method, Params: notif.Params}:
		case <-ctx.Done():
			return nil
		}
	}
}
