package streamtransport

import (
	"fmt"
	"net/http"

	"github.com/bc-dunia/mcpgo/mcp"
)

// writeSSEEvent serializes ev in the wire framing §4.4 specifies:
//
//	id: <u64>\n
//	event: <event_type>\n
//	data: <single-line JSON>\n
//	\n
//
// with an optional retry line. json.Marshal never emits raw newlines,
// so ev.Data is always safe to place on a single data: line as-is.
func writeSSEEvent(w http.ResponseWriter, ev mcp.SseEvent) bool {
	if _, err := fmt.Fprintf(w, "id: %d\n", ev.ID); err != nil {
		return false
	}
	eventType := ev.EventType
	if eventType == "" {
		eventType = mcp.EventTypeMessage
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return false
	}
	if ev.Retry != nil {
		if _, err := fmt.Fprintf(w, "retry: %d\n", *ev.Retry); err != nil {
			return false
		}
	}
	data := ev.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return false
	}
	return true
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
