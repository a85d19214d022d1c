package mcpserver

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

type blockArgs struct{}

// TestNotificationsCancelledCancelsInFlightToolCall is an end-to-end
// cancellation scenario: a tools/call blocked on ctx.Done() is unblocked
// by a concurrent notifications/cancelled for the same request id,
// exercising the full initialize -> tools/call -> cancel path through a
// real HTTP server rather than calling handlers directly.
func TestNotificationsCancelledCancelsInFlightToolCall(t *testing.T) {
	s := NewServer("127.0.0.1:0", Info{Name: "test-server", Version: "0.0.1"})

	registered := make(chan struct{})
	toolCtxErr := make(chan error, 1)
	tool, err := mcp.NewToolFromFunc("block", func(ctx context.Context, a blockArgs) (string, error) {
		close(registered)
		<-ctx.Done()
		toolCtxErr <- ctx.Err()
		return "", ctx.Err()
	})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}
	s.RegisterTool(tool)

	if err := s.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})

	base := "http://" + s.Addr() + "/mcp"

	initResp, err := http.Post(base, "application/json", bytes.NewReader(
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"`+mcp.DefaultProtocolVersion+`"}}`)))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sessionID := initResp.Header.Get(streamtransport.HeaderSessionID)
	initResp.Body.Close()
	if sessionID == "" {
		t.Fatal("expected a session id from initialize")
	}

	postJSON(t, base, sessionID, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	callErrCh := make(chan error, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, base, bytes.NewReader(
			[]byte(`{"jsonrpc":"2.0","id":99,"method":"tools/call","params":{"name":"block","arguments":{}}}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(streamtransport.HeaderSessionID, sessionID)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		callErrCh <- err
	}()

	select {
	case <-registered:
	case <-time.After(5 * time.Second):
		t.Fatal("tool call never reached the blocking point")
	}

	postJSON(t, base, sessionID, `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":99}}`)

	select {
	case err := <-toolCtxErr:
		if err != context.Canceled {
			t.Fatalf("expected tool ctx to be canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tool call was never canceled")
	}

	if err := <-callErrCh; err != nil {
		t.Fatalf("tools/call request: %v", err)
	}
}

func postJSON(t *testing.T, url, sessionID, body string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(streamtransport.HeaderSessionID, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", body, err)
	}
	resp.Body.Close()
}
