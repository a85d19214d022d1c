package streamtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bc-dunia/mcpgo/internal/broadcast"
	"github.com/bc-dunia/mcpgo/internal/jsonrpc"
	"github.com/bc-dunia/mcpgo/internal/mcpsession"
	"github.com/bc-dunia/mcpgo/mcp"
)

func newTestHandler(t *testing.T) (*Handler, *mcpsession.MemoryStore) {
	t.Helper()
	store := mcpsession.NewMemoryStore()
	bcast := broadcast.New(store, nil)
	d := jsonrpc.New()
	d.Register("initialize", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"protocolVersion": "2025-06-18"}, nil
	})
	d.Register("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})
	return NewHandler(d, store, bcast, nil), store
}

func TestHandlePostInitializeAssignsSession(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	sid := rec.Header().Get(HeaderSessionID)
	if sid == "" {
		t.Fatal("expected a session id header to be set")
	}
}

func TestHandlePostMissingSessionRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 envelope with error, got %d", rec.Code)
	}
	var resp mcp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != mcp.CodeSessionError {
		t.Fatalf("expected session error, got %+v", resp.Error)
	}
}

func TestHandlePostWrongContentTypeRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestHandlePostEmptyBatchRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("[]"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var resp mcp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != mcp.CodeInvalidRequest {
		t.Fatalf("expected invalid request error, got %+v", resp.Error)
	}
}

func TestHandlePostAllNotificationsReturns202(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	info, err := store.CreateSession(ctx, mcpsession.InitCaps{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	body := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSessionID, info.SessionID)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestHandleDeleteTerminatesSession(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	info, err := store.CreateSession(ctx, mcpsession.InitCaps{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(HeaderSessionID, info.SessionID)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok, _ := store.GetSession(ctx, info.SessionID); ok {
		t.Fatal("expected session to be deleted")
	}
}

func TestHandleDeleteUnknownSessionIs404(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(HeaderSessionID, "does-not-exist")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleOptionsCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	h.config.CORS.AllowedOrigins = []string{"https://example.com"}

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Fatalf("expected CORS origin header to be echoed, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHandleGetWithoutSSEAcceptIsMethodNotAllowed(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	info, _ := store.CreateSession(ctx, mcpsession.InitCaps{})

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(HeaderSessionID, info.SessionID)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleGetResumeBeyondRetainedWindowIsConflict(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	info, _ := store.CreateSession(ctx, mcpsession.InitCaps{})
	for i := 0; i < 3; i++ {
		if _, err := store.StoreEvent(ctx, info.SessionID, mcp.SseEvent{EventType: "message", Data: []byte(`{}`)}); err != nil {
			t.Fatalf("store event: %v", err)
		}
	}
	if err := store.DeleteEventsBefore(ctx, info.SessionID, 3); err != nil {
		t.Fatalf("delete events before: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(HeaderSessionID, info.SessionID)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(HeaderLastEventID, "1")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestCancelRequestUnblocksInFlightHandler covers cancellation: a
// notifications/cancelled message for an in-flight request's id cancels
// that request's context rather than being a no-op.
func TestCancelRequestUnblocksInFlightHandler(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	info, _ := store.CreateSession(ctx, mcpsession.InitCaps{})
	store.UpdateSession(ctx, &mcp.SessionInfo{SessionID: info.SessionID, State: mcp.StateActive})

	registered := make(chan struct{})
	handlerDone := make(chan error, 1)
	h.dispatcher.Register("slow/block", func(ctx context.Context, params json.RawMessage) (any, error) {
		close(registered)
		<-ctx.Done()
		handlerDone <- ctx.Err()
		return nil, ctx.Err()
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		body := `{"jsonrpc":"2.0","id":42,"method":"slow/block"}`
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderSessionID, info.SessionID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		done <- rec
	}()

	<-registered
	if !h.CancelRequest(info.SessionID, mcp.NewRequestID(int64(42))) {
		t.Fatal("expected CancelRequest to find the in-flight request")
	}

	if err := <-handlerDone; err != context.Canceled {
		t.Fatalf("expected handler ctx to be canceled, got %v", err)
	}

	rec := <-done
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

// TestCancelRequestMissingIDIsNoop covers cancelling a request that
// already finished, or never existed: no panic, just a false result.
func TestCancelRequestMissingIDIsNoop(t *testing.T) {
	h, _ := newTestHandler(t)
	if h.CancelRequest("no-such-session", mcp.NewRequestID(int64(1))) {
		t.Fatal("expected CancelRequest to report no match")
	}
}

func TestHandlePostJSONResponseBody(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()
	info, _ := store.CreateSession(ctx, mcpsession.InitCaps{})
	store.UpdateSession(ctx, &mcp.SessionInfo{
		SessionID: info.SessionID,
		State:     mcp.StateActive,
	})

	body := `{"jsonrpc":"2.0","id":7,"method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSessionID, info.SessionID)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp mcp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}
