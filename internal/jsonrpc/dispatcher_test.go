package jsonrpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bc-dunia/mcpgo/mcp"
)

func TestHandleRequestUnknownMethod(t *testing.T) {
	d := New()
	resp := d.HandleRequest(context.Background(), &mcp.Request{
		JSONRPC: mcp.Version, ID: mcp.NewRequestID(int64(1)), Method: "nope",
	})
	if resp.Error == nil || resp.Error.Code != mcp.CodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestHandleRequestSuccess(t *testing.T) {
	d := New()
	d.Register("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]bool{"ok": true}, nil
	})
	resp := d.HandleRequest(context.Background(), &mcp.Request{
		JSONRPC: mcp.Version, ID: mcp.NewRequestID(int64(1)), Method: "ping",
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result map[string]bool
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result["ok"] {
		t.Errorf("expected ok:true, got %+v", result)
	}
}

func TestHandleRequestDomainErrorMapsCode(t *testing.T) {
	d := New()
	d.Register("tools/call", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, mcp.NewToolNotFoundError("missing-tool")
	})
	resp := d.HandleRequest(context.Background(), &mcp.Request{
		JSONRPC: mcp.Version, ID: mcp.NewRequestID(int64(2)), Method: "tools/call",
	})
	if resp.Error == nil || resp.Error.Code != mcp.CodeToolNotFound {
		t.Fatalf("expected code %d, got %+v", mcp.CodeToolNotFound, resp.Error)
	}
}

func TestHandleRequestRecoversPanic(t *testing.T) {
	d := New()
	d.Register("boom", func(ctx context.Context, params json.RawMessage) (any, error) {
		panic("kaboom")
	})
	resp := d.HandleRequest(context.Background(), &mcp.Request{
		JSONRPC: mcp.Version, ID: mcp.NewRequestID(int64(3)), Method: "boom",
	})
	if resp.Error == nil || resp.Error.Code != mcp.CodeInternalError {
		t.Fatalf("expected internal error after panic, got %+v", resp.Error)
	}
}

func TestHandleNotificationUnknownMethodIsSilentlyDropped(t *testing.T) {
	d := New()
	if err := d.HandleNotification(context.Background(), &mcp.Notification{Method: "nope"}); err != nil {
		t.Fatalf("unexpected error for unknown notification: %v", err)
	}
}

func TestHandleBodyBatchOmitsNotificationResponses(t *testing.T) {
	d := New()
	var notified bool
	d.Register("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]bool{"ok": true}, nil
	})
	d.RegisterNotification("notifications/initialized", func(ctx context.Context, params json.RawMessage) error {
		notified = true
		return nil
	})

	body := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		{"jsonrpc":"2.0","method":"notifications/initialized"}
	]`)
	responses, isBatch, err := d.HandleBody(context.Background(), body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isBatch {
		t.Fatal("expected batch to be detected")
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response (notification omitted), got %d", len(responses))
	}
	if !notified {
		t.Error("expected notification handler to run")
	}
}

func TestHandleBodyEmptyBatchRejected(t *testing.T) {
	d := New()
	_, _, err := d.HandleBody(context.Background(), []byte(`[]`))
	if err != ErrEmptyBatch {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}
