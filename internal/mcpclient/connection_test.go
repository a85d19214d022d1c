package mcpclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bc-dunia/mcpgo/internal/mcpserver"
	"github.com/bc-dunia/mcpgo/mcp"
)

type greetArgs struct {
	Name string `json:"name"`
}

func newTestEchoServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	s := mcpserver.NewServer("127.0.0.1:0", mcpserver.Info{Name: "test-server", Version: "0.0.1"})
	tool, err := mcp.NewToolFromFunc("greet", func(ctx context.Context, a greetArgs) (string, error) {
		return "hello " + a.Name, nil
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
	return s
}

func dialTestConnection(t *testing.T, s *mcpserver.Server) *Connection {
	t.Helper()
	conn, err := Dial(&Config{
		Endpoint:             "http://" + s.Addr() + "/mcp",
		AllowPrivateNetworks: []string{"127.0.0.0/8"},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		conn.Close(ctx)
	})
	return conn
}

func TestInitializeThenToolsCallRoundTrip(t *testing.T) {
	s := newTestEchoServer(t)
	conn := dialTestConnection(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := conn.Initialize(ctx, mcp.ClientInfo{Name: "test-client", Version: "1.0"}, mcp.DefaultProtocolVersion)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if result.ProtocolVersion == "" {
		t.Fatal("expected a protocol version in the initialize result")
	}
	if conn.State() != StateInitializing {
		t.Fatalf("expected StateInitializing after initialize, got %v", conn.State())
	}
	if conn.SessionID() == "" {
		t.Fatal("expected a session id to be assigned by initialize")
	}

	if err := conn.SendInitialized(ctx); err != nil {
		t.Fatalf("send initialized: %v", err)
	}
	if conn.State() != StateActive {
		t.Fatalf("expected StateActive after notifications/initialized, got %v", conn.State())
	}

	tools, err := conn.ToolsList(ctx, "")
	if err != nil {
		t.Fatalf("tools/list: %v", err)
	}
	found := false
	for _, tl := range tools.Tools {
		if tl.Name == "greet" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected greet tool in tools/list, got %+v", tools.Tools)
	}

	callResult, err := conn.ToolsCall(ctx, "greet", json.RawMessage(`{"name":"world"}`))
	if err != nil {
		t.Fatalf("tools/call: %v", err)
	}
	if len(callResult.Content) == 0 {
		t.Fatal("expected content in tools/call result")
	}
}

func TestPingBeforeInitializeIsRejected(t *testing.T) {
	s := newTestEchoServer(t)
	conn := dialTestConnection(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err == nil {
		t.Fatal("expected ping before initialize to fail")
	}
}

func TestRequestAgainstUnknownSessionMapsToSessionError(t *testing.T) {
	s := newTestEchoServer(t)
	conn := dialTestConnection(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.Initialize(ctx, mcp.ClientInfo{Name: "test-client", Version: "1.0"}, mcp.DefaultProtocolVersion); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := conn.SendInitialized(ctx); err != nil {
		t.Fatalf("send initialized: %v", err)
	}

	// Forge a session id the server has never seen, simulating a
	// terminated or expired session being reused by a stale client.
	conn.setSessionID("sess-does-not-exist")

	_, err := conn.ToolsList(ctx, "")
	if err == nil {
		t.Fatal("expected an error for an unknown session id")
	}
	clientErr, ok := err.(*ClientError)
	if !ok {
		t.Fatalf("expected *ClientError, got %T: %v", err, err)
	}
	if clientErr.Category != CategorySession {
		t.Fatalf("expected CategorySession, got %v (%v)", clientErr.Category, clientErr)
	}
}

func TestSubscribeDeliversNotification(t *testing.T) {
	s := newTestEchoServer(t)
	conn := dialTestConnection(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.Initialize(ctx, mcp.ClientInfo{Name: "test-client", Version: "1.0"}, mcp.DefaultProtocolVersion); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := conn.SendInitialized(ctx); err != nil {
		t.Fatalf("send initialized: %v", err)
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	notifc, errc := conn.Subscribe(subCtx)

	select {
	case n, ok := <-notifc:
		if ok && n.Method != "" {
			// A pushed notification arrived before any server-side event
			// fired; acceptable, just confirms the stream delivers frames.
		}
	case err := <-errc:
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		// No notification was pushed in the window, which is fine: this
		// test only exercises that Subscribe connects and stays open
		// without erroring, not that the server emits spontaneous events.
	}
}
