package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

type echoArgs struct {
	Text string `json:"text"`
}

func echoTool(t *testing.T) mcp.Tool {
	t.Helper()
	tool, err := mcp.NewToolFromFunc("echo", func(ctx context.Context, a echoArgs) (string, error) {
		return a.Text, nil
	})
	if err != nil {
		t.Fatalf("build tool: %v", err)
	}
	return tool
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", Info{Name: "test-server", Version: "0.0.1"})
	s.dispatcher = s.buildDispatcher()
	return s
}

func callInitialize(t *testing.T, s *Server, sessionID string) *mcp.InitializeResult {
	t.Helper()
	ctx := streamtransport.WithSessionID(context.Background(), sessionID)
	params, _ := json.Marshal(mcp.InitializeParams{
		ProtocolVersion: mcp.DefaultProtocolVersion,
		ClientInfo:      mcp.ClientInfo{Name: "test-client", Version: "1.0"},
	})
	result, err := s.handleInitialize(ctx, params)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	r := result.(mcp.InitializeResult)
	return &r
}

func activateSession(t *testing.T, s *Server, sessionID string) {
	t.Helper()
	ctx := streamtransport.WithSessionID(context.Background(), sessionID)
	if err := s.handleNotificationInitialized(ctx, nil); err != nil {
		t.Fatalf("notifications/initialized: %v", err)
	}
}

func TestInitializeRejectsUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)
	ctx := streamtransport.WithSessionID(context.Background(), "sess-1")
	params, _ := json.Marshal(mcp.InitializeParams{ProtocolVersion: "1999-01-01"})

	_, err := s.handleInitialize(ctx, params)
	if err == nil {
		t.Fatal("expected a version mismatch error")
	}
	var domainErr mcp.DomainError
	if !asDomainError(err, &domainErr) {
		t.Fatalf("expected a DomainError, got %T", err)
	}
	if domainErr.Code() != mcp.CodeVersionMismatch {
		t.Errorf("expected code %d, got %d", mcp.CodeVersionMismatch, domainErr.Code())
	}
}

func TestNonInitializeCallBeforeActiveIsRejected(t *testing.T) {
	s := newTestServer(t)
	callInitialize(t, s, "sess-2")

	ctx := streamtransport.WithSessionID(context.Background(), "sess-2")
	_, err := s.handleToolsList(ctx, nil)
	if err == nil {
		t.Fatal("expected a session error before notifications/initialized")
	}
	var domainErr mcp.DomainError
	if !asDomainError(err, &domainErr) || domainErr.Code() != mcp.CodeSessionError {
		t.Fatalf("expected CodeSessionError, got %v", err)
	}
}

func TestPingAllowedBeforeActive(t *testing.T) {
	s := newTestServer(t)
	callInitialize(t, s, "sess-3")

	ctx := streamtransport.WithSessionID(context.Background(), "sess-3")
	if _, err := s.handlePing(ctx, nil); err != nil {
		t.Fatalf("ping should be allowed before active: %v", err)
	}
}

func TestToolsListAndCallAfterActivation(t *testing.T) {
	s := newTestServer(t)
	s.RegisterTool(echoTool(t))
	callInitialize(t, s, "sess-4")
	activateSession(t, s, "sess-4")

	ctx := streamtransport.WithSessionID(context.Background(), "sess-4")
	listResult, err := s.handleToolsList(ctx, nil)
	if err != nil {
		t.Fatalf("tools/list: %v", err)
	}
	list := listResult.(mcp.ToolsListResult)
	if len(list.Tools) != 1 || list.Tools[0].Name != "echo" {
		t.Fatalf("expected one echo tool, got %+v", list.Tools)
	}

	callParams, _ := json.Marshal(mcp.ToolsCallParams{Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)})
	result, err := s.handleToolsCall(ctx, callParams)
	if err != nil {
		t.Fatalf("tools/call: %v", err)
	}
	callResult := result.(*mcp.CallToolResult)
	if len(callResult.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(callResult.Content))
	}
}

func TestToolsCallUnknownToolIsNotFound(t *testing.T) {
	s := newTestServer(t)
	callInitialize(t, s, "sess-5")
	activateSession(t, s, "sess-5")

	ctx := streamtransport.WithSessionID(context.Background(), "sess-5")
	callParams, _ := json.Marshal(mcp.ToolsCallParams{Name: "does-not-exist"})
	_, err := s.handleToolsCall(ctx, callParams)
	if err == nil {
		t.Fatal("expected a not-found error")
	}
	var domainErr mcp.DomainError
	if !asDomainError(err, &domainErr) || domainErr.Code() != mcp.CodeToolNotFound {
		t.Fatalf("expected CodeToolNotFound, got %v", err)
	}
}

func TestLoggingSetLevelUpdatesSession(t *testing.T) {
	s := newTestServer(t)
	callInitialize(t, s, "sess-6")
	activateSession(t, s, "sess-6")

	ctx := streamtransport.WithSessionID(context.Background(), "sess-6")
	params, _ := json.Marshal(mcp.SetLevelParams{Level: "warning"})
	if _, err := s.handleLoggingSetLevel(ctx, params); err != nil {
		t.Fatalf("logging/setLevel: %v", err)
	}

	info, ok, err := s.storage.GetSession(context.Background(), "sess-6")
	if err != nil || !ok {
		t.Fatalf("expected session found, err=%v ok=%v", err, ok)
	}
	if info.LoggingLevel != mcp.LevelWarning {
		t.Errorf("expected warning level, got %v", info.LoggingLevel)
	}
}

func TestSamplingWithoutProviderIsInvalidCapability(t *testing.T) {
	s := newTestServer(t)
	callInitialize(t, s, "sess-7")
	activateSession(t, s, "sess-7")

	ctx := streamtransport.WithSessionID(context.Background(), "sess-7")
	params, _ := json.Marshal(mcp.CreateMessageParams{})
	_, err := s.handleSamplingCreateMessage(ctx, params)
	if err == nil {
		t.Fatal("expected an error with no sampling provider configured")
	}
	var domainErr mcp.DomainError
	if !asDomainError(err, &domainErr) || domainErr.Code() != mcp.CodeInvalidCapability {
		t.Fatalf("expected CodeInvalidCapability, got %v", err)
	}
}

func asDomainError(err error, target *mcp.DomainError) bool {
	de, ok := err.(mcp.DomainError)
	if !ok {
		return false
	}
	*target = de
	return true
}
