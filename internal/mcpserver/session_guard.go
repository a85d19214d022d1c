package mcpserver

import (
	"context"

	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

// requireSession resolves the in-flight request's session without
// enforcing a lifecycle state, for initialize/ping.
func (s *Server) requireSession(ctx context.Context) (*mcp.SessionInfo, error) {
	id, ok := streamtransport.SessionIDFromContext(ctx)
	if !ok {
		return nil, mcp.NewSessionError("no session associated with request")
	}
	info, ok, err := s.storage.GetSession(ctx, id)
	if err != nil {
		return nil, mcp.NewSessionError("session lookup failed: " + err.Error())
	}
	if !ok {
		return nil, mcp.NewSessionError("unknown session")
	}
	return info, nil
}

// requireActiveSession additionally enforces that notifications/initialized
// has already transitioned the session to Active, per §4.6 step 5: every
// method besides initialize/ping is rejected with -32031 beforehand.
func (s *Server) requireActiveSession(ctx context.Context) (*mcp.SessionInfo, error) {
	info, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if info.State != mcp.StateActive {
		return nil, mcp.NewSessionError("session is not active")
	}
	return info, nil
}
