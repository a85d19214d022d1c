package mcpserver

import (
	"context"

	"github.com/bc-dunia/mcpgo/mcp"
)

// SamplingProvider lets a server delegate sampling/createMessage requests
// to a client-supplied LLM backend. Registered on Server exactly like
// TelemetryStore/MetricsCollector/AgentStore are registered on the
// teacher's api.Server — a pluggable collaborator, not a baked-in
// implementation.
type SamplingProvider interface {
	CreateMessage(ctx context.Context, params mcp.CreateMessageParams) (*mcp.CreateMessageResult, error)
}

// ElicitationProvider lets a server delegate elicitation/create requests
// to a client-supplied user-input backend.
type ElicitationProvider interface {
	Create(ctx context.Context, params mcp.ElicitParams) (*mcp.ElicitResult, error)
}

// CompletionProvider supplies completion/complete suggestions for a
// prompt argument or resource template variable.
type CompletionProvider interface {
	Complete(ctx context.Context, params mcp.CompleteParams) (*mcp.CompleteResult, error)
}

// RootsProvider supplies the server's view of client-exposed filesystem
// roots for roots/list. Most servers never need this — it exists for
// symmetry with the client-side roots capability described in spec.md §6.
type RootsProvider interface {
	ListRoots(ctx context.Context) ([]mcp.Root, error)
}
