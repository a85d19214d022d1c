package broadcast

import (
	"context"
	"fmt"

	"github.com/bc-dunia/mcpgo/mcp"
)

// MCP notification method names, per spec.md §3/§4.5.
const (
	MethodProgress            = "notifications/progress"
	MethodMessage             = "notifications/message"
	MethodResourceUpdated     = "notifications/resources/updated"
	MethodResourceListChanged = "notifications/resources/list_changed"
	MethodToolListChanged     = "notifications/tools/list_changed"
	MethodPromptListChanged   = "notifications/prompts/list_changed"
	MethodCancelled           = "notifications/cancelled"
)

// NotifyProgress sends a notifications/progress update for the given
// progress token.
func (b *Broadcaster) NotifyProgress(ctx context.Context, sessionID, progressToken string, progress float64, total *float64, message string) (int, error) {
	return b.SendNotification(ctx, sessionID, MethodProgress, mcp.ProgressParams{
		ProgressToken: progressToken,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}

// NotifyLogMessage sends a notifications/message log entry, but only if
// level passes the session's current logging/setLevel filter — per
// §4.3, "notify_log(level, …) filters by level.priority() >=
// session.logging_level.priority() before handing off to the
// broadcaster." A session that cannot be resolved is treated as
// filterable-out rather than erroring the caller.
func (b *Broadcaster) NotifyLogMessage(ctx context.Context, sessionID string, level mcp.LoggingLevel, logger string, data []byte) (int, error) {
	info, ok, err := b.storage.GetSession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("broadcast: resolve session %s for log filter: %w", sessionID, err)
	}
	if !ok || !mcp.ShouldDeliver(level, info.LoggingLevel) {
		return 0, nil
	}

	return b.SendNotification(ctx, sessionID, MethodMessage, mcp.LogMessageParams{
		Level:  level.String(),
		Logger: logger,
		Data:   data,
	})
}

// NotifyResourceUpdated sends notifications/resources/updated for uri.
func (b *Broadcaster) NotifyResourceUpdated(ctx context.Context, sessionID, uri string) (int, error) {
	return b.SendNotification(ctx, sessionID, MethodResourceUpdated, mcp.ResourceUpdatedParams{URI: uri})
}

// NotifyResourceListChanged sends notifications/resources/list_changed.
func (b *Broadcaster) NotifyResourceListChanged(ctx context.Context, sessionID string) (int, error) {
	return b.SendNotification(ctx, sessionID, MethodResourceListChanged, struct{}{})
}

// NotifyToolListChanged sends notifications/tools/list_changed.
func (b *Broadcaster) NotifyToolListChanged(ctx context.Context, sessionID string) (int, error) {
	return b.SendNotification(ctx, sessionID, MethodToolListChanged, struct{}{})
}

// NotifyPromptListChanged sends notifications/prompts/list_changed.
func (b *Broadcaster) NotifyPromptListChanged(ctx context.Context, sessionID string) (int, error) {
	return b.SendNotification(ctx, sessionID, MethodPromptListChanged, struct{}{})
}

// NotifyCancelled sends notifications/cancelled for an in-flight request.
func (b *Broadcaster) NotifyCancelled(ctx context.Context, sessionID string, requestID mcp.RequestID, reason string) (int, error) {
	return b.SendNotification(ctx, sessionID, MethodCancelled, mcp.CancelledParams{
		RequestID: requestID,
		Reason:    reason,
	})
}
