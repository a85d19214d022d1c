package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/bc-dunia/mcpgo/internal/mcpsession"
	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

// serverCapabilities is a static placeholder capabilities object; a real
// deployment would compute this from what's actually registered (empty
// tools map vs. non-empty, etc.) but the wire contract only requires an
// object here, per spec.md §4.6 step 3.
var serverCapabilities = json.RawMessage(`{"tools":{},"resources":{},"prompts":{},"logging":{}}`)

// handleInitialize implements §4.6's initialize steps 1-4: validates the
// proposed protocolVersion (-32022 on a version outside the supported
// set), persists client_info/client_capabilities on the session the
// transport pre-assigned, and responds with this server's identity. The
// session remains Initializing until notifications/initialized arrives.
func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, mcp.NewValidationError("malformed initialize params: " + err.Error())
		}
	}
	negotiated, err := mcp.NegotiateVersion(req.ProtocolVersion, mcp.VersionPolicyStrict)
	if err != nil {
		return nil, err
	}

	sessionID, ok := streamtransport.SessionIDFromContext(ctx)
	if !ok {
		return nil, mcp.NewSessionError("transport did not assign a session id")
	}

	_, err = s.storage.CreateSessionWithID(ctx, sessionID, mcpsession.InitCaps{
		ProtocolVersion:    negotiated,
		ClientInfo:         &req.ClientInfo,
		ClientCapabilities: req.Capabilities,
		ServerCapabilities: serverCapabilities,
	})
	if err != nil {
		return nil, mcp.NewSessionError("failed to create session: " + err.Error())
	}

	return mcp.InitializeResult{
		ProtocolVersion: negotiated,
		Capabilities:    serverCapabilities,
		ServerInfo:      mcp.ServerInfo{Name: s.info.Name, Version: s.info.Version},
		Instructions:    s.info.Instructions,
	}, nil
}

// handlePing requires only that a session exists (Initializing or Active).
func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (s *Server) handleNotificationInitialized(ctx context.Context, params json.RawMessage) error {
	info, err := s.requireSession(ctx)
	if err != nil {
		return err
	}
	info.State = mcp.StateActive
	return s.storage.UpdateSession(ctx, info)
}

// handleNotificationCancelled implements §5: cancels the transport's
// context.CancelFunc for the named request id, unblocking any handler
// still waiting on ctx.Done(). A request that already finished, or an id
// the transport never saw, is not an error — notifications never produce
// a reply either way.
func (s *Server) handleNotificationCancelled(ctx context.Context, params json.RawMessage) error {
	var p mcp.CancelledParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil
		}
	}
	sessionID, ok := streamtransport.SessionIDFromContext(ctx)
	if !ok {
		return nil
	}
	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	if transport == nil {
		return nil
	}
	transport.CancelRequest(sessionID, p.RequestID)
	return nil
}

func (s *Server) handleNotificationListChanged(ctx context.Context, params json.RawMessage) error {
	return nil
}

type paginationParams struct {
	Cursor string    `json:"cursor,omitempty"`
	Limit  *int      `json:"limit,omitempty"`
	Meta   *mcp.Meta `json:"_meta,omitempty"`
}

func parsePagination(params json.RawMessage) (paginationParams, error) {
	var p paginationParams
	if len(params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, mcp.NewValidationError("malformed pagination params: " + err.Error())
	}
	return p, nil
}

func echoMeta(reqMeta *mcp.Meta, cursor string, hasMore bool) *mcp.Meta {
	m := mcp.NewCursorMeta(cursor, hasMore)
	if reqMeta != nil {
		extra := map[string]json.RawMessage{}
		for k, v := range reqMeta.Extra {
			extra[k] = v
		}
		if len(extra) > 0 {
			m.Extra = extra
		}
	}
	return m
}

func (s *Server) handleToolsList(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	p, err := parsePagination(params)
	if err != nil {
		return nil, err
	}
	descs, next, hasMore, err := s.tools.list(p.Cursor, p.Limit)
	if err != nil {
		return nil, err
	}
	return mcp.ToolsListResult{Tools: descs, Meta: echoMeta(p.Meta, next, hasMore)}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	var p mcp.ToolsCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed tools/call params: " + err.Error())
	}
	tool, ok := s.tools.get(p.Name)
	if !ok {
		return nil, mcp.NewToolNotFoundError(p.Name)
	}
	result, err := tool.Call(ctx, p.Arguments)
	if err != nil {
		return nil, mcp.NewToolExecutionError(p.Name, err)
	}
	if result.Meta == nil && p.Meta != nil && len(p.Meta.Extra) > 0 {
		result.Meta = &mcp.Meta{Extra: p.Meta.Extra}
	}
	return result, nil
}

func (s *Server) handleResourcesList(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	p, err := parsePagination(params)
	if err != nil {
		return nil, err
	}
	descs, next, hasMore, err := s.resources.list(p.Cursor, p.Limit)
	if err != nil {
		return nil, err
	}
	return mcp.ResourcesListResult{Resources: descs, Meta: echoMeta(p.Meta, next, hasMore)}, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	var p mcp.ResourcesReadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed resources/read params: " + err.Error())
	}
	res, ok := s.resources.get(p.URI)
	if !ok {
		return nil, mcp.NewResourceNotFoundError(p.URI)
	}
	result, err := res.Read(ctx, p.URI)
	if err != nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindResourceExecutionError, Subject: p.URI, Message: "resource read failed", Cause: err}
	}
	return result, nil
}

// handleResourcesSubscribe implements §6.2's resources/subscribe: records
// that this session wants notifications/resources/updated for uri. The
// subscription is state-only here; delivery happens wherever a resource's
// backing data changes and calls broadcaster.NotifyResourceUpdated.
func (s *Server) handleResourcesSubscribe(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	var p mcp.ResourcesSubscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed resources/subscribe params: " + err.Error())
	}
	if _, ok := s.resources.get(p.URI); !ok {
		return nil, mcp.NewResourceNotFoundError(p.URI)
	}
	sessionID, ok := streamtransport.SessionIDFromContext(ctx)
	if !ok {
		return nil, mcp.NewSessionError("transport did not assign a session id")
	}
	s.resourceSubs.subscribe(sessionID, p.URI)
	return map[string]any{}, nil
}

// handleResourcesUnsubscribe implements §6.2's resources/unsubscribe.
func (s *Server) handleResourcesUnsubscribe(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	var p mcp.ResourcesUnsubscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed resources/unsubscribe params: " + err.Error())
	}
	sessionID, ok := streamtransport.SessionIDFromContext(ctx)
	if !ok {
		return nil, mcp.NewSessionError("transport did not assign a session id")
	}
	s.resourceSubs.unsubscribe(sessionID, p.URI)
	return map[string]any{}, nil
}

func (s *Server) handleResourceTemplatesList(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	p, err := parsePagination(params)
	if err != nil {
		return nil, err
	}
	descs, next, hasMore, err := s.resourceTemplates.list(p.Cursor, p.Limit)
	if err != nil {
		return nil, err
	}
	return mcp.ResourceTemplatesListResult{ResourceTemplates: descs, Meta: echoMeta(p.Meta, next, hasMore)}, nil
}

func (s *Server) handlePromptsList(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	p, err := parsePagination(params)
	if err != nil {
		return nil, err
	}
	descs, next, hasMore, err := s.prompts.list(p.Cursor, p.Limit)
	if err != nil {
		return nil, err
	}
	return mcp.PromptsListResult{Prompts: descs, Meta: echoMeta(p.Meta, next, hasMore)}, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	var p mcp.PromptsGetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed prompts/get params: " + err.Error())
	}
	prompt, ok := s.prompts.get(p.Name)
	if !ok {
		return nil, mcp.NewPromptNotFoundError(p.Name)
	}
	result, err := prompt.Get(ctx, p.Arguments)
	if err != nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindPromptExecutionError, Subject: p.Name, Message: "prompt render failed", Cause: err}
	}
	return result, nil
}

func (s *Server) handleLoggingSetLevel(ctx context.Context, params json.RawMessage) (any, error) {
	info, err := s.requireActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	var p mcp.SetLevelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed logging/setLevel params: " + err.Error())
	}
	level, err := mcp.ParseLoggingLevel(p.Level)
	if err != nil {
		return nil, mcp.NewValidationError(err.Error())
	}
	info.LoggingLevel = level
	if err := s.storage.UpdateSession(ctx, info); err != nil {
		return nil, mcp.NewSessionError("failed to update logging level: " + err.Error())
	}
	return map[string]any{}, nil
}

func (s *Server) handleRootsList(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	if s.rootsProvider == nil {
		return mcp.RootsListResult{Roots: nil}, nil
	}
	roots, err := s.rootsProvider.ListRoots(ctx)
	if err != nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindResourceExecutionError, Message: "roots/list failed", Cause: err}
	}
	return mcp.RootsListResult{Roots: roots}, nil
}

func (s *Server) handleSamplingCreateMessage(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	if s.samplingProvider == nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindInvalidCapability, Message: "server has no sampling provider configured"}
	}
	var p mcp.CreateMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed sampling/createMessage params: " + err.Error())
	}
	result, err := s.samplingProvider.CreateMessage(ctx, p)
	if err != nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindToolExecutionError, Message: "sampling/createMessage failed", Cause: err}
	}
	return result, nil
}

func (s *Server) handleElicitationCreate(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	if s.elicitationProvider == nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindInvalidCapability, Message: "server has no elicitation provider configured"}
	}
	var p mcp.ElicitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed elicitation/create params: " + err.Error())
	}
	result, err := s.elicitationProvider.Create(ctx, p)
	if err != nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindToolExecutionError, Message: "elicitation/create failed", Cause: err}
	}
	return result, nil
}

func (s *Server) handleCompletionComplete(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := s.requireActiveSession(ctx); err != nil {
		return nil, err
	}
	if s.completionProvider == nil {
		return mcp.CompleteResult{}, nil
	}
	var p mcp.CompleteParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.NewValidationError("malformed completion/complete params: " + err.Error())
	}
	result, err := s.completionProvider.Complete(ctx, p)
	if err != nil {
		return nil, &mcp.DomainErr{Kind: mcp.KindValidationError, Message: "completion/complete failed", Cause: err}
	}
	return result, nil
}

