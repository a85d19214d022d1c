package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

// State is a Connection's client-side lifecycle state, per §4.7: a
// client mirrors the server's Initializing/Active split and adds the
// transport-level states a server session never needs (Reconnecting
// while the live SSE subscribe is re-established, Error after a failed
// Initialize or SendInitialized).
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateActive        State = "active"
	StateReconnecting  State = "reconnecting"
	StateTerminated    State = "terminated"
	StateError         State = "error"
)

// Connection is the client-side mirror of one MCP session, grounded
// directly on the teacher's StreamableHTTPConnection: the same
// sync.RWMutex-guarded sessionID/lastEventID fields, the same
// doRequest/doNotification split, and the same atomic closed guard on
// Close.
type Connection struct {
	client     *http.Client
	transport  *http.Transport
	config     *Config
	sseHandler *sseResponseHandler

	mu              sync.RWMutex
	sessionID       string
	lastEventID     string
	state           State
	protocolVersion string

	requestCount int64
	closed       int32
}

// Dial builds a Connection against config.Endpoint. It performs no I/O
// itself; call Initialize to actually start the session.
func Dial(config *Config) (*Connection, error) {
	cfg := config.withDefaults()

	dialer := newSafeDialer(cfg.Timeouts.ConnectTimeout, cfg.AllowPrivateNetworks)
	transport := &http.Transport{
		DialContext:           dialer.dialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeouts.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if tlsConfig := buildTLSConfig(cfg); tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: buildCheckRedirect(cfg),
	}

	return &Connection{
		client:     client,
		transport:  transport,
		config:     cfg,
		sseHandler: &sseResponseHandler{stallTimeout: cfg.Timeouts.StreamStallTimeout},
		state:      StateUninitialized,
	}, nil
}

// dialContext resolves address and refuses to connect to a blocked IP,
// mirroring internal/transport/streamable_http.go's safeDialer.DialContext.
func (d *safeDialer) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: invalid address: %w", err)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: DNS lookup failed: %w", err)
	}
	for _, ip := range ips {
		if d.isIPBlocked(ip) {
			return nil, fmt.Errorf("mcpclient: connection to blocked IP address %s is not allowed", ip.String())
		}
	}
	return d.dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

func buildCheckRedirect(cfg *Config) func(req *http.Request, via []*http.Request) error {
	policy := cfg.RedirectPolicy
	if policy == nil || policy.Mode == "" || policy.Mode == "deny" {
		return func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	maxRedirects := policy.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 0
	}
	if maxRedirects > 3 {
		maxRedirects = 3
	}
	originalHostname := parseHostname(cfg.Endpoint)

	return func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return http.ErrUseLastResponse
		}
		redirectHostname := parseHostname(req.URL.String())
		switch policy.Mode {
		case "same_origin":
			if redirectHostname != originalHostname {
				return http.ErrUseLastResponse
			}
			return nil
		case "allowlist_only":
			for _, allowed := range policy.Allowlist {
				if redirectHostname == allowed {
					return nil
				}
			}
			return http.ErrUseLastResponse
		default:
			return http.ErrUseLastResponse
		}
	}
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Connection) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Connection) setLastEventID(id string) {
	c.mu.Lock()
	c.lastEventID = id
	c.mu.Unlock()
}

func (c *Connection) nextRequestID() mcp.RequestID {
	n := atomic.AddInt64(&c.requestCount, 1)
	return mcp.NewRequestID(fmt.Sprintf("req_%d", n))
}

// Close idempotently terminates the session (best-effort DELETE) and
// releases transport resources.
func (c *Connection) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	sessionID := c.SessionID()
	if sessionID != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.Endpoint, nil)
		if err == nil {
			c.setHeaders(req, false)
			if resp, err := c.client.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	c.setState(StateTerminated)
	c.transport.CloseIdleConnections()
	return nil
}

func (c *Connection) setHeaders(req *http.Request, includeLastEventID bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	c.mu.RLock()
	sessionID := c.sessionID
	lastEventID := c.lastEventID
	version := c.protocolVersion
	c.mu.RUnlock()

	if sessionID != "" {
		req.Header.Set(streamtransport.HeaderSessionID, sessionID)
	}
	if version != "" {
		req.Header.Set(streamtransport.HeaderProtocolVersion, version)
	}
	if includeLastEventID && lastEventID != "" {
		req.Header.Set(streamtransport.HeaderLastEventID, lastEventID)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
}

// doRequest sends one JSON-RPC request and waits for its matching
// reply, whether the server answers with a plain JSON body or an
// SSE-framed one.
func (c *Connection) doRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeouts.RequestTimeout)
	defer cancel()

	id := c.nextRequestID()
	var raw json.RawMessage
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return nil, MapProtocolError(fmt.Sprintf("marshal request params: %v", err))
		}
	}
	reqBody, err := json.Marshal(&mcp.Request{JSONRPC: mcp.Version, ID: id, Method: method, Params: raw})
	if err != nil {
		return nil, MapProtocolError(fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, MapError(err)
	}
	c.setHeaders(httpReq, false)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, MapError(err)
	}
	defer resp.Body.Close()

	if sessionID := resp.Header.Get(streamtransport.HeaderSessionID); sessionID != "" {
		c.setSessionID(sessionID)
	}

	if httpErr := MapHTTPStatus(resp.StatusCode, ""); httpErr != nil {
		return nil, httpErr
	}

	contentType := resp.Header.Get("Content-Type")
	var jrResp *mcp.Response
	if isSSEContentType(contentType) {
		jrResp, err = c.sseHandler.handleStream(ctx, resp.Body, id)
		if err != nil {
			return nil, err
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 100<<20))
		if err != nil {
			return nil, MapError(err)
		}
		var decoded mcp.Response
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, MapProtocolError(fmt.Sprintf("parse JSON-RPC response: %v", err))
		}
		jrResp = &decoded
	}

	if !jrResp.ID.Equal(id) {
		return nil, MapProtocolError(fmt.Sprintf("response id %s does not match request id %s", jrResp.ID.String(), id.String()))
	}
	if jrResp.Error != nil {
		return nil, MapJSONRPCError(jrResp.Error.Code, jrResp.Error.Message, jrResp.Error.Data)
	}
	return jrResp.Result, nil
}

// doNotification sends a fire-and-forget JSON-RPC notification.
func (c *Connection) doNotification(ctx context.Context, method string, params any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeouts.RequestTimeout)
	defer cancel()

	var raw json.RawMessage
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return MapProtocolError(fmt.Sprintf("marshal notification params: %v", err))
		}
	}
	body, err := json.Marshal(&mcp.Notification{JSONRPC: mcp.Version, Method: method, Params: raw})
	if err != nil {
		return MapProtocolError(fmt.Sprintf("marshal notification: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return MapError(err)
	}
	c.setHeaders(httpReq, false)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return MapError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		return MapHTTPStatus(resp.StatusCode, "")
	}
}

func isSSEContentType(contentType string) bool {
	return len(contentType) >= len("text/event-stream") && contentType[:len("text/event-stream")] == "text/event-stream"
}

// --- High-level MCP operations, grounded on the teacher's per-method
// wrapper shape (Initialize, SendInitialized, ToolsList, ToolsCall,
// Ping, ResourcesList, ResourcesRead, PromptsList, PromptsGet).

// Initialize sends the initialize request and transitions
// Uninitialized -> Initializing on success.
func (c *Connection) Initialize(ctx context.Context, clientInfo mcp.ClientInfo, protocolVersion string) (*mcp.InitializeResult, error) {
	if protocolVersion == "" {
		protocolVersion = mcp.DefaultProtocolVersion
	}
	raw, err := c.doRequest(ctx, "initialize", mcp.InitializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      clientInfo,
	})
	if err != nil {
		c.setState(StateError)
		return nil, err
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.setState(StateError)
		return nil, MapProtocolError(fmt.Sprintf("parse initialize result: %v", err))
	}
	c.mu.Lock()
	c.protocolVersion = result.ProtocolVersion
	c.mu.Unlock()
	c.setState(StateInitializing)
	return &result, nil
}

// SendInitialized sends notifications/initialized, completing the
// handshake; transitions Initializing -> Active.
func (c *Connection) SendInitialized(ctx context.Context) error {
	if err := c.doNotification(ctx, "notifications/initialized", struct{}{}); err != nil {
		c.setState(StateError)
		return err
	}
	c.setState(StateActive)
	return nil
}

// Ping issues a liveness check. It makes no client-side state check;
// before Initialize has established a session the server rejects it.
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, "ping", struct{}{})
	return err
}

func (c *Connection) requireActive() error {
	if c.State() != StateActive {
		return &ClientError{Category: CategorySession, Message: "connection is not active"}
	}
	return nil
}

// ToolsList lists registered tools, paginated by cursor (pass "" for
// the first page).
func (c *Connection) ToolsList(ctx context.Context, cursor string) (*mcp.ToolsListResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	params := map[string]any{}
	if cursor != "" {
		params["cursor"] = cursor
	}
	raw, err := c.doRequest(ctx, "tools/list", params)
	if err != nil {
		return nil, err
	}
	var result mcp.ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse tools/list result: %v", err))
	}
	return &result, nil
}

// ToolsCall invokes a registered tool by name.
func (c *Connection) ToolsCall(ctx context.Context, name string, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	raw, err := c.doRequest(ctx, "tools/call", mcp.ToolsCallParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse tools/call result: %v", err))
	}
	return &result, nil
}

// ResourcesList lists registered resources, paginated by cursor.
func (c *Connection) ResourcesList(ctx context.Context, cursor string) (*mcp.ResourcesListResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	params := map[string]any{}
	if cursor != "" {
		params["cursor"] = cursor
	}
	raw, err := c.doRequest(ctx, "resources/list", params)
	if err != nil {
		return nil, err
	}
	var result mcp.ResourcesListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse resources/list result: %v", err))
	}
	return &result, nil
}

// ResourcesRead reads one resource by URI.
func (c *Connection) ResourcesRead(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	raw, err := c.doRequest(ctx, "resources/read", mcp.ResourcesReadParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var result mcp.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse resources/read result: %v", err))
	}
	return &result, nil
}

// ResourceTemplatesList lists registered resource templates.
func (c *Connection) ResourceTemplatesList(ctx context.Context, cursor string) (*mcp.ResourceTemplatesListResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	params := map[string]any{}
	if cursor != "" {
		params["cursor"] = cursor
	}
	raw, err := c.doRequest(ctx, "resources/templates/list", params)
	if err != nil {
		return nil, err
	}
	var result mcp.ResourceTemplatesListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse resources/templates/list result: %v", err))
	}
	return &result, nil
}

// PromptsList lists registered prompts.
func (c *Connection) PromptsList(ctx context.Context, cursor string) (*mcp.PromptsListResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	params := map[string]any{}
	if cursor != "" {
		params["cursor"] = cursor
	}
	raw, err := c.doRequest(ctx, "prompts/list", params)
	if err != nil {
		return nil, err
	}
	var result mcp.PromptsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse prompts/list result: %v", err))
	}
	return &result, nil
}

// PromptsGet renders a prompt by name.
func (c *Connection) PromptsGet(ctx context.Context, name string, arguments json.RawMessage) (*mcp.GetPromptResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	raw, err := c.doRequest(ctx, "prompts/get", mcp.PromptsGetParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	var result mcp.GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse prompts/get result: %v", err))
	}
	return &result, nil
}

// LoggingSetLevel adjusts the minimum severity the server will forward
// as notifications/message to this session.
func (c *Connection) LoggingSetLevel(ctx context.Context, level mcp.LoggingLevel) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	_, err := c.doRequest(ctx, "logging/setLevel", mcp.SetLevelParams{Level: level.String()})
	return err
}

// CompletionComplete requests argument-completion suggestions.
func (c *Connection) CompletionComplete(ctx context.Context, ref mcp.CompletionRef, arg mcp.CompletionArgument) (*mcp.CompleteResult, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	raw, err := c.doRequest(ctx, "completion/complete", mcp.CompleteParams{Ref: ref, Argument: arg})
	if err != nil {
		return nil, err
	}
	var result mcp.CompleteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, MapProtocolError(fmt.Sprintf("parse completion/complete result: %v", err))
	}
	return &result, nil
}
