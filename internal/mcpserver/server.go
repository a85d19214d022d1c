// Package mcpserver assembles the handler registry and HTTP server: it
// wires the standard MCP methods/notifications onto a jsonrpc.Dispatcher,
// owns the tool/resource/prompt registries, and wraps a
// streamtransport.Handler behind an *http.Server, grounded on
// internal/controlplane/api/server.go's builder shape (swappable
// collaborator fields set via SetXxx under a mutex, NewServer(...),
// Start()/Shutdown(ctx) around an *http.Server).
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bc-dunia/mcpgo/internal/broadcast"
	"github.com/bc-dunia/mcpgo/internal/jsonrpc"
	"github.com/bc-dunia/mcpgo/internal/mcpsession"
	"github.com/bc-dunia/mcpgo/internal/otelmcp"
	"github.com/bc-dunia/mcpgo/internal/streamtransport"
	"github.com/bc-dunia/mcpgo/mcp"
)

// Info is this server's identity, returned in every initialize response.
type Info struct {
	Name         string
	Version      string
	Instructions string
}

// Server is the handler-registry-plus-transport builder. Construct with
// NewServer, configure with the SetXxx methods and RegisterXxx methods,
// then call Start.
type Server struct {
	mu sync.Mutex

	info Info
	addr string

	storage     mcpsession.SessionStorage
	broadcaster *broadcast.Broadcaster
	sessionMgr  *mcpsession.Manager
	dispatcher  *jsonrpc.Dispatcher
	transport   *streamtransport.Handler

	tools             *toolRegistry
	resources         *resourceRegistry
	resourceTemplates *resourceTemplateRegistry
	prompts           *promptRegistry
	resourceSubs      *resourceSubscriptions

	samplingProvider    SamplingProvider
	elicitationProvider ElicitationProvider
	completionProvider  CompletionProvider
	rootsProvider       RootsProvider

	transportConfig *streamtransport.Config
	sessionConfig   *mcpsession.Config

	tracer  *otelmcp.Tracer
	metrics *otelmcp.Metrics

	middleware func(http.Handler) http.Handler

	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// NewServer builds a Server identified by info, listening on addr once
// Start is called.
func NewServer(addr string, info Info) *Server {
	return &Server{
		addr:              addr,
		info:              info,
		storage:           mcpsession.NewMemoryStore(),
		tools:             newToolRegistry(),
		resources:         newResourceRegistry(),
		resourceTemplates: newResourceTemplateRegistry(),
		prompts:           newPromptRegistry(),
		resourceSubs:      newResourceSubscriptions(),
	}
}

// SetSessionStorage overrides the default in-memory SessionStorage with a
// pluggable implementation (e.g. a Redis-backed one), per spec.md §4.3's
// "pluggable storage" requirement. Must be called before Start.
func (s *Server) SetSessionStorage(storage mcpsession.SessionStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage = storage
}

// SetSessionConfig sets the TTL and sweep interval of the expiry sweep
// that Start runs. MaxSessions and MaxEventsPerSession are not applied
// to the session storage: the default MemoryStore keeps DefaultConfig's
// limits, and a store built with mcpsession.NewMemoryStoreWithConfig
// takes effect only once installed with SetSessionStorage.
func (s *Server) SetSessionConfig(config *mcpsession.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionConfig = config
}

// SetTransportConfig configures the streamable HTTP transport's resource
// limits and CORS policy.
func (s *Server) SetTransportConfig(config *streamtransport.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transportConfig = config
}

// SetTelemetry installs the tracer/metrics pair instrumenting every
// JSON-RPC request, GET SSE stream, and broadcaster fan-out. Either may
// be nil to skip that half of instrumentation; omit this call entirely
// to run with no telemetry at all. Must be called before Start.
func (s *Server) SetTelemetry(tracer *otelmcp.Tracer, metrics *otelmcp.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracer = tracer
	s.metrics = metrics
}

// SetMiddleware installs mw in front of the /mcp endpoint, e.g. a
// mcpauth.Middleware's Handler method for optional bearer-JWT
// enforcement. A nil mw (the default) leaves the endpoint unguarded.
// Must be called before Start.
func (s *Server) SetMiddleware(mw func(http.Handler) http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = mw
}

// SetSamplingProvider registers the collaborator sampling/createMessage
// delegates to.
func (s *Server) SetSamplingProvider(p SamplingProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplingProvider = p
}

// SetElicitationProvider registers the collaborator elicitation/create
// delegates to.
func (s *Server) SetElicitationProvider(p ElicitationProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elicitationProvider = p
}

// SetCompletionProvider registers the collaborator completion/complete
// delegates to.
func (s *Server) SetCompletionProvider(p CompletionProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completionProvider = p
}

// SetRootsProvider registers the collaborator roots/list delegates to.
func (s *Server) SetRootsProvider(p RootsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootsProvider = p
}

// RegisterTool adds t to the tools/list and tools/call registries.
func (s *Server) RegisterTool(t mcp.Tool) { s.tools.register(t) }

// RegisterResource adds r to the resources/list and resources/read registries.
func (s *Server) RegisterResource(r mcp.Resource) { s.resources.register(r) }

// RegisterResourceTemplate adds t to the resources/templates/list registry.
func (s *Server) RegisterResourceTemplate(t mcp.ResourceTemplateDefinition) {
	s.resourceTemplates.register(t)
}

// RegisterPrompt adds p to the prompts/list and prompts/get registries.
func (s *Server) RegisterPrompt(p mcp.Prompt) { s.prompts.register(p) }

// buildDispatcher wires every standard method/notification handler onto a
// fresh dispatcher, per §4.6's "wired by default" method list.
func (s *Server) buildDispatcher() *jsonrpc.Dispatcher {
	d := jsonrpc.New()

	d.Register("initialize", s.handleInitialize)
	d.Register("ping", s.handlePing)
	d.Register("tools/list", s.handleToolsList)
	d.Register("tools/call", s.handleToolsCall)
	d.Register("resources/list", s.handleResourcesList)
	d.Register("resources/read", s.handleResourcesRead)
	d.Register("resources/templates/list", s.handleResourceTemplatesList)
	d.Register("resources/subscribe", s.handleResourcesSubscribe)
	d.Register("resources/unsubscribe", s.handleResourcesUnsubscribe)
	d.Register("prompts/list", s.handlePromptsList)
	d.Register("prompts/get", s.handlePromptsGet)
	d.Register("logging/setLevel", s.handleLoggingSetLevel)
	d.Register("roots/list", s.handleRootsList)
	d.Register("sampling/createMessage", s.handleSamplingCreateMessage)
	d.Register("elicitation/create", s.handleElicitationCreate)
	d.Register("completion/complete", s.handleCompletionComplete)

	d.RegisterNotification("notifications/initialized", s.handleNotificationInitialized)
	d.RegisterNotification("notifications/cancelled", s.handleNotificationCancelled)
	d.RegisterNotification("notifications/progress", s.handleNotificationListChanged)
	d.RegisterNotification("notifications/tools/list_changed", s.handleNotificationListChanged)
	d.RegisterNotification("notifications/resources/list_changed", s.handleNotificationListChanged)
	d.RegisterNotification("notifications/prompts/list_changed", s.handleNotificationListChanged)

	return d
}

// Start assembles the dispatcher, transport, broadcaster, and session
// manager, then begins serving HTTP on s.addr.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("mcpserver: already running")
	}

	s.dispatcher = s.buildDispatcher()
	s.broadcaster = broadcast.New(s.storage, nil)
	s.sessionMgr = mcpsession.NewManager(s.sessionConfig, s.storage, s.notifyExpired)
	s.sessionMgr.Start()
	s.transport = streamtransport.NewHandler(s.dispatcher, s.storage, s.broadcaster, s.transportConfig)
	if s.tracer != nil {
		s.transport.SetTracer(s.tracer)
		s.transport.SetStreamTracer(s.tracer)
	}
	if s.metrics != nil {
		s.transport.SetMetrics(s.metrics)
		s.broadcaster.SetMetrics(s.metrics)
	}

	mux := http.NewServeMux()
	path := streamtransport.DefaultPath
	if s.transportConfig != nil && s.transportConfig.Path != "" {
		path = s.transportConfig.Path
	}
	var endpoint http.Handler = s.transport
	if s.middleware != nil {
		endpoint = s.middleware(endpoint)
	}
	mux.Handle(path, endpoint)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.sessionMgr.Stop()
		return fmt.Errorf("mcpserver: listen: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("mcpserver_serve_failed", "error", err)
		}
	}()

	return nil
}

// Shutdown stops accepting new connections, drains in-flight requests up
// to ctx's deadline, and stops the session sweep goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	mgr := s.sessionMgr
	s.httpServer = nil
	s.mu.Unlock()

	if mgr != nil {
		mgr.Stop()
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound listener address; only valid after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) notifyExpired(ctx context.Context, expiredIDs []string) {
	for _, id := range expiredIDs {
		s.resourceSubs.removeSession(id)
		slog.Info("mcp_session_expired", "session_id", id)
	}
}
