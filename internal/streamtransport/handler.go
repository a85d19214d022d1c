// Package streamtransport implements the server-side streamable HTTP
// transport: a single endpoint multiplexing JSON-RPC POST, SSE GET
// subscribe/resume, DELETE termination, and OPTIONS preflight, per
// spec §4.4. It is grounded jointly on the teacher's
// internal/mockserver/mockserver.go (a single net/http ServeMux, one
// /mcp route, a manual http.Flusher-based SSE loop) for the overall
// net/http-native shape, and on the reference golang.org/x/tools
// internal/mcp streamable transport for the precise per-request
// bookkeeping (Last-Event-ID parsing, the 202-Accepted-with-no-body
// shortcut) — adapted rather than copied, since event ids here are the
// session-wide monotonic ids from internal/mcpsession, not per-stream
// composite ids. CORS preflight/allowlist handling is delegated to
// github.com/go-chi/cors rather than hand-rolled, following
// JulianPedro-reflow-gateway/backend's cmd/server/main.go.
package streamtransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/bc-dunia/mcpgo/internal/broadcast"
	"github.com/bc-dunia/mcpgo/internal/jsonrpc"
	"github.com/bc-dunia/mcpgo/internal/mcpsession"
	"github.com/bc-dunia/mcpgo/mcp"
)

const methodInitialize = "initialize"

// RequestTracer starts a span covering one JSON-RPC request/response
// cycle. finish reports the handler's outcome (nil on success) and ends
// the span. A nil Handler.tracer skips instrumentation entirely, so
// SetTracer is optional.
type RequestTracer interface {
	StartRequestSpan(ctx context.Context, method, sessionID string) (context.Context, func(err error))
}

// StreamTracer starts a span covering one GET SSE connection's lifetime,
// from the moment the session and resume point are validated to the
// moment the handler returns (client disconnect, heartbeat write
// failure, or session termination).
type StreamTracer interface {
	StartStreamSpan(ctx context.Context, sessionID string) (context.Context, func())
}

// RequestMetrics records per-JSON-RPC-request latency/outcome.
type RequestMetrics interface {
	RecordRequest(ctx context.Context, method, sessionID string, latency time.Duration, success bool)
}

// Handler is the single-endpoint http.Handler implementing §4.4.
type Handler struct {
	config       *Config
	dispatcher   *jsonrpc.Dispatcher
	storage      mcpsession.SessionStorage
	broadcaster  *broadcast.Broadcaster
	newSessionID func() string

	tracer  RequestTracer
	stream  StreamTracer
	metrics RequestMetrics

	cancels sync.Map // cancelKey -> context.CancelFunc, one entry per in-flight request
}

// cancelKey identifies one in-flight request in the handler's
// cancellation table. Request ids are only unique within a session, so
// the session id disambiguates concurrent sessions reusing the same id.
type cancelKey struct {
	sessionID string
	requestID string
}

// CancelRequest cancels the in-flight request's context, per receipt of a
// notifications/cancelled message. It reports whether a matching
// in-flight request was found; a miss is not an error, since the request
// may have already completed or never existed.
func (h *Handler) CancelRequest(sessionID string, id mcp.RequestID) bool {
	key := cancelKey{sessionID: sessionID, requestID: id.String()}
	v, ok := h.cancels.LoadAndDelete(key)
	if !ok {
		return false
	}
	v.(context.CancelFunc)()
	return true
}

// SetTracer installs the span provider for JSON-RPC requests; typically
// an *otelmcp.Tracer. Must be called before the handler serves traffic.
func (h *Handler) SetTracer(t RequestTracer) { h.tracer = t }

// SetStreamTracer installs the span provider for GET SSE connections;
// typically the same *otelmcp.Tracer passed to SetTracer.
func (h *Handler) SetStreamTracer(t StreamTracer) { h.stream = t }

// SetMetrics installs the request-latency/outcome recorder; typically
// an *otelmcp.Metrics.
func (h *Handler) SetMetrics(m RequestMetrics) { h.metrics = m }

func (h *Handler) startRequestSpan(ctx context.Context, method, sessionID string) (context.Context, func(err error)) {
	if h.tracer == nil {
		return ctx, func(error) {}
	}
	return h.tracer.StartRequestSpan(ctx, method, sessionID)
}

func (h *Handler) startStreamSpan(ctx context.Context, sessionID string) (context.Context, func()) {
	if h.stream == nil {
		return ctx, func() {}
	}
	return h.stream.StartStreamSpan(ctx, sessionID)
}

func (h *Handler) recordRequestMetrics(ctx context.Context, method, sessionID string, latency time.Duration, success bool) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(ctx, method, sessionID, latency, success)
}

// NewHandler builds the transport handler. Session ids for initialize
// requests are generated by the handler itself (see generateSessionID)
// and passed down in the request context.
func NewHandler(dispatcher *jsonrpc.Dispatcher, storage mcpsession.SessionStorage, broadcaster *broadcast.Broadcaster, config *Config) *Handler {
	return &Handler{
		config:      config.withDefaults(),
		dispatcher:  dispatcher,
		storage:     storage,
		broadcaster: broadcaster,
	}
}

// ServeHTTP wraps the method dispatch in a go-chi/cors middleware built
// fresh from the current config on every call, since CORS.AllowedOrigins
// may be reconfigured at runtime (e.g. by an operator's config reload)
// and the origin allowlist must always reflect the latest value.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.corsMiddleware().Handler(http.HandlerFunc(h.route)).ServeHTTP(w, r)
}

func (h *Handler) corsMiddleware() *cors.Cors {
	allowCredentials := h.config.CORS.AllowCredentials
	for _, origin := range h.config.CORS.AllowedOrigins {
		if origin == "*" {
			allowCredentials = false
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins:     h.config.CORS.AllowedOrigins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     []string{HeaderSessionID, HeaderProtocolVersion, HeaderLastEventID, "Content-Type", "Accept"},
		ExposedHeaders:     []string{HeaderSessionID},
		AllowCredentials:   allowCredentials,
		MaxAge:             int(h.config.CORS.MaxAge.Seconds()),
		OptionsPassthrough: true,
	})
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		h.handleOptions(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.RequestTimeout)
	defer cancel()

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxRequestBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	messages, isBatch, parseErr := jsonrpc.ParseBody(body)
	if parseErr != nil {
		code := mcp.CodeParseError
		if errors.Is(parseErr, jsonrpc.ErrEmptyBatch) {
			code = mcp.CodeInvalidRequest
		}
		h.writeSingleError(w, mcp.NewRequestID(nil), code, parseErr.Error())
		return
	}

	isInitialize := len(messages) == 1 && !messages[0].IsNotification() && messages[0].Method == methodInitialize

	sessionID := r.Header.Get(HeaderSessionID)
	if isInitialize {
		sessionID = h.generateSessionID()
		ctx = WithSessionID(ctx, sessionID)
	} else {
		if sessionID == "" {
			h.writeSingleError(w, mcp.NewRequestID(nil), mcp.CodeSessionError, "missing Mcp-Session-Id header")
			return
		}
		if _, ok, err := h.storage.GetSession(ctx, sessionID); err != nil || !ok {
			h.writeSingleError(w, mcp.NewRequestID(nil), mcp.CodeSessionError, "unknown session")
			return
		}
		ctx = WithSessionID(ctx, sessionID)
	}

	if v := r.Header.Get(HeaderProtocolVersion); v != "" {
		if _, err := mcp.NegotiateVersion(v, mcp.VersionPolicyStrict); err != nil {
			h.writeSingleError(w, mcp.NewRequestID(nil), mcp.CodeVersionMismatch, err.Error())
			return
		}
	}

	var responses []*mcp.Response
	for _, msg := range messages {
		if msg.IsNotification() {
			if err := h.dispatcher.HandleNotification(ctx, &mcp.Notification{JSONRPC: msg.JSONRPC, Method: msg.Method, Params: msg.Params}); err != nil {
				slog.Error("notification_handler_failed", "method", msg.Method, "error", err)
			}
			continue
		}
		id := mcp.RequestID{}
		if msg.ID != nil {
			id = *msg.ID
		}
		reqCtx, finishSpan := h.startRequestSpan(ctx, msg.Method, sessionID)
		reqCtx, cancel := context.WithCancel(reqCtx)
		key := cancelKey{sessionID: sessionID, requestID: id.String()}
		h.cancels.Store(key, cancel)
		start := time.Now()
		resp := h.dispatcher.HandleRequest(reqCtx, &mcp.Request{JSONRPC: msg.JSONRPC, ID: id, Method: msg.Method, Params: msg.Params})
		h.cancels.Delete(key)
		cancel()
		var respErr error
		if resp.Error != nil {
			respErr = errors.New(resp.Error.Message)
		}
		finishSpan(respErr)
		h.recordRequestMetrics(reqCtx, msg.Method, sessionID, time.Since(start), respErr == nil)
		responses = append(responses, resp)
	}

	w.Header().Set(HeaderSessionID, sessionID)

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if acceptsSSE(r) {
		h.writeSSEResponse(w, responses, isBatch)
		return
	}
	h.writeJSONResponse(w, responses, isBatch)
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, responses []*mcp.Response, isBatch bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if isBatch {
		json.NewEncoder(w).Encode(responses)
		return
	}
	json.NewEncoder(w).Encode(responses[0])
}

func (h *Handler) writeSSEResponse(w http.ResponseWriter, responses []*mcp.Response, isBatch bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if isBatch {
		data, _ := json.Marshal(responses)
		writeSSEEvent(w, mcp.SseEvent{EventType: mcp.EventTypeMessage, Data: data})
	} else {
		data, _ := json.Marshal(responses[0])
		writeSSEEvent(w, mcp.SseEvent{EventType: mcp.EventTypeMessage, Data: data})
	}
	flush(w)
}

func (h *Handler) writeSingleError(w http.ResponseWriter, id mcp.RequestID, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := mcp.NewErrorResponse(id, code, message, nil)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) generateSessionID() string {
	if h.newSessionID != nil {
		return h.newSessionID()
	}
	return uuid.Must(uuid.NewV7()).String()
}

func acceptsSSE(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// handleDelete terminates a session, per §4.4.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.storage.DeleteSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, mcpsession.ErrSessionNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGet opens or resumes an SSE stream for a session, per §4.4. A
// Last-Event-ID header requests replay from storage before the stream
// attaches live; if the oldest retained event is already newer than the
// requested id, the gap is unreplayable and, since this check always
// happens before any byte is written, the handler answers 409 Conflict
// rather than setting mcp-resume-lossy and streaming a partial replay.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	info, ok, err := h.storage.GetSession(ctx, sessionID)
	if err != nil || !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if info.State == mcp.StateTerminated {
		w.WriteHeader(http.StatusGone)
		return
	}

	var afterID uint64
	resuming := false
	if raw := r.Header.Get(HeaderLastEventID); raw != "" {
		parsed, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		afterID = parsed
		resuming = true
	}

	if resuming {
		if retainer, ok := h.storage.(mcpsession.OldestRetainedEventIDer); ok {
			oldest, hasEvents, err := retainer.OldestRetainedEventID(ctx, sessionID)
			if err == nil && hasEvents && oldest > afterID+1 {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
	}

	replay, err := h.storage.GetEventsAfter(ctx, sessionID, afterID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ctx, finishStream := h.startStreamSpan(ctx, sessionID)
	defer finishStream()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(HeaderSessionID, sessionID)
	w.WriteHeader(http.StatusOK)

	for _, ev := range replay {
		if !writeSSEEvent(w, ev) {
			return
		}
	}
	flush(w)

	sub := h.broadcaster.Subscribe(sessionID)
	defer sub.Close()

	heartbeat := time.NewTicker(h.config.HeartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(h.config.SessionPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Notify():
			for _, ev := range sub.Events() {
				if !writeSSEEvent(w, ev) {
					return
				}
			}
			flush(w)
		case <-heartbeat.C:
			if !writeSSEEvent(w, mcp.SseEvent{EventType: mcp.EventTypeHeartbeat, Data: []byte("{}")}) {
				return
			}
			flush(w)
		case <-poll.C:
			info, ok, err := h.storage.GetSession(ctx, sessionID)
			if err != nil || !ok || info.State == mcp.StateTerminated {
				return
			}
		}
	}
}
