package mcpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// ErrorCategory is the stable category of a client-observed failure,
// mirroring the teacher's ErrorType/ErrorCode split collapsed into one
// enum since the client mirror has no telemetry pipeline to key on the
// finer-grained code.
type ErrorCategory string

const (
	CategoryDNS         ErrorCategory = "dns_error"
	CategoryConnect     ErrorCategory = "connect_error"
	CategoryTLS         ErrorCategory = "tls_error"
	CategoryTimeout     ErrorCategory = "timeout"
	CategoryHTTP        ErrorCategory = "http_error"
	CategoryRateLimited ErrorCategory = "rate_limited"
	CategoryProtocol    ErrorCategory = "protocol_error"
	CategoryJSONRPC     ErrorCategory = "jsonrpc_error"
	CategoryMCP         ErrorCategory = "mcp_error"
	CategorySession     ErrorCategory = "session_error"
	CategoryUnknown     ErrorCategory = "unknown"
	CategoryCancelled   ErrorCategory = "cancelled"
	CategoryStreamStall ErrorCategory = "stream_stall"
)

// ClientError is the error type every Connection method returns on
// failure, grounded on the teacher's OperationError.
type ClientError struct {
	Category   ErrorCategory
	Message    string
	HTTPStatus int
	Details    map[string]any
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error { return e.Cause }

// MapError classifies a transport-level Go error (DNS/net/TLS/context)
// into a ClientError, mirroring internal/transport/error_mapping.go's
// MapError almost verbatim.
func MapError(err error) *ClientError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ClientError); ok {
		return ce
	}

	if errors.Is(err, context.Canceled) {
		return &ClientError{Category: CategoryCancelled, Message: "operation cancelled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Category: CategoryTimeout, Message: "request timeout exceeded", Cause: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ClientError{
			Category: CategoryDNS,
			Message:  fmt.Sprintf("DNS lookup failed for %s: %s", dnsErr.Name, dnsErr.Err),
			Details:  map[string]any{"host": dnsErr.Name, "is_timeout": dnsErr.IsTimeout},
			Cause:    err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return mapNetOpError(opErr)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &ClientError{Category: CategoryTimeout, Message: fmt.Sprintf("request timeout: %s", urlErr.Op), Cause: err}
		}
		return MapError(urlErr.Err)
	}

	var tlsRecordErr *tls.RecordHeaderError
	if errors.As(err, &tlsRecordErr) {
		return &ClientError{Category: CategoryTLS, Message: "TLS record header error", Cause: err}
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return &ClientError{Category: CategoryTLS, Message: fmt.Sprintf("certificate verification failed: %v", certErr.Err), Cause: err}
	}
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthErr) {
		return &ClientError{Category: CategoryTLS, Message: "certificate signed by unknown authority", Cause: err}
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return &ClientError{Category: CategoryTLS, Message: fmt.Sprintf("certificate hostname mismatch: %s", hostErr.Host), Cause: err}
	}

	if strings.Contains(err.Error(), "tls:") {
		return &ClientError{Category: CategoryTLS, Message: err.Error(), Cause: err}
	}

	return &ClientError{Category: CategoryUnknown, Message: err.Error(), Cause: err}
}

func mapNetOpError(err *net.OpError) *ClientError {
	if err.Timeout() {
		return &ClientError{Category: CategoryTimeout, Message: fmt.Sprintf("%s timeout", err.Op), Cause: err}
	}
	if err.Op == "dial" {
		return mapDialError(err)
	}
	return &ClientError{Category: CategoryConnect, Message: err.Error(), Cause: err}
}

func mapDialError(err *net.OpError) *ClientError {
	if err.Err != nil {
		var errno syscall.Errno
		if errors.As(err.Err, &errno) {
			switch errno {
			case syscall.ECONNREFUSED:
				return &ClientError{Category: CategoryConnect, Message: fmt.Sprintf("connection refused to %s", err.Addr), Cause: err}
			case syscall.ECONNRESET:
				return &ClientError{Category: CategoryConnect, Message: "connection reset by peer", Cause: err}
			case syscall.ENETUNREACH:
				return &ClientError{Category: CategoryConnect, Message: "network is unreachable", Cause: err}
			case syscall.ETIMEDOUT:
				return &ClientError{Category: CategoryTimeout, Message: "connection timed out", Cause: err}
			}
		}
		if strings.Contains(err.Err.Error(), "connection refused") {
			return &ClientError{Category: CategoryConnect, Message: fmt.Sprintf("connection refused to %s", err.Addr), Cause: err}
		}
	}
	return &ClientError{Category: CategoryConnect, Message: err.Error(), Cause: err}
}

// MapHTTPStatus classifies an HTTP response status into a ClientError,
// generalized from the teacher's MapHTTPStatusWithBody to also cover
// the streamable HTTP transport's own rejection codes: 404 (unknown
// session), 405 (GET without an SSE Accept header), 409 (Last-Event-ID
// resume past the retained window), 413 (body too large), and 415
// (non-JSON Content-Type) — none of which the teacher's client ever
// had to interpret since its mock server never emitted them.
func MapHTTPStatus(status int, body string) *ClientError {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := func(base string) string {
		if body != "" {
			return fmt.Sprintf("%s: %s", base, body)
		}
		return base
	}
	switch status {
	case http.StatusBadRequest:
		return &ClientError{Category: CategoryHTTP, Message: msg("bad request"), HTTPStatus: status}
	case http.StatusUnauthorized:
		return &ClientError{Category: CategoryHTTP, Message: msg("unauthorized"), HTTPStatus: status}
	case http.StatusForbidden:
		return &ClientError{Category: CategoryHTTP, Message: msg("forbidden"), HTTPStatus: status}
	case http.StatusNotFound:
		return &ClientError{Category: CategorySession, Message: msg("session not found"), HTTPStatus: status}
	case http.StatusMethodNotAllowed:
		return &ClientError{Category: CategoryHTTP, Message: msg("method not allowed"), HTTPStatus: status}
	case http.StatusConflict:
		return &ClientError{Category: CategorySession, Message: msg("resume point no longer retained"), HTTPStatus: status}
	case http.StatusGone:
		return &ClientError{Category: CategorySession, Message: msg("session terminated"), HTTPStatus: status}
	case http.StatusRequestEntityTooLarge:
		return &ClientError{Category: CategoryHTTP, Message: msg("request body too large"), HTTPStatus: status}
	case http.StatusUnsupportedMediaType:
		return &ClientError{Category: CategoryHTTP, Message: msg("unsupported content type"), HTTPStatus: status}
	case http.StatusTooManyRequests:
		return &ClientError{Category: CategoryRateLimited, Message: msg("rate limited"), HTTPStatus: status}
	default:
		if status >= 500 {
			return &ClientError{Category: CategoryHTTP, Message: msg(fmt.Sprintf("server error: %d", status)), HTTPStatus: status}
		}
		return &ClientError{Category: CategoryHTTP, Message: msg(fmt.Sprintf("HTTP error: %d", status)), HTTPStatus: status}
	}
}

// MapJSONRPCError wraps a JSON-RPC 2.0 error object from a response.
func MapJSONRPCError(code int, message string, data json.RawMessage) *ClientError {
	details := map[string]any{"jsonrpc_code": code}
	if len(data) > 0 {
		details["data"] = string(data)
	}
	return &ClientError{Category: CategoryJSONRPC, Message: message, Details: details}
}

// MapProtocolError reports a malformed JSON-RPC envelope (unparsable
// body, id mismatch, missing result/error).
func MapProtocolError(message string) *ClientError {
	return &ClientError{Category: CategoryProtocol, Message: message}
}

// NewStreamStallError reports that an SSE stream produced no bytes for
// longer than the configured StreamStallTimeout.
func NewStreamStallError(stallDuration int) *ClientError {
	return &ClientError{
		Category: CategoryStreamStall,
		Message:  fmt.Sprintf("stream stalled for %dms", stallDuration),
		Details:  map[string]any{"stall_duration_ms": stallDuration},
	}
}
