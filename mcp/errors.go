package mcp

import "fmt"

// DomainError is the contract a handler-side error satisfies so the
// dispatcher can map it to a JSON-RPC error code without a hard
// dependency on any concrete error type: Code returns the wire code
// (§4.2's taxonomy table), Error returns the human-readable message.
type DomainError interface {
	error
	Code() int
}

// ErrorKind categorizes a domain error for the few cases callers need to
// branch on the kind rather than the wire code directly.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota
	KindInvalidParameters
	KindMissingParameter
	KindInvalidParameterType
	KindParameterOutOfRange
	KindToolNotFound
	KindResourceNotFound
	KindPromptNotFound
	KindToolExecutionError
	KindResourceAccessDenied
	KindResourceExecutionError
	KindPromptExecutionError
	KindValidationError
	KindInvalidCapability
	KindVersionMismatch
	KindConfigurationError
	KindSessionError
	KindTransportError
	KindJSONRPCProtocolError
)

var kindCodes = map[ErrorKind]int{
	KindInvalidRequest:         CodeInvalidParams,
	KindInvalidParameters:      CodeInvalidParams,
	KindMissingParameter:       CodeInvalidParams,
	KindInvalidParameterType:   CodeInvalidParams,
	KindParameterOutOfRange:    CodeInvalidParams,
	KindToolNotFound:           CodeToolNotFound,
	KindResourceNotFound:       CodeResourceNotFound,
	KindPromptNotFound:         CodePromptNotFound,
	KindToolExecutionError:     CodeToolExecutionError,
	KindResourceAccessDenied:   CodeResourceAccessDenied,
	KindResourceExecutionError: CodeResourceExecError,
	KindPromptExecutionError:   CodePromptExecError,
	KindValidationError:        CodeValidationError,
	KindInvalidCapability:      CodeInvalidCapability,
	KindVersionMismatch:        CodeVersionMismatch,
	KindConfigurationError:     CodeConfigurationError,
	KindSessionError:           CodeSessionError,
	KindTransportError:         CodeTransportError,
	KindJSONRPCProtocolError:   CodeJSONRPCProtocolError,
}

// DomainErr is the general-purpose DomainError implementation used throughout
// the runtime, grounded on the teacher's RunManagerError shape: a Kind for
// categorization, an optional wrapped Cause, and a formatted Message.
type DomainErr struct {
	Kind    ErrorKind
	Subject string // tool/resource/prompt name or other identifying detail
	Message string
	Cause   error
}

func (e *DomainErr) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainErr) Unwrap() error { return e.Cause }

// Code implements DomainError.
func (e *DomainErr) Code() int {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return CodeInternalError
}

// NewToolNotFoundError reports that no tool is registered under name.
func NewToolNotFoundError(name string) *DomainErr {
	return &DomainErr{Kind: KindToolNotFound, Subject: name, Message: fmt.Sprintf("tool not found: %s", name)}
}

// NewResourceNotFoundError reports that no resource matches uri.
func NewResourceNotFoundError(uri string) *DomainErr {
	return &DomainErr{Kind: KindResourceNotFound, Subject: uri, Message: fmt.Sprintf("resource not found: %s", uri)}
}

// NewPromptNotFoundError reports that no prompt is registered under name.
func NewPromptNotFoundError(name string) *DomainErr {
	return &DomainErr{Kind: KindPromptNotFound, Subject: name, Message: fmt.Sprintf("prompt not found: %s", name)}
}

// NewToolExecutionError wraps a failure raised by a tool's own Call.
func NewToolExecutionError(name string, cause error) *DomainErr {
	return &DomainErr{Kind: KindToolExecutionError, Subject: name, Message: fmt.Sprintf("tool %q execution failed", name), Cause: cause}
}

// NewMissingParameterError reports a required parameter absent from params.
func NewMissingParameterError(param string) *DomainErr {
	return &DomainErr{Kind: KindMissingParameter, Subject: param, Message: fmt.Sprintf("missing required parameter: %s", param)}
}

// NewInvalidParameterTypeError reports a parameter present but of the wrong type.
func NewInvalidParameterTypeError(param, expected string) *DomainErr {
	return &DomainErr{Kind: KindInvalidParameterType, Subject: param, Message: fmt.Sprintf("parameter %q must be of type %s", param, expected)}
}

// NewSessionError reports a lifecycle/session-resolution failure.
func NewSessionError(message string) *DomainErr {
	return &DomainErr{Kind: KindSessionError, Message: message}
}

// NewValidationError reports a structural validation failure (e.g. schema mismatch).
func NewValidationError(message string) *DomainErr {
	return &DomainErr{Kind: KindValidationError, Message: message}
}

// NewTransportError reports a transport-level failure surfaced to a handler.
func NewTransportError(message string, cause error) *DomainErr {
	return &DomainErr{Kind: KindTransportError, Message: message, Cause: cause}
}
