package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bc-dunia/mcpgo/mcp"
)

// CodeFor maps a handler-returned error to its wire JSON-RPC code,
// grounded on the teacher's error_mapping.go pattern of one exhaustive
// mapping function over a closed set of typed errors: a single
// errors.As chain, falling back to an internal-error code for anything
// unrecognized rather than panicking.
func CodeFor(err error) int {
	if err == nil {
		return 0
	}

	var domainErr mcp.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code()
	}

	// A pass-through error that already carries a JSON-RPC code (e.g. one
	// preserved verbatim from an upstream task) is honored as-is.
	var rpcErr *mcp.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return mcp.CodeTransportError
	}
	if errors.Is(err, context.Canceled) {
		return mcp.CodeTransportError
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return mcp.CodeInvalidParams
	}
	var unmarshalErr *json.UnmarshalTypeError
	if errors.As(err, &unmarshalErr) {
		return mcp.CodeInvalidParams
	}

	// IO and serialization failures that reach this point are internal:
	// the handler's business logic didn't classify them, so they're
	// treated as unexpected rather than as a caller mistake.
	return mcp.CodeInternalError
}
