package mcp

import (
	"fmt"
	"slices"
)

// DefaultProtocolVersion is the version this server negotiates when a
// client proposes no version, or, under VersionPolicySupported, when the
// proposed version is not supported.
const DefaultProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists every protocol revision this runtime
// understands, newest first. 2025-11-25 is forward-compatible with the
// 2025-06-18 baseline this spec targets.
var SupportedProtocolVersions = []string{
	"2025-11-25",
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// IsSupported reports whether version is one this server can speak.
func IsSupported(version string) bool {
	return slices.Contains(SupportedProtocolVersions, version)
}

// VersionPolicy controls how strictly a negotiated version must match
// what the client proposed.
type VersionPolicy string

const (
	// VersionPolicyStrict requires the server's returned version to equal
	// exactly what the client requested.
	VersionPolicyStrict VersionPolicy = "strict"
	// VersionPolicySupported allows any server-supported version.
	VersionPolicySupported VersionPolicy = "supported"
	// VersionPolicyNone performs no negotiation check at all.
	VersionPolicyNone VersionPolicy = "none"
)

// ParseVersionPolicy parses the string form of a VersionPolicy, defaulting
// to VersionPolicySupported for unrecognized input.
func ParseVersionPolicy(s string) VersionPolicy {
	switch s {
	case "strict":
		return VersionPolicyStrict
	case "supported":
		return VersionPolicySupported
	case "none":
		return VersionPolicyNone
	default:
		return VersionPolicySupported
	}
}

// VersionMismatchError reports that a client's requested protocol version
// could not be honored under the configured policy. Its Code is
// CodeVersionMismatch (-32022), per the JSON-RPC error taxonomy.
type VersionMismatchError struct {
	Requested string
	Policy    VersionPolicy
	Reason    string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("mcp: protocol version mismatch: requested %q under %s policy: %s",
		e.Requested, e.Policy, e.Reason)
}

// Code implements the DomainError contract.
func (e *VersionMismatchError) Code() int { return CodeVersionMismatch }

// NegotiateVersion picks the version this server will return for a
// requested client version, or reports a VersionMismatchError if the
// configured policy rejects it.
func NegotiateVersion(requested string, policy VersionPolicy) (string, error) {
	if requested == "" {
		return DefaultProtocolVersion, nil
	}
	switch policy {
	case VersionPolicyNone:
		return requested, nil
	case VersionPolicyStrict:
		if !IsSupported(requested) {
			return "", &VersionMismatchError{
				Requested: requested,
				Policy:    policy,
				Reason:    fmt.Sprintf("server supports %v", SupportedProtocolVersions),
			}
		}
		return requested, nil
	case VersionPolicySupported:
		fallthrough
	default:
		if IsSupported(requested) {
			return requested, nil
		}
		return DefaultProtocolVersion, nil
	}
}
