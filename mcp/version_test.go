package mcp

import "testing"

func TestNegotiateVersionDefaultsWhenEmpty(t *testing.T) {
	v, err := NegotiateVersion("", VersionPolicySupported)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != DefaultProtocolVersion {
		t.Errorf("expected default version, got %s", v)
	}
}

func TestNegotiateVersionStrictRejectsUnsupported(t *testing.T) {
	_, err := NegotiateVersion("1999-01-01", VersionPolicyStrict)
	if err == nil {
		t.Fatal("expected error for unsupported version under strict policy")
	}
	var mismatch *VersionMismatchError
	if !asVersionMismatch(err, &mismatch) {
		t.Fatalf("expected *VersionMismatchError, got %T", err)
	}
	if mismatch.Code() != CodeVersionMismatch {
		t.Errorf("expected code %d, got %d", CodeVersionMismatch, mismatch.Code())
	}
}

func TestNegotiateVersionSupportedFallsBackSilently(t *testing.T) {
	v, err := NegotiateVersion("1999-01-01", VersionPolicySupported)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != DefaultProtocolVersion {
		t.Errorf("expected fallback to default, got %s", v)
	}
}

func asVersionMismatch(err error, target **VersionMismatchError) bool {
	if v, ok := err.(*VersionMismatchError); ok {
		*target = v
		return true
	}
	return false
}
