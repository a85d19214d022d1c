package mcp

import (
	"encoding/json"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	cases := []any{int64(1), "abc-123", nil}
	for _, c := range cases {
		id := NewRequestID(c)
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %v: %v", c, err)
		}
		var got RequestID
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", c, err)
		}
		if !got.Equal(id) {
			t.Errorf("round trip %v: got %v want %v", c, got.Value, id.Value)
		}
	}
}

func TestRequestIDNotificationHasNoID(t *testing.T) {
	id := NewRequestID(nil)
	if id.IsValid() {
		t.Error("nil request id should be invalid (a notification)")
	}
}

func TestNewErrorResponseCarriesCode(t *testing.T) {
	resp := NewErrorResponse(NewRequestID(int64(1)), CodeMethodNotFound, "method not found", nil)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected error code %d, got %+v", CodeMethodNotFound, resp.Error)
	}
}
