package mcp

import (
	"encoding/json"
	"testing"
)

func TestMetaRoundTripsExtraKeys(t *testing.T) {
	input := `{"cursor":"C1","hasMore":true,"customer_id":"abc","trace_id":"xyz"}`
	var m Meta
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cursor == nil || *m.Cursor != "C1" {
		t.Fatalf("expected cursor C1, got %+v", m.Cursor)
	}
	if len(m.Extra) != 2 {
		t.Fatalf("expected 2 extra keys, got %d: %+v", len(m.Extra), m.Extra)
	}
	if _, ok := m.Extra["customer_id"]; !ok {
		t.Error("expected customer_id preserved in Extra")
	}

	out, err := json.Marshal(&m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var roundTripped map[string]any
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("unmarshal roundtrip: %v", err)
	}
	if roundTripped["customer_id"] != "abc" {
		t.Errorf("expected customer_id to round-trip, got %v", roundTripped["customer_id"])
	}
	if roundTripped["cursor"] != "C1" {
		t.Errorf("expected cursor to round-trip, got %v", roundTripped["cursor"])
	}
}

func TestMetaClampsProgress(t *testing.T) {
	var m Meta
	if err := json.Unmarshal([]byte(`{"progress":1.5}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Progress == nil || *m.Progress != 1.0 {
		t.Fatalf("expected progress clamped to 1.0, got %+v", m.Progress)
	}
}

func TestExtraMetaExcludesReservedKeys(t *testing.T) {
	extra := ExtraMeta(json.RawMessage(`{"progressToken":"abc","foo":"bar"}`))
	if _, ok := extra["progressToken"]; ok {
		t.Error("progressToken should not appear in extras")
	}
	if extra["foo"] == nil {
		t.Error("foo should appear in extras")
	}
}
