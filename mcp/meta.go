package mcp

import "encoding/json"

// reservedMetaKeys are the _meta keys the runtime interprets itself; any
// other key in an inbound params._meta is echoed back verbatim in the
// response's result._meta.extra.
var reservedMetaKeys = map[string]bool{
	"progressToken":            true,
	"cursor":                   true,
	"total":                    true,
	"hasMore":                  true,
	"progress":                 true,
	"currentStep":              true,
	"totalSteps":               true,
	"estimatedRemainingSeconds": true,
}

// Meta carries the structured pagination/progress fields the protocol
// reserves, plus a passthrough bag for anything else the caller attached.
type Meta struct {
	ProgressToken             *string          `json:"progressToken,omitempty"`
	Cursor                    *string          `json:"cursor,omitempty"`
	Total                     *int             `json:"total,omitempty"`
	HasMore                   *bool            `json:"hasMore,omitempty"`
	Progress                  *float64         `json:"progress,omitempty"`
	CurrentStep               *int             `json:"currentStep,omitempty"`
	TotalSteps                *int             `json:"totalSteps,omitempty"`
	EstimatedRemainingSeconds *float64         `json:"estimatedRemainingSeconds,omitempty"`
	Extra                     map[string]json.RawMessage `json:"-"`
}

// clampProgress bounds a progress value to [0,1] per the declared range.
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// MarshalJSON flattens Extra alongside the reserved fields, since MCP
// represents _meta as one flat JSON object.
func (m *Meta) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	out := map[string]json.RawMessage{}
	type alias Meta
	reserved, err := json.Marshal((*alias)(m))
	if err != nil {
		return nil, err
	}
	var reservedMap map[string]json.RawMessage
	if err := json.Unmarshal(reserved, &reservedMap); err != nil {
		return nil, err
	}
	for k, v := range reservedMap {
		out[k] = v
	}
	for k, v := range m.Extra {
		if !reservedMetaKeys[k] {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the flat _meta object into reserved fields and Extra.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	type alias Meta
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Meta(a)
	m.Extra = map[string]json.RawMessage{}
	for k, v := range raw {
		if !reservedMetaKeys[k] {
			m.Extra[k] = v
		}
	}
	if m.Progress != nil {
		clamped := clampProgress(*m.Progress)
		m.Progress = &clamped
	}
	return nil
}

// ExtraMeta extracts the non-reserved keys from an inbound params._meta
// blob, for round-tripping into a response's result._meta.extra.
func ExtraMeta(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var full map[string]json.RawMessage
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil
	}
	extra := map[string]json.RawMessage{}
	for k, v := range full {
		if !reservedMetaKeys[k] {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

// NewCursorMeta builds a Meta carrying only pagination fields, the common
// case for tools/list, resources/list, prompts/list, resources/templates/list.
func NewCursorMeta(nextCursor string, hasMore bool) *Meta {
	m := &Meta{HasMore: boolPtr(hasMore)}
	if nextCursor != "" {
		m.Cursor = strPtr(nextCursor)
	}
	return m
}
