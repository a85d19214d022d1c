package mcpserver

import (
	"encoding/base64"
	"sort"
	"sync"

	"github.com/bc-dunia/mcpgo/mcp"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// errPageLimit is returned for a zero/negative limit, mapped to -32602 by
// the list handlers via its DomainError.Code().
var errPageLimit = &mcp.DomainErr{Kind: mcp.KindInvalidParameters, Message: "limit must be a positive integer"}

// toolRegistry, resourceRegistry, resourceTemplateRegistry, and
// promptRegistry are name-keyed maps consulted by the list/read/call
// handlers, grounded on the teacher's registry shape in
// internal/controlplane/scheduler/registry.go (a sync.RWMutex-guarded
// map plus sorted-key listing for deterministic pagination).

type toolRegistry struct {
	mu    sync.RWMutex
	tools map[string]mcp.Tool
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{tools: make(map[string]mcp.Tool)}
}

func (r *toolRegistry) register(t mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *toolRegistry) get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *toolRegistry) list(cursor string, limit *int) ([]mcp.ToolDescriptor, string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	page, next, hasMore, err := paginate(names, cursor, limit)
	if err != nil {
		return nil, "", false, err
	}

	descs := make([]mcp.ToolDescriptor, 0, len(page))
	for _, name := range page {
		descs = append(descs, mcp.ToToolDescriptor(r.tools[name]))
	}
	return descs, next, hasMore, nil
}

type resourceRegistry struct {
	mu        sync.RWMutex
	resources map[string]mcp.Resource
}

func newResourceRegistry() *resourceRegistry {
	return &resourceRegistry{resources: make(map[string]mcp.Resource)}
}

func (r *resourceRegistry) register(res mcp.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.URI()] = res
}

func (r *resourceRegistry) get(uri string) (mcp.Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[uri]
	return res, ok
}

func (r *resourceRegistry) list(cursor string, limit *int) ([]mcp.ResourceDescriptor, string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uris := make([]string, 0, len(r.resources))
	for uri := range r.resources {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	page, next, hasMore, err := paginate(uris, cursor, limit)
	if err != nil {
		return nil, "", false, err
	}

	descs := make([]mcp.ResourceDescriptor, 0, len(page))
	for _, uri := range page {
		descs = append(descs, mcp.ToResourceDescriptor(r.resources[uri]))
	}
	return descs, next, hasMore, nil
}

type resourceTemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]mcp.ResourceTemplateDefinition
}

func newResourceTemplateRegistry() *resourceTemplateRegistry {
	return &resourceTemplateRegistry{templates: make(map[string]mcp.ResourceTemplateDefinition)}
}

func (r *resourceTemplateRegistry) register(t mcp.ResourceTemplateDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name()] = t
}

func (r *resourceTemplateRegistry) list(cursor string, limit *int) ([]mcp.ResourceTemplateDescriptor, string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	page, next, hasMore, err := paginate(names, cursor, limit)
	if err != nil {
		return nil, "", false, err
	}

	descs := make([]mcp.ResourceTemplateDescriptor, 0, len(page))
	for _, name := range page {
		descs = append(descs, mcp.ToResourceTemplateDescriptor(r.templates[name]))
	}
	return descs, next, hasMore, nil
}

type promptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]mcp.Prompt
}

func newPromptRegistry() *promptRegistry {
	return &promptRegistry{prompts: make(map[string]mcp.Prompt)}
}

func (r *promptRegistry) register(p mcp.Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[p.Name()] = p
}

func (r *promptRegistry) get(name string) (mcp.Prompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	return p, ok
}

func (r *promptRegistry) list(cursor string, limit *int) ([]mcp.PromptDescriptor, string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	page, next, hasMore, err := paginate(names, cursor, limit)
	if err != nil {
		return nil, "", false, err
	}

	descs := make([]mcp.PromptDescriptor, 0, len(page))
	for _, name := range page {
		descs = append(descs, mcp.ToPromptDescriptor(r.prompts[name]))
	}
	return descs, next, hasMore, nil
}

// paginate slices sorted (an already-sorted, stably-ordered key list). An
// absent limit (nil) defaults to 50, caps at 100, and an explicit zero or
// negative limit is rejected with -32602 (the caller maps errPageLimit to
// that code) rather than silently substituting the default — a client
// that writes "limit":0 almost certainly meant it. cursor is the opaque
// base64 encoding of the last key returned on the previous page; an empty
// or unrecognized cursor starts from the beginning, matching the
// resumable replay semantics used elsewhere in the transport rather than
// erroring on a stale cursor.
func paginate(sorted []string, cursor string, limit *int) (page []string, next string, hasMore bool, err error) {
	effectiveLimit := defaultPageLimit
	if limit != nil {
		if *limit <= 0 {
			return nil, "", false, errPageLimit
		}
		effectiveLimit = *limit
	}
	if effectiveLimit > maxPageLimit {
		effectiveLimit = maxPageLimit
	}

	start := 0
	if cursor != "" {
		if decoded, ok := decodeCursor(cursor); ok {
			idx := sort.SearchStrings(sorted, decoded)
			if idx < len(sorted) && sorted[idx] == decoded {
				start = idx + 1
			} else {
				start = idx
			}
		}
	}

	if start >= len(sorted) {
		return nil, "", false, nil
	}

	end := start + effectiveLimit
	if end >= len(sorted) {
		end = len(sorted)
		page = sorted[start:end]
		return page, "", false, nil
	}

	page = sorted[start:end]
	next = encodeCursor(page[len(page)-1])
	return page, next, true, nil
}

func encodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeCursor(cursor string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", false
	}
	return string(raw), true
}
