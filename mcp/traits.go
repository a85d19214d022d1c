package mcp

import (
	"context"
	"encoding/json"
)

// This file defines the fine-grained capability traits the runtime depends
// on instead of concrete structs. Each domain entity (tool, resource,
// prompt, notification) is described by several single-facet interfaces;
// a type satisfying every facet of an entity automatically satisfies that
// entity's definition interface (Go's structural typing stands in for a
// blanket trait implementation); the execution interface embeds the
// definition interface and adds the async behavior method.

// HasBaseMetadata exposes the name every entity is keyed and displayed by.
type HasBaseMetadata interface {
	Name() string
}

// HasTitle exposes an optional human-facing title distinct from Name.
type HasTitle interface {
	Title() string
}

// HasDescription exposes the entity's free-text description.
type HasDescription interface {
	Description() string
}

// HasInputSchema exposes a tool's declared input JSON Schema.
type HasInputSchema interface {
	InputSchema() json.RawMessage
}

// HasOutputSchema exposes a tool's declared output JSON Schema, if any.
type HasOutputSchema interface {
	OutputSchema() (json.RawMessage, bool)
}

// HasAnnotations exposes behavioral hints about a tool.
type HasAnnotations interface {
	Annotations() *ToolAnnotations
}

// HasToolMeta exposes the tool's `_meta` passthrough block.
type HasToolMeta interface {
	ToolMeta() *Meta
}

// HasIcons exposes icons associated with an entity.
type HasIcons interface {
	Icons() []Icon
}

// HasURI exposes a resource's canonical URI.
type HasURI interface {
	URI() string
}

// HasMimeType exposes an entity's declared MIME type.
type HasMimeType interface {
	MimeType() string
}

// HasURITemplate exposes a resource template's RFC 6570 template string.
type HasURITemplate interface {
	URITemplate() string
}

// HasArguments exposes a prompt's declared argument list.
type HasArguments interface {
	Arguments() []PromptArgument
}

// ToolDefinition is satisfied by any type exposing the full facet set a
// tool descriptor needs. ToToolDescriptor converts it to the wire shape.
type ToolDefinition interface {
	HasBaseMetadata
	HasDescription
	HasInputSchema
}

// ToToolDescriptor converts any ToolDefinition into its wire descriptor,
// consulting the optional facets (title, output schema, annotations,
// meta, icons) when the definition additionally implements them.
func ToToolDescriptor(t ToolDefinition) ToolDescriptor {
	d := ToolDescriptor{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
	if d.InputSchema == nil {
		d.InputSchema = json.RawMessage(`{"type":"object"}`)
	}
	if withTitle, ok := t.(HasTitle); ok {
		d.Title = withTitle.Title()
	}
	if withOutput, ok := t.(HasOutputSchema); ok {
		if schema, present := withOutput.OutputSchema(); present {
			d.OutputSchema = schema
		}
	}
	if withAnnot, ok := t.(HasAnnotations); ok {
		d.Annotations = withAnnot.Annotations()
	}
	if withMeta, ok := t.(HasToolMeta); ok {
		d.Meta = withMeta.ToolMeta()
	}
	if withIcons, ok := t.(HasIcons); ok {
		d.Icons = withIcons.Icons()
	}
	return d
}

// Tool extends ToolDefinition with the async execution behavior. Handler
// code depends only on this interface, never on a concrete struct.
type Tool interface {
	ToolDefinition
	Call(ctx context.Context, args json.RawMessage) (*CallToolResult, error)
}

// ResourceDefinition is satisfied by any type describing an exact resource.
type ResourceDefinition interface {
	HasBaseMetadata
	HasURI
}

// ToResourceDescriptor converts a ResourceDefinition to its wire shape.
func ToResourceDescriptor(r ResourceDefinition) ResourceDescriptor {
	d := ResourceDescriptor{Name: r.Name(), URI: r.URI()}
	if withDesc, ok := r.(HasDescription); ok {
		d.Description = withDesc.Description()
	}
	if withMime, ok := r.(HasMimeType); ok {
		d.MimeType = withMime.MimeType()
	}
	return d
}

// Resource extends ResourceDefinition with read behavior.
type Resource interface {
	ResourceDefinition
	Read(ctx context.Context, uri string) (*ReadResourceResult, error)
}

// ResourceTemplateDefinition describes a parameterized resource family.
type ResourceTemplateDefinition interface {
	HasBaseMetadata
	HasURITemplate
}

// ToResourceTemplateDescriptor converts a template definition to wire shape.
func ToResourceTemplateDescriptor(t ResourceTemplateDefinition) ResourceTemplateDescriptor {
	d := ResourceTemplateDescriptor{Name: t.Name(), URITemplate: t.URITemplate()}
	if withDesc, ok := t.(HasDescription); ok {
		d.Description = withDesc.Description()
	}
	if withMime, ok := t.(HasMimeType); ok {
		d.MimeType = withMime.MimeType()
	}
	return d
}

// PromptDefinition is satisfied by any type describing a prompt.
type PromptDefinition interface {
	HasBaseMetadata
	HasArguments
}

// ToPromptDescriptor converts a PromptDefinition to its wire shape.
func ToPromptDescriptor(p PromptDefinition) PromptDescriptor {
	d := PromptDescriptor{Name: p.Name(), Arguments: p.Arguments()}
	if withDesc, ok := p.(HasDescription); ok {
		d.Description = withDesc.Description()
	}
	return d
}

// Prompt extends PromptDefinition with rendering behavior.
type Prompt interface {
	PromptDefinition
	Get(ctx context.Context, args json.RawMessage) (*GetPromptResult, error)
}

// NotificationDefinition is satisfied by any type describing a notification
// kind: its wire method name.
type NotificationDefinition interface {
	Method() string
}

// NotificationHandler extends NotificationDefinition with handling behavior.
type NotificationHandler interface {
	NotificationDefinition
	Handle(ctx context.Context, params json.RawMessage) error
}
