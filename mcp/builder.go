package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// FuncTool is the Go-idiomatic substitute for the derive-layer the
// original spec delegates to an external code-generation step (§9
// "Procedural derive for tools/prompts/resources"). Go has no derive
// macros, so NewToolFromFunc inspects fn's signature via reflection to
// synthesize an input schema from its parameter struct and an output
// schema from its return type, wrapping primitive returns in
// {"output": …} per §3.1's CallToolResult invariant.
//
// fn must have the shape `func(context.Context, P) (R, error)` where P
// is a struct (its exported fields become input schema properties) and R
// is any JSON-marshalable type (primitive or struct).
type FuncTool struct {
	name         string
	description  string
	inputSchema  json.RawMessage
	outputSchema json.RawMessage
	wrapOutput   bool
	outputField  string
	fn           reflect.Value
	paramType    reflect.Type
}

// ToolOption configures a FuncTool at construction time.
type ToolOption func(*FuncTool)

// WithDescription sets the tool's description.
func WithDescription(desc string) ToolOption {
	return func(t *FuncTool) { t.description = desc }
}

// WithOutputField overrides the default "output" wrapper field name used
// when a tool returns a primitive value instead of a struct.
func WithOutputField(field string) ToolOption {
	return func(t *FuncTool) { t.outputField = field }
}

// NewToolFromFunc builds a Tool by reflecting over fn's signature.
func NewToolFromFunc(name string, fn any, opts ...ToolOption) (*FuncTool, error) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("mcp: NewToolFromFunc: fn must be a function, got %s", fnType.Kind())
	}
	if fnType.NumIn() != 2 || fnType.NumOut() != 2 {
		return nil, fmt.Errorf("mcp: NewToolFromFunc: fn must be func(context.Context, P) (R, error)")
	}
	if !fnType.In(0).Implements(reflect.TypeOf((*context.Context)(nil)).Elem()) {
		return nil, fmt.Errorf("mcp: NewToolFromFunc: first parameter must be context.Context")
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if !fnType.Out(1).Implements(errType) {
		return nil, fmt.Errorf("mcp: NewToolFromFunc: second return value must be error")
	}

	paramType := fnType.In(1)
	inputSchema, err := schemaForType(paramType)
	if err != nil {
		return nil, fmt.Errorf("mcp: NewToolFromFunc: input schema: %w", err)
	}

	t := &FuncTool{
		name:        name,
		inputSchema: inputSchema,
		fn:          fnVal,
		paramType:   paramType,
		outputField: "output",
	}
	for _, opt := range opts {
		opt(t)
	}

	retType := fnType.Out(0)
	outSchema, wrap, err := outputSchemaForType(retType, t.outputField)
	if err != nil {
		return nil, fmt.Errorf("mcp: NewToolFromFunc: output schema: %w", err)
	}
	t.outputSchema = outSchema
	t.wrapOutput = wrap

	return t, nil
}

func (t *FuncTool) Name() string                   { return t.name }
func (t *FuncTool) Description() string            { return t.description }
func (t *FuncTool) InputSchema() json.RawMessage    { return t.inputSchema }
func (t *FuncTool) OutputSchema() (json.RawMessage, bool) {
	return t.outputSchema, t.outputSchema != nil
}

// Call unmarshals args into the reflected parameter type, invokes fn, and
// wraps the result into a CallToolResult with matching structuredContent.
func (t *FuncTool) Call(ctx context.Context, args json.RawMessage) (*CallToolResult, error) {
	paramPtr := reflect.New(t.paramType)
	if len(args) > 0 {
		if err := json.Unmarshal(args, paramPtr.Interface()); err != nil {
			return nil, NewValidationError(fmt.Sprintf("tool %q: invalid arguments: %v", t.name, err))
		}
	}

	results := t.fn.Call([]reflect.Value{reflect.ValueOf(ctx), paramPtr.Elem()})
	if errVal := results[1].Interface(); errVal != nil {
		return nil, NewToolExecutionError(t.name, errVal.(error))
	}

	retVal := results[0].Interface()
	structured, err := wrapStructuredContent(retVal, t.wrapOutput, t.outputField)
	if err != nil {
		return nil, NewToolExecutionError(t.name, err)
	}

	text, _ := json.Marshal(retVal)
	return &CallToolResult{
		Content:           []ContentBlock{TextContent(string(text))},
		StructuredContent: structured,
	}, nil
}

// schemaForType synthesizes a JSON Schema object for a Go struct type,
// one property per exported field, named by its `json` tag (or field
// name, lowercased, if untagged).
func schemaForType(t reflect.Type) (json.RawMessage, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("parameter type must be a struct, got %s", t.Kind())
	}

	properties := map[string]any{}
	var required []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty := jsonFieldName(f)
		properties[name] = jsonSchemaForGoType(f.Type)
		if !omitempty {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return json.Marshal(schema)
}

// outputSchemaForType synthesizes the output schema for a tool's return
// type. MCP requires the top-level output schema to always be an object;
// struct returns map directly, primitive returns are reported as wrapped
// under wrapField and wrap=true is returned so Call knows to wrap values.
func outputSchemaForType(t reflect.Type, wrapField string) (json.RawMessage, bool, error) {
	kind := t.Kind()
	if kind == reflect.Struct {
		schema, err := schemaForType(t)
		return schema, false, err
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			wrapField: jsonSchemaForGoType(t),
		},
		"required": []string{wrapField},
	}
	raw, err := json.Marshal(schema)
	return raw, true, err
}

func wrapStructuredContent(value any, wrap bool, field string) (json.RawMessage, error) {
	if wrap {
		return json.Marshal(map[string]any{field: value})
	}
	return json.Marshal(value)
}

func jsonFieldName(f reflect.StructField) (name string, omitempty bool) {
	tag := f.Tag.Get("json")
	if tag == "" {
		return lowerFirst(f.Name), false
	}
	parts := splitTag(tag)
	if parts[0] == "" {
		parts[0] = lowerFirst(f.Name)
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return parts[0], omitempty
}

func splitTag(tag string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	parts = append(parts, tag[start:])
	return parts
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

func jsonSchemaForGoType(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": jsonSchemaForGoType(t.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object"}
	case reflect.Struct:
		properties := map[string]any{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _ := jsonFieldName(f)
			properties[name] = jsonSchemaForGoType(f.Type)
		}
		return map[string]any{"type": "object", "properties": properties}
	default:
		return map[string]any{}
	}
}
