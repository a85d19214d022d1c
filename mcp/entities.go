package mcp

import "encoding/json"

// ClientInfo identifies the connecting MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies this MCP server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Icon is a small image associated with a tool, resource, or prompt.
type Icon struct {
	Src      string   `json:"src"`
	MimeType string   `json:"mimeType,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo      `json:"clientInfo"`
}

// InitializeResult is the payload of the initialize response.
type InitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities"`
	ServerInfo      ServerInfo      `json:"serverInfo"`
	Instructions    string          `json:"instructions,omitempty"`
}

// ToolAnnotations are behavioral hints about a tool.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint   bool   `json:"openWorldHint,omitempty"`
}

// ToolExecution describes a tool's async-task support.
type ToolExecution struct {
	TaskSupport string `json:"taskSupport,omitempty"` // "forbidden" | "optional" | "required"
}

// ToolDescriptor is the wire descriptor for a tool, produced by ToToolDescriptor.
// It is the concrete struct satisfying ToolDefinition.
type ToolDescriptor struct {
	Name         string           `json:"name"`
	Title        string           `json:"title,omitempty"`
	Description  string           `json:"description,omitempty"`
	InputSchema  json.RawMessage  `json:"inputSchema"`
	OutputSchema json.RawMessage  `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations `json:"annotations,omitempty"`
	Icons        []Icon           `json:"icons,omitempty"`
	Execution    *ToolExecution   `json:"execution,omitempty"`
	Meta         *Meta            `json:"_meta,omitempty"`
}

// ToolsListResult is the payload of a tools/list response.
type ToolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
	Meta  *Meta            `json:"_meta,omitempty"`
}

// ToolsCallParams is the payload of a tools/call request.
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *Meta           `json:"_meta,omitempty"`
}

// ContentBlockType enumerates the tagged-union kinds of ContentBlock.
type ContentBlockType string

const (
	ContentText         ContentBlockType = "text"
	ContentImage        ContentBlockType = "image"
	ContentAudio        ContentBlockType = "audio"
	ContentResourceLink ContentBlockType = "resource_link"
	ContentResource     ContentBlockType = "resource"
)

// ContentBlock is a tagged union of the content kinds a tool/prompt may emit.
type ContentBlock struct {
	Type     ContentBlockType `json:"type"`
	Text     string           `json:"text,omitempty"`
	Data     string           `json:"data,omitempty"`     // base64, for image/audio
	MimeType string           `json:"mimeType,omitempty"` // for image/audio/resource_link
	URI      string           `json:"uri,omitempty"`      // for resource_link/resource
	Resource *ReadResourceContent `json:"resource,omitempty"`
}

// TextContent builds a plain text content block.
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: text}
}

// CallToolResult is the payload of a tools/call response.
type CallToolResult struct {
	Content           []ContentBlock  `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
	Meta              *Meta           `json:"_meta,omitempty"`
}

// ResourceDescriptor is the wire descriptor for an exact resource.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Meta        *Meta  `json:"_meta,omitempty"`
}

// ResourceTemplateDescriptor is the wire descriptor for a resource template.
type ResourceTemplateDescriptor struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourcesListResult is the payload of a resources/list response.
type ResourcesListResult struct {
	Resources []ResourceDescriptor `json:"resources"`
	Meta      *Meta                `json:"_meta,omitempty"`
}

// ResourceTemplatesListResult is the payload of a resources/templates/list response.
type ResourceTemplatesListResult struct {
	ResourceTemplates []ResourceTemplateDescriptor `json:"resourceTemplates"`
	Meta              *Meta                        `json:"_meta,omitempty"`
}

// ResourcesReadParams is the payload of a resources/read request.
type ResourcesReadParams struct {
	URI string `json:"uri"`
}

// ResourcesSubscribeParams is the payload of a resources/subscribe request.
type ResourcesSubscribeParams struct {
	URI string `json:"uri"`
}

// ResourcesUnsubscribeParams is the payload of a resources/unsubscribe request.
type ResourcesUnsubscribeParams struct {
	URI string `json:"uri"`
}

// ReadResourceContent is one item of a resources/read response: text or blob.
type ReadResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
	Meta     *Meta  `json:"_meta,omitempty"`
}

// ReadResourceResult is the payload of a resources/read response.
type ReadResourceResult struct {
	Contents []ReadResourceContent `json:"contents"`
	Meta     *Meta                 `json:"_meta,omitempty"`
}

// PromptArgument describes one argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptDescriptor is the wire descriptor for a prompt.
type PromptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptsListResult is the payload of a prompts/list response.
type PromptsListResult struct {
	Prompts []PromptDescriptor `json:"prompts"`
	Meta    *Meta               `json:"_meta,omitempty"`
}

// PromptsGetParams is the payload of a prompts/get request.
type PromptsGetParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// PromptMessageRole enumerates the roles a prompt message's content belongs to.
type PromptMessageRole string

const (
	RoleUser      PromptMessageRole = "user"
	RoleAssistant PromptMessageRole = "assistant"
	RoleSystem    PromptMessageRole = "system"
)

// PromptMessage is one message of a prompts/get result.
type PromptMessage struct {
	Role    PromptMessageRole `json:"role"`
	Content ContentBlock      `json:"content"`
}

// GetPromptResult is the payload of a prompts/get response.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// Root is a filesystem/workspace root the client exposes to the server.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// RootsListResult is the payload of a roots/list response.
type RootsListResult struct {
	Roots []Root `json:"roots"`
}

// SamplingMessage is one message in a sampling/createMessage conversation.
type SamplingMessage struct {
	Role    PromptMessageRole `json:"role"`
	Content ContentBlock      `json:"content"`
}

// CreateMessageParams is the payload of a sampling/createMessage request.
type CreateMessageParams struct {
	Messages     []SamplingMessage `json:"messages"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	MaxTokens    int               `json:"maxTokens,omitempty"`
	Temperature  float64           `json:"temperature,omitempty"`
	StopSequences []string         `json:"stopSequences,omitempty"`
}

// CreateMessageResult is the payload of a sampling/createMessage response.
type CreateMessageResult struct {
	Role       PromptMessageRole `json:"role"`
	Content    ContentBlock      `json:"content"`
	Model      string            `json:"model,omitempty"`
	StopReason string            `json:"stopReason,omitempty"`
}

// ElicitParams is the payload of an elicitation/create request.
type ElicitParams struct {
	Message         string          `json:"message"`
	RequestedSchema json.RawMessage `json:"requestedSchema"`
}

// ElicitAction enumerates the user's response to an elicitation form.
type ElicitAction string

const (
	ElicitAccept  ElicitAction = "accept"
	ElicitDecline ElicitAction = "decline"
	ElicitCancel  ElicitAction = "cancel"
)

// ElicitResult is the payload of an elicitation/create response.
type ElicitResult struct {
	Action  ElicitAction    `json:"action"`
	Content json.RawMessage `json:"content,omitempty"`
}

// CompletionRef identifies what is being completed: a prompt argument or a
// resource template variable.
type CompletionRef struct {
	Type string `json:"type"` // "ref/prompt" | "ref/resource"
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompletionArgument is the partially-typed argument being completed.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteParams is the payload of a completion/complete request.
type CompleteParams struct {
	Ref      CompletionRef      `json:"ref"`
	Argument CompletionArgument `json:"argument"`
}

// CompleteResult is the payload of a completion/complete response.
type CompleteResult struct {
	Completion struct {
		Values  []string `json:"values"`
		Total   *int     `json:"total,omitempty"`
		HasMore bool     `json:"hasMore,omitempty"`
	} `json:"completion"`
}

// SetLevelParams is the payload of a logging/setLevel request.
type SetLevelParams struct {
	Level string `json:"level"`
}

// CancelledParams is the payload of a notifications/cancelled notification.
type CancelledParams struct {
	RequestID RequestID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

// ProgressParams is the payload of a notifications/progress notification.
type ProgressParams struct {
	ProgressToken string  `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         *float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// LogMessageParams is the payload of a notifications/message notification.
type LogMessageParams struct {
	Level  string          `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data"`
	Meta   *Meta           `json:"_meta,omitempty"`
}

// ResourceUpdatedParams is the payload of a notifications/resources/updated notification.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}
