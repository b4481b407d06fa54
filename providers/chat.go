package providers

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// Message types: role-tagged content parts
// ---------------------------------------------------------------------------

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleTool      ChatRole = "tool"
)

// PartKind tags a ContentPart.
type PartKind int

const (
	PartText PartKind = iota
	PartBinary
	PartToolCall
	PartToolResponse
)

// ContentPart is one element of a message. Exactly one payload field is set,
// matching Kind.
type ContentPart struct {
	Kind         PartKind
	Text         string
	Binary       *Binary
	ToolCall     *ToolCall
	ToolResponse *ToolResponse
}

// Binary is inline media, referenced by URL or carried as base64.
type Binary struct {
	ContentType string `json:"content_type"`
	URL         string `json:"url,omitempty"`
	Base64      string `json:"base64,omitempty"`
	Name        string `json:"name,omitempty"`
}

// IsImage reports whether the content type is an image type.
func (b Binary) IsImage() bool {
	return strings.HasPrefix(b.ContentType, "image/")
}

// DataURL returns the URL form providers accept for images: the original
// URL, or a data URI built from the base64 payload.
func (b Binary) DataURL() string {
	if b.URL != "" {
		return b.URL
	}
	return "data:" + b.ContentType + ";base64," + b.Base64
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	CallID      string          `json:"call_id"`
	FnName      string          `json:"fn_name"`
	FnArguments json.RawMessage `json:"fn_arguments"`
}

// ToolResponse carries the caller's result for a ToolCall.
type ToolResponse struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
}

// Tool declares a function the model may call. Schema is any JSON-encodable
// JSON Schema value.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      any    `json:"schema,omitempty"`
}

type ChatMessage struct {
	Role  ChatRole      `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// Text joins the message's text parts.
func (m ChatMessage) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

func ImageURLPart(contentType, url string) ContentPart {
	return ContentPart{Kind: PartBinary, Binary: &Binary{ContentType: contentType, URL: url}}
}

func ImageBase64Part(contentType, data string) ContentPart {
	return ContentPart{Kind: PartBinary, Binary: &Binary{ContentType: contentType, Base64: data}}
}

func ToolCallPart(call ToolCall) ContentPart {
	return ContentPart{Kind: PartToolCall, ToolCall: &call}
}

func ToolResponsePart(resp ToolResponse) ContentPart {
	return ContentPart{Kind: PartToolResponse, ToolResponse: &resp}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Parts: []ContentPart{TextPart(text)}}
}

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Parts: []ContentPart{TextPart(text)}}
}

func UserParts(parts ...ContentPart) ChatMessage {
	return ChatMessage{Role: RoleUser, Parts: parts}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Parts: []ContentPart{TextPart(text)}}
}

// AssistantToolCalls records the calls a model made so they can be replayed.
func AssistantToolCalls(calls ...ToolCall) ChatMessage {
	parts := make([]ContentPart, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, ToolCallPart(c))
	}
	return ChatMessage{Role: RoleAssistant, Parts: parts}
}

func ToolResponseMessage(responses ...ToolResponse) ChatMessage {
	parts := make([]ContentPart, 0, len(responses))
	for _, r := range responses {
		parts = append(parts, ToolResponsePart(r))
	}
	return ChatMessage{Role: RoleTool, Parts: parts}
}

// ---------------------------------------------------------------------------
// ChatRequest
// ---------------------------------------------------------------------------

// ChatRequest is the provider-neutral conversation. System, when set, is
// placed before any system messages in Messages.
type ChatRequest struct {
	System   string        `json:"system,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Tools    []Tool        `json:"tools,omitempty"`
}

func NewChatRequest(messages ...ChatMessage) ChatRequest {
	return ChatRequest{Messages: messages}
}

func (r ChatRequest) WithSystem(system string) ChatRequest {
	r.System = system
	return r
}

func (r ChatRequest) WithTools(tools ...Tool) ChatRequest {
	r.Tools = append(append([]Tool(nil), r.Tools...), tools...)
	return r
}

// Append returns a copy with more messages at the end.
func (r ChatRequest) Append(messages ...ChatMessage) ChatRequest {
	r.Messages = append(append([]ChatMessage(nil), r.Messages...), messages...)
	return r
}

// HasImages reports whether any message carries an image part.
func (r ChatRequest) HasImages() bool {
	for _, m := range r.Messages {
		for _, p := range m.Parts {
			if p.Kind == PartBinary && p.Binary != nil && p.Binary.IsImage() {
				return true
			}
		}
	}
	return false
}

func (r ChatRequest) validate(kind AdapterKind) error {
	if len(r.Messages) == 0 && r.System == "" {
		return NewValidationError(kind, "at least one message is required")
	}
	for _, t := range r.Tools {
		if t.Name == "" {
			return NewValidationError(kind, "tool name is required")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Embeddings
// ---------------------------------------------------------------------------

type EmbedRequest struct {
	Inputs []string `json:"inputs"`
}

type EmbedOptions struct {
	Dimensions     *int              `json:"dimensions,omitempty"`
	EncodingFormat string            `json:"encoding_format,omitempty"`
	User           string            `json:"user,omitempty"`
	CaptureUsage   *bool             `json:"capture_usage,omitempty"`
	CaptureRawBody *bool             `json:"capture_raw_body,omitempty"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty"`
}

type Embedding struct {
	Index  int       `json:"index"`
	Vector []float64 `json:"vector"`
}

type EmbedResponse struct {
	Embeddings      []Embedding     `json:"embeddings"`
	Model           ModelIden       `json:"model"`
	ProviderModel   ModelIden       `json:"provider_model"`
	Usage           *Usage          `json:"usage,omitempty"`
	CapturedRawBody json.RawMessage `json:"captured_raw_body,omitempty"`
}

// Vectors returns the embeddings ordered by input index.
func (r *EmbedResponse) Vectors() [][]float64 {
	out := make([][]float64, len(r.Embeddings))
	for _, e := range r.Embeddings {
		if e.Index >= 0 && e.Index < len(out) {
			out[e.Index] = e.Vector
		}
	}
	return out
}
