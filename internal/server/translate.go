package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/voocel/unillm"
)

// chatCompletionRequest models the OpenAI chat/completions request payload.
type chatCompletionRequest struct {
	Model               string          `json:"model"`
	Messages            []wireMessage   `json:"messages"`
	Tools               []wireTool      `json:"tools,omitempty"`
	Stream              bool            `json:"stream,omitempty"`
	StreamOptions       *streamOptions  `json:"stream_options,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	MaxTokens           *int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	Stop                json.RawMessage `json:"stop,omitempty"`
	Seed                *int64          `json:"seed,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
	ResponseFormat      *wireFormat     `json:"response_format,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type wirePart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type wireToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

type wireFormat struct {
	Type       string `json:"type"`
	JSONSchema *struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Schema      any    `json:"schema"`
	} `json:"json_schema,omitempty"`
}

// chatCompletionResponse doubles as the chat.completion.chunk frame.
type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      *wireOutput `json:"message,omitempty"`
	Delta        *wireOutput `json:"delta,omitempty"`
	FinishReason *string     `json:"finish_reason"`
}

type wireOutput struct {
	Role             string         `json:"role,omitempty"`
	Content          *string        `json:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	ToolCalls        []wireToolCall `json:"tool_calls,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type modelList struct {
	Object string      `json:"object"`
	Data   []modelCard `json:"data"`
}

type modelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Source  string `json:"source"`
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

func invalidRequest(format string, args ...any) requestError {
	return requestError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		Type:    "invalid_request_error",
	}
}

// toUnified converts the wire request into a chat request and per-call
// options. Streaming requests always capture tool calls so they can be
// replayed as a single delta at the end.
func (r *chatCompletionRequest) toUnified() (unillm.ChatRequest, unillm.ChatOptions, error) {
	var opts unillm.ChatOptions
	if strings.TrimSpace(r.Model) == "" {
		return unillm.ChatRequest{}, opts, invalidRequest("model must be provided")
	}
	if len(r.Messages) == 0 {
		return unillm.ChatRequest{}, opts, invalidRequest("at least one message is required")
	}

	messages := make([]unillm.ChatMessage, 0, len(r.Messages))
	for i, m := range r.Messages {
		msg, err := m.toUnified()
		if err != nil {
			return unillm.ChatRequest{}, opts, invalidRequest("messages[%d]: %v", i, err)
		}
		messages = append(messages, msg)
	}
	req := unillm.NewChatRequest(messages...)

	for i, t := range r.Tools {
		if t.Type != "" && t.Type != "function" {
			return unillm.ChatRequest{}, opts, invalidRequest("tools[%d]: unsupported type %q", i, t.Type)
		}
		req = req.WithTools(unillm.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Schema:      t.Function.Parameters,
		})
	}

	opts.Temperature = r.Temperature
	opts.TopP = r.TopP
	opts.MaxTokens = r.MaxTokens
	if opts.MaxTokens == nil {
		opts.MaxTokens = r.MaxCompletionTokens
	}
	opts.Seed = r.Seed

	stop, err := parseStop(r.Stop)
	if err != nil {
		return unillm.ChatRequest{}, opts, invalidRequest("%v", err)
	}
	opts.StopSequences = stop

	if r.ReasoningEffort != "" {
		effort, err := unillm.ParseReasoningEffort(r.ReasoningEffort)
		if err != nil {
			return unillm.ChatRequest{}, opts, invalidRequest("reasoning_effort: %v", err)
		}
		opts.ReasoningEffort = &effort
	}

	if f := r.ResponseFormat; f != nil {
		switch f.Type {
		case "", "text":
		case "json_object":
			opts.ResponseFormat = unillm.JSONMode()
		case "json_schema":
			if f.JSONSchema == nil {
				return unillm.ChatRequest{}, opts, invalidRequest("response_format.json_schema is required")
			}
			opts.ResponseFormat = unillm.JSONSchemaFormat(f.JSONSchema.Name, f.JSONSchema.Description, f.JSONSchema.Schema)
		default:
			return unillm.ChatRequest{}, opts, invalidRequest("unsupported response_format type %q", f.Type)
		}
	}

	if r.Stream {
		includeUsage := r.StreamOptions != nil && r.StreamOptions.IncludeUsage
		opts = opts.WithCaptureUsage(includeUsage).WithCaptureToolCalls(true)
	}
	return req, opts, nil
}

func (m wireMessage) toUnified() (unillm.ChatMessage, error) {
	parts, err := parseContent(m.Content)
	if err != nil {
		return unillm.ChatMessage{}, err
	}

	switch m.Role {
	case "system", "developer":
		return unillm.SystemMessage(joinText(parts)), nil
	case "user":
		return unillm.UserParts(parts...), nil
	case "assistant":
		if len(m.ToolCalls) == 0 {
			return unillm.AssistantMessage(joinText(parts)), nil
		}
		calls := make([]unillm.ToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, unillm.ToolCall{
				CallID:      tc.ID,
				FnName:      tc.Function.Name,
				FnArguments: argumentsJSON(tc.Function.Arguments),
			})
		}
		msg := unillm.AssistantToolCalls(calls...)
		if text := joinText(parts); text != "" {
			msg.Parts = append([]unillm.ContentPart{unillm.TextPart(text)}, msg.Parts...)
		}
		return msg, nil
	case "tool":
		if m.ToolCallID == "" {
			return unillm.ChatMessage{}, fmt.Errorf("tool_call_id is required for tool messages")
		}
		return unillm.ToolResponseMessage(unillm.ToolResponse{
			CallID:  m.ToolCallID,
			Content: joinText(parts),
		}), nil
	default:
		return unillm.ChatMessage{}, fmt.Errorf("invalid role %q", m.Role)
	}
}

func parseContent(raw json.RawMessage) ([]unillm.ContentPart, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []unillm.ContentPart{unillm.TextPart(text)}, nil
	}

	var wire []wirePart
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("content must be a string or an array of parts")
	}
	parts := make([]unillm.ContentPart, 0, len(wire))
	for _, p := range wire {
		switch p.Type {
		case "text":
			parts = append(parts, unillm.TextPart(p.Text))
		case "image_url":
			if p.ImageURL == nil || p.ImageURL.URL == "" {
				return nil, fmt.Errorf("image_url.url is required")
			}
			part, err := imagePart(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		default:
			return nil, fmt.Errorf("unsupported content part %q", p.Type)
		}
	}
	return parts, nil
}

// imagePart accepts a remote URL or a base64 data URI.
func imagePart(url string) (unillm.ContentPart, error) {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		contentType, isBase64 := strings.CutSuffix(header, ";base64")
		if !found || !isBase64 || contentType == "" {
			return unillm.ContentPart{}, fmt.Errorf("image data URI must be base64 encoded")
		}
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			return unillm.ContentPart{}, fmt.Errorf("invalid base64 image data: %w", err)
		}
		return unillm.ImageBase64Part(contentType, data), nil
	}

	contentType := mime.TypeByExtension(path.Ext(strings.SplitN(url, "?", 2)[0]))
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	return unillm.ImageURLPart(contentType, url), nil
}

func joinText(parts []unillm.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func argumentsJSON(args string) json.RawMessage {
	args = strings.TrimSpace(args)
	if args == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}

func parseStop(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("stop must be a string or an array of strings")
	}
	return many, nil
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

func fromUnified(id string, created int64, resp *unillm.ChatResponse) chatCompletionResponse {
	content := resp.Content
	out := &wireOutput{
		Role:             "assistant",
		Content:          &content,
		ReasoningContent: resp.ReasoningContent,
		ToolCalls:        wireToolCalls(resp.ToolCalls, false),
	}
	finish := finishReason(resp.FinishReason, len(resp.ToolCalls) > 0)
	usage := wireUsageFrom(resp.Usage)
	return chatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   responseModel(resp.ProviderModel, resp.Model),
		Choices: []wireChoice{{Index: 0, Message: out, FinishReason: &finish}},
		Usage:   &usage,
	}
}

func wireToolCalls(calls []unillm.ToolCall, indexed bool) []wireToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]wireToolCall, 0, len(calls))
	for i, c := range calls {
		tc := wireToolCall{
			ID:   c.CallID,
			Type: "function",
			Function: wireFunctionCall{
				Name:      c.FnName,
				Arguments: string(c.FnArguments),
			},
		}
		if indexed {
			idx := i
			tc.Index = &idx
		}
		out = append(out, tc)
	}
	return out
}

func wireUsageFrom(u unillm.Usage) wireUsage {
	return wireUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// finishReason maps canonical finish reasons onto the OpenAI vocabulary.
func finishReason(reason string, hasToolCalls bool) string {
	switch reason {
	case "":
		if hasToolCalls {
			return "tool_calls"
		}
		return "stop"
	case "safety":
		return "content_filter"
	default:
		return reason
	}
}

func responseModel(provider, requested unillm.ModelIden) string {
	if provider.Name != "" {
		return provider.Name
	}
	return requested.Name
}
