package providers

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// Request building
// ---------------------------------------------------------------------------

// compatMessage is the OpenAI-compatible message shape. Content stays any
// so it can hold a plain string or a parts array.
type compatMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"`
	ToolCalls  []compatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type compatContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *compatImageURL `json:"image_url,omitempty"`
}

type compatImageURL struct {
	URL string `json:"url"`
}

type compatToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function compatToolCallFunc `json:"function"`
}

type compatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type compatTool struct {
	Type     string             `json:"type"`
	Function compatToolFunction `json:"function"`
}

type compatToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
	Strict      bool   `json:"strict"`
}

func (a *compatAdapter) BuildRequest(target ServiceTarget, service ServiceType, req ChatRequest, opts ChatOptions) (*WebRequestData, error) {
	if service != ServiceChat && service != ServiceChatStream {
		return nil, NewUnsupportedError(a.kind, "cannot build a chat request for service "+service.String())
	}
	if err := req.validate(a.kind); err != nil {
		return nil, err
	}

	url, err := a.ServiceURL(target.Model, service, target.Endpoint)
	if err != nil {
		return nil, err
	}
	headers, err := a.headers(target, opts.ExtraHeaders)
	if err != nil {
		return nil, err
	}

	modelName := target.Model.Name
	effort := opts.ReasoningEffort
	if effort == nil && a.compat.InferReasoningFromName {
		effort, modelName = reasoningEffortFromModelName(modelName)
	}

	if a.compat.JSONSchemaToPrompt {
		req = injectJSONSchemaToSystem(req, opts.ResponseFormat)
	}

	stream := service == ServiceChatStream
	body := map[string]any{
		"model":    modelName,
		"messages": a.convertMessages(target.Model, req),
		"stream":   stream,
	}

	if stream && opts.captureUsage() && a.compat.StreamUsage {
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools)
	}

	if effort != nil && a.compat.SupportsReasoningEffort {
		if keyword, ok := effort.Keyword(); ok {
			body["reasoning_effort"] = keyword
		}
	}

	if rf := a.responseFormat(opts.ResponseFormat); rf != nil {
		body["response_format"] = rf
	}

	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		body["top_p"] = *opts.TopP
	}
	if opts.MaxTokens != nil {
		body["max_tokens"] = *opts.MaxTokens
	}
	if len(opts.StopSequences) > 0 {
		body["stop"] = opts.StopSequences
	}
	if opts.Seed != nil {
		body["seed"] = *opts.Seed
	}

	return &WebRequestData{URL: url, Headers: headers, Payload: body}, nil
}

// convertMessages flattens the unified conversation. The request's System
// goes first; unsupported content is skipped, but a tool call or response
// in a role that cannot carry it is logged as a contract deviation.
func (a *compatAdapter) convertMessages(model ModelIden, req ChatRequest) []compatMessage {
	out := make([]compatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, compatMessage{Role: string(RoleSystem), Content: sanitize(req.System)})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			a.warnDroppedTools(model, msg, "system messages carry text only")
			if text := msg.Text(); text != "" {
				out = append(out, compatMessage{Role: string(RoleSystem), Content: sanitize(text)})
			}

		case RoleUser:
			a.warnDroppedTools(model, msg, "user messages carry text and images only")
			if content := userContent(msg); content != nil {
				out = append(out, compatMessage{Role: string(RoleUser), Content: content})
			}

		case RoleAssistant:
			var calls []compatToolCall
			for _, p := range msg.Parts {
				switch {
				case p.Kind == PartToolCall && p.ToolCall != nil:
					calls = append(calls, compatToolCall{
						ID:   p.ToolCall.CallID,
						Type: "function",
						Function: compatToolCallFunc{
							Name:      p.ToolCall.FnName,
							Arguments: argumentsString(p.ToolCall.FnArguments),
						},
					})
				case p.Kind == PartToolResponse:
					a.warnDropped(model, msg.Role, "tool response in assistant message")
				}
			}
			text := sanitize(msg.Text())
			if len(calls) == 0 && text == "" {
				continue
			}
			out = append(out, compatMessage{Role: string(RoleAssistant), Content: text, ToolCalls: calls})

		case RoleTool:
			for _, p := range msg.Parts {
				switch {
				case p.Kind == PartToolResponse && p.ToolResponse != nil:
					out = append(out, compatMessage{
						Role:       string(RoleTool),
						Content:    sanitize(p.ToolResponse.Content),
						ToolCallID: p.ToolResponse.CallID,
					})
				case p.Kind == PartToolCall:
					a.warnDropped(model, msg.Role, "tool call in tool message")
				}
			}
		}
	}
	return out
}

// userContent returns a plain string for a single text part and a parts
// array otherwise. Non-image binaries are omitted.
func userContent(msg ChatMessage) any {
	parts := make([]compatContentPart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch {
		case p.Kind == PartText:
			parts = append(parts, compatContentPart{Type: "text", Text: sanitize(p.Text)})
		case p.Kind == PartBinary && p.Binary != nil && p.Binary.IsImage():
			parts = append(parts, compatContentPart{Type: "image_url", ImageURL: &compatImageURL{URL: p.Binary.DataURL()}})
		}
	}
	switch {
	case len(parts) == 0:
		return nil
	case len(parts) == 1 && parts[0].Type == "text":
		return parts[0].Text
	default:
		return parts
	}
}

func (a *compatAdapter) warnDroppedTools(model ModelIden, msg ChatMessage, reason string) {
	for _, p := range msg.Parts {
		if p.Kind == PartToolCall || p.Kind == PartToolResponse {
			a.warnDropped(model, msg.Role, reason)
			return
		}
	}
}

func (a *compatAdapter) warnDropped(model ModelIden, role ChatRole, reason string) {
	a.deps.Logger.Warn("tool content dropped from request",
		"provider", a.kind.String(),
		"model", model.Name,
		"role", string(role),
		"reason", reason,
	)
}

func convertTools(tools []Tool) []compatTool {
	out := make([]compatTool, len(tools))
	for i, t := range tools {
		out[i] = compatTool{
			Type: "function",
			Function: compatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		}
	}
	return out
}

// argumentsString encodes tool arguments the way the wire expects them: a
// JSON document inside a string.
func argumentsString(args json.RawMessage) string {
	if len(args) == 0 {
		return "{}"
	}
	return string(args)
}

// sanitize removes invalid UTF-8 sequences, which some providers reject.
func sanitize(s string) string {
	return strings.ToValidUTF8(s, "")
}

// ---------------------------------------------------------------------------
// Structured output
// ---------------------------------------------------------------------------

func (a *compatAdapter) responseFormat(rf *ResponseFormat) map[string]any {
	if rf == nil {
		return nil
	}
	if rf.Type == ResponseFormatJSONObject || !a.compat.SupportsJSONSchema {
		return map[string]any{"type": "json_object"}
	}

	name := rf.Name
	if name == "" {
		name = "response"
	}
	spec := map[string]any{
		"name":   name,
		"strict": true,
		"schema": closeObjectSchemas(toJSONValue(rf.Schema)),
	}
	if rf.Description != "" {
		spec["description"] = rf.Description
	}
	return map[string]any{"type": "json_schema", "json_schema": spec}
}

// toJSONValue round-trips v through JSON so struct schemas become plain
// maps the walker can edit without touching the caller's value.
func toJSONValue(v any) any {
	if v == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// closeObjectSchemas sets additionalProperties:false on every object node,
// which strict mode requires.
func closeObjectSchemas(v any) any {
	switch node := v.(type) {
	case map[string]any:
		if typ, _ := node["type"].(string); typ == "object" {
			node["additionalProperties"] = false
		}
		for k, child := range node {
			node[k] = closeObjectSchemas(child)
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = closeObjectSchemas(child)
		}
		return node
	default:
		return v
	}
}

// injectJSONSchemaToSystem appends the schema to the system prompt for
// providers whose json_object mode needs the shape spelled out.
func injectJSONSchemaToSystem(req ChatRequest, rf *ResponseFormat) ChatRequest {
	if rf == nil || rf.Type != ResponseFormatJSONSchema || rf.Schema == nil {
		return req
	}
	schemaJSON, err := json.Marshal(rf.Schema)
	if err != nil {
		return req
	}
	instruction := "Please respond with a valid JSON object that strictly follows this schema:\n" +
		string(schemaJSON) + "\n\nRespond with JSON only, no additional text."
	if req.System == "" {
		req.System = instruction
	} else {
		req.System += "\n\n" + instruction
	}
	return req
}

// ---------------------------------------------------------------------------
// Embeddings
// ---------------------------------------------------------------------------

func (a *compatAdapter) BuildEmbedRequest(target ServiceTarget, req EmbedRequest, opts EmbedOptions) (*WebRequestData, error) {
	if len(req.Inputs) == 0 {
		return nil, NewValidationError(a.kind, "at least one embedding input is required")
	}
	url, err := a.ServiceURL(target.Model, ServiceEmbed, target.Endpoint)
	if err != nil {
		return nil, err
	}
	headers, err := a.headers(target, opts.ExtraHeaders)
	if err != nil {
		return nil, err
	}

	inputs := make([]string, len(req.Inputs))
	for i, in := range req.Inputs {
		inputs[i] = sanitize(in)
	}
	body := map[string]any{
		"model": target.Model.Name,
		"input": inputs,
	}
	if opts.Dimensions != nil {
		body["dimensions"] = *opts.Dimensions
	}
	if opts.EncodingFormat != "" {
		body["encoding_format"] = opts.EncodingFormat
	}
	if opts.User != "" {
		body["user"] = opts.User
	}
	return &WebRequestData{URL: url, Headers: headers, Payload: body}, nil
}
