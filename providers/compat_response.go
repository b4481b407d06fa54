package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Response conversion
// ---------------------------------------------------------------------------

type compatResponse struct {
	Model   string          `json:"model"`
	Choices json.RawMessage `json:"choices"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

type compatChoice struct {
	Message      map[string]json.RawMessage `json:"message"`
	FinishReason *string                    `json:"finish_reason"`
}

func (a *compatAdapter) ParseResponse(model ModelIden, body []byte, opts ChatOptions) (*ChatResponse, error) {
	var raw compatResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewMalformedError(a.kind, model.Name, "decode response", err)
	}

	var choices []compatChoice
	if len(raw.Choices) == 0 || string(raw.Choices) == "null" {
		return nil, NewMalformedError(a.kind, model.Name, "response has no choices array", nil)
	}
	if err := json.Unmarshal(raw.Choices, &choices); err != nil {
		return nil, NewMalformedError(a.kind, model.Name, "choices is not an array of objects", err)
	}

	resp := &ChatResponse{
		Model:         model,
		ProviderModel: model,
	}
	if raw.Model != "" {
		resp.ProviderModel = model.WithName(raw.Model)
	}
	if len(raw.Usage) > 0 {
		resp.Usage = parseUsage(raw.Usage, a.compat)
	}
	if opts.captureRawBody() {
		resp.CapturedRawBody = json.RawMessage(append([]byte(nil), body...))
	}

	if len(choices) == 0 {
		return resp, nil
	}
	choice := choices[0]
	if choice.FinishReason != nil {
		resp.FinishReason = NormalizeFinishReason(*choice.FinishReason)
	}

	msg := choice.Message
	reasoning := firstString(msg, "reasoning", "reasoning_content")
	content := extractContent(msg["content"])
	if reasoning == "" && opts.normalizeReasoning() {
		content, reasoning = extractThink(content)
	}
	resp.Content = content
	resp.ReasoningContent = reasoning

	if rawCalls, ok := msg["tool_calls"]; ok {
		calls, err := parseToolCalls(rawCalls)
		if err != nil {
			return nil, NewMalformedError(a.kind, model.Name, "tool calls", err)
		}
		resp.ToolCalls = calls
	}

	return resp, nil
}

// firstString returns the first non-empty string among keys, trimmed.
func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		var s string
		if raw, ok := m[k]; ok && json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractContent handles content that may be a string or a parts array.
func extractContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// extractThink splits an inline <think>...</think> block out of content.
// The block's text becomes the reasoning and the remaining content is
// trimmed. Content without a complete block is returned untouched.
func extractThink(content string) (string, string) {
	const startTag, endTag = "<think>", "</think>"

	start := strings.Index(content, startTag)
	if start < 0 {
		return content, ""
	}
	inner := content[start+len(startTag):]
	end := strings.Index(inner, endTag)
	if end < 0 {
		return content, ""
	}

	reasoning := strings.TrimSpace(inner[:end])
	return strings.TrimSpace(content[:start] + inner[end+len(endTag):]), reasoning
}

// ---------------------------------------------------------------------------
// Shared parsing helpers
// ---------------------------------------------------------------------------

// parseUsage never fails: a usage block that does not decode is reported
// as zero usage rather than breaking the response.
func parseUsage(raw json.RawMessage, c *Compat) Usage {
	var std struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		TotalTokens         int `json:"total_tokens"`
		PromptTokensDetails *struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details,omitempty"`
		CompletionTokensDetails *struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"completion_tokens_details,omitempty"`
	}
	if err := json.Unmarshal(raw, &std); err != nil {
		return Usage{}
	}

	u := Usage{
		PromptTokens:     std.PromptTokens,
		CompletionTokens: std.CompletionTokens,
		TotalTokens:      std.TotalTokens,
	}
	if std.PromptTokensDetails != nil {
		u.CachedTokens = std.PromptTokensDetails.CachedTokens
	}
	if std.CompletionTokensDetails != nil {
		u.ReasoningTokens = std.CompletionTokensDetails.ReasoningTokens
	}
	// xAI reports reasoning tokens outside completion_tokens.
	if c != nil && c.FixReasoningUsage {
		u.CompletionTokens += u.ReasoningTokens
	}
	return u
}

type rawToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// parseToolCalls accepts null as "no calls". Arguments may be an object or
// a JSON document encoded as a string.
func parseToolCalls(raw json.RawMessage) ([]ToolCall, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var items []rawToolCall
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("tool_calls is not an array: %w", err)
	}

	calls := make([]ToolCall, 0, len(items))
	for _, item := range items {
		args, err := decodeArguments(item.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %q: %w", item.Function.Name, err)
		}
		id := item.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		calls = append(calls, ToolCall{CallID: id, FnName: item.Function.Name, FnArguments: args})
	}
	return calls, nil
}

func decodeArguments(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}"), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("arguments are not valid JSON")
		}
		return json.RawMessage(s), nil
	}

	if trimmed[0] != '{' {
		return nil, fmt.Errorf("arguments are not an object")
	}
	return json.RawMessage(trimmed), nil
}

// ---------------------------------------------------------------------------
// Embeddings
// ---------------------------------------------------------------------------

func (a *compatAdapter) ParseEmbedResponse(model ModelIden, body []byte, opts EmbedOptions) (*EmbedResponse, error) {
	var raw struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
		Model string          `json:"model"`
		Usage json.RawMessage `json:"usage,omitempty"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewMalformedError(a.kind, model.Name, "decode embedding response", err)
	}
	if raw.Data == nil {
		return nil, NewMalformedError(a.kind, model.Name, "embedding response has no data array", nil)
	}

	resp := &EmbedResponse{Model: model, ProviderModel: model}
	if raw.Model != "" {
		resp.ProviderModel = model.WithName(raw.Model)
	}
	for _, d := range raw.Data {
		resp.Embeddings = append(resp.Embeddings, Embedding{Index: d.Index, Vector: d.Embedding})
	}
	if isTrue(opts.CaptureUsage) && len(raw.Usage) > 0 {
		u := parseUsage(raw.Usage, a.compat)
		resp.Usage = &u
	}
	if isTrue(opts.CaptureRawBody) {
		resp.CapturedRawBody = json.RawMessage(append([]byte(nil), body...))
	}
	return resp, nil
}
