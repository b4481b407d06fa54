package providers

import "encoding/json"

// ---------------------------------------------------------------------------
// Response-side types: completions, usage and stream events
// ---------------------------------------------------------------------------

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	CachedTokens     int `json:"cached_tokens,omitempty"`
}

// IsZero reports whether no token counts were recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

type ChatResponse struct {
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	FinishReason     string     `json:"finish_reason,omitempty"`
	Usage            Usage      `json:"usage"`

	// Model is the identity that was requested; ProviderModel carries the
	// model name the provider reports having used.
	Model         ModelIden `json:"model"`
	ProviderModel ModelIden `json:"provider_model"`

	// CapturedRawBody is set only when CaptureRawBody was requested.
	CapturedRawBody json.RawMessage `json:"captured_raw_body,omitempty"`
}

// StreamEventKind tags a StreamEvent.
type StreamEventKind int

const (
	StreamStart StreamEventKind = iota
	StreamChunk
	StreamReasoningChunk
	StreamToolCallChunk
	StreamEnd
)

func (k StreamEventKind) String() string {
	switch k {
	case StreamStart:
		return "start"
	case StreamChunk:
		return "chunk"
	case StreamReasoningChunk:
		return "reasoning_chunk"
	case StreamToolCallChunk:
		return "tool_call_chunk"
	case StreamEnd:
		return "end"
	default:
		return "unknown"
	}
}

// StreamEvent is one normalized streaming item. Content is set for chunk
// kinds, ToolCall for StreamToolCallChunk and End for StreamEnd.
type StreamEvent struct {
	Kind     StreamEventKind
	Content  string
	ToolCall *ToolCall
	End      *StreamEndData
}

// StreamEndData is the terminal summary of a stream. Each captured field is
// nil unless the matching capture flag was enabled for the call.
type StreamEndData struct {
	CapturedUsage            *Usage
	CapturedTextContent      *string
	CapturedReasoningContent *string
	CapturedToolCalls        []ToolCall
	FinishReason             string
}

// ---------------------------------------------------------------------------
// FinishReason: canonical values and provider-specific normalization
// ---------------------------------------------------------------------------

const (
	FinishReasonStop     = "stop"
	FinishReasonLength   = "length"
	FinishReasonToolCall = "tool_calls"
	FinishReasonError    = "error"
	FinishReasonSafety   = "safety"
)

// NormalizeFinishReason maps provider-specific stop reasons to canonical constants.
// Unknown values pass through unchanged.
func NormalizeFinishReason(raw string) string {
	switch raw {
	case "stop", "end_turn", "STOP", "stop_sequence", "eos", "COMPLETE":
		return FinishReasonStop
	case "length", "max_tokens", "MAX_TOKENS":
		return FinishReasonLength
	case "tool_calls", "tool_use", "function_call", "TOOL_CALL":
		return FinishReasonToolCall
	case "content_filter", "SAFETY", "sensitive":
		return FinishReasonSafety
	case "error", "insufficient_system_resource", "network_error":
		return FinishReasonError
	default:
		return raw
	}
}
