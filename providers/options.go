package providers

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Reasoning effort
// ---------------------------------------------------------------------------

// ReasoningEffortType is the level family, shared with capability descriptors.
type ReasoningEffortType int

const (
	EffortLow ReasoningEffortType = iota + 1
	EffortMedium
	EffortHigh
	EffortBudget
)

func (t ReasoningEffortType) String() string {
	switch t {
	case EffortLow:
		return "low"
	case EffortMedium:
		return "medium"
	case EffortHigh:
		return "high"
	case EffortBudget:
		return "budget"
	default:
		return fmt.Sprintf("ReasoningEffortType(%d)", int(t))
	}
}

func (t ReasoningEffortType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ReasoningEffortType) UnmarshalText(text []byte) error {
	for _, v := range []ReasoningEffortType{EffortLow, EffortMedium, EffortHigh, EffortBudget} {
		if v.String() == string(text) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown reasoning effort type %q", text)
}

// ReasoningEffort is a concrete effort request. Budget is meaningful only for
// EffortBudget.
type ReasoningEffort struct {
	Type   ReasoningEffortType
	Budget uint32
}

var (
	ReasoningLow    = ReasoningEffort{Type: EffortLow}
	ReasoningMedium = ReasoningEffort{Type: EffortMedium}
	ReasoningHigh   = ReasoningEffort{Type: EffortHigh}
)

// ReasoningBudget requests a token budget instead of a level.
func ReasoningBudget(tokens uint32) ReasoningEffort {
	return ReasoningEffort{Type: EffortBudget, Budget: tokens}
}

// Keyword returns the wire keyword for level efforts. Budgets have none.
func (e ReasoningEffort) Keyword() (string, bool) {
	switch e.Type {
	case EffortLow, EffortMedium, EffortHigh:
		return e.Type.String(), true
	default:
		return "", false
	}
}

func (e ReasoningEffort) String() string {
	if e.Type == EffortBudget {
		return strconv.FormatUint(uint64(e.Budget), 10)
	}
	return e.Type.String()
}

// ParseReasoningEffort accepts "low", "medium", "high" or a token budget.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "low":
		return ReasoningLow, nil
	case "medium":
		return ReasoningMedium, nil
	case "high":
		return ReasoningHigh, nil
	default:
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return ReasoningEffort{}, fmt.Errorf("invalid reasoning effort %q", s)
		}
		return ReasoningBudget(uint32(n)), nil
	}
}

// reasoningEffortFromModelName splits a "-low|-medium|-high" suffix off a
// model name, e.g. "o3-mini-high" -> (High, "o3-mini").
func reasoningEffortFromModelName(name string) (*ReasoningEffort, string) {
	for _, e := range []ReasoningEffort{ReasoningLow, ReasoningMedium, ReasoningHigh} {
		suffix := "-" + e.Type.String()
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			effort := e
			return &effort, trimmed
		}
	}
	return nil, name
}

// ---------------------------------------------------------------------------
// Response format
// ---------------------------------------------------------------------------

type ResponseFormatType int

const (
	ResponseFormatJSONObject ResponseFormatType = iota + 1
	ResponseFormatJSONSchema
)

// ResponseFormat requests JSON mode or schema-constrained output.
type ResponseFormat struct {
	Type        ResponseFormatType
	Name        string
	Description string
	Schema      any
}

func JSONMode() *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatJSONObject}
}

func JSONSchemaFormat(name, description string, schema any) *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatJSONSchema, Name: name, Description: description, Schema: schema}
}

// ---------------------------------------------------------------------------
// ChatOptions
// ---------------------------------------------------------------------------

// ChatOptions are per-call settings. Nil fields are unset; Merge fills them
// from client-level defaults.
type ChatOptions struct {
	CaptureContent            *bool
	CaptureUsage              *bool
	CaptureReasoningContent   *bool
	CaptureToolCalls          *bool
	CaptureRawBody            *bool
	NormalizeReasoningContent *bool

	Temperature     *float64
	TopP            *float64
	MaxTokens       *int
	StopSequences   []string
	Seed            *int64
	ReasoningEffort *ReasoningEffort
	ResponseFormat  *ResponseFormat
	ExtraHeaders    map[string]string
}

// Merge returns o with every unset field taken from defaults.
func (o ChatOptions) Merge(defaults ChatOptions) ChatOptions {
	o.CaptureContent = firstSet(o.CaptureContent, defaults.CaptureContent)
	o.CaptureUsage = firstSet(o.CaptureUsage, defaults.CaptureUsage)
	o.CaptureReasoningContent = firstSet(o.CaptureReasoningContent, defaults.CaptureReasoningContent)
	o.CaptureToolCalls = firstSet(o.CaptureToolCalls, defaults.CaptureToolCalls)
	o.CaptureRawBody = firstSet(o.CaptureRawBody, defaults.CaptureRawBody)
	o.NormalizeReasoningContent = firstSet(o.NormalizeReasoningContent, defaults.NormalizeReasoningContent)
	o.Temperature = firstSet(o.Temperature, defaults.Temperature)
	o.TopP = firstSet(o.TopP, defaults.TopP)
	o.MaxTokens = firstSet(o.MaxTokens, defaults.MaxTokens)
	o.Seed = firstSet(o.Seed, defaults.Seed)
	o.ReasoningEffort = firstSet(o.ReasoningEffort, defaults.ReasoningEffort)
	o.ResponseFormat = firstSet(o.ResponseFormat, defaults.ResponseFormat)
	if o.StopSequences == nil {
		o.StopSequences = defaults.StopSequences
	}
	if len(defaults.ExtraHeaders) > 0 {
		headers := maps.Clone(defaults.ExtraHeaders)
		maps.Copy(headers, o.ExtraHeaders)
		o.ExtraHeaders = headers
	}
	return o
}

func (o ChatOptions) WithCaptureContent(v bool) ChatOptions   { o.CaptureContent = &v; return o }
func (o ChatOptions) WithCaptureUsage(v bool) ChatOptions     { o.CaptureUsage = &v; return o }
func (o ChatOptions) WithCaptureReasoning(v bool) ChatOptions { o.CaptureReasoningContent = &v; return o }
func (o ChatOptions) WithCaptureToolCalls(v bool) ChatOptions { o.CaptureToolCalls = &v; return o }
func (o ChatOptions) WithCaptureRawBody(v bool) ChatOptions   { o.CaptureRawBody = &v; return o }
func (o ChatOptions) WithNormalizeReasoning(v bool) ChatOptions {
	o.NormalizeReasoningContent = &v
	return o
}
func (o ChatOptions) WithTemperature(v float64) ChatOptions { o.Temperature = &v; return o }
func (o ChatOptions) WithTopP(v float64) ChatOptions        { o.TopP = &v; return o }
func (o ChatOptions) WithMaxTokens(v int) ChatOptions       { o.MaxTokens = &v; return o }
func (o ChatOptions) WithSeed(v int64) ChatOptions          { o.Seed = &v; return o }
func (o ChatOptions) WithStopSequences(v ...string) ChatOptions {
	o.StopSequences = v
	return o
}
func (o ChatOptions) WithReasoningEffort(e ReasoningEffort) ChatOptions {
	o.ReasoningEffort = &e
	return o
}
func (o ChatOptions) WithResponseFormat(f *ResponseFormat) ChatOptions {
	o.ResponseFormat = f
	return o
}
func (o ChatOptions) WithExtraHeader(key, value string) ChatOptions {
	headers := make(map[string]string, len(o.ExtraHeaders)+1)
	maps.Copy(headers, o.ExtraHeaders)
	headers[key] = value
	o.ExtraHeaders = headers
	return o
}

func (o ChatOptions) captureContent() bool   { return isTrue(o.CaptureContent) }
func (o ChatOptions) captureUsage() bool     { return isTrue(o.CaptureUsage) }
func (o ChatOptions) captureReasoning() bool { return isTrue(o.CaptureReasoningContent) }
func (o ChatOptions) captureToolCalls() bool { return isTrue(o.CaptureToolCalls) }
func (o ChatOptions) captureRawBody() bool   { return isTrue(o.CaptureRawBody) }
func (o ChatOptions) normalizeReasoning() bool {
	return isTrue(o.NormalizeReasoningContent)
}

func firstSet[T any](v, fallback *T) *T {
	if v != nil {
		return v
	}
	return fallback
}

func isTrue(b *bool) bool { return b != nil && *b }
