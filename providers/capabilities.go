package providers

import (
	"slices"
	"strings"
)

// ---------------------------------------------------------------------------
// Capability resolver: heuristics over model ids with provider fallback
// ---------------------------------------------------------------------------

// capabilityPriority is the order in which other providers' tables are
// consulted when the queried provider has no matching rule.
var capabilityPriority = []AdapterKind{
	KindOpenAI,
	KindAnthropic,
	KindCohere,
	KindDeepSeek,
	KindGemini,
	KindGroq,
	KindXai,
	KindNebius,
	KindOllama,
}

// TokenLimits are the maximum input and output token counts.
type TokenLimits struct {
	Input  int
	Output int
}

var defaultTokenLimits = TokenLimits{Input: 4096, Output: 4096}

// ResolveCapabilities derives the full descriptor for a model. It never
// fails and performs no I/O.
func ResolveCapabilities(kind AdapterKind, modelID string) Model {
	limits := InferTokenLimits(kind, modelID)
	m := NewModel(kind, modelID).
		WithMaxInputTokens(limits.Input).
		WithMaxOutputTokens(limits.Output).
		WithInputModalities(InferInputModalities(kind, modelID)...).
		WithOutputModalities(InferOutputModalities(kind, modelID)...).
		WithStreaming(SupportsStreaming(kind, modelID)).
		WithToolCalls(SupportsToolCalls(kind, modelID)).
		WithJSONMode(SupportsJSONMode(kind, modelID))

	if SupportsReasoning(kind, modelID) {
		m = m.WithReasoning(true)
		if efforts := InferReasoningEfforts(kind, modelID); len(efforts) > 0 {
			m = m.WithReasoningEfforts(efforts...)
		}
	}
	return m
}

func InferTokenLimits(kind AdapterKind, modelID string) TokenLimits {
	return resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[TokenLimits] { return t.tokens }, defaultTokenLimits)
}

func SupportsStreaming(kind AdapterKind, modelID string) bool {
	return resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[bool] { return t.streaming }, true)
}

func SupportsToolCalls(kind AdapterKind, modelID string) bool {
	return resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[bool] { return t.toolCalls }, true)
}

func SupportsJSONMode(kind AdapterKind, modelID string) bool {
	return resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[bool] { return t.jsonMode }, false)
}

func SupportsReasoning(kind AdapterKind, modelID string) bool {
	return resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[bool] { return t.reasoning }, false)
}

func InferInputModalities(kind AdapterKind, modelID string) []Modality {
	mods := resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[[]Modality] { return t.inputModalities }, textOnly)
	return slices.Clone(mods)
}

func InferOutputModalities(kind AdapterKind, modelID string) []Modality {
	mods := resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[[]Modality] { return t.outputModalities }, textOnly)
	return slices.Clone(mods)
}

func InferReasoningEfforts(kind AdapterKind, modelID string) []ReasoningEffortType {
	efforts := resolveCapability(kind, modelID, func(t *capabilityTable) ruleSet[[]ReasoningEffortType] { return t.efforts }, nil)
	return slices.Clone(efforts)
}

// resolveCapability consults the queried provider's rules and its own
// default, then the pattern rules of every other provider in priority
// order, then def. Provider defaults never answer for another provider.
func resolveCapability[T any](kind AdapterKind, modelID string, pick func(*capabilityTable) ruleSet[T], def T) T {
	if t, ok := capabilityTables[kind]; ok {
		if v, ok := pick(t).lookupOwn(modelID); ok {
			return v
		}
	}
	for _, other := range capabilityPriority {
		if other == kind {
			continue
		}
		if t, ok := capabilityTables[other]; ok {
			if v, ok := pick(t).lookup(modelID); ok {
				return v
			}
		}
	}
	return def
}

// ---------------------------------------------------------------------------
// Rule primitives
// ---------------------------------------------------------------------------

type matcher func(id string) bool

func prefix(ps ...string) matcher {
	return func(id string) bool { return hasAnyPrefix(id, ps...) }
}

func contains(subs ...string) matcher {
	return func(id string) bool {
		for _, s := range subs {
			if strings.Contains(id, s) {
				return true
			}
		}
		return false
	}
}

func exact(names ...string) matcher {
	return func(id string) bool { return slices.Contains(names, id) }
}

func allOf(ms ...matcher) matcher {
	return func(id string) bool {
		for _, m := range ms {
			if !m(id) {
				return false
			}
		}
		return true
	}
}

func not(m matcher) matcher {
	return func(id string) bool { return !m(id) }
}

type rule[T any] struct {
	match matcher
	value T
}

// ruleSet is an ordered list of rules; the first match wins. The optional
// provider default applies only when the owning provider is queried.
type ruleSet[T any] struct {
	rules      []rule[T]
	hasDefault bool
	ownDefault T
}

func rules[T any](rs ...rule[T]) ruleSet[T] {
	return ruleSet[T]{rules: rs}
}

func (s ruleSet[T]) orElse(v T) ruleSet[T] {
	s.hasDefault = true
	s.ownDefault = v
	return s
}

func (s ruleSet[T]) lookup(id string) (T, bool) {
	for _, r := range s.rules {
		if r.match(id) {
			return r.value, true
		}
	}
	var zero T
	return zero, false
}

func (s ruleSet[T]) lookupOwn(id string) (T, bool) {
	if v, ok := s.lookup(id); ok {
		return v, true
	}
	return s.ownDefault, s.hasDefault
}

type capabilityTable struct {
	tokens           ruleSet[TokenLimits]
	streaming        ruleSet[bool]
	toolCalls        ruleSet[bool]
	jsonMode         ruleSet[bool]
	reasoning        ruleSet[bool]
	inputModalities  ruleSet[[]Modality]
	outputModalities ruleSet[[]Modality]
	efforts          ruleSet[[]ReasoningEffortType]
}
