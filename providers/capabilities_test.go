package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestResolveCapabilitiesOwnRules(t *testing.T) {
	tests := []struct {
		name      string
		kind      AdapterKind
		id        string
		in, out   int
		reasoning bool
		tools     bool
		json      bool
		input     []Modality
	}{
		{"gpt-4o", KindOpenAI, "gpt-4o", 128_000, 16_384, false, true, true, textImage},
		{"o3-mini reasons", KindOpenAI, "o3-mini", 200_000, 100_000, true, true, true, textImage},
		{"legacy completion model", KindOpenAI, "davinci-002", 4_096, 4_096, false, false, false, textOnly},
		{"claude sonnet", KindAnthropic, "claude-3-5-sonnet-20241022", 200_000, 8_192, false, true, false, textImage},
		{"claude 4 reasons", KindAnthropic, "claude-sonnet-4-20250514", 200_000, 64_000, true, true, false, textImage},
		{"deepseek reasoner", KindDeepSeek, "deepseek-reasoner", 64_000, 8_192, true, true, true, textOnly},
		{"gemini flash", KindGemini, "gemini-2.5-flash", 1_000_000, 16_384, true, true, false, textImage},
		{"glm thinking", KindZhipu, "glm-4.5", 128_000, 32_768, true, true, true, textOnly},
		{"glm air does not think", KindZai, "glm-4.5-air", 128_000, 16_384, false, true, true, textOnly},
		{"nebius provider default", KindNebius, "some/custom-model", 128_000, 8_192, false, true, true, textOnly},
		{"ollama provider default", KindOllama, "my-local-model", 32_768, 8_192, false, true, true, textOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ResolveCapabilities(tt.kind, tt.id)
			assert.Equal(t, tt.id, m.ID)
			assert.Equal(t, tt.kind, m.Provider)
			assert.Equal(t, intPtr(tt.in), m.MaxInputTokens)
			assert.Equal(t, intPtr(tt.out), m.MaxOutputTokens)
			assert.Equal(t, tt.reasoning, m.SupportsReasoning)
			assert.Equal(t, tt.tools, m.SupportsToolCalls)
			assert.Equal(t, tt.json, m.SupportsJSONMode)
			assert.Equal(t, tt.input, m.InputModalities)
			assert.True(t, m.SupportsStreaming)
		})
	}
}

func TestResolveCapabilitiesReasoningEfforts(t *testing.T) {
	assert.Equal(t, allEfforts, ResolveCapabilities(KindOpenAI, "o4-mini").ReasoningEfforts)
	assert.Equal(t, []ReasoningEffortType{EffortHigh}, ResolveCapabilities(KindZhipu, "glm-4.5").ReasoningEfforts)
	assert.Empty(t, ResolveCapabilities(KindOpenAI, "gpt-4o").ReasoningEfforts)

	m := ResolveCapabilities(KindXai, "grok-3-mini")
	assert.True(t, m.SupportsReasoning)
	assert.True(t, m.SupportsReasoningEffort(EffortMedium))
}

// Unknown ids fall through every provider table to the generic default.
func TestResolveCapabilitiesUnknownModel(t *testing.T) {
	for _, kind := range AllAdapterKinds() {
		if kind == KindNebius || kind == KindOllama {
			continue
		}
		t.Run(kind.String(), func(t *testing.T) {
			m := ResolveCapabilities(kind, "zz-unrecognized-model")
			require.NotNil(t, m.MaxInputTokens)
			assert.Equal(t, defaultTokenLimits, TokenLimits{Input: *m.MaxInputTokens, Output: *m.MaxOutputTokens})
			assert.Equal(t, textOnly, m.OutputModalities)
			assert.False(t, m.SupportsReasoning)
			if kind != KindGemini {
				assert.Equal(t, textOnly, m.InputModalities)
			}
			assert.True(t, m.SupportsStreaming)
		})
	}
}

// A model whose name imitates another provider's convention inherits that
// provider's heuristics.
func TestResolveCapabilitiesCrossProviderFallback(t *testing.T) {
	m := ResolveCapabilities(KindFireworks, "claude-3-5-haiku-clone")
	assert.Equal(t, intPtr(200_000), m.MaxInputTokens)
	assert.Equal(t, intPtr(8_192), m.MaxOutputTokens)
	assert.Equal(t, textImage, m.InputModalities)

	// Together's own token table already knows OpenAI ids.
	m = ResolveCapabilities(KindTogether, "gpt-4o-mini")
	assert.Equal(t, intPtr(128_000), m.MaxInputTokens)

	// Provider defaults never answer for another provider: deepseek's own
	// effort default stays with deepseek.
	assert.Empty(t, ResolveCapabilities(KindGroq, "llama-3.1-8b-instant").ReasoningEfforts)
	assert.Equal(t, allEfforts, InferReasoningEfforts(KindDeepSeek, "deepseek-chat"))

	// Groq's qwen rule lends reasoning to the same id served elsewhere.
	assert.True(t, SupportsReasoning(KindFireworks, "qwen/qwen3-32b"))

	// The search runs past OpenAI to the first provider with a matching
	// rule, and the descriptor stays attributed to the queried provider.
	assert.True(t, SupportsReasoning(KindTogether, "claude-sonnet-4"))
	m = ResolveCapabilities(KindTogether, "claude-sonnet-4")
	assert.Equal(t, KindTogether, m.Provider)
	assert.Equal(t, intPtr(64_000), m.MaxOutputTokens)
}

func TestStreamingDisabledForAudioModels(t *testing.T) {
	assert.False(t, SupportsStreaming(KindOpenAI, "whisper-1"))
	assert.False(t, ResolveCapabilities(KindOpenAI, "whisper-1").SupportsToolCalls)
	assert.True(t, SupportsStreaming(KindGroq, "whisper-large-v3"), "groq answers from its own default first")
}

func TestResolveCapabilitiesDeterministic(t *testing.T) {
	a := ResolveCapabilities(KindGemini, "gemini-2.0-flash-live-001")
	b := ResolveCapabilities(KindGemini, "gemini-2.0-flash-live-001")
	assert.Equal(t, a, b)
	assert.Equal(t, textImageAudio, a.InputModalities)

	a.InputModalities[0] = ModalityAudio
	assert.Equal(t, textImageAudio, InferInputModalities(KindGemini, "gemini-2.0-flash-live-001"), "results do not alias the tables")
}

func TestRuleSetLookup(t *testing.T) {
	rs := rules(flag(prefix("a"), true), flag(contains("b"), false))
	v, ok := rs.lookup("abc")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = rs.lookup("xbx")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = rs.lookup("zzz")
	assert.False(t, ok)
	_, ok = rs.lookupOwn("zzz")
	assert.False(t, ok)

	v, ok = rs.orElse(true).lookupOwn("zzz")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestModelLimits(t *testing.T) {
	m := ResolveCapabilities(KindOpenAI, "gpt-4o")
	assert.True(t, m.IsWithinInputLimit(128_000))
	assert.False(t, m.IsWithinInputLimit(128_001))
	assert.True(t, m.IsMultimodal())
	assert.True(t, m.SupportsInputModality(ModalityImage))
	assert.False(t, m.SupportsOutputModality(ModalityAudio))
}
