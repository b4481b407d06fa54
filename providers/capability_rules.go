package providers

// ---------------------------------------------------------------------------
// Capability tables: one row per provider, pure data
// ---------------------------------------------------------------------------

var (
	textOnly       = []Modality{ModalityText}
	textImage      = []Modality{ModalityText, ModalityImage}
	textAudio      = []Modality{ModalityText, ModalityAudio}
	textImageAudio = []Modality{ModalityText, ModalityImage, ModalityAudio}

	allEfforts = []ReasoningEffortType{EffortLow, EffortMedium, EffortHigh, EffortBudget}
)

func limits(in, out int) TokenLimits { return TokenLimits{Input: in, Output: out} }

func tok(m matcher, in, out int) rule[TokenLimits] { return rule[TokenLimits]{m, limits(in, out)} }

func flag(m matcher, v bool) rule[bool] { return rule[bool]{m, v} }

func mods(m matcher, v []Modality) rule[[]Modality] { return rule[[]Modality]{m, v} }

func efforts(m matcher, v []ReasoningEffortType) rule[[]ReasoningEffortType] {
	return rule[[]ReasoningEffortType]{m, v}
}

var (
	openAIFamily    = prefix("gpt-4", "gpt-3.5", "o1", "o3", "o4", "chatgpt")
	openAIReasoning = prefix("o1", "o3", "o4")
	openAIVision    = func(id string) bool {
		return contains("vision")(id) || prefix("gpt-4o", "gpt-4.1", "o1", "o3", "o4")(id)
	}

	claude4Family = contains("claude-4", "claude-opus-4", "claude-sonnet-4")
	xaiReasoning  = exact("grok-4-0709", "grok-3-mini", "grok-3-mini-fast")
	glmThinking   = allOf(contains("glm-4.5"), not(contains("air")))
)

var openAITokenRules = rules(
	tok(prefix("gpt-4.1"), 128_000, 32_768),
	tok(prefix("gpt-4o"), 128_000, 16_384),
	tok(prefix("o3"), 200_000, 100_000),
	tok(prefix("o4"), 200_000, 256_000),
	tok(prefix("o1"), 200_000, 100_000),
	tok(allOf(prefix("gpt-4"), contains("32k")), 32_768, 32_768),
	tok(prefix("gpt-4"), 8_192, 4_096),
	tok(allOf(prefix("gpt-3.5"), contains("16k")), 16_384, 16_384),
	tok(prefix("gpt-3.5"), 4_096, 4_096),
	tok(prefix("chatgpt"), 16_384, 16_384),
)

var glmTokenRules = rules(
	tok(exact("glm-4.5", "glm-4.5-x"), 128_000, 32_768),
	tok(exact("glm-4.5-air", "glm-4.5-airx"), 128_000, 16_384),
	tok(exact("glm-4.5-flash"), 128_000, 8_192),
	tok(exact("glm-4-32b-0414-128k"), 128_000, 32_768),
	tok(prefix("glm-4-plus"), 128_000, 32_768),
	tok(prefix("glm-4-air"), 128_000, 16_384),
	tok(prefix("glm-4-flash"), 128_000, 8_192),
	tok(prefix("glm-4-long"), 1_000_000, 32_768),
	tok(contains("4v"), 128_000, 16_384),
	tok(prefix("glm-z1"), 128_000, 16_384),
	tok(contains("thinking"), 128_000, 32_768),
	tok(prefix("glm-4"), 128_000, 16_384),
	tok(prefix("glm"), 128_000, 8_192),
)

var glmTable = func(t *capabilityTable) {
	t.tokens = glmTokenRules
	t.reasoning = rules(flag(glmThinking, true)).orElse(false)
	t.inputModalities = rules(mods(contains("4v", "vision"), textImage)).orElse(textOnly)
	t.efforts = rules(efforts(glmThinking, []ReasoningEffortType{EffortHigh}))
}

// capabilityTables is built once at init and never mutated.
var capabilityTables = buildCapabilityTables()

func buildCapabilityTables() map[AdapterKind]*capabilityTable {
	tables := make(map[AdapterKind]*capabilityTable, len(kindNames))
	for _, k := range AllAdapterKinds() {
		tables[k] = &capabilityTable{
			streaming: rules[bool]().orElse(true),
			toolCalls: rules[bool]().orElse(true),
			jsonMode:  rules[bool]().orElse(true),
		}
	}

	openai := tables[KindOpenAI]
	openai.tokens = openAITokenRules
	openai.streaming = rules(flag(contains("whisper", "tts", "dall-e"), false)).orElse(true)
	openai.toolCalls = rules(flag(openAIFamily, true)).orElse(false)
	openai.jsonMode = rules(flag(openAIFamily, true)).orElse(false)
	openai.reasoning = rules(flag(openAIReasoning, true)).orElse(false)
	openai.inputModalities = rules(
		mods(allOf(openAIVision, contains("audio")), textImageAudio),
		mods(openAIVision, textImage),
		mods(contains("audio"), textAudio),
	).orElse(textOnly)
	openai.outputModalities = rules(
		mods(contains("tts"), textAudio),
		mods(contains("dall-e"), textImage),
	).orElse(textOnly)
	openai.efforts = rules(efforts(openAIReasoning, allEfforts)).orElse([]ReasoningEffortType{})

	// These ride on OpenAI-style model ids.
	tables[KindCopilot].tokens = openAITokenRules
	tables[KindFireworks].tokens = openAITokenRules
	tables[KindTogether].tokens = openAITokenRules

	anthropic := tables[KindAnthropic]
	anthropic.tokens = rules(
		tok(contains("claude-opus-4"), 200_000, 32_000),
		tok(contains("claude-sonnet-4"), 200_000, 64_000),
		tok(contains("claude-3-7-sonnet"), 200_000, 8_192),
		tok(contains("claude-3-5-sonnet"), 200_000, 8_192),
		tok(contains("claude-3-5-haiku"), 200_000, 8_192),
		tok(contains("claude-3-opus"), 200_000, 4_096),
		tok(contains("claude-3-sonnet"), 200_000, 4_096),
		tok(contains("claude-3-haiku"), 200_000, 4_096),
		tok(contains("claude-2.1"), 200_000, 4_096),
		tok(contains("claude-2.0"), 100_000, 4_096),
		tok(contains("claude-instant"), 100_000, 4_096),
	)
	anthropic.jsonMode = rules[bool]().orElse(false)
	anthropic.reasoning = rules(flag(claude4Family, true)).orElse(false)
	anthropic.inputModalities = rules(
		mods(contains("claude-3", "claude-4", "claude-opus-4", "claude-sonnet-4", "claude-2.1"), textImage),
	).orElse(textOnly)
	anthropic.efforts = rules(efforts(claude4Family, allEfforts))

	cohere := tables[KindCohere]
	cohere.tokens = rules(
		tok(contains("aya-vision-32b"), 128_000, 8_192),
		tok(contains("aya-vision-8b"), 128_000, 4_096),
		tok(contains("aya-expanse-32b"), 128_000, 8_192),
		tok(contains("aya-expanse-8b"), 128_000, 4_096),
		tok(contains("command-a-vision"), 128_000, 4_096),
		tok(contains("command-a"), 128_000, 4_096),
		tok(contains("command-r-plus"), 128_000, 4_096),
		tok(contains("command-r7b"), 128_000, 4_096),
		tok(contains("command-r"), 128_000, 4_096),
		tok(contains("command-light"), 4_096, 4_096),
		tok(contains("command-nightly"), 4_096, 4_096),
		tok(contains("command"), 4_096, 4_096),
	)
	cohere.toolCalls = rules(flag(contains("command-r", "command-a", "command-nightly", "aya-"), true)).orElse(false)
	cohere.jsonMode = rules(
		flag(contains("aya-"), true),
		flag(contains("command-light"), false),
	).orElse(true)
	cohere.inputModalities = rules(mods(contains("vision"), textImage)).orElse(textOnly)

	deepseek := tables[KindDeepSeek]
	deepseek.tokens = rules(tok(exact("deepseek-reasoner", "deepseek-chat"), 64_000, 8_192))
	deepseek.toolCalls = rules(flag(exact("deepseek-chat", "deepseek-reasoner"), true)).orElse(false)
	deepseek.jsonMode = rules(flag(exact("deepseek-chat", "deepseek-reasoner"), true)).orElse(false)
	deepseek.reasoning = rules(flag(contains("reasoner"), true)).orElse(false)
	deepseek.efforts = rules[[]ReasoningEffortType]().orElse(allEfforts)

	gemini := tables[KindGemini]
	gemini.tokens = rules(
		tok(contains("gemini-2.5-pro"), 2_000_000, 32_768),
		tok(contains("gemini-2.5-flash"), 1_000_000, 16_384),
		tok(contains("gemini-2.0-flash"), 1_000_000, 32_768),
		tok(contains("gemini-1.5-pro"), 2_000_000, 8_192),
		tok(contains("gemini-1.5-flash"), 1_000_000, 8_192),
		tok(contains("gemini-1.0-pro"), 30_720, 2_048),
		tok(contains("gemini-exp"), 2_000_000, 8_192),
		tok(contains("embedding"), 2_048, 768),
	)
	gemini.jsonMode = rules[bool]().orElse(false)
	gemini.reasoning = rules(flag(contains("thinking", "2.5"), true)).orElse(false)
	gemini.inputModalities = rules(
		mods(contains("embedding"), textOnly),
		mods(contains("2.0-flash-live"), textImageAudio),
	).orElse(textImage)
	gemini.efforts = rules[[]ReasoningEffortType]().orElse(allEfforts)

	groq := tables[KindGroq]
	groq.tokens = rules(
		tok(contains("moonshotai/kimi-k2-instruct"), 131_072, 16_384),
		tok(contains("qwen/qwen3-32b"), 128_000, 32_768),
		tok(contains("llama-3.3-70b-versatile"), 128_000, 32_768),
		tok(contains("llama-3.1-8b-instant"), 131_072, 131_072),
		tok(contains("gemma2-9b-it"), 8_192, 8_192),
		tok(contains("meta-llama/llama-guard-4-12b"), 131_072, 1_024),
		tok(contains("deepseek-r1-distill-llama-70b"), 128_000, 32_768),
		tok(contains("meta-llama/llama-4-maverick-17b-128e-instruct"), 131_072, 8_192),
		tok(contains("meta-llama/llama-4-scout-17b-16e-instruct"), 131_072, 8_192),
		tok(contains("meta-llama/llama-prompt-guard-2"), 512, 512),
		tok(contains("llama-3.1-405b-reasoning"), 131_072, 32_768),
		tok(contains("llama-3.1-70b-versatile"), 131_072, 32_768),
		tok(contains("llama-3.2-90b-vision"), 131_072, 32_768),
		tok(contains("llama-3.2-11b-vision"), 131_072, 16_384),
		tok(contains("llama-3.2-3b-preview"), 131_072, 32_768),
		tok(contains("llama-3.2-1b-preview"), 131_072, 32_768),
		tok(contains("mixtral-8x7b-32768"), 32_768, 32_768),
		tok(contains("llama3-70b-8192"), 8_192, 8_192),
		tok(contains("llama-guard-3-8b"), 8_192, 8_192),
		tok(contains("gemma-7b-it"), 8_192, 8_192),
	)
	groq.reasoning = rules(flag(contains("qwen3-32b"), true)).orElse(false)
	groq.inputModalities = rules(mods(contains("vision", "llama-3.2-90b", "llama-3.2-11b"), textImage)).orElse(textOnly)
	groq.efforts = rules(efforts(contains("qwen3-32b"), allEfforts))

	xai := tables[KindXai]
	xai.tokens = rules(
		tok(exact("grok-4-0709"), 256_000, 32_768),
		tok(exact("grok-3"), 131_072, 32_768),
		tok(exact("grok-3-mini"), 131_072, 16_384),
		tok(exact("grok-3-fast"), 131_072, 32_768),
		tok(exact("grok-3-mini-fast"), 131_072, 8_192),
		tok(exact("grok-2-vision-1212"), 32_768, 8_192),
		tok(contains("grok-4"), 256_000, 32_768),
		tok(contains("grok-3"), 131_072, 32_768),
		tok(contains("grok"), 131_072, 32_768),
	)
	xai.reasoning = rules(flag(xaiReasoning, true)).orElse(false)
	xai.inputModalities = rules(
		mods(func(id string) bool { return id == "grok-4-0709" || contains("grok-2-vision-1212")(id) }, textImage),
	).orElse(textOnly)
	xai.efforts = rules(efforts(xaiReasoning, allEfforts))

	tables[KindNebius].tokens = rules[TokenLimits]().orElse(limits(128_000, 8_192))
	tables[KindOllama].tokens = rules[TokenLimits]().orElse(limits(32_768, 8_192))

	glmTable(tables[KindZai])
	glmTable(tables[KindZhipu])

	return tables
}
