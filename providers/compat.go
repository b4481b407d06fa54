package providers

import (
	"context"
	"os"
	"slices"
	"strings"
)

// ---------------------------------------------------------------------------
// Compat: captures all behavioral differences between OpenAI-compatible providers
// ---------------------------------------------------------------------------

// Compat configures how one provider differs from the standard OpenAI Chat
// Completions surface. Zero values select the common defaults so a minimal
// row works for simple providers.
type Compat struct {
	// BaseURL is the default endpoint. BaseURLEnv, when set and present in
	// the environment, replaces it.
	BaseURL    string
	BaseURLEnv string

	// APIKeyEnv names the default credential variable. LiteralKey is used
	// instead for local servers that accept any token.
	APIKeyEnv  string
	LiteralKey string

	// AuthHeader replaces "Authorization: Bearer <key>" with "<AuthHeader>: <key>".
	AuthHeader string

	// Headers are sent with every request to this provider.
	Headers map[string]string

	// NamespaceEndpoints maps an explicit model namespace to a dedicated
	// base URL.
	NamespaceEndpoints map[string]string

	// --- Listing ---

	// StaticModels is returned when there is no discovery endpoint or the
	// live call fails.
	StaticModels []string

	// LiveListing queries GET {base}/models.
	LiveListing bool

	// ListingFilter keeps only the ids it returns true for.
	ListingFilter func(id string) bool

	// --- Request body ---

	SupportsEmbed bool

	// InferReasoningFromName parses a "-low|-medium|-high" model-name suffix
	// into the reasoning effort when the call sets none.
	InferReasoningFromName bool

	// SupportsReasoningEffort sends the "reasoning_effort" keyword.
	SupportsReasoningEffort bool

	// StreamUsage sends stream_options.include_usage when usage is captured.
	StreamUsage bool

	// SupportsJSONSchema enables full json_schema in response_format.
	// Without it a schema request degrades to json_object.
	SupportsJSONSchema bool

	// JSONSchemaToPrompt also writes the schema into the system prompt.
	JSONSchemaToPrompt bool

	// --- Response parsing ---

	// FixReasoningUsage adds reasoning tokens to completion tokens for
	// providers that leave them out.
	FixReasoningUsage bool
}

// ---------------------------------------------------------------------------
// Provider table
// ---------------------------------------------------------------------------

var glmModels = []string{
	"glm-4.5", "glm-4.5-x", "glm-4.5-air", "glm-4.5-airx", "glm-4.5-flash",
	"glm-4-32b-0414-128k", "glm-4-plus",
	"glm-4-air", "glm-4-airx", "glm-4-flash", "glm-4-long",
	"glm-4v-plus-0111", "glm-4v-flash",
	"glm-z1-air", "glm-z1-airx", "glm-z1-flash", "glm-z1-flashx",
	"glm-4.1v-thinking-flash", "glm-4.1v-thinking-flashx",
}

// zai serves a few models before the mainland endpoint does.
var zaiModels = append([]string{
	"glm-4.6", "glm-4.5v", "glm-4-air-250414", "glm-4-flashx-250414", "glm-4-flash-250414",
}, glmModels...)

var compatTable = map[AdapterKind]*Compat{
	KindOpenAI: {
		BaseURL:    "https://api.openai.com/v1/",
		BaseURLEnv: "OPENAI_BASE_URL",
		APIKeyEnv:  "OPENAI_API_KEY",
		StaticModels: []string{
			"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano", "o4-mini", "gpt-4o", "gpt-4o-mini", "o3-mini",
		},
		LiveListing:             true,
		ListingFilter:           isOpenAIChatModel,
		SupportsEmbed:           true,
		InferReasoningFromName:  true,
		SupportsReasoningEffort: true,
		StreamUsage:             true,
		SupportsJSONSchema:      true,
	},
	KindAnthropic: {
		BaseURL:    "https://api.anthropic.com/v1/",
		APIKeyEnv:  "ANTHROPIC_API_KEY",
		AuthHeader: "x-api-key",
		Headers:    map[string]string{"anthropic-version": "2023-06-01"},
		StaticModels: []string{
			"claude-opus-4-1-20250805", "claude-opus-4-20250514", "claude-sonnet-4-20250514",
			"claude-3-7-sonnet-latest", "claude-3-5-haiku-latest",
		},
		LiveListing:        true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
	KindCohere: {
		BaseURL:   "https://api.cohere.ai/compatibility/v1/",
		APIKeyEnv: "COHERE_API_KEY",
		StaticModels: []string{
			"command-a-03-2025", "command-r-plus", "command-r", "command-r7b-12-2024", "embed-v4.0",
		},
		LiveListing:        true,
		SupportsEmbed:      true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
	KindDeepSeek: {
		BaseURL:       "https://api.deepseek.com/v1/",
		APIKeyEnv:     "DEEPSEEK_API_KEY",
		StaticModels:  []string{"deepseek-chat", "deepseek-reasoner"},
		LiveListing:   true,
		SupportsEmbed: true,
		StreamUsage:   true,
	},
	KindFireworks: {
		BaseURL:            "https://api.fireworks.ai/inference/v1/",
		APIKeyEnv:          "FIREWORKS_API_KEY",
		LiveListing:        true,
		SupportsEmbed:      true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
	KindGemini: {
		BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai/",
		APIKeyEnv: "GEMINI_API_KEY",
		StaticModels: []string{
			"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash",
		},
		LiveListing:             true,
		SupportsEmbed:           true,
		SupportsReasoningEffort: true,
		StreamUsage:             true,
		SupportsJSONSchema:      true,
	},
	KindGroq: {
		BaseURL:   "https://api.groq.com/openai/v1/",
		APIKeyEnv: "GROQ_API_KEY",
		StaticModels: []string{
			"moonshotai/kimi-k2-instruct",
			"qwen/qwen3-32b",
			"llama-3.3-70b-versatile",
			"llama-3.1-8b-instant",
			"gemma2-9b-it",
			"meta-llama/llama-guard-4-12b",
			"deepseek-r1-distill-llama-70b",
			"meta-llama/llama-4-maverick-17b-128e-instruct",
			"meta-llama/llama-4-scout-17b-16e-instruct",
			"meta-llama/llama-prompt-guard-2-22m",
			"meta-llama/llama-prompt-guard-2-86m",
			"llama-3.1-405b-reasoning",
			"llama-3.1-70b-versatile",
			"llama-3.2-90b-vision-preview",
			"llama-3.2-11b-vision-preview",
			"llama-3.2-3b-preview",
			"llama-3.2-1b-preview",
			"mixtral-8x7b-32768",
			"llama3-70b-8192",
			"llama-guard-3-8b",
			"gemma-7b-it",
		},
		LiveListing: true,
		ListingFilter: func(id string) bool {
			return !strings.Contains(id, "whisper") && !strings.Contains(id, "embedding")
		},
		SupportsReasoningEffort: true,
		StreamUsage:             true,
		SupportsJSONSchema:      true,
	},
	KindTogether: {
		BaseURL:            "https://api.together.xyz/v1/",
		APIKeyEnv:          "TOGETHER_API_KEY",
		LiveListing:        true,
		SupportsEmbed:      true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
	KindXai: {
		BaseURL:   "https://api.x.ai/v1/",
		APIKeyEnv: "XAI_API_KEY",
		StaticModels: []string{
			"grok-4-0709", "grok-3", "grok-3-mini", "grok-3-fast", "grok-3-mini-fast", "grok-2-vision-1212",
		},
		LiveListing: true,
		ListingFilter: func(id string) bool {
			return !strings.Contains(id, "embedding") && !strings.Contains(id, "image")
		},
		SupportsEmbed:           true,
		SupportsReasoningEffort: true,
		StreamUsage:             true,
		SupportsJSONSchema:      true,
		FixReasoningUsage:       true,
	},
	KindNebius: {
		BaseURL:            "https://api.studio.nebius.ai/v1/",
		APIKeyEnv:          "NEBIUS_API_KEY",
		LiveListing:        true,
		SupportsEmbed:      true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
	KindOllama: {
		BaseURL:            "http://localhost:11434/v1/",
		LiteralKey:         "ollama",
		LiveListing:        true,
		SupportsEmbed:      true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
	KindZai: {
		BaseURL:   "https://api.z.ai/api/paas/v4/",
		APIKeyEnv: "ZAI_API_KEY",
		NamespaceEndpoints: map[string]string{
			"zai": "https://api.z.ai/api/coding/paas/v4/",
		},
		StaticModels:       zaiModels,
		SupportsEmbed:      true,
		StreamUsage:        true,
		JSONSchemaToPrompt: true,
	},
	KindZhipu: {
		BaseURL:            "https://open.bigmodel.cn/api/paas/v4/",
		APIKeyEnv:          "ZHIPU_API_KEY",
		StaticModels:       glmModels,
		SupportsEmbed:      true,
		StreamUsage:        true,
		JSONSchemaToPrompt: true,
	},
	KindCopilot: {
		BaseURL:   "https://api.githubcopilot.com",
		APIKeyEnv: "COPILOT_API_TOKEN",
		Headers: map[string]string{
			"Copilot-Integration-Id": "vscode-chat",
			"Editor-Version":         "vscode/1.103.2",
			"X-Initiator":            "user",
		},
		StaticModels:       []string{"gpt-4o", "gpt-4o-mini", "claude-3.5-sonnet", "o1-mini", "o1-preview"},
		LiveListing:        true,
		StreamUsage:        true,
		SupportsJSONSchema: true,
	},
}

// isOpenAIChatModel keeps the chat and reasoning families out of the much
// longer /models listing (embeddings, tts, dall-e, moderation...).
func isOpenAIChatModel(id string) bool {
	if hasAnyPrefix(id, "gpt", "chatgpt") {
		return true
	}
	return len(id) > 1 && id[0] == 'o' && id[1] >= '0' && id[1] <= '9'
}

// StaticModelNames returns the built-in model table for kind.
func StaticModelNames(kind AdapterKind) []string {
	if c, ok := compatTable[kind]; ok {
		return slices.Clone(c.StaticModels)
	}
	return nil
}

// ---------------------------------------------------------------------------
// compatAdapter: the parameterized adapter for every OpenAI-compatible provider
// ---------------------------------------------------------------------------

type compatAdapter struct {
	kind   AdapterKind
	compat *Compat
	deps   Deps
}

func newCompatAdapter(kind AdapterKind, deps Deps) *compatAdapter {
	return &compatAdapter{kind: kind, compat: compatTable[kind], deps: deps}
}

func (a *compatAdapter) sealed() {}

func (a *compatAdapter) Kind() AdapterKind { return a.kind }

func (a *compatAdapter) DefaultAuth() AuthData {
	switch {
	case a.compat.LiteralKey != "":
		return AuthFromKey(a.compat.LiteralKey)
	case a.compat.APIKeyEnv != "":
		return AuthFromEnv(a.compat.APIKeyEnv)
	default:
		return NoAuth()
	}
}

func (a *compatAdapter) DefaultEndpoint() Endpoint {
	base := a.compat.BaseURL
	if a.compat.BaseURLEnv != "" {
		if v := strings.TrimSpace(os.Getenv(a.compat.BaseURLEnv)); v != "" {
			base = v
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
		}
	}
	return NewEndpoint(base)
}

func (a *compatAdapter) ServiceURL(model ModelIden, service ServiceType, endpoint Endpoint) (string, error) {
	var suffix string
	switch service {
	case ServiceChat, ServiceChatStream:
		suffix = "chat/completions"
	case ServiceEmbed:
		if !a.compat.SupportsEmbed {
			return "", NewUnsupportedError(a.kind, "embeddings are not supported")
		}
		suffix = "embeddings"
	case ServiceModels:
		suffix = "models"
	default:
		return "", NewUnsupportedError(a.kind, "unknown service "+service.String())
	}
	return endpoint.JoinURL(suffix)
}

// headers builds the header set for one call: provider headers, then the
// credential, then endpoint headers, then per-call extras.
func (a *compatAdapter) headers(target ServiceTarget, extra map[string]string) (map[string]string, error) {
	key, err := target.Auth.Resolve(a.kind)
	if err != nil {
		return nil, err
	}

	h := make(map[string]string, len(a.compat.Headers)+len(target.Endpoint.Headers)+len(extra)+1)
	for k, v := range a.compat.Headers {
		h[k] = v
	}
	if key != "" {
		if a.compat.AuthHeader != "" {
			h[a.compat.AuthHeader] = key
		} else {
			h["Authorization"] = "Bearer " + key
		}
	}
	for k, v := range target.Endpoint.Headers {
		h[k] = v
	}
	for k, v := range extra {
		h[k] = v
	}
	return h, nil
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

func (a *compatAdapter) ListModelNames(ctx context.Context, target ServiceTarget) ([]string, ListingSource) {
	if names, ok := a.fetchModelIDs(ctx, target, nil); ok {
		return names, SourceLive
	}
	return StaticModelNames(a.kind), SourceStatic
}

func (a *compatAdapter) ListModels(ctx context.Context, target ServiceTarget) ([]Model, ListingSource) {
	if data, ok := a.fetchModelData(ctx, target, nil); ok {
		models := make([]Model, 0, len(data))
		for _, item := range data {
			m := ResolveCapabilities(a.kind, item.ID)
			for k, v := range item.Raw {
				if k != "id" && v != nil {
					m = m.WithAdditionalProperty(k, v)
				}
			}
			models = append(models, m)
		}
		return models, SourceLive
	}
	return StaticModels(a.kind), SourceStatic
}

// StaticModels returns the built-in model table for kind with resolved
// capabilities.
func StaticModels(kind AdapterKind) []Model {
	names := compatTable[kind].StaticModels
	models := make([]Model, 0, len(names))
	for _, name := range names {
		models = append(models, ResolveCapabilities(kind, name))
	}
	return models
}

// fetchModelIDs runs the live listing. ok is false on any failure, or when
// the provider has no listing endpoint or returned nothing usable.
func (a *compatAdapter) fetchModelIDs(ctx context.Context, target ServiceTarget, extra map[string]string) ([]string, bool) {
	data, ok := a.fetchModelData(ctx, target, extra)
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(data))
	for _, item := range data {
		ids = append(ids, item.ID)
	}
	return ids, true
}

type listedModel struct {
	ID  string
	Raw map[string]any
}

func (a *compatAdapter) fetchModelData(ctx context.Context, target ServiceTarget, extra map[string]string) ([]listedModel, bool) {
	if !a.compat.LiveListing {
		return nil, false
	}
	log := a.deps.Logger.With("provider", a.kind.String())

	url, err := a.ServiceURL(target.Model, ServiceModels, target.Endpoint)
	if err != nil {
		log.Debug("model listing unavailable", "error", err)
		return nil, false
	}
	headers, err := a.headers(target, extra)
	if err != nil {
		log.Debug("model listing without credential", "error", err)
		return nil, false
	}

	resp, err := a.deps.Transport.DoGet(ctx, url, headers)
	if err != nil {
		log.Debug("model listing failed", "url", url, "error", err)
		return nil, false
	}

	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		log.Debug("model listing decode failed", "error", err)
		return nil, false
	}

	out := make([]listedModel, 0, len(payload.Data))
	for _, item := range payload.Data {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		if a.compat.ListingFilter != nil && !a.compat.ListingFilter(id) {
			continue
		}
		out = append(out, listedModel{ID: id, Raw: item})
	}
	if len(out) == 0 {
		log.Debug("model listing empty")
		return nil, false
	}
	return out, true
}
