package providers

import (
	"fmt"
	"slices"
	"strings"
)

// AdapterKind is the provider tag. The set is closed: every value has an
// adapter in Dispatcher.Adapter and a row in the Compat table.
type AdapterKind int

const (
	KindOpenAI AdapterKind = iota + 1
	KindAnthropic
	KindCohere
	KindDeepSeek
	KindFireworks
	KindGemini
	KindGroq
	KindTogether
	KindXai
	KindNebius
	KindOllama
	KindZai
	KindZhipu
	KindCopilot
)

var kindNames = map[AdapterKind]string{
	KindOpenAI:    "openai",
	KindAnthropic: "anthropic",
	KindCohere:    "cohere",
	KindDeepSeek:  "deepseek",
	KindFireworks: "fireworks",
	KindGemini:    "gemini",
	KindGroq:      "groq",
	KindTogether:  "together",
	KindXai:       "xai",
	KindNebius:    "nebius",
	KindOllama:    "ollama",
	KindZai:       "zai",
	KindZhipu:     "zhipu",
	KindCopilot:   "copilot",
}

// AllAdapterKinds returns every supported provider in declaration order.
func AllAdapterKinds() []AdapterKind {
	kinds := make([]AdapterKind, 0, len(kindNames))
	for k := KindOpenAI; k <= KindCopilot; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k AdapterKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("AdapterKind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k AdapterKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k AdapterKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid adapter kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *AdapterKind) UnmarshalText(text []byte) error {
	parsed, err := ParseAdapterKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseAdapterKind maps a lowercase provider name (as used in namespaces and
// config files) to its kind.
func ParseAdapterKind(name string) (AdapterKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, &Error{Type: ErrorTypeValidation, Message: fmt.Sprintf("unknown provider %q", name)}
}

// InferAdapterKind guesses the provider from a bare model name. The rules
// are ordered; anything unrecognized is assumed to be served by a local
// Ollama instance.
func InferAdapterKind(model string) AdapterKind {
	switch {
	case hasAnyPrefix(model, "gpt", "o1", "o3", "o4", "chatgpt", "text-embedding"):
		return KindOpenAI
	case strings.HasPrefix(model, "claude"):
		return KindAnthropic
	case strings.Contains(model, "fireworks"):
		return KindFireworks
	case slices.Contains(compatTable[KindGroq].StaticModels, model):
		return KindGroq
	case hasAnyPrefix(model, "command", "embed-"):
		return KindCohere
	case strings.HasPrefix(model, "gemini"):
		return KindGemini
	case strings.HasPrefix(model, "grok"):
		return KindXai
	case strings.HasPrefix(model, "deepseek"):
		return KindDeepSeek
	case strings.HasPrefix(model, "glm"):
		return KindZhipu
	default:
		return KindOllama
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
