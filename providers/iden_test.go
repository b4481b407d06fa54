package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voocel/unillm/transport"
)

func TestParseModelIden(t *testing.T) {
	tests := []struct {
		in   string
		want ModelIden
	}{
		{"gpt-4o", ModelIden{Kind: KindOpenAI, Name: "gpt-4o"}},
		{"o3-mini-high", ModelIden{Kind: KindOpenAI, Name: "o3-mini-high"}},
		{"claude-3-5-haiku-latest", ModelIden{Kind: KindAnthropic, Name: "claude-3-5-haiku-latest"}},
		{"accounts/fireworks/models/llama-v3p1-8b", ModelIden{Kind: KindFireworks, Name: "accounts/fireworks/models/llama-v3p1-8b"}},
		{"llama-3.1-8b-instant", ModelIden{Kind: KindGroq, Name: "llama-3.1-8b-instant"}},
		{"command-r-plus", ModelIden{Kind: KindCohere, Name: "command-r-plus"}},
		{"gemini-2.5-flash", ModelIden{Kind: KindGemini, Name: "gemini-2.5-flash"}},
		{"grok-3", ModelIden{Kind: KindXai, Name: "grok-3"}},
		{"deepseek-chat", ModelIden{Kind: KindDeepSeek, Name: "deepseek-chat"}},
		{"glm-4.5", ModelIden{Kind: KindZhipu, Name: "glm-4.5"}},
		{"llama3.2", ModelIden{Kind: KindOllama, Name: "llama3.2"}},
		{"zai::glm-4.6", ModelIden{Kind: KindZai, Name: "glm-4.6", Namespace: "zai"}},
		{"  together::meta-llama/Llama-3-8b  ", ModelIden{Kind: KindTogether, Name: "meta-llama/Llama-3-8b", Namespace: "together"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModelIden(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseModelIdenErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "nope::model", "openai::"} {
		_, err := ParseModelIden(in)
		assert.True(t, IsValidation(err), "%q", in)
	}
}

func TestModelIdenString(t *testing.T) {
	iden := NewModelIden(KindGroq, "gemma2-9b-it")
	assert.Equal(t, "groq::gemma2-9b-it", iden.String())
	assert.Equal(t, "groq::llama3-70b-8192", iden.WithName("llama3-70b-8192").String())
	assert.Equal(t, "gemma2-9b-it", iden.Name, "WithName returns a copy")
}

func TestAdapterKindText(t *testing.T) {
	for _, kind := range AllAdapterKinds() {
		text, err := kind.MarshalText()
		require.NoError(t, err)

		var back AdapterKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, kind, back)
	}

	_, err := AdapterKind(0).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "AdapterKind(0)", AdapterKind(0).String())

	k, err := ParseAdapterKind(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, k)
	assert.Len(t, AllAdapterKinds(), 14)
}

func TestAuthData(t *testing.T) {
	t.Setenv("UNILLM_TEST_KEY", " secret ")

	auth := AuthFromEnv("UNILLM_TEST_KEY")
	key, err := auth.Resolve(KindOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
	assert.Equal(t, "env:UNILLM_TEST_KEY", auth.String())

	mat, err := auth.Materialize(KindOpenAI)
	require.NoError(t, err)
	assert.Empty(t, mat.EnvName())
	assert.Equal(t, "key:***", mat.String())

	_, err = AuthFromEnv("UNILLM_TEST_MISSING").Materialize(KindGroq)
	require.Error(t, err)
	assert.True(t, IsCredentialMissing(err))
	assert.Contains(t, err.Error(), "environment variable UNILLM_TEST_MISSING")
	assert.Contains(t, err.Error(), "[groq:")

	_, err = AuthFromKey("").Resolve(KindGroq)
	assert.True(t, IsCredentialMissing(err))

	key, err = NoAuth().Resolve(KindOllama)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.True(t, AuthData{}.IsNone())
}

func TestEndpointJoinURL(t *testing.T) {
	tests := []struct {
		name string
		ep   Endpoint
		want string
	}{
		{"trailing slash", NewEndpoint("https://api.example.com/v1/"), "https://api.example.com/v1/chat/completions"},
		{"no trailing slash", NewEndpoint("https://api.example.com/v1"), "https://api.example.com/v1/chat/completions"},
		{"host only", NewEndpoint("https://api.example.com"), "https://api.example.com/chat/completions"},
		{"base query kept", NewEndpoint("https://api.example.com/v1?api-version=2024"), "https://api.example.com/v1/chat/completions?api-version=2024"},
		{"query merged", Endpoint{BaseURL: "https://api.example.com/v1/", Query: map[string]string{"key": "k"}}, "https://api.example.com/v1/chat/completions?key=k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ep.JoinURL("/chat/completions")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewEndpoint("not a url").JoinURL("models")
	assert.True(t, IsValidation(err))
}

func TestEndpointWithHeaderCopies(t *testing.T) {
	base := NewEndpoint("https://x").WithHeader("A", "1")
	derived := base.WithHeader("B", "2")
	assert.Equal(t, map[string]string{"A": "1"}, base.Headers)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, derived.Headers)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestNewTransportError(t *testing.T) {
	assert.Nil(t, NewTransportError(KindOpenAI, nil))

	err := NewTransportError(KindOpenAI, &transport.StatusError{StatusCode: http.StatusServiceUnavailable, Body: []byte("busy")})
	assert.True(t, IsTransportFailure(err))
	assert.True(t, IsRetryableError(err))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	var se *transport.StatusError
	assert.True(t, errors.As(err, &se), "the transport error stays in the chain")

	err = NewTransportError(KindOpenAI, &transport.StatusError{StatusCode: http.StatusBadRequest})
	assert.False(t, IsRetryableError(err))

	err = NewTransportError(KindGroq, fmt.Errorf("dial: %w", timeoutErr{}))
	assert.True(t, IsTransportFailure(err))
	assert.True(t, IsRetryableError(err))

	err = NewTransportError(KindGroq, context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsRetryableError(err))

	existing := NewMalformedError(KindGroq, "m", "bad", nil)
	assert.Same(t, existing, NewTransportError(KindGroq, existing))
}

func TestErrorCategoriesAreDistinct(t *testing.T) {
	errs := map[string]error{
		"unsupported": NewUnsupportedError(KindAnthropic, "embeddings are not supported"),
		"malformed":   NewMalformedError(KindOpenAI, "gpt-4o", "no choices", nil),
		"decode":      NewStreamDecodeError(KindOpenAI, "gpt-4o", errors.New("eof")),
		"validation":  NewValidationError(KindOpenAI, "empty"),
		"credential":  NewCredentialError(KindOpenAI, "environment variable OPENAI_API_KEY"),
		"transport":   NewHTTPError(KindOpenAI, 502, "bad gateway"),
	}
	checks := map[string]func(error) bool{
		"unsupported": IsUnsupported,
		"malformed":   IsMalformed,
		"decode":      IsStreamDecode,
		"validation":  IsValidation,
		"credential":  IsCredentialMissing,
		"transport":   IsTransportFailure,
	}
	for name, err := range errs {
		for checkName, check := range checks {
			assert.Equal(t, name == checkName, check(err), "%s vs %s", name, checkName)
		}
	}

	assert.Equal(t, "[anthropic:unsupported_operation] embeddings are not supported", errs["unsupported"].Error())
	assert.Equal(t, "[openai:stream_decode] decode stream frame: eof", errs["decode"].Error())
}
