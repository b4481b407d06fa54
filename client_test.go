package unillm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/voocel/unillm/modelcache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// ---------------------------------------------------------------------------
// Fake provider
// ---------------------------------------------------------------------------

type recordedRequest struct {
	Path    string
	Header  http.Header
	Payload map[string]any
}

// fakeProvider speaks the OpenAI-compatible surface under /v1.
type fakeProvider struct {
	srv      *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	listings atomic.Int32

	chatBody   string
	sseFrames  []string
	embedBody  string
	modelsBody string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		chatBody: `{"model":"gpt-4o-mini-2024-07-18","choices":[{"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		sseFrames: []string{
			`{"choices":[{"delta":{"content":"Hello"}}]}`,
			`{"choices":[{"delta":{"content":" world"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
			`[DONE]`,
		},
		embedBody:  `{"model":"text-embedding-3-small","data":[{"index":1,"embedding":[0.3,0.4]},{"index":0,"embedding":[0.1,0.2]}],"usage":{"prompt_tokens":4,"total_tokens":4}}`,
		modelsBody: `{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`,
	}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) URL() string { return p.srv.URL + "/v1/" }

func (p *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Path: r.URL.Path, Header: r.Header.Clone()}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&rec.Payload)
	}
	p.mu.Lock()
	p.requests = append(p.requests, rec)
	p.mu.Unlock()

	switch r.URL.Path {
	case "/v1/chat/completions":
		if stream, _ := rec.Payload["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, frame := range p.sseFrames {
				fmt.Fprintf(w, "data: %s\n\n", frame)
			}
			return
		}
		_, _ = w.Write([]byte(p.chatBody))
	case "/v1/embeddings":
		_, _ = w.Write([]byte(p.embedBody))
	case "/v1/models":
		p.listings.Add(1)
		_, _ = w.Write([]byte(p.modelsBody))
	default:
		http.NotFound(w, r)
	}
}

func (p *fakeProvider) last(t *testing.T) recordedRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.requests)
	return p.requests[len(p.requests)-1]
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestClient(t *testing.T, p *fakeProvider, opts ...ClientOption) *Client {
	t.Helper()
	logger, _ := testLogger()
	base := []ClientOption{
		WithLogger(logger),
		WithAuthResolver(AuthResolverFunc(func(ModelIden) (*AuthData, error) {
			auth := AuthFromKey("sk-test")
			return &auth, nil
		})),
		WithEndpointResolver(EndpointResolverFunc(func(ModelIden) (*Endpoint, error) {
			ep := NewEndpoint(p.URL())
			return &ep, nil
		})),
	}
	client, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// ---------------------------------------------------------------------------
// Resolver chain
// ---------------------------------------------------------------------------

func TestResolverChainSeesMappedModel(t *testing.T) {
	p := newFakeProvider(t)

	var authSaw, endpointSaw []ModelIden
	var mu sync.Mutex
	client, err := New(
		WithModelMapper(ModelMapperFunc(func(m ModelIden) (ModelIden, error) {
			if m.Name == "gpt-4o" {
				return m.WithName("gpt-4o-mini"), nil
			}
			return m, nil
		})),
		WithAuthResolver(AuthResolverFunc(func(m ModelIden) (*AuthData, error) {
			mu.Lock()
			authSaw = append(authSaw, m)
			mu.Unlock()
			auth := AuthFromKey("sk-mapped")
			return &auth, nil
		})),
		WithEndpointResolver(EndpointResolverFunc(func(m ModelIden) (*Endpoint, error) {
			mu.Lock()
			endpointSaw = append(endpointSaw, m)
			mu.Unlock()
			ep := NewEndpoint(p.URL())
			return &ep, nil
		})),
	)
	require.NoError(t, err)

	resp, err := client.SendChat(context.Background(), "gpt-4o", NewChatRequest(UserMessage("hi")), ChatOptions{})
	require.NoError(t, err)

	want := NewModelIden(KindOpenAI, "gpt-4o-mini")
	assert.Equal(t, []ModelIden{want}, authSaw)
	assert.Equal(t, []ModelIden{want}, endpointSaw)

	req := p.last(t)
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Equal(t, "gpt-4o-mini", req.Payload["model"])
	assert.Equal(t, "Bearer sk-mapped", req.Header.Get("Authorization"))

	assert.Equal(t, want, resp.Model)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.ProviderModel.Name)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestResolveServiceTargetDefaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-deep")
	client, err := New()
	require.NoError(t, err)

	target, err := client.ResolveServiceTarget("deepseek::deepseek-chat")
	require.NoError(t, err)
	assert.Equal(t, ModelIden{Kind: KindDeepSeek, Name: "deepseek-chat", Namespace: "deepseek"}, target.Model)
	assert.Equal(t, "https://api.deepseek.com/v1/", target.Endpoint.BaseURL)
	assert.Empty(t, target.Auth.EnvName(), "the credential is materialized")
	assert.Equal(t, "key:***", target.Auth.String())

	t.Setenv("ZAI_API_KEY", "zk")
	target, err = client.ResolveServiceTarget("zai::glm-4.6")
	require.NoError(t, err)
	assert.Equal(t, "https://api.z.ai/api/coding/paas/v4/", target.Endpoint.BaseURL)
}

func TestResolveServiceTargetCredentialMissing(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	client, err := New()
	require.NoError(t, err)

	_, err = client.ResolveServiceTarget("groq::gemma2-9b-it")
	require.Error(t, err)
	assert.True(t, IsCredentialMissing(err))
	assert.Contains(t, err.Error(), "GROQ_API_KEY")

	_, err = client.SendChat(context.Background(), "groq::gemma2-9b-it", NewChatRequest(UserMessage("hi")), ChatOptions{})
	assert.True(t, IsCredentialMissing(err))
}

func TestResolveServiceTargetInvalidModel(t *testing.T) {
	client, err := New()
	require.NoError(t, err)
	_, err = client.ResolveServiceTarget("nope::model")
	assert.True(t, IsValidation(err))
}

func TestAliasMapper(t *testing.T) {
	m := AliasMapper{
		"fast":              "groq::llama-3.1-8b-instant",
		"gpt-4o":            "gpt-4o-mini",
		"openai::o3":        "o3-mini",
		"ollama::broken":    "nope::x",
		"anthropic::gpt-4o": "claude-3-5-haiku-latest",
	}

	tests := []struct {
		in   string
		want ModelIden
	}{
		{"fast", ModelIden{Kind: KindGroq, Name: "llama-3.1-8b-instant", Namespace: "groq"}},
		{"gpt-4o", NewModelIden(KindOpenAI, "gpt-4o-mini")},
		{"o3", NewModelIden(KindOpenAI, "o3-mini")},
		{"anthropic::gpt-4o", NewModelIden(KindAnthropic, "claude-3-5-haiku-latest")},
		{"claude-3-opus-20240229", NewModelIden(KindAnthropic, "claude-3-opus-20240229")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			iden, err := ParseModelIden(tt.in)
			require.NoError(t, err)
			got, err := m.MapModel(iden)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.Name, got.Name)
		})
	}

	_, err := m.MapModel(NewModelIden(KindOllama, "broken"))
	assert.True(t, IsValidation(err))
}

func TestEndpointOverlayKeepsDefaultBase(t *testing.T) {
	client, err := New(
		WithAuthResolver(StaticAuth{KindOllama: NoAuth()}),
		WithEndpointResolver(StaticEndpoints{
			KindOllama: {Headers: map[string]string{"X-Team": "ml"}, Query: map[string]string{"v": "1"}},
			KindGroq:   NewEndpoint("https://proxy.example.com/groq/"),
		}),
	)
	require.NoError(t, err)

	target, err := client.ResolveServiceTarget("ollama::llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1/", target.Endpoint.BaseURL)
	assert.Equal(t, map[string]string{"X-Team": "ml"}, target.Endpoint.Headers)
	assert.Equal(t, map[string]string{"v": "1"}, target.Endpoint.Query)
	assert.True(t, target.Auth.IsNone())

	t.Setenv("GROQ_API_KEY", "gsk")
	target, err = client.ResolveServiceTarget("groq::gemma2-9b-it")
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example.com/groq/", target.Endpoint.BaseURL)
}

func TestResolverErrorsAreWrapped(t *testing.T) {
	boom := fmt.Errorf("vault sealed")
	client, err := New(WithAuthResolver(AuthResolverFunc(func(ModelIden) (*AuthData, error) {
		return nil, boom
	})))
	require.NoError(t, err)

	_, err = client.ResolveServiceTarget("gpt-4o")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "resolve auth for openai::gpt-4o")
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func TestSendChatMergesDefaults(t *testing.T) {
	p := newFakeProvider(t)
	client := newTestClient(t, p, WithDefaults(ChatOptions{}.WithTemperature(0.2).WithMaxTokens(100)))

	_, err := client.SendChat(context.Background(), "gpt-4o", NewChatRequest(UserMessage("hi")), ChatOptions{}.WithMaxTokens(5))
	require.NoError(t, err)

	payload := p.last(t).Payload
	assert.Equal(t, 0.2, payload["temperature"])
	assert.Equal(t, float64(5), payload["max_tokens"], "per-call options win")
}

func TestSendChatTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	client, err := New(
		WithAuthResolver(StaticAuth{KindOpenAI: AuthFromKey("sk-test")}),
		WithEndpointResolver(StaticEndpoints{KindOpenAI: NewEndpoint(srv.URL)}),
	)
	require.NoError(t, err)

	_, err = client.SendChat(context.Background(), "gpt-4o", NewChatRequest(UserMessage("hi")), ChatOptions{})
	require.Error(t, err)
	assert.True(t, IsTransportFailure(err))
	assert.True(t, IsRetryableError(err))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
}

func TestSendChatValidation(t *testing.T) {
	p := newFakeProvider(t)
	client := newTestClient(t, p)
	_, err := client.SendChat(context.Background(), "gpt-4o", NewChatRequest(), ChatOptions{})
	assert.True(t, IsValidation(err))
}

func TestSendChatLogsRequest(t *testing.T) {
	p := newFakeProvider(t)
	logger, buf := testLogger()
	client := newTestClient(t, p, WithLogger(logger))

	_, err := client.SendChat(context.Background(), "gpt-4o", NewChatRequest(UserMessage("hi")), ChatOptions{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "provider request")
	assert.Contains(t, buf.String(), "service=chat")
	assert.Contains(t, buf.String(), "model=gpt-4o")
}

func TestOpenChatStreamCollect(t *testing.T) {
	p := newFakeProvider(t)
	client := newTestClient(t, p)

	stream, err := client.OpenChatStream(context.Background(), "gpt-4o", NewChatRequest(UserMessage("hi")), CaptureAll())
	require.NoError(t, err)

	var kinds []StreamEventKind
	var end StreamEndData
	resp, err := CollectStreamWithCallbacks(stream, StreamCallbacks{
		OnStart:   func() { kinds = append(kinds, StreamStart) },
		OnContent: func(string) { kinds = append(kinds, StreamChunk) },
		OnEnd: func(e StreamEndData) {
			kinds = append(kinds, StreamEnd)
			end = e
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []StreamEventKind{StreamStart, StreamChunk, StreamChunk, StreamEnd}, kinds)
	assert.Equal(t, "Hello world", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	require.NotNil(t, end.CapturedTextContent)
	assert.Equal(t, "Hello world", *end.CapturedTextContent)

	payload := p.last(t).Payload
	assert.Equal(t, true, payload["stream"])
	assert.Equal(t, map[string]any{"include_usage": true}, payload["stream_options"])
}

func TestCollectStreamToolCalls(t *testing.T) {
	p := newFakeProvider(t)
	p.sseFrames = []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"time","arguments":"{}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}
	client := newTestClient(t, p)

	stream, err := client.OpenChatStream(context.Background(), "gpt-4o", NewChatRequest(UserMessage("find x")), ChatOptions{})
	require.NoError(t, err)

	var snapshots int
	resp, err := CollectStreamWithCallbacks(stream, StreamCallbacks{OnToolCall: func(ToolCall) { snapshots++ }})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_1", resp.ToolCalls[0].CallID)
	assert.Equal(t, "search", resp.ToolCalls[0].FnName)
	assert.JSONEq(t, `{"q":"x"}`, string(resp.ToolCalls[0].FnArguments))
	assert.Equal(t, "time", resp.ToolCalls[1].FnName)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 4, snapshots)
	assert.True(t, resp.Usage.IsZero(), "usage is unknown without capture")
}

func TestCollectStreamError(t *testing.T) {
	p := newFakeProvider(t)
	p.sseFrames = []string{`{"choices":[{"delta":{"content":"a"}}]}`, `{not json`}
	client := newTestClient(t, p)

	stream, err := client.OpenChatStream(context.Background(), "gpt-4o", NewChatRequest(UserMessage("hi")), ChatOptions{})
	require.NoError(t, err)
	_, err = CollectStream(stream)
	assert.True(t, IsStreamDecode(err))

	_, err = CollectStream(nil)
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	p := newFakeProvider(t)
	client := newTestClient(t, p)

	resp, err := client.Embed(context.Background(), "text-embedding-3-small",
		EmbedRequest{Inputs: []string{"a", "b"}}, EmbedOptions{Dimensions: IntPtr(2), CaptureUsage: BoolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}}, resp.Vectors())
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 4, resp.Usage.PromptTokens)

	req := p.last(t)
	assert.Equal(t, "/v1/embeddings", req.Path)
	assert.Equal(t, []any{"a", "b"}, req.Payload["input"])
	assert.Equal(t, float64(2), req.Payload["dimensions"])
}

func TestEmbedUnsupported(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	client, err := New()
	require.NoError(t, err)
	_, err = client.Embed(context.Background(), "claude-3-5-haiku-latest", EmbedRequest{Inputs: []string{"a"}}, EmbedOptions{})
	assert.True(t, IsUnsupported(err))
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

func TestListModelNames(t *testing.T) {
	p := newFakeProvider(t)
	client := newTestClient(t, p)

	names, src, err := client.ListModelNames(context.Background(), KindOpenAI)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, src)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, names)

	models, src, err := client.ListModels(context.Background(), KindOpenAI)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, src)
	require.Len(t, models, 2)
	assert.Equal(t, IntPtr(128_000), models[0].MaxInputTokens)
}

func TestListModelNamesMissingCredentialFallsBack(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	logger, buf := testLogger()
	client, err := New(WithLogger(logger))
	require.NoError(t, err)

	names, src, err := client.ListModelNames(context.Background(), KindXai)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, src)
	assert.Contains(t, names, "grok-3")
	assert.Contains(t, buf.String(), "fell back to static table")
}

func TestListModelNamesResolverFailureFallsBack(t *testing.T) {
	logger, buf := testLogger()
	client, err := New(
		WithLogger(logger),
		WithAuthResolver(AuthResolverFunc(func(ModelIden) (*AuthData, error) {
			return nil, errors.New("vault unavailable")
		})),
	)
	require.NoError(t, err)

	names, src, err := client.ListModelNames(context.Background(), KindXai)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, src)
	assert.Contains(t, names, "grok-3")
	assert.Contains(t, buf.String(), "vault unavailable")

	client, err = New(
		WithLogger(logger),
		WithEndpointResolver(EndpointResolverFunc(func(ModelIden) (*Endpoint, error) {
			return nil, errors.New("registry down")
		})),
	)
	require.NoError(t, err)

	models, src, err := client.ListModels(context.Background(), KindDeepSeek)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, src)
	require.NotEmpty(t, models)
	assert.Equal(t, KindDeepSeek, models[0].Provider)
}

func TestListModelsMalformedFallsBack(t *testing.T) {
	p := newFakeProvider(t)
	p.modelsBody = `{"data":"nope"}`
	client := newTestClient(t, p)

	models, src, err := client.ListModels(context.Background(), KindGroq)
	require.NoError(t, err)
	assert.Equal(t, SourceStatic, src)
	assert.NotEmpty(t, models)
}

func TestListModelNamesInvalidKind(t *testing.T) {
	client, err := New()
	require.NoError(t, err)
	_, _, err = client.ListModelNames(context.Background(), AdapterKind(0))
	assert.True(t, IsValidation(err))
}

func TestListModelNamesCached(t *testing.T) {
	p := newFakeProvider(t)
	client := newTestClient(t, p, WithModelCache(modelcache.New(modelcache.NewMemoryStore(), time.Minute)))

	for range 3 {
		names, src, err := client.ListModelNames(context.Background(), KindOpenAI)
		require.NoError(t, err)
		assert.Equal(t, SourceLive, src)
		assert.Len(t, names, 2)
	}
	assert.Equal(t, int32(1), p.listings.Load())

	_, _, err := client.ListModels(context.Background(), KindOpenAI)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.listings.Load(), "names and models are cached separately")
}

func TestCapabilitiesAppliesMapper(t *testing.T) {
	client, err := New(WithAliases(map[string]string{"smart": "anthropic::claude-sonnet-4-20250514"}))
	require.NoError(t, err)

	m, err := client.Capabilities("smart")
	require.NoError(t, err)
	assert.Equal(t, KindAnthropic, m.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", m.ID)
	assert.True(t, m.SupportsReasoning)

	m, err = client.Capabilities("gpt-4o")
	require.NoError(t, err)
	assert.True(t, m.IsMultimodal())

	_, err = client.Capabilities("")
	assert.True(t, IsValidation(err))
}

func TestNewRejectsNilOptions(t *testing.T) {
	_, err := New(WithLogger(nil))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to apply option"))

	_, err = New(WithTransport(nil))
	assert.Error(t, err)
}
