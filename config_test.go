package unillm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
aliases:
  fast: groq::llama-3.1-8b-instant
  cheap: gpt-4o-mini
providers:
  openai:
    api_key: sk-file
    base_url: https://gateway.example.com/openai/v1/
  groq:
    api_key_env: MY_GROQ_KEY
  ollama:
    headers:
      X-Team: ml
defaults:
  temperature: 0.3
  max_tokens: 256
  reasoning_effort: high
  capture_usage: true
  stop_sequences: ["END"]
cache:
  ttl: 5m
transport:
  timeout: 30s
  max_retries: 2
log:
  level: debug
  format: json
server:
  addr: ":8080"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unillm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "groq::llama-3.1-8b-instant", cfg.Aliases["fast"])
	assert.Equal(t, "sk-file", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "MY_GROQ_KEY", cfg.Providers["groq"].APIKeyEnv)
	assert.Equal(t, map[string]string{"X-Team": "ml"}, cfg.Providers["ollama"].Headers)
	assert.Equal(t, Float64Ptr(0.3), cfg.Defaults.Temperature)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 30*time.Second, cfg.Transport.RequestTimeout)
	assert.Equal(t, 2, cfg.Transport.MaxRetries)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	opts, err := cfg.Defaults.ChatOptions()
	require.NoError(t, err)
	assert.Equal(t, IntPtr(256), opts.MaxTokens)
	assert.Equal(t, BoolPtr(true), opts.CaptureUsage)
	require.NotNil(t, opts.ReasoningEffort)
	assert.Equal(t, ReasoningHigh, *opts.ReasoningEffort)
	assert.Equal(t, []string{"END"}, opts.StopSequences)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = LoadConfig(writeConfig(t, "aliases: [unclosed"))
	assert.ErrorContains(t, err, "parse config file")

	_, err = LoadConfig(writeConfig(t, "providers:\n  openrouter:\n    api_key: x\n"))
	assert.ErrorContains(t, err, "providers.openrouter")

	_, err = LoadConfig(writeConfig(t, "aliases:\n  bad: \"nope::x\"\n"))
	assert.ErrorContains(t, err, "aliases.bad")

	_, err = LoadConfig(writeConfig(t, "defaults:\n  reasoning_effort: extreme\n"))
	assert.ErrorContains(t, err, "defaults.reasoning_effort")
}

func TestNewFromConfig(t *testing.T) {
	t.Setenv("MY_GROQ_KEY", "gsk-env")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	client, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	target, err := client.ResolveServiceTarget("cheap")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, target.Model.Kind)
	assert.Equal(t, "gpt-4o-mini", target.Model.Name)
	assert.Equal(t, "https://gateway.example.com/openai/v1/", target.Endpoint.BaseURL)

	target, err = client.ResolveServiceTarget("fast")
	require.NoError(t, err)
	assert.Equal(t, KindGroq, target.Model.Kind)
	assert.Equal(t, "https://api.groq.com/openai/v1/", target.Endpoint.BaseURL)

	target, err = client.ResolveServiceTarget("ollama::llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1/", target.Endpoint.BaseURL)
	assert.Equal(t, "ml", target.Endpoint.Headers["X-Team"])

	assert.Equal(t, Float64Ptr(0.3), client.Defaults().Temperature)
	require.NotNil(t, client.cache)
	assert.Equal(t, 5*time.Minute, client.cache.TTL())
}

func TestNewFromConfigNil(t *testing.T) {
	client, err := NewFromConfig(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, client.cache)
}

func TestNewFromConfigLaterOptionsWin(t *testing.T) {
	cfg := &Config{Aliases: map[string]string{"x": "gpt-4o"}}
	client, err := NewFromConfig(context.Background(), cfg, WithAliases(map[string]string{"x": "claude-3-5-haiku-latest"}))
	require.NoError(t, err)

	m, err := client.Capabilities("x")
	require.NoError(t, err)
	assert.Equal(t, KindAnthropic, m.Provider)
}
