package unillm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voocel/unillm/modelcache"
	"github.com/voocel/unillm/providers"
	"github.com/voocel/unillm/transport"
)

// Config is the file form of a client plus the settings of the programs
// built around it. Every field carries both yaml and mapstructure tags so
// the same struct loads through LoadConfig or viper.
type Config struct {
	Aliases   map[string]string         `yaml:"aliases" mapstructure:"aliases"`
	Providers map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Defaults  DefaultsConfig            `yaml:"defaults" mapstructure:"defaults"`
	Cache     CacheConfig               `yaml:"cache" mapstructure:"cache"`
	Transport transport.Config          `yaml:"transport" mapstructure:"transport"`
	Log       LogConfig                 `yaml:"log" mapstructure:"log"`
	Server    ServerConfig              `yaml:"server" mapstructure:"server"`
}

// ProviderConfig overrides one provider's credential and endpoint. APIKey
// wins over APIKeyEnv; with neither the provider's own variable is read.
// An empty BaseURL keeps the default and layers Headers and Query on it.
type ProviderConfig struct {
	BaseURL   string            `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string            `yaml:"api_key" mapstructure:"api_key"`
	APIKeyEnv string            `yaml:"api_key_env" mapstructure:"api_key_env"`
	Headers   map[string]string `yaml:"headers" mapstructure:"headers"`
	Query     map[string]string `yaml:"query" mapstructure:"query"`
}

// DefaultsConfig is the file form of the client's default ChatOptions.
type DefaultsConfig struct {
	Temperature               *float64          `yaml:"temperature" mapstructure:"temperature"`
	TopP                      *float64          `yaml:"top_p" mapstructure:"top_p"`
	MaxTokens                 *int              `yaml:"max_tokens" mapstructure:"max_tokens"`
	Seed                      *int64            `yaml:"seed" mapstructure:"seed"`
	StopSequences             []string          `yaml:"stop_sequences" mapstructure:"stop_sequences"`
	ReasoningEffort           string            `yaml:"reasoning_effort" mapstructure:"reasoning_effort"`
	CaptureContent            *bool             `yaml:"capture_content" mapstructure:"capture_content"`
	CaptureUsage              *bool             `yaml:"capture_usage" mapstructure:"capture_usage"`
	CaptureReasoningContent   *bool             `yaml:"capture_reasoning_content" mapstructure:"capture_reasoning_content"`
	CaptureToolCalls          *bool             `yaml:"capture_tool_calls" mapstructure:"capture_tool_calls"`
	NormalizeReasoningContent *bool             `yaml:"normalize_reasoning_content" mapstructure:"normalize_reasoning_content"`
	ExtraHeaders              map[string]string `yaml:"extra_headers" mapstructure:"extra_headers"`
}

// CacheConfig enables the model-list cache when TTL is positive. A Redis
// address selects the shared store; otherwise listings stay in memory.
type CacheConfig struct {
	TTL   time.Duration          `yaml:"ttl" mapstructure:"ttl"`
	Redis modelcache.RedisConfig `yaml:"redis" mapstructure:"redis"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider names, alias targets and the default effort.
func (c *Config) Validate() error {
	for name := range c.Providers {
		if _, err := providers.ParseAdapterKind(name); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
	}
	for alias, target := range c.Aliases {
		if _, err := providers.ParseModelIden(target); err != nil {
			return fmt.Errorf("aliases.%s: %w", alias, err)
		}
	}
	if _, err := c.Defaults.ChatOptions(); err != nil {
		return err
	}
	return nil
}

// ChatOptions converts the defaults section.
func (d DefaultsConfig) ChatOptions() (ChatOptions, error) {
	opts := ChatOptions{
		CaptureContent:            d.CaptureContent,
		CaptureUsage:              d.CaptureUsage,
		CaptureReasoningContent:   d.CaptureReasoningContent,
		CaptureToolCalls:          d.CaptureToolCalls,
		NormalizeReasoningContent: d.NormalizeReasoningContent,
		Temperature:               d.Temperature,
		TopP:                      d.TopP,
		MaxTokens:                 d.MaxTokens,
		Seed:                      d.Seed,
		StopSequences:             d.StopSequences,
		ExtraHeaders:              d.ExtraHeaders,
	}
	if d.ReasoningEffort != "" {
		effort, err := providers.ParseReasoningEffort(d.ReasoningEffort)
		if err != nil {
			return ChatOptions{}, fmt.Errorf("defaults.reasoning_effort: %w", err)
		}
		opts.ReasoningEffort = &effort
	}
	return opts, nil
}

// ClientOptions turns the configuration into client options: aliases, the
// static auth and endpoint resolvers, defaults, transport and cache.
func (c *Config) ClientOptions(ctx context.Context) ([]ClientOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []ClientOption
	if len(c.Aliases) > 0 {
		opts = append(opts, WithAliases(c.Aliases))
	}

	auth := StaticAuth{}
	endpoints := StaticEndpoints{}
	for name, pc := range c.Providers {
		kind, _ := providers.ParseAdapterKind(name)
		switch {
		case pc.APIKey != "":
			auth[kind] = providers.AuthFromKey(pc.APIKey)
		case pc.APIKeyEnv != "":
			auth[kind] = providers.AuthFromEnv(pc.APIKeyEnv)
		}
		if pc.BaseURL != "" || len(pc.Headers) > 0 || len(pc.Query) > 0 {
			endpoints[kind] = Endpoint{BaseURL: pc.BaseURL, Headers: pc.Headers, Query: pc.Query}
		}
	}
	if len(auth) > 0 {
		opts = append(opts, WithAuthResolver(auth))
	}
	if len(endpoints) > 0 {
		opts = append(opts, WithEndpointResolver(endpoints))
	}

	defaults, _ := c.Defaults.ChatOptions()
	opts = append(opts, WithDefaults(defaults), WithTransportConfig(c.Transport))

	if c.Cache.TTL > 0 {
		var store modelcache.Store
		if c.Cache.Redis.Addr != "" {
			rs, err := modelcache.NewRedisStore(ctx, c.Cache.Redis)
			if err != nil {
				return nil, err
			}
			store = rs
		}
		opts = append(opts, WithModelCache(modelcache.New(store, c.Cache.TTL)))
	}
	return opts, nil
}

// NewFromConfig builds a client from cfg. Options in opts apply after the
// configured ones and override them.
func NewFromConfig(ctx context.Context, cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	configured, err := cfg.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}
	return New(append(configured, opts...)...)
}
