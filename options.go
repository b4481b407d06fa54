package unillm

import (
	"errors"
	"log/slog"

	"github.com/voocel/unillm/modelcache"
	"github.com/voocel/unillm/transport"
)

// WithLogger sets the logger shared by the client and every adapter.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTransport replaces the HTTP transport, e.g. with one built by
// transport.NewHTTP(cfg, transport.WithRetry(policy)).
func WithTransport(t transport.Transport) ClientOption {
	return func(c *Client) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}
		c.transport = t
		return nil
	}
}

// WithTransportConfig builds the default HTTP transport from cfg.
func WithTransportConfig(cfg transport.Config, opts ...transport.Option) ClientOption {
	return func(c *Client) error {
		c.transport = transport.NewHTTP(cfg, opts...)
		return nil
	}
}

// WithModelMapper installs the first step of the resolver chain.
func WithModelMapper(mapper ModelMapper) ClientOption {
	return func(c *Client) error {
		c.mapper = mapper
		return nil
	}
}

// WithAliases is WithModelMapper(AliasMapper(aliases)).
func WithAliases(aliases map[string]string) ClientOption {
	return WithModelMapper(AliasMapper(aliases))
}

// WithAuthResolver overrides provider default credentials.
func WithAuthResolver(resolver AuthResolver) ClientOption {
	return func(c *Client) error {
		c.authResolver = resolver
		return nil
	}
}

// WithEndpointResolver overrides provider default endpoints.
func WithEndpointResolver(resolver EndpointResolver) ClientOption {
	return func(c *Client) error {
		c.endpointResolver = resolver
		return nil
	}
}

// WithDefaults sets client-level chat options. Per-call options override
// them field by field.
func WithDefaults(opts ChatOptions) ClientOption {
	return func(c *Client) error {
		c.defaults = opts
		return nil
	}
}

// WithModelCache caches live model listings.
func WithModelCache(cache *modelcache.Cache) ClientOption {
	return func(c *Client) error {
		c.cache = cache
		return nil
	}
}
