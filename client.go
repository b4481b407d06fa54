package unillm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voocel/unillm/modelcache"
	"github.com/voocel/unillm/providers"
	"github.com/voocel/unillm/transport"
)

// Client is the entry point for chat, streaming, embeddings and model
// discovery across every supported provider. It is immutable after New and
// safe for concurrent use.
type Client struct {
	dispatcher *providers.Dispatcher
	transport  transport.Transport
	logger     *slog.Logger

	mapper           ModelMapper
	authResolver     AuthResolver
	endpointResolver EndpointResolver

	defaults ChatOptions
	cache    *modelcache.Cache
}

// ClientOption defines options for configuring the client
type ClientOption func(*Client) error

// New creates a client. Without options every provider uses its default
// endpoint and reads its key from the provider's environment variable.
func New(opts ...ClientOption) (*Client, error) {
	client := &Client{}
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	if client.transport == nil {
		client.transport = transport.NewHTTP(transport.DefaultConfig())
	}
	client.dispatcher = providers.NewDispatcher(providers.Deps{
		Transport: client.transport,
		Logger:    client.logger,
	})
	return client, nil
}

// Close releases the model cache's store, if any.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Defaults returns the client-level chat options.
func (c *Client) Defaults() ChatOptions { return c.defaults }

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// SendChat performs a non-streaming chat call. Unset fields of opts are
// taken from the client defaults.
func (c *Client) SendChat(ctx context.Context, model string, req ChatRequest, opts ChatOptions) (*ChatResponse, error) {
	target, adapter, err := c.prepare(model)
	if err != nil {
		return nil, err
	}
	opts = opts.Merge(c.defaults)

	data, err := adapter.BuildRequest(target, providers.ServiceChat, req, opts)
	if err != nil {
		return nil, err
	}
	c.logRequest(target, providers.ServiceChat, data.URL)

	resp, err := c.transport.DoPost(ctx, data.URL, data.Headers, data.Payload)
	if err != nil {
		return nil, providers.NewTransportError(target.Model.Kind, err)
	}
	return adapter.ParseResponse(target.Model, resp.Body, opts)
}

// OpenChatStream starts a streaming chat call. The stream does no work
// until Next is called; callers must drain it or Close it.
func (c *Client) OpenChatStream(ctx context.Context, model string, req ChatRequest, opts ChatOptions) (*ChatStream, error) {
	target, adapter, err := c.prepare(model)
	if err != nil {
		return nil, err
	}
	opts = opts.Merge(c.defaults)

	data, err := adapter.BuildRequest(target, providers.ServiceChatStream, req, opts)
	if err != nil {
		return nil, err
	}
	c.logRequest(target, providers.ServiceChatStream, data.URL)

	return adapter.OpenStream(ctx, target.Model, data, opts)
}

// ---------------------------------------------------------------------------
// Embeddings
// ---------------------------------------------------------------------------

// Embed computes embeddings for req.Inputs.
func (c *Client) Embed(ctx context.Context, model string, req EmbedRequest, opts EmbedOptions) (*EmbedResponse, error) {
	target, adapter, err := c.prepare(model)
	if err != nil {
		return nil, err
	}

	data, err := adapter.BuildEmbedRequest(target, req, opts)
	if err != nil {
		return nil, err
	}
	c.logRequest(target, providers.ServiceEmbed, data.URL)

	resp, err := c.transport.DoPost(ctx, data.URL, data.Headers, data.Payload)
	if err != nil {
		return nil, providers.NewTransportError(target.Model.Kind, err)
	}
	return adapter.ParseEmbedResponse(target.Model, resp.Body, opts)
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

// ListModelNames returns the provider's model names. Listing never fails
// because of the provider or the resolvers: any failure degrades to the
// static table, reported through the returned source. The error is set only
// for an invalid kind.
func (c *Client) ListModelNames(ctx context.Context, kind AdapterKind) ([]string, ListingSource, error) {
	target, adapter, err := c.prepareListing(kind)
	if err != nil {
		return nil, SourceStatic, err
	}
	if adapter == nil {
		return providers.StaticModelNames(kind), SourceStatic, nil
	}
	load := func(ctx context.Context) ([]string, ListingSource) {
		names, src := adapter.ListModelNames(ctx, target)
		c.logListing(kind, src)
		return names, src
	}
	if c.cache != nil {
		names, src := c.cache.Names(ctx, listingKey(target), load)
		return names, src, nil
	}
	names, src := load(ctx)
	return names, src, nil
}

// ListModels is ListModelNames with full capability descriptors.
func (c *Client) ListModels(ctx context.Context, kind AdapterKind) ([]Model, ListingSource, error) {
	target, adapter, err := c.prepareListing(kind)
	if err != nil {
		return nil, SourceStatic, err
	}
	if adapter == nil {
		return providers.StaticModels(kind), SourceStatic, nil
	}
	load := func(ctx context.Context) ([]Model, ListingSource) {
		models, src := adapter.ListModels(ctx, target)
		c.logListing(kind, src)
		return models, src
	}
	if c.cache != nil {
		models, src := c.cache.Models(ctx, listingKey(target), load)
		return models, src, nil
	}
	models, src := load(ctx)
	return models, src, nil
}

// Capabilities describes the model a call to model would reach, after the
// model mapper has run. It performs no I/O.
func (c *Client) Capabilities(model string) (Model, error) {
	iden, err := ParseModelIden(model)
	if err != nil {
		return Model{}, err
	}
	if c.mapper != nil {
		if iden, err = c.mapper.MapModel(iden); err != nil {
			return Model{}, fmt.Errorf("map model %s: %w", model, err)
		}
	}
	return providers.ResolveCapabilities(iden.Kind, iden.Name), nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (c *Client) prepare(model string) (ServiceTarget, providers.Adapter, error) {
	target, err := c.ResolveServiceTarget(model)
	if err != nil {
		return ServiceTarget{}, nil, err
	}
	adapter, err := c.dispatcher.Adapter(target.Model.Kind)
	if err != nil {
		return ServiceTarget{}, nil, err
	}
	return target, adapter, nil
}

// prepareListing resolves without reading credentials: a provider whose key
// is missing still lists its static table. Only an invalid kind is an error;
// a failing resolver yields a nil adapter and the caller serves the static
// table.
func (c *Client) prepareListing(kind AdapterKind) (ServiceTarget, providers.Adapter, error) {
	if !kind.Valid() {
		return ServiceTarget{}, nil, providers.NewValidationError(kind, "unknown provider "+kind.String())
	}
	target, err := c.resolveMapped(providers.NewModelIden(kind, ""), false)
	if err != nil {
		c.logger.Debug("model listing fell back to static table", "provider", kind.String(), "error", err)
		return ServiceTarget{}, nil, nil
	}
	adapter, err := c.dispatcher.Adapter(kind)
	if err != nil {
		return ServiceTarget{}, nil, err
	}
	return target, adapter, nil
}

func listingKey(target ServiceTarget) string {
	return target.Model.Kind.String() + "@" + target.Endpoint.BaseURL
}

func (c *Client) logRequest(target ServiceTarget, service ServiceType, url string) {
	c.logger.Debug("provider request",
		"provider", target.Model.Kind.String(),
		"model", target.Model.Name,
		"service", service.String(),
		"url", url,
	)
}

func (c *Client) logListing(kind AdapterKind, src ListingSource) {
	if src == SourceStatic {
		c.logger.Debug("model listing fell back to static table", "provider", kind.String())
	}
}
