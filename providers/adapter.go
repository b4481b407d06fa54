package providers

import (
	"context"
	"log/slog"

	"github.com/voocel/unillm/transport"
)

// ---------------------------------------------------------------------------
// Adapter: the fixed per-provider contract
// ---------------------------------------------------------------------------

// WebRequestData is a fully built provider request: target URL, headers and
// the JSON payload. Payload stays a map so callers can inspect or amend it
// before it is encoded by the transport.
type WebRequestData struct {
	URL     string
	Headers map[string]string
	Payload map[string]any
}

// ListingSource reports where a model listing came from.
type ListingSource int

const (
	// SourceStatic means the provider's built-in table was returned, either
	// because it has no discovery endpoint or because the live call failed.
	SourceStatic ListingSource = iota
	// SourceLive means the listing was fetched from the provider.
	SourceLive
)

func (s ListingSource) String() string {
	if s == SourceLive {
		return "live"
	}
	return "static"
}

// Adapter translates the unified request model to and from one provider's
// wire format. The interface is sealed: only this package implements it and
// Dispatcher.Adapter is the single place that maps a kind to an adapter.
type Adapter interface {
	Kind() AdapterKind

	DefaultAuth() AuthData
	DefaultEndpoint() Endpoint

	// ServiceURL maps a service to a URL under endpoint. Services the
	// provider cannot perform return an UnsupportedOperation error.
	ServiceURL(model ModelIden, service ServiceType, endpoint Endpoint) (string, error)

	BuildRequest(target ServiceTarget, service ServiceType, req ChatRequest, opts ChatOptions) (*WebRequestData, error)
	ParseResponse(model ModelIden, body []byte, opts ChatOptions) (*ChatResponse, error)

	// OpenStream sends data over an event source and wraps it in the
	// streaming normalizer.
	OpenStream(ctx context.Context, model ModelIden, data *WebRequestData, opts ChatOptions) (*ChatStream, error)

	BuildEmbedRequest(target ServiceTarget, req EmbedRequest, opts EmbedOptions) (*WebRequestData, error)
	ParseEmbedResponse(model ModelIden, body []byte, opts EmbedOptions) (*EmbedResponse, error)

	// ListModelNames and ListModels never fail: any problem with the live
	// endpoint degrades to the static table.
	ListModelNames(ctx context.Context, target ServiceTarget) ([]string, ListingSource)
	ListModels(ctx context.Context, target ServiceTarget) ([]Model, ListingSource)

	sealed()
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Deps are the read-only collaborators shared by every adapter.
type Deps struct {
	Transport transport.Transport
	Logger    *slog.Logger
}

// Dispatcher routes a provider kind to its adapter. It holds no mutable
// state and is safe for concurrent use.
type Dispatcher struct {
	deps Deps
}

// NewDispatcher builds a dispatcher. A nil transport gets the default HTTP
// transport and a nil logger gets slog.Default().
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Transport == nil {
		deps.Transport = transport.NewHTTP(transport.DefaultConfig())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Dispatcher{deps: deps}
}

// Transport returns the transport shared by all adapters.
func (d *Dispatcher) Transport() transport.Transport { return d.deps.Transport }

// Logger returns the logger shared by all adapters.
func (d *Dispatcher) Logger() *slog.Logger { return d.deps.Logger }

// Adapter returns the adapter for kind.
func (d *Dispatcher) Adapter(kind AdapterKind) (Adapter, error) {
	switch kind {
	case KindOpenAI,
		KindAnthropic,
		KindCohere,
		KindDeepSeek,
		KindFireworks,
		KindGemini,
		KindGroq,
		KindTogether,
		KindXai,
		KindNebius,
		KindOllama,
		KindZai,
		KindZhipu:
		return newCompatAdapter(kind, d.deps), nil
	case KindCopilot:
		return newCopilotAdapter(d.deps), nil
	default:
		return nil, NewValidationError(kind, "no adapter for provider "+kind.String())
	}
}

// DefaultEndpoint returns the endpoint used when no resolver overrides it.
// It differs from Adapter.DefaultEndpoint only when the model's namespace
// selects a dedicated base URL, such as the zai coding plan.
func (d *Dispatcher) DefaultEndpoint(model ModelIden) (Endpoint, error) {
	a, err := d.Adapter(model.Kind)
	if err != nil {
		return Endpoint{}, err
	}
	if c, ok := compatTable[model.Kind]; ok && model.Namespace != "" {
		if base, ok := c.NamespaceEndpoints[model.Namespace]; ok {
			ep := a.DefaultEndpoint()
			ep.BaseURL = base
			return ep, nil
		}
	}
	return a.DefaultEndpoint(), nil
}
