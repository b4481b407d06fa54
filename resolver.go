package unillm

import (
	"fmt"
	"maps"
	"strings"
)

// ---------------------------------------------------------------------------
// Resolver chain: ModelMapper -> AuthResolver -> EndpointResolver
// ---------------------------------------------------------------------------

// ModelMapper rewrites the requested model before anything else resolves.
// The auth and endpoint resolvers, the request URL and the payload all see
// the mapped identity. Implementations must be safe for concurrent use.
type ModelMapper interface {
	MapModel(model ModelIden) (ModelIden, error)
}

// AuthResolver picks the credential for a model. A nil result keeps the
// adapter's default.
type AuthResolver interface {
	ResolveAuth(model ModelIden) (*AuthData, error)
}

// EndpointResolver picks the endpoint for a model. A nil result keeps the
// default. An endpoint with an empty BaseURL keeps the default base URL and
// layers its headers and query on top.
type EndpointResolver interface {
	ResolveEndpoint(model ModelIden) (*Endpoint, error)
}

type ModelMapperFunc func(model ModelIden) (ModelIden, error)

func (f ModelMapperFunc) MapModel(model ModelIden) (ModelIden, error) { return f(model) }

type AuthResolverFunc func(model ModelIden) (*AuthData, error)

func (f AuthResolverFunc) ResolveAuth(model ModelIden) (*AuthData, error) { return f(model) }

type EndpointResolverFunc func(model ModelIden) (*Endpoint, error)

func (f EndpointResolverFunc) ResolveEndpoint(model ModelIden) (*Endpoint, error) { return f(model) }

// AliasMapper maps model names to targets. Keys match either the full
// "provider::name" form or the bare name; the full form wins. Targets are
// parsed like any model string, so "groq::llama-3.1-8b-instant" pins the
// provider while a bare name is inferred.
type AliasMapper map[string]string

func (m AliasMapper) MapModel(model ModelIden) (ModelIden, error) {
	target, ok := m[model.String()]
	if !ok {
		target, ok = m[model.Name]
	}
	if !ok {
		return model, nil
	}
	mapped, err := ParseModelIden(target)
	if err != nil {
		return ModelIden{}, fmt.Errorf("alias %q: %w", model.Name, err)
	}
	return mapped, nil
}

// StaticAuth returns a fixed credential per provider.
type StaticAuth map[AdapterKind]AuthData

func (s StaticAuth) ResolveAuth(model ModelIden) (*AuthData, error) {
	if auth, ok := s[model.Kind]; ok {
		return &auth, nil
	}
	return nil, nil
}

// StaticEndpoints returns a fixed endpoint per provider.
type StaticEndpoints map[AdapterKind]Endpoint

func (s StaticEndpoints) ResolveEndpoint(model ModelIden) (*Endpoint, error) {
	if ep, ok := s[model.Kind]; ok {
		return &ep, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// ResolveServiceTarget runs the resolver chain for model and returns where
// a call would go. Environment credentials are read at this point, so a
// missing variable fails here with a CredentialMissing error.
func (c *Client) ResolveServiceTarget(model string) (ServiceTarget, error) {
	iden, err := ParseModelIden(model)
	if err != nil {
		return ServiceTarget{}, err
	}
	return c.resolveTarget(iden, true)
}

func (c *Client) resolveTarget(model ModelIden, materialize bool) (ServiceTarget, error) {
	if c.mapper != nil {
		mapped, err := c.mapper.MapModel(model)
		if err != nil {
			return ServiceTarget{}, fmt.Errorf("map model %s: %w", model, err)
		}
		model = mapped
	}
	return c.resolveMapped(model, materialize)
}

// resolveMapped runs the auth and endpoint steps for an already mapped
// identity. Listing uses it directly because there is no model to map.
func (c *Client) resolveMapped(model ModelIden, materialize bool) (ServiceTarget, error) {
	adapter, err := c.dispatcher.Adapter(model.Kind)
	if err != nil {
		return ServiceTarget{}, err
	}

	auth := adapter.DefaultAuth()
	if c.authResolver != nil {
		resolved, err := c.authResolver.ResolveAuth(model)
		if err != nil {
			return ServiceTarget{}, fmt.Errorf("resolve auth for %s: %w", model, err)
		}
		if resolved != nil {
			auth = *resolved
		}
	}

	endpoint, err := c.dispatcher.DefaultEndpoint(model)
	if err != nil {
		return ServiceTarget{}, err
	}
	if c.endpointResolver != nil {
		resolved, err := c.endpointResolver.ResolveEndpoint(model)
		if err != nil {
			return ServiceTarget{}, fmt.Errorf("resolve endpoint for %s: %w", model, err)
		}
		if resolved != nil {
			endpoint = overlayEndpoint(endpoint, *resolved)
		}
	}

	if materialize {
		if auth, err = auth.Materialize(model.Kind); err != nil {
			return ServiceTarget{}, err
		}
	}
	return ServiceTarget{Model: model, Auth: auth, Endpoint: endpoint}, nil
}

func overlayEndpoint(base, override Endpoint) Endpoint {
	if strings.TrimSpace(override.BaseURL) != "" {
		return override
	}
	for k, v := range override.Headers {
		base = base.WithHeader(k, v)
	}
	if len(override.Query) > 0 {
		query := make(map[string]string, len(base.Query)+len(override.Query))
		maps.Copy(query, base.Query)
		maps.Copy(query, override.Query)
		base.Query = query
	}
	return base
}
