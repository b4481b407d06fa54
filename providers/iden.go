package providers

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"strings"
)

// NamespaceSeparator splits "provider::model" identifiers.
const NamespaceSeparator = "::"

// ---------------------------------------------------------------------------
// ModelIden
// ---------------------------------------------------------------------------

// ModelIden identifies who answers a request. Name never contains the
// namespace; Namespace records it when one was given explicitly.
type ModelIden struct {
	Kind      AdapterKind `json:"provider"`
	Name      string      `json:"model"`
	Namespace string      `json:"namespace,omitempty"`
}

// NewModelIden builds an identifier with an explicit provider.
func NewModelIden(kind AdapterKind, name string) ModelIden {
	return ModelIden{Kind: kind, Name: name}
}

// ParseModelIden resolves a model string. A "provider::model" namespace fixes
// the provider; a bare name is run through InferAdapterKind.
func ParseModelIden(model string) (ModelIden, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return ModelIden{}, &Error{Type: ErrorTypeValidation, Message: "model is required"}
	}

	if ns, name, ok := strings.Cut(model, NamespaceSeparator); ok {
		kind, err := ParseAdapterKind(ns)
		if err != nil {
			return ModelIden{}, err
		}
		if name == "" {
			return ModelIden{}, &Error{Type: ErrorTypeValidation, Message: fmt.Sprintf("empty model name in %q", model)}
		}
		return ModelIden{Kind: kind, Name: name, Namespace: kind.String()}, nil
	}

	return ModelIden{Kind: InferAdapterKind(model), Name: model}, nil
}

// WithName returns a copy pointing at another model of the same provider.
func (m ModelIden) WithName(name string) ModelIden {
	m.Name = name
	return m
}

func (m ModelIden) String() string {
	return m.Kind.String() + NamespaceSeparator + m.Name
}

// ---------------------------------------------------------------------------
// ServiceType
// ---------------------------------------------------------------------------

type ServiceType int

const (
	ServiceChat ServiceType = iota
	ServiceChatStream
	ServiceEmbed
	ServiceModels
)

func (s ServiceType) String() string {
	switch s {
	case ServiceChat:
		return "chat"
	case ServiceChatStream:
		return "chat-stream"
	case ServiceEmbed:
		return "embed"
	case ServiceModels:
		return "models"
	default:
		return fmt.Sprintf("ServiceType(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// AuthData
// ---------------------------------------------------------------------------

type authSource int

const (
	authNone authSource = iota
	authEnv
	authKey
)

// AuthData is an opaque credential reference. The zero value means "no auth".
type AuthData struct {
	source authSource
	value  string
}

// AuthFromEnv reads the key from the named environment variable at resolve time.
func AuthFromEnv(name string) AuthData {
	return AuthData{source: authEnv, value: name}
}

// AuthFromKey wraps a literal secret.
func AuthFromKey(key string) AuthData {
	return AuthData{source: authKey, value: key}
}

// NoAuth sends no Authorization header.
func NoAuth() AuthData {
	return AuthData{}
}

// Resolve returns the secret, or "" for NoAuth. A missing environment
// variable is reported as a credential error naming the variable.
func (a AuthData) Resolve(kind AdapterKind) (string, error) {
	switch a.source {
	case authEnv:
		if v := strings.TrimSpace(os.Getenv(a.value)); v != "" {
			return v, nil
		}
		return "", NewCredentialError(kind, "environment variable "+a.value)
	case authKey:
		if a.value == "" {
			return "", NewCredentialError(kind, "a non-empty API key")
		}
		return a.value, nil
	default:
		return "", nil
	}
}

// Materialize resolves environment references into a literal key so the
// target carries a fixed credential for the rest of the call.
func (a AuthData) Materialize(kind AdapterKind) (AuthData, error) {
	if a.source != authEnv {
		return a, nil
	}
	key, err := a.Resolve(kind)
	if err != nil {
		return AuthData{}, err
	}
	return AuthFromKey(key), nil
}

// IsNone reports whether no credential is attached.
func (a AuthData) IsNone() bool { return a.source == authNone }

// EnvName returns the environment variable name for env-sourced credentials.
func (a AuthData) EnvName() string {
	if a.source == authEnv {
		return a.value
	}
	return ""
}

// String never reveals the secret.
func (a AuthData) String() string {
	switch a.source {
	case authEnv:
		return "env:" + a.value
	case authKey:
		return "key:***"
	default:
		return "none"
	}
}

// ---------------------------------------------------------------------------
// Endpoint
// ---------------------------------------------------------------------------

// Endpoint is a base URL plus static headers and query parameters sent with
// every request to it.
type Endpoint struct {
	BaseURL string            `json:"base_url" yaml:"base_url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
}

// NewEndpoint returns an endpoint with no extra headers.
func NewEndpoint(baseURL string) Endpoint {
	return Endpoint{BaseURL: baseURL}
}

// WithHeader returns a copy with one more static header.
func (e Endpoint) WithHeader(key, value string) Endpoint {
	headers := make(map[string]string, len(e.Headers)+1)
	maps.Copy(headers, e.Headers)
	headers[key] = value
	e.Headers = headers
	return e
}

// JoinURL resolves a relative suffix against the base URL. The base is
// treated as a directory, its own query string is preserved and Query is
// merged on top.
func (e Endpoint) JoinURL(suffix string) (string, error) {
	base, err := url.Parse(e.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", &Error{Type: ErrorTypeValidation, Message: fmt.Sprintf("invalid base url %q", e.BaseURL), Cause: err}
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	rel, err := url.Parse(strings.TrimPrefix(suffix, "/"))
	if err != nil {
		return "", &Error{Type: ErrorTypeValidation, Message: fmt.Sprintf("invalid url suffix %q", suffix), Cause: err}
	}

	full := base.ResolveReference(rel)
	full.RawQuery = base.RawQuery
	if len(e.Query) > 0 {
		q := full.Query()
		for k, v := range e.Query {
			q.Set(k, v)
		}
		full.RawQuery = q.Encode()
	}
	return full.String(), nil
}

// ---------------------------------------------------------------------------
// ServiceTarget
// ---------------------------------------------------------------------------

// ServiceTarget is the fully resolved destination of one call.
type ServiceTarget struct {
	Model    ModelIden
	Auth     AuthData
	Endpoint Endpoint
}
