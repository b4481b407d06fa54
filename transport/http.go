package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTPDoer is satisfied by *http.Client and by test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds connection-level settings for HTTPTransport.
type Config struct {
	RequestTimeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 5 * time.Minute,
		ConnectTimeout: 10 * time.Second,
	}
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	doer      HTTPDoer
	userAgent string
}

var _ Transport = (*HTTPTransport)(nil)

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(t *HTTPTransport) {
		if doer != nil {
			t.doer = doer
		}
	}
}

// WithRetry wraps the current client with a retry policy. Without this
// option no request is ever retried.
func WithRetry(policy RetryPolicy) Option {
	return func(t *HTTPTransport) {
		if policy.MaxRetries > 0 {
			t.doer = &retryDoer{doer: t.doer, policy: policy.withDefaults()}
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

// NewHTTP builds a transport with a pooled client tuned from cfg.
func NewHTTP(cfg Config, opts ...Option) *HTTPTransport {
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}

	t := &HTTPTransport{
		doer: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if cfg.MaxRetries > 0 {
		if _, wrapped := t.doer.(*retryDoer); !wrapped {
			WithRetry(RetryPolicy{MaxRetries: cfg.MaxRetries})(t)
		}
	}
	return t
}

// DoGet issues a GET and returns the fully read body.
func (t *HTTPTransport) DoGet(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := t.newRequest(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, err
	}
	return t.roundTrip(req)
}

// DoPost JSON-encodes payload and issues a POST.
func (t *HTTPTransport) DoPost(ctx context.Context, url string, headers map[string]string, payload any) (*Response, error) {
	req, err := t.newRequest(ctx, http.MethodPost, url, headers, payload)
	if err != nil {
		return nil, err
	}
	return t.roundTrip(req)
}

// OpenEventSource sends req and, on a 2xx status, returns an EventSource over
// the response body. Non-2xx statuses are read fully and returned as *StatusError.
func (t *HTTPTransport) OpenEventSource(ctx context.Context, r *Request) (EventSource, error) {
	method := r.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := t.newRequest(ctx, method, r.URL, r.Headers, r.Payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.doer.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: r.URL, Body: body}
	}

	return NewReaderEventSource(resp.Body), nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, url string, headers map[string]string, payload any) (*http.Request, error) {
	var body io.Reader
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (t *HTTPTransport) roundTrip(req *http.Request) (*Response, error) {
	resp, err := t.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String(), Body: body}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
