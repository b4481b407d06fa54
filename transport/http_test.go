package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportDoPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m", body["model"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tr := NewHTTP(Config{}, WithHTTPClient(srv.Client()))
	resp, err := tr.DoPost(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k"}, map[string]any{"model": "m"})
	require.NoError(t, err)

	var out map[string]bool
	require.NoError(t, resp.DecodeJSON(&out))
	assert.True(t, out["ok"])
}

func TestHTTPTransportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	tr := NewHTTP(Config{}, WithHTTPClient(srv.Client()))
	_, err := tr.DoGet(context.Background(), srv.URL+"/models", nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, string(se.Body), "bad key")
	assert.Contains(t, se.Error(), "401")
}

func TestHTTPTransportOpenEventSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"n\":1}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	tr := NewHTTP(Config{}, WithHTTPClient(srv.Client()))
	src, err := tr.OpenEventSource(context.Background(), &Request{URL: srv.URL, Payload: map[string]any{"stream": true}})
	require.NoError(t, err)
	defer src.Close()

	var kinds []EventKind
	var data []string
	for {
		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		data = append(data, ev.Data)
	}
	assert.Equal(t, []EventKind{EventOpen, EventMessage, EventMessage}, kinds)
	assert.Equal(t, []string{"", `{"n":1}`, "[DONE]"}, data)
}

func TestHTTPTransportOpenEventSourceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTP(Config{}, WithHTTPClient(srv.Client()))
	_, err := tr.OpenEventSource(context.Background(), &Request{URL: srv.URL})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestHTTPTransportNoImplicitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := NewHTTP(Config{}, WithHTTPClient(srv.Client()))
	_, err := tr.DoGet(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPTransportWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":1}`, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	tr := NewHTTP(Config{},
		WithHTTPClient(srv.Client()),
		WithRetry(RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	)
	_, err := tr.DoPost(context.Background(), srv.URL, nil, map[string]int{"q": 1})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, parseRetryAfter(nil))
	assert.Zero(t, parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "2")
	assert.Equal(t, 2*time.Second, parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "garbage")
	assert.Zero(t, parseRetryAfter(resp))
}
