package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetrieveParsesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/things/42", r.URL.Path)
		assert.Equal(t, "C-1", r.URL.Query().Get("contractId"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, nil, zap.NewNop())
	headers := http.Header{}
	headers.Set("Accept", "application/json")

	resp, err := a.Retrieve(context.Background(), "/things/42", url.Values{"contractId": {"C-1"}}, headers)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "42"}, resp.Body)
}

func TestCreateSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"name": "thing"}, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, nil, zap.NewNop())

	resp, err := a.Create(context.Background(), "/things", map[string]any{"name": "thing"}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]any{"created": true}, resp.Body)
}

func TestErrorStatusPreservesBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-9")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"forbidden"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, nil, zap.NewNop())

	_, err := a.Retrieve(context.Background(), "/things", nil, nil)

	var remote *Error
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
	assert.Equal(t, map[string]any{"detail": "forbidden"}, remote.Body)
	assert.Equal(t, "req-9", remote.Headers.Get("X-Request-Id"))
}

func TestConnectivityFailure(t *testing.T) {
	// Reserve a port and close the listener so nothing is listening.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	a := NewHTTPAdapter(addr, nil, zap.NewNop())

	_, err := a.Retrieve(context.Background(), "/things", nil, nil)

	var connectivity *ConnectivityError
	require.ErrorAs(t, err, &connectivity)
	assert.Contains(t, connectivity.Op, "GET /things")
}

func TestNonJSONBodyKeptAsString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, nil, zap.NewNop())

	resp, err := a.Retrieve(context.Background(), "/raw", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "plain text", resp.Body)
}

func TestRemove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, nil, zap.NewNop())

	resp, err := a.Remove(context.Background(), "/things/42", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, resp.Body)
}
