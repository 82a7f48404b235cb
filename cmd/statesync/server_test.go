package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IEBH/statesync/store"
)

func newTestServer(t *testing.T, saved bool) (*httptest.Server, *store.Registry) {
	t.Helper()

	registry := store.NewRegistry()
	require.NoError(t, registry.Register(store.NewMapStore("a", map[string]any{"x": float64(1)})))

	handle := &syncengineHandle{
		SaveNow:       func(context.Context) bool { return saved },
		CurrentStatus: func() string { return "saved" },
	}
	api := newAPIServer(handle, registry, nil, slog.Default())
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return srv, registry
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "saved", body["sync_status"])
}

func TestSaveEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, err := http.Post(srv.URL+"/save", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveEndpointConflict(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp, err := http.Post(srv.URL+"/save", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStoreGetAndPatch(t *testing.T) {
	srv, registry := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/stores/a")
	require.NoError(t, err)
	var state map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	_ = resp.Body.Close()
	assert.Equal(t, float64(1), state["x"])

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/stores/a", strings.NewReader(`{"y":2}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, ok := registry.Get("a").(*store.MapStore).Get("y")
	require.True(t, ok)
	assert.Equal(t, float64(2), got)
}

func TestStoreNotFound(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/stores/missing")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigValidation(t *testing.T) {
	cfg := &FileConfig{}
	applyDefaults(cfg)
	assert.Error(t, validateConfig(cfg), "no stores configured")

	cfg.Stores = []StoreSpec{{ID: "a"}, {ID: "a"}}
	assert.Error(t, validateConfig(cfg), "duplicate store id")

	cfg.Stores = []StoreSpec{{ID: "a"}}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.ProjectID = "proj-1"
	assert.NoError(t, validateConfig(cfg))
}
