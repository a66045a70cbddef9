package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcdev12/focusflow/go/internal/config"
	"github.com/mcdev12/focusflow/go/internal/health"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.Auth.Secret = secret

	stores, err := setupStores(ctx, &cfg)
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	services, err := setupServices(ctx, &cfg, stores)
	require.NoError(t, err)
	t.Cleanup(services.Close)

	srv := httptest.NewServer(setupServer(&cfg, services).Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_Wiring(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.Healthy)

	resp, err = http.Post(srv.URL+"/api/sessions", "application/json",
		strings.NewReader(`{"durationMinutes":25,"breakMinutes":5,"longBreakMinutes":15,"totalCycles":4}`))
	require.NoError(t, err)
	var created models.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/sessions/"+created.ID.String()+"/status", strings.NewReader(`{"status":"ACTIVE"}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/activity/sessions/" + created.ID.String())
	require.NoError(t, err)
	var entries []models.ActivityLog
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	resp.Body.Close()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivitySessionStarted, entries[0].Type)

	resp, err = http.Get(srv.URL + "/api/config/demo-mode")
	require.NoError(t, err)
	var demo map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&demo))
	resp.Body.Close()
	assert.Equal(t, true, demo["demoMode"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "focusflow_hub_published_total 1")
	assert.Contains(t, string(body), `focusflow_sessions_status_transitions_total{from="CREATED",to="ACTIVE"} 1`)
}

func TestServer_RejectsBadTokens(t *testing.T) {
	srv := newTestServer(t, "s3cret")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions/history", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/sessions/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
