package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/engine"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/router"
	"github.com/benekli/minerva/pkg/strategies"
)

type stubEngine struct {
	response  *engine.Response
	err       error
	providers map[string]bool

	lastRequest *engine.Request
}

func (s *stubEngine) Query(_ context.Context, req *engine.Request) (*engine.Response, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubEngine) Health(context.Context) map[string]bool {
	return s.providers
}

func serverConfig() *config.ServerConfig {
	cfg := &config.ServerConfig{}
	cfg.SetDefaults()
	return cfg
}

func newTestServer(t *testing.T, stub *stubEngine) *httptest.Server {
	t.Helper()
	s, err := New(serverConfig(), stub, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestQueryEndpoint(t *testing.T) {
	stub := &stubEngine{response: &engine.Response{
		Decision: &router.RoutingDecision{
			Query:       "hello",
			PrimaryTask: router.TaskChat,
			Confidence:  0.5,
			Method:      router.MethodKeyword,
		},
		Kind: router.TaskChat,
		Chat: &strategies.ChatResult{Message: "hi there"},
	}}
	ts := newTestServer(t, stub)

	resp, err := http.Post(ts.URL+"/v1/query", "application/json",
		strings.NewReader(`{"query": "hello", "context": {"conversation_id": "c1"}, "timeout_ms": 5000}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var decoded engine.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, router.TaskChat, decoded.Kind)
	require.NotNil(t, decoded.Chat)
	assert.Equal(t, "hi there", decoded.Chat.Message)

	require.NotNil(t, stub.lastRequest)
	assert.Equal(t, "hello", stub.lastRequest.Query)
	assert.Equal(t, "c1", stub.lastRequest.Context["conversation_id"])
	assert.Equal(t, int64(5000), stub.lastRequest.TimeoutMS)
}

func TestQueryEndpointRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, &stubEngine{})

	resp, err := http.Post(ts.URL+"/v1/query", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryEndpointMapsEngineErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("routing failed: %w", llms.ErrAllProvidersFailed), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		ts := newTestServer(t, &stubEngine{err: tt.err})

		resp, err := http.Post(ts.URL+"/v1/query", "application/json",
			strings.NewReader(`{"query": "anything"}`))
		require.NoError(t, err)
		assert.Equal(t, tt.code, resp.StatusCode, tt.err.Error())
		_ = resp.Body.Close()
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{providers: map[string]bool{"openai": true, "ollama": false}})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Providers["openai"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	ts := newTestServer(t, &stubEngine{providers: map[string]bool{"openai": false}})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
