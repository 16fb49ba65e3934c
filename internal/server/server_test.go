package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/pkg/health"
	"relay/pkg/middleware"
)

type stateStub struct {
	state            string
	serving, stopped bool
}

func (s *stateStub) Health() (string, bool, bool) {
	return s.state, s.serving, s.stopped
}

func newTestServer(src StateSource) *Server {
	checks := health.NewCheckerRegistry()
	checks.Register(NewStateChecker("session", src))
	info := Info{Service: "relay", Version: "test", Mappings: 3, Sources: 2}
	return New(config.ServerConfig{Port: 8080, ReadTimeoutSeconds: 1, WriteTimeoutSeconds: 1}, false, checks, info, logger.NewFromZap(zap.NewNop()))
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		src        *stateStub
		wantCode   int
		wantStatus health.Status
	}{
		{name: "running", src: &stateStub{state: "running", serving: true}, wantCode: http.StatusOK, wantStatus: health.StatusHealthy},
		{name: "reconnecting", src: &stateStub{state: "reconnecting"}, wantCode: http.StatusOK, wantStatus: health.StatusDegraded},
		{name: "terminated", src: &stateStub{state: "terminated", stopped: true}, wantCode: http.StatusServiceUnavailable, wantStatus: health.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(tt.src), "/health")
			assert.Equal(t, tt.wantCode, rec.Code)

			var body struct {
				Status  health.Status                 `json:"status"`
				Service string                        `json:"service"`
				Checks  map[string]health.CheckResult `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "relay", body.Service)
			assert.Equal(t, tt.wantStatus, body.Checks["session"].Status)
		})
	}
}

type breakerStub []string

func (b breakerStub) Open() []string { return b }

func TestBreakerChecker(t *testing.T) {
	checks := health.NewCheckerRegistry()
	checks.Register(NewBreakerChecker("delivery", breakerStub{"delivery:-200", "delivery:-300#4"}))
	checks.Register(NewBreakerChecker("idle", breakerStub(nil)))

	h := checks.Check(context.Background())

	assert.Equal(t, health.StatusDegraded, h.Status)
	assert.Equal(t, health.StatusDegraded, h.Checks["delivery"].Status)
	assert.Contains(t, h.Checks["delivery"].Message, "delivery:-200, delivery:-300#4")
	assert.Equal(t, health.StatusHealthy, h.Checks["idle"].Status)
}

func TestPing(t *testing.T) {
	rec := get(t, newTestServer(&stateStub{serving: true}), "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestInfo(t *testing.T) {
	rec := get(t, newTestServer(&stateStub{serving: true}), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"relay","version":"test","mappings":3,"sources":2}`, rec.Body.String())
}

func TestMetricsAndRequestID(t *testing.T) {
	rec := get(t, newTestServer(&stateStub{serving: true}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
