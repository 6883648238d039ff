package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	s := New()

	w := probe(s.LiveEndpoint)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	s := New()
	s.AddLivenessCheck("wedged", time.Second, func(context.Context) error {
		return errors.New("stuck")
	})

	w := probe(s.LiveEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "stuck")
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many goroutines")
}

func TestReadyEndpoint_GateClosed(t *testing.T) {
	s := New()

	w := probe(s.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "service is not ready")
}

func TestReadyEndpoint_ChecksPass(t *testing.T) {
	s := New()
	s.AddReadinessCheck("db", time.Second, func(context.Context) error { return nil })
	s.SetReady(true)

	w := probe(s.ReadyEndpoint)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.IsReady(context.Background()))
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	s := New()
	s.cacheTTL = 0
	s.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	s.SetReady(true)

	w := probe(s.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.False(t, s.IsReady(context.Background()))
}

func TestCheckResultIsCached(t *testing.T) {
	s := New()
	calls := 0
	s.AddReadinessCheck("db", time.Second, func(context.Context) error {
		calls++
		return nil
	})
	s.SetReady(true)

	probe(s.ReadyEndpoint)
	probe(s.ReadyEndpoint)
	assert.Equal(t, 1, calls, "second probe within the TTL reuses the result")
}

func TestSetReadyFalseStopsTraffic(t *testing.T) {
	s := New()
	s.SetReady(true)
	require.Equal(t, http.StatusOK, probe(s.ReadyEndpoint).Code)

	s.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, probe(s.ReadyEndpoint).Code)
}
