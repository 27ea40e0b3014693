package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	s := New("127.0.0.1:0", db, "release", nil)

	mock.ExpectPing()
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "healthy")

	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)
	resp = httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "aevon_test_total", Help: "test"}).Inc()

	s := New("127.0.0.1:0", nil, "release", reg)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "aevon_test_total 1")
}

func TestMetricsEndpointDisabled(t *testing.T) {
	s := New("127.0.0.1:0", nil, "release", nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := New("127.0.0.1:0", nil, "release", nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
