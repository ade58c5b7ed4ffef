package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, url string) Config {
	cfg := DefaultConfig(url)
	cfg.Timeout = 5 * time.Second
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	cfg.Breaker = DefaultBreakerConfig(t.Name())
	return cfg
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestCall_DecodesData(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		assert.Equal(t, "/api/v1/admin/scores/recalculate", r.URL.Path)
		writeEnvelope(w, http.StatusOK, `{"data":{"toolId":7,"reviewsProcessed":3}}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/")
	cfg.Token = "tkn"
	c := New(cfg, discardLogger())

	var out struct {
		ToolID           int64 `json:"toolId"`
		ReviewsProcessed int   `json:"reviewsProcessed"`
	}
	err := c.Call(context.Background(), http.MethodPost, "/api/v1/admin/scores/recalculate", map[string]any{"toolId": 7}, &out)
	require.NoError(t, err)

	assert.Equal(t, int64(7), out.ToolID)
	assert.Equal(t, 3, out.ReviewsProcessed)
	assert.Equal(t, "Bearer tkn", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, float64(7), gotBody["toolId"])
}

func TestCall_NoBodyNoContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(testConfig(t, srv.URL), discardLogger())
	require.NoError(t, c.Call(context.Background(), http.MethodPost, "/x", nil, nil))
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeEnvelope(w, http.StatusServiceUnavailable, `{"error":{"code":"SERVICE_UNAVAILABLE","message":"down"}}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"data":{"ok":true}}`)
	}))
	defer srv.Close()

	c := New(testConfig(t, srv.URL), discardLogger())
	var out map[string]bool
	require.NoError(t, c.Call(context.Background(), http.MethodGet, "/", nil, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadGateway, `upstream exploded`)
	}))
	defer srv.Close()

	c := New(testConfig(t, srv.URL), discardLogger())
	err := c.Call(context.Background(), http.MethodGet, "/", nil, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, "upstream exploded", statusErr.Body)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusNotFound, `{"error":{"code":"TOOL_NOT_FOUND","message":"tool with id 9 not found"}}`)
	}))
	defer srv.Close()

	c := New(testConfig(t, srv.URL), discardLogger())
	err := c.Call(context.Background(), http.MethodPost, "/", map[string]int{"toolId": 9}, nil)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TOOL_NOT_FOUND", appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_CircuitOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.MaxRetries = 0
	cfg.Breaker.Timeout = time.Minute
	c := New(cfg, discardLogger())

	for i := 0; i < 3; i++ {
		err := c.Call(context.Background(), http.MethodGet, "/", nil, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	err := c.Call(context.Background(), http.MethodGet, "/", nil, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_ClientErrorsDoNotTripCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, `{"error":{"code":"INVALID_TOOL_ID","message":"bad"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.MaxRetries = 0
	c := New(cfg, discardLogger())

	for i := 0; i < 5; i++ {
		err := c.Call(context.Background(), http.MethodGet, "/", nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
}

func TestCall_CanceledContextStopsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.RetryWaitMin = time.Hour
	cfg.RetryWaitMax = time.Hour
	c := New(cfg, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, http.MethodGet, "/", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&StatusError{Status: http.StatusBadGateway}))
	assert.False(t, isRetryable(&StatusError{Status: http.StatusNotImplemented}))
	assert.False(t, isRetryable(&StatusError{Status: http.StatusConflict}))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(errors.New("decode response envelope: bad")))
}
