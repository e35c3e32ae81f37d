package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClientOpts(baseURL string) []Option {
	return []Option{
		WithBaseURL(baseURL),
		WithRetryCount(3),
		WithRetryWaitTime(time.Millisecond),
		WithRetryMaxWaitTime(5 * time.Millisecond),
		WithRetryAfterInterval(0),
	}
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := New(fastClientOpts(srv.URL)...).R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := New(fastClientOpts(srv.URL)...).R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, int32(1), calls.Load())
}

func TestHeadersAreSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo", r.Header.Get("X-Source"))
	}))
	defer srv.Close()

	opts := append(fastClientOpts(srv.URL), WithHeader("X-Source", "taskmart"))

	resp, err := New(opts...).R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, "taskmart", resp.Header().Get("X-Echo"))
}

func TestRetryClassification(t *testing.T) {
	assert.False(t, isRetryableStatus(nil))
	assert.True(t, isRetryableError(&testTimeoutErr{}))
	assert.False(t, isRetryableError(nil))
}

type testTimeoutErr struct{}

func (testTimeoutErr) Error() string   { return "timeout" }
func (testTimeoutErr) Timeout() bool   { return true }
func (testTimeoutErr) Temporary() bool { return true }
