package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, "test-api-key", opts...)
	require.NoError(t, err)
	return c
}

type testLogger struct {
	count atomic.Int32
}

func (l *testLogger) Debugf(string, ...interface{}) { l.count.Add(1) }
func (l *testLogger) Infof(string, ...interface{})  { l.count.Add(1) }
func (l *testLogger) Errorf(string, ...interface{}) { l.count.Add(1) }

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", "cid-1")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": "x", "code": code, "message": msg})
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.example.com/", "key")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "biodockviz-go-sdk/")

	for _, tt := range []struct{ name, url, key string }{
		{"empty url", "", "key"},
		{"empty key", "http://api.example.com", ""},
		{"bad scheme", "ftp://api.example.com", "key"},
		{"no scheme", "api.example.com", "key"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url, tt.key)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{Timeout: 5 * time.Second}
	logger := &testLogger{}
	c, err := NewClient("https://api.example.com", "key",
		WithHTTPClient(hc),
		WithLogger(logger),
		WithRetryMax(5),
		WithRetryWait(time.Second, 10*time.Second),
		WithUserAgent("custom/1"),
		WithBearerToken(),
	)
	require.NoError(t, err)
	assert.Same(t, hc, c.httpClient)
	assert.Same(t, logger, c.logger)
	assert.Equal(t, 5, c.retryMax)
	assert.Equal(t, time.Second, c.retryWaitMin)
	assert.Equal(t, 10*time.Second, c.retryWaitMax)
	assert.Equal(t, "custom/1", c.userAgent)
	assert.True(t, c.bearer)

	c, err = NewClient("https://api.example.com", "key",
		WithRetryMax(-1), WithRetryWait(2*time.Second, time.Second), WithUserAgent(""), WithHTTPClient(nil))
	require.NoError(t, err)
	assert.Equal(t, 3, c.retryMax)
	assert.Equal(t, 2*time.Second, c.retryWaitMin)
	assert.Equal(t, 5*time.Second, c.retryWaitMax)
	assert.NotNil(t, c.httpClient)
}

func TestClient_StructuresLazyInit(t *testing.T) {
	c, err := NewClient("http://api.example.com", "key")
	require.NoError(t, err)
	assert.Nil(t, c.structures)
	s1 := c.Structures()
	assert.Same(t, s1, c.Structures())
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		assert.Equal(t, "/api/v1/structures/abc", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	})
	_, err := c.Structures().Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "test-api-key", got.Get("X-API-Key"))
	assert.Empty(t, got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Correlation-ID"))
	assert.Contains(t, got.Get("User-Agent"), "biodockviz-go-sdk/")

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}, WithBearerToken())
	_, err = c.Structures().Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-api-key", got.Get("Authorization"))
	assert.Empty(t, got.Get("X-API-Key"))
}

func TestClient_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusNotFound, "STRUCT_001", "structure not found")
	})
	_, err := c.Structures().Get(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "STRUCT_001", apiErr.Code)
	assert.Equal(t, "structure not found", apiErr.Message)
	assert.Equal(t, "cid-1", apiErr.CorrelationID)
	assert.Contains(t, apiErr.Error(), "HTTP 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeError(w, http.StatusServiceUnavailable, "COMMON_008", "service unavailable")
			return
		}
		_, _ = io.WriteString(w, `{"id":"abc","stage":"analyzed"}`)
	})
	st, err := c.Structures().Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "analyzed", st.Stage)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetryMax(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusInternalServerError, "COMMON_001", "internal error")
	}, WithRetryMax(2))
	_, err := c.Structures().Get(context.Background(), "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RateLimitWithoutRetryAfter(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusTooManyRequests, "COMMON_007", "rate limit exceeded")
	})
	_, err := c.Structures().Get(context.Background(), "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())
	assert.Zero(t, apiErr.RetryAfter)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecodeAPIError_RetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	apiErr := decodeAPIError(resp, []byte("slow down"))
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadGateway, "COMMON_014", "bad gateway")
	}, WithRetryWait(time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Structures().Get(ctx, "abc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	})
	_, err := c.Structures().Get(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestClient_LogsRequests(t *testing.T) {
	logger := &testLogger{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, WithLogger(logger))
	_, err := c.Structures().Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Positive(t, logger.count.Load())
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}
	for attempt := 1; attempt <= 5; attempt++ {
		t.Run(fmt.Sprintf("attempt %d", attempt), func(t *testing.T) {
			b := c.calculateBackoff(attempt)
			base := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
			if base > c.retryWaitMax {
				base = c.retryWaitMax
			}
			assert.GreaterOrEqual(t, b, base)
			assert.LessOrEqual(t, b, base+base/4)
		})
	}
}
