package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

type stubVerifier struct {
	principal auth.Principal
	err       error
}

func (s stubVerifier) Verify(ctx context.Context, rawToken string) (auth.Principal, error) {
	return s.principal, s.err
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func TestPrincipalMiddleware(t *testing.T) {
	verified := auth.Principal{ID: "u1", Email: "ada@acme.test"}

	t.Run("valid token reaches handler with principal", func(t *testing.T) {
		var got auth.Principal
		handler := Principal(stubVerifier{principal: verified}, testLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = contextkeys.GetPrincipal(r.Context())
			}))

		req := httptest.NewRequest("GET", "/agencies/a1", nil)
		req.Header.Set("Authorization", "Bearer token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, verified, got)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		handler := Principal(stubVerifier{principal: verified}, testLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not run")
			}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/agencies/a1", nil))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		handler := Principal(stubVerifier{err: errors.New("expired")}, testLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not run")
			}))

		req := httptest.NewRequest("GET", "/agencies/a1", nil)
		req.Header.Set("Authorization", "Bearer bad")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	assert.True(t, limiter.Allow("user:a"))
	assert.True(t, limiter.Allow("user:a"))
	assert.False(t, limiter.Allow("user:a"))
	// Separate keys have separate buckets.
	assert.True(t, limiter.Allow("user:b"))
}

func TestRateLimitMiddleware(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := RateLimit(limiter, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/agencies/a1", nil)
	req.RemoteAddr = "10.0.0.1:55555"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	rejected := httptest.NewRecorder()
	handler.ServeHTTP(rejected, req)
	assert.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.NotEmpty(t, rejected.Header().Get("Retry-After"))
}

func TestDistributedRateLimiter(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, "test")
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := limiter.Remaining(ctx, "user:a")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	ttl, err := limiter.ttl(ctx, "user:a")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// The window expires and the quota refills.
	server.FastForward(time.Minute + time.Second)
	allowed, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "user:a"))
	remaining, err = limiter.Remaining(ctx, "user:a")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestDistributedRateLimitFailsOpen(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()
	server.Close() // force errors

	limiter := NewDistributedRateLimiter(client, nil, "test")
	handler := DistributedRateLimit(limiter, nil, testLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/agencies/a1", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}
