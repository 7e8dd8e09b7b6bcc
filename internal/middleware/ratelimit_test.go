package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitFixture(t *testing.T, scope string, maxReqs, windowSec int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, scope, maxReqs, windowSec), mr
}

func hitFrom(t *testing.T, handler http.Handler, addr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl, _ := rateLimitFixture(t, "login", 5, 60)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := hitFrom(t, handler, "192.168.1.1:12345")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl, mr := rateLimitFixture(t, "login", 3, 60)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rec := hitFrom(t, handler, "10.0.0.1:12345")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := hitFrom(t, handler, "10.0.0.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// The window lives under the service's own key namespace.
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "proxydesk:ratelimit:login:10.0.0.1", keys[0])
}

func TestRateLimiterScopesAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	login := NewRateLimiter(client, "login", 1, 60).Middleware(okHandler())
	claims := NewRateLimiter(client, "claims", 1, 60).Middleware(okHandler())

	// Exhaust the login window for this IP.
	require.Equal(t, http.StatusOK, hitFrom(t, login, "9.9.9.9:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hitFrom(t, login, "9.9.9.9:1").Code)

	// The claims window for the same IP is untouched.
	assert.Equal(t, http.StatusOK, hitFrom(t, claims, "9.9.9.9:1").Code)
}

func TestRateLimiterDifferentIPsIndependent(t *testing.T) {
	rl, _ := rateLimitFixture(t, "login", 2, 60)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 2; i++ {
		hitFrom(t, handler, "1.1.1.1:1")
	}

	rec := hitFrom(t, handler, "2.2.2.2:1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterFailsOpenOnRedisError(t *testing.T) {
	rl, mr := rateLimitFixture(t, "login", 1, 60)
	mr.Close()

	handler := rl.Middleware(okHandler())
	rec := hitFrom(t, handler, "3.3.3.3:1")
	assert.Equal(t, http.StatusOK, rec.Code)
}
