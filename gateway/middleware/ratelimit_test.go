package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("write")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/claims", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesGroups(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"read":  {RatePerSecond: 1, Burst: 1},
		"write": {RatePerSecond: 1, Burst: 1},
	}, nil)
	read := limiter.Middleware("read")(okHandler())
	write := limiter.Middleware("write")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/currencies", nil)
	res := httptest.NewRecorder()
	read.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected read to succeed, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	write.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected write bucket to be independent, got %d", res.Code)
	}
}

func TestRateLimiterKeysOnCaller(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("write")(okHandler())

	for _, addr := range []string{"0x00000000000000000000000000000000000000a1", "0x00000000000000000000000000000000000000a2"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/claims", nil)
		req = req.WithContext(context.WithValue(req.Context(), ContextKeyCaller, common.HexToAddress(addr)))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected %s to have its own bucket, got %d", addr, res.Code)
		}
	}
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(map[string]RateLimit{"read": {RatePerSecond: 1, Burst: 1}}, nil)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("read")(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected one visitor, got %d", len(limiter.visitors))
	}
	now = now.Add(10 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-Real-IP", "10.0.0.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected idle visitor to be swept, got %d", len(limiter.visitors))
	}
}
