package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		header     string
		value      string
		wantStatus int
	}{
		{name: "disabled when no key configured", apiKey: "", wantStatus: http.StatusOK},
		{name: "missing token", apiKey: "secret", wantStatus: http.StatusUnauthorized},
		{name: "bearer token accepted", apiKey: "secret", header: "Authorization", value: "Bearer secret", wantStatus: http.StatusOK},
		{name: "api key header accepted", apiKey: "secret", header: "X-API-Key", value: "secret", wantStatus: http.StatusOK},
		{name: "wrong token rejected", apiKey: "secret", header: "X-API-Key", value: "nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.apiKey)(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/api/admin/resolve", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

type stubLimiter struct {
	allowed bool
	err     error
	gotKey  string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.gotKey = key
	return s.allowed, s.err
}

func TestRateLimit(t *testing.T) {
	t.Run("allowed request passes", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		h := RateLimit(limiter, 5, time.Minute)(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/proposals", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "api:10.0.0.1", limiter.gotKey)
	})

	t.Run("blocked request gets 429", func(t *testing.T) {
		h := RateLimit(&stubLimiter{allowed: false}, 5, time.Minute)(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/proposals", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		h := RateLimit(&stubLimiter{err: assert.AnError}, 5, time.Minute)(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/proposals", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forwarded header wins", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		h := RateLimit(limiter, 5, time.Minute)(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/proposals", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "api:203.0.113.9", limiter.gotKey)
	})
}
