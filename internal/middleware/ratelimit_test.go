package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiterConfig(generalBurst, authBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		AuthRate:        rate.Limit(1.0 / 60.0),
		AuthBurst:       authBurst,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/anime/trending", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("203.0.113.1:5000"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimiter_Returns429WhenExceeded(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(2, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.1:5000"))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("203.0.113.1:5001"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if retry, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || retry < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestRateLimiter_IndependentPerClient(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.1:1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("203.0.113.2:1"))
	if w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}

	authed := requestFrom("203.0.113.1:1")
	authed = authed.WithContext(ContextWithUserID(authed.Context(), "user-1"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authed)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated user status = %d, want 200 (keyed by user id)", w.Code)
	}

	if got := rl.GeneralLimiterCount(); got != 3 {
		t.Errorf("GeneralLimiterCount = %d, want 3", got)
	}
}

func TestRateLimiter_AuthIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(10, 1))
	defer rl.Stop()
	general := rl.GeneralMiddleware()(okHandler())
	auth := rl.AuthMiddleware()(okHandler())

	w := httptest.NewRecorder()
	auth.ServeHTTP(w, requestFrom("203.0.113.9:1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first auth request status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	auth.ServeHTTP(w, requestFrom("203.0.113.9:1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second auth request status = %d, want 429", w.Code)
	}
	if retry, _ := strconv.Atoi(w.Header().Get("Retry-After")); retry < 60 {
		t.Errorf("Retry-After = %d, want at least 60", retry)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("203.0.113.9:1"))
	if w.Code != http.StatusOK {
		t.Errorf("general request status = %d, want 200", w.Code)
	}
	if rl.AuthLimiterCount() != 1 || rl.GeneralLimiterCount() != 1 {
		t.Errorf("counts = %d/%d", rl.AuthLimiterCount(), rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_CleanupEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 5))
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.1:1"))
	rl.AuthMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.1:1"))

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("recent client should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.AuthLimiterCount() != 0 {
		t.Errorf("idle clients should be evicted: %d/%d", rl.GeneralLimiterCount(), rl.AuthLimiterCount())
	}
}

func TestNewRateLimiterConfig_PerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 0)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want default 10", cfg.AuthBurst)
	}
	if rl := NewRateLimiter(DefaultRateLimiterConfig()); rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	} else {
		rl.Stop()
		rl.Stop()
	}
}
