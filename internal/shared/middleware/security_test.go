package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name string
		hsts bool
	}{
		{"development", false},
		{"production", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SecurityHeaders(tt.hsts)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
				t.Errorf("Expected X-Frame-Options DENY, got %q", got)
			}
			if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("Expected nosniff, got %q", got)
			}
			hasHSTS := rec.Header().Get("Strict-Transport-Security") != ""
			if hasHSTS != tt.hsts {
				t.Errorf("Expected HSTS %v, got %v", tt.hsts, hasHSTS)
			}
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	handler := limiter.Middleware(ok)

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = ip + ":5123"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := request("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i, code)
		}
	}
	if code := request("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", code)
	}
	if code := request("10.0.0.2"); code != http.StatusOK {
		t.Errorf("Expected other IP to pass, got %d", code)
	}
}

func TestIPRateLimiterResponse(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	handler := limiter.Middleware(ok)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Expected Retry-After 1, got %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "RATE_LIMITED") {
		t.Errorf("Expected RATE_LIMITED code, got %s", body)
	}
}

func TestIPRateLimiterPrune(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("10.0.0.1")
	now = now.Add(5 * time.Minute)
	limiter.GetLimiter("10.0.0.2")
	now = now.Add(6 * time.Minute)

	if removed := limiter.Prune(); removed != 1 {
		t.Errorf("Expected 1 pruned visitor, got %d", removed)
	}
	if _, exists := limiter.visitors["10.0.0.2"]; !exists {
		t.Error("Expected recent visitor to be kept")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.1:80", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
}
