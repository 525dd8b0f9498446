package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/api/v1/complaints", "/api/v1/complaints"},
		{"/api/v1/complaints/3f2b8c1e-9a4d-4e0b-8f6a-2d7c5b1e0a93/responses", "/api/v1/complaints/{id}/responses"},
		{"/api/v1/locations/districts", "/api/v1/locations/districts"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestMiddlewareCountsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/brew", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/brew", "418"))

	if after-before != 1 {
		t.Errorf("Expected counter to grow by 1, got %v", after-before)
	}
}

func TestRecordLogin(t *testing.T) {
	before := testutil.ToFloat64(loginsTotal.WithLabelValues("failure"))
	RecordLogin(false)
	if got := testutil.ToFloat64(loginsTotal.WithLabelValues("failure")) - before; got != 1 {
		t.Errorf("Expected 1 failed login recorded, got %v", got)
	}
}
