package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:4000", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 198.51.100.7 , 10.0.0.1"}, "10.0.0.2:80", "198.51.100.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.8"}, "10.0.0.2:80", "198.51.100.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter(15 * time.Minute); got != "900" {
		t.Errorf("retryAfter(15m) = %q", got)
	}
	if got := retryAfter(200 * time.Millisecond); got != "1" {
		t.Errorf("retryAfter(200ms) = %q", got)
	}
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		headers map[string]string
		want    int
	}{
		{"bearer", "k1", map[string]string{"Authorization": "Bearer k1"}, http.StatusNoContent},
		{"lowercase scheme", "k1", map[string]string{"Authorization": "bearer k1"}, http.StatusNoContent},
		{"header", "k1", map[string]string{"X-API-Key": "k1"}, http.StatusNoContent},
		{"missing", "k1", nil, http.StatusUnauthorized},
		{"basic scheme", "k1", map[string]string{"Authorization": "Basic k1"}, http.StatusUnauthorized},
		{"no key configured", "", map[string]string{"X-API-Key": ""}, http.StatusUnauthorized},
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			RequireAPIKey(tt.key)(ok).ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCORSDefaultsToAnyOrigin(t *testing.T) {
	h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	r := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	r.Header.Set("Origin", "https://qualquer.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
