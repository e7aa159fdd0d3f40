package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atendai/atendai/internal/testutil"
)

func TestRateLimiter_ExhaustsBurst(t *testing.T) {
	rl := newRateLimiter(0.0001, 3)

	for i := range 3 {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request allowed past the burst")
	}
	// Other IPs have their own bucket.
	if !rl.allow("10.0.0.2") {
		t.Fatal("fresh IP denied")
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl := newRateLimiter(0.0001, 1)
	handler := rateLimitMiddleware(rl, false, testutil.DiscardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatal("missing Retry-After header")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.10:1234",
			want:       "192.0.2.10",
		},
		{
			name:       "proxy headers ignored without trust",
			remoteAddr: "192.0.2.10:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "192.0.2.10",
		},
		{
			name:       "x-real-ip preferred",
			remoteAddr: "192.0.2.10:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.9"},
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "first forwarded-for entry",
			remoteAddr: "192.0.2.10:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.7"},
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "garbage header falls back",
			remoteAddr: "192.0.2.10:1234",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "192.0.2.10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Fatalf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
