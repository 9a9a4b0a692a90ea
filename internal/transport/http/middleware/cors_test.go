package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const frontend = "https://chat.example.github.io"

func serveWithPolicy(p *CORSPolicy, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("OPTIONS /", p.Preflight)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	p.Middleware(mux).ServeHTTP(rec, req)
	return rec
}

func TestCORS_StampsEveryNonPreflightResponse(t *testing.T) {
	p := NewCORSPolicy(frontend+"/", nil)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := serveWithPolicy(p, httptest.NewRequest(method, "/anything", nil))

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != frontend {
				t.Errorf("allow-origin = %q, want %q", got, frontend)
			}
			if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "*" {
				t.Errorf("allow-headers = %q, want *", got)
			}
			if rec.Header().Get("Vary") != "" {
				t.Error("vary should not be set without an allow-list")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	p := NewCORSPolicy(frontend, nil)
	req := httptest.NewRequest(http.MethodOptions, "/payload/abc", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := serveWithPolicy(p, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("preflight body should be empty, got %q", rec.Body.String())
	}
	want := map[string]string{
		"Access-Control-Allow-Origin":  frontend,
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "*",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCORS_AllowListEchoesMatchingOrigin(t *testing.T) {
	p := NewCORSPolicy(frontend, []string{"http://localhost:5173", "https://*.preview.example.dev"})

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://pr-12.preview.example.dev", "https://pr-12.preview.example.dev"},
		{"https://evil.example", frontend},
		{"", frontend},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rec := serveWithPolicy(p, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("allow-origin = %q, want %q", got, tt.want)
			}
			if rec.Header().Get("Vary") != "Origin" {
				t.Error("expected Vary: Origin when echoing origins")
			}
		})
	}
}
