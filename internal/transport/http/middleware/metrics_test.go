package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"payload slug collapses", "/payload/ab12cd34", "/payload/{slug}"},
		{"nested payload path keeps first segment", "/payload/a/b", "/payload/*"},
		{"root path unchanged", "/", "/"},
		{"empty path is root", "", "/"},
		{"single segment unchanged", "/create", "/create"},
		{"deep proxy path truncated", "/v1/chat/completions", "/v1/*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePath(tt.path)
			if got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestWrappedWritersStillFlush(t *testing.T) {
	flushed := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("chunk"))
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("flush through middleware failed: %v", err)
			return
		}
		flushed = true
	})

	h := MetricsMiddleware(LoggingMiddleware(inner))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if !flushed || !rec.Flushed {
		t.Error("expected the recorder to be flushed")
	}
}
