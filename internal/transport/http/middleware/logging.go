package middleware

import (
	"net/http"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LoggingMiddleware logs incoming requests with Zap and includes trace context.
// Upstream failures relayed as-is are logged at info like any other status.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		// Build log fields
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.written),
			zap.Duration("duration", duration),
			zap.String("remote_addr", r.RemoteAddr),
		}

		// Add trace context if available
		span := trace.SpanFromContext(r.Context())
		if span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		if id := w.Header().Get("X-Correlation-Id"); id != "" {
			fields = append(fields, zap.String("correlation_id", id))
		}

		logger.Info("request completed", fields...)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture the status code
// and body size.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *loggingResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (rw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
