package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/constants"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/metrics"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/quota"
	"github.com/IgorGrieder/llm-edge-gateway/internal/upstream"
	"github.com/IgorGrieder/llm-edge-gateway/pkg/httputils"
	"go.uber.org/zap"
)

const (
	relayChunkSize      = 32 << 10
	usageRecordTimeout  = 5 * time.Second
	accessControlPrefix = "Access-Control-"
)

// Hop-by-hop headers are never copied from the upstream response.
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

type ProxyHandler struct {
	ledger       *quota.Ledger
	relay        *upstream.Relay
	maxBodyBytes int64
	captureLimit int
}

func NewProxyHandler(ledger *quota.Ledger, relay *upstream.Relay, maxBodyBytes int64) *ProxyHandler {
	return &ProxyHandler{
		ledger:       ledger,
		relay:        relay,
		maxBodyBytes: maxBodyBytes,
		captureLimit: upstream.DefaultCaptureLimit,
	}
}

// Relay checks the daily budget, forwards the body unchanged and streams the
// reply back. Token usage is read from a side copy of the reply afterwards;
// any failure there leaves the reply untouched and counts as zero tokens.
func (h *ProxyHandler) Relay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputils.WriteAPIError(w, r, constants.ErrBodyTooLarge)
			return
		}
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}

	day := h.ledger.Today()
	allowed, err := h.ledger.CheckAndReserve(r.Context(), day)
	if err != nil {
		// Fail open on store errors.
		metrics.QuotaStoreErrors.WithLabelValues("read").Inc()
		logger.Warn("quota check failed, admitting request", zap.Error(err), zap.String("day", day))
		allowed = true
	}
	if !allowed {
		metrics.QuotaRejections.Inc()
		httputils.WriteAPIError(w, r, constants.ErrQuotaExhausted)
		return
	}

	resp, err := h.relay.Forward(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, upstream.ErrUnavailable):
			metrics.UpstreamRelays.WithLabelValues("breaker_open").Inc()
			httputils.WriteAPIError(w, r, constants.ErrUpstreamUnavailable)
		case r.Context().Err() != nil:
			metrics.UpstreamRelays.WithLabelValues("client_gone").Inc()
		default:
			metrics.UpstreamRelays.WithLabelValues("transport_error").Inc()
			logger.Error("upstream relay failed", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrUpstreamFailure)
		}
		return
	}
	defer resp.Body.Close()

	metrics.UpstreamRelays.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	copyUpstreamHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	capture := upstream.NewUsageCapture(h.captureLimit)
	if err := stream(w, io.TeeReader(resp.Body, capture)); err != nil {
		logger.Debug("relay stream ended early", zap.Error(err))
	}

	tokens, ok := capture.TotalTokens()
	if !ok {
		metrics.UsageUnparsed.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), usageRecordTimeout)
	defer cancel()

	attr := quota.Attribution{Model: upstream.RequestModel(body), Source: quota.SourceChat}
	if err := h.ledger.RecordUsage(ctx, day, tokens, attr); err != nil {
		metrics.QuotaStoreErrors.WithLabelValues("write").Inc()
		logger.Warn("failed to record token usage", zap.Error(err), zap.String("day", day), zap.Int64("tokens", tokens))
	}
}

// stream copies src to w, flushing after every chunk so streamed completions
// reach the client as they arrive.
func stream(w http.ResponseWriter, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, relayChunkSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func copyUpstreamHeaders(dst, src http.Header) {
	for k, vv := range src {
		if _, hop := hopHeaders[k]; hop {
			continue
		}
		if strings.HasPrefix(k, accessControlPrefix) {
			continue
		}
		if k != "Vary" {
			dst.Del(k)
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
