package http

import (
	"net/http"
	"path"
	"strings"

	"github.com/IgorGrieder/llm-edge-gateway/internal/config"
	"github.com/IgorGrieder/llm-edge-gateway/internal/constants"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/links"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/quota"
	"github.com/IgorGrieder/llm-edge-gateway/internal/transport/http/middleware"
	"github.com/IgorGrieder/llm-edge-gateway/internal/upstream"
	"github.com/IgorGrieder/llm-edge-gateway/pkg/httputils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const allowedMethods = "GET, POST, OPTIONS"

type RouterOptions struct {
	EnableLogging bool
	EnableMetrics bool
	EnableTracing bool
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableLogging: true,
		EnableMetrics: true,
		EnableTracing: true,
	}
}

func NewRouter(cfg *config.Config, linkService *links.Service, ledger *quota.Ledger, relay *upstream.Relay) http.Handler {
	return NewRouterWithOptions(cfg, linkService, ledger, relay, DefaultRouterOptions())
}

// NewRouterWithOptions wires the public routing table:
//
//	OPTIONS *            CORS preflight
//	POST /create         create a negotiation link
//	GET  /payload/{slug} fetch a stored link payload
//	POST *               relay to the completion API
//	GET/HEAD *           404
//	anything else        405
func NewRouterWithOptions(cfg *config.Config, linkService *links.Service, ledger *quota.Ledger, relay *upstream.Relay, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	corsPolicy := middleware.NewCORSPolicy(cfg.CORS.FrontendOrigin, cfg.CORS.AllowedOrigins)
	linksHandler := NewLinksHandler(linkService, cfg.Server.MaxBodyBytes)
	proxyHandler := NewProxyHandler(ledger, relay, cfg.Server.MaxBodyBytes)

	mux.HandleFunc("OPTIONS /", corsPolicy.Preflight)
	mux.HandleFunc("POST /create", linksHandler.Create)
	mux.HandleFunc("GET /payload/{slug}", linksHandler.Fetch)
	mux.HandleFunc("POST /", proxyHandler.Relay)
	mux.HandleFunc("/", fallback)

	var innerHandler http.Handler = corsPolicy.Middleware(cleanPath(mux))
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}
	if !opts.EnableTracing {
		return innerHandler
	}

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return spanName(r)
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}

// spanName mirrors the routing table. The span starts before the mux has
// matched, so r.Pattern is not available yet.
func spanName(r *http.Request) string {
	switch {
	case r.Method == http.MethodOptions:
		return "cors.preflight"
	case r.Method == http.MethodPost && r.URL.Path == "/create":
		return "links.create"
	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && strings.HasPrefix(r.URL.Path, "/payload/"):
		return "links.fetch"
	case r.Method == http.MethodPost:
		return "chat.relay"
	default:
		return "fallback"
	}
}

// cleanPath canonicalises the request path before the mux sees it. The mux
// would otherwise answer "//" or "/./" paths with a redirect, which a browser
// may follow as a GET.
func cleanPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p == "" {
			p = "/"
		}
		cleaned := path.Clean("/" + p)
		if strings.HasSuffix(p, "/") && cleaned != "/" {
			cleaned += "/"
		}
		if cleaned != r.URL.Path {
			r2 := r.Clone(r.Context())
			r2.URL.Path = cleaned
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

// fallback handles whatever no other pattern matched. Reads of unknown paths
// are 404; other methods are 405.
func fallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		httputils.WriteAPIError(w, r, constants.ErrNotFound)
		return
	}
	w.Header().Set("Allow", allowedMethods)
	httputils.WriteAPIError(w, r, constants.ErrMethodNotAllowed)
}
