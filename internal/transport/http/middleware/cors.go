package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

const (
	preflightMethods = "GET, POST, OPTIONS"
	preflightMaxAge  = "86400"
)

// CORSPolicy answers every response with a single allowed origin: the
// configured front-end origin, or the caller's Origin when it matches one of
// the extra allowed origins. Headers are always wildcarded.
type CORSPolicy struct {
	frontendOrigin string
	extra          *cors.Cors
}

// NewCORSPolicy builds the policy. allowedOrigins may contain wildcards such
// as "https://*.example.github.io"; an empty list disables origin echoing.
func NewCORSPolicy(frontendOrigin string, allowedOrigins []string) *CORSPolicy {
	p := &CORSPolicy{frontendOrigin: strings.TrimRight(frontendOrigin, "/")}
	if len(allowedOrigins) > 0 {
		p.extra = cors.New(cors.Options{AllowedOrigins: allowedOrigins})
	}
	return p
}

func (p *CORSPolicy) allowOrigin(r *http.Request) string {
	if p.extra != nil && r.Header.Get("Origin") != "" && p.extra.OriginAllowed(r) {
		return r.Header.Get("Origin")
	}
	return p.frontendOrigin
}

func (p *CORSPolicy) setOrigin(h http.Header, r *http.Request) {
	h.Set("Access-Control-Allow-Origin", p.allowOrigin(r))
	if p.extra != nil {
		h.Add("Vary", "Origin")
	}
}

// Middleware stamps the CORS headers on every response except preflights,
// which declare their own set.
func (p *CORSPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			p.setOrigin(w.Header(), r)
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		next.ServeHTTP(w, r)
	})
}

// Preflight answers OPTIONS on any path with 204 and no body.
func (p *CORSPolicy) Preflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	p.setOrigin(h, r)
	h.Set("Access-Control-Allow-Methods", preflightMethods)
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Max-Age", preflightMaxAge)
	w.WriteHeader(http.StatusNoContent)
}
