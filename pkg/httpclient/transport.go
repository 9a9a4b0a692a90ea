package httpclient

import (
	"context"
	"errors"
	"net/http"
)

// BreakerTransport guards an http.RoundTripper with a CircuitBreaker.
// Only transport errors count as failures: any HTTP response, whatever its
// status, proves the upstream is reachable. Deadlines count as failures;
// cancellations by the caller do not.
type BreakerTransport struct {
	Base    http.RoundTripper
	Breaker *CircuitBreaker
}

func NewBreakerTransport(base http.RoundTripper, cb *CircuitBreaker) *BreakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BreakerTransport{Base: base, Breaker: cb}
}

func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Breaker.CheckBeforeRequest(); err != nil {
		return nil, err
	}

	resp, err := t.Base.RoundTrip(req)
	switch {
	case err == nil:
		t.Breaker.OnSuccess()
	case errors.Is(req.Context().Err(), context.Canceled):
		t.Breaker.OnAbort()
	default:
		t.Breaker.OnFailure()
	}
	return resp, err
}
