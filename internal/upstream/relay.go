package upstream

import (
	"context"
	"net/http"

	"github.com/IgorGrieder/llm-edge-gateway/pkg/httpclient"
)

// ErrUnavailable is returned without calling upstream while the breaker is open.
var ErrUnavailable = httpclient.ErrCircuitOpen

// Relay posts chat requests to the completion endpoint unchanged, adding only
// the bearer credential.
type Relay struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
}

func NewRelay(client *httpclient.Client, endpoint, apiKey string) *Relay {
	return &Relay{client: client, endpoint: endpoint, apiKey: apiKey}
}

// Forward returns the upstream response whatever its status. The caller must
// close resp.Body.
func (r *Relay) Forward(ctx context.Context, body []byte) (*http.Response, error) {
	return r.client.Post(ctx, r.endpoint, body, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + r.apiKey,
	})
}
