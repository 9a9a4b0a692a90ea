package redis

import (
	"context"
	"time"
)

// Namespace is a key prefix over a shared Client. The quota counters and the
// link payloads live in separate namespaces of the same Redis database.
type Namespace struct {
	client *Client
	prefix string
}

func NewNamespace(client *Client, name string) *Namespace {
	return &Namespace{client: client, prefix: name + ":"}
}

func (n *Namespace) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.client.Get(ctx, n.prefix+key)
}

func (n *Namespace) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.client.SetEX(ctx, n.prefix+key, value, ttl)
}
