package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// KVNamespace stores opaque values in one collection, keyed by _id.
// Expired documents are removed by a TTL index and are also filtered out on
// read, since the TTL monitor only runs about once a minute.
type KVNamespace struct {
	coll *mongo.Collection
	now  func() time.Time
}

type kvDoc struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	UpdatedAt time.Time  `bson:"updatedAt"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

func NewKVNamespace(m *db.Mongo, name string) (*KVNamespace, error) {
	ns := &KVNamespace{coll: m.Collection(name), now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.EnsureExpiryIndex(ctx, ns.coll, "expiresAt"); err != nil {
		return nil, err
	}
	return ns, nil
}

func (n *KVNamespace) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc kvDoc
	err := n.coll.FindOne(ctx, liveKeyFilter(key, n.now().UTC())).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find %s/%s: %w", n.coll.Name(), key, err)
	}
	return doc.Value, true, nil
}

// Put replaces the whole document, so a write always resets the expiry.
func (n *KVNamespace) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := n.now().UTC()
	doc := kvDoc{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		doc.ExpiresAt = &exp
	}

	_, err := n.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", n.coll.Name(), key, err)
	}
	return nil
}

func liveKeyFilter(key string, now time.Time) bson.M {
	return bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$exists": false}},
			bson.M{"expiresAt": bson.M{"$gt": now}},
		},
	}
}
