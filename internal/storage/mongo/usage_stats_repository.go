package mongo

import (
	"context"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/events"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsageStatsRepository rolls UsageRecorded events up into per-day totals
// broken down by source and model.
type UsageStatsRepository struct {
	daily *mongo.Collection
	seen  *mongo.Collection
}

// NewUsageStatsRepository creates the collections' indexes. Event ids are
// remembered for seenTTL so that redelivered messages are not counted twice.
func NewUsageStatsRepository(m *db.Mongo, seenTTL time.Duration) (*UsageStatsRepository, error) {
	repo := &UsageStatsRepository{
		daily: m.Collection("usage_daily"),
		seen:  m.Collection("usage_events_seen"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.daily.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: 1}, {Key: "source", Value: 1}, {Key: "model", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_date_source_model"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: -1}},
			Options: options.Index().SetName("date_desc"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = repo.seen.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seenAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(seenTTL / time.Second)).SetName("seenAt_ttl"),
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// Apply adds one usage event to its day's totals. It reports applied=false
// when the event id was already counted.
func (r *UsageStatsRepository) Apply(ctx context.Context, ev events.UsageRecorded) (applied bool, err error) {
	if ev.EventID != "" {
		_, err := r.seen.InsertOne(ctx, bson.M{"_id": ev.EventID, "seenAt": time.Now().UTC()})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, nil
			}
			return false, err
		}
	}

	// Equality fields in the filter are copied into an upserted document.
	_, err = r.daily.UpdateOne(
		ctx,
		bson.M{"date": ev.Day, "source": ev.Source, "model": ev.Model},
		bson.M{"$inc": bson.M{"tokens": ev.Tokens, "requests": 1}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if ev.EventID != "" {
			// Forget the id so a redelivery can count it.
			_, _ = r.seen.DeleteOne(ctx, bson.M{"_id": ev.EventID})
		}
		return false, err
	}
	return true, nil
}
