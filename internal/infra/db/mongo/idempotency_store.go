package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"autoparc/internal/app/middleware"
)

const replaysCollection = "command_replays"

// IdempotencyStore keeps completed command results keyed by idempotency key.
// A TTL index on completed_at expires them.
type IdempotencyStore struct {
	col *mongo.Collection
}

// NewIdempotencyStore keeps replays for ttl, one week when unset.
func NewIdempotencyStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*IdempotencyStore, error) {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	col := db.Collection(replaysCollection)
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "command", Value: 1}}},
		{
			Keys:    bson.D{{Key: "completed_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s indexes: %w", replaysCollection, err)
	}
	return &IdempotencyStore{col: col}, nil
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.Replay, bool, error) {
	var doc replayDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.Replay{}, false, nil
		}
		return middleware.Replay{}, false, err
	}
	return middleware.Replay{
		Key:         doc.Key,
		Command:     doc.Command,
		Payload:     doc.Payload,
		CompletedAt: doc.CompletedAt,
	}, true, nil
}

// Save keeps the first stored outcome when two retries race.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.Replay) error {
	doc := replayDocument{
		Key:         rec.Key,
		Command:     rec.Command,
		Payload:     rec.Payload,
		CompletedAt: rec.CompletedAt,
	}
	_, err := s.col.UpdateByID(ctx, rec.Key, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	return err
}

type replayDocument struct {
	Key         string    `bson:"_id"`
	Command     string    `bson:"command"`
	Payload     []byte    `bson:"payload,omitempty"`
	CompletedAt time.Time `bson:"completed_at"`
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
