package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// ReconQueueStore holds payments waiting on manual operator attention.
type ReconQueueStore struct {
	coll *mongo.Collection
}

func NewReconQueueStore(db *mongo.Database) *ReconQueueStore {
	return &ReconQueueStore{coll: db.Collection("recon_queue")}
}

func (s *ReconQueueStore) Enqueue(ctx context.Context, item models.ReconItem) error {
	// One open entry per payment; a retry storm must not flood the queue.
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"gateway_payment_id": item.GatewayPaymentID, "resolved": false},
		bson.M{"$setOnInsert": bson.M{
			"gateway_payment_id": item.GatewayPaymentID,
			"reason":             item.Reason,
			"resolved":           false,
			"created_at":         item.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *ReconQueueStore) List(ctx context.Context, includeResolved bool) ([]models.ReconItem, error) {
	filter := bson.M{}
	if !includeResolved {
		filter["resolved"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ReconItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve marks a queue entry handled after a successful replay.
func (s *ReconQueueStore) Resolve(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"resolved": true, "resolved_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}
