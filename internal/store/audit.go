package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sevasetu/seva-gobackend/internal/models"
)

// AuditStore is the append-only audit trail.
type AuditStore struct {
	coll *mongo.Collection
}

func NewAuditStore(db *mongo.Database) *AuditStore {
	return &AuditStore{coll: db.Collection("audit_events")}
}

func (s *AuditStore) Record(ctx context.Context, ev models.AuditEvent) error {
	_, err := s.coll.InsertOne(ctx, ev)
	return err
}

// ListByRef returns the trail for one aggregate instance, newest first.
func (s *AuditStore) ListByRef(ctx context.Context, refID string) ([]models.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"ref_id": refID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AuditEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
