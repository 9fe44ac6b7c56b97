package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// TransactionStore is the Mongo-backed gateway transaction ledger.
type TransactionStore struct {
	coll *mongo.Collection
}

func NewTransactionStore(db *mongo.Database) *TransactionStore {
	return &TransactionStore{coll: db.Collection("transactions")}
}

func (s *TransactionStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.coll.FindOne(ctx, bson.M{"gateway_payment_id": paymentID}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *TransactionStore) Insert(ctx context.Context, tx *models.Transaction) error {
	res, err := s.coll.InsertOne(ctx, tx)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrConflict
	}
	if err != nil {
		return err
	}
	tx.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *TransactionStore) SetStatus(ctx context.Context, paymentID string, status models.TransactionStatus, orderID string, amountMinor int64, currency string) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	// Identity fields fill in lazily; a later delivery never blanks them.
	if orderID != "" {
		set["gateway_order_id"] = orderID
	}
	if amountMinor > 0 {
		set["amount_minor"] = amountMinor
	}
	if currency != "" {
		set["currency"] = currency
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"gateway_payment_id": paymentID},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *TransactionStore) AppendEvent(ctx context.Context, paymentID string, ev models.WebhookEvent) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"gateway_payment_id": paymentID},
		bson.M{
			"$push": bson.M{"webhook_events": ev},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

// MarkProcessed is the compare-and-set gate for at-most-once materialization.
// The filter includes processed:false, so only one concurrent caller matches.
func (s *TransactionStore) MarkProcessed(ctx context.Context, paymentID string, donationID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"gateway_payment_id": paymentID, "processed": false},
		bson.M{"$set": bson.M{
			"processed":    true,
			"processed_at": at,
			"donation_id":  donationID,
			"updated_at":   at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
