package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// ItemStore persists fundraising wishlist items.
type ItemStore struct {
	coll *mongo.Collection
}

func NewItemStore(db *mongo.Database) *ItemStore {
	return &ItemStore{coll: db.Collection("fundraising_items")}
}

func (s *ItemStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FundraisingItem, error) {
	var item models.FundraisingItem
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *ItemStore) Insert(ctx context.Context, item *models.FundraisingItem) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Status = models.ItemStatusFor(item.DonatedAmountMinor, item.TargetAmountMinor)
	res, err := s.coll.InsertOne(ctx, item)
	if err != nil {
		return err
	}
	item.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *ItemStore) ApplyDonation(ctx context.Context, id primitive.ObjectID, amountMinor, quantity int64) (*models.FundraisingItem, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item models.FundraisingItem
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{
				"donated_amount_minor": amountMinor,
				"donated_quantity":     quantity,
			},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		opts,
	).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Status derives from the post-increment totals; a second write is
	// cheaper than an aggregation-pipeline update here.
	status := models.ItemStatusFor(item.DonatedAmountMinor, item.TargetAmountMinor)
	if status != item.Status {
		if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}); err != nil {
			return nil, err
		}
		item.Status = status
	}
	return &item, nil
}

func (s *ItemStore) SetProgress(ctx context.Context, id primitive.ObjectID, amountMinor, quantity int64) error {
	item, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"donated_amount_minor": amountMinor,
			"donated_quantity":     quantity,
			"status":               models.ItemStatusFor(amountMinor, item.TargetAmountMinor),
			"updated_at":           time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}
