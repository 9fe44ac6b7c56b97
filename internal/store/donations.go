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

// DonationStore is the Mongo-backed donation collection.
type DonationStore struct {
	coll *mongo.Collection
}

func NewDonationStore(db *mongo.Database) *DonationStore {
	return &DonationStore{coll: db.Collection("donations")}
}

func (s *DonationStore) Insert(ctx context.Context, d *models.Donation) error {
	res, err := s.coll.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrConflict
	}
	if err != nil {
		return err
	}
	d.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *DonationStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *DonationStore) FindPendingByOrderID(ctx context.Context, orderID string) (*models.Donation, error) {
	return s.findOne(ctx, bson.M{
		"gateway_order_id": orderID,
		"status":           models.DonationPending,
	})
}

func (s *DonationStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Donation, error) {
	return s.findOne(ctx, bson.M{"gateway_payment_id": paymentID})
}

func (s *DonationStore) findOne(ctx context.Context, filter bson.M) (*models.Donation, error) {
	var d models.Donation
	err := s.coll.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DonationStore) Complete(ctx context.Context, id primitive.ObjectID, c services.DonationCompletion) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.DonationPending},
		bson.M{"$set": bson.M{
			"status":             models.DonationCompleted,
			"receipt_number":     c.ReceiptNumber,
			"receipt_date":       c.ReceiptDate,
			"receipt_seq":        c.ReceiptSeq,
			"amount_minor":       c.AmountMinor,
			"currency":           c.Currency,
			"gateway_payment_id": c.GatewayPaymentID,
			"transaction_id":     c.TransactionID,
			"updated_at":         time.Now().UTC(),
		}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrConflict
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *DonationStore) MaxReceiptSeq(ctx context.Context, date string) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "receipt_seq", Value: -1}})
	var d models.Donation
	err := s.coll.FindOne(ctx, bson.M{"receipt_date": date}, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return d.ReceiptSeq, nil
}

func (s *DonationStore) List(ctx context.Context, f services.DonationFilter) ([]models.Donation, error) {
	filter := bson.M{}
	if !f.IncludeDeleted {
		filter["soft_deleted"] = false
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.TargetKind != "" {
		filter["target_kind"] = f.TargetKind
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		created := bson.M{}
		if !f.From.IsZero() {
			created["$gte"] = f.From
		}
		if !f.To.IsZero() {
			created["$lt"] = f.To
		}
		filter["created_at"] = created
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Donation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DonationStore) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "soft_deleted": false},
		bson.M{"$set": bson.M{
			"soft_deleted": true,
			"deleted_at":   at,
			"updated_at":   at,
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

// countableFilter matches the donations that participate in aggregates.
func countableFilter() bson.M {
	return bson.M{
		"status":       models.DonationCompleted,
		"soft_deleted": false,
	}
}

func (s *DonationStore) SumCompletedMinor(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: countableFilter()}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount_minor"},
		}}},
	}
	return s.sumPipeline(ctx, pipeline)
}

func (s *DonationStore) CompletedItemTotals(ctx context.Context, itemID primitive.ObjectID) (int64, int64, error) {
	match := countableFilter()
	match["target_kind"] = models.TargetItem
	match["event_item_id"] = itemID
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"amount":   bson.M{"$sum": "$amount_minor"},
			"quantity": bson.M{"$sum": "$item_quantity"},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Amount   int64 `bson:"amount"`
		Quantity int64 `bson:"quantity"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Amount, rows[0].Quantity, nil
}

func (s *DonationStore) ListCompletedItemTargeted(ctx context.Context) ([]models.Donation, error) {
	filter := countableFilter()
	filter["target_kind"] = models.TargetItem
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Donation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DonationStore) sumPipeline(ctx context.Context, pipeline mongo.Pipeline) (int64, error) {
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
