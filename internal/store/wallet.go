package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sevasetu/seva-gobackend/internal/models"
)

// walletKey pins the singleton wallet document.
const walletKey = "main"

// WalletStore persists the single organisation wallet.
type WalletStore struct {
	coll *mongo.Collection
}

func NewWalletStore(db *mongo.Database) *WalletStore {
	return &WalletStore{coll: db.Collection("wallet")}
}

func (s *WalletStore) Get(ctx context.Context) (*models.Wallet, error) {
	var w models.Wallet
	err := s.coll.FindOne(ctx, bson.M{"key": walletKey}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.create(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *WalletStore) create(ctx context.Context) (*models.Wallet, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var w models.Wallet
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"key": walletKey},
		bson.M{"$setOnInsert": bson.M{
			"key":                     walletKey,
			"total_donations_minor":   int64(0),
			"total_expenses_minor":    int64(0),
			"restricted_funds_minor":  int64(0),
			"available_balance_minor": int64(0),
			"updated_at":              now,
		}},
		opts,
	).Decode(&w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *WalletStore) ApplyDelta(ctx context.Context, donationsDelta, expensesDelta int64) (*models.Wallet, error) {
	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var w models.Wallet
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"key": walletKey},
		bson.M{
			"$inc": bson.M{
				"total_donations_minor":   donationsDelta,
				"total_expenses_minor":    expensesDelta,
				"available_balance_minor": donationsDelta - expensesDelta,
			},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		opts,
	).Decode(&w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *WalletStore) Replace(ctx context.Context, w *models.Wallet) error {
	if _, err := s.Get(ctx); err != nil {
		return err
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"key": walletKey},
		bson.M{"$set": bson.M{
			"total_donations_minor":   w.TotalDonationsMinor,
			"total_expenses_minor":    w.TotalExpensesMinor,
			"restricted_funds_minor":  w.RestrictedFundsMinor,
			"available_balance_minor": w.AvailableBalanceMinor,
			"updated_at":              time.Now().UTC(),
		}},
	)
	return err
}
