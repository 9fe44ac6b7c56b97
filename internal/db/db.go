// Package db owns the Mongo connection and the indexes the engine's
// correctness depends on.
package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect dials Mongo and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes that back the engine's
// idempotency and receipt guarantees. Safe to run on every start.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// One transaction per gateway payment id.
	_, err := database.Collection("transactions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "gateway_payment_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	// Receipt numbers are unique per date; pending drafts have no receipt
	// yet, so the index is partial.
	_, err = database.Collection("donations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "receipt_date", Value: 1}, {Key: "receipt_seq", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"receipt_seq": bson.M{"$gt": 0}}),
	})
	if err != nil {
		return err
	}

	_, err = database.Collection("donations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "gateway_order_id", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = database.Collection("wallet").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = database.Collection("audit_events").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ref_id", Value: 1}, {Key: "at", Value: -1}},
	})
	return err
}
