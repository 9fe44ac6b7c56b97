package store

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// SessionTxRunner runs a function inside a Mongo session transaction.
// Requires a replica set; standalone deployments should wire NoopTxRunner.
type SessionTxRunner struct {
	client *mongo.Client
}

func NewSessionTxRunner(client *mongo.Client) *SessionTxRunner {
	return &SessionTxRunner{client: client}
}

func (r *SessionTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NoopTxRunner executes fn directly. The conditional processed-flag write
// still guards at-most-once; only multi-document atomicity is lost.
type NoopTxRunner struct{}

func (NoopTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
