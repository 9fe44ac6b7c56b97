package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionStatus mirrors the gateway-side payment lifecycle.
type TransactionStatus string

const (
	TxCreated    TransactionStatus = "created"
	TxAuthorized TransactionStatus = "authorized"
	TxCaptured   TransactionStatus = "captured"
	TxRefunded   TransactionStatus = "refunded"
	TxFailed     TransactionStatus = "failed"
)

// statusRank orders the happy-path lifecycle so stale, out-of-order webhook
// deliveries can never move a transaction backwards.
var statusRank = map[TransactionStatus]int{
	TxCreated:    1,
	TxAuthorized: 2,
	TxCaptured:   3,
	TxRefunded:   4,
}

// CanTransition reports whether a gateway-reported status may replace the
// current one. Failed is a parallel terminal reachable from any non-terminal
// state; refunded may only follow captured.
func CanTransition(from, to TransactionStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case TxFailed:
		return from != TxFailed && from != TxRefunded
	case TxRefunded:
		return from == TxCaptured
	default:
		fr, ok := statusRank[from]
		if !ok {
			return false
		}
		tr, ok := statusRank[to]
		if !ok {
			return false
		}
		return tr > fr
	}
}

// WebhookEvent is one entry of a transaction's append-only delivery log.
// Every inbound webhook is recorded here even when it changes nothing else.
type WebhookEvent struct {
	Event      string    `bson:"event" json:"event"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
	Payload    string    `bson:"payload" json:"payload"`
}

// Transaction is the authoritative record of a gateway payment, keyed by the
// gateway payment id (unique index). One transaction per payment id.
type Transaction struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	GatewayPaymentID string              `bson:"gateway_payment_id" json:"gateway_payment_id"`
	GatewayOrderID   string              `bson:"gateway_order_id" json:"gateway_order_id"`
	AmountMinor      int64               `bson:"amount_minor" json:"amount_minor"`
	Currency         string              `bson:"currency" json:"currency"`
	Status           TransactionStatus   `bson:"status" json:"status"`
	WebhookEvents    []WebhookEvent      `bson:"webhook_events" json:"webhook_events"`
	Processed        bool                `bson:"processed" json:"processed"`
	ProcessedAt      *time.Time          `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	DonationID       *primitive.ObjectID `bson:"donation_id,omitempty" json:"donation_id,omitempty"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updated_at"`
}

// Materializable reports whether this transaction is eligible to produce a
// donation. acceptAuthorized widens the window for merchants that accept
// non-captured funds.
func (t *Transaction) Materializable(acceptAuthorized bool) bool {
	if t.Processed {
		return false
	}
	if t.Status == TxCaptured {
		return true
	}
	return acceptAuthorized && t.Status == TxAuthorized
}
