package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Aggregate identifies which domain aggregate an audit event belongs to.
// Typed, not free-text, so entries are structurally validated.
type Aggregate string

const (
	AggregateTransaction Aggregate = "transaction"
	AggregateDonation    Aggregate = "donation"
	AggregateWallet      Aggregate = "wallet"
	AggregateItem        Aggregate = "item"
)

// AuditAction enumerates the recordable state changes per aggregate.
type AuditAction string

const (
	AuditTxCreated         AuditAction = "transaction.created"
	AuditTxStatusChanged   AuditAction = "transaction.status_changed"
	AuditTxEventRecorded   AuditAction = "transaction.event_recorded"
	AuditTxRefundRecorded  AuditAction = "transaction.refund_recorded"
	AuditDonationCreated   AuditAction = "donation.created"
	AuditDonationCompleted AuditAction = "donation.completed"
	AuditDonationDeleted   AuditAction = "donation.soft_deleted"
	AuditWalletApplied     AuditAction = "wallet.donation_applied"
	AuditWalletExpense     AuditAction = "wallet.expense_applied"
	AuditWalletRecomputed  AuditAction = "wallet.recomputed"
	AuditWalletReversed    AuditAction = "wallet.allocation_reversed"
	AuditItemAllocated     AuditAction = "item.allocated"
	AuditItemSweepReplayed AuditAction = "item.sweep_replayed"
)

// AuditEvent is one structurally-typed audit trail entry.
type AuditEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Aggregate Aggregate          `bson:"aggregate" json:"aggregate"`
	Action    AuditAction        `bson:"action" json:"action"`
	RefID     string             `bson:"ref_id" json:"ref_id"`
	Actor     string             `bson:"actor,omitempty" json:"actor,omitempty"`
	Detail    string             `bson:"detail,omitempty" json:"detail,omitempty"`
	At        time.Time          `bson:"at" json:"at"`
}

// ReconItem is an operator-queue entry for a payment the engine could not
// finish processing on its own.
type ReconItem struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GatewayPaymentID string             `bson:"gateway_payment_id" json:"gateway_payment_id"`
	Reason           string             `bson:"reason" json:"reason"`
	Resolved         bool               `bson:"resolved" json:"resolved"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}
