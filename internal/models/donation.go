package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
)

// TargetKind says what a donation is earmarked for.
type TargetKind string

const (
	TargetGeneral TargetKind = "general"
	TargetEvent   TargetKind = "event"
	TargetItem    TargetKind = "item"
	TargetExpense TargetKind = "expense"
)

// PaymentMode distinguishes gateway payments from offline modes recorded
// directly by staff.
type PaymentMode string

const (
	ModeGateway PaymentMode = "gateway"
	ModeCash    PaymentMode = "cash"
	ModeCheque  PaymentMode = "cheque"
	ModeBank    PaymentMode = "bank_transfer"
)

// ReceiptPrefix heads every generated receipt number.
const ReceiptPrefix = "SEVA"

// Donation is the permanent record of a received contribution. Only
// completed, non-deleted donations count toward wallet and item totals.
type Donation struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ReceiptNumber string              `bson:"receipt_number,omitempty" json:"receipt_number,omitempty"`
	ReceiptDate   string              `bson:"receipt_date,omitempty" json:"-"`
	ReceiptSeq    int                 `bson:"receipt_seq,omitempty" json:"-"`
	AmountMinor   int64               `bson:"amount_minor" json:"amount_minor"`
	Currency      string              `bson:"currency" json:"currency"`
	DonorName     string              `bson:"donor_name" json:"donor_name"`
	DonorEmail    string              `bson:"donor_email,omitempty" json:"donor_email,omitempty"`
	DonorPhone    string              `bson:"donor_phone,omitempty" json:"donor_phone,omitempty"`
	IsAnonymous   bool                `bson:"is_anonymous" json:"is_anonymous"`
	Status        DonationStatus      `bson:"status" json:"status"`
	TargetKind    TargetKind          `bson:"target_kind" json:"target_kind"`
	EventID       *primitive.ObjectID `bson:"event_id,omitempty" json:"event_id,omitempty"`
	EventItemID   *primitive.ObjectID `bson:"event_item_id,omitempty" json:"event_item_id,omitempty"`
	ItemQuantity  int64               `bson:"item_quantity,omitempty" json:"item_quantity,omitempty"`
	PaymentMode   PaymentMode         `bson:"payment_mode" json:"payment_mode"`

	GatewayOrderID   string              `bson:"gateway_order_id,omitempty" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string              `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	TransactionID    *primitive.ObjectID `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`

	SoftDeleted bool       `bson:"soft_deleted" json:"soft_deleted"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// Countable reports whether this donation participates in wallet and item
// aggregates.
func (d *Donation) Countable() bool {
	return d.Status == DonationCompleted && !d.SoftDeleted
}

// FormatReceipt renders a date-sequenced receipt number, e.g.
// SEVA-20260301-0042.
func FormatReceipt(date string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", ReceiptPrefix, date, seq)
}

// MajorString renders a minor-unit amount in major currency units ("500.00").
func MajorString(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
