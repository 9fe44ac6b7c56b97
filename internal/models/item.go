package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPartial   ItemStatus = "partial"
	ItemCompleted ItemStatus = "completed"
)

// ItemStatusFor derives an item's status from its progress: completed once
// the donated amount reaches the target, partial while anything at all has
// come in, pending otherwise.
func ItemStatusFor(donatedMinor, targetMinor int64) ItemStatus {
	switch {
	case targetMinor > 0 && donatedMinor >= targetMinor:
		return ItemCompleted
	case donatedMinor > 0:
		return ItemPartial
	default:
		return ItemPending
	}
}

// FundraisingItem is an event-scoped wishlist entry donors can fund item by
// item. Mutated only by the allocation engine.
type FundraisingItem struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID            primitive.ObjectID `bson:"event_id" json:"event_id"`
	Name               string             `bson:"name" json:"name"`
	UnitPriceMinor     int64              `bson:"unit_price_minor" json:"unit_price_minor"`
	TargetQuantity     int64              `bson:"target_quantity" json:"target_quantity"`
	TargetAmountMinor  int64              `bson:"target_amount_minor" json:"target_amount_minor"`
	DonatedQuantity    int64              `bson:"donated_quantity" json:"donated_quantity"`
	DonatedAmountMinor int64              `bson:"donated_amount_minor" json:"donated_amount_minor"`
	Status             ItemStatus         `bson:"status" json:"status"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// RemainingQuantity reports how many units are still open for funding.
func (i *FundraisingItem) RemainingQuantity() int64 {
	rem := i.TargetQuantity - i.DonatedQuantity
	if rem < 0 {
		return 0
	}
	return rem
}
