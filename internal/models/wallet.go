package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wallet is the singleton running balance of the organisation. The stored
// totals are an optimization; the source of truth is always a full recompute
// over completed, non-deleted donations and approved, non-deleted expenses.
type Wallet struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TotalDonationsMinor   int64              `bson:"total_donations_minor" json:"total_donations_minor"`
	TotalExpensesMinor    int64              `bson:"total_expenses_minor" json:"total_expenses_minor"`
	RestrictedFundsMinor  int64              `bson:"restricted_funds_minor" json:"restricted_funds_minor"`
	AvailableBalanceMinor int64              `bson:"available_balance_minor" json:"available_balance_minor"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

// Derive recomputes the available balance from the stored totals.
func (w *Wallet) Derive() {
	w.AvailableBalanceMinor = w.TotalDonationsMinor - w.TotalExpensesMinor - w.RestrictedFundsMinor
}

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

// Expense is a spend record; only approved, non-deleted expenses reduce the
// wallet.
type Expense struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	AmountMinor int64              `bson:"amount_minor" json:"amount_minor"`
	Currency    string             `bson:"currency" json:"currency"`
	Status      ExpenseStatus      `bson:"status" json:"status"`
	SoftDeleted bool               `bson:"soft_deleted" json:"soft_deleted"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
