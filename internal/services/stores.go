package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sevasetu/seva-gobackend/internal/models"
)

// TxRunner executes fn atomically: either every write inside fn lands or
// none do. The Mongo implementation uses a session transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionStore persists gateway transactions keyed by payment id.
type TransactionStore interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error)
	// Insert fails with ErrConflict when a transaction for the payment id
	// already exists (unique index).
	Insert(ctx context.Context, tx *models.Transaction) error
	// SetStatus updates the gateway-reported status and fills in any
	// late-arriving identity fields (order id, amount, currency).
	SetStatus(ctx context.Context, paymentID string, status models.TransactionStatus, orderID string, amountMinor int64, currency string) error
	// AppendEvent adds to the append-only webhook log, unconditionally.
	AppendEvent(ctx context.Context, paymentID string, ev models.WebhookEvent) error
	// MarkProcessed flips processed false→true and links the donation in a
	// single conditional write. Returns false when another caller already
	// won.
	MarkProcessed(ctx context.Context, paymentID string, donationID primitive.ObjectID, at time.Time) (bool, error)
}

// DonationCompletion carries the fields set when a pending order-time draft
// becomes a completed donation.
type DonationCompletion struct {
	ReceiptNumber    string
	ReceiptDate      string
	ReceiptSeq       int
	AmountMinor      int64
	Currency         string
	GatewayPaymentID string
	TransactionID    primitive.ObjectID
}

// DonationFilter narrows donation listings. Zero values mean "no filter".
type DonationFilter struct {
	Status         models.DonationStatus
	TargetKind     models.TargetKind
	From, To       time.Time
	IncludeDeleted bool
	Limit          int64
}

// DonationStore persists donation records.
type DonationStore interface {
	// Insert fails with ErrConflict on a receipt-number collision.
	Insert(ctx context.Context, d *models.Donation) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	// FindPendingByOrderID resolves the order-time draft, if any.
	FindPendingByOrderID(ctx context.Context, orderID string) (*models.Donation, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Donation, error)
	// Complete flips a pending draft to completed; ErrConflict on receipt
	// collision.
	Complete(ctx context.Context, id primitive.ObjectID, c DonationCompletion) error
	// MaxReceiptSeq returns the highest sequence already issued for the
	// given receipt date, 0 when none.
	MaxReceiptSeq(ctx context.Context, date string) (int, error)
	List(ctx context.Context, f DonationFilter) ([]models.Donation, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// SumCompletedMinor totals completed, non-deleted donations.
	SumCompletedMinor(ctx context.Context) (int64, error)
	// CompletedItemTotals sums amount and quantity of completed,
	// non-deleted donations targeting the item.
	CompletedItemTotals(ctx context.Context, itemID primitive.ObjectID) (amountMinor int64, quantity int64, err error)
	ListCompletedItemTargeted(ctx context.Context) ([]models.Donation, error)
}

// WalletStore persists the singleton wallet document.
type WalletStore interface {
	// Get returns the wallet, creating the singleton on first use.
	Get(ctx context.Context) (*models.Wallet, error)
	// ApplyDelta increments the running totals and rederives the balance.
	ApplyDelta(ctx context.Context, donationsDelta, expensesDelta int64) (*models.Wallet, error)
	// Replace overwrites the wallet with recomputed totals.
	Replace(ctx context.Context, w *models.Wallet) error
}

// ItemStore persists fundraising items.
type ItemStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.FundraisingItem, error)
	Insert(ctx context.Context, item *models.FundraisingItem) error
	// ApplyDonation increments progress and rederives the item status.
	ApplyDonation(ctx context.Context, id primitive.ObjectID, amountMinor, quantity int64) (*models.FundraisingItem, error)
	// SetProgress overwrites progress absolutely (sweep repair path).
	SetProgress(ctx context.Context, id primitive.ObjectID, amountMinor, quantity int64) error
}

// ExpenseStore persists expense records.
type ExpenseStore interface {
	Insert(ctx context.Context, e *models.Expense) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Expense, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.ExpenseStatus) error
	// SumApprovedMinor totals approved, non-deleted expenses.
	SumApprovedMinor(ctx context.Context) (int64, error)
}

// AuditStore records typed audit events.
type AuditStore interface {
	Record(ctx context.Context, ev models.AuditEvent) error
}

// ReconQueue is the operator queue for payments needing manual attention.
type ReconQueue interface {
	Enqueue(ctx context.Context, item models.ReconItem) error
	List(ctx context.Context, includeResolved bool) ([]models.ReconItem, error)
}
