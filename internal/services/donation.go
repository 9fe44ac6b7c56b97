package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/models"
)

// receiptAttempts bounds the retry-on-conflict loop for receipt numbers.
const receiptAttempts = 3

// errLostProcessedRace aborts the materialize transaction when a concurrent
// caller flipped processed first; the donation write rolls back with it.
var errLostProcessedRace = errors.New("transaction already processed by concurrent caller")

// DonationDraft carries the donor-supplied fields a materialization needs.
// ExistingID points at the pending order-time record, when one was stored.
type DonationDraft struct {
	ExistingID   *primitive.ObjectID
	DonorName    string
	DonorEmail   string
	DonorPhone   string
	IsAnonymous  bool
	TargetKind   models.TargetKind
	EventID      *primitive.ObjectID
	EventItemID  *primitive.ObjectID
	ItemQuantity int64
	Currency     string
}

// DonationService creates donation records: at most one per gateway
// transaction, plus offline modes recorded directly.
type DonationService struct {
	donations DonationStore
	txs       TransactionStore
	runner    TxRunner
	audit     AuditStore
	logger    *zap.Logger
}

func NewDonationService(donations DonationStore, txs TransactionStore, runner TxRunner, audit AuditStore, logger *zap.Logger) *DonationService {
	return &DonationService{donations: donations, txs: txs, runner: runner, audit: audit, logger: logger}
}

// CreatePending stores the donor's draft at order time so a webhook-first
// capture can materialize without trusting gateway-echoed metadata.
func (s *DonationService) CreatePending(ctx context.Context, draft DonationDraft, amountMinor int64, gatewayOrderID string) (*models.Donation, error) {
	if amountMinor <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if gatewayOrderID == "" {
		return nil, &ValidationError{Field: "gateway_order_id", Reason: "required"}
	}
	now := time.Now().UTC()
	d := s.fromDraft(draft)
	d.AmountMinor = amountMinor
	d.Status = models.DonationPending
	d.PaymentMode = models.ModeGateway
	d.GatewayOrderID = gatewayOrderID
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := s.donations.Insert(ctx, d); err != nil {
		return nil, fmt.Errorf("insert pending donation: %w", err)
	}
	s.record(ctx, models.AuditDonationCreated, d.ID.Hex(), "pending, order "+gatewayOrderID)
	return d, nil
}

// Materialize converts a captured (or authorized) unprocessed transaction
// into exactly one completed donation. The donation write and the
// processed-flag flip commit atomically; losing the processed CAS means a
// concurrent delivery already materialized, and its donation is returned
// instead.
//
// Callers must hold the per-payment-id lock.
func (s *DonationService) Materialize(ctx context.Context, tx *models.Transaction, draft *DonationDraft) (*models.Donation, error) {
	if tx.Processed {
		return s.linkedDonation(ctx, tx)
	}
	if tx.Status != models.TxCaptured && tx.Status != models.TxAuthorized {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("transaction %s not payable", tx.Status)}
	}
	if draft == nil {
		return nil, &ValidationError{Field: "draft", Reason: "no donation draft for transaction"}
	}

	for attempt := 1; attempt <= receiptAttempts; attempt++ {
		date, seq, receipt, err := s.nextReceipt(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		var donation *models.Donation
		err = s.runner.WithTransaction(ctx, func(ctx context.Context) error {
			d, err := s.writeDonation(ctx, tx, draft, date, seq, receipt, now)
			if err != nil {
				return err
			}
			ok, err := s.txs.MarkProcessed(ctx, tx.GatewayPaymentID, d.ID, now)
			if err != nil {
				return fmt.Errorf("mark transaction processed: %w", err)
			}
			if !ok {
				return errLostProcessedRace
			}
			donation = d
			return nil
		})
		switch {
		case err == nil:
			s.record(ctx, models.AuditDonationCompleted, donation.ID.Hex(), "receipt "+receipt)
			return donation, nil
		case errors.Is(err, errLostProcessedRace):
			fresh, ferr := s.txs.FindByPaymentID(ctx, tx.GatewayPaymentID)
			if ferr != nil {
				return nil, ferr
			}
			return s.linkedDonation(ctx, fresh)
		case errors.Is(err, ErrConflict):
			// Another donor took this receipt sequence; look up a fresh one.
			s.logger.Info("receipt sequence collision, retrying",
				zap.String("receipt", receipt), zap.Int("attempt", attempt))
			continue
		default:
			return nil, err
		}
	}

	return nil, &InvariantViolationError{
		GatewayPaymentID: tx.GatewayPaymentID,
		Reason:           "receipt number retries exhausted",
	}
}

// CreateOffline records a cash/cheque/bank donation directly as completed.
// The caller applies allocation afterwards.
func (s *DonationService) CreateOffline(ctx context.Context, draft DonationDraft, amountMinor int64, mode models.PaymentMode) (*models.Donation, error) {
	if amountMinor <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if mode == models.ModeGateway {
		return nil, &ValidationError{Field: "payment_mode", Reason: "gateway donations go through the order flow"}
	}

	for attempt := 1; attempt <= receiptAttempts; attempt++ {
		date, seq, receipt, err := s.nextReceipt(ctx)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		d := s.fromDraft(draft)
		d.AmountMinor = amountMinor
		d.Status = models.DonationCompleted
		d.PaymentMode = mode
		d.ReceiptNumber = receipt
		d.ReceiptDate = date
		d.ReceiptSeq = seq
		d.CreatedAt = now
		d.UpdatedAt = now

		err = s.donations.Insert(ctx, d)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert offline donation: %w", err)
		}
		s.record(ctx, models.AuditDonationCompleted, d.ID.Hex(), "receipt "+receipt+", mode "+string(mode))
		return d, nil
	}
	return nil, &InvariantViolationError{Reason: "receipt number retries exhausted"}
}

// writeDonation completes the stored pending draft when one exists,
// otherwise inserts a new completed record from the supplied draft.
func (s *DonationService) writeDonation(ctx context.Context, tx *models.Transaction, draft *DonationDraft, date string, seq int, receipt string, now time.Time) (*models.Donation, error) {
	completion := DonationCompletion{
		ReceiptNumber:    receipt,
		ReceiptDate:      date,
		ReceiptSeq:       seq,
		AmountMinor:      tx.AmountMinor,
		Currency:         tx.Currency,
		GatewayPaymentID: tx.GatewayPaymentID,
		TransactionID:    tx.ID,
	}
	if draft.ExistingID != nil {
		if err := s.donations.Complete(ctx, *draft.ExistingID, completion); err != nil {
			return nil, err
		}
		return s.donations.FindByID(ctx, *draft.ExistingID)
	}

	d := s.fromDraft(*draft)
	d.AmountMinor = tx.AmountMinor
	if tx.Currency != "" {
		d.Currency = tx.Currency
	}
	d.Status = models.DonationCompleted
	d.PaymentMode = models.ModeGateway
	d.ReceiptNumber = receipt
	d.ReceiptDate = date
	d.ReceiptSeq = seq
	d.GatewayOrderID = tx.GatewayOrderID
	d.GatewayPaymentID = tx.GatewayPaymentID
	d.TransactionID = &tx.ID
	d.CreatedAt = now
	d.UpdatedAt = now
	if err := s.donations.Insert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// nextReceipt computes the next unused sequence for today by querying the
// current maximum, not a counter table; uniqueness violations are retried by
// the callers.
func (s *DonationService) nextReceipt(ctx context.Context) (date string, seq int, number string, err error) {
	date = time.Now().UTC().Format("20060102")
	max, err := s.donations.MaxReceiptSeq(ctx, date)
	if err != nil {
		return "", 0, "", fmt.Errorf("receipt sequence lookup: %w", err)
	}
	seq = max + 1
	return date, seq, models.FormatReceipt(date, seq), nil
}

func (s *DonationService) linkedDonation(ctx context.Context, tx *models.Transaction) (*models.Donation, error) {
	if tx.DonationID == nil {
		return nil, &InvariantViolationError{
			GatewayPaymentID: tx.GatewayPaymentID,
			Reason:           "processed transaction has no linked donation",
		}
	}
	return s.donations.FindByID(ctx, *tx.DonationID)
}

func (s *DonationService) fromDraft(draft DonationDraft) *models.Donation {
	currency := draft.Currency
	if currency == "" {
		currency = "INR"
	}
	kind := draft.TargetKind
	if kind == "" {
		kind = models.TargetGeneral
	}
	d := &models.Donation{
		DonorName:    draft.DonorName,
		DonorEmail:   draft.DonorEmail,
		DonorPhone:   draft.DonorPhone,
		IsAnonymous:  draft.IsAnonymous,
		TargetKind:   kind,
		EventID:      draft.EventID,
		EventItemID:  draft.EventItemID,
		ItemQuantity: draft.ItemQuantity,
		Currency:     currency,
	}
	if draft.ExistingID != nil {
		d.ID = *draft.ExistingID
	}
	return d
}

func (s *DonationService) record(ctx context.Context, action models.AuditAction, refID, detail string) {
	ev := models.AuditEvent{
		Aggregate: models.AggregateDonation,
		Action:    action,
		RefID:     refID,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Error("audit record failed", zap.String("action", string(action)), zap.Error(err))
	}
}
