package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/models"
)

// GatewaySignal is one verified delivery about a payment, from either the
// webhook or the client-verify path.
type GatewaySignal struct {
	PaymentID   string
	OrderID     string
	AmountMinor int64
	Currency    string
	// Status is the gateway-reported lifecycle state; empty means
	// record-the-event-only (unknown event types still go in the log).
	Status  models.TransactionStatus
	Event   string
	Payload []byte
}

// LedgerService owns the transaction ledger: the authoritative record of
// gateway payment lifecycle, keyed by gateway payment id. Callers are
// expected to hold the per-payment-id lock.
type LedgerService struct {
	txs    TransactionStore
	audit  AuditStore
	logger *zap.Logger
}

func NewLedgerService(txs TransactionStore, audit AuditStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{txs: txs, audit: audit, logger: logger}
}

// Upsert applies a delivery to the ledger: creates the transaction if the
// payment id is new, moves status forward only, and always appends to the
// event log regardless of whether anything else changed.
func (s *LedgerService) Upsert(ctx context.Context, sig GatewaySignal) (*models.Transaction, error) {
	if sig.PaymentID == "" {
		return nil, &ValidationError{Field: "payment_id", Reason: "required"}
	}

	tx, err := s.txs.FindByPaymentID(ctx, sig.PaymentID)
	if errors.Is(err, ErrNotFound) {
		tx, err = s.create(ctx, sig)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case sig.Status == "" || sig.Status == tx.Status:
	case sig.Status == models.TxFailed && tx.Processed:
		// A failure report cannot undo a donation that already exists.
		s.logger.Warn("ignoring failure report for a materialized payment",
			zap.String("payment_id", sig.PaymentID))
	case models.CanTransition(tx.Status, sig.Status):
		if err := s.txs.SetStatus(ctx, sig.PaymentID, sig.Status, sig.OrderID, sig.AmountMinor, sig.Currency); err != nil {
			return nil, fmt.Errorf("update transaction status: %w", err)
		}
		action := models.AuditTxStatusChanged
		if sig.Status == models.TxRefunded {
			action = models.AuditTxRefundRecorded
		}
		s.record(ctx, action, sig.PaymentID, fmt.Sprintf("%s -> %s", tx.Status, sig.Status))
	default:
		// Stale or out-of-order delivery; the log entry below is the only
		// trace it leaves.
		s.logger.Info("ignoring backward status transition",
			zap.String("payment_id", sig.PaymentID),
			zap.String("current", string(tx.Status)),
			zap.String("reported", string(sig.Status)))
	}

	ev := models.WebhookEvent{
		Event:      sig.Event,
		ReceivedAt: time.Now().UTC(),
		Payload:    string(sig.Payload),
	}
	if err := s.txs.AppendEvent(ctx, sig.PaymentID, ev); err != nil {
		return nil, fmt.Errorf("append webhook event: %w", err)
	}

	return s.txs.FindByPaymentID(ctx, sig.PaymentID)
}

func (s *LedgerService) create(ctx context.Context, sig GatewaySignal) (*models.Transaction, error) {
	now := time.Now().UTC()
	tx := &models.Transaction{
		GatewayPaymentID: sig.PaymentID,
		GatewayOrderID:   sig.OrderID,
		AmountMinor:      sig.AmountMinor,
		Currency:         sig.Currency,
		Status:           models.TxCreated,
		WebhookEvents:    []models.WebhookEvent{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := s.txs.Insert(ctx, tx)
	if errors.Is(err, ErrConflict) {
		// Lost a create race with a concurrent delivery for the same new
		// payment id; the winner's record is the one we want.
		return s.txs.FindByPaymentID(ctx, sig.PaymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	s.record(ctx, models.AuditTxCreated, sig.PaymentID, "")
	return tx, nil
}

func (s *LedgerService) record(ctx context.Context, action models.AuditAction, refID, detail string) {
	ev := models.AuditEvent{
		Aggregate: models.AggregateTransaction,
		Action:    action,
		RefID:     refID,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Error("audit record failed", zap.String("action", string(action)), zap.Error(err))
	}
}
