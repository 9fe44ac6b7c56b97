package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/models"
)

// WalletService is the only way callers touch the singleton wallet. The
// incremental totals are an optimization; Recompute from source records is
// the source of truth and must always reproduce the same value.
type WalletService struct {
	wallets   WalletStore
	donations DonationStore
	expenses  ExpenseStore
	audit     AuditStore
	logger    *zap.Logger
}

func NewWalletService(wallets WalletStore, donations DonationStore, expenses ExpenseStore, audit AuditStore, logger *zap.Logger) *WalletService {
	return &WalletService{wallets: wallets, donations: donations, expenses: expenses, audit: audit, logger: logger}
}

// GetBalance returns the current wallet snapshot.
func (s *WalletService) GetBalance(ctx context.Context) (*models.Wallet, error) {
	return s.wallets.Get(ctx)
}

// ApplyDonation increments totalDonations and rederives the balance.
func (s *WalletService) ApplyDonation(ctx context.Context, amountMinor int64) (*models.Wallet, error) {
	if amountMinor <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	w, err := s.wallets.ApplyDelta(ctx, amountMinor, 0)
	if err != nil {
		return nil, fmt.Errorf("apply donation to wallet: %w", err)
	}
	s.record(ctx, models.AuditWalletApplied, models.MajorString(amountMinor))
	return w, nil
}

// ApplyExpense increments totalExpenses and rederives the balance.
func (s *WalletService) ApplyExpense(ctx context.Context, amountMinor int64) (*models.Wallet, error) {
	if amountMinor <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	w, err := s.wallets.ApplyDelta(ctx, 0, amountMinor)
	if err != nil {
		return nil, fmt.Errorf("apply expense to wallet: %w", err)
	}
	s.record(ctx, models.AuditWalletExpense, models.MajorString(amountMinor))
	return w, nil
}

// Recompute rebuilds the wallet from first principles: the sum of completed,
// non-deleted donations minus the sum of approved, non-deleted expenses.
// Soft deletes always go through here, never through a blind decrement.
func (s *WalletService) Recompute(ctx context.Context) (*models.Wallet, error) {
	sumDonations, err := s.donations.SumCompletedMinor(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum donations: %w", err)
	}
	sumExpenses, err := s.expenses.SumApprovedMinor(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}

	w, err := s.wallets.Get(ctx)
	if err != nil {
		return nil, err
	}
	w.TotalDonationsMinor = sumDonations
	w.TotalExpensesMinor = sumExpenses
	w.Derive()
	w.UpdatedAt = time.Now().UTC()
	if err := s.wallets.Replace(ctx, w); err != nil {
		return nil, fmt.Errorf("replace wallet: %w", err)
	}
	s.record(ctx, models.AuditWalletRecomputed, models.MajorString(w.AvailableBalanceMinor))
	return w, nil
}

func (s *WalletService) record(ctx context.Context, action models.AuditAction, detail string) {
	ev := models.AuditEvent{
		Aggregate: models.AggregateWallet,
		Action:    action,
		RefID:     "wallet",
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Error("audit record failed", zap.String("action", string(action)), zap.Error(err))
	}
}
