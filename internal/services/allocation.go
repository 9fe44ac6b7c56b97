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

// AllocationEngine applies completed donations to the wallet and, for
// item-targeted donations, to the fundraising item's progress. Both halves
// are individually retryable; Sweep repairs any gap left by a crash between
// them.
type AllocationEngine struct {
	wallet    *WalletService
	items     ItemStore
	donations DonationStore
	audit     AuditStore
	logger    *zap.Logger
}

func NewAllocationEngine(wallet *WalletService, items ItemStore, donations DonationStore, audit AuditStore, logger *zap.Logger) *AllocationEngine {
	return &AllocationEngine{wallet: wallet, items: items, donations: donations, audit: audit, logger: logger}
}

// Allocate applies one completed donation. The orchestrator calls this
// exactly once per materialized donation.
func (e *AllocationEngine) Allocate(ctx context.Context, d *models.Donation) error {
	if !d.Countable() {
		return &ValidationError{Field: "status", Reason: "only completed, non-deleted donations allocate"}
	}

	if _, err := e.wallet.ApplyDonation(ctx, d.AmountMinor); err != nil {
		return fmt.Errorf("wallet allocation for donation %s: %w", d.ID.Hex(), err)
	}

	if d.TargetKind == models.TargetItem && d.EventItemID != nil {
		item, err := e.items.ApplyDonation(ctx, *d.EventItemID, d.AmountMinor, d.ItemQuantity)
		if err != nil {
			return fmt.Errorf("item allocation for donation %s: %w", d.ID.Hex(), err)
		}
		e.record(ctx, models.AuditItemAllocated, item.ID.Hex(),
			fmt.Sprintf("donation %s, +%s, qty %d", d.ID.Hex(), models.MajorString(d.AmountMinor), d.ItemQuantity))
	}
	return nil
}

// ValidateTarget checks a donation draft's target before any order is
// issued or any donation materialized. Item existence is a precondition
// supplied by the event service; this engine never creates items. A
// donation that would push the item past its target quantity or amount is
// rejected outright rather than silently capped.
func (e *AllocationEngine) ValidateTarget(ctx context.Context, kind models.TargetKind, itemID *primitive.ObjectID, quantity, amountMinor int64) error {
	if kind != models.TargetItem {
		return nil
	}
	if itemID == nil {
		return &ValidationError{Field: "event_item_id", Reason: "required for item-targeted donations"}
	}
	item, err := e.items.FindByID(ctx, *itemID)
	if errors.Is(err, ErrNotFound) {
		return &ValidationError{Field: "event_item_id", Reason: "fundraising item does not exist"}
	}
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return &ValidationError{Field: "item_quantity", Reason: "must be positive"}
	}
	if quantity > item.RemainingQuantity() {
		return &ValidationError{Field: "item_quantity",
			Reason: fmt.Sprintf("only %d unit(s) remain for %q", item.RemainingQuantity(), item.Name)}
	}
	if item.TargetAmountMinor > 0 && item.DonatedAmountMinor+amountMinor > item.TargetAmountMinor {
		return &ValidationError{Field: "amount",
			Reason: fmt.Sprintf("would exceed the remaining target of %s for %q",
				models.MajorString(item.TargetAmountMinor-item.DonatedAmountMinor), item.Name)}
	}
	return nil
}

// SweepReport summarizes one reconciliation sweep.
type SweepReport struct {
	ItemsRepaired  []string `json:"items_repaired"`
	WalletRepaired bool     `json:"wallet_repaired"`
}

// Sweep detects and repairs allocation gaps: item progress that disagrees
// with the sum of its completed, non-deleted donations, and wallet totals
// that drifted from first principles. Only the missing half is replayed;
// nothing is double-applied.
func (e *AllocationEngine) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	targeted, err := e.donations.ListCompletedItemTargeted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list item-targeted donations: %w", err)
	}
	seen := make(map[primitive.ObjectID]bool)
	for _, d := range targeted {
		if d.EventItemID == nil || seen[*d.EventItemID] {
			continue
		}
		seen[*d.EventItemID] = true

		wantAmount, wantQty, err := e.donations.CompletedItemTotals(ctx, *d.EventItemID)
		if err != nil {
			return nil, fmt.Errorf("item totals: %w", err)
		}
		item, err := e.items.FindByID(ctx, *d.EventItemID)
		if err != nil {
			return nil, fmt.Errorf("find item %s: %w", d.EventItemID.Hex(), err)
		}
		if item.DonatedAmountMinor == wantAmount && item.DonatedQuantity == wantQty {
			continue
		}
		if err := e.items.SetProgress(ctx, item.ID, wantAmount, wantQty); err != nil {
			return nil, fmt.Errorf("repair item %s: %w", item.ID.Hex(), err)
		}
		report.ItemsRepaired = append(report.ItemsRepaired, item.ID.Hex())
		e.record(ctx, models.AuditItemSweepReplayed, item.ID.Hex(),
			fmt.Sprintf("%s -> %s", models.MajorString(item.DonatedAmountMinor), models.MajorString(wantAmount)))
	}

	before, err := e.wallet.GetBalance(ctx)
	if err != nil {
		return nil, err
	}
	after, err := e.wallet.Recompute(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet recompute: %w", err)
	}
	report.WalletRepaired = before.AvailableBalanceMinor != after.AvailableBalanceMinor
	return report, nil
}

// Remove soft-deletes a donation and rebuilds the aggregates it counted
// toward. Always a full recompute: partial decrements compound rounding and
// double-adjustment bugs over time.
func (e *AllocationEngine) Remove(ctx context.Context, id primitive.ObjectID) error {
	d, err := e.donations.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if d.SoftDeleted {
		return nil
	}
	if err := e.donations.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete donation: %w", err)
	}
	e.record(ctx, models.AuditDonationDeleted, id.Hex(), "")

	if d.Countable() {
		if _, err := e.wallet.Recompute(ctx); err != nil {
			return err
		}
		if d.TargetKind == models.TargetItem && d.EventItemID != nil {
			if err := e.repairItem(ctx, *d.EventItemID); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReverseAllocation is the explicit, operator-audited reversal used after a
// refund. It is never triggered automatically by a refund webhook.
func (e *AllocationEngine) ReverseAllocation(ctx context.Context, donationID primitive.ObjectID, operator string) error {
	if operator == "" {
		return &ValidationError{Field: "operator", Reason: "required for allocation reversal"}
	}
	d, err := e.donations.FindByID(ctx, donationID)
	if err != nil {
		return err
	}
	if !d.Countable() {
		return &ValidationError{Field: "donation", Reason: "donation is not currently allocated"}
	}
	if err := e.donations.SoftDelete(ctx, donationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete for reversal: %w", err)
	}
	ev := models.AuditEvent{
		Aggregate: models.AggregateWallet,
		Action:    models.AuditWalletReversed,
		RefID:     donationID.Hex(),
		Actor:     operator,
		Detail:    "refund reversal of " + models.MajorString(d.AmountMinor),
		At:        time.Now().UTC(),
	}
	if err := e.audit.Record(ctx, ev); err != nil {
		e.logger.Error("audit record failed", zap.Error(err))
	}
	if _, err := e.wallet.Recompute(ctx); err != nil {
		return err
	}
	if d.TargetKind == models.TargetItem && d.EventItemID != nil {
		return e.repairItem(ctx, *d.EventItemID)
	}
	return nil
}

func (e *AllocationEngine) repairItem(ctx context.Context, itemID primitive.ObjectID) error {
	wantAmount, wantQty, err := e.donations.CompletedItemTotals(ctx, itemID)
	if err != nil {
		return fmt.Errorf("item totals: %w", err)
	}
	if err := e.items.SetProgress(ctx, itemID, wantAmount, wantQty); err != nil {
		return fmt.Errorf("repair item %s: %w", itemID.Hex(), err)
	}
	return nil
}

func (e *AllocationEngine) record(ctx context.Context, action models.AuditAction, refID, detail string) {
	ev := models.AuditEvent{
		Aggregate: models.AggregateItem,
		Action:    action,
		RefID:     refID,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	if err := e.audit.Record(ctx, ev); err != nil {
		e.logger.Error("audit record failed", zap.String("action", string(action)), zap.Error(err))
	}
}
