package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/gateway"
	"github.com/sevasetu/seva-gobackend/internal/locks"
	"github.com/sevasetu/seva-gobackend/internal/models"
)

// clientVerifyEvent is the synthetic event name the ledger records for the
// checkout-callback path, so the audit log covers both entry points.
const clientVerifyEvent = "client.verify"

// Orchestrator is the single funnel for both payment entry points: the
// synchronous client verify call and the asynchronous gateway webhook. It
// enforces at-most-once materialization per payment id.
type Orchestrator struct {
	ledger    *LedgerService
	donations *DonationService
	alloc     *AllocationEngine
	txs       TransactionStore
	store     DonationStore
	gw        *gateway.Client
	locks     *locks.Keyed
	queue     ReconQueue
	logger    *zap.Logger

	// AcceptAuthorized materializes on authorized as well as captured, for
	// merchants that accept non-captured funds.
	AcceptAuthorized bool
}

func NewOrchestrator(ledger *LedgerService, donations *DonationService, alloc *AllocationEngine,
	txs TransactionStore, store DonationStore, gw *gateway.Client, queue ReconQueue, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:    ledger,
		donations: donations,
		alloc:     alloc,
		txs:       txs,
		store:     store,
		gw:        gw,
		locks:     locks.NewKeyed(),
		queue:     queue,
		logger:    logger,
	}
}

// VerifyRequest is the client-side checkout callback.
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	// Draft carries donor fields for the rare order placed without a
	// stored pending record; the order-time draft wins when both exist.
	Draft *DonationDraft
}

// VerifyPayment handles the synchronous half of reconciliation. A signature
// mismatch rejects with zero side effects. Gateway enrichment happens before
// the per-payment lock is taken; only the ledger/materialize/allocate
// sequence runs inside it.
func (o *Orchestrator) VerifyPayment(ctx context.Context, req VerifyRequest) (*models.Donation, error) {
	if req.OrderID == "" || req.PaymentID == "" {
		return nil, &ValidationError{Field: "order_id/payment_id", Reason: "required"}
	}
	if !gateway.VerifyCheckoutSignature(req.OrderID, req.PaymentID, req.Signature, o.gw.KeySecret()) {
		o.logger.Warn("checkout signature mismatch",
			zap.String("order_id", req.OrderID), zap.String("payment_id", req.PaymentID))
		return nil, ErrSignatureMismatch
	}

	// The signature itself proves a successful checkout; the fetch only
	// enriches the record and must not block the transition if the gateway
	// is unreachable.
	sig := GatewaySignal{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Status:    models.TxCaptured,
		Event:     clientVerifyEvent,
	}
	if p, err := o.gw.FetchPayment(ctx, req.PaymentID); err == nil {
		sig.AmountMinor = p.AmountMinor
		sig.Currency = p.Currency
		if st := statusFromGateway(p.Status); st != "" {
			sig.Status = st
		}
	} else {
		o.logger.Warn("payment fetch for enrichment failed",
			zap.String("payment_id", req.PaymentID), zap.Error(err))
	}
	payload, _ := json.Marshal(map[string]string{
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
	})
	sig.Payload = payload

	unlock := o.locks.Acquire(req.PaymentID)
	defer unlock()

	tx, err := o.ledger.Upsert(ctx, sig)
	if err != nil {
		return nil, err
	}
	donation, err := o.settle(ctx, tx, req.Draft)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		// Signature was valid but the gateway reports the payment is not
		// yet payable; the webhook will finish the job.
		return nil, &ValidationError{Field: "payment", Reason: "payment not captured yet"}
	}
	return donation, nil
}

// webhookEnvelope is the subset of the gateway's webhook body the engine
// reads. The raw bytes stay untouched for signature verification.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID          string `json:"id"`
				OrderID     string `json:"order_id"`
				AmountMinor int64  `json:"amount"`
				Currency    string `json:"currency"`
				Status      string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				PaymentID   string `json:"payment_id"`
				AmountMinor int64  `json:"amount"`
				Currency    string `json:"currency"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhook handles the asynchronous half. body must be the raw request
// bytes; delivery is at-least-once and unordered, so everything downstream
// is idempotent. The returned donation is non-nil when this delivery (or a
// previous one) produced one.
func (o *Orchestrator) HandleWebhook(ctx context.Context, body []byte, signature string) (*models.Donation, error) {
	if !gateway.VerifyWebhookSignature(body, signature, o.gw.WebhookSecret()) {
		o.logger.Warn("webhook signature mismatch")
		return nil, ErrSignatureMismatch
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ValidationError{Field: "body", Reason: "malformed webhook payload"}
	}

	sig := GatewaySignal{
		Event:   env.Event,
		Payload: body,
	}
	if env.Payload.Payment.Entity.ID != "" {
		ent := env.Payload.Payment.Entity
		sig.PaymentID = ent.ID
		sig.OrderID = ent.OrderID
		sig.AmountMinor = ent.AmountMinor
		sig.Currency = ent.Currency
	} else if env.Payload.Refund.Entity.PaymentID != "" {
		sig.PaymentID = env.Payload.Refund.Entity.PaymentID
	}
	if sig.PaymentID == "" {
		return nil, &ValidationError{Field: "body", Reason: "webhook names no payment id"}
	}
	sig.Status = statusFromEvent(env.Event)

	unlock := o.locks.Acquire(sig.PaymentID)
	defer unlock()

	tx, err := o.ledger.Upsert(ctx, sig)
	if err != nil {
		return nil, err
	}
	return o.settle(ctx, tx, nil)
}

// Replay re-attempts settlement for a payment from the ledger's current
// state: the operator recovery path after an invariant violation, once the
// underlying cause (usually a missing draft) is fixed.
func (o *Orchestrator) Replay(ctx context.Context, paymentID string) (*models.Donation, error) {
	if paymentID == "" {
		return nil, &ValidationError{Field: "payment_id", Reason: "required"}
	}
	unlock := o.locks.Acquire(paymentID)
	defer unlock()

	tx, err := o.txs.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return o.settle(ctx, tx, nil)
}

// settle runs the materialize-then-allocate tail under the caller-held
// per-payment lock. The processed check inside Materialize is the last read
// before the write; a duplicate delivery short-circuits to the linked
// donation. Returns (nil, nil) when the payment is simply not payable yet.
func (o *Orchestrator) settle(ctx context.Context, tx *models.Transaction, reqDraft *DonationDraft) (*models.Donation, error) {
	if tx.Processed {
		d, err := o.donations.linkedDonation(ctx, tx)
		if err != nil {
			return nil, o.escalate(ctx, tx.GatewayPaymentID, err)
		}
		return d, nil
	}
	if !tx.Materializable(o.AcceptAuthorized) {
		return nil, nil
	}

	draft, err := o.draftFor(ctx, tx, reqDraft)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, o.escalate(ctx, tx.GatewayPaymentID, &InvariantViolationError{
			GatewayPaymentID: tx.GatewayPaymentID,
			Reason:           "captured payment has no donation draft to materialize",
		})
	}

	// Order-time target validation raced any other order for the same
	// item. The item's progress does not include this donation yet, so the
	// same check re-runs here against current totals; a capture that no
	// longer fits goes to the operator instead of overshooting the target.
	if err := o.alloc.ValidateTarget(ctx, draft.TargetKind, draft.EventItemID, draft.ItemQuantity, tx.AmountMinor); err != nil {
		if !IsValidation(err) {
			return nil, err
		}
		return nil, o.escalate(ctx, tx.GatewayPaymentID, &InvariantViolationError{
			GatewayPaymentID: tx.GatewayPaymentID,
			Reason:           fmt.Sprintf("captured payment no longer fits its target: %v", err),
		})
	}

	donation, err := o.donations.Materialize(ctx, tx, draft)
	if err != nil {
		return nil, o.escalate(ctx, tx.GatewayPaymentID, err)
	}
	if err := o.alloc.Allocate(ctx, donation); err != nil {
		// Materialization committed; the sweep replays the missing
		// allocation half. Escalate so the operator knows to run it.
		return donation, o.escalate(ctx, tx.GatewayPaymentID, &InvariantViolationError{
			GatewayPaymentID: tx.GatewayPaymentID,
			Reason:           fmt.Sprintf("allocation failed after materialization: %v", err),
		})
	}
	return donation, nil
}

// draftFor resolves the donation draft: the order-time pending record wins,
// then the verify request's own fields. A webhook for an order this system
// never issued resolves to nothing: gateway-echoed metadata is not trusted
// to become a financial record.
func (o *Orchestrator) draftFor(ctx context.Context, tx *models.Transaction, reqDraft *DonationDraft) (*DonationDraft, error) {
	if tx.GatewayOrderID != "" {
		pending, err := o.store.FindPendingByOrderID(ctx, tx.GatewayOrderID)
		if err == nil {
			return &DonationDraft{
				ExistingID:   &pending.ID,
				DonorName:    pending.DonorName,
				DonorEmail:   pending.DonorEmail,
				DonorPhone:   pending.DonorPhone,
				IsAnonymous:  pending.IsAnonymous,
				TargetKind:   pending.TargetKind,
				EventID:      pending.EventID,
				EventItemID:  pending.EventItemID,
				ItemQuantity: pending.ItemQuantity,
				Currency:     pending.Currency,
			}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return reqDraft, nil
}

// escalate records an invariant violation on the operator queue and passes
// the error through. Never swallowed into a success response: the gateway's
// retries stay live.
func (o *Orchestrator) escalate(ctx context.Context, paymentID string, err error) error {
	if !IsInvariantViolation(err) {
		return err
	}
	o.logger.Error("reconciliation invariant violation",
		zap.String("payment_id", paymentID), zap.Error(err))
	item := models.ReconItem{
		GatewayPaymentID: paymentID,
		Reason:           err.Error(),
		CreatedAt:        time.Now().UTC(),
	}
	if qerr := o.queue.Enqueue(ctx, item); qerr != nil {
		o.logger.Error("operator queue enqueue failed", zap.Error(qerr))
	}
	return err
}

// statusFromEvent maps webhook event names onto ledger statuses. Unknown
// events record into the log without a transition.
func statusFromEvent(event string) models.TransactionStatus {
	switch event {
	case "payment.authorized":
		return models.TxAuthorized
	case "payment.captured", "order.paid":
		return models.TxCaptured
	case "payment.failed":
		return models.TxFailed
	case "refund.processed":
		return models.TxRefunded
	default:
		return ""
	}
}

// statusFromGateway maps a fetched payment's status field.
func statusFromGateway(status string) models.TransactionStatus {
	switch status {
	case "created":
		return models.TxCreated
	case "authorized":
		return models.TxAuthorized
	case "captured":
		return models.TxCaptured
	case "refunded":
		return models.TxRefunded
	case "failed":
		return models.TxFailed
	default:
		return ""
	}
}
