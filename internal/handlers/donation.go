package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/gateway"
	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// DonationHandler serves order creation, checkout verification, and the
// donation CRUD surface.
type DonationHandler struct {
	gw        *gateway.Client
	donations *services.DonationService
	alloc     *services.AllocationEngine
	orch      *services.Orchestrator
	store     services.DonationStore
	logger    *zap.Logger
}

func NewDonationHandler(gw *gateway.Client, donations *services.DonationService, alloc *services.AllocationEngine,
	orch *services.Orchestrator, store services.DonationStore, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{gw: gw, donations: donations, alloc: alloc, orch: orch, store: store, logger: logger}
}

type createOrderRequest struct {
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency"`
	DonorName    string            `json:"donor_name"`
	DonorEmail   string            `json:"donor_email"`
	DonorPhone   string            `json:"donor_phone"`
	IsAnonymous  bool              `json:"is_anonymous"`
	TargetKind   models.TargetKind `json:"target_kind"`
	EventID      string            `json:"event_id"`
	EventItemID  string            `json:"event_item_id"`
	ItemQuantity int64             `json:"item_quantity"`
}

type createOrderResponse struct {
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	KeyID       string `json:"key_id"`
	DonationID  string `json:"donation_id"`
}

// CreateOrder validates the target, registers a gateway order, and persists
// the pending donation draft the webhook path will later materialize.
func (h *DonationHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	draft, err := draftFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amountMinor := req.Amount.Shift(2).RoundBank(0).IntPart()
	if err := h.alloc.ValidateTarget(r.Context(), draft.TargetKind, draft.EventItemID, draft.ItemQuantity, amountMinor); err != nil {
		serviceError(w, err)
		return
	}

	receipt := "don_" + uuid.NewString()
	order, err := h.gw.CreateOrder(r.Context(), req.Amount, receipt, map[string]string{
		"donor_name": req.DonorName,
	})
	if err != nil {
		h.logger.Error("order creation failed", zap.Error(err))
		if gateway.IsAmountRejected(err) {
			writeError(w, http.StatusBadRequest, "amount rejected by payment gateway")
			return
		}
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}

	pending, err := h.donations.CreatePending(r.Context(), *draft, order.AmountMinor, order.ID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:     order.ID,
		AmountMinor: order.AmountMinor,
		Amount:      models.MajorString(order.AmountMinor),
		Currency:    order.Currency,
		KeyID:       h.gw.KeyID(),
		DonationID:  pending.ID.Hex(),
	})
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Verify is the synchronous checkout callback. Donor-facing failures stay
// generic; the detail lives in the logs and the operator queue.
func (h *DonationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	donation, err := h.orch.VerifyPayment(r.Context(), services.VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		if errors.Is(err, services.ErrSignatureMismatch) || services.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "payment verification failed, please contact support")
			return
		}
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, donation)
}

type offlineRequest struct {
	Amount       decimal.Decimal    `json:"amount"`
	Mode         models.PaymentMode `json:"payment_mode"`
	Currency     string             `json:"currency"`
	DonorName    string             `json:"donor_name"`
	DonorEmail   string             `json:"donor_email"`
	DonorPhone   string             `json:"donor_phone"`
	IsAnonymous  bool               `json:"is_anonymous"`
	TargetKind   models.TargetKind  `json:"target_kind"`
	EventID      string             `json:"event_id"`
	EventItemID  string             `json:"event_item_id"`
	ItemQuantity int64              `json:"item_quantity"`
}

// CreateOffline records a staff-entered cash, cheque, or bank donation.
// Item targeting works the same way as on the gateway path.
func (h *DonationHandler) CreateOffline(w http.ResponseWriter, r *http.Request) {
	var req offlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	draft := services.DonationDraft{
		DonorName:    req.DonorName,
		DonorEmail:   req.DonorEmail,
		DonorPhone:   req.DonorPhone,
		IsAnonymous:  req.IsAnonymous,
		TargetKind:   req.TargetKind,
		ItemQuantity: req.ItemQuantity,
		Currency:     req.Currency,
	}
	var err error
	if draft.EventID, err = optionalID(req.EventID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if draft.EventItemID, err = optionalID(req.EventItemID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event item id")
		return
	}
	amountMinor := req.Amount.Shift(2).RoundBank(0).IntPart()
	if err := h.alloc.ValidateTarget(r.Context(), draft.TargetKind, draft.EventItemID, draft.ItemQuantity, amountMinor); err != nil {
		serviceError(w, err)
		return
	}
	donation, err := h.donations.CreateOffline(r.Context(), draft, amountMinor, req.Mode)
	if err != nil {
		serviceError(w, err)
		return
	}
	if err := h.alloc.Allocate(r.Context(), donation); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, donation)
}

// List returns completed, non-deleted donations, filterable by target kind
// and date range.
func (h *DonationHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.DonationFilter{
		Status:     models.DonationCompleted,
		TargetKind: models.TargetKind(r.URL.Query().Get("target_kind")),
		Limit:      100,
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		f.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		f.To = t
	}
	donations, err := h.store.List(r.Context(), f)
	if err != nil {
		serviceError(w, err)
		return
	}
	if donations == nil {
		donations = []models.Donation{}
	}
	writeJSON(w, http.StatusOK, donations)
}

func (h *DonationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["donationID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}
	donation, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, donation)
}

// Delete soft-deletes a donation and recomputes the wallet and any targeted
// item from scratch.
func (h *DonationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["donationID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}
	if err := h.alloc.Remove(r.Context(), id); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "donation removed"})
}

func draftFromRequest(req createOrderRequest) (*services.DonationDraft, error) {
	draft := &services.DonationDraft{
		DonorName:    req.DonorName,
		DonorEmail:   req.DonorEmail,
		DonorPhone:   req.DonorPhone,
		IsAnonymous:  req.IsAnonymous,
		TargetKind:   req.TargetKind,
		ItemQuantity: req.ItemQuantity,
		Currency:     req.Currency,
	}
	var err error
	if draft.EventID, err = optionalID(req.EventID); err != nil {
		return nil, errors.New("invalid event id")
	}
	if draft.EventItemID, err = optionalID(req.EventItemID); err != nil {
		return nil, errors.New("invalid event item id")
	}
	return draft, nil
}

func optionalID(hexID string) (*primitive.ObjectID, error) {
	if hexID == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
