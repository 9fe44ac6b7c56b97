package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// OperatorHandler serves the manual recovery surface: the invariant
// violation queue, the allocation sweep, and webhook replay.
type OperatorHandler struct {
	queue  services.ReconQueue
	orch   *services.Orchestrator
	alloc  *services.AllocationEngine
	items  services.ItemStore
	logger *zap.Logger
}

func NewOperatorHandler(queue services.ReconQueue, orch *services.Orchestrator, alloc *services.AllocationEngine,
	items services.ItemStore, logger *zap.Logger) *OperatorHandler {
	return &OperatorHandler{queue: queue, orch: orch, alloc: alloc, items: items, logger: logger}
}

func (h *OperatorHandler) Queue(w http.ResponseWriter, r *http.Request) {
	includeResolved := r.URL.Query().Get("include_resolved") == "true"
	items, err := h.queue.List(r.Context(), includeResolved)
	if err != nil {
		serviceError(w, err)
		return
	}
	if items == nil {
		items = []models.ReconItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Sweep replays missing allocation halves and repairs wallet drift.
func (h *OperatorHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.alloc.Sweep(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type replayRequest struct {
	PaymentID string `json:"payment_id"`
}

// Replay re-runs settlement for a stuck payment from ledger state.
func (h *OperatorHandler) Replay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	donation, err := h.orch.Replay(r.Context(), req.PaymentID)
	if err != nil {
		serviceError(w, err)
		return
	}
	resp := map[string]string{"status": "ok"}
	if donation != nil {
		resp["donation_id"] = donation.ID.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}

type reverseRequest struct {
	DonationID string `json:"donation_id"`
	Operator   string `json:"operator"`
}

// Reverse is the audited manual unwind of a donation's allocation after an
// out-of-band refund decision.
func (h *OperatorHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := primitive.ObjectIDFromHex(req.DonationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}
	if err := h.alloc.ReverseAllocation(r.Context(), id, req.Operator); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "allocation reversed"})
}

func (h *OperatorHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := h.items.FindByID(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type createItemRequest struct {
	EventID        string `json:"event_id"`
	Name           string `json:"name"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TargetQuantity int64  `json:"target_quantity"`
}

func (h *OperatorHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.UnitPriceMinor <= 0 || req.TargetQuantity <= 0 {
		writeError(w, http.StatusBadRequest, "name, unit_price_minor and target_quantity are required")
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	item := &models.FundraisingItem{
		EventID:           eventID,
		Name:              req.Name,
		UnitPriceMinor:    req.UnitPriceMinor,
		TargetQuantity:    req.TargetQuantity,
		TargetAmountMinor: req.UnitPriceMinor * req.TargetQuantity,
	}
	if err := h.items.Insert(r.Context(), item); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
