package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// WalletHandler serves the balance snapshot and the expense surface.
type WalletHandler struct {
	wallet   *services.WalletService
	expenses services.ExpenseStore
	logger   *zap.Logger
}

func NewWalletHandler(wallet *services.WalletService, expenses services.ExpenseStore, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, expenses: expenses, logger: logger}
}

type walletResponse struct {
	TotalDonations   string `json:"total_donations"`
	TotalExpenses    string `json:"total_expenses"`
	RestrictedFunds  string `json:"restricted_funds"`
	AvailableBalance string `json:"available_balance"`
}

func walletView(w *models.Wallet) walletResponse {
	return walletResponse{
		TotalDonations:   models.MajorString(w.TotalDonationsMinor),
		TotalExpenses:    models.MajorString(w.TotalExpensesMinor),
		RestrictedFunds:  models.MajorString(w.RestrictedFundsMinor),
		AvailableBalance: models.MajorString(w.AvailableBalanceMinor),
	}
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallet.GetBalance(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletView(wallet))
}

// Recompute rebuilds the wallet from the donation and expense records. The
// operator escape hatch when the running totals are suspected stale.
func (h *WalletHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallet.Recompute(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletView(wallet))
}

type expenseRequest struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (h *WalletHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	now := time.Now().UTC()
	expense := &models.Expense{
		Title:       req.Title,
		AmountMinor: req.Amount.Shift(2).RoundBank(0).IntPart(),
		Currency:    currency,
		Status:      models.ExpensePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.expenses.Insert(r.Context(), expense); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

// ApproveExpense flips a pending expense to approved and applies it to the
// wallet. Already-approved expenses are a no-op conflict.
func (h *WalletHandler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["expenseID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}
	expense, err := h.expenses.FindByID(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	if expense.Status != models.ExpensePending {
		writeError(w, http.StatusConflict, "expense is not pending")
		return
	}
	if err := h.expenses.SetStatus(r.Context(), id, models.ExpenseApproved); err != nil {
		serviceError(w, err)
		return
	}
	wallet, err := h.wallet.ApplyExpense(r.Context(), expense.AmountMinor)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletView(wallet))
}
