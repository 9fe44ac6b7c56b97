package handlers_test

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/gateway"
	"github.com/sevasetu/seva-gobackend/internal/handlers"
	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// memStore backs every store interface with one mutex-guarded struct; enough
// fidelity for handler-level tests.
type memStore struct {
	mu        sync.Mutex
	txs       map[string]*models.Transaction
	donations map[primitive.ObjectID]*models.Donation
	items     map[primitive.ObjectID]*models.FundraisingItem
	expenses  map[primitive.ObjectID]*models.Expense
	wallet    models.Wallet
	audit     []models.AuditEvent
	queued    []models.ReconItem
}

func newMemStore() *memStore {
	return &memStore{
		txs:       make(map[string]*models.Transaction),
		donations: make(map[primitive.ObjectID]*models.Donation),
		items:     make(map[primitive.ObjectID]*models.FundraisingItem),
		expenses:  make(map[primitive.ObjectID]*models.Expense),
	}
}

func (s *memStore) FindByPaymentID(_ context.Context, paymentID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[paymentID]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) Insert(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.GatewayPaymentID]; ok {
		return services.ErrConflict
	}
	tx.ID = primitive.NewObjectID()
	cp := *tx
	s.txs[tx.GatewayPaymentID] = &cp
	return nil
}

func (s *memStore) SetStatus(_ context.Context, paymentID string, status models.TransactionStatus, orderID string, amountMinor int64, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[paymentID]
	if !ok {
		return services.ErrNotFound
	}
	tx.Status = status
	if orderID != "" {
		tx.GatewayOrderID = orderID
	}
	if amountMinor > 0 {
		tx.AmountMinor = amountMinor
	}
	if currency != "" {
		tx.Currency = currency
	}
	return nil
}

func (s *memStore) AppendEvent(_ context.Context, paymentID string, ev models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[paymentID]
	if !ok {
		return services.ErrNotFound
	}
	tx.WebhookEvents = append(tx.WebhookEvents, ev)
	return nil
}

func (s *memStore) MarkProcessed(_ context.Context, paymentID string, donationID primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[paymentID]
	if !ok {
		return false, services.ErrNotFound
	}
	if tx.Processed {
		return false, nil
	}
	tx.Processed = true
	tx.ProcessedAt = &at
	tx.DonationID = &donationID
	return true, nil
}

type memDonations struct{ s *memStore }

func (m memDonations) Insert(_ context.Context, d *models.Donation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if d.ReceiptSeq > 0 {
		for _, other := range m.s.donations {
			if other.ReceiptDate == d.ReceiptDate && other.ReceiptSeq == d.ReceiptSeq {
				return services.ErrConflict
			}
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	cp := *d
	m.s.donations[d.ID] = &cp
	return nil
}

func (m memDonations) FindByID(_ context.Context, id primitive.ObjectID) (*models.Donation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.donations[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m memDonations) FindPendingByOrderID(_ context.Context, orderID string) (*models.Donation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.donations {
		if d.GatewayOrderID == orderID && d.Status == models.DonationPending {
			cp := *d
			return &cp, nil
		}
	}
	return nil, services.ErrNotFound
}

func (m memDonations) FindByPaymentID(_ context.Context, paymentID string) (*models.Donation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.donations {
		if d.GatewayPaymentID == paymentID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, services.ErrNotFound
}

func (m memDonations) Complete(_ context.Context, id primitive.ObjectID, c services.DonationCompletion) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.donations[id]
	if !ok || d.Status != models.DonationPending {
		return services.ErrNotFound
	}
	d.Status = models.DonationCompleted
	d.ReceiptNumber = c.ReceiptNumber
	d.ReceiptDate = c.ReceiptDate
	d.ReceiptSeq = c.ReceiptSeq
	d.AmountMinor = c.AmountMinor
	if c.Currency != "" {
		d.Currency = c.Currency
	}
	d.GatewayPaymentID = c.GatewayPaymentID
	d.TransactionID = &c.TransactionID
	return nil
}

func (m memDonations) MaxReceiptSeq(_ context.Context, date string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	max := 0
	for _, d := range m.s.donations {
		if d.ReceiptDate == date && d.ReceiptSeq > max {
			max = d.ReceiptSeq
		}
	}
	return max, nil
}

func (m memDonations) List(_ context.Context, f services.DonationFilter) ([]models.Donation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Donation
	for _, d := range m.s.donations {
		if !f.IncludeDeleted && d.SoftDeleted {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m memDonations) SoftDelete(_ context.Context, id primitive.ObjectID, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.donations[id]
	if !ok {
		return services.ErrNotFound
	}
	d.SoftDeleted = true
	d.DeletedAt = &at
	return nil
}

func (m memDonations) SumCompletedMinor(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var sum int64
	for _, d := range m.s.donations {
		if d.Countable() {
			sum += d.AmountMinor
		}
	}
	return sum, nil
}

func (m memDonations) CompletedItemTotals(_ context.Context, itemID primitive.ObjectID) (int64, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var amount, qty int64
	for _, d := range m.s.donations {
		if d.Countable() && d.EventItemID != nil && *d.EventItemID == itemID {
			amount += d.AmountMinor
			qty += d.ItemQuantity
		}
	}
	return amount, qty, nil
}

func (m memDonations) ListCompletedItemTargeted(_ context.Context) ([]models.Donation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Donation
	for _, d := range m.s.donations {
		if d.Countable() && d.TargetKind == models.TargetItem {
			out = append(out, *d)
		}
	}
	return out, nil
}

type memWallet struct{ s *memStore }

func (m memWallet) Get(_ context.Context) (*models.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := m.s.wallet
	return &cp, nil
}

func (m memWallet) ApplyDelta(_ context.Context, donationsDelta, expensesDelta int64) (*models.Wallet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.wallet.TotalDonationsMinor += donationsDelta
	m.s.wallet.TotalExpensesMinor += expensesDelta
	m.s.wallet.Derive()
	cp := m.s.wallet
	return &cp, nil
}

func (m memWallet) Replace(_ context.Context, w *models.Wallet) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.wallet = *w
	return nil
}

type memItems struct{ s *memStore }

func (m memItems) FindByID(_ context.Context, id primitive.ObjectID) (*models.FundraisingItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	item, ok := m.s.items[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m memItems) Insert(_ context.Context, item *models.FundraisingItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	item.Status = models.ItemStatusFor(item.DonatedAmountMinor, item.TargetAmountMinor)
	cp := *item
	m.s.items[item.ID] = &cp
	return nil
}

func (m memItems) ApplyDonation(_ context.Context, id primitive.ObjectID, amountMinor, quantity int64) (*models.FundraisingItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	item, ok := m.s.items[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	item.DonatedAmountMinor += amountMinor
	item.DonatedQuantity += quantity
	item.Status = models.ItemStatusFor(item.DonatedAmountMinor, item.TargetAmountMinor)
	cp := *item
	return &cp, nil
}

func (m memItems) SetProgress(_ context.Context, id primitive.ObjectID, amountMinor, quantity int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	item, ok := m.s.items[id]
	if !ok {
		return services.ErrNotFound
	}
	item.DonatedAmountMinor = amountMinor
	item.DonatedQuantity = quantity
	item.Status = models.ItemStatusFor(amountMinor, item.TargetAmountMinor)
	return nil
}

type memExpenses struct{ s *memStore }

func (m memExpenses) Insert(_ context.Context, e *models.Expense) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e.ID = primitive.NewObjectID()
	cp := *e
	m.s.expenses[e.ID] = &cp
	return nil
}

func (m memExpenses) FindByID(_ context.Context, id primitive.ObjectID) (*models.Expense, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.expenses[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m memExpenses) SetStatus(_ context.Context, id primitive.ObjectID, status models.ExpenseStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.expenses[id]
	if !ok {
		return services.ErrNotFound
	}
	e.Status = status
	return nil
}

func (m memExpenses) SumApprovedMinor(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var sum int64
	for _, e := range m.s.expenses {
		if e.Status == models.ExpenseApproved && !e.SoftDeleted {
			sum += e.AmountMinor
		}
	}
	return sum, nil
}

type memAudit struct{ s *memStore }

func (m memAudit) Record(_ context.Context, ev models.AuditEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.audit = append(m.s.audit, ev)
	return nil
}

type memRecon struct{ s *memStore }

func (m memRecon) Enqueue(_ context.Context, item models.ReconItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.queued = append(m.s.queued, item)
	return nil
}

func (m memRecon) List(_ context.Context, _ bool) ([]models.ReconItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]models.ReconItem(nil), m.s.queued...), nil
}

type directRunner struct{}

func (directRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// testEnv wires the full handler stack over the in-memory store.
type testEnv struct {
	store *memStore

	donationHandler *handlers.DonationHandler
	webhookHandler  *handlers.WebhookHandler
	walletHandler   *handlers.WalletHandler
	operatorHandler *handlers.OperatorHandler

	donationSvc *services.DonationService
	walletSvc   *services.WalletService
}

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

func newTestEnv(gatewayURL string) *testEnv {
	logger := zap.NewNop()
	s := newMemStore()
	donations := memDonations{s}
	wallets := memWallet{s}
	items := memItems{s}
	expenses := memExpenses{s}
	audit := memAudit{s}
	queue := memRecon{s}

	if gatewayURL == "" {
		gatewayURL = "http://gateway.invalid"
	}
	gw := gateway.NewClient(gatewayURL, "key_test", testKeySecret, testWebhookSecret, logger)

	ledger := services.NewLedgerService(s, audit, logger)
	walletSvc := services.NewWalletService(wallets, donations, expenses, audit, logger)
	donationSvc := services.NewDonationService(donations, s, directRunner{}, audit, logger)
	alloc := services.NewAllocationEngine(walletSvc, items, donations, audit, logger)
	orch := services.NewOrchestrator(ledger, donationSvc, alloc, s, donations, gw, queue, logger)

	return &testEnv{
		store:           s,
		donationHandler: handlers.NewDonationHandler(gw, donationSvc, alloc, orch, donations, logger),
		webhookHandler:  handlers.NewWebhookHandler(orch, logger),
		walletHandler:   handlers.NewWalletHandler(walletSvc, expenses, logger),
		operatorHandler: handlers.NewOperatorHandler(queue, orch, alloc, items, logger),
		donationSvc:     donationSvc,
		walletSvc:       walletSvc,
	}
}
