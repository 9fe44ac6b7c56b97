package services_test

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sevasetu/seva-gobackend/internal/models"
	"github.com/sevasetu/seva-gobackend/internal/services"
)

// In-memory store implementations. Mutex-guarded so the concurrency tests
// exercise the same interleavings the Mongo-backed stores would see.

type memTxStore struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newMemTxStore() *memTxStore {
	return &memTxStore{txs: make(map[string]*models.Transaction)}
}

func (s *memTxStore) FindByPaymentID(_ context.Context, paymentID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[paymentID]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *tx
	cp.WebhookEvents = append([]models.WebhookEvent(nil), tx.WebhookEvents...)
	return &cp, nil
}

func (s *memTxStore) Insert(_ context.Context, tx *models.Transaction) error {
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

func (s *memTxStore) SetStatus(_ context.Context, paymentID string, status models.TransactionStatus, orderID string, amountMinor int64, currency string) error {
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

func (s *memTxStore) AppendEvent(_ context.Context, paymentID string, ev models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[paymentID]
	if !ok {
		return services.ErrNotFound
	}
	tx.WebhookEvents = append(tx.WebhookEvents, ev)
	return nil
}

func (s *memTxStore) MarkProcessed(_ context.Context, paymentID string, donationID primitive.ObjectID, at time.Time) (bool, error) {
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

type memDonationStore struct {
	mu        sync.Mutex
	donations map[primitive.ObjectID]*models.Donation
	// insertConflicts makes the next N completed-donation writes fail with
	// ErrConflict, simulating a receipt index collision.
	insertConflicts int
}

func newMemDonationStore() *memDonationStore {
	return &memDonationStore{donations: make(map[primitive.ObjectID]*models.Donation)}
}

func (s *memDonationStore) Insert(_ context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ReceiptSeq > 0 {
		if s.insertConflicts > 0 {
			s.insertConflicts--
			return services.ErrConflict
		}
		for _, other := range s.donations {
			if other.ReceiptDate == d.ReceiptDate && other.ReceiptSeq == d.ReceiptSeq {
				return services.ErrConflict
			}
		}
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	cp := *d
	s.donations[d.ID] = &cp
	return nil
}

func (s *memDonationStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memDonationStore) FindPendingByOrderID(_ context.Context, orderID string) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.GatewayOrderID == orderID && d.Status == models.DonationPending {
			cp := *d
			return &cp, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *memDonationStore) FindByPaymentID(_ context.Context, paymentID string) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.GatewayPaymentID == paymentID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *memDonationStore) Complete(_ context.Context, id primitive.ObjectID, c services.DonationCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertConflicts > 0 {
		s.insertConflicts--
		return services.ErrConflict
	}
	d, ok := s.donations[id]
	if !ok || d.Status != models.DonationPending {
		return services.ErrNotFound
	}
	for _, other := range s.donations {
		if other.ReceiptDate == c.ReceiptDate && other.ReceiptSeq == c.ReceiptSeq {
			return services.ErrConflict
		}
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

func (s *memDonationStore) MaxReceiptSeq(_ context.Context, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, d := range s.donations {
		if d.ReceiptDate == date && d.ReceiptSeq > max {
			max = d.ReceiptSeq
		}
	}
	return max, nil
}

func (s *memDonationStore) List(_ context.Context, f services.DonationFilter) ([]models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Donation
	for _, d := range s.donations {
		if !f.IncludeDeleted && d.SoftDeleted {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.TargetKind != "" && d.TargetKind != f.TargetKind {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *memDonationStore) SoftDelete(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok || d.SoftDeleted {
		return services.ErrNotFound
	}
	d.SoftDeleted = true
	d.DeletedAt = &at
	return nil
}

func (s *memDonationStore) SumCompletedMinor(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, d := range s.donations {
		if d.Countable() {
			sum += d.AmountMinor
		}
	}
	return sum, nil
}

func (s *memDonationStore) CompletedItemTotals(_ context.Context, itemID primitive.ObjectID) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var amount, qty int64
	for _, d := range s.donations {
		if d.Countable() && d.TargetKind == models.TargetItem && d.EventItemID != nil && *d.EventItemID == itemID {
			amount += d.AmountMinor
			qty += d.ItemQuantity
		}
	}
	return amount, qty, nil
}

func (s *memDonationStore) ListCompletedItemTargeted(_ context.Context) ([]models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Donation
	for _, d := range s.donations {
		if d.Countable() && d.TargetKind == models.TargetItem {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memDonationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.donations)
}

type memWalletStore struct {
	mu     sync.Mutex
	wallet models.Wallet
}

func (s *memWalletStore) Get(_ context.Context) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.wallet
	return &cp, nil
}

func (s *memWalletStore) ApplyDelta(_ context.Context, donationsDelta, expensesDelta int64) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet.TotalDonationsMinor += donationsDelta
	s.wallet.TotalExpensesMinor += expensesDelta
	s.wallet.Derive()
	cp := s.wallet
	return &cp, nil
}

func (s *memWalletStore) Replace(_ context.Context, w *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = *w
	return nil
}

type memItemStore struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.FundraisingItem
}

func newMemItemStore() *memItemStore {
	return &memItemStore{items: make(map[primitive.ObjectID]*models.FundraisingItem)}
}

func (s *memItemStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.FundraisingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *memItemStore) Insert(_ context.Context, item *models.FundraisingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	item.Status = models.ItemStatusFor(item.DonatedAmountMinor, item.TargetAmountMinor)
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *memItemStore) ApplyDonation(_ context.Context, id primitive.ObjectID, amountMinor, quantity int64) (*models.FundraisingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	item.DonatedAmountMinor += amountMinor
	item.DonatedQuantity += quantity
	item.Status = models.ItemStatusFor(item.DonatedAmountMinor, item.TargetAmountMinor)
	cp := *item
	return &cp, nil
}

func (s *memItemStore) SetProgress(_ context.Context, id primitive.ObjectID, amountMinor, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return services.ErrNotFound
	}
	item.DonatedAmountMinor = amountMinor
	item.DonatedQuantity = quantity
	item.Status = models.ItemStatusFor(amountMinor, item.TargetAmountMinor)
	return nil
}

type memExpenseStore struct {
	mu       sync.Mutex
	expenses map[primitive.ObjectID]*models.Expense
}

func newMemExpenseStore() *memExpenseStore {
	return &memExpenseStore{expenses: make(map[primitive.ObjectID]*models.Expense)}
}

func (s *memExpenseStore) Insert(_ context.Context, e *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = primitive.NewObjectID()
	cp := *e
	s.expenses[e.ID] = &cp
	return nil
}

func (s *memExpenseStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memExpenseStore) SetStatus(_ context.Context, id primitive.ObjectID, status models.ExpenseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return services.ErrNotFound
	}
	e.Status = status
	return nil
}

func (s *memExpenseStore) SumApprovedMinor(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.expenses {
		if e.Status == models.ExpenseApproved && !e.SoftDeleted {
			sum += e.AmountMinor
		}
	}
	return sum, nil
}

type memAuditStore struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (s *memAuditStore) Record(_ context.Context, ev models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memAuditStore) byAction(action models.AuditAction) []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditEvent
	for _, ev := range s.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

type memQueue struct {
	mu    sync.Mutex
	items []models.ReconItem
}

func (s *memQueue) Enqueue(_ context.Context, item models.ReconItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.GatewayPaymentID == item.GatewayPaymentID && !existing.Resolved {
			return nil
		}
	}
	item.ID = primitive.NewObjectID()
	s.items = append(s.items, item)
	return nil
}

func (s *memQueue) List(_ context.Context, includeResolved bool) ([]models.ReconItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReconItem
	for _, item := range s.items {
		if !includeResolved && item.Resolved {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

type directRunner struct{}

func (directRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
