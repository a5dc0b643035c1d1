package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"agrimart-orders/internal/models"
	"agrimart-orders/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory OrderStore. Transactions are serialized and work
// on a copy of the data that is written back only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	accounts map[string]models.Account
	orders   map[string]models.Order
	payments map[string]models.Payment
	ledger   []models.LedgerEntry
	clock    time.Time

	failOn string
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]models.Product{},
		accounts: map[string]models.Account{},
		orders:   map[string]models.Order{},
		payments: map[string]models.Payment{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		products: make(map[string]models.Product, len(m.products)),
		accounts: make(map[string]models.Account, len(m.accounts)),
		orders:   make(map[string]models.Order, len(m.orders)),
		payments: make(map[string]models.Payment, len(m.payments)),
		ledger:   append([]models.LedgerEntry(nil), m.ledger...),
		clock:    m.clock,
		failOn:   m.failOn,
	}
	for k, v := range m.products {
		tx.products[k] = v
	}
	for k, v := range m.accounts {
		tx.accounts[k] = v
	}
	for k, v := range m.orders {
		tx.orders[k] = v
	}
	for k, v := range m.payments {
		tx.payments[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.products = tx.products
	m.accounts = tx.accounts
	m.orders = tx.orders
	m.payments = tx.payments
	m.ledger = tx.ledger
	m.clock = tx.clock
	return nil
}

func (m *memStore) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.OrderListing, error) {
	return m.list(
		func(o models.Order) bool { return o.IsBuyer(buyerID) },
		func(o models.Order) string { return o.SellerID },
	), nil
}

func (m *memStore) ListOrdersBySeller(ctx context.Context, sellerID string) ([]models.OrderListing, error) {
	return m.list(
		func(o models.Order) bool { return o.SellerID == sellerID },
		func(o models.Order) string { return o.Buyer() },
	), nil
}

func (m *memStore) list(match func(models.Order) bool, counterparty func(models.Order) string) []models.OrderListing {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.OrderListing
	for _, o := range m.orders {
		if !match(o) {
			continue
		}
		p := m.products[o.ProductID]
		a := m.accounts[counterparty(o)]
		out = append(out, models.OrderListing{
			Order:              o,
			ProductTitle:       p.Title,
			ProductPrice:       p.Price,
			CounterpartyName:   a.Name,
			CounterpartyMobile: a.Mobile,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) product(id string) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

func (m *memStore) account(id string) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func (m *memStore) order(id string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) ledgerFor(orderID string) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range m.ledger {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

var errInjected = errors.New("injected failure")

type memTx struct {
	products map[string]models.Product
	accounts map[string]models.Account
	orders   map[string]models.Order
	payments map[string]models.Payment
	ledger   []models.LedgerEntry
	clock    time.Time
	failOn   string
}

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *memTx) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *memTx) UpdateProductStock(ctx context.Context, id string, stock int) error {
	p, ok := t.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock = stock
	t.products[id] = p
	return nil
}

func (t *memTx) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	a, ok := t.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *memTx) UpdateAccountBalances(ctx context.Context, a *models.Account) error {
	if err := t.fail("UpdateAccountBalances"); err != nil {
		return err
	}
	if _, ok := t.accounts[a.ID]; !ok {
		return store.ErrNotFound
	}
	t.accounts[a.ID] = *a
	return nil
}

func (t *memTx) HasActiveOrder(ctx context.Context, buyerID, productID string) (bool, error) {
	for _, o := range t.orders {
		if o.IsBuyer(buyerID) && o.ProductID == productID && o.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *models.Order) error {
	active, _ := t.HasActiveOrder(ctx, o.Buyer(), o.ProductID)
	if active {
		return store.ErrActiveOrderExists
	}
	t.clock = t.clock.Add(time.Second)
	o.CreatedAt = t.clock
	o.UpdatedAt = t.clock
	t.orders[o.ID] = *o
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o *models.Order) error {
	if _, ok := t.orders[o.ID]; !ok {
		return store.ErrNotFound
	}
	t.clock = t.clock.Add(time.Second)
	o.UpdatedAt = t.clock
	t.orders[o.ID] = *o
	return nil
}

func (t *memTx) CreatePayment(ctx context.Context, p *models.Payment) error {
	if _, ok := t.payments[p.OrderID]; ok {
		return errors.New("duplicate payment for order")
	}
	t.payments[p.OrderID] = *p
	return nil
}

func (t *memTx) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	if err := t.fail("CreateLedgerEntry"); err != nil {
		return err
	}
	t.ledger = append(t.ledger, *e)
	return nil
}

type fakeCooldown struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (f *fakeCooldown) TryCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeCooldown) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = nil
}

type sentMessage struct {
	phone string
	text  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Send(ctx context.Context, phone, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{phone: phone, text: text})
}

func (f *fakeNotifier) to(phone string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.phone == phone {
			out = append(out, m.text)
		}
	}
	return out
}

type fakeEvents struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (f *fakeEvents) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, eventType)
	return f.err
}

func (f *fakeEvents) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.types...)
}

type fixedOTP string

func (f fixedOTP) Generate() (string, error) {
	return string(f), nil
}

const (
	testOTP     = "123456"
	platformID  = "admin-1"
	sellerID    = "seller-1"
	buyerID     = "buyer-1"
	otherBuyer  = "buyer-2"
	sellerPhone = "9000000001"
	buyerPhone  = "9000000002"
	tractorID   = "product-tractor"
	tillerID    = "product-tiller"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testEnv struct {
	svc      *OrderService
	store    *memStore
	cooldown *fakeCooldown
	notifier *fakeNotifier
	events   *fakeEvents
}

// newTestEnv seeds a seller, two buyers, the platform account, a purchasable
// product at 100 with 20% commission, and a rental at 50/day with a 100 deposit
// and 10% commission.
func newTestEnv() *testEnv {
	ms := newMemStore()
	ms.accounts[platformID] = models.Account{ID: platformID, Name: "Platform", Mobile: "9000000000", Role: "admin"}
	ms.accounts[sellerID] = models.Account{ID: sellerID, Name: "Seller", Mobile: sellerPhone, Role: "seller"}
	ms.accounts[buyerID] = models.Account{ID: buyerID, Name: "Buyer", Mobile: buyerPhone, Role: "buyer"}
	ms.accounts[otherBuyer] = models.Account{ID: otherBuyer, Name: "Other", Mobile: "9000000003", Role: "buyer"}

	ms.products[tractorID] = models.Product{
		ID:                     tractorID,
		SellerID:               sellerID,
		Title:                  "Tractor",
		Price:                  dec("100"),
		Stock:                  10,
		AdminCommissionPercent: decimal.NewNullDecimal(dec("20")),
	}
	ms.products[tillerID] = models.Product{
		ID:                     tillerID,
		SellerID:               sellerID,
		Title:                  "Tiller",
		Price:                  dec("5000"),
		Stock:                  1,
		RentalAvailable:        true,
		RentalPricePerDay:      dec("50"),
		RentalDeposit:          dec("100"),
		AdminCommissionPercent: decimal.NewNullDecimal(dec("10")),
	}

	env := &testEnv{
		store:    ms,
		cooldown: &fakeCooldown{},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
	}
	env.svc = NewOrderService(ms, env.cooldown, env.notifier, env.events, fixedOTP(testOTP), Options{
		PlatformAccountID:        platformID,
		DefaultCommissionPercent: dec("5"),
		OrderCooldown:            10 * time.Second,
		LowStockThreshold:        5,
	})
	env.svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return env
}
