package service

import (
	"context"
	"errors"
	"sync"

	"flash-sale/internal/domain"
	"flash-sale/internal/events"
	"flash-sale/internal/repository"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory record store. Each product has its own mutex that
// a transaction holds from GetProductForUpdate until Commit or Rollback, which
// mirrors a row-level FOR UPDATE lock.
type memStore struct {
	mu             sync.Mutex
	products       map[int64]*domain.Product
	locks          map[int64]*sync.Mutex
	orders         []*domain.Order
	beginErr       error
	createOrderErr error
	commitErr      error
	stockReads     int
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]*domain.Product),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (m *memStore) addProduct(id int64, name string, stock int, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &domain.Product{
		ID:    id,
		Name:  name,
		Stock: stock,
		Price: decimal.RequireFromString(price),
	}
	m.locks[id] = &sync.Mutex{}
}

func (m *memStore) stockOf(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) ordersFor(id int64) []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.ProductID == id {
			out = append(out, o)
		}
	}
	return out
}

type memTx struct {
	store  *memStore
	held   []*sync.Mutex
	stock  map[int64]int
	orders []*domain.Order
	done   bool
}

func (t *memTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
	t.done = true
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	if t.store.commitErr != nil {
		t.release()
		return t.store.commitErr
	}
	t.store.mu.Lock()
	for id, s := range t.stock {
		t.store.products[id].Stock = s
	}
	t.store.orders = append(t.store.orders, t.orders...)
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (m *memStore) BeginTx(ctx context.Context) (repository.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &memTx{store: m, stock: make(map[int64]int)}, nil
}

func (m *memStore) GetProductForUpdate(ctx context.Context, tx repository.Tx, id int64) (*domain.Product, error) {
	t := tx.(*memTx)

	m.mu.Lock()
	lock, ok := m.locks[id]
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	lock.Lock()
	t.held = append(t.held, lock)

	m.mu.Lock()
	defer m.mu.Unlock()
	p := *m.products[id]
	return &p, nil
}

func (m *memStore) DecrementStock(ctx context.Context, tx repository.Tx, id int64, quantity int) (int, error) {
	t := tx.(*memTx)

	m.mu.Lock()
	current := m.products[id].Stock
	m.mu.Unlock()
	if s, ok := t.stock[id]; ok {
		current = s
	}

	if current-quantity < 0 {
		return 0, repository.ErrStockConstraint
	}
	t.stock[id] = current - quantity
	return t.stock[id], nil
}

func (m *memStore) CreateOrder(ctx context.Context, tx repository.Tx, order *domain.Order) error {
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	t := tx.(*memTx)
	t.orders = append(t.orders, order)
	return nil
}

// memProducts is the lock-free read side of memStore
type memProducts struct {
	store *memStore
}

func (p memProducts) Create(ctx context.Context, product *domain.Product) error {
	if product.Stock < 0 {
		return repository.ErrInvalidProduct
	}
	p.store.mu.Lock()
	product.ID = int64(len(p.store.products) + 1)
	p.store.mu.Unlock()
	p.store.addProduct(product.ID, product.Name, product.Stock, product.Price.String())
	return nil
}

func (p memProducts) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	product, ok := p.store.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *product
	return &cp, nil
}

func (p memProducts) GetStock(ctx context.Context, id int64) (int, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	p.store.stockReads++
	product, ok := p.store.products[id]
	if !ok {
		return 0, repository.ErrProductNotFound
	}
	return product.Stock, nil
}

// memOrders aggregates memStore orders
type memOrders struct {
	store *memStore
}

func (o memOrders) ListByProduct(ctx context.Context, productID int64) ([]*domain.Order, error) {
	return o.store.ordersFor(productID), nil
}

func (o memOrders) SalesSummary(ctx context.Context, productID int64) (*domain.SalesSummary, error) {
	o.store.mu.Lock()
	product, ok := o.store.products[productID]
	o.store.mu.Unlock()
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	summary := &domain.SalesSummary{ProductID: productID, Stock: product.Stock, Revenue: decimal.Zero}
	for _, order := range o.store.ordersFor(productID) {
		summary.OrderCount++
		summary.UnitsSold += order.Quantity
		summary.Revenue = summary.Revenue.Add(order.TotalPrice)
	}
	return summary, nil
}

// recordingPublisher captures published purchase events
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PurchaseEvent
	err    error
}

func (p *recordingPublisher) PublishPurchase(ctx context.Context, event events.PurchaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
