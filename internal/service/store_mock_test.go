package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"toko-online/internal/domain"
	"toko-online/internal/repository"
	"toko-online/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for the database. Transactions are
// serialized and rolled back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users    map[string]*domain.User
	products map[uuid.UUID]domain.Product
	orders   map[uuid.UUID]domain.Order
	seq      []uuid.UUID

	failDecrement   error
	failCreateOrder error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*domain.User),
		products: make(map[uuid.UUID]domain.Product),
		orders:   make(map[uuid.UUID]domain.Order),
	}
}

type memSnapshot struct {
	products map[uuid.UUID]domain.Product
	orders   map[uuid.UUID]domain.Order
	seq      []uuid.UUID
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memSnapshot{
		products: make(map[uuid.UUID]domain.Product, len(s.products)),
		orders:   make(map[uuid.UUID]domain.Order, len(s.orders)),
		seq:      append([]uuid.UUID(nil), s.seq...),
	}
	for id, p := range s.products {
		snap.products[id] = p
	}
	for id, o := range s.orders {
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		snap.orders[id] = o
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.orders = snap.orders
	s.seq = snap.seq
}

func (s *memStore) addProduct(name string, price string, stock int) domain.Product {
	p := *newProduct(name, price, stock)
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return p
}

func (s *memStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type txKey struct{}

type memTxManager struct {
	store *memStore
}

func (m memTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type memUserRepository struct {
	store *memStore
}

func (r memUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	r.store.users[user.Email] = user
	return nil
}

func (r memUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, exists := r.store.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (r memUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type memProductRepository struct {
	store *memStore
}

func (r memProductRepository) Create(ctx context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.products[product.ID] = *product
	return nil
}

func (r memProductRepository) Update(ctx context.Context, product *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	r.store.products[product.ID] = *product
	return nil
}

func (r memProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for _, order := range r.store.orders {
		for _, item := range order.Items {
			if item.ProductID == id {
				return repository.ErrProductReferenced
			}
		}
	}
	delete(r.store.products, id)
	return nil
}

func (r memProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r memProductRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.FindByID(ctx, id)
}

func (r memProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	products := make([]*domain.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		p := p
		products = append(products, &p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r memProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failDecrement != nil {
		return r.store.failDecrement
	}
	p, ok := r.store.products[id]
	if !ok || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	r.store.products[id] = p
	return nil
}

func (r memProductRepository) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	r.store.products[id] = p
	return nil
}

type memOrderRepository struct {
	store *memStore
}

func (r memOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failCreateOrder != nil {
		return r.store.failCreateOrder
	}
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	r.store.orders[order.ID] = stored
	r.store.seq = append(r.store.seq, order.ID)
	return nil
}

func (r memOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var orders []*domain.Order
	for i := len(r.store.seq) - 1; i >= 0; i-- {
		o := r.store.orders[r.store.seq[i]]
		if o.UserID == userID {
			orders = append(orders, r.withProducts(o))
		}
	}
	return orders, nil
}

func (r memOrderRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok || o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return r.withProducts(o), nil
}

func (r memOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	r.store.orders[id] = o
	return nil
}

func (r memOrderRepository) withProducts(o domain.Order) *domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		if p, ok := r.store.products[item.ProductID]; ok {
			item.Product = &domain.ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price, PhotoURL: p.PhotoURL}
		}
		items[i] = item
	}
	o.Items = items
	return &o
}

func newProduct(name string, price string, stock int) *domain.Product {
	now := time.Now().UTC()
	return &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newServices(store *memStore) (CatalogService, CheckoutService) {
	products := memProductRepository{store: store}
	tx := memTxManager{store: store}
	logger := zap.NewNop()

	catalog := NewCatalogService(products, tx, storage.NewImageStore(afero.NewMemMapFs(), "/uploads", 0), logger)
	checkout := NewCheckoutService(products, memOrderRepository{store: store}, tx, logger)
	return catalog, checkout
}
