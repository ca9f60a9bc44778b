package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/persistence/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func actor(role models.Role) models.Actor {
	return models.Actor{ID: uuid.New(), Role: role}
}

type published struct {
	topic   string
	payload any
}

// recordingNotifier captures post-commit notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (n *recordingNotifier) PublishJSON(_ context.Context, topic string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, published{topic: topic, payload: payload})
	return n.err
}

func (n *recordingNotifier) topics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.topic
	}
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	mem      *memory.Store
	svc      *services.Services
	notifier *recordingNotifier
	admin    models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, func(*services.Deps) {})
}

// newFixtureWith builds services over the memory store, optionally wrapped.
func newFixtureWith(t *testing.T, wrap func(*memory.Store) repositories.Store, tweak func(*services.Deps)) *fixture {
	t.Helper()
	mem := memory.New()
	var store repositories.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	n := &recordingNotifier{}
	d := services.Deps{
		Store:    store,
		Settings: services.DefaultSettings(),
		Logger:   logger.Discard(),
		Notifier: n,
	}
	tweak(&d)
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		mem:      mem,
		svc:      services.NewServices(d),
		notifier: n,
		admin:    actor(models.RoleAdmin),
	}
}

// product creates an active product with the given initial stock.
func (f *fixture) product(barcode, price, cost string, stock int) *models.Product {
	f.t.Helper()
	p, err := f.svc.Catalog.CreateProduct(f.ctx, f.admin, services.CreateProductRequest{
		Barcode: barcode,
		Attributes: models.ProductAttributes{
			Name:  "Product " + barcode,
			Price: dec(price),
			Cost:  dec(cost),
		},
		InitialStock: stock,
	})
	if err != nil {
		f.t.Fatalf("CreateProduct(%s): %v", barcode, err)
	}
	return p
}

func (f *fixture) quantity(productID uuid.UUID) int {
	f.t.Helper()
	level, err := f.svc.Stock.GetStockLevel(f.ctx, productID)
	if err != nil {
		f.t.Fatalf("GetStockLevel: %v", err)
	}
	return level.Quantity
}

func (f *fixture) movements(productID uuid.UUID) []*models.StockMovement {
	f.t.Helper()
	out, err := f.mem.Movements().ListForProduct(f.ctx, productID)
	if err != nil {
		f.t.Fatalf("ListForProduct: %v", err)
	}
	return out
}

func (f *fixture) outboxTopics() []string {
	var out []string
	for _, e := range f.mem.Published() {
		out = append(out, e.Topic)
	}
	return out
}

func count(items []string, want string) int {
	n := 0
	for _, s := range items {
		if s == want {
			n++
		}
	}
	return n
}

var errInjected = errors.New("injected failure")

// faultyStore fails the n-th stock Save made through a transaction.
type faultyStore struct {
	*memory.Store
	mu     sync.Mutex
	saves  int
	failAt int
}

func (s *faultyStore) arm(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves, s.failAt = 0, n
}

func (s *faultyStore) WithTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx repositories.Tx) error {
		return fn(faultyTx{Tx: tx, s: s})
	})
}

type faultyTx struct {
	repositories.Tx
	s *faultyStore
}

func (t faultyTx) Stock() repositories.StockRepository {
	return faultyStock{StockRepository: t.Tx.Stock(), s: t.s}
}

type faultyStock struct {
	repositories.StockRepository
	s *faultyStore
}

func (f faultyStock) Save(ctx context.Context, level *models.StockLevel) error {
	f.s.mu.Lock()
	f.s.saves++
	fail := f.s.failAt > 0 && f.s.saves == f.s.failAt
	f.s.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.StockRepository.Save(ctx, level)
}
