// Package memory is an in-process implementation of repositories.Store.
// WithTx runs against a private copy of the state and swaps it in on
// success, so a failing transaction leaves no trace. Transactions are
// serialized by a single mutex. It backs unit tests and local development
// without PostgreSQL.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// Event is an outbox record delivered by a committed transaction.
type Event struct {
	Topic   string
	Payload any
}

type state struct {
	operators  map[uuid.UUID]models.Operator
	categories map[uuid.UUID]models.Category
	products   map[uuid.UUID]models.Product
	barcodes   map[string]uuid.UUID
	stock      map[uuid.UUID]models.StockLevel
	movements  []models.StockMovement
	seq        int64

	checks     map[uuid.UUID]models.InventoryCheck
	checkItems map[uuid.UUID][]models.InventoryCheckItem // by check ID, ordered by product ID
	itemCheck  map[uuid.UUID]uuid.UUID                   // item ID -> check ID

	sales     map[uuid.UUID]models.Sale
	saleItems map[uuid.UUID][]models.SaleItem // by sale ID, insertion order

	levels    map[uuid.UUID]models.MemberLevel
	members   map[uuid.UUID]models.Member
	recharges []models.RechargeRecord
	memberTxs []models.MemberTransaction

	opLogs []models.OperationLog
}

func newState() *state {
	return &state{
		operators:  map[uuid.UUID]models.Operator{},
		categories: map[uuid.UUID]models.Category{},
		products:   map[uuid.UUID]models.Product{},
		barcodes:   map[string]uuid.UUID{},
		stock:      map[uuid.UUID]models.StockLevel{},
		checks:     map[uuid.UUID]models.InventoryCheck{},
		checkItems: map[uuid.UUID][]models.InventoryCheckItem{},
		itemCheck:  map[uuid.UUID]uuid.UUID{},
		sales:      map[uuid.UUID]models.Sale{},
		saleItems:  map[uuid.UUID][]models.SaleItem{},
		levels:     map[uuid.UUID]models.MemberLevel{},
		members:    map[uuid.UUID]models.Member{},
	}
}

// clone copies every map and slice. Stored values are structs whose
// pointer fields are replaced, never written through, so a shallow copy
// of each value is enough.
func (s *state) clone() *state {
	c := &state{
		operators:  maps.Clone(s.operators),
		categories: maps.Clone(s.categories),
		products:   maps.Clone(s.products),
		barcodes:   maps.Clone(s.barcodes),
		stock:      maps.Clone(s.stock),
		movements:  slices.Clone(s.movements),
		seq:        s.seq,
		checks:     maps.Clone(s.checks),
		checkItems: make(map[uuid.UUID][]models.InventoryCheckItem, len(s.checkItems)),
		itemCheck:  maps.Clone(s.itemCheck),
		sales:      maps.Clone(s.sales),
		saleItems:  make(map[uuid.UUID][]models.SaleItem, len(s.saleItems)),
		levels:     maps.Clone(s.levels),
		members:    maps.Clone(s.members),
		recharges:  slices.Clone(s.recharges),
		memberTxs:  slices.Clone(s.memberTxs),
		opLogs:     slices.Clone(s.opLogs),
	}
	for k, v := range s.checkItems {
		c.checkItems[k] = slices.Clone(v)
	}
	for k, v := range s.saleItems {
		c.saleItems[k] = slices.Clone(v)
	}
	return c
}

// Store is a concurrency-safe in-memory repositories.Store.
type Store struct {
	mu        sync.Mutex
	st        *state
	published []Event
	root      *view
}

var _ repositories.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{st: newState()}
	s.root = &view{store: s}
	return s
}

// WithTx runs fn against a copy of the state and commits it when fn
// returns nil. fn must not call back into the non-transactional
// repositories of the same Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &view{tx: s.st.clone(), outbox: &outbox{}}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.tx
	s.published = append(s.published, tx.outbox.events...)
	return nil
}

// Published returns the outbox records of every committed transaction.
func (s *Store) Published() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.published)
}

func (s *Store) Categories() repositories.CategoryRepository        { return s.root.Categories() }
func (s *Store) Products() repositories.ProductRepository           { return s.root.Products() }
func (s *Store) Stock() repositories.StockRepository                { return s.root.Stock() }
func (s *Store) Movements() repositories.MovementRepository         { return s.root.Movements() }
func (s *Store) Checks() repositories.CheckRepository               { return s.root.Checks() }
func (s *Store) Sales() repositories.SaleRepository                 { return s.root.Sales() }
func (s *Store) Members() repositories.MemberRepository             { return s.root.Members() }
func (s *Store) Operators() repositories.OperatorRepository         { return s.root.Operators() }
func (s *Store) OperationLogs() repositories.OperationLogRepository { return s.root.OperationLogs() }

// view is either the committed state behind the store mutex or the
// private state of one transaction.
type view struct {
	store  *Store
	tx     *state
	outbox *outbox
}

func (v *view) acquire() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.mu.Unlock
}

func (v *view) Categories() repositories.CategoryRepository        { return categoryRepo{v} }
func (v *view) Products() repositories.ProductRepository           { return productRepo{v} }
func (v *view) Stock() repositories.StockRepository                { return stockRepo{v} }
func (v *view) Movements() repositories.MovementRepository         { return movementRepo{v} }
func (v *view) Checks() repositories.CheckRepository               { return checkRepo{v} }
func (v *view) Sales() repositories.SaleRepository                 { return saleRepo{v} }
func (v *view) Members() repositories.MemberRepository             { return memberRepo{v} }
func (v *view) Operators() repositories.OperatorRepository         { return operatorRepo{v} }
func (v *view) OperationLogs() repositories.OperationLogRepository { return opLogRepo{v} }
func (v *view) Outbox() repositories.Outbox                        { return v.outbox }

type outbox struct {
	events []Event
}

func (o *outbox) Record(_ context.Context, topic string, event any) error {
	o.events = append(o.events, Event{Topic: topic, Payload: event})
	return nil
}

// page applies limit and offset; a zero limit returns everything after offset.
func page[T any](items []T, opts repositories.QueryOpts) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[max(opts.Offset, 0):]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
