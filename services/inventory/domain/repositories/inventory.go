package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// QueryOpts contains pagination parameters for list queries.
type QueryOpts struct {
	Limit  int // Maximum number of records to return
	Offset int // Number of records to skip
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Active     *bool
	Search     string // substring of name or barcode
	QueryOpts
}

// MovementFilter narrows ledger listings. Zero values match everything.
type MovementFilter struct {
	ProductID *uuid.UUID
	Kind      models.MovementKind
	Since     *time.Time
	Until     *time.Time
	QueryOpts
}

// SaleFilter narrows sale listings.
type SaleFilter struct {
	Status   models.SaleStatus
	MemberID *uuid.UUID
	Since    *time.Time
	Until    *time.Time
	QueryOpts
}

// MemberFilter narrows member listings.
type MemberFilter struct {
	Search string // matches name, phone or member code
	Active *bool
	QueryOpts
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *models.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
}

// ProductRepository persists the catalogue. Create and Update return
// domain.ErrAlreadyExists when the barcode is taken.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*models.Product, error)

	// List returns a page and the total count ignoring pagination.
	List(ctx context.Context, f ProductFilter) ([]*models.Product, int, error)

	// ListActive returns every active product, optionally restricted to a
	// category, ordered by ID.
	ListActive(ctx context.Context, categoryID *uuid.UUID) ([]*models.Product, error)
}

// StockRepository persists one stock row per product.
type StockRepository interface {
	// Get returns domain.ErrNotFound when the product has no stock row.
	Get(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error)

	// GetForUpdate creates the row with quantity 0 when absent and locks it
	// for the rest of the transaction.
	GetForUpdate(ctx context.Context, productID uuid.UUID, defaultWarningLevel int) (*models.StockLevel, error)

	Save(ctx context.Context, s *models.StockLevel) error

	// ListLow returns active products with quantity <= warning level.
	ListLow(ctx context.Context) ([]*models.StockView, error)

	// ListAll returns every stock row joined with its product.
	ListAll(ctx context.Context) ([]*models.StockView, error)
}

// MovementRepository is the append-only stock ledger.
type MovementRepository interface {
	Create(ctx context.Context, m *models.StockMovement) error
	List(ctx context.Context, f MovementFilter) ([]*models.StockMovement, int, error)

	// ListForProduct returns every movement of a product in ledger order.
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]*models.StockMovement, error)
}

// CheckRepository persists inventory checks and their items.
type CheckRepository interface {
	Create(ctx context.Context, c *models.InventoryCheck) error
	CreateItems(ctx context.Context, items []*models.InventoryCheckItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryCheck, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryCheck, error)
	Update(ctx context.Context, c *models.InventoryCheck) error
	List(ctx context.Context, status models.CheckStatus, opts QueryOpts) ([]*models.InventoryCheck, int, error)

	// Items returns the lines of a check ordered by product ID.
	Items(ctx context.Context, checkID uuid.UUID) ([]*models.InventoryCheckItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryCheckItem, error)
	UpdateItem(ctx context.Context, item *models.InventoryCheckItem) error
	CountUnchecked(ctx context.Context, checkID uuid.UUID) (int, error)
}

// SaleRepository persists sales. GetByID and GetForUpdate load items.
type SaleRepository interface {
	Create(ctx context.Context, s *models.Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	Update(ctx context.Context, s *models.Sale) error
	AddItem(ctx context.Context, item *models.SaleItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	List(ctx context.Context, f SaleFilter) ([]*models.Sale, int, error)
}

// MemberRepository persists members, levels and their audit trails.
// Create returns domain.ErrAlreadyExists when the phone or code is taken.
type MemberRepository interface {
	CreateLevel(ctx context.Context, l *models.MemberLevel) error
	GetLevel(ctx context.Context, id uuid.UUID) (*models.MemberLevel, error)
	ListLevels(ctx context.Context, activeOnly bool) ([]*models.MemberLevel, error)
	ClearDefaultLevel(ctx context.Context) error

	Create(ctx context.Context, m *models.Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error)
	Update(ctx context.Context, m *models.Member) error
	List(ctx context.Context, f MemberFilter) ([]*models.Member, int, error)

	AddRecharge(ctx context.Context, r *models.RechargeRecord) error
	AddTransaction(ctx context.Context, t *models.MemberTransaction) error
	ListTransactions(ctx context.Context, memberID uuid.UUID, opts QueryOpts) ([]*models.MemberTransaction, int, error)
}

// OperatorRepository persists staff accounts.
type OperatorRepository interface {
	Create(ctx context.Context, o *models.Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
}

// OperationLogFilter narrows operation log listings. Zero values match
// everything; Search matches details or the operator's username.
type OperationLogFilter struct {
	OperatorID *uuid.UUID
	Type       models.OperationType
	RelatedID  *uuid.UUID
	Since      *time.Time
	Until      *time.Time
	Search     string
	QueryOpts
}

// OperationLogRepository is the append-only who-did-what trail. List
// returns newest first.
type OperationLogRepository interface {
	Record(ctx context.Context, l *models.OperationLog) error
	List(ctx context.Context, f OperationLogFilter) ([]*models.OperationLog, int, error)
}

// Outbox records integration events inside the current transaction; they
// are delivered only if the transaction commits.
type Outbox interface {
	Record(ctx context.Context, topic string, event any) error
}

// Repositories groups every repository of the bounded context.
type Repositories interface {
	Categories() CategoryRepository
	Products() ProductRepository
	Stock() StockRepository
	Movements() MovementRepository
	Checks() CheckRepository
	Sales() SaleRepository
	Members() MemberRepository
	Operators() OperatorRepository
	OperationLogs() OperationLogRepository
}

// Tx is the unit of work handed to Store.WithTx.
type Tx interface {
	Repositories
	Outbox() Outbox
}

// Store gives non-transactional reads through Repositories and atomic
// multi-aggregate writes through WithTx. fn's error rolls back every
// write and outbox record made through tx. fn may be retried and must not
// have side effects outside tx.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
