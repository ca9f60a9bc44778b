package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/app"
	"github.com/ghuser/retailstock/pkg/barcode"
	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/config"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/retailstock/services/inventory/domain/services"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/persistence/postgres"
)

// Settings are the business rules the inventory services run with.
type Settings struct {
	// DefaultWarningLevel is given to stock rows created lazily.
	DefaultWarningLevel int
	Prices              domainsvcs.PricePolicy
}

// DefaultSettings matches the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultWarningLevel: models.DefaultWarningLevel,
		Prices:              domainsvcs.DefaultPricePolicy(),
	}
}

// SettingsFromConfig parses the stock and pricing rules from cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	floor, err := decimal.NewFromString(cfg.PriceFloorRatio)
	if err != nil {
		return Settings{}, fmt.Errorf("SALE_PRICE_FLOOR_RATIO: %w", err)
	}
	ceiling, err := decimal.NewFromString(cfg.PriceCeilingRatio)
	if err != nil {
		return Settings{}, fmt.Errorf("SALE_PRICE_CEILING_RATIO: %w", err)
	}
	if floor.IsNegative() || ceiling.LessThan(floor) {
		return Settings{}, fmt.Errorf("price ratios must satisfy 0 <= floor (%s) <= ceiling (%s)", floor, ceiling)
	}
	if cfg.DefaultWarningLevel < 0 {
		return Settings{}, fmt.Errorf("STOCK_DEFAULT_WARNING_LEVEL must not be negative")
	}
	return Settings{
		DefaultWarningLevel: cfg.DefaultWarningLevel,
		Prices:              domainsvcs.PricePolicy{FloorRatio: floor, CeilingRatio: ceiling},
	}, nil
}

// Notifier publishes best-effort events after a transaction commits.
// *events.EventBus satisfies it.
type Notifier interface {
	PublishJSON(ctx context.Context, topic string, payload any) error
}

// ProductCache is the barcode read-through cache. *cache.ProductCache
// satisfies it.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*cache.CachedProduct, error)
	Set(ctx context.Context, p *cache.CachedProduct) error
	Delete(ctx context.Context, barcode string) error
}

// BarcodeLookup queries the external barcode catalogue.
type BarcodeLookup interface {
	Lookup(ctx context.Context, code string) (*barcode.Suggestion, error)
}

// Deps are the collaborators of the inventory services. Only Store and
// Logger are required.
type Deps struct {
	Store    repositories.Store
	Settings Settings
	Logger   logger.Logger
	Metrics  *telemetry.InventoryMetrics
	Notifier Notifier
	Cache    ProductCache
	Barcode  BarcodeLookup
}

// Services is the application-layer service container for this bounded context.
type Services struct {
	Auth    *AuthService
	Catalog *CatalogService
	Stock   *StockService
	Checks  *CheckService
	Sales   *SaleService
	Members *MemberService
	OpLogs  *OperationLogService
}

// NewServices wires every service over the same store.
func NewServices(d Deps) *Services {
	stock := NewStockService(d)
	return &Services{
		Auth:    NewAuthService(d.Store, d.Logger),
		Catalog: NewCatalogService(d, stock),
		Stock:   stock,
		Checks:  NewCheckService(d, stock),
		Sales:   NewSaleService(d, stock),
		Members: NewMemberService(d.Store, d.Logger),
		OpLogs:  NewOperationLogService(d.Store),
	}
}

// New wires all inventory application services with infrastructure from the Application container.
func New(a *app.Application) (*Services, error) {
	settings, err := SettingsFromConfig(a.Config)
	if err != nil {
		return nil, err
	}
	d := Deps{
		Store:    postgres.NewStore(a.Db, a.EventBus),
		Settings: settings,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
	}
	if a.EventBus != nil {
		d.Notifier = a.EventBus
	}
	if a.Redis != nil {
		d.Cache = cache.NewProductCache(a.Redis)
	}
	if a.Barcode != nil {
		d.Barcode = a.Barcode
	}
	return NewServices(d), nil
}
