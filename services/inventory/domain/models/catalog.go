package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain"
)

const (
	maxBarcodeLength      = 64
	maxProductNameLength  = 255
	maxCategoryNameLength = 100
)

// Category groups products; an inventory check may be scoped to one.
type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// NewCategory constructs a Category with a trimmed, non-empty name.
func NewCategory(name, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxCategoryNameLength {
		return nil, domain.Invalid("category name must be 1-%d characters", maxCategoryNameLength)
	}
	return &Category{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// ProductAttributes are the mutable descriptive fields of a product.
type ProductAttributes struct {
	Name          string
	CategoryID    *uuid.UUID
	Price         decimal.Decimal
	Cost          decimal.Decimal
	Specification string
	Manufacturer  string
	Description   string
}

// Validate enforces name length and non-negative money amounts.
func (a ProductAttributes) Validate() error {
	if n := utf8.RuneCountInString(strings.TrimSpace(a.Name)); n == 0 || n > maxProductNameLength {
		return domain.Invalid("product name must be 1-%d characters", maxProductNameLength)
	}
	if a.Price.IsNegative() {
		return domain.Invalid("price must not be negative")
	}
	if a.Cost.IsNegative() {
		return domain.Invalid("cost must not be negative")
	}
	return nil
}

// Product is a catalogue entry identified by a unique barcode. Products are
// deactivated rather than deleted so movement history keeps its reference.
type Product struct {
	ID      uuid.UUID
	Barcode string
	ProductAttributes
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct constructs an active product.
func NewProduct(barcode string, attrs ProductAttributes) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" || len(barcode) > maxBarcodeLength {
		return nil, domain.Invalid("barcode must be 1-%d characters", maxBarcodeLength)
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}
	attrs.Name = strings.TrimSpace(attrs.Name)
	now := time.Now().UTC()
	return &Product{
		ID:                uuid.New(),
		Barcode:           barcode,
		ProductAttributes: attrs,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Update replaces the descriptive attributes. The barcode is immutable.
func (p *Product) Update(attrs ProductAttributes) error {
	if err := attrs.Validate(); err != nil {
		return err
	}
	attrs.Name = strings.TrimSpace(attrs.Name)
	p.ProductAttributes = attrs
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetActive toggles whether the product can be sold or counted.
func (p *Product) SetActive(active bool) {
	p.IsActive = active
	p.UpdatedAt = time.Now().UTC()
}
