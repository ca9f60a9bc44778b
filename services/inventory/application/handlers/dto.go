package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// OperatorResponse describes a login account.
type OperatorResponse struct {
	ID        uuid.UUID `json:"id"         example:"123e4567-e89b-12d3-a456-426614174000"`
	Username  string    `json:"username"   example:"till1"`
	Role      string    `json:"role"       example:"cashier"`
	IsActive  bool      `json:"is_active"  example:"true"`
	CreatedAt time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
} // @name OperatorResponse

func toOperator(o *models.Operator) OperatorResponse {
	return OperatorResponse{ID: o.ID, Username: o.Username, Role: string(o.Role), IsActive: o.IsActive, CreatedAt: o.CreatedAt}
}

// CategoryResponse is a product category.
type CategoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"        example:"Beverages"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
} // @name CategoryResponse

func toCategory(c *models.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
}

// ProductResponse is a catalogue entry.
type ProductResponse struct {
	ID            uuid.UUID       `json:"id"`
	Barcode       string          `json:"barcode"       example:"6901234567892"`
	Name          string          `json:"name"          example:"Cola 330ml"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	Price         decimal.Decimal `json:"price"         swaggertype:"string" example:"3.50"`
	Cost          decimal.Decimal `json:"cost"          swaggertype:"string" example:"2.10"`
	Specification string          `json:"specification,omitempty"`
	Manufacturer  string          `json:"manufacturer,omitempty"`
	Description   string          `json:"description,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
} // @name ProductResponse

func toProduct(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Barcode:       p.Barcode,
		Name:          p.Name,
		CategoryID:    p.CategoryID,
		Price:         p.Price,
		Cost:          p.Cost,
		Specification: p.Specification,
		Manufacturer:  p.Manufacturer,
		Description:   p.Description,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// StockLevelResponse is the on-hand quantity of one product.
type StockLevelResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int       `json:"quantity"      example:"24"`
	WarningLevel int       `json:"warning_level" example:"10"`
	LowStock     bool      `json:"low_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
} // @name StockLevelResponse

func toStockLevel(s *models.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ProductID:    s.ProductID,
		Quantity:     s.Quantity,
		WarningLevel: s.WarningLevel,
		LowStock:     s.IsLowStock(),
		UpdatedAt:    s.UpdatedAt,
	}
}

// StockViewResponse is a stock row joined with its product.
type StockViewResponse struct {
	StockLevelResponse
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name"`
	CategoryName string          `json:"category_name,omitempty"`
	Price        decimal.Decimal `json:"price" swaggertype:"string"`
	Cost         decimal.Decimal `json:"cost"  swaggertype:"string"`
} // @name StockViewResponse

func toStockView(v *models.StockView) StockViewResponse {
	return StockViewResponse{
		StockLevelResponse: toStockLevel(&v.StockLevel),
		Barcode:            v.Barcode,
		Name:               v.Name,
		CategoryName:       v.CategoryName,
		Price:              v.Price,
		Cost:               v.Cost,
	}
}

// MovementResponse is one ledger entry.
type MovementResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	Kind           string     `json:"kind"            example:"OUT"`
	Quantity       int        `json:"quantity"        example:"3"`
	QuantityBefore int        `json:"quantity_before" example:"24"`
	QuantityAfter  int        `json:"quantity_after"  example:"21"`
	OperatorID     uuid.UUID  `json:"operator_id"`
	Note           string     `json:"note,omitempty"`
	ReferenceType  string     `json:"reference_type"  example:"sale"`
	ReferenceID    *uuid.UUID `json:"reference_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
} // @name MovementResponse

func toMovement(m *models.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Kind:           string(m.Kind),
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		OperatorID:     m.OperatorID,
		Note:           m.Note,
		ReferenceType:  string(m.ReferenceType),
		ReferenceID:    m.ReferenceID,
		CreatedAt:      m.CreatedAt,
	}
}

// SaleItemResponse is one line of a sale.
type SaleItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Barcode     string          `json:"barcode,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"     example:"2"`
	Price       decimal.Decimal `json:"price"        swaggertype:"string" example:"3.50"`
	ActualPrice decimal.Decimal `json:"actual_price" swaggertype:"string" example:"3.00"`
	Subtotal    decimal.Decimal `json:"subtotal"     swaggertype:"string" example:"6.00"`
	CreatedAt   time.Time       `json:"created_at"`
} // @name SaleItemResponse

func toSaleItem(i *models.SaleItem) SaleItemResponse {
	return SaleItemResponse{
		ID:          i.ID,
		ProductID:   i.ProductID,
		Barcode:     i.Barcode,
		ProductName: i.ProductName,
		Quantity:    i.Quantity,
		Price:       i.Price,
		ActualPrice: i.ActualPrice,
		Subtotal:    i.Subtotal,
		CreatedAt:   i.CreatedAt,
	}
}

// SaleResponse is a sale with its lines.
type SaleResponse struct {
	ID             uuid.UUID          `json:"id"`
	MemberID       *uuid.UUID         `json:"member_id,omitempty"`
	Status         string             `json:"status"          example:"open"`
	TotalAmount    decimal.Decimal    `json:"total_amount"    swaggertype:"string"`
	DiscountAmount decimal.Decimal    `json:"discount_amount" swaggertype:"string"`
	FinalAmount    decimal.Decimal    `json:"final_amount"    swaggertype:"string"`
	PointsEarned   int                `json:"points_earned"`
	PaymentMethod  string             `json:"payment_method,omitempty" example:"cash"`
	BalancePaid    decimal.Decimal    `json:"balance_paid"    swaggertype:"string"`
	OperatorID     uuid.UUID          `json:"operator_id"`
	Remark         string             `json:"remark,omitempty"`
	Items          []SaleItemResponse `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
} // @name SaleResponse

func toSale(s *models.Sale) SaleResponse {
	items := make([]SaleItemResponse, 0, len(s.Items))
	for _, i := range s.Items {
		items = append(items, toSaleItem(i))
	}
	return SaleResponse{
		ID:             s.ID,
		MemberID:       s.MemberID,
		Status:         string(s.Status),
		TotalAmount:    s.TotalAmount,
		DiscountAmount: s.DiscountAmount,
		FinalAmount:    s.FinalAmount,
		PointsEarned:   s.PointsEarned,
		PaymentMethod:  string(s.PaymentMethod),
		BalancePaid:    s.BalancePaid,
		OperatorID:     s.OperatorID,
		Remark:         s.Remark,
		Items:          items,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		CompletedAt:    s.CompletedAt,
		CancelledAt:    s.CancelledAt,
	}
}

// MemberLevelResponse is a membership tier.
type MemberLevelResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"             example:"Gold"`
	DiscountRate    decimal.Decimal `json:"discount_rate"    swaggertype:"string" example:"0.90"`
	PointsThreshold int             `json:"points_threshold" example:"500"`
	Priority        int             `json:"priority"         example:"2"`
	IsDefault       bool            `json:"is_default"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
} // @name MemberLevelResponse

func toLevel(l *models.MemberLevel) MemberLevelResponse {
	return MemberLevelResponse{
		ID:              l.ID,
		Name:            l.Name,
		DiscountRate:    l.DiscountRate,
		PointsThreshold: l.PointsThreshold,
		Priority:        l.Priority,
		IsDefault:       l.IsDefault,
		IsActive:        l.IsActive,
		CreatedAt:       l.CreatedAt,
	}
}

// MemberResponse is a loyalty member.
type MemberResponse struct {
	ID            uuid.UUID       `json:"id"`
	LevelID       uuid.UUID       `json:"level_id"`
	Name          string          `json:"name"        example:"Li Wei"`
	Phone         string          `json:"phone"       example:"13800000031"`
	MemberCode    string          `json:"member_code" example:"M13800000031"`
	Email         string          `json:"email,omitempty"`
	Points        int             `json:"points"      example:"120"`
	Balance       decimal.Decimal `json:"balance"     swaggertype:"string" example:"50.00"`
	TotalSpend    decimal.Decimal `json:"total_spend" swaggertype:"string"`
	PurchaseCount int             `json:"purchase_count"`
	IsRecharged   bool            `json:"is_recharged"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
} // @name MemberResponse

func toMember(m *models.Member) MemberResponse {
	return MemberResponse{
		ID:            m.ID,
		LevelID:       m.LevelID,
		Name:          m.Name,
		Phone:         m.Phone,
		MemberCode:    m.MemberCode,
		Email:         m.Email,
		Points:        m.Points,
		Balance:       m.Balance,
		TotalSpend:    m.TotalSpend,
		PurchaseCount: m.PurchaseCount,
		IsRecharged:   m.IsRecharged,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// RechargeResponse is a member top-up and the resulting member state.
type RechargeResponse struct {
	ID            uuid.UUID       `json:"id"`
	Amount        decimal.Decimal `json:"amount"        swaggertype:"string" example:"100.00"`
	ActualAmount  decimal.Decimal `json:"actual_amount" swaggertype:"string" example:"90.00"`
	PaymentMethod string          `json:"payment_method" example:"wechat"`
	Remark        string          `json:"remark,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Member        MemberResponse  `json:"member"`
} // @name RechargeResponse

// MemberTransactionResponse is one entry of a member's history.
type MemberTransactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"           example:"POINTS_EARN"`
	PointsChange  int             `json:"points_change"  example:"18"`
	BalanceChange decimal.Decimal `json:"balance_change" swaggertype:"string" example:"-18.00"`
	Description   string          `json:"description,omitempty"`
	OperatorID    uuid.UUID       `json:"operator_id"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
} // @name MemberTransactionResponse

func toTransaction(t *models.MemberTransaction) MemberTransactionResponse {
	return MemberTransactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		PointsChange:  t.PointsChange,
		BalanceChange: t.BalanceChange,
		Description:   t.Description,
		OperatorID:    t.OperatorID,
		ReferenceType: string(t.ReferenceType),
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}

// CheckResponse is an inventory check header.
type CheckResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"   example:"Month-end count"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status" example:"in_progress"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	ApprovedBy  *uuid.UUID `json:"approved_by,omitempty"`
	Adjusted    bool       `json:"adjusted"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
} // @name CheckResponse

func toCheck(c *models.InventoryCheck) CheckResponse {
	return CheckResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Status:      string(c.Status),
		CategoryID:  c.CategoryID,
		CreatedBy:   c.CreatedBy,
		ApprovedBy:  c.ApprovedBy,
		Adjusted:    c.Adjusted,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
		ApprovedAt:  c.ApprovedAt,
		CancelledAt: c.CancelledAt,
	}
}

// CheckItemResponse is one counted line of a check.
type CheckItemResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	Barcode        string     `json:"barcode,omitempty"`
	ProductName    string     `json:"product_name,omitempty"`
	SystemQuantity int        `json:"system_quantity" example:"24"`
	ActualQuantity *int       `json:"actual_quantity,omitempty" example:"22"`
	Difference     *int       `json:"difference,omitempty"      example:"-2"`
	Notes          string     `json:"notes,omitempty"`
	CountedBy      *uuid.UUID `json:"counted_by,omitempty"`
	CountedAt      *time.Time `json:"counted_at,omitempty"`
} // @name CheckItemResponse

func toCheckItem(i *models.InventoryCheckItem) CheckItemResponse {
	return CheckItemResponse{
		ID:             i.ID,
		ProductID:      i.ProductID,
		Barcode:        i.Barcode,
		ProductName:    i.ProductName,
		SystemQuantity: i.SystemQuantity,
		ActualQuantity: i.ActualQuantity,
		Difference:     i.Difference,
		Notes:          i.Notes,
		CountedBy:      i.CountedBy,
		CountedAt:      i.CountedAt,
	}
}
