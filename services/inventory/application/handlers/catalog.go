package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/barcode"
	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// CreateCategoryRequest is the request body for POST /categories.
type CreateCategoryRequest struct {
	Name        string `json:"name"        validate:"required,max=100" example:"Beverages"`
	Description string `json:"description" validate:"max=500"`
} // @name CreateCategoryRequest

// CreateProductRequest is the request body for POST /products.
type CreateProductRequest struct {
	Barcode       string           `json:"barcode"        validate:"required,max=64"          example:"6901234567892"`
	Name          string           `json:"name"           validate:"required,max=200"         example:"Cola 330ml"`
	CategoryID    *uuid.UUID       `json:"category_id"`
	Price         decimal.Decimal  `json:"price"          validate:"dec_gte0"                 swaggertype:"string" example:"3.50"`
	Cost          *decimal.Decimal `json:"cost"           validate:"omitempty,dec_gte0"       swaggertype:"string" example:"2.10"`
	Specification string           `json:"specification"  validate:"max=200"`
	Manufacturer  string           `json:"manufacturer"   validate:"max=200"`
	Description   string           `json:"description"    validate:"max=2000"`
	InitialStock  int              `json:"initial_stock"  validate:"gte=0,lte=2147483647"     example:"24"`
	WarningLevel  *int             `json:"warning_level"  validate:"omitempty,gte=0,lte=2147483647" example:"10"`
} // @name CreateProductRequest

// UpdateProductRequest is the request body for PATCH /products/{id}.
// Omitted fields keep their current value.
type UpdateProductRequest struct {
	Name          *string          `json:"name"          validate:"omitempty,min=1,max=200"`
	CategoryID    *uuid.UUID       `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
	Price         *decimal.Decimal `json:"price"         validate:"omitempty,dec_gte0" swaggertype:"string"`
	Cost          *decimal.Decimal `json:"cost"          validate:"omitempty,dec_gte0" swaggertype:"string"`
	Specification *string          `json:"specification" validate:"omitempty,max=200"`
	Manufacturer  *string          `json:"manufacturer"  validate:"omitempty,max=200"`
	Description   *string          `json:"description"   validate:"omitempty,max=2000"`
} // @name UpdateProductRequest

// BarcodeLookupResponse is an existing product or an external suggestion.
type BarcodeLookupResponse struct {
	Product    *ProductResponse    `json:"product,omitempty"`
	Suggestion *barcode.Suggestion `json:"suggestion,omitempty"`
} // @name BarcodeLookupResponse

// CatalogHandler serves categories and products.
type CatalogHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

func NewCatalogHandler(svc *appsvcs.Services, log logger.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, log: log}
}

// ListCategories returns every category.
//
//	@Summary	List categories
//	@Tags		catalog
//	@Produce	json
//	@Success	200	{array}	CategoryResponse
//	@Router		/categories [get]
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := make([]CategoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategory(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// CreateCategory adds a category.
//
//	@Summary	Create category
//	@Tags		catalog
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateCategoryRequest	true	"Category"
//	@Success	201		{object}	CategoryResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Router		/categories [post]
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateCategoryRequest](w, r)
	if !ok {
		return
	}
	c, err := h.svc.Catalog.CreateCategory(r.Context(), actor, req.Name, req.Description)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCategory(c))
}

// ListProducts pages through the catalogue.
//
//	@Summary	List products
//	@Tags		catalog
//	@Produce	json
//	@Param		category_id	query		string	false	"Category filter"
//	@Param		active		query		bool	false	"Active filter"
//	@Param		q			query		string	false	"Name or barcode substring"
//	@Param		limit		query		int		false	"Page size (max 500)"
//	@Param		offset		query		int		false	"Offset"
//	@Success	200			{object}	ListResponse[ProductResponse]
//	@Failure	400			{object}	ErrorResponse
//	@Router		/products [get]
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := httpx.QueryUUID(r, "category_id")
	if err != nil {
		badRequest(w, err)
		return
	}
	active, err := httpx.QueryBool(r, "active")
	if err != nil {
		badRequest(w, err)
		return
	}
	page := httpx.PageFromRequest(r)
	products, total, err := h.svc.Catalog.ListProducts(r.Context(), repositories.ProductFilter{
		CategoryID: categoryID,
		Active:     active,
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		QueryOpts:  queryOpts(page),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(products, total, page, toProduct))
}

// CreateProduct adds a product with optional opening stock.
//
//	@Summary	Create product
//	@Tags		catalog
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateProductRequest	true	"Product"
//	@Success	201		{object}	ProductResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/products [post]
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateProductRequest](w, r)
	if !ok {
		return
	}
	cost := decimal.Zero
	if req.Cost != nil {
		cost = *req.Cost
	}
	p, err := h.svc.Catalog.CreateProduct(r.Context(), actor, appsvcs.CreateProductRequest{
		Barcode: req.Barcode,
		Attributes: models.ProductAttributes{
			Name:          req.Name,
			CategoryID:    req.CategoryID,
			Price:         req.Price,
			Cost:          cost,
			Specification: req.Specification,
			Manufacturer:  req.Manufacturer,
			Description:   req.Description,
		},
		InitialStock: req.InitialStock,
		WarningLevel: req.WarningLevel,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProduct(p))
}

// GetProduct returns one product.
//
//	@Summary	Get product
//	@Tags		catalog
//	@Produce	json
//	@Param		id	path		string	true	"Product ID"
//	@Success	200	{object}	ProductResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id} [get]
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProduct(p))
}

// UpdateProduct edits the descriptive fields of a product.
//
//	@Summary	Update product
//	@Tags		catalog
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Product ID"
//	@Param		request	body		UpdateProductRequest	true	"Changed fields"
//	@Success	200		{object}	ProductResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/products/{id} [patch]
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[UpdateProductRequest](w, r)
	if !ok {
		return
	}
	current, err := h.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	attrs := current.ProductAttributes
	if req.Name != nil {
		attrs.Name = *req.Name
	}
	switch {
	case req.ClearCategory:
		attrs.CategoryID = nil
	case req.CategoryID != nil:
		attrs.CategoryID = req.CategoryID
	}
	if req.Price != nil {
		attrs.Price = *req.Price
	}
	if req.Cost != nil {
		attrs.Cost = *req.Cost
	}
	if req.Specification != nil {
		attrs.Specification = *req.Specification
	}
	if req.Manufacturer != nil {
		attrs.Manufacturer = *req.Manufacturer
	}
	if req.Description != nil {
		attrs.Description = *req.Description
	}
	p, err := h.svc.Catalog.UpdateProduct(r.Context(), actor, id, attrs)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProduct(p))
}

// Deactivate hides a product from sale and counting.
//
//	@Summary	Deactivate product
//	@Tags		catalog
//	@Produce	json
//	@Param		id	path		string	true	"Product ID"
//	@Success	200	{object}	ProductResponse
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id}/deactivate [post]
func (h *CatalogHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Activate reverses Deactivate.
//
//	@Summary	Activate product
//	@Tags		catalog
//	@Produce	json
//	@Param		id	path		string	true	"Product ID"
//	@Success	200	{object}	ProductResponse
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id}/activate [post]
func (h *CatalogHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *CatalogHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.svc.Catalog.SetProductActive(r.Context(), actor, id, active)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProduct(p))
}

// GetByBarcode resolves a scanned barcode to a product.
//
//	@Summary	Get product by barcode
//	@Tags		catalog
//	@Produce	json
//	@Param		code	path		string	true	"Barcode"
//	@Success	200		{object}	ProductResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/products/barcode/{code} [get]
func (h *CatalogHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Catalog.GetProductByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProduct(p))
}

// LookupBarcode returns the existing product for a barcode, or a
// suggestion from the external catalogue when there is none.
//
//	@Summary	Look up barcode
//	@Tags		catalog
//	@Produce	json
//	@Param		code	path		string	true	"Barcode"
//	@Success	200		{object}	BarcodeLookupResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/barcode/{code}/lookup [get]
func (h *CatalogHandler) LookupBarcode(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Catalog.LookupBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := BarcodeLookupResponse{Suggestion: res.Suggestion}
	if res.Product != nil {
		p := toProduct(res.Product)
		out.Product = &p
	}
	httpx.JSON(w, http.StatusOK, out)
}
