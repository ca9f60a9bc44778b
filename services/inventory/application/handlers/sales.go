package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// CreateSaleRequest is the request body for POST /sales.
type CreateSaleRequest struct {
	MemberID *uuid.UUID `json:"member_id"`
	Remark   string     `json:"remark" validate:"max=500"`
} // @name CreateSaleRequest

// AddSaleItemRequest is the request body for POST /sales/{id}/items.
// Omitting actual_price charges the catalogue price.
type AddSaleItemRequest struct {
	ProductID   uuid.UUID        `json:"product_id"   validate:"required"`
	Quantity    int              `json:"quantity"     validate:"gt=0,lte=2147483647"  example:"2"`
	ActualPrice *decimal.Decimal `json:"actual_price" validate:"omitempty,dec_gte0"   swaggertype:"string" example:"3.00"`
} // @name AddSaleItemRequest

// AddSaleItemResponse is the updated sale plus any price warnings.
type AddSaleItemResponse struct {
	Sale     SaleResponse     `json:"sale"`
	Item     SaleItemResponse `json:"item"`
	Warnings []string         `json:"warnings"`
} // @name AddSaleItemResponse

// CompleteSaleRequest is the request body for POST /sales/{id}/complete.
type CompleteSaleRequest struct {
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=cash wechat alipay card balance mixed other" example:"cash"`
	BalanceAmount *decimal.Decimal `json:"balance_amount" validate:"omitempty,dec_gt0" swaggertype:"string" example:"10.00"`
} // @name CompleteSaleRequest

// CancelSaleRequest is the request body for POST /sales/{id}/cancel.
type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"max=500" example:"customer changed mind"`
} // @name CancelSaleRequest

// SaleHandler serves the checkout flow.
type SaleHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

func NewSaleHandler(svc *appsvcs.Services, log logger.Logger) *SaleHandler {
	return &SaleHandler{svc: svc, log: log}
}

// Create opens an empty sale.
//
//	@Summary	Open sale
//	@Tags		sales
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateSaleRequest	true	"Sale"
//	@Success	201		{object}	SaleResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/sales [post]
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateSaleRequest](w, r)
	if !ok {
		return
	}
	sale, err := h.svc.Sales.Create(r.Context(), actor, req.MemberID, req.Remark)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSale(sale))
}

// List pages through sales, newest first.
//
//	@Summary	List sales
//	@Tags		sales
//	@Produce	json
//	@Param		status		query		string	false	"open, completed or cancelled"
//	@Param		member_id	query		string	false	"Member filter"
//	@Param		since		query		string	false	"RFC 3339 lower bound"
//	@Param		until		query		string	false	"RFC 3339 upper bound"
//	@Param		limit		query		int		false	"Page size (max 500)"
//	@Param		offset		query		int		false	"Offset"
//	@Success	200			{object}	ListResponse[SaleResponse]
//	@Failure	400			{object}	ErrorResponse
//	@Router		/sales [get]
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	memberID, err := httpx.QueryUUID(r, "member_id")
	if err != nil {
		badRequest(w, err)
		return
	}
	since, err := httpx.QueryTime(r, "since")
	if err != nil {
		badRequest(w, err)
		return
	}
	until, err := httpx.QueryTime(r, "until")
	if err != nil {
		badRequest(w, err)
		return
	}
	page := httpx.PageFromRequest(r)
	sales, total, err := h.svc.Sales.List(r.Context(), repositories.SaleFilter{
		Status:    models.SaleStatus(r.URL.Query().Get("status")),
		MemberID:  memberID,
		Since:     since,
		Until:     until,
		QueryOpts: queryOpts(page),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(sales, total, page, toSale))
}

// Get returns a sale with its items.
//
//	@Summary	Get sale
//	@Tags		sales
//	@Produce	json
//	@Param		id	path		string	true	"Sale ID"
//	@Success	200	{object}	SaleResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/sales/{id} [get]
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	sale, err := h.svc.Sales.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSale(sale))
}

// AddItem takes stock out and adds it to an open sale.
//
//	@Summary	Add sale item
//	@Tags		sales
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Sale ID"
//	@Param		request	body		AddSaleItemRequest	true	"Item"
//	@Success	201		{object}	AddSaleItemResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/sales/{id}/items [post]
func (h *SaleHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[AddSaleItemRequest](w, r)
	if !ok {
		return
	}
	res, err := h.svc.Sales.AddItem(r.Context(), actor, id, req.ProductID, req.Quantity, req.ActualPrice)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	httpx.JSON(w, http.StatusCreated, AddSaleItemResponse{
		Sale:     toSale(res.Sale),
		Item:     toSaleItem(res.Item),
		Warnings: warnings,
	})
}

// RemoveItem returns an item's stock and drops it from an open sale.
//
//	@Summary	Remove sale item
//	@Tags		sales
//	@Produce	json
//	@Param		id		path		string	true	"Sale ID"
//	@Param		itemID	path		string	true	"Sale item ID"
//	@Success	200		{object}	SaleResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/sales/{id}/items/{itemID} [delete]
func (h *SaleHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	itemID, err := httpx.URLParamUUID(r, "itemID")
	if err != nil {
		badRequest(w, err)
		return
	}
	sale, err := h.svc.Sales.RemoveItem(r.Context(), actor, id, itemID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSale(sale))
}

// Complete settles payment and credits the member.
//
//	@Summary	Complete sale
//	@Tags		sales
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Sale ID"
//	@Param		request	body		CompleteSaleRequest	true	"Payment"
//	@Success	200		{object}	SaleResponse
//	@Failure	409		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/sales/{id}/complete [post]
func (h *SaleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CompleteSaleRequest](w, r)
	if !ok {
		return
	}
	sale, err := h.svc.Sales.Complete(r.Context(), actor, id, appsvcs.CompleteRequest{
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		BalanceAmount: req.BalanceAmount,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSale(sale))
}

// Cancel voids a sale and returns its stock. Completed sales are refunded.
//
//	@Summary	Cancel sale
//	@Tags		sales
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Sale ID"
//	@Param		request	body		CancelSaleRequest	true	"Reason"
//	@Success	200		{object}	SaleResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/sales/{id}/cancel [post]
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CancelSaleRequest](w, r)
	if !ok {
		return
	}
	sale, err := h.svc.Sales.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSale(sale))
}
