package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	domainsvcs "github.com/ghuser/retailstock/services/inventory/domain/services"
)

// CreateCheckRequest is the request body for POST /inventory-checks.
// Without category_id the check covers every active product.
type CreateCheckRequest struct {
	Name        string     `json:"name"        validate:"required,max=100" example:"Month-end count"`
	Description string     `json:"description" validate:"max=500"`
	CategoryID  *uuid.UUID `json:"category_id"`
} // @name CreateCheckRequest

// RecordCountRequest is the request body for PUT /inventory-checks/{id}/items/{itemID}.
type RecordCountRequest struct {
	ActualQuantity int    `json:"actual_quantity" validate:"gte=0,lte=2147483647"   example:"22"`
	Notes          string `json:"notes"           validate:"max=500" example:"two dented cans binned"`
} // @name RecordCountRequest

// ApproveCheckRequest is the request body for POST /inventory-checks/{id}/approve.
type ApproveCheckRequest struct {
	AdjustStock bool `json:"adjust_stock" example:"true"`
} // @name ApproveCheckRequest

// CheckDetailResponse is a check with its lines and summary.
type CheckDetailResponse struct {
	CheckResponse
	Items   []CheckItemResponse     `json:"items"`
	Summary domainsvcs.CheckSummary `json:"summary"`
} // @name CheckDetailResponse

func toCheckDetail(d *appsvcs.CheckDetail) CheckDetailResponse {
	items := make([]CheckItemResponse, 0, len(d.Items))
	for _, i := range d.Items {
		items = append(items, toCheckItem(i))
	}
	return CheckDetailResponse{CheckResponse: toCheck(d.Check), Items: items, Summary: d.Summary}
}

// CheckHandler serves inventory checks.
type CheckHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

func NewCheckHandler(svc *appsvcs.Services, log logger.Logger) *CheckHandler {
	return &CheckHandler{svc: svc, log: log}
}

// Create snapshots the stock of every active product in scope.
//
//	@Summary	Create inventory check
//	@Tags		inventory-checks
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateCheckRequest	true	"Check"
//	@Success	201		{object}	CheckDetailResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/inventory-checks [post]
func (h *CheckHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateCheckRequest](w, r)
	if !ok {
		return
	}
	d, err := h.svc.Checks.Create(r.Context(), actor, req.Name, req.Description, req.CategoryID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCheckDetail(d))
}

// List pages through checks, newest first.
//
//	@Summary	List inventory checks
//	@Tags		inventory-checks
//	@Produce	json
//	@Param		status	query		string	false	"draft, in_progress, completed, approved or cancelled"
//	@Param		limit	query		int		false	"Page size (max 500)"
//	@Param		offset	query		int		false	"Offset"
//	@Success	200		{object}	ListResponse[CheckResponse]
//	@Failure	422		{object}	ErrorResponse
//	@Router		/inventory-checks [get]
func (h *CheckHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httpx.PageFromRequest(r)
	checks, total, err := h.svc.Checks.List(r.Context(), models.CheckStatus(r.URL.Query().Get("status")), queryOpts(page))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(checks, total, page, toCheck))
}

// Get returns a check with its lines and summary.
//
//	@Summary	Get inventory check
//	@Tags		inventory-checks
//	@Produce	json
//	@Param		id	path		string	true	"Check ID"
//	@Success	200	{object}	CheckDetailResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/inventory-checks/{id} [get]
func (h *CheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.Checks.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCheckDetail(d))
}

// Summary recomputes the totals of a check.
//
//	@Summary	Inventory check summary
//	@Tags		inventory-checks
//	@Produce	json
//	@Param		id	path		string	true	"Check ID"
//	@Success	200	{object}	domainsvcs.CheckSummary
//	@Failure	404	{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/summary [get]
func (h *CheckHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	s, err := h.svc.Checks.Summary(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

// Start moves a draft check to in_progress.
//
//	@Summary	Start inventory check
//	@Tags		inventory-checks
//	@Produce	json
//	@Param		id	path		string	true	"Check ID"
//	@Success	200	{object}	CheckResponse
//	@Failure	422	{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/start [post]
func (h *CheckHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Checks.Start)
}

// Complete closes counting. Every line must be counted.
//
//	@Summary	Complete inventory check
//	@Tags		inventory-checks
//	@Produce	json
//	@Param		id	path		string	true	"Check ID"
//	@Success	200	{object}	CheckResponse
//	@Failure	422	{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/complete [post]
func (h *CheckHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Checks.Complete)
}

// Cancel abandons a check that is not yet approved.
//
//	@Summary	Cancel inventory check
//	@Tags		inventory-checks
//	@Produce	json
//	@Param		id	path		string	true	"Check ID"
//	@Success	200	{object}	CheckResponse
//	@Failure	422	{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/cancel [post]
func (h *CheckHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Checks.Cancel)
}

func (h *CheckHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, models.Actor, uuid.UUID) (*models.InventoryCheck, error),
) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	c, err := fn(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCheck(c))
}

// Approve accepts a completed check, optionally adjusting stock to the
// counted quantities.
//
//	@Summary	Approve inventory check
//	@Tags		inventory-checks
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Check ID"
//	@Param		request	body		ApproveCheckRequest	true	"Approval"
//	@Success	200		{object}	CheckResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/approve [post]
func (h *CheckHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[ApproveCheckRequest](w, r)
	if !ok {
		return
	}
	c, err := h.svc.Checks.Approve(r.Context(), actor, id, req.AdjustStock)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCheck(c))
}

// RecordCount stores the counted quantity of one line.
//
//	@Summary	Record count
//	@Tags		inventory-checks
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Check ID"
//	@Param		itemID	path		string				true	"Check item ID"
//	@Param		request	body		RecordCountRequest	true	"Count"
//	@Success	200		{object}	CheckItemResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/items/{itemID} [put]
func (h *CheckHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
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
	req, ok := pkgvalidator.ValidateRequest[RecordCountRequest](w, r)
	if !ok {
		return
	}
	item, err := h.svc.Checks.RecordCount(r.Context(), actor, id, itemID, req.ActualQuantity, req.Notes)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCheckItem(item))
}

// Export downloads the count sheet as an Excel workbook.
//
//	@Summary	Export inventory check
//	@Tags		inventory-checks
//	@Produce	application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param		id	path	string	true	"Check ID"
//	@Success	200
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/inventory-checks/{id}/export [get]
func (h *CheckHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Checks.Export(r.Context(), actor, id, &buf); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sendWorkbook(w, r, h.log, fmt.Sprintf("inventory-check-%s.xlsx", id), &buf)
}
