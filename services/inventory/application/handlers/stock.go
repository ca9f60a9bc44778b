package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// MovementRequest is the request body for POST /stock/movements.
// IN and OUT use the magnitude of quantity; ADJUST sets it as the new total.
type MovementRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"                  example:"123e4567-e89b-12d3-a456-426614174000"`
	Kind      string    `json:"kind"       validate:"required,oneof=IN OUT ADJUST" example:"IN"`
	Quantity  int       `json:"quantity"   validate:"gte=-2147483647,lte=2147483647" example:"24"`
	Note      string    `json:"note"       validate:"max=500"                    example:"delivery #4411"`
} // @name MovementRequest

// MovementResultResponse is the stock state after a movement.
type MovementResultResponse struct {
	Stock    StockLevelResponse `json:"stock"`
	Movement MovementResponse   `json:"movement"`
} // @name MovementResultResponse

// WarningLevelRequest is the request body for PUT /stock/{productID}/warning-level.
type WarningLevelRequest struct {
	WarningLevel int `json:"warning_level" validate:"gte=0,lte=2147483647" example:"10"`
} // @name WarningLevelRequest

// SufficientResponse answers a stock availability query.
type SufficientResponse struct {
	ProductID  uuid.UUID `json:"product_id"`
	Quantity   int       `json:"quantity"   example:"3"`
	Sufficient bool      `json:"sufficient" example:"true"`
} // @name SufficientResponse

// StockHandler serves stock levels and the movement ledger.
type StockHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

func NewStockHandler(svc *appsvcs.Services, log logger.Logger) *StockHandler {
	return &StockHandler{svc: svc, log: log}
}

// ApplyMovement records a manual stock movement.
//
//	@Summary		Record stock movement
//	@Description	IN and OUT use the magnitude of quantity; ADJUST sets the absolute quantity.
//	@Tags			stock
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MovementRequest	true	"Movement"
//	@Success		201		{object}	MovementResultResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/stock/movements [post]
func (h *StockHandler) ApplyMovement(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[MovementRequest](w, r)
	if !ok {
		return
	}
	res, err := h.svc.Stock.ApplyMovement(r.Context(), actor, appsvcs.MovementRequest{
		ProductID: req.ProductID,
		Kind:      models.MovementKind(req.Kind),
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, MovementResultResponse{
		Stock:    toStockLevel(res.Level),
		Movement: toMovement(res.Movement),
	})
}

// ListMovements pages through the ledger, newest first.
//
//	@Summary	List stock movements
//	@Tags		stock
//	@Produce	json
//	@Param		product_id	query		string	false	"Product filter"
//	@Param		kind		query		string	false	"IN, OUT or ADJUST"
//	@Param		since		query		string	false	"RFC 3339 lower bound"
//	@Param		until		query		string	false	"RFC 3339 upper bound"
//	@Param		limit		query		int		false	"Page size (max 500)"
//	@Param		offset		query		int		false	"Offset"
//	@Success	200			{object}	ListResponse[MovementResponse]
//	@Failure	400			{object}	ErrorResponse
//	@Router		/stock/movements [get]
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryUUID(r, "product_id")
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
	movements, total, err := h.svc.Stock.ListMovements(r.Context(), repositories.MovementFilter{
		ProductID: productID,
		Kind:      models.MovementKind(r.URL.Query().Get("kind")),
		Since:     since,
		Until:     until,
		QueryOpts: queryOpts(page),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(movements, total, page, toMovement))
}

// Get returns the stock row of one product.
//
//	@Summary	Get stock level
//	@Tags		stock
//	@Produce	json
//	@Param		productID	path		string	true	"Product ID"
//	@Success	200			{object}	StockLevelResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/stock/{productID} [get]
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "productID")
	if err != nil {
		badRequest(w, err)
		return
	}
	level, err := h.svc.Stock.GetStockLevel(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockLevel(level))
}

// Sufficient reports whether a product has at least ?quantity= on hand.
//
//	@Summary	Check stock availability
//	@Tags		stock
//	@Produce	json
//	@Param		productID	path		string	true	"Product ID"
//	@Param		quantity	query		int		true	"Requested quantity"
//	@Success	200			{object}	SufficientResponse
//	@Failure	400			{object}	ErrorResponse
//	@Router		/stock/{productID}/sufficient [get]
func (h *StockHandler) Sufficient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "productID")
	if err != nil {
		badRequest(w, err)
		return
	}
	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		badRequest(w, fmt.Errorf("invalid quantity %q", r.URL.Query().Get("quantity")))
		return
	}
	ok, err := h.svc.Stock.HasSufficientStock(r.Context(), id, qty)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, SufficientResponse{ProductID: id, Quantity: qty, Sufficient: ok})
}

// SetWarningLevel changes the low-stock threshold of a product.
//
//	@Summary	Set warning level
//	@Tags		stock
//	@Accept		json
//	@Produce	json
//	@Param		productID	path		string				true	"Product ID"
//	@Param		request		body		WarningLevelRequest	true	"Threshold"
//	@Success	200			{object}	StockLevelResponse
//	@Failure	403			{object}	ErrorResponse
//	@Failure	404			{object}	ErrorResponse
//	@Router		/stock/{productID}/warning-level [put]
func (h *StockHandler) SetWarningLevel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "productID")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[WarningLevelRequest](w, r)
	if !ok {
		return
	}
	level, err := h.svc.Stock.SetWarningLevel(r.Context(), actor, id, req.WarningLevel)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockLevel(level))
}

// Low lists active products at or below their warning level.
//
//	@Summary	List low stock
//	@Tags		stock
//	@Produce	json
//	@Success	200	{array}	StockViewResponse
//	@Router		/stock/low [get]
func (h *StockHandler) Low(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Stock.ListLowStock(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := make([]StockViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toStockView(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Value sums the cost and retail value of stock on hand.
//
//	@Summary	Inventory valuation
//	@Tags		stock
//	@Produce	json
//	@Success	200	{object}	appsvcs.InventoryValuation
//	@Router		/stock/value [get]
func (h *StockHandler) Value(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Stock.InventoryValue(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

// Export downloads the stock report as an Excel workbook.
//
//	@Summary	Export stock report
//	@Tags		stock
//	@Produce	application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Success	200
//	@Failure	403	{object}	ErrorResponse
//	@Router		/stock/export [get]
func (h *StockHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Stock.ExportStockReport(r.Context(), actor, &buf); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	name := fmt.Sprintf("stock-%s.xlsx", time.Now().Format("20060102"))
	sendWorkbook(w, r, h.log, name, &buf)
}

// sendWorkbook streams a rendered workbook. Rendering happens first so
// permission and lookup failures still produce a JSON error.
func sendWorkbook(w http.ResponseWriter, r *http.Request, log logger.Logger, name string, buf *bytes.Buffer) {
	err := httpx.Attachment(w, httpx.ContentTypeXLSX, name, func(out io.Writer) error {
		_, err := buf.WriteTo(out)
		return err
	})
	if err != nil {
		log.WarnContext(r.Context(), "workbook download interrupted", "file", name, "error", err)
	}
}
