package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// OperationLogResponse is one audit trail entry.
type OperationLogResponse struct {
	ID           uuid.UUID `json:"id"`
	OperatorID   uuid.UUID `json:"operator_id"`
	OperatorName string    `json:"operator_name,omitempty" example:"admin"`
	Type         string    `json:"operation_type"          example:"INVENTORY_CHECK"`
	Action       string    `json:"action"                  example:"check.approved"`
	Details      string    `json:"details"                 example:"approved check \"March\", adjust=true, 3 items adjusted"`
	RelatedType  string    `json:"related_type"            example:"inventory_check"`
	RelatedID    uuid.UUID `json:"related_id"`
	CreatedAt    time.Time `json:"created_at"`
} // @name OperationLogResponse

func toOperationLog(l *models.OperationLog) OperationLogResponse {
	return OperationLogResponse{
		ID:           l.ID,
		OperatorID:   l.OperatorID,
		OperatorName: l.OperatorName,
		Type:         string(l.Type),
		Action:       l.Action,
		Details:      l.Details,
		RelatedType:  l.RelatedType,
		RelatedID:    l.RelatedID,
		CreatedAt:    l.CreatedAt,
	}
}

type OperationLogHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

func NewOperationLogHandler(svc *appsvcs.Services, log logger.Logger) *OperationLogHandler {
	return &OperationLogHandler{svc: svc, log: log}
}

// List pages through the operation log, newest first.
//
//	@Summary	List operation logs
//	@Tags		system
//	@Produce	json
//	@Param		operator_id		query		string	false	"Operator filter"
//	@Param		operation_type	query		string	false	"CATALOG, INVENTORY, INVENTORY_CHECK, SALE, MEMBER or OPERATOR"
//	@Param		related_id		query		string	false	"Related object filter"
//	@Param		q				query		string	false	"Matches details or operator username"
//	@Param		since			query		string	false	"RFC 3339 lower bound"
//	@Param		until			query		string	false	"RFC 3339 upper bound"
//	@Param		limit			query		int		false	"Page size (max 500)"
//	@Param		offset			query		int		false	"Offset"
//	@Success	200				{object}	ListResponse[OperationLogResponse]
//	@Failure	400				{object}	ErrorResponse
//	@Failure	403				{object}	ErrorResponse
//	@Router		/operation-logs [get]
func (h *OperationLogHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	operatorID, err := httpx.QueryUUID(r, "operator_id")
	if err != nil {
		badRequest(w, err)
		return
	}
	relatedID, err := httpx.QueryUUID(r, "related_id")
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
	q := r.URL.Query()
	page := httpx.PageFromRequest(r)
	logs, total, err := h.svc.OpLogs.List(r.Context(), actor, repositories.OperationLogFilter{
		OperatorID: operatorID,
		Type:       models.OperationType(q.Get("operation_type")),
		RelatedID:  relatedID,
		Since:      since,
		Until:      until,
		Search:     q.Get("q"),
		QueryOpts:  queryOpts(page),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(logs, total, page, toOperationLog))
}
