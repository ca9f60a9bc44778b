// Package handlers holds the HTTP handlers of the inventory context. Each
// resource gets one handler struct; routes are mounted by package api.
package handlers

import (
	"net/http"

	"github.com/ghuser/retailstock/pkg/auth"
	"github.com/ghuser/retailstock/pkg/errhttp"
	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error" example:"quantity must be positive"`
} // @name ErrorResponse

// ListResponse wraps a page of results with the total match count.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"  example:"120"`
	Limit  int `json:"limit"  example:"50"`
	Offset int `json:"offset" example:"0"`
}

func newList[S, T any](src []S, total int, page httpx.Page, conv func(S) T) ListResponse[T] {
	items := make([]T, 0, len(src))
	for _, s := range src {
		items = append(items, conv(s))
	}
	return ListResponse[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}
}

func queryOpts(p httpx.Page) repositories.QueryOpts {
	return repositories.QueryOpts{Limit: p.Limit, Offset: p.Offset}
}

// actorFrom returns the authenticated operator as a domain actor, writing
// a 401 when the request carries none.
func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	op, err := auth.OperatorFromCtx(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "authentication required")
		return models.Actor{}, false
	}
	return models.Actor{ID: op.ID, Role: models.Role(op.Role)}, true
}

// writeError logs and reports unexpected failures to Sentry before mapping
// err to a response.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	if errhttp.Status(err) >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		telemetry.CaptureError(r.Context(), err)
	}
	errhttp.WriteError(w, err)
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.JSONError(w, http.StatusBadRequest, err.Error())
}
