// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to Status for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/services/inventory/domain"
)

// InsufficientStockBody is the 409 payload for a rejected OUT movement.
type InsufficientStockBody struct {
	Error     string    `json:"error"`
	ProductID uuid.UUID `json:"product_id"`
	Barcode   string    `json:"barcode,omitempty"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Unrecognized errors become a 500 with a generic message; callers are
// expected to have logged the cause.
func WriteError(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		httpx.JSONError(w, status, "internal server error")
		return
	}
	var ise *domain.InsufficientStockError
	if errors.As(err, &ise) {
		httpx.JSON(w, status, InsufficientStockBody{
			Error:     err.Error(),
			ProductID: ise.ProductID,
			Barcode:   ise.Barcode,
			Requested: ise.Requested,
			Available: ise.Available,
		})
		return
	}
	httpx.JSONError(w, status, err.Error())
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict // 409
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden // 403
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
