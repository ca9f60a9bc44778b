package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for the inventory domain. Use errors.Is() to check these.
var (
	// ErrNotFound indicates a referenced product, check, item, sale or member does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation indicates malformed input; nothing was persisted.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is a validation failure raised by a state machine.
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrValidation)

	// ErrInsufficientStock indicates an OUT movement would drive quantity negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientBalance indicates a member balance cannot cover a payment.
	ErrInsufficientBalance = errors.New("insufficient member balance")

	// ErrForbidden indicates the operator lacks the permission for the action.
	ErrForbidden = errors.New("operation not permitted")

	// ErrAlreadyExists indicates a unique attribute (barcode, phone, name) is taken.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidCredentials is returned by login for unknown users, wrong
	// passwords and deactivated operators alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// InsufficientStockError carries what was required versus available.
// It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Barcode   string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	label := e.Barcode
	if e.Name != "" {
		label = fmt.Sprintf("%s (%s)", e.Name, e.Barcode)
	}
	if label == "" {
		label = e.ProductID.String()
	}
	return fmt.Sprintf("insufficient stock for %s: required %d, available %d", label, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Invalid wraps a formatted message in ErrValidation.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the kind and id of the missing resource.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
}

// Forbidden wraps ErrForbidden with the missing permission.
func Forbidden(permission string) error {
	return fmt.Errorf("%w: requires %s", ErrForbidden, permission)
}
