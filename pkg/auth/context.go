package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// contextKey is an unexported type to prevent key collisions in context.
type contextKey string

const operatorKey contextKey = "operator"

// ErrOperatorNotFound is returned when no operator exists in the request context.
// Handlers should return 401 when this error occurs.
var ErrOperatorNotFound = errors.New("operator not found in context")

// Operator is the authenticated staff member attached to a request.
// Role is kept as a plain string; the domain decides what it may do.
type Operator struct {
	ID       uuid.UUID
	Username string
	Role     string
}

// OperatorFromCtx extracts the authenticated operator from the request context.
// Returns ErrOperatorNotFound if none is set (unauthenticated request).
func OperatorFromCtx(ctx context.Context) (Operator, error) {
	op, ok := ctx.Value(operatorKey).(Operator)
	if !ok || op.ID == uuid.Nil {
		return Operator{}, ErrOperatorNotFound
	}
	return op, nil
}

// WithOperator returns a new context with the given operator attached.
// Used by authentication middleware after validating the session.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}
