package auth

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
)

const (
	sessionName        = "retailstock_session"
	sessionOperatorKey = "operator_id"
	sessionUsernameKey = "username"
	sessionRoleKey     = "role"
)

// RequireAuth is a chi middleware that enforces authentication via session cookies.
// It reads the session cookie, extracts the operator, and injects it into the
// request context. operator_id and role are also attached to every log record
// of the request. Returns 401 Unauthorized if the session is missing, invalid,
// or lacks a valid operator_id.
//
// After this middleware, handlers can safely call auth.OperatorFromCtx(r.Context()).
func RequireAuth(store sessions.Store, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := store.Get(r, sessionName)
			if err != nil {
				log.WarnContext(r.Context(), "invalid session cookie", "error", err)
				httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}

			idStr, ok := session.Values[sessionOperatorKey].(string)
			if !ok || idStr == "" {
				log.WarnContext(r.Context(), "session missing operator_id")
				httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}

			id, err := uuid.Parse(idStr)
			if err != nil {
				log.WarnContext(r.Context(), "invalid operator_id in session", "operator_id", idStr, "error", err)
				httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session data"})
				return
			}

			username, _ := session.Values[sessionUsernameKey].(string)
			role, _ := session.Values[sessionRoleKey].(string)
			op := Operator{ID: id, Username: username, Role: role}

			ctx := WithOperator(r.Context(), op)
			ctx = logger.ContextWith(ctx, "operator_id", id.String(), "role", role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StartSession stores op in the session cookie after a successful login.
func StartSession(w http.ResponseWriter, r *http.Request, store sessions.Store, op Operator) error {
	session, err := store.Get(r, sessionName)
	if err != nil {
		// A stale or tampered cookie still yields a usable fresh session.
		session, err = store.New(r, sessionName)
		if err != nil {
			return fmt.Errorf("new session: %w", err)
		}
	}
	session.Values[sessionOperatorKey] = op.ID.String()
	session.Values[sessionUsernameKey] = op.Username
	session.Values[sessionRoleKey] = op.Role
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// EndSession expires the session cookie and its server-side data.
func EndSession(w http.ResponseWriter, r *http.Request, store sessions.Store) error {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	return nil
}
