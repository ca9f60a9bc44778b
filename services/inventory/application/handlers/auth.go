package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/ghuser/retailstock/pkg/auth"
	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
)

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"  example:"admin"`
	Password string `json:"password" validate:"required,max=72"  example:"change-me-please"`
} // @name LoginRequest

// CreateOperatorRequest is the request body for POST /operators.
type CreateOperatorRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"                            example:"till1"`
	Password string `json:"password" validate:"required,min=8,max=72"                            example:"s3cret-pass"`
	Role     string `json:"role"     validate:"required,oneof=admin manager stock_keeper cashier" example:"cashier"`
} // @name CreateOperatorRequest

// AuthHandler serves login, logout and operator management.
type AuthHandler struct {
	svc      *appsvcs.Services
	sessions sessions.Store
	log      logger.Logger
}

func NewAuthHandler(svc *appsvcs.Services, store sessions.Store, log logger.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: store, log: log}
}

// Login verifies credentials and starts a session.
//
//	@Summary		Log in
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	OperatorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := pkgvalidator.ValidateRequest[LoginRequest](w, r)
	if !ok {
		return
	}
	op, err := h.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := auth.StartSession(w, r, h.sessions, auth.Operator{ID: op.ID, Username: op.Username, Role: string(op.Role)}); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "operator logged in", "operator_id", op.ID, "role", op.Role)
	httpx.JSON(w, http.StatusOK, toOperator(op))
}

// Logout ends the current session.
//
//	@Summary	Log out
//	@Tags		auth
//	@Success	204
//	@Router		/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := auth.EndSession(w, r, h.sessions); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in operator.
//
//	@Summary	Current operator
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	OperatorResponse
//	@Failure	401	{object}	ErrorResponse
//	@Router		/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	op, err := h.svc.Auth.GetOperator(r.Context(), actor.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOperator(op))
}

// CreateOperator adds a staff account. Admin only.
//
//	@Summary	Create operator
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateOperatorRequest	true	"New operator"
//	@Success	201		{object}	OperatorResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/operators [post]
func (h *AuthHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateOperatorRequest](w, r)
	if !ok {
		return
	}
	op, err := h.svc.Auth.CreateOperator(r.Context(), actor, req.Username, req.Password, models.Role(req.Role))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOperator(op))
}
