package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// CreateLevelRequest is the request body for POST /member-levels.
type CreateLevelRequest struct {
	Name            string          `json:"name"             validate:"required,max=50"        example:"Gold"`
	DiscountRate    decimal.Decimal `json:"discount_rate"    validate:"dec_gt0,dec_lte1"       swaggertype:"string" example:"0.90"`
	PointsThreshold int             `json:"points_threshold" validate:"gte=0"                  example:"500"`
	Priority        int             `json:"priority"         validate:"gte=0"                  example:"2"`
	IsDefault       bool            `json:"is_default"`
} // @name CreateLevelRequest

// CreateMemberRequest is the request body for POST /members.
// An empty member_code defaults to "M" followed by the phone number.
type CreateMemberRequest struct {
	Name       string     `json:"name"        validate:"required,max=100"        example:"Li Wei"`
	Phone      string     `json:"phone"       validate:"required,max=20"         example:"13800000031"`
	MemberCode string     `json:"member_code" validate:"max=32"`
	Email      string     `json:"email"       validate:"omitempty,email,max=200"`
	LevelID    *uuid.UUID `json:"level_id"`
} // @name CreateMemberRequest

// UpdateMemberRequest is the request body for PATCH /members/{id}.
type UpdateMemberRequest struct {
	Name     *string    `json:"name"      validate:"omitempty,max=100"`
	Phone    *string    `json:"phone"     validate:"omitempty,max=20"`
	Email    *string    `json:"email"     validate:"omitempty,max=200"`
	LevelID  *uuid.UUID `json:"level_id"`
	IsActive *bool      `json:"is_active"`
} // @name UpdateMemberRequest

// RechargeRequest is the request body for POST /members/{id}/recharge.
// actual_amount is what the customer paid and defaults to amount.
type RechargeRequest struct {
	Amount        decimal.Decimal  `json:"amount"         validate:"dec_gt0"                                  swaggertype:"string" example:"100.00"`
	ActualAmount  *decimal.Decimal `json:"actual_amount"  validate:"omitempty,dec_gte0"                       swaggertype:"string" example:"90.00"`
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=cash wechat alipay card other" example:"wechat"`
	Remark        string           `json:"remark"         validate:"max=500"`
} // @name RechargeRequest

// AdjustPointsRequest is the request body for POST /members/{id}/points.
type AdjustPointsRequest struct {
	Delta  int    `json:"delta"  validate:"required" example:"-50"`
	Reason string `json:"reason" validate:"max=500"  example:"goodwill credit reversed"`
} // @name AdjustPointsRequest

// MemberHandler serves levels, members and their balances.
type MemberHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

func NewMemberHandler(svc *appsvcs.Services, log logger.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, log: log}
}

// ListLevels returns member levels in rank order.
//
//	@Summary	List member levels
//	@Tags		members
//	@Produce	json
//	@Param		active	query	bool	false	"Only active levels"
//	@Success	200		{array}	MemberLevelResponse
//	@Router		/member-levels [get]
func (h *MemberHandler) ListLevels(w http.ResponseWriter, r *http.Request) {
	active, err := httpx.QueryBool(r, "active")
	if err != nil {
		badRequest(w, err)
		return
	}
	levels, err := h.svc.Members.ListLevels(r.Context(), active != nil && *active)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := make([]MemberLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, toLevel(l))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// CreateLevel adds a member level.
//
//	@Summary	Create member level
//	@Tags		members
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateLevelRequest	true	"Level"
//	@Success	201		{object}	MemberLevelResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/member-levels [post]
func (h *MemberHandler) CreateLevel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateLevelRequest](w, r)
	if !ok {
		return
	}
	level, err := h.svc.Members.CreateLevel(r.Context(), actor, appsvcs.LevelRequest{
		Name:            req.Name,
		DiscountRate:    req.DiscountRate,
		PointsThreshold: req.PointsThreshold,
		Priority:        req.Priority,
		IsDefault:       req.IsDefault,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLevel(level))
}

// List searches members.
//
//	@Summary	List members
//	@Tags		members
//	@Produce	json
//	@Param		q		query		string	false	"Name, phone or member code"
//	@Param		active	query		bool	false	"Active filter"
//	@Param		limit	query		int		false	"Page size (max 500)"
//	@Param		offset	query		int		false	"Offset"
//	@Success	200		{object}	ListResponse[MemberResponse]
//	@Router		/members [get]
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := httpx.QueryBool(r, "active")
	if err != nil {
		badRequest(w, err)
		return
	}
	page := httpx.PageFromRequest(r)
	members, total, err := h.svc.Members.List(r.Context(), repositories.MemberFilter{
		Search:    strings.TrimSpace(r.URL.Query().Get("q")),
		Active:    active,
		QueryOpts: queryOpts(page),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(members, total, page, toMember))
}

// Create registers a member.
//
//	@Summary	Create member
//	@Tags		members
//	@Accept		json
//	@Produce	json
//	@Param		request	body		CreateMemberRequest	true	"Member"
//	@Success	201		{object}	MemberResponse
//	@Failure	409		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/members [post]
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := pkgvalidator.ValidateRequest[CreateMemberRequest](w, r)
	if !ok {
		return
	}
	m, err := h.svc.Members.Create(r.Context(), actor, appsvcs.MemberRequest{
		Name:    req.Name,
		Phone:   req.Phone,
		Code:    req.MemberCode,
		Email:   req.Email,
		LevelID: req.LevelID,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMember(m))
}

// Get returns one member.
//
//	@Summary	Get member
//	@Tags		members
//	@Produce	json
//	@Param		id	path		string	true	"Member ID"
//	@Success	200	{object}	MemberResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/members/{id} [get]
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	m, err := h.svc.Members.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMember(m))
}

// Update edits a member. Changing the level is recorded in the history.
//
//	@Summary	Update member
//	@Tags		members
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Member ID"
//	@Param		request	body		UpdateMemberRequest	true	"Changed fields"
//	@Success	200		{object}	MemberResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Router		/members/{id} [patch]
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[UpdateMemberRequest](w, r)
	if !ok {
		return
	}
	m, err := h.svc.Members.Update(r.Context(), actor, id, appsvcs.MemberUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		LevelID:  req.LevelID,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMember(m))
}

// Recharge tops up a member's prepaid balance.
//
//	@Summary	Recharge member
//	@Tags		members
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Member ID"
//	@Param		request	body		RechargeRequest	true	"Top-up"
//	@Success	201		{object}	RechargeResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/members/{id}/recharge [post]
func (h *MemberHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[RechargeRequest](w, r)
	if !ok {
		return
	}
	m, rec, err := h.svc.Members.Recharge(r.Context(), actor, id, appsvcs.RechargeRequest{
		Amount:        req.Amount,
		ActualAmount:  req.ActualAmount,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Remark:        req.Remark,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, RechargeResponse{
		ID:            rec.ID,
		Amount:        rec.Amount,
		ActualAmount:  rec.ActualAmount,
		PaymentMethod: string(rec.PaymentMethod),
		Remark:        rec.Remark,
		CreatedAt:     rec.CreatedAt,
		Member:        toMember(m),
	})
}

// AdjustPoints adds or removes points by hand.
//
//	@Summary	Adjust member points
//	@Tags		members
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Member ID"
//	@Param		request	body		AdjustPointsRequest	true	"Adjustment"
//	@Success	200		{object}	MemberResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/members/{id}/points [post]
func (h *MemberHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	req, ok := pkgvalidator.ValidateRequest[AdjustPointsRequest](w, r)
	if !ok {
		return
	}
	m, err := h.svc.Members.AdjustPoints(r.Context(), actor, id, req.Delta, req.Reason)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMember(m))
}

// Transactions pages through a member's history, newest first.
//
//	@Summary	List member transactions
//	@Tags		members
//	@Produce	json
//	@Param		id		path		string	true	"Member ID"
//	@Param		limit	query		int		false	"Page size (max 500)"
//	@Param		offset	query		int		false	"Offset"
//	@Success	200		{object}	ListResponse[MemberTransactionResponse]
//	@Failure	404		{object}	ErrorResponse
//	@Router		/members/{id}/transactions [get]
func (h *MemberHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	page := httpx.PageFromRequest(r)
	txs, total, err := h.svc.Members.ListTransactions(r.Context(), id, queryOpts(page))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(txs, total, page, toTransaction))
}
