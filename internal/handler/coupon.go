package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
)

// CouponHandler serves the admin coupon CRUD.
type CouponHandler struct {
	coupons coupon.Repository
}

// NewCouponHandler creates a CouponHandler.
func NewCouponHandler(coupons coupon.Repository) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// List handles GET /api/admin/coupons.
func (h *CouponHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	coupons, total, err := h.coupons.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, coupons, pagination{Limit: limit, Offset: offset, Total: total})
}

// Get handles GET /api/admin/coupons/:code.
func (h *CouponHandler) Get(c *gin.Context) {
	cp, err := h.coupons.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cp)
}

type couponUpsertRequest struct {
	Code          string          `json:"code"`
	Kind          coupon.Kind     `json:"kind" binding:"required"`
	Value         decimal.Decimal `json:"value" binding:"required"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	MaxDiscount   decimal.Decimal `json:"max_discount"`
	UsageLimit    int             `json:"usage_limit"`
	UserLimit     int             `json:"user_limit"`
	StartsAt      time.Time       `json:"starts_at" binding:"required"`
	EndsAt        time.Time       `json:"ends_at" binding:"required"`
	AllowedUsers  []string        `json:"allowed_users"`
	ExcludedUsers []string        `json:"excluded_users"`
	Description   string          `json:"description"`
	Active        *bool           `json:"active"`
}

func (r *couponUpsertRequest) validate() string {
	switch r.Kind {
	case coupon.KindPercentage, coupon.KindFixed:
	default:
		return "kind must be percentage or fixed"
	}
	if !r.Value.IsPositive() {
		return "value must be greater than zero"
	}
	if r.Kind == coupon.KindPercentage && r.Value.GreaterThan(decimal.NewFromInt(100)) {
		return "percentage value must not exceed 100"
	}
	if !r.EndsAt.After(r.StartsAt) {
		return "ends_at must be after starts_at"
	}
	return ""
}

func (r *couponUpsertRequest) apply(cp *coupon.Coupon) {
	cp.Kind = r.Kind
	cp.Value = r.Value
	cp.MinAmount = r.MinAmount
	cp.MaxDiscount = r.MaxDiscount
	cp.UsageLimit = r.UsageLimit
	cp.UserLimit = r.UserLimit
	cp.StartsAt = r.StartsAt
	cp.EndsAt = r.EndsAt
	cp.AllowedUsers = r.AllowedUsers
	cp.ExcludedUsers = r.ExcludedUsers
	cp.Description = r.Description
	if r.Active != nil {
		cp.Active = *r.Active
	}
}

// Create handles POST /api/admin/coupons. Codes are stored uppercase.
func (h *CouponHandler) Create(c *gin.Context) {
	var req couponUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid coupon payload: "+err.Error())
		return
	}
	if req.Code == "" {
		badRequest(c, "code required")
		return
	}
	if msg := req.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	cp := &coupon.Coupon{
		Code:    strings.ToUpper(strings.TrimSpace(req.Code)),
		Active:  true,
		Version: 1,
	}
	req.apply(cp)
	if err := h.coupons.Create(c.Request.Context(), cp); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, cp)
}

// Update handles PUT /api/admin/coupons/:code. The usage counters and
// ledger are never touched here; only the rule fields change.
func (h *CouponHandler) Update(c *gin.Context) {
	var req couponUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid coupon payload: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	cp, err := h.coupons.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	req.apply(cp)
	if err := h.coupons.Update(c.Request.Context(), cp); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cp)
}

// Delete handles DELETE /api/admin/coupons/:code by deactivating the
// coupon; the redemption ledger stays intact.
func (h *CouponHandler) Delete(c *gin.Context) {
	if err := h.coupons.Deactivate(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "coupon removed")
}
