package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/cart"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// CartHandler serves the authenticated user's cart.
type CartHandler struct {
	carts *cart.Service
}

// NewCartHandler creates a CartHandler.
func NewCartHandler(carts *cart.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(c *gin.Context) {
	crt, err := h.carts.Get(c.Request.Context(), ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}

type cartItemRequest struct {
	ProductID string            `json:"product_id" binding:"required"`
	Quantity  int               `json:"quantity" binding:"required"`
	Variants  map[string]string `json:"variants"`
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid cart item payload: "+err.Error())
		return
	}

	crt, err := h.carts.AddItem(c.Request.Context(), ginmiddleware.UserID(c),
		req.ProductID, req.Quantity, req.Variants)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}

type cartQuantityRequest struct {
	Quantity int               `json:"quantity"`
	Variants map[string]string `json:"variants"`
}

// UpdateItem handles PUT /api/cart/items/:productId. A quantity of zero
// or less removes the line.
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid quantity payload: "+err.Error())
		return
	}

	crt, err := h.carts.UpdateQuantity(c.Request.Context(), ginmiddleware.UserID(c),
		c.Param("productId"), req.Variants, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}

// RemoveItem handles DELETE /api/cart/items/:productId. Variant selection
// comes through the body since DELETE has no canonical payload slot.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	var req cartQuantityRequest
	_ = c.ShouldBindJSON(&req)

	crt, err := h.carts.RemoveItem(c.Request.Context(), ginmiddleware.UserID(c),
		c.Param("productId"), req.Variants)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}

type couponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon handles POST /api/cart/coupon.
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "coupon code required")
		return
	}

	crt, err := h.carts.ApplyCoupon(c.Request.Context(), ginmiddleware.UserID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}

// RemoveCoupon handles DELETE /api/cart/coupon.
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	crt, err := h.carts.RemoveCoupon(c.Request.Context(), ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(c *gin.Context) {
	crt, err := h.carts.Clear(c.Request.Context(), ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, crt)
}
