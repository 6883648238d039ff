package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// OrderHandler serves checkout and order lifecycle endpoints.
type OrderHandler struct {
	orders *order.Service
	repo   order.Repository
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders *order.Service, repo order.Repository) *OrderHandler {
	return &OrderHandler{orders: orders, repo: repo}
}

type checkoutRequest struct {
	ShippingAddress order.Address `json:"shipping_address" binding:"required"`
	BillingAddress  order.Address `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
}

// Checkout handles POST /api/orders: snapshots the cart into an order.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid checkout payload: "+err.Error())
		return
	}
	if req.BillingAddress == (order.Address{}) {
		req.BillingAddress = req.ShippingAddress
	}

	o, err := h.orders.Checkout(c.Request.Context(), order.CheckoutRequest{
		UserID:          ginmiddleware.UserID(c),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	ginmiddleware.RecordCheckout(err == nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, o)
}

// List handles GET /api/orders for the authenticated user.
func (h *OrderHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	orders, total, err := h.orders.ListByUser(c.Request.Context(), ginmiddleware.UserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, orders, pagination{Limit: limit, Offset: offset, Total: total})
}

// Get handles GET /api/orders/:id. Users only see their own orders.
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if o.UserID != ginmiddleware.UserID(c) {
		respondError(c, order.ErrNotFound)
		return
	}
	respond(c, http.StatusOK, o)
}

type noteRequest struct {
	Note string `json:"note"`
}

// Cancel handles POST /api/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	userID := ginmiddleware.UserID(c)

	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if o.UserID != userID {
		respondError(c, order.ErrNotFound)
		return
	}

	var req noteRequest
	_ = c.ShouldBindJSON(&req)

	o, err = h.orders.Cancel(c.Request.Context(), o.ID, req.Note, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}

// AdminList handles GET /api/admin/orders with an optional status filter.
func (h *OrderHandler) AdminList(c *gin.Context) {
	limit, offset := pageParams(c)
	status := order.Status(c.Query("status"))

	orders, total, err := h.orders.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, orders, pagination{Limit: limit, Offset: offset, Total: total})
}

// AdminGet handles GET /api/admin/orders/:id.
func (h *OrderHandler) AdminGet(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// AdminUpdateStatus handles PUT /api/admin/orders/:id/status.
func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status required")
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"),
		order.Status(req.Status), req.Note, ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}

// AdminDelete handles DELETE /api/admin/orders/:id. Soft delete only;
// the row remains for audit.
func (h *OrderHandler) AdminDelete(c *gin.Context) {
	if err := h.repo.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "order removed")
}
