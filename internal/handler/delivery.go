package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/delivery"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// DeliveryHandler serves agent assignment, delivery progress and the
// zone and agent administration endpoints.
type DeliveryHandler struct {
	deliveries *delivery.Service
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(deliveries *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

type assignRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

// Assign handles POST /api/admin/orders/:id/assign.
func (h *DeliveryHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "agent_id required")
		return
	}

	o, err := h.deliveries.Assign(c.Request.Context(), c.Param("id"), req.AgentID, ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}

type deliveryStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PUT /api/admin/orders/:id/delivery: records an
// agent-reported delivery status against the order.
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	var req deliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status required")
		return
	}

	o, err := h.deliveries.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}

type agentRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
	ZoneID string `json:"zone_id"`
}

// RegisterAgent handles POST /api/admin/agents. New agents start in the
// pending state until activated.
func (h *DeliveryHandler) RegisterAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid agent payload: "+err.Error())
		return
	}

	a, err := h.deliveries.RegisterAgent(c.Request.Context(), req.UserID, req.Name, req.Phone, req.ZoneID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, a)
}

// ListAgents handles GET /api/admin/agents with an optional status
// filter.
func (h *DeliveryHandler) ListAgents(c *gin.Context) {
	limit, offset := pageParams(c)
	status := delivery.AgentStatus(c.Query("status"))

	agents, total, err := h.deliveries.ListAgents(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, agents, pagination{Limit: limit, Offset: offset, Total: total})
}

// GetAgent handles GET /api/admin/agents/:id.
func (h *DeliveryHandler) GetAgent(c *gin.Context) {
	a, err := h.deliveries.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

type agentStatusRequest struct {
	Status delivery.AgentStatus `json:"status" binding:"required"`
}

// SetAgentStatus handles PUT /api/admin/agents/:id/status.
func (h *DeliveryHandler) SetAgentStatus(c *gin.Context) {
	var req agentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status required")
		return
	}
	switch req.Status {
	case delivery.AgentPending, delivery.AgentActive, delivery.AgentSuspended:
	default:
		badRequest(c, "status must be pending, active or suspended")
		return
	}

	a, err := h.deliveries.SetAgentStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

// ListZones handles GET /api/zones. Public so the storefront can show
// fees before checkout.
func (h *DeliveryHandler) ListZones(c *gin.Context) {
	zones, err := h.deliveries.ListZones(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, zones)
}

// Quote handles GET /api/zones/:id/quote?amount=: the shipping fee and
// SLA window the given cart amount would pay in this zone.
func (h *DeliveryHandler) Quote(c *gin.Context) {
	amount, err := decimal.NewFromString(c.DefaultQuery("amount", "0"))
	if err != nil || amount.IsNegative() {
		badRequest(c, "amount must be a non-negative number")
		return
	}

	q, err := h.deliveries.Quote(c.Request.Context(), c.Param("id"), amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, q)
}

type zoneRequest struct {
	Name      string          `json:"name" binding:"required"`
	Fee       decimal.Decimal `json:"fee"`
	FreeAbove decimal.Decimal `json:"free_above"`
	MinDays   int             `json:"min_days"`
	MaxDays   int             `json:"max_days"`
	Active    *bool           `json:"active"`
}

// CreateZone handles POST /api/admin/zones.
func (h *DeliveryHandler) CreateZone(c *gin.Context) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid zone payload: "+err.Error())
		return
	}
	if req.Fee.IsNegative() {
		badRequest(c, "fee must not be negative")
		return
	}

	z := &delivery.Zone{
		Name:      req.Name,
		Fee:       req.Fee,
		FreeAbove: req.FreeAbove,
		MinDays:   req.MinDays,
		MaxDays:   req.MaxDays,
		Active:    true,
	}
	if req.Active != nil {
		z.Active = *req.Active
	}
	if err := h.deliveries.CreateZone(c.Request.Context(), z); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, z)
}

// UpdateZone handles PUT /api/admin/zones/:id.
func (h *DeliveryHandler) UpdateZone(c *gin.Context) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid zone payload: "+err.Error())
		return
	}
	if req.Fee.IsNegative() {
		badRequest(c, "fee must not be negative")
		return
	}

	z := &delivery.Zone{
		ID:        c.Param("id"),
		Name:      req.Name,
		Fee:       req.Fee,
		FreeAbove: req.FreeAbove,
		MinDays:   req.MinDays,
		MaxDays:   req.MaxDays,
		Active:    true,
	}
	if req.Active != nil {
		z.Active = *req.Active
	}
	if err := h.deliveries.UpdateZone(c.Request.Context(), z); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, z)
}
