package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
)

// ProductHandler serves the public catalog and the admin product CRUD.
type ProductHandler struct {
	products product.Repository
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(products product.Repository) *ProductHandler {
	return &ProductHandler{products: products}
}

// List handles GET /api/products.
func (h *ProductHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	products, total, err := h.products.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, products, pagination{Limit: limit, Offset: offset, Total: total})
}

// Get handles GET /api/products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, p)
}

type productRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" binding:"required"`
	Image         string          `json:"image"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
}

// Create handles POST /api/admin/products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid product payload: "+err.Error())
		return
	}
	if !req.Price.IsPositive() {
		badRequest(c, "price must be greater than zero")
		return
	}

	p := &product.Product{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Image:         req.Image,
		Category:      req.Category,
		StockQuantity: req.StockQuantity,
		Active:        true,
	}
	if err := h.products.Create(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

// Update handles PUT /api/admin/products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid product payload: "+err.Error())
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.Image = req.Image
	p.Category = req.Category
	p.StockQuantity = req.StockQuantity
	if err := h.products.Update(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Delete handles DELETE /api/admin/products/:id by deactivating the
// product; orders referencing it keep their snapshots.
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.products.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "product removed")
}
