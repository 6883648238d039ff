package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/settings"
)

// SettingsHandler serves site-wide settings. Values are opaque JSON
// documents; the backend stores and returns them verbatim.
type SettingsHandler struct {
	repo settings.Repository
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(repo settings.Repository) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

// All handles GET /api/settings: the full settings map for the
// storefront.
func (h *SettingsHandler) All(c *gin.Context) {
	all, err := h.repo.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, all)
}

// Get handles GET /api/settings/:key.
func (h *SettingsHandler) Get(c *gin.Context) {
	v, err := h.repo.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, v)
}

// Set handles PUT /api/admin/settings/:key. The body is the raw JSON
// value to store.
func (h *SettingsHandler) Set(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		badRequest(c, "unreadable settings body")
		return
	}
	if !json.Valid(body) {
		badRequest(c, "value must be valid JSON")
		return
	}

	if err := h.repo.Set(c.Request.Context(), c.Param("key"), body); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, json.RawMessage(body))
}
