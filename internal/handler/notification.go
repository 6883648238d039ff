package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Daninc24/dropshipping-sub001/internal/events"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// NotificationHandler serves the user's notification feed.
type NotificationHandler struct {
	store events.NotificationStore
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(store events.NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List handles GET /api/notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	ns, total, err := h.store.ListByUser(c.Request.Context(), ginmiddleware.UserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, ns, pagination{Limit: limit, Offset: offset, Total: total})
}

// MarkRead handles PUT /api/notifications/:id/read. The store scopes the
// update to the caller so users cannot touch other users' rows.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.store.MarkRead(c.Request.Context(), c.Param("id"), ginmiddleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "notification read")
}
