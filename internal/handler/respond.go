// Package handler exposes the REST API. Every response uses the same
// envelope: {"success": true, "data": ...} with optional pagination, or
// {"success": false, "message": ...} on errors.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/cart"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/coupon"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/delivery"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/payment"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/product"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/settings"
	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
	"github.com/Daninc24/dropshipping-sub001/internal/mpesa"
)

// pagination echoes the applied limit/offset and the total row count.
type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

func respond(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

func respondPage(c *gin.Context, data any, p pagination) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "pagination": p})
}

func respondMessage(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": true, "message": message})
}

func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(code, gin.H{"success": false, "message": "internal server error"})
		return
	}
	c.JSON(code, gin.H{"success": false, "message": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

// statusFor maps domain errors onto HTTP status codes. Anything unmapped
// is a 500 and gets logged with its cause.
func statusFor(err error) int {
	var (
		stockErr      *product.InsufficientStockError
		transitionErr *order.TransitionError
	)
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, payment.ErrIntentNotFound),
		errors.Is(err, delivery.ErrAgentNotFound),
		errors.Is(err, delivery.ErrZoneNotFound),
		errors.Is(err, settings.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, payment.ErrNotOwner):
		return http.StatusForbidden

	case errors.Is(err, cart.ErrVersionConflict),
		errors.Is(err, order.ErrVersionConflict),
		errors.Is(err, coupon.ErrVersionConflict),
		errors.Is(err, wallet.ErrVersionConflict),
		errors.Is(err, delivery.ErrVersionConflict):
		return http.StatusConflict

	case errors.As(err, &stockErr),
		errors.As(err, &transitionErr),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrRefundViaPayment),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrNotStarted),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrBelowMinimum),
		errors.Is(err, coupon.ErrUserNotAllowed),
		errors.Is(err, coupon.ErrUserLimitReached),
		errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrNotPaid),
		errors.Is(err, delivery.ErrAgentUnavailable),
		errors.Is(err, delivery.ErrNotAssigned),
		errors.Is(err, delivery.ErrUnknownStatus),
		errors.Is(err, mpesa.ErrInvalidPhone):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// pageParams reads limit/offset query parameters with sane bounds.
func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
