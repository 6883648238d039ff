package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/payment"
	"github.com/Daninc24/dropshipping-sub001/internal/mpesa"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// PaymentHandler serves payment initiation, the gateway callback and
// refunds.
type PaymentHandler struct {
	payments *payment.Service
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type stkRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// PayMpesa handles POST /api/orders/:id/pay/mpesa: sends the STK push
// prompt to the given phone.
func (h *PaymentHandler) PayMpesa(c *gin.Context) {
	var req stkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone required")
		return
	}

	in, err := h.payments.InitiateSTK(c.Request.Context(), c.Param("id"),
		ginmiddleware.UserID(c), req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, in)
}

// PayWallet handles POST /api/orders/:id/pay/wallet.
func (h *PaymentHandler) PayWallet(c *gin.Context) {
	o, err := h.payments.PayWithWallet(c.Request.Context(), c.Param("id"), ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}

// Callback handles POST /api/payments/mpesa/callback. This is the public
// endpoint the gateway posts results to; it is unauthenticated by
// design, its only trust anchor being the stored CheckoutRequestID. An
// unknown correlation id yields 404 so the gateway's logs show the
// mismatch; everything else is acknowledged with 200 to stop retries.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		ginmiddleware.RecordPaymentCallback("unreadable")
		badRequest(c, "unreadable callback body")
		return
	}

	cb, err := mpesa.DecodeCallback(body)
	if err != nil {
		ginmiddleware.RecordPaymentCallback("undecodable")
		badRequest(c, "malformed callback")
		return
	}

	if err := h.payments.HandleCallback(c.Request.Context(), cb); err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			ginmiddleware.RecordPaymentCallback("unknown")
			zctx.From(c.Request.Context()).Warn("Callback for unknown intent",
				zap.String("checkout_request_id", cb.CheckoutRequestID))
			respondError(c, err)
			return
		}
		ginmiddleware.RecordPaymentCallback("error")
		respondError(c, err)
		return
	}

	if cb.Success() {
		ginmiddleware.RecordPaymentCallback("completed")
	} else {
		ginmiddleware.RecordPaymentCallback("failed")
	}
	respondMessage(c, http.StatusOK, "callback processed")
}

type refundRequest struct {
	Note string `json:"note"`
}

// Refund handles POST /api/admin/orders/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundRequest
	_ = c.ShouldBindJSON(&req)

	o, err := h.payments.Refund(c.Request.Context(), c.Param("id"), req.Note, ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, o)
}
