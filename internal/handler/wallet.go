package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/wallet"
	"github.com/Daninc24/dropshipping-sub001/pkg/ginmiddleware"
)

// WalletHandler serves the user's wallet balance and ledger, plus the
// admin credit endpoint.
type WalletHandler struct {
	wallets *wallet.Service
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallets *wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// Get handles GET /api/wallet.
func (h *WalletHandler) Get(c *gin.Context) {
	w, err := h.wallets.Get(c.Request.Context(), ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, w)
}

// Transactions handles GET /api/wallet/transactions, newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	limit, offset := pageParams(c)
	txs, total, err := h.wallets.ListTransactions(c.Request.Context(), ginmiddleware.UserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, txs, pagination{Limit: limit, Offset: offset, Total: total})
}

// AdminGet handles GET /api/admin/wallet/:userId: a user's balance and
// recent ledger for support inspection.
func (h *WalletHandler) AdminGet(c *gin.Context) {
	userID := c.Param("userId")

	w, err := h.wallets.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	txs, total, err := h.wallets.ListTransactions(c.Request.Context(), userID, 20, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"wallet":             w,
		"transactions":       txs,
		"transactions_total": total,
	})
}

type creditRequest struct {
	UserID      string          `json:"user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description"`
}

// AdminCredit handles POST /api/admin/wallet/credit: grants credit to a
// user's wallet, recorded on the ledger as an admin adjustment.
func (h *WalletHandler) AdminCredit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id and amount required")
		return
	}

	w, err := h.wallets.Credit(c.Request.Context(), req.UserID, req.Amount,
		wallet.SourceAdminCredit, req.Description, ginmiddleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, w)
}
