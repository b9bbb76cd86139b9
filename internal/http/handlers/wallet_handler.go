// README: Wallet and card payment handlers backed by the payment provider.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/http/middleware"
	"petride/internal/modules/order"
	"petride/internal/modules/wallet"
	"petride/internal/payment"
	"petride/internal/types"
)

type WalletService interface {
	Balance(ctx context.Context, userID int64) (types.Money, error)
	Transactions(ctx context.Context, userID int64) ([]wallet.Transaction, error)
	TopUp(ctx context.Context, userID int64, amount types.Money, method string) (wallet.TopUpIntent, error)
	VerifyTopUp(ctx context.Context, userID, txID int64) (*wallet.Transaction, error)
	CardIntent(ctx context.Context, userID, orderID int64, amount types.Money) (wallet.CardIntent, error)
	CardOutcome(ctx context.Context, orderID int64, intentID string) (payment.IntentStatus, error)
}

type WalletHandler struct {
	wallet WalletService
	orders OrderService
}

func NewWalletHandler(w WalletService, orders OrderService) *WalletHandler {
	return &WalletHandler{wallet: w, orders: orders}
}

func (h *WalletHandler) Balance(c *gin.Context) {
	uid := middleware.Caller(c).UserID
	bal, err := h.wallet.Balance(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"balance": bal, "currency": types.Currency})
}

func (h *WalletHandler) Transactions(c *gin.Context) {
	txs, err := h.wallet.Transactions(c.Request.Context(), middleware.Caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if txs == nil {
		txs = []wallet.Transaction{}
	}
	writeJSON(c, http.StatusOK, txs)
}

type topUpReq struct {
	Amount types.Money `json:"amount"`
	Method string      `json:"payment_method"`
}

func (h *WalletHandler) TopUp(c *gin.Context) {
	var req topUpReq
	if !bindJSON(c, &req) {
		return
	}
	intent, err := h.wallet.TopUp(c.Request.Context(), middleware.Caller(c).UserID, req.Amount, req.Method)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, intent)
}

func (h *WalletHandler) VerifyTopUp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tx, err := h.wallet.VerifyTopUp(c.Request.Context(), middleware.Caller(c).UserID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tx)
}

// CardIntent opens a card payment for the caller's own unpaid order.
func (h *WalletHandler) CardIntent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	actor := middleware.Caller(c)
	o, err := h.orders.Get(ctx, actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	switch {
	case o.CustomerID != actor.UserID:
		writeServiceError(c, order.ErrForbidden)
		return
	case o.PaymentStatus == order.PaymentPaid:
		writeServiceError(c, order.ErrAlreadyPaid)
		return
	case o.Status == order.StatusCancelled:
		writeServiceError(c, order.ErrInvalidState)
		return
	}
	intent, err := h.wallet.CardIntent(ctx, actor.UserID, o.ID, o.Price)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, intent)
}

type cardConfirmReq struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// CardConfirm records the provider outcome on the order. A still-pending
// intent leaves the order untouched and answers 202.
func (h *WalletHandler) CardConfirm(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cardConfirmReq
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	actor := middleware.Caller(c)
	o, err := h.orders.Get(ctx, actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if o.CustomerID != actor.UserID {
		writeServiceError(c, order.ErrForbidden)
		return
	}
	status, err := h.wallet.CardOutcome(ctx, id, req.PaymentIntentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	var outcome order.PaymentOutcome
	switch status {
	case payment.IntentSucceeded:
		outcome = order.OutcomeSucceeded
	case payment.IntentFailed:
		outcome = order.OutcomeFailed
	default:
		writeJSON(c, http.StatusAccepted, gin.H{"order_id": id, "payment_status": order.PaymentPending})
		return
	}
	o, err = h.orders.RecordPayment(ctx, actor, id, order.MethodCard, outcome, req.PaymentIntentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
