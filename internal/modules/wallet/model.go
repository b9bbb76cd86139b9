// README: Wallet ledger rows and top-up intents.
package wallet

import (
	"errors"
	"time"

	"petride/internal/types"
)

type TxType string

const (
	TypeTopUp   TxType = "topup"
	TypePayment TxType = "payment"
	TypeEarning TxType = "earning"
)

type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

var (
	ErrNotFound   = errors.New("transaction not found")
	ErrBadRequest = errors.New("bad request")
)

// Top-ups outside this range are rejected before reaching the provider.
const (
	minTopUp types.Money = 2000
	maxTopUp types.Money = 5000000
)

type Transaction struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	OrderID     *int64      `json:"order_id,omitempty"`
	Amount      types.Money `json:"amount"`
	Type        TxType      `json:"type"`
	Status      TxStatus    `json:"status"`
	Description string      `json:"description"`
	ReferenceID string      `json:"reference_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TopUpIntent is what a mobile client needs to open the provider's payment sheet.
type TopUpIntent struct {
	PaymentIntent  string `json:"payment_intent"`
	EphemeralKey   string `json:"ephemeral_key"`
	Customer       string `json:"customer"`
	PublishableKey string `json:"publishable_key"`
	TransactionID  int64  `json:"transaction_id"`
}

// CardIntent is the client secret for paying one order by card.
type CardIntent struct {
	PaymentIntent  string `json:"payment_intent"`
	IntentID       string `json:"payment_intent_id"`
	EphemeralKey   string `json:"ephemeral_key"`
	Customer       string `json:"customer"`
	PublishableKey string `json:"publishable_key"`
}
