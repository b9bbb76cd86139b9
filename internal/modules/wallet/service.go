// README: Wallet service: balance, ledger, provider-backed top-ups and card intents for orders.
package wallet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"petride/internal/logger"
	"petride/internal/modules/user"
	"petride/internal/payment"
	"petride/internal/types"
)

type Repository interface {
	Balance(ctx context.Context, userID int64) (types.Money, error)
	Transactions(ctx context.Context, userID int64) ([]Transaction, error)
	CreatePending(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id, userID int64) (*Transaction, error)
	Settle(ctx context.Context, id, userID int64) (bool, error)
	MarkFailed(ctx context.Context, id, userID int64) (bool, error)
}

// Customers resolves and stores the provider customer id for a user.
type Customers interface {
	Get(ctx context.Context, id int64) (*user.User, error)
	SetStripeCustomerID(ctx context.Context, id int64, customerID string) error
}

type Service struct {
	store    Repository
	users    Customers
	provider payment.Provider
	log      logger.ILogger
}

func NewService(store Repository, users Customers, provider payment.Provider, log logger.ILogger) *Service {
	return &Service{store: store, users: users, provider: provider, log: log}
}

func (s *Service) Balance(ctx context.Context, userID int64) (types.Money, error) {
	return s.store.Balance(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	txs, err := s.store.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// TopUp opens a provider payment for amount and records a pending ledger row
// referencing it. The balance moves only in VerifyTopUp.
func (s *Service) TopUp(ctx context.Context, userID int64, amount types.Money, method string) (TopUpIntent, error) {
	if amount < minTopUp || amount > maxTopUp {
		return TopUpIntent{}, fmt.Errorf("%w: amount must be between %s and %s", ErrBadRequest, minTopUp, maxTopUp)
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "card"
	}
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return TopUpIntent{}, err
	}
	key, err := s.provider.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		return TopUpIntent{}, err
	}
	intent, err := s.provider.CreatePaymentIntent(ctx, amount, customerID, map[string]string{
		"type":    "wallet_topup",
		"user_id": strconv.FormatInt(userID, 10),
		"amount":  amount.String(),
	})
	if err != nil {
		return TopUpIntent{}, err
	}

	t := &Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        TypeTopUp,
		Description: "Top-up via " + method,
		ReferenceID: intent.ID,
	}
	if err := s.store.CreatePending(ctx, t); err != nil {
		return TopUpIntent{}, err
	}
	s.log.Info("wallet top-up opened",
		logger.Int64("user_id", userID),
		logger.Int64("transaction_id", t.ID),
		logger.String("amount", amount.String()),
	)
	return TopUpIntent{
		PaymentIntent:  intent.ClientSecret,
		EphemeralKey:   key,
		Customer:       customerID,
		PublishableKey: s.provider.PublishableKey(),
		TransactionID:  t.ID,
	}, nil
}

// VerifyTopUp asks the provider for the intent status. Succeeded credits the
// balance exactly once; canceled marks the row failed; anything else leaves it pending.
func (s *Service) VerifyTopUp(ctx context.Context, userID, txID int64) (*Transaction, error) {
	t, err := s.store.Get(ctx, txID, userID)
	if err != nil {
		return nil, err
	}
	if t.Type != TypeTopUp || t.Status != StatusPending {
		return t, nil
	}

	intent, err := s.provider.RetrieveIntent(ctx, t.ReferenceID)
	if err != nil {
		return nil, err
	}
	switch intent.Status {
	case payment.IntentSucceeded:
		credited, err := s.store.Settle(ctx, txID, userID)
		if err != nil {
			return nil, err
		}
		if credited {
			s.log.Info("wallet top-up credited", logger.Int64("user_id", userID), logger.Int64("transaction_id", txID))
		}
	case payment.IntentFailed:
		if _, err := s.store.MarkFailed(ctx, txID, userID); err != nil {
			return nil, err
		}
	default:
		return t, nil
	}
	return s.store.Get(ctx, txID, userID)
}

// CardIntent opens a provider payment for an order the caller owns. The
// outcome is recorded later through CardOutcome.
func (s *Service) CardIntent(ctx context.Context, userID, orderID int64, amount types.Money) (CardIntent, error) {
	if amount <= 0 {
		return CardIntent{}, fmt.Errorf("%w: amount must be positive", ErrBadRequest)
	}
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return CardIntent{}, err
	}
	key, err := s.provider.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		return CardIntent{}, err
	}
	intent, err := s.provider.CreatePaymentIntent(ctx, amount, customerID, map[string]string{
		"order_id": strconv.FormatInt(orderID, 10),
		"user_id":  strconv.FormatInt(userID, 10),
	})
	if err != nil {
		return CardIntent{}, err
	}
	return CardIntent{
		PaymentIntent:  intent.ClientSecret,
		IntentID:       intent.ID,
		EphemeralKey:   key,
		Customer:       customerID,
		PublishableKey: s.provider.PublishableKey(),
	}, nil
}

// CardOutcome reads the provider status of an order payment intent. An
// intent opened for a different order is rejected.
func (s *Service) CardOutcome(ctx context.Context, orderID int64, intentID string) (payment.IntentStatus, error) {
	if strings.TrimSpace(intentID) == "" {
		return "", fmt.Errorf("%w: payment_intent_id is required", ErrBadRequest)
	}
	intent, err := s.provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	if intent.Metadata["order_id"] != strconv.FormatInt(orderID, 10) {
		return "", fmt.Errorf("%w: payment intent belongs to another order", ErrBadRequest)
	}
	return intent.Status, nil
}

func (s *Service) ensureCustomer(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID != "" {
		return u.StripeCustomerID, nil
	}
	id, err := s.provider.CreateCustomer(ctx, u.ID, u.Email, u.FullName)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, u.ID, id); err != nil {
		return "", err
	}
	return id, nil
}
