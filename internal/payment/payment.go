// README: Payment provider adapter; Stripe in production, Disabled when no key is configured.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"petride/internal/types"
)

// ErrUpstream wraps every failure reported by the provider.
var ErrUpstream = errors.New("payment provider error")

type IntentStatus string

const (
	IntentSucceeded IntentStatus = "succeeded"
	IntentPending   IntentStatus = "pending"
	IntentFailed    IntentStatus = "failed"
)

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Metadata     map[string]string
}

type Provider interface {
	CreateCustomer(ctx context.Context, userID int64, email, name string) (string, error)
	CreatePaymentIntent(ctx context.Context, amount types.Money, customerID string, metadata map[string]string) (Intent, error)
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
	PublishableKey() string
}

type customerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type ephemeralKeyAPI interface {
	New(params *stripe.EphemeralKeyParams) (*stripe.EphemeralKey, error)
}

// stripeAPIVersion pins the ephemeral key format expected by the mobile SDKs.
const stripeAPIVersion = "2022-11-15"

type Stripe struct {
	customers   customerAPI
	intents     intentAPI
	keys        ephemeralKeyAPI
	currency    string
	publishable string
}

func NewStripe(secretKey, publishableKey, currency string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{
		customers:   sc.Customers,
		intents:     sc.PaymentIntents,
		keys:        sc.EphemeralKeys,
		currency:    currency,
		publishable: publishableKey,
	}
}

func (s *Stripe) PublishableKey() string { return s.publishable }

func (s *Stripe) CreateCustomer(ctx context.Context, userID int64, email, name string) (string, error) {
	params := &stripe.CustomerParams{Name: stripe.String(name)}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))
	c, err := s.customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrUpstream, err)
	}
	return c.ID, nil
}

// CreatePaymentIntent charges amount in minor units, which is what the
// provider expects for THB.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, amount types.Money, customerID string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount)),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := s.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: create payment intent: %v", ErrUpstream, err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: mapStatus(pi.Status)}, nil
}

func (s *Stripe) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(stripeAPIVersion),
	}
	params.Context = ctx
	k, err := s.keys.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create ephemeral key: %v", ErrUpstream, err)
	}
	return k.Secret, nil
}

func (s *Stripe) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.intents.Get(id, params)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: retrieve payment intent: %v", ErrUpstream, err)
	}
	return Intent{ID: pi.ID, Status: mapStatus(pi.Status), Metadata: pi.Metadata}, nil
}

// mapStatus folds the provider's lifecycle into the three outcomes the
// platform acts on. Only an explicit cancel counts as failed; a declined
// card leaves the intent open for another attempt.
func mapStatus(s stripe.PaymentIntentStatus) IntentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentFailed
	default:
		return IntentPending
	}
}

// Disabled is used when no provider key is configured.
type Disabled struct{}

var errDisabled = fmt.Errorf("%w: payments are not configured", ErrUpstream)

func (Disabled) CreateCustomer(context.Context, int64, string, string) (string, error) {
	return "", errDisabled
}

func (Disabled) CreatePaymentIntent(context.Context, types.Money, string, map[string]string) (Intent, error) {
	return Intent{}, errDisabled
}

func (Disabled) CreateEphemeralKey(context.Context, string) (string, error) { return "", errDisabled }

func (Disabled) RetrieveIntent(context.Context, string) (Intent, error) { return Intent{}, errDisabled }

func (Disabled) PublishableKey() string { return "" }
