package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v76"
)

type stubCustomers struct {
	got *stripe.CustomerParams
}

func (s *stubCustomers) New(p *stripe.CustomerParams) (*stripe.Customer, error) {
	s.got = p
	return &stripe.Customer{ID: "cus_123"}, nil
}

type stubIntents struct {
	got    *stripe.PaymentIntentParams
	status stripe.PaymentIntentStatus
	err    error
}

func (s *stubIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.got = p
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, nil
}

func (s *stubIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.PaymentIntent{ID: id, Status: s.status, Metadata: map[string]string{"order_id": "9"}}, nil
}

type stubKeys struct{}

func (stubKeys) New(p *stripe.EphemeralKeyParams) (*stripe.EphemeralKey, error) {
	return &stripe.EphemeralKey{Secret: "ek_" + *p.Customer}, nil
}

func TestCreatePaymentIntentParams(t *testing.T) {
	intents := &stubIntents{}
	s := &Stripe{customers: &stubCustomers{}, intents: intents, keys: stubKeys{}, currency: "thb"}

	in, err := s.CreatePaymentIntent(context.Background(), 5580, "cus_123", map[string]string{"order_id": "9"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if in.ID != "pi_1" || in.ClientSecret != "pi_1_secret" || in.Status != IntentPending {
		t.Fatalf("unexpected intent: %+v", in)
	}
	if *intents.got.Amount != 5580 || *intents.got.Currency != "thb" || *intents.got.Customer != "cus_123" {
		t.Fatalf("unexpected params: amount=%d currency=%s", *intents.got.Amount, *intents.got.Currency)
	}
	if intents.got.Metadata["order_id"] != "9" {
		t.Fatalf("metadata not forwarded: %v", intents.got.Metadata)
	}
}

func TestRetrieveIntentStatusMapping(t *testing.T) {
	cases := map[stripe.PaymentIntentStatus]IntentStatus{
		stripe.PaymentIntentStatusSucceeded:             IntentSucceeded,
		stripe.PaymentIntentStatusCanceled:              IntentFailed,
		stripe.PaymentIntentStatusProcessing:            IntentPending,
		stripe.PaymentIntentStatusRequiresPaymentMethod: IntentPending,
	}
	for in, want := range cases {
		s := &Stripe{intents: &stubIntents{status: in}}
		got, err := s.RetrieveIntent(context.Background(), "pi_1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != want || got.Metadata["order_id"] != "9" {
			t.Errorf("%s: got %+v, want %s", in, got, want)
		}
	}
}

func TestUpstreamErrorsAreWrapped(t *testing.T) {
	s := &Stripe{intents: &stubIntents{err: errors.New("card_declined")}}
	if _, err := s.RetrieveIntent(context.Background(), "pi_1"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if _, err := (Disabled{}).CreateCustomer(context.Background(), 1, "", ""); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream from Disabled, got %v", err)
	}
}

func TestCreateCustomerAndKey(t *testing.T) {
	customers := &stubCustomers{}
	s := &Stripe{customers: customers, keys: stubKeys{}}
	id, err := s.CreateCustomer(context.Background(), 42, "a@b.c", "Ann")
	if err != nil || id != "cus_123" {
		t.Fatalf("create customer: %s %v", id, err)
	}
	if customers.got.Metadata["user_id"] != "42" || *customers.got.Email != "a@b.c" {
		t.Fatalf("unexpected customer params")
	}
	key, err := s.CreateEphemeralKey(context.Background(), id)
	if err != nil || key != "ek_cus_123" {
		t.Fatalf("ephemeral key: %s %v", key, err)
	}
}
