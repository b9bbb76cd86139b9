package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"petride/internal/logger"
	"petride/internal/modules/user"
	"petride/internal/payment"
	"petride/internal/testutil"
	"petride/internal/types"
)

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	balances map[int64]types.Money
	txs      map[int64]*Transaction
}

func newMemStore() *memStore {
	return &memStore{balances: map[int64]types.Money{}, txs: map[int64]*Transaction{}}
}

func (m *memStore) Balance(_ context.Context, userID int64) (types.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *memStore) Transactions(_ context.Context, userID int64) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for id := m.nextID; id > 0; id-- {
		if t, ok := m.txs[id]; ok && t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) CreatePending(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	t.Status = StatusPending
	t.CreatedAt = time.Now()
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id, userID int64) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Settle(_ context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || t.UserID != userID || t.Status != StatusPending {
		return false, nil
	}
	t.Status = StatusCompleted
	m.balances[userID] += t.Amount
	return true, nil
}

func (m *memStore) MarkFailed(_ context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || t.UserID != userID || t.Status != StatusPending {
		return false, nil
	}
	t.Status = StatusFailed
	return true, nil
}

type memUsers struct {
	users map[int64]*user.User
}

func (m *memUsers) Get(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) SetStripeCustomerID(_ context.Context, id int64, customerID string) error {
	m.users[id].StripeCustomerID = customerID
	return nil
}

type fakeProvider struct {
	customers int
	status    payment.IntentStatus
	metadata  map[string]string
	lastMeta  map[string]string
	err       error
}

func (f *fakeProvider) CreateCustomer(context.Context, int64, string, string) (string, error) {
	f.customers++
	return "cus_1", nil
}

func (f *fakeProvider) CreatePaymentIntent(_ context.Context, _ types.Money, _ string, md map[string]string) (payment.Intent, error) {
	if f.err != nil {
		return payment.Intent{}, f.err
	}
	f.lastMeta = md
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: payment.IntentPending}, nil
}

func (f *fakeProvider) CreateEphemeralKey(context.Context, string) (string, error) { return "ek_1", nil }

func (f *fakeProvider) RetrieveIntent(_ context.Context, id string) (payment.Intent, error) {
	if f.err != nil {
		return payment.Intent{}, f.err
	}
	return payment.Intent{ID: id, Status: f.status, Metadata: f.metadata}, nil
}

func (f *fakeProvider) PublishableKey() string { return "pk_test" }

func newTestService() (*Service, *memStore, *fakeProvider) {
	store := newMemStore()
	users := &memUsers{users: map[int64]*user.User{1: {ID: 1, FullName: "Ann", Email: "ann@example.com"}}}
	provider := &fakeProvider{status: payment.IntentPending}
	return NewService(store, users, provider, logger.NewNop()), store, provider
}

func TestTopUpCreditsOnce(t *testing.T) {
	svc, store, provider := newTestService()
	ctx := context.Background()

	intent, err := svc.TopUp(ctx, 1, 50000, "")
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if intent.PaymentIntent != "pi_1_secret" || intent.Customer != "cus_1" || intent.PublishableKey != "pk_test" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if provider.lastMeta["type"] != "wallet_topup" || provider.lastMeta["user_id"] != "1" {
		t.Fatalf("unexpected metadata: %v", provider.lastMeta)
	}

	tx, err := svc.VerifyTopUp(ctx, 1, intent.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != StatusPending || store.balances[1] != 0 {
		t.Fatalf("pending intent must not credit: %+v balance=%d", tx, store.balances[1])
	}

	provider.status = payment.IntentSucceeded
	for i := 0; i < 3; i++ {
		tx, err = svc.VerifyTopUp(ctx, 1, intent.TransactionID)
		if err != nil {
			t.Fatal(err)
		}
	}
	if tx.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", tx.Status)
	}
	if store.balances[1] != 50000 {
		t.Fatalf("expected single credit of 50000, got %d", store.balances[1])
	}

	if _, err := svc.TopUp(ctx, 1, 10000, "promptpay"); err != nil {
		t.Fatal(err)
	}
	if provider.customers != 1 {
		t.Fatalf("provider customer should be created once, got %d", provider.customers)
	}
}

func TestTopUpCanceledMarksFailed(t *testing.T) {
	svc, store, provider := newTestService()
	ctx := context.Background()
	intent, err := svc.TopUp(ctx, 1, 10000, "card")
	if err != nil {
		t.Fatal(err)
	}
	provider.status = payment.IntentFailed
	tx, err := svc.VerifyTopUp(ctx, 1, intent.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != StatusFailed || store.balances[1] != 0 {
		t.Fatalf("expected failed without credit, got %+v", tx)
	}
}

func TestTopUpValidationAndOwnership(t *testing.T) {
	svc, _, provider := newTestService()
	ctx := context.Background()
	if _, err := svc.TopUp(ctx, 1, 100, "card"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	intent, err := svc.TopUp(ctx, 1, 10000, "card")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.VerifyTopUp(ctx, 2, intent.TransactionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	provider.err = payment.ErrUpstream
	if _, err := svc.VerifyTopUp(ctx, 1, intent.TransactionID); !errors.Is(err, payment.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestCardOutcomeChecksOrder(t *testing.T) {
	svc, _, provider := newTestService()
	ctx := context.Background()
	ci, err := svc.CardIntent(ctx, 1, 9, 6000)
	if err != nil {
		t.Fatal(err)
	}
	if ci.IntentID != "pi_1" || provider.lastMeta["order_id"] != "9" {
		t.Fatalf("unexpected card intent: %+v %v", ci, provider.lastMeta)
	}

	provider.status = payment.IntentSucceeded
	provider.metadata = map[string]string{"order_id": "9"}
	status, err := svc.CardOutcome(ctx, 9, "pi_1")
	if err != nil || status != payment.IntentSucceeded {
		t.Fatalf("expected succeeded, got %s %v", status, err)
	}
	if _, err := svc.CardOutcome(ctx, 10, "pi_1"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for foreign intent, got %v", err)
	}
}

func TestStoreSettleOnce(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	userID := testutil.SeedUser(t, db, "customer", 1000)
	store := NewStore(db)

	tx := &Transaction{UserID: userID, Amount: 50000, Type: TypeTopUp, Description: "Top-up via card", ReferenceID: "pi_x"}
	if err := store.CreatePending(ctx, tx); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Settle(ctx, tx.ID, userID)
			if err != nil {
				t.Errorf("settle: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	credited := 0
	for ok := range results {
		if ok {
			credited++
		}
	}
	if credited != 1 {
		t.Fatalf("expected exactly one credit, got %d", credited)
	}

	balance, err := store.Balance(ctx, userID)
	if err != nil || balance != 51000 {
		t.Fatalf("expected balance 51000, got %d %v", balance, err)
	}
	got, err := store.Get(ctx, tx.ID, userID)
	if err != nil || got.Status != StatusCompleted || got.ReferenceID != "pi_x" {
		t.Fatalf("unexpected row: %+v %v", got, err)
	}
	if _, err := store.Get(ctx, tx.ID, userID+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
}
