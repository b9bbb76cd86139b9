package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"petride/internal/logger"
	"petride/internal/modules/decline"
	"petride/internal/modules/driver"
)

type ledgerRow struct {
	userID  int64
	orderID int64
	amount  int64
	kind    string
}

// memStore mirrors the Postgres store's compare-and-swap and wallet semantics.
type memStore struct {
	mu          sync.Mutex
	orders      map[int64]*Order
	nextID      int64
	events      []Event
	balances    map[int64]int64
	driverUsers map[int64]int64
	ledger      []ledgerRow
}

func newMemStore() *memStore {
	return &memStore{
		orders:      make(map[int64]*Order),
		balances:    make(map[int64]int64),
		driverUsers: make(map[int64]int64),
	}
}

func clone(o *Order) *Order {
	cp := *o
	if o.DriverID != nil {
		d := *o.DriverID
		cp.DriverID = &d
	}
	cp.PetIDs = append([]int64(nil), o.PetIDs...)
	return &cp
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	m.orders[o.ID] = clone(o)
	m.events = append(m.events, Event{OrderID: o.ID, ToStatus: o.Status, ActorType: RoleCustomer})
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(o), nil
}

func (m *memStore) Transition(_ context.Context, tr Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(tr), nil
}

func (m *memStore) transitionLocked(tr Transition) bool {
	o, ok := m.orders[tr.OrderID]
	if !ok || o.Status != tr.From || o.StatusVersion != tr.Version {
		return false
	}
	if tr.RequirePaid && o.PaymentStatus != PaymentPaid {
		return false
	}
	o.Status = tr.To
	o.StatusVersion++
	switch {
	case tr.ClearDriver:
		o.DriverID = nil
	case tr.DriverID != nil:
		d := *tr.DriverID
		o.DriverID = &d
	}
	actor := tr.ActorID
	m.events = append(m.events, Event{OrderID: o.ID, FromStatus: tr.From, ToStatus: tr.To, ActorType: tr.ActorType, ActorID: &actor})
	return true
}

func (m *memStore) UpdateDetails(_ context.Context, id int64, p Patch, tr *Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	if tr != nil && o.StatusVersion != tr.Version {
		return false, nil
	}
	before := clone(o)
	if p.PickupAddress != nil {
		o.PickupAddress = *p.PickupAddress
	}
	if p.DropoffAddress != nil {
		o.DropoffAddress = *p.DropoffAddress
	}
	if p.PetDetails != nil {
		o.PetDetails = *p.PetDetails
	}
	if p.Passengers != nil {
		o.Passengers = *p.Passengers
	}
	if tr != nil && !m.transitionLocked(*tr) {
		m.orders[id] = before
		return false, nil
	}
	return true, nil
}

func (m *memStore) SetPayment(_ context.Context, id int64, status PaymentStatus, method PaymentMethod, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus == PaymentPaid {
		return false, nil
	}
	o.PaymentStatus, o.PaymentMethod, o.PaymentReference = status, method, ref
	return true, nil
}

func (m *memStore) PayWithWallet(_ context.Context, id, customerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.CustomerID != customerID {
		return ErrForbidden
	}
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if o.Status == StatusCancelled || o.DriverID == nil {
		return fmt.Errorf("%w: current status %s", ErrInvalidState, o.Status)
	}
	if m.balances[customerID] < int64(o.Price) {
		return ErrInsufficientFunds
	}
	driverUser := m.driverUsers[*o.DriverID]
	m.balances[customerID] -= int64(o.Price)
	m.balances[driverUser] += int64(o.DriverEarnings)
	m.ledger = append(m.ledger,
		ledgerRow{userID: customerID, orderID: id, amount: -int64(o.Price), kind: "payment"},
		ledgerRow{userID: driverUser, orderID: id, amount: int64(o.DriverEarnings), kind: "earning"},
	)
	o.PaymentStatus, o.PaymentMethod = PaymentPaid, MethodWallet
	return nil
}

func (m *memStore) ListByCustomer(_ context.Context, customerID int64) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for id := m.nextID; id > 0; id-- {
		if o, ok := m.orders[id]; ok && o.CustomerID == customerID {
			out = append(out, *clone(o))
		}
	}
	return out, nil
}

type fixedSettings struct {
	mu   sync.Mutex
	rate float64
}

func (f *fixedSettings) GetFloat(_ context.Context, _ string, _ float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate, nil
}

func (f *fixedSettings) set(rate float64) {
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *recordingPublisher) PublishStatus(_ context.Context, _ int64, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, payload.(StatusEvent))
	return nil
}

func (r *recordingPublisher) last() StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type knownDrivers map[int64]bool

func (k knownDrivers) Get(_ context.Context, id int64) (*driver.Driver, error) {
	if !k[id] {
		return nil, driver.ErrNotFound
	}
	return &driver.Driver{ID: id}, nil
}

// ownedPets maps pet id to owner id.
type ownedPets map[int64]int64

func (o ownedPets) OwnsAll(_ context.Context, ownerID int64, ids []int64) (bool, error) {
	for _, id := range ids {
		if o[id] != ownerID {
			return false, nil
		}
	}
	return true, nil
}

type testEnv struct {
	svc      *Service
	store    *memStore
	declines *decline.Memory
	settings *fixedSettings
	events   *recordingPublisher
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newMemStore(),
		declines: decline.NewMemory(),
		settings: &fixedSettings{rate: 0.07},
		events:   &recordingPublisher{},
	}
	env.svc = NewService(env.store, env.declines, env.settings, logger.NewNop())
	env.svc.SetPublisher(env.events)
	return env
}

func customer(id int64) Actor { return Actor{UserID: id, Role: RoleCustomer} }

func driverActor(userID, driverID int64) Actor {
	d := driverID
	return Actor{UserID: userID, Role: RoleDriver, DriverID: &d}
}
