package pet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"petride/internal/testutil"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	pets   []Pet
	types  []Type
}

func newMemStore() *memStore {
	return &memStore{types: []Type{{ID: 1, Name: "dog"}, {ID: 2, Name: "cat"}}}
}

func (m *memStore) Create(_ context.Context, p *Pet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.pets = append(m.pets, *p)
	return nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID int64) ([]Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Pet
	for _, p := range m.pets {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetOwned(_ context.Context, ownerID, id int64) (*Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pets {
		if p.ID == id && p.OwnerID == ownerID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CountOwned(_ context.Context, ownerID int64, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pets {
		for _, id := range ids {
			if p.ID == id && p.OwnerID == ownerID {
				n++
			}
		}
	}
	return n, nil
}

func (m *memStore) Types(context.Context) ([]Type, error) {
	return m.types, nil
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	heavy, zero := 151.0, 0.0

	cases := map[string]CreateCommand{
		"blank name":   {Name: "  "},
		"unknown type": {Name: "Mochi", Type: "dragon"},
		"too heavy":    {Name: "Mochi", WeightKg: &heavy},
		"zero weight":  {Name: "Mochi", WeightKg: &zero},
	}
	for name, cmd := range cases {
		if _, err := svc.Create(ctx, 10, cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("%s: expected ErrBadRequest, got %v", name, err)
		}
	}

	w := 8.5
	p, err := svc.Create(ctx, 10, CreateCommand{Name: " Mochi ", Type: "Dog", Breed: "Shiba", WeightKg: &w})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 || p.Name != "Mochi" || p.Type != "dog" || p.OwnerID != 10 {
		t.Fatalf("unexpected pet: %+v", p)
	}
}

func TestGetAndListAreOwnerScoped(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	mine, _ := svc.Create(ctx, 10, CreateCommand{Name: "Mochi"})
	theirs, _ := svc.Create(ctx, 11, CreateCommand{Name: "Tofu"})

	if _, err := svc.Get(ctx, 10, theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign pet: expected ErrNotFound, got %v", err)
	}
	if got, err := svc.Get(ctx, 10, mine.ID); err != nil || got.Name != "Mochi" {
		t.Fatalf("own pet: %v %+v", err, got)
	}

	pets, err := svc.List(ctx, 12)
	if err != nil || pets == nil || len(pets) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v %v", pets, err)
	}
}

func TestOwnsAll(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	a, _ := svc.Create(ctx, 10, CreateCommand{Name: "Mochi"})
	b, _ := svc.Create(ctx, 10, CreateCommand{Name: "Kuma"})
	c, _ := svc.Create(ctx, 11, CreateCommand{Name: "Tofu"})

	cases := []struct {
		ids  []int64
		want bool
	}{
		{nil, true},
		{[]int64{a.ID, b.ID}, true},
		{[]int64{a.ID, c.ID}, false},
		{[]int64{a.ID, 999}, false},
	}
	for _, tc := range cases {
		got, err := svc.OwnsAll(ctx, 10, tc.ids)
		if err != nil || got != tc.want {
			t.Errorf("OwnsAll(%v) = %v, %v; want %v", tc.ids, got, err, tc.want)
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "customer", 0)
	other := testutil.SeedUser(t, db, "customer", 0)
	svc := NewService(NewStore(db))

	types, err := svc.Types(ctx)
	if err != nil || len(types) == 0 || types[0].Name != "dog" {
		t.Fatalf("expected seeded pet types, got %+v %v", types, err)
	}

	w := 4.2
	p, err := svc.Create(ctx, owner, CreateCommand{Name: "Mochi", Type: "cat", WeightKg: &w})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Get(ctx, owner, p.ID)
	if err != nil || got.WeightKg == nil || *got.WeightKg != 4.2 || got.Type != "cat" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := svc.Get(ctx, other, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign get: expected ErrNotFound, got %v", err)
	}
	if ok, err := svc.OwnsAll(ctx, other, []int64{p.ID}); err != nil || ok {
		t.Fatalf("foreign ownership: ok=%v err=%v", ok, err)
	}
}
