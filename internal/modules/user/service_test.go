package user

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type memStore struct {
	users  map[int64]*User
	hashes map[int64]string
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]*User{}, hashes: map[int64]string{}}
}

func (m *memStore) Create(_ context.Context, u *User, hash string) error {
	for _, existing := range m.users {
		if (u.Email != "" && existing.Email == u.Email) || (u.Phone != "" && existing.Phone == u.Phone) {
			return ErrConflict
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.ID] = &cp
	m.hashes[u.ID] = hash
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByLogin(_ context.Context, login string) (*User, string, error) {
	for id, u := range m.users {
		if u.Email == login || u.Phone == login {
			return u, m.hashes[id], nil
		}
	}
	return nil, "", ErrNotFound
}

type stubIssuer struct{}

func (stubIssuer) Issue(userID int64, role string) (string, error) {
	return fmt.Sprintf("tok-%d-%s", userID, role), nil
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(newMemStore(), stubIssuer{})
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterCommand{FullName: "Nok", Email: "Nok@Example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != RoleCustomer || u.Email != "nok@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}

	token, got, err := svc.Login(ctx, LoginCommand{Login: "NOK@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != u.ID || token != fmt.Sprintf("tok-%d-customer", u.ID) {
		t.Fatalf("unexpected login result: %s %+v", token, got)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewService(newMemStore(), stubIssuer{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterCommand{Phone: "0812345678", Password: "secret123", Role: RoleDriver}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, LoginCommand{Login: "0812345678", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, LoginCommand{Login: "unknown", Password: "secret123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown login, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemStore(), stubIssuer{})
	ctx := context.Background()

	cases := []RegisterCommand{
		{Password: "secret123"},
		{Email: "a@b.c", Password: "short"},
		{Email: "a@b.c", Password: "secret123", Role: RoleAdmin},
	}
	for i, cmd := range cases {
		if _, err := svc.Register(ctx, cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("case %d: expected ErrBadRequest, got %v", i, err)
		}
	}

	if _, err := svc.Register(ctx, RegisterCommand{Email: "dup@x.io", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterCommand{Email: "dup@x.io", Password: "secret123"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
