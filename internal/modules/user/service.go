// README: User service handles registration and password login.
package user

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	Create(ctx context.Context, u *User, passwordHash string) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, string, error)
}

// TokenIssuer signs identity tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID int64, role string) (string, error)
}

type Service struct {
	store  Repository
	issuer TokenIssuer
}

func NewService(store Repository, issuer TokenIssuer) *Service {
	return &Service{store: store, issuer: issuer}
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	cmd.Email = strings.TrimSpace(strings.ToLower(cmd.Email))
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	if cmd.Email == "" && cmd.Phone == "" {
		return nil, ErrBadRequest
	}
	if len(cmd.Password) < 8 {
		return nil, ErrBadRequest
	}
	if cmd.Role == "" {
		cmd.Role = RoleCustomer
	}
	// Admins are provisioned out of band.
	if cmd.Role != RoleCustomer && cmd.Role != RoleDriver {
		return nil, ErrBadRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		FullName: strings.TrimSpace(cmd.FullName),
		Email:    cmd.Email,
		Phone:    cmd.Phone,
		Role:     cmd.Role,
	}
	if err := s.store.Create(ctx, u, string(hash)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, cmd LoginCommand) (string, *User, error) {
	login := strings.TrimSpace(cmd.Login)
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
	}
	u, hash, err := s.store.GetByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(cmd.Password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(u.ID, string(u.Role))
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.store.Get(ctx, id)
}
