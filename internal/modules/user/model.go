// README: Platform accounts; customers, drivers and admins share one table.
package user

import (
	"errors"
	"time"

	"petride/internal/types"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleDriver || r == RoleAdmin
}

var (
	ErrNotFound           = errors.New("user not found")
	ErrConflict           = errors.New("user already exists")
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID               int64       `json:"id"`
	FullName         string      `json:"full_name"`
	Email            string      `json:"email,omitempty"`
	Phone            string      `json:"phone,omitempty"`
	Role             Role        `json:"role"`
	WalletBalance    types.Money `json:"wallet_balance"`
	StripeCustomerID string      `json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
}

type RegisterCommand struct {
	FullName string
	Email    string
	Phone    string
	Password string
	Role     Role
}

type LoginCommand struct {
	// Login is an email address or a phone number.
	Login    string
	Password string
}
