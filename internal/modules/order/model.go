// README: Order aggregate, status definitions and the actors allowed to move it.
package order

import (
	"errors"
	"time"

	"petride/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodWallet PaymentMethod = "wallet"
	MethodCard   PaymentMethod = "card"
	MethodCash   PaymentMethod = "cash"
)

const DefaultCommissionRate = 0.07

var (
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrUnpaid            = errors.New("order is not paid")
	ErrAlreadyPaid       = errors.New("order already paid")
)

type Order struct {
	ID               int64         `json:"id"`
	CustomerID       int64         `json:"customer_id"`
	DriverID         *int64        `json:"driver_id"`
	Status           Status        `json:"status"`
	StatusVersion    int           `json:"status_version"`
	PickupAddress    string        `json:"pickup_address"`
	Pickup           types.Point   `json:"pickup"`
	DropoffAddress   string        `json:"dropoff_address"`
	Dropoff          types.Point   `json:"dropoff"`
	Price            types.Money   `json:"price"`
	PlatformFee      types.Money   `json:"platform_fee"`
	DriverEarnings   types.Money   `json:"driver_earnings"`
	CommissionRate   float64       `json:"commission_rate"`
	Passengers       int           `json:"passengers"`
	PetDetails       string        `json:"pet_details"`
	PetIDs           []int64       `json:"pet_ids"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentMethod    PaymentMethod `json:"payment_method,omitempty"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// AssignedTo reports whether driverID currently holds the order.
func (o *Order) AssignedTo(driverID int64) bool {
	return o.DriverID != nil && *o.DriverID == driverID
}

type Event struct {
	ID         int64
	OrderID    int64
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *int64
	CreatedAt  time.Time
}

// AllowedTransitions represents the order state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusPending, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller. DriverID is set when the user has a driver profile.
type Actor struct {
	UserID   int64
	Role     string
	DriverID *int64
}

func (a Actor) IsDriver() bool { return a.Role == RoleDriver && a.DriverID != nil }

type CreateCommand struct {
	PickupAddress  string
	Pickup         types.Point
	DropoffAddress string
	Dropoff        types.Point
	Price          types.Money
	Passengers     int
	PetDetails     string
	PetIDs         []int64
}

// Patch carries optional updates. Detail fields apply only while the order is
// pending; Status is a synonym for one of the named transitions.
type Patch struct {
	PickupAddress  *string
	DropoffAddress *string
	PetDetails     *string
	Passengers     *int
	Status         *Status
}

func (p Patch) hasDetails() bool {
	return p.PickupAddress != nil || p.DropoffAddress != nil || p.PetDetails != nil || p.Passengers != nil
}

// Transition is one compare-and-swap status change plus its audit event.
type Transition struct {
	OrderID     int64
	From        Status
	To          Status
	Version     int
	DriverID    *int64
	ClearDriver bool
	RequirePaid bool
	ActorType   string
	ActorID     int64
}

type PaymentOutcome string

const (
	OutcomeSucceeded PaymentOutcome = "succeeded"
	OutcomeFailed    PaymentOutcome = "failed"
)

type ListFilter struct {
	Status   *Status
	DriverID *int64
}
