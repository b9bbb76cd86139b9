package middleware

import (
	"context"
	"errors"

	"petride/internal/infra"
	"petride/internal/modules/driver"
	"petride/internal/modules/order"
)

type DriverLookup interface {
	GetByUserID(ctx context.Context, userID int64) (*driver.Driver, error)
}

// Identity verifies tokens and attaches the driver profile id for drivers.
type Identity struct {
	verifier infra.TokenVerifier
	drivers  DriverLookup
}

func NewIdentity(verifier infra.TokenVerifier, drivers DriverLookup) *Identity {
	return &Identity{verifier: verifier, drivers: drivers}
}

func (i *Identity) Authenticate(ctx context.Context, raw string) (order.Actor, error) {
	tok, err := i.verifier.VerifyToken(ctx, raw)
	if err != nil {
		return order.Actor{}, err
	}
	actor := order.Actor{UserID: tok.UserID, Role: tok.Role}
	if tok.Role != order.RoleDriver {
		return actor, nil
	}
	d, err := i.drivers.GetByUserID(ctx, tok.UserID)
	switch {
	case err == nil:
		id := d.ID
		actor.DriverID = &id
	case errors.Is(err, driver.ErrNotFound):
		// Driver account without a profile yet; it can only register one.
	default:
		return order.Actor{}, err
	}
	return actor, nil
}
