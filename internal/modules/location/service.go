// README: Location service validates driver position updates and answers nearby queries.
package location

import (
	"context"
	"errors"

	"petride/internal/types"
)

var ErrInvalidPoint = errors.New("invalid coordinates")

type Repository interface {
	Upsert(ctx context.Context, driverID int64, p types.Point) (Location, error)
	Get(ctx context.Context, driverID int64) (Location, error)
	Remove(ctx context.Context, driverID int64) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error)
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

func (s *Service) Update(ctx context.Context, driverID int64, p types.Point) (Location, error) {
	if !p.Valid() {
		return Location{}, ErrInvalidPoint
	}
	return s.store.Upsert(ctx, driverID, p)
}

// Get returns ErrNotFound when the driver never reported a position.
func (s *Service) Get(ctx context.Context, driverID int64) (Location, error) {
	return s.store.Get(ctx, driverID)
}

func (s *Service) Forget(ctx context.Context, driverID int64) error {
	return s.store.Remove(ctx, driverID)
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	if !p.Valid() || radiusKm <= 0 {
		return nil, ErrInvalidPoint
	}
	return s.store.Nearby(ctx, p, radiusKm, limit)
}
