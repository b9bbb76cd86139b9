// README: Driver service manages registration, availability, work radius and earnings.
package driver

import (
	"context"
	"strings"
	"time"

	"petride/internal/logger"
	"petride/internal/modules/location"
	"petride/internal/types"
)

type Repository interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id int64) (*Driver, error)
	GetByUserID(ctx context.Context, userID int64) (*Driver, error)
	SetOnline(ctx context.Context, id int64, online bool) error
	SetWorkRadius(ctx context.Context, id int64, radiusKm float64) error
	SetDeviceToken(ctx context.Context, id int64, token string) error
	Earnings(ctx context.Context, id int64, from, to time.Time) (Earnings, error)
	CompletedTrips(ctx context.Context, id int64) (int, error)
}

// Locations is the slice of the location service the driver service needs.
type Locations interface {
	Update(ctx context.Context, driverID int64, p types.Point) (location.Location, error)
	Forget(ctx context.Context, driverID int64) error
}

var vehicleTypes = map[string]bool{"car": true, "suv": true, "van": true}

type Service struct {
	store     Repository
	locations Locations
	log       logger.ILogger
	now       func() time.Time
}

func NewService(store Repository, locations Locations, log logger.ILogger) *Service {
	return &Service{store: store, locations: locations, log: log, now: time.Now}
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	vt := strings.ToLower(strings.TrimSpace(cmd.VehicleType))
	if vt == "" {
		vt = "car"
	}
	if cmd.UserID <= 0 || !vehicleTypes[vt] {
		return nil, ErrBadRequest
	}
	d := &Driver{
		UserID:       cmd.UserID,
		VehicleType:  vt,
		VehiclePlate: strings.TrimSpace(cmd.VehiclePlate),
		WorkRadiusKm: DefaultWorkRadiusKm,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Driver, error) {
	return s.store.GetByUserID(ctx, userID)
}

// SetOnline toggles availability. Coming online with a point records the
// driver's location; going offline removes the driver from nearby lookups.
func (s *Service) SetOnline(ctx context.Context, id int64, online bool, at *types.Point) (*Driver, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if at != nil && !at.Valid() {
		return nil, ErrBadRequest
	}
	wasOnline := d.IsOnline
	if err := s.store.SetOnline(ctx, id, online); err != nil {
		return nil, err
	}
	d.IsOnline = online

	switch {
	case !wasOnline && online && at != nil:
		if _, err := s.locations.Update(ctx, id, *at); err != nil {
			return nil, err
		}
	case wasOnline && !online:
		if err := s.locations.Forget(ctx, id); err != nil {
			s.log.Warning("failed to drop driver from geo index", logger.Int64("driver_id", id), logger.Error(err))
		}
	}
	return d, nil
}

func (s *Service) UpdateSettings(ctx context.Context, id int64, workRadiusKm *float64) (*Driver, error) {
	if workRadiusKm != nil {
		r := *workRadiusKm
		if r < MinWorkRadiusKm || r > MaxWorkRadiusKm {
			return nil, ErrInvalidRadius
		}
		if err := s.store.SetWorkRadius(ctx, id, r); err != nil {
			return nil, err
		}
	}
	return s.store.Get(ctx, id)
}

func (s *Service) SetDeviceToken(ctx context.Context, id int64, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrBadRequest
	}
	return s.store.SetDeviceToken(ctx, id, token)
}

func (s *Service) EarningsSummary(ctx context.Context, id int64, period Period) (Earnings, error) {
	if period == "" {
		period = PeriodDaily
	}
	now := s.now().UTC()
	from, ok := period.Window(now)
	if !ok {
		return Earnings{}, ErrBadRequest
	}
	e, err := s.store.Earnings(ctx, id, from, now)
	if err != nil {
		return Earnings{}, err
	}
	e.Period = period
	e.StartDate = from
	e.EndDate = now
	return e, nil
}

func (s *Service) Stats(ctx context.Context, id int64) (Stats, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	trips, err := s.store.CompletedTrips(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	years := int(s.now().Sub(d.CreatedAt).Hours() / 24 / 365.25)
	if years < 0 {
		years = 0
	}
	return Stats{TotalTrips: trips, YearsActive: years}, nil
}
