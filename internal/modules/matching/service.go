// README: Job visibility resolver composing orders, declines and the geofilter per driver.
package matching

import (
	"context"
	"errors"
	"sort"

	"petride/internal/modules/driver"
	"petride/internal/modules/location"
	"petride/internal/modules/order"
)

type OrderReader interface {
	ListPending(ctx context.Context) ([]order.Order, error)
	ListAssigned(ctx context.Context, driverID int64) ([]order.Order, error)
	ListByDriver(ctx context.Context, driverID int64, status *order.Status) ([]order.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]order.Order, error)
}

type DeclineReader interface {
	DeclinedOrderIDs(ctx context.Context, driverID int64) (map[int64]struct{}, error)
}

type DriverReader interface {
	Get(ctx context.Context, id int64) (*driver.Driver, error)
}

type LocationReader interface {
	Get(ctx context.Context, driverID int64) (location.Location, error)
}

type Service struct {
	orders    OrderReader
	declines  DeclineReader
	drivers   DriverReader
	locations LocationReader
}

func NewService(orders OrderReader, declines DeclineReader, drivers DriverReader, locations LocationReader) *Service {
	return &Service{orders: orders, declines: declines, drivers: drivers, locations: locations}
}

// Visible returns the caller's order list. Customers see their own orders;
// drivers get the available-jobs view unless they pass explicit filters.
func (s *Service) Visible(ctx context.Context, actor order.Actor, q Query) ([]Job, error) {
	if !actor.IsDriver() {
		return s.customerView(ctx, actor, q)
	}
	self := *actor.DriverID
	if q.DriverID != nil && *q.DriverID != self {
		return nil, ErrForbidden
	}
	if q.explicit() {
		return s.lookup(ctx, self, q)
	}
	return s.available(ctx, self)
}

func (s *Service) customerView(ctx context.Context, actor order.Actor, q Query) ([]Job, error) {
	if q.DriverID != nil {
		return nil, ErrForbidden
	}
	orders, err := s.orders.ListByCustomer(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(orders))
	for _, o := range orders {
		if q.Status != nil && o.Status != *q.Status {
			continue
		}
		jobs = append(jobs, Job{Order: o})
	}
	return jobs, nil
}

// lookup serves explicit filters. Pending has no assignee, so a pending
// filter lists the open pool minus declines; other statuses list the
// driver's own history.
func (s *Service) lookup(ctx context.Context, self int64, q Query) ([]Job, error) {
	if q.DriverID == nil && q.Status != nil && *q.Status == order.StatusPending {
		pending, err := s.orders.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		declined, err := s.declines.DeclinedOrderIDs(ctx, self)
		if err != nil {
			return nil, err
		}
		jobs := make([]Job, 0, len(pending))
		for _, o := range pending {
			if _, skip := declined[o.ID]; !skip {
				jobs = append(jobs, Job{Order: o})
			}
		}
		return jobs, nil
	}

	own, err := s.orders.ListByDriver(ctx, self, q.Status)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, len(own))
	for i, o := range own {
		jobs[i] = Job{Order: o}
	}
	return jobs, nil
}

func (s *Service) available(ctx context.Context, self int64) ([]Job, error) {
	d, err := s.drivers.Get(ctx, self)
	if err != nil {
		return nil, err
	}
	declined, err := s.declines.DeclinedOrderIDs(ctx, self)
	if err != nil {
		return nil, err
	}

	var origin *location.Location
	loc, err := s.locations.Get(ctx, self)
	switch {
	case err == nil:
		origin = &loc
	case errors.Is(err, location.ErrNotFound):
		// No fix yet: show every non-declined pending order.
	default:
		return nil, err
	}

	pending, err := s.orders.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	assigned, err := s.orders.ListAssigned(ctx, self)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(pending)+len(assigned))
	jobs := make([]Job, 0, len(pending)+len(assigned))
	for _, o := range pending {
		if _, skip := declined[o.ID]; skip {
			continue
		}
		job := Job{Order: o}
		if origin != nil {
			if d.WorkRadiusKm > 0 && !location.WithinRadius(origin.Point, o.Pickup, d.WorkRadiusKm) {
				continue
			}
			job.DistanceKm = distanceFrom(origin, o)
		}
		seen[o.ID] = struct{}{}
		jobs = append(jobs, job)
	}
	for _, o := range assigned {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		job := Job{Order: o}
		if origin != nil {
			job.DistanceKm = distanceFrom(origin, o)
		}
		jobs = append(jobs, job)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})
	return jobs, nil
}

func distanceFrom(origin *location.Location, o order.Order) *float64 {
	dist := location.DistanceKm(origin.Point.Lat, origin.Point.Lng, o.Pickup.Lat, o.Pickup.Lng)
	return &dist
}
