package matching

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"petride/internal/modules/driver"
	"petride/internal/modules/location"
	"petride/internal/modules/order"
	"petride/internal/types"
)

type fakeOrders struct {
	orders []order.Order
}

func (f *fakeOrders) ListPending(_ context.Context) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.Status == order.StatusPending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListAssigned(_ context.Context, driverID int64) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.AssignedTo(driverID) && !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListByDriver(_ context.Context, driverID int64, status *order.Status) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.AssignedTo(driverID) && (status == nil || o.Status == *status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListByCustomer(_ context.Context, customerID int64) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeDeclines map[int64]map[int64]struct{}

func (f fakeDeclines) DeclinedOrderIDs(_ context.Context, driverID int64) (map[int64]struct{}, error) {
	return f[driverID], nil
}

type fakeDrivers map[int64]*driver.Driver

func (f fakeDrivers) Get(_ context.Context, id int64) (*driver.Driver, error) {
	d, ok := f[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	return d, nil
}

type fakeLocations map[int64]types.Point

func (f fakeLocations) Get(_ context.Context, driverID int64) (location.Location, error) {
	p, ok := f[driverID]
	if !ok {
		return location.Location{}, location.ErrNotFound
	}
	return location.Location{DriverID: driverID, Point: p}, nil
}

var origin = types.Point{Lat: 13.0, Lng: 100.0}

// northAt returns the point due north of origin whose haversine distance is
// the largest value not exceeding km.
func northAt(km float64) types.Point {
	lat := origin.Lat + km/(6371.0*math.Pi/180)
	for location.DistanceKm(origin.Lat, origin.Lng, lat, origin.Lng) > km {
		lat = math.Nextafter(lat, origin.Lat)
	}
	return types.Point{Lat: lat, Lng: origin.Lng}
}

func pendingAt(id int64, p types.Point, age time.Duration) order.Order {
	return order.Order{
		ID:         id,
		CustomerID: 100,
		Status:     order.StatusPending,
		Pickup:     p,
		CreatedAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func driverActor(userID, driverID int64) order.Actor {
	return order.Actor{UserID: userID, Role: order.RoleDriver, DriverID: &driverID}
}

func ids(jobs []Job) []int64 {
	out := make([]int64, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func contains(jobs []Job, id int64) bool {
	for _, j := range jobs {
		if j.ID == id {
			return true
		}
	}
	return false
}

func TestVisibleRadiusBoundary(t *testing.T) {
	edge := northAt(10.0)
	beyond := northAt(10.0001)
	if location.DistanceKm(origin.Lat, origin.Lng, beyond.Lat, beyond.Lng) <= 10.0 {
		t.Fatalf("beyond point is not beyond the radius")
	}
	if !location.WithinRadius(origin, edge, 10.0) || location.WithinRadius(origin, beyond, 10.0) {
		t.Fatalf("geofilter disagrees with the fixture points")
	}
	orders := &fakeOrders{orders: []order.Order{
		pendingAt(1, edge, time.Minute),
		pendingAt(2, beyond, 2*time.Minute),
	}}
	svc := NewService(orders, fakeDeclines{}, fakeDrivers{5: {ID: 5, WorkRadiusKm: 10}}, fakeLocations{5: origin})

	jobs, err := svc.Visible(context.Background(), driverActor(50, 5), Query{})
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != 1 {
		t.Fatalf("expected only order 1, got %v", ids(jobs))
	}
	if jobs[0].DistanceKm == nil || *jobs[0].DistanceKm > 10.0 {
		t.Fatalf("expected annotated distance <= 10, got %v", jobs[0].DistanceKm)
	}
}

func TestVisibleDeclineIsPerDriver(t *testing.T) {
	orders := &fakeOrders{orders: []order.Order{pendingAt(1, origin, 0)}}
	declines := fakeDeclines{5: {1: {}}}
	drivers := fakeDrivers{5: {ID: 5, WorkRadiusKm: 10}, 6: {ID: 6, WorkRadiusKm: 10}}
	locs := fakeLocations{5: origin, 6: origin}
	svc := NewService(orders, declines, drivers, locs)

	a, err := svc.Visible(context.Background(), driverActor(50, 5), Query{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Visible(context.Background(), driverActor(60, 6), Query{})
	if err != nil {
		t.Fatal(err)
	}
	if contains(a, 1) {
		t.Fatalf("declining driver still sees order 1")
	}
	if !contains(b, 1) {
		t.Fatalf("other driver lost order 1")
	}
}

func TestVisibleWithoutLocationFailsOpen(t *testing.T) {
	far := types.Point{Lat: 18.79, Lng: 98.98}
	orders := &fakeOrders{orders: []order.Order{pendingAt(1, far, 0), pendingAt(2, origin, time.Minute)}}
	svc := NewService(orders, fakeDeclines{}, fakeDrivers{5: {ID: 5, WorkRadiusKm: 2}}, fakeLocations{})

	jobs, err := svc.Visible(context.Background(), driverActor(50, 5), Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(jobs); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2] newest first, got %v", got)
	}
	for _, j := range jobs {
		if j.DistanceKm != nil {
			t.Fatalf("distance should be unset without a location")
		}
	}
}

func TestVisibleKeepsAssignedBeyondRadius(t *testing.T) {
	driverID := int64(5)
	far := types.Point{Lat: 14.0, Lng: 100.0}
	mine := pendingAt(3, far, 0)
	mine.Status = order.StatusAccepted
	mine.DriverID = &driverID
	done := pendingAt(4, origin, 0)
	done.Status = order.StatusCompleted
	done.DriverID = &driverID
	orders := &fakeOrders{orders: []order.Order{mine, done, pendingAt(1, far, time.Hour)}}
	svc := NewService(orders, fakeDeclines{}, fakeDrivers{5: {ID: 5, WorkRadiusKm: 10}}, fakeLocations{5: origin})

	jobs, err := svc.Visible(context.Background(), driverActor(50, 5), Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(jobs); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected only the assigned order, got %v", got)
	}
	if jobs[0].DistanceKm == nil {
		t.Fatalf("assigned order should carry a distance")
	}
}

func TestVisibleExplicitFilters(t *testing.T) {
	driverID := int64(5)
	far := types.Point{Lat: 18.79, Lng: 98.98}
	done := pendingAt(4, origin, 0)
	done.Status = order.StatusCompleted
	done.DriverID = &driverID
	orders := &fakeOrders{orders: []order.Order{pendingAt(1, far, 0), pendingAt(2, far, 0), done}}
	svc := NewService(orders, fakeDeclines{5: {2: {}}}, fakeDrivers{5: {ID: 5, WorkRadiusKm: 10}}, fakeLocations{5: origin})
	ctx := context.Background()

	pending := order.StatusPending
	jobs, err := svc.Visible(ctx, driverActor(50, 5), Query{Status: &pending})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(jobs); len(got) != 1 || got[0] != 1 {
		t.Fatalf("pending filter: expected [1], got %v", got)
	}

	completed := order.StatusCompleted
	jobs, err = svc.Visible(ctx, driverActor(50, 5), Query{Status: &completed, DriverID: &driverID})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(jobs); len(got) != 1 || got[0] != 4 {
		t.Fatalf("history filter: expected [4], got %v", got)
	}

	other := int64(6)
	if _, err := svc.Visible(ctx, driverActor(50, 5), Query{DriverID: &other}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign driver_id, got %v", err)
	}
}

func TestVisibleCustomerView(t *testing.T) {
	a := pendingAt(1, origin, 0)
	b := pendingAt(2, origin, 0)
	b.CustomerID = 200
	c := pendingAt(3, origin, 0)
	c.Status = order.StatusCancelled
	svc := NewService(&fakeOrders{orders: []order.Order{a, b, c}}, fakeDeclines{}, fakeDrivers{}, fakeLocations{})
	actor := order.Actor{UserID: 100, Role: order.RoleCustomer}

	jobs, err := svc.Visible(context.Background(), actor, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(jobs); len(got) != 2 {
		t.Fatalf("expected own orders [1 3], got %v", got)
	}
	cancelled := order.StatusCancelled
	jobs, _ = svc.Visible(context.Background(), actor, Query{Status: &cancelled})
	if got := ids(jobs); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected [3], got %v", got)
	}
	driverID := int64(5)
	if _, err := svc.Visible(context.Background(), actor, Query{DriverID: &driverID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
