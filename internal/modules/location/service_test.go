package location

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"petride/internal/types"
)

type memRepo struct {
	rows map[int64]Location
}

func newMemRepo() *memRepo { return &memRepo{rows: make(map[int64]Location)} }

func (m *memRepo) Upsert(_ context.Context, driverID int64, p types.Point) (Location, error) {
	loc := Location{DriverID: driverID, Point: p, RecordedAt: time.Now()}
	m.rows[driverID] = loc
	return loc, nil
}

func (m *memRepo) Get(_ context.Context, driverID int64) (Location, error) {
	loc, ok := m.rows[driverID]
	if !ok {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

func (m *memRepo) Remove(_ context.Context, driverID int64) error {
	delete(m.rows, driverID)
	return nil
}

func (m *memRepo) Nearby(_ context.Context, p types.Point, radiusKm float64, _ int) ([]NearbyDriver, error) {
	var out []NearbyDriver
	for _, l := range m.rows {
		if WithinRadius(p, l.Point, radiusKm) {
			out = append(out, NearbyDriver{DriverID: l.DriverID, Point: l.Point})
		}
	}
	return out, nil
}

func TestServiceUpdateOverwrites(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	if _, err := svc.Update(ctx, 7, types.Point{Lat: 13.0, Lng: 100.0}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.Update(ctx, 7, types.Point{Lat: 13.5, Lng: 100.5}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Point.Lat != 13.5 || got.Point.Lng != 100.5 {
		t.Fatalf("expected latest point, got %+v", got.Point)
	}
}

func TestServiceRejectsInvalidPoint(t *testing.T) {
	svc := NewService(newMemRepo())
	if _, err := svc.Update(context.Background(), 1, types.Point{Lat: 91, Lng: 0}); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint, got %v", err)
	}
}

func TestServiceGetUnknownDriver(t *testing.T) {
	svc := NewService(newMemRepo())
	if _, err := svc.Get(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreNearbyGeo(t *testing.T) {
	redisAddr := os.Getenv("PETRIDE_TEST_REDIS")
	if redisAddr == "" {
		t.Skip("PETRIDE_TEST_REDIS not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	rdb.Del(ctx, driverGeoKey)
	defer rdb.Del(ctx, driverGeoKey)

	rdb.GeoAdd(ctx, driverGeoKey,
		&redis.GeoLocation{Name: "1", Longitude: 100.0, Latitude: 13.0},
		&redis.GeoLocation{Name: "2", Longitude: 100.0, Latitude: 13.05},
		&redis.GeoLocation{Name: "3", Longitude: 101.0, Latitude: 14.0},
	)

	store := NewStore(nil, rdb)
	got, err := store.Nearby(ctx, types.Point{Lat: 13.0, Lng: 100.0}, 10, 10)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 2 || got[0].DriverID != 1 || got[1].DriverID != 2 {
		t.Fatalf("unexpected nearby drivers: %+v", got)
	}
}
