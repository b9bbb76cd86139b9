// README: Location store backed by Postgres rows and a Redis GEO index.
package location

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"petride/internal/types"
)

const driverGeoKey = "geo:drivers"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

// NewStore builds a store; redis may be nil, in which case nearby lookups scan Postgres.
func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) Upsert(ctx context.Context, driverID int64, p types.Point) (Location, error) {
	loc := Location{DriverID: driverID, Point: p}
	err := s.db.QueryRow(ctx, `
		INSERT INTO driver_locations (driver_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (driver_id) DO UPDATE
		SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, recorded_at = EXCLUDED.recorded_at
		RETURNING recorded_at`,
		driverID, p.Lat, p.Lng,
	).Scan(&loc.RecordedAt)
	if err != nil {
		return Location{}, err
	}
	if s.redis != nil {
		if err := s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
			Name:      strconv.FormatInt(driverID, 10),
			Longitude: p.Lng,
			Latitude:  p.Lat,
		}).Err(); err != nil {
			return loc, fmt.Errorf("geoadd: %w", err)
		}
	}
	return loc, nil
}

func (s *Store) Get(ctx context.Context, driverID int64) (Location, error) {
	loc := Location{DriverID: driverID}
	err := s.db.QueryRow(ctx, `
		SELECT lat, lng, recorded_at FROM driver_locations WHERE driver_id = $1`,
		driverID,
	).Scan(&loc.Point.Lat, &loc.Point.Lng, &loc.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Remove drops the driver from the GEO index, e.g. when going offline.
func (s *Store) Remove(ctx context.Context, driverID int64) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.ZRem(ctx, driverGeoKey, strconv.FormatInt(driverID, 10)).Err()
}

// Nearby returns online drivers within radiusKm of p, closest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	if s.redis != nil {
		return s.nearbyGeo(ctx, p, radiusKm, limit)
	}
	return s.nearbyScan(ctx, p, radiusKm, limit)
}

func (s *Store) nearbyGeo(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	res, err := s.redis.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}
	out := make([]NearbyDriver, 0, len(res))
	for _, r := range res {
		id, err := strconv.ParseInt(r.Name, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, NearbyDriver{
			DriverID:   id,
			Point:      types.Point{Lat: r.Latitude, Lng: r.Longitude},
			DistanceKm: r.Dist,
		})
	}
	return out, nil
}

func (s *Store) nearbyScan(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.driver_id, l.lat, l.lng
		FROM driver_locations l
		JOIN drivers d ON d.id = l.driver_id
		WHERE d.is_online`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NearbyDriver
	for rows.Next() {
		var n NearbyDriver
		if err := rows.Scan(&n.DriverID, &n.Point.Lat, &n.Point.Lng); err != nil {
			return nil, err
		}
		n.DistanceKm = DistanceKm(p.Lat, p.Lng, n.Point.Lat, n.Point.Lng)
		if n.DistanceKm <= radiusKm {
			out = append(out, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByDistance(out, func(n NearbyDriver) float64 { return n.DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
