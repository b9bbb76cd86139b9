// README: Driver store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectDriver = `
	SELECT id, user_id, vehicle_type, vehicle_plate, is_online, work_radius_km, device_token, created_at
	FROM drivers`

func (s *Store) Create(ctx context.Context, d *Driver) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO drivers (user_id, vehicle_type, vehicle_plate, work_radius_km)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_online, created_at`,
		d.UserID, d.VehicleType, d.VehiclePlate, d.WorkRadiusKm,
	).Scan(&d.ID, &d.IsOnline, &d.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (*Driver, error) {
	return s.scanOne(ctx, selectDriver+` WHERE id = $1`, id)
}

func (s *Store) GetByUserID(ctx context.Context, userID int64) (*Driver, error) {
	return s.scanOne(ctx, selectDriver+` WHERE user_id = $1`, userID)
}

func (s *Store) SetOnline(ctx context.Context, id int64, online bool) error {
	return s.exec(ctx, `UPDATE drivers SET is_online = $1 WHERE id = $2`, online, id)
}

func (s *Store) SetWorkRadius(ctx context.Context, id int64, radiusKm float64) error {
	return s.exec(ctx, `UPDATE drivers SET work_radius_km = $1 WHERE id = $2`, radiusKm, id)
}

func (s *Store) SetDeviceToken(ctx context.Context, id int64, token string) error {
	return s.exec(ctx, `UPDATE drivers SET device_token = $1 WHERE id = $2`, token, id)
}

// DeviceTokens returns the push tokens of the given drivers that are online.
func (s *Store) DeviceTokens(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, device_token FROM drivers
		WHERE id = ANY($1) AND is_online AND device_token <> ''`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, err
		}
		out[id] = token
	}
	return out, rows.Err()
}

// Earnings sums completed orders for the driver created in [from, to].
func (s *Store) Earnings(ctx context.Context, id int64, from, to time.Time) (Earnings, error) {
	var e Earnings
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(price), 0), COALESCE(SUM(platform_fee), 0), COALESCE(SUM(driver_earnings), 0)
		FROM orders
		WHERE driver_id = $1 AND status = 'completed' AND created_at >= $2 AND created_at <= $3`,
		id, from, to,
	).Scan(&e.TotalOrders, &e.TotalPrice, &e.TotalPlatformFee, &e.TotalDriverEarnings)
	return e, err
}

func (s *Store) CompletedTrips(ctx context.Context, id int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE driver_id = $1 AND status = 'completed'`, id).Scan(&n)
	return n, err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanOne(ctx context.Context, query string, arg int64) (*Driver, error) {
	var d Driver
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&d.ID, &d.UserID, &d.VehicleType, &d.VehiclePlate, &d.IsOnline, &d.WorkRadiusKm, &d.DeviceToken, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
