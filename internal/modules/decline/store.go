// README: Decline registry store; one row per (driver, order) refusal.
package decline

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Decline records the refusal. A duplicate insert, including one lost to a
// concurrent race, is a no-op.
func (s *Store) Decline(ctx context.Context, driverID, orderID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO declined_orders (driver_id, order_id)
		VALUES ($1, $2)
		ON CONFLICT (driver_id, order_id) DO NOTHING`,
		driverID, orderID,
	)
	return err
}

func (s *Store) IsDeclined(ctx context.Context, driverID, orderID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM declined_orders WHERE driver_id = $1 AND order_id = $2
		)`, driverID, orderID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) DeclinedOrderIDs(ctx context.Context, driverID int64) (map[int64]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT order_id FROM declined_orders WHERE driver_id = $1`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
