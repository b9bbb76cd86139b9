// README: Order store backed by PostgreSQL; status changes are compare-and-swap updates.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"petride/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectOrder = `
	SELECT o.id, o.customer_id, o.driver_id, o.status, o.status_version,
	       o.pickup_address, o.pickup_lat, o.pickup_lng,
	       o.dropoff_address, o.dropoff_lat, o.dropoff_lng,
	       o.price, o.platform_fee, o.driver_earnings, o.commission_rate,
	       o.passengers, o.pet_details,
	       COALESCE((SELECT array_agg(p.pet_id ORDER BY p.pet_id) FROM order_pets p WHERE p.order_id = o.id), '{}'),
	       o.payment_status, o.payment_method, o.payment_reference, o.created_at
	FROM orders o`

func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			customer_id, status, status_version,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng,
			price, platform_fee, driver_earnings, commission_rate,
			passengers, pet_details, payment_status
		) VALUES (
			$1, $2, 0,
			$3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15
		)
		RETURNING id, created_at`,
		o.CustomerID, string(o.Status),
		o.PickupAddress, o.Pickup.Lat, o.Pickup.Lng,
		o.DropoffAddress, o.Dropoff.Lat, o.Dropoff.Lng,
		int64(o.Price), int64(o.PlatformFee), int64(o.DriverEarnings), o.CommissionRate,
		o.Passengers, o.PetDetails, string(o.PaymentStatus),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return err
	}

	for _, pid := range o.PetIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO order_pets (order_id, pet_id) VALUES ($1, $2)`, o.ID, pid); err != nil {
			return err
		}
	}
	if err := appendEvent(ctx, tx, &Event{
		OrderID:    o.ID,
		FromStatus: "",
		ToStatus:   o.Status,
		ActorType:  RoleCustomer,
		ActorID:    &o.CustomerID,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, selectOrder+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// Transition applies tr only if the row still has tr.From and tr.Version.
// It reports false when another writer got there first.
func (s *Store) Transition(ctx context.Context, tr Transition) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ok, err := transitionTx(ctx, tx, tr)
	if err != nil || !ok {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// UpdateDetails edits descriptive fields of a still-pending order. A non-nil
// tr is applied in the same transaction; if either write misses, neither lands.
func (s *Store) UpdateDetails(ctx context.Context, id int64, p Patch, tr *Transition) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var version *int
	if tr != nil {
		version = &tr.Version
	}
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET pickup_address = COALESCE($1, pickup_address),
		    dropoff_address = COALESCE($2, dropoff_address),
		    pet_details = COALESCE($3, pet_details),
		    passengers = COALESCE($4, passengers)
		WHERE id = $5 AND status = 'pending'
		  AND ($6::INT IS NULL OR status_version = $6)`,
		p.PickupAddress, p.DropoffAddress, p.PetDetails, p.Passengers, id, version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if tr != nil {
		ok, err := transitionTx(ctx, tx, *tr)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func transitionTx(ctx context.Context, tx pgx.Tx, tr Transition) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = CASE WHEN $2 THEN NULL ELSE COALESCE($3, driver_id) END
		WHERE id = $4 AND status = $5 AND status_version = $6
		  AND (NOT $7 OR payment_status = 'paid')`,
		string(tr.To),
		tr.ClearDriver,
		tr.DriverID,
		tr.OrderID,
		string(tr.From),
		tr.Version,
		tr.RequirePaid,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	actorID := tr.ActorID
	if err := appendEvent(ctx, tx, &Event{
		OrderID:    tr.OrderID,
		FromStatus: tr.From,
		ToStatus:   tr.To,
		ActorType:  tr.ActorType,
		ActorID:    &actorID,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// SetPayment records an external payment outcome. A paid order is never downgraded.
func (s *Store) SetPayment(ctx context.Context, id int64, status PaymentStatus, method PaymentMethod, reference string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1, payment_method = $2, payment_reference = $3
		WHERE id = $4 AND payment_status <> 'paid'`,
		string(status), string(method), reference, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PayWithWallet debits the customer, credits the assigned driver's user with
// the earnings share and writes both ledger rows in one transaction.
func (s *Store) PayWithWallet(ctx context.Context, id, customerID int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		owner     int64
		driverID  *int64
		status    string
		payStatus string
		price     int64
		earnings  int64
	)
	err = tx.QueryRow(ctx, `
		SELECT customer_id, driver_id, status, payment_status, price, driver_earnings
		FROM orders WHERE id = $1 FOR UPDATE`, id,
	).Scan(&owner, &driverID, &status, &payStatus, &price, &earnings)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != customerID {
		return ErrForbidden
	}
	if PaymentStatus(payStatus) == PaymentPaid {
		return ErrAlreadyPaid
	}
	if Status(status) == StatusCancelled || driverID == nil {
		return fmt.Errorf("%w: current status %s", ErrInvalidState, status)
	}

	var driverUserID int64
	if err := tx.QueryRow(ctx, `SELECT user_id FROM drivers WHERE id = $1`, *driverID).Scan(&driverUserID); err != nil {
		return err
	}

	var balance int64
	if err := tx.QueryRow(ctx, `SELECT wallet_balance FROM users WHERE id = $1 FOR UPDATE`, customerID).Scan(&balance); err != nil {
		return err
	}
	if balance < price {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET wallet_balance = wallet_balance - $1 WHERE id = $2`, price, customerID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET wallet_balance = wallet_balance + $1 WHERE id = $2`, earnings, driverUserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (user_id, order_id, amount, type, status, description)
		VALUES ($1, $3, $4, 'payment', 'completed', 'Order payment'),
		       ($2, $3, $5, 'earning', 'completed', 'Order earning')`,
		customerID, driverUserID, id, -price, earnings,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status = 'paid', payment_method = 'wallet', payment_reference = ''
		WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID int64) ([]Order, error) {
	return s.list(ctx, selectOrder+` WHERE o.customer_id = $1 ORDER BY o.created_at DESC, o.id DESC`, customerID)
}

func (s *Store) ListPending(ctx context.Context) ([]Order, error) {
	return s.list(ctx, selectOrder+` WHERE o.status = 'pending' ORDER BY o.created_at DESC, o.id DESC`)
}

// ListAssigned returns the driver's non-terminal orders.
func (s *Store) ListAssigned(ctx context.Context, driverID int64) ([]Order, error) {
	return s.list(ctx, selectOrder+`
		WHERE o.driver_id = $1 AND o.status NOT IN ('completed', 'cancelled')
		ORDER BY o.created_at DESC, o.id DESC`, driverID)
}

// ListByDriver returns every order ever assigned to the driver, optionally by status.
func (s *Store) ListByDriver(ctx context.Context, driverID int64, status *Status) ([]Order, error) {
	if status != nil {
		return s.list(ctx, selectOrder+`
			WHERE o.driver_id = $1 AND o.status = $2
			ORDER BY o.created_at DESC, o.id DESC`, driverID, string(*status))
	}
	return s.list(ctx, selectOrder+` WHERE o.driver_id = $1 ORDER BY o.created_at DESC, o.id DESC`, driverID)
}

func (s *Store) Events(ctx context.Context, orderID int64) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, actor_id, created_at
		FROM order_state_events WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var from, to string
		if err := rows.Scan(&e.ID, &e.OrderID, &from, &to, &e.ActorType, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatus, e.ToStatus = Status(from), Status(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status, payStatus, method string
	var price, fee, earnings int64
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.DriverID, &status, &o.StatusVersion,
		&o.PickupAddress, &o.Pickup.Lat, &o.Pickup.Lng,
		&o.DropoffAddress, &o.Dropoff.Lat, &o.Dropoff.Lng,
		&price, &fee, &earnings, &o.CommissionRate,
		&o.Passengers, &o.PetDetails, &o.PetIDs,
		&payStatus, &method, &o.PaymentReference, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	o.PaymentMethod = PaymentMethod(method)
	o.Price, o.PlatformFee, o.DriverEarnings = types.Money(price), types.Money(fee), types.Money(earnings)
	return &o, nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, e *Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_state_events (order_id, from_status, to_status, actor_type, actor_id)
		VALUES ($1, $2, $3, $4, $5)`,
		e.OrderID,
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		e.ActorID,
	)
	return err
}
