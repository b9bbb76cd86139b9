// README: Shared helpers for Postgres-backed tests, gated on PETRIDE_TEST_DSN.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"petride/internal/infra"
)

// DB connects to PETRIDE_TEST_DSN, applies migrations and empties every table.
// Packages sharing the database must run with -p 1.
func DB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("PETRIDE_TEST_DSN")
	if dsn == "" {
		t.Skip("PETRIDE_TEST_DSN not set; skipping DB-backed tests")
	}

	root, err := repoRoot()
	if err != nil {
		t.Fatalf("locate repo root: %v", err)
	}
	if err := infra.Migrate(dsn, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(ctx, `
		TRUNCATE TABLE notifications, wallet_transactions, chat_messages, declined_orders, order_state_events,
			order_pets, orders, pets, driver_locations, drivers, users
		RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO platform_settings (key, value) VALUES ('commission_rate', '0.07')
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`); err != nil {
		t.Fatalf("reset settings: %v", err)
	}
	return db
}

// SeedUser inserts a user with the given role and wallet balance (minor units).
func SeedUser(t *testing.T, db *pgxpool.Pool, role string, balance int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (full_name, password_hash, role, wallet_balance)
		VALUES ('test', 'x', $1, $2) RETURNING id`, role, balance,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedDriver inserts a driver user plus driver row and returns (userID, driverID).
func SeedDriver(t *testing.T, db *pgxpool.Pool, radiusKm float64) (int64, int64) {
	t.Helper()
	userID := SeedUser(t, db, "driver", 0)
	var driverID int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO drivers (user_id, is_online, work_radius_km)
		VALUES ($1, TRUE, $2) RETURNING id`, userID, radiusKm,
	).Scan(&driverID)
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	return userID, driverID
}

// SeedPet inserts a pet owned by userID and returns its id.
func SeedPet(t *testing.T, db *pgxpool.Pool, userID int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO pets (user_id, name, type) VALUES ($1, 'Mochi', 'dog') RETURNING id`, userID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed pet: %v", err)
	}
	return id
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// Fixture bundles seed helpers around one test database.
type Fixture struct {
	DB *pgxpool.Pool
}

func (f *Fixture) User(t *testing.T, role string, balance int64) int64 {
	return SeedUser(t, f.DB, role, balance)
}

func (f *Fixture) Driver(t *testing.T, radiusKm float64) (int64, int64) {
	return SeedDriver(t, f.DB, radiusKm)
}

func (f *Fixture) Pet(t *testing.T, ownerID int64) int64 {
	return SeedPet(t, f.DB, ownerID)
}

func (f *Fixture) Balance(t *testing.T, userID int64) int64 {
	t.Helper()
	var b int64
	if err := f.DB.QueryRow(context.Background(), `SELECT wallet_balance FROM users WHERE id = $1`, userID).Scan(&b); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return b
}

// LedgerAmounts returns the order's wallet ledger amounts in insertion order.
func (f *Fixture) LedgerAmounts(t *testing.T, orderID int64) []int64 {
	t.Helper()
	rows, err := f.DB.Query(context.Background(), `SELECT amount FROM wallet_transactions WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var a int64
		if err := rows.Scan(&a); err != nil {
			t.Fatalf("scan ledger: %v", err)
		}
		out = append(out, a)
	}
	return out
}
