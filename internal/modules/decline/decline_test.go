package decline

import (
	"context"
	"sync"
	"testing"

	"petride/internal/testutil"
)

type registry interface {
	Decline(ctx context.Context, driverID, orderID int64) error
	IsDeclined(ctx context.Context, driverID, orderID int64) (bool, error)
	DeclinedOrderIDs(ctx context.Context, driverID int64) (map[int64]struct{}, error)
}

func checkIdempotentAndScoped(t *testing.T, r registry, driverA, driverB, orderID int64) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := r.Decline(ctx, driverA, orderID); err != nil {
			t.Fatalf("decline #%d: %v", i+1, err)
		}
	}

	ids, err := r.DeclinedOrderIDs(ctx, driverA)
	if err != nil {
		t.Fatalf("declined ids: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly one declined order, got %v", ids)
	}
	if ok, _ := r.IsDeclined(ctx, driverA, orderID); !ok {
		t.Fatalf("expected order declined for driver A")
	}
	if ok, _ := r.IsDeclined(ctx, driverB, orderID); ok {
		t.Fatalf("decline must not leak to driver B")
	}
}

func TestMemoryDeclineIdempotent(t *testing.T) {
	checkIdempotentAndScoped(t, NewMemory(), 1, 2, 42)
}

func TestStoreDeclineIdempotent(t *testing.T) {
	db := testutil.DB(t)
	customer := testutil.SeedUser(t, db, "customer", 0)
	_, driverA := testutil.SeedDriver(t, db, 10)
	_, driverB := testutil.SeedDriver(t, db, 10)

	var orderID int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO orders (customer_id, pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng, price, platform_fee, driver_earnings, commission_rate)
		VALUES ($1, 'a', 13, 100, 'b', 13.1, 100.1, 6000, 420, 5580, 0.07) RETURNING id`, customer,
	).Scan(&orderID)
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	checkIdempotentAndScoped(t, NewStore(db), driverA, driverB, orderID)
}

func TestStoreConcurrentDuplicateDecline(t *testing.T) {
	db := testutil.DB(t)
	customer := testutil.SeedUser(t, db, "customer", 0)
	_, driverID := testutil.SeedDriver(t, db, 10)

	var orderID int64
	if err := db.QueryRow(context.Background(), `
		INSERT INTO orders (customer_id, pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng, price, platform_fee, driver_earnings, commission_rate)
		VALUES ($1, 'a', 13, 100, 'b', 13.1, 100.1, 6000, 420, 5580, 0.07) RETURNING id`, customer,
	).Scan(&orderID); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	store := NewStore(db)
	const workers = 8
	start := make(chan struct{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- store.Decline(context.Background(), driverID, orderID)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent decline returned error: %v", err)
		}
	}
}
