// README: Bench cases: environment checks, order lifecycle over HTTP, accept race and a read load.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// scenario state shared by the lifecycle cases
	customer string
	drivers  []string
	orderID  int64
	winner   int
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		winner: -1,
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, tc.Name, res.Latency.Round(time.Millisecond))
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func fail(format string, args ...any) Result {
	return Result{Status: statusFail, Note: fmt.Sprintf(format, args...)}
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "Setup: customer and drivers", Run: setupAccounts},
		{Name: "Order: create", Run: createOrder},
		{Name: "Order: concurrent accept has one winner", Run: acceptRace},
		{Name: "Order: one accepted event recorded", Run: checkAcceptEvents},
		{Name: "Order: decline on taken order rejected", Run: declineTaken},
		{Name: "Order: pickup and cash settle", Run: pickupAndPay},
		{Name: "Order: complete", Run: completeOrder},
		{Name: "Load: list orders", Run: listLoad},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return fail("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return fail("%v", err)
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return fail("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fail("%v", err)
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return fail("%v", err)
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return fail("%v", err)
		}
		if !exists {
			return fail("missing table: %s", t)
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, err := r.call(ctx, http.MethodGet, "/health", "", nil, nil)
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusOK {
		return fail("status=%d", status)
	}
	return Result{Status: statusPass}
}

func setupAccounts(ctx context.Context, r *Runner) Result {
	run := time.Now().UnixNano()
	tok, err := r.account(ctx, "customer", fmt.Sprintf("bench-c-%d@example.com", run))
	if err != nil {
		return fail("%v", err)
	}
	r.customer = tok

	for i := 0; i < r.cfg.Concurrency; i++ {
		tok, err := r.account(ctx, "driver", fmt.Sprintf("bench-d%d-%d@example.com", i, run))
		if err != nil {
			return fail("%v", err)
		}
		status, err := r.call(ctx, http.MethodPost, "/api/drivers", tok, map[string]string{
			"vehicle_type":  "car",
			"vehicle_plate": fmt.Sprintf("BN-%04d", i),
		}, nil)
		if err != nil || status != http.StatusCreated {
			return fail("driver profile %d: status=%d err=%v", i, status, err)
		}
		r.drivers = append(r.drivers, tok)
	}
	// The auth middleware resolves the driver profile per request, so the
	// same tokens carry the new driver id from here on.
	for i, tok := range r.drivers {
		status, err := r.call(ctx, http.MethodPut, "/api/drivers/me/online", tok, map[string]any{
			"is_online": true,
			"location":  map[string]float64{"lat": 13.7563, "lng": 100.5018 + float64(i)*0.001},
		}, nil)
		if err != nil || status != http.StatusOK {
			return fail("driver %d online: status=%d err=%v", i, status, err)
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("drivers=%d", len(r.drivers))}
}

func createOrder(ctx context.Context, r *Runner) Result {
	if r.customer == "" {
		return Result{Status: statusSkip, Note: "no customer"}
	}
	var out struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	status, err := r.call(ctx, http.MethodPost, "/api/orders", r.customer, map[string]any{
		"pickup_address":  "Siam",
		"pickup":          map[string]float64{"lat": 13.7563, "lng": 100.5018},
		"dropoff_address": "Ari",
		"dropoff":         map[string]float64{"lat": 13.7797, "lng": 100.5446},
		"price":           250,
		"passengers":      1,
		"pet_details":     "corgi, 12kg",
	}, &out)
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusCreated || out.Status != "pending" {
		return fail("status=%d order_status=%s", status, out.Status)
	}
	r.orderID = out.ID
	return Result{Status: statusPass, Note: fmt.Sprintf("order=%d", out.ID)}
}

func acceptRace(ctx context.Context, r *Runner) Result {
	if r.orderID == 0 || len(r.drivers) < 2 {
		return Result{Status: statusSkip, Note: "no order or drivers"}
	}
	path := fmt.Sprintf("/api/orders/%d/accept", r.orderID)
	codes := make([]int, len(r.drivers))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, tok := range r.drivers {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			<-start
			codes[i], _ = r.call(ctx, http.MethodPost, path, tok, nil, nil)
		}(i, tok)
	}
	close(start)
	wg.Wait()

	winners, conflicts := 0, 0
	for i, c := range codes {
		switch c {
		case http.StatusOK:
			winners++
			r.winner = i
		case http.StatusConflict:
			conflicts++
		}
	}
	if winners != 1 || conflicts != len(codes)-1 {
		return fail("winners=%d conflicts=%d codes=%v", winners, conflicts, codes)
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("winner=driver#%d", r.winner)}
}

func checkAcceptEvents(ctx context.Context, r *Runner) Result {
	if r.db == nil || r.orderID == 0 {
		return Result{Status: statusSkip, Note: "db or order missing"}
	}
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_state_events WHERE order_id = $1 AND to_status = 'accepted'`, r.orderID,
	).Scan(&n)
	if err != nil {
		return fail("%v", err)
	}
	if n != 1 {
		return fail("accepted events=%d", n)
	}
	return Result{Status: statusPass}
}

func declineTaken(ctx context.Context, r *Runner) Result {
	if r.winner < 0 {
		return Result{Status: statusSkip, Note: "no accepted order"}
	}
	loser := r.drivers[(r.winner+1)%len(r.drivers)]
	status, err := r.call(ctx, http.MethodPost, fmt.Sprintf("/api/orders/%d/decline", r.orderID), loser, nil, nil)
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusConflict {
		return fail("status=%d, want 409", status)
	}
	return Result{Status: statusPass}
}

func pickupAndPay(ctx context.Context, r *Runner) Result {
	if r.winner < 0 {
		return Result{Status: statusSkip, Note: "no accepted order"}
	}
	tok := r.drivers[r.winner]
	for _, step := range []string{"pickup", "pay/cash"} {
		status, err := r.call(ctx, http.MethodPost, fmt.Sprintf("/api/orders/%d/%s", r.orderID, step), tok, nil, nil)
		if err != nil {
			return fail("%s: %v", step, err)
		}
		if status != http.StatusOK {
			return fail("%s: status=%d", step, status)
		}
	}
	return Result{Status: statusPass}
}

func completeOrder(ctx context.Context, r *Runner) Result {
	if r.winner < 0 {
		return Result{Status: statusSkip, Note: "no accepted order"}
	}
	var out struct {
		Status         string  `json:"status"`
		DriverEarnings float64 `json:"driver_earnings"`
	}
	status, err := r.call(ctx, http.MethodPost, fmt.Sprintf("/api/orders/%d/complete", r.orderID), r.drivers[r.winner], nil, &out)
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusOK || out.Status != "completed" {
		return fail("status=%d order_status=%s", status, out.Status)
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("driver_earnings=%.2f", out.DriverEarnings)}
}

func listLoad(ctx context.Context, r *Runner) Result {
	if len(r.drivers) == 0 {
		return Result{Status: statusSkip, Note: "no drivers"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu        sync.Mutex
		latencies []time.Duration
		errCount  int
	)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				start := time.Now()
				status, err := r.call(ctx, http.MethodGet, "/api/orders", tok, nil, nil)
				d := time.Since(start)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					latencies = append(latencies, d)
				}
				mu.Unlock()
			}
		}(r.drivers[i%len(r.drivers)])
	}
	wg.Wait()

	if len(latencies) == 0 {
		return fail("no requests completed (errors=%d)", errCount)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p := func(q float64) time.Duration { return latencies[int(q*float64(len(latencies)-1))] }
	rps := float64(len(latencies)) / r.cfg.Duration.Seconds()
	return Result{
		Status:  statusPass,
		Latency: p(0.5),
		Note:    fmt.Sprintf("rps=%.1f p95=%s errors=%d", rps, p(0.95).Round(time.Millisecond), errCount),
	}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
