// README: New-order dispatcher pushing fresh orders to a random sample of nearby drivers.
package matching

import (
	"context"
	"math/rand"
	"time"

	"petride/internal/config"
	"petride/internal/logger"
	"petride/internal/modules/location"
	"petride/internal/modules/order"
	"petride/internal/notify"
	"petride/internal/types"
)

type NearbyFinder interface {
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]location.NearbyDriver, error)
}

type TokenReader interface {
	DeviceTokens(ctx context.Context, ids []int64) (map[int64]string, error)
}

type DispatchLog interface {
	ClaimDispatch(ctx context.Context, orderID int64) (bool, error)
	RecordNotified(ctx context.Context, orderID int64, driverIDs []int64) error
}

// Inbox keeps a copy of every new-order push in the driver's notification list.
type Inbox interface {
	RecordForDriver(ctx context.Context, driverID int64, title, message string) error
}

type Dispatcher struct {
	nearby   NearbyFinder
	tokens   TokenReader
	log      DispatchLog
	notifier notify.Notifier
	inbox    Inbox
	cfg      config.MatchingConfig
	logger   logger.ILogger
}

func NewDispatcher(nearby NearbyFinder, tokens TokenReader, dlog DispatchLog, notifier notify.Notifier, cfg config.MatchingConfig, log logger.ILogger) *Dispatcher {
	return &Dispatcher{nearby: nearby, tokens: tokens, log: dlog, notifier: notifier, cfg: cfg, logger: log}
}

func (d *Dispatcher) SetInbox(inbox Inbox) { d.inbox = inbox }

// NotifyNearbyDrivers is fire-and-forget: every failure is logged, none is returned.
func (d *Dispatcher) NotifyNearbyDrivers(ctx context.Context, o order.Order) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	l := d.logger.With(logger.Int64("order_id", o.ID))

	if d.log != nil {
		claimed, err := d.log.ClaimDispatch(ctx, o.ID)
		if err != nil {
			l.Warning("dispatch claim failed", logger.Error(err))
			return
		}
		if !claimed {
			return
		}
	}

	pool, err := d.nearby.Nearby(ctx, o.Pickup, d.cfg.NotifyRadiusKm, selectPoolSize)
	if err != nil {
		l.Warning("nearby driver lookup failed", logger.Error(err))
		return
	}
	distances := make(map[int64]float64, len(pool))
	ids := make([]int64, len(pool))
	for i, n := range pool {
		ids[i] = n.DriverID
		distances[n.DriverID] = n.DistanceKm
	}

	selected := PickRandomDrivers(ids, d.cfg.NotifyCount)
	if len(selected) == 0 {
		l.Info("no nearby drivers to notify")
		return
	}
	tokens, err := d.tokens.DeviceTokens(ctx, selected)
	if err != nil {
		l.Warning("device token lookup failed", logger.Error(err))
		return
	}

	var notified []int64
	for _, driverID := range selected {
		token, ok := tokens[driverID]
		if !ok {
			continue
		}
		info := notify.OrderInfo{
			OrderID:       o.ID,
			Pickup:        o.Pickup,
			Dropoff:       o.Dropoff,
			PickupAddress: o.PickupAddress,
			Earnings:      o.DriverEarnings,
			DistanceKm:    distances[driverID],
		}
		if err := d.notifier.NotifyNewOrder(ctx, token, info); err != nil {
			l.Warning("new-order push failed", logger.Int64("driver_id", driverID), logger.Error(err))
			continue
		}
		notified = append(notified, driverID)
		if d.inbox != nil {
			title, body := notify.NewOrderMessage(info)
			if err := d.inbox.RecordForDriver(ctx, driverID, title, body); err != nil {
				l.Warning("inbox record failed", logger.Int64("driver_id", driverID), logger.Error(err))
			}
		}
	}

	if d.log != nil {
		if err := d.log.RecordNotified(ctx, o.ID, notified); err != nil {
			l.Warning("record notified drivers failed", logger.Error(err))
		}
	}
	l.Info("new order dispatched", logger.Int("notified", len(notified)), logger.Int("pool", len(pool)))
}

// PickRandomDrivers returns up to n distinct drivers chosen uniformly from pool.
// The pool itself is left untouched.
func PickRandomDrivers(pool []int64, n int) []int64 {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	shuffled := make([]int64, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
