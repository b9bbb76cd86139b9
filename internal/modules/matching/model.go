// README: Driver job views and new-order dispatch tuning.
package matching

import (
	"errors"

	"petride/internal/modules/order"
)

var ErrForbidden = errors.New("forbidden")

// Job is an order as seen by one driver. DistanceKm is set when the driver
// has a recorded location.
type Job struct {
	order.Order
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Query holds the caller's explicit list filters. Any filter turns the
// request into a direct lookup that skips radius filtering.
type Query struct {
	Status   *order.Status
	DriverID *int64
}

func (q Query) explicit() bool { return q.Status != nil || q.DriverID != nil }

const (
	// selectPoolSize is how many nearby drivers to sample before picking NotifyCount.
	selectPoolSize = 10
)
