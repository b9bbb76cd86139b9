// README: Latest known driver position, one row per driver.
package location

import (
	"errors"
	"time"

	"petride/internal/types"
)

var ErrNotFound = errors.New("location not found")

type Location struct {
	DriverID   int64       `json:"driver_id"`
	Point      types.Point `json:"point"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// NearbyDriver is a driver position annotated with its distance from a query origin.
type NearbyDriver struct {
	DriverID   int64       `json:"driver_id"`
	Point      types.Point `json:"point"`
	DistanceKm float64     `json:"distance_km"`
}
