// README: Pricing rate definition for each vehicle type.
package pricing

import (
	"errors"
	"time"

	"petride/internal/types"
)

var ErrBadRequest = errors.New("bad request")

type Rate struct {
	Base   types.Money `json:"base"`
	PerKm  types.Money `json:"per_km"`
	PerMin types.Money `json:"per_min"`
	Min    types.Money `json:"min"`
}

type VehicleType struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Rates Rate   `json:"rates"`
}

type EstimateRequest struct {
	Pickup      types.Point
	Dropoff     types.Point
	PetWeightKg int
	VehicleType string
}

type Estimate struct {
	DistanceKm     float64     `json:"distance_km"`
	DurationMin    float64     `json:"duration_min"`
	EstimatedPrice types.Money `json:"estimated_price"`
	VehicleType    string      `json:"vehicle_type"`
	// Breakdown is keyed by component: base, distance, time, weight.
	Breakdown map[string]types.Money `json:"breakdown"`
}

// Route is what the fare calculation needs from the routing provider.
type Route struct {
	DistanceKm float64
	Duration   time.Duration
}
