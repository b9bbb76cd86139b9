// README: Pricing service computes fare estimates from routed distance, vehicle rates and pet weight.
package pricing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"petride/internal/maps"
	"petride/internal/types"
)

// Rates are whole baht.
var rates = map[string]Rate{
	"car": {Base: types.FromFloat(60), PerKm: types.FromFloat(12), PerMin: types.FromFloat(2), Min: types.FromFloat(80)},
	"suv": {Base: types.FromFloat(80), PerKm: types.FromFloat(15), PerMin: types.FromFloat(3), Min: types.FromFloat(120)},
	"van": {Base: types.FromFloat(120), PerKm: types.FromFloat(18), PerMin: types.FromFloat(4), Min: types.FromFloat(200)},
}

const defaultVehicle = "car"

type Router interface {
	DistanceAndDuration(ctx context.Context, origin, destination types.Point) (maps.Route, error)
}

type Service struct {
	router Router
}

func NewService(router Router) *Service {
	return &Service{router: router}
}

func (s *Service) VehicleTypes() []VehicleType {
	out := make([]VehicleType, 0, len(rates))
	for k, r := range rates {
		out = append(out, VehicleType{Key: k, Name: strings.ToUpper(k), Rates: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rates.Base < out[j].Rates.Base })
	return out
}

func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (Estimate, error) {
	if !req.Pickup.Valid() || !req.Dropoff.Valid() {
		return Estimate{}, fmt.Errorf("%w: invalid coordinates", ErrBadRequest)
	}
	if req.PetWeightKg < 0 {
		return Estimate{}, fmt.Errorf("%w: pet weight must not be negative", ErrBadRequest)
	}
	route, err := s.router.DistanceAndDuration(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		return Estimate{}, err
	}
	return Quote(Route{DistanceKm: route.DistanceKm, Duration: route.Duration}, req.VehicleType, req.PetWeightKg), nil
}

// Quote prices a routed trip. Unknown vehicle types are priced as a car.
// The total is truncated to whole baht and never falls below the minimum fare.
func Quote(route Route, vehicle string, petWeightKg int) Estimate {
	vehicle = strings.ToLower(strings.TrimSpace(vehicle))
	rate, ok := rates[vehicle]
	if !ok {
		vehicle = defaultVehicle
		rate = rates[defaultVehicle]
	}
	minutes := route.Duration.Minutes()

	distance := rate.PerKm.Float() * route.DistanceKm
	timeCost := rate.PerMin.Float() * minutes
	weight := weightSurcharge(petWeightKg)
	total := rate.Base.Float() + distance + timeCost + weight.Float()

	price := types.FromFloat(math.Trunc(total))
	if price < rate.Min {
		price = rate.Min
	}
	return Estimate{
		DistanceKm:     math.Round(route.DistanceKm*10) / 10,
		DurationMin:    math.Round(minutes),
		EstimatedPrice: price,
		VehicleType:    vehicle,
		Breakdown: map[string]types.Money{
			"base":     rate.Base,
			"distance": types.FromFloat(distance),
			"time":     types.FromFloat(timeCost),
			"weight":   weight,
		},
	}
}

func weightSurcharge(kg int) types.Money {
	switch {
	case kg > 30:
		return types.FromFloat(60)
	case kg > 20:
		return types.FromFloat(40)
	case kg > 10:
		return types.FromFloat(20)
	}
	return 0
}
