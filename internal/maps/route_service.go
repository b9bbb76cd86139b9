package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"petride/internal/modules/location"
	"petride/internal/types"
)

// ErrUpstream wraps failures reported by the routing API.
var ErrUpstream = errors.New("routing provider error")

// Route is the driving distance and duration between two points.
type Route struct {
	DistanceKm float64
	Duration   time.Duration
	// Estimated is true when the route came from straight-line distance.
	Estimated bool
}

type distanceMatrixAPI interface {
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
}

// RouteService handles interactions with Google Maps API. Without an API key
// it estimates routes from haversine distance at a fixed average speed.
type RouteService struct {
	client      distanceMatrixAPI
	fallbackKmh float64
}

// NewRouteService creates a new RouteService with the given API Key. An empty
// key selects the offline estimate.
func NewRouteService(apiKey string, fallbackKmh float64) (*RouteService, error) {
	if fallbackKmh <= 0 {
		fallbackKmh = 30
	}
	s := &RouteService{fallbackKmh: fallbackKmh}
	if apiKey == "" {
		return s, nil
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	s.client = client
	return s, nil
}

// DistanceAndDuration returns the driving route from origin to destination.
func (s *RouteService) DistanceAndDuration(ctx context.Context, origin, destination types.Point) (Route, error) {
	if s.client == nil {
		return s.estimate(origin, destination), nil
	}

	r := &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(origin)},
		Destinations: []string{latLng(destination)},
		Mode:         maps.TravelModeDriving,
	}
	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Route{}, fmt.Errorf("%w: empty distance matrix", ErrUpstream)
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Route{}, fmt.Errorf("%w: no route found (%s)", ErrUpstream, el.Status)
	}
	return Route{DistanceKm: float64(el.Distance.Meters) / 1000, Duration: el.Duration}, nil
}

func (s *RouteService) estimate(origin, destination types.Point) Route {
	km := location.DistanceKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng)
	hours := km / s.fallbackKmh
	return Route{
		DistanceKm: km,
		Duration:   time.Duration(hours * float64(time.Hour)).Round(time.Second),
		Estimated:  true,
	}
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
