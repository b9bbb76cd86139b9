package maps

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"googlemaps.github.io/maps"

	"petride/internal/types"
)

type stubMatrix struct {
	req  *maps.DistanceMatrixRequest
	resp *maps.DistanceMatrixResponse
	err  error
}

func (s *stubMatrix) DistanceMatrix(_ context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error) {
	s.req = r
	return s.resp, s.err
}

var (
	siam      = types.Point{Lat: 13.7466, Lng: 100.5393}
	chatuchak = types.Point{Lat: 13.7999, Lng: 100.5500}
)

func TestDistanceAndDurationFromMatrix(t *testing.T) {
	stub := &stubMatrix{resp: &maps.DistanceMatrixResponse{
		Rows: []maps.DistanceMatrixElementsRow{{
			Elements: []*maps.DistanceMatrixElement{{
				Status:   "OK",
				Distance: maps.Distance{Meters: 8400},
				Duration: 22 * time.Minute,
			}},
		}},
	}}
	s := &RouteService{client: stub, fallbackKmh: 30}

	r, err := s.DistanceAndDuration(context.Background(), siam, chatuchak)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if r.DistanceKm != 8.4 || r.Duration != 22*time.Minute || r.Estimated {
		t.Fatalf("unexpected route: %+v", r)
	}
	if stub.req.Origins[0] != "13.746600,100.539300" || stub.req.Mode != maps.TravelModeDriving {
		t.Fatalf("unexpected request: %+v", stub.req)
	}
}

func TestDistanceAndDurationUpstreamErrors(t *testing.T) {
	cases := []*stubMatrix{
		{err: errors.New("REQUEST_DENIED")},
		{resp: &maps.DistanceMatrixResponse{}},
		{resp: &maps.DistanceMatrixResponse{Rows: []maps.DistanceMatrixElementsRow{{
			Elements: []*maps.DistanceMatrixElement{{Status: "ZERO_RESULTS"}},
		}}}},
	}
	for i, stub := range cases {
		s := &RouteService{client: stub, fallbackKmh: 30}
		if _, err := s.DistanceAndDuration(context.Background(), siam, chatuchak); !errors.Is(err, ErrUpstream) {
			t.Errorf("case %d: expected ErrUpstream, got %v", i, err)
		}
	}
}

func TestDistanceAndDurationFallback(t *testing.T) {
	s, err := NewRouteService("", 30)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.DistanceAndDuration(context.Background(), siam, chatuchak)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Estimated {
		t.Fatalf("expected estimated route")
	}
	if math.Abs(r.DistanceKm-6.0) > 0.5 {
		t.Fatalf("expected ~6km, got %.2f", r.DistanceKm)
	}
	want := time.Duration(r.DistanceKm / 30 * float64(time.Hour)).Round(time.Second)
	if r.Duration != want {
		t.Fatalf("expected %s at 30km/h, got %s", want, r.Duration)
	}
}
