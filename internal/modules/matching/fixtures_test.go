package matching

import (
	"context"
	"sync"
	"time"

	"boleia/internal/clock"
	"boleia/internal/config"
	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

var (
	testNow    = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	testDepart = time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
)

func testClock() *clock.MockClock {
	return clock.NewMockClock(testNow)
}

func testConfig() config.MatchingConfig {
	return config.MatchingConfig{
		DefaultRadiusKm:   100,
		DefaultMaxResults: 20,
		MaxCandidates:     500,
		CacheEnabled:      true,
		CacheTTL:          30 * time.Second,
	}
}

// stubSource answers QueryAvailable through respond and records every call.
type stubSource struct {
	mu      sync.Mutex
	calls   []ride.Filters
	respond func(f ride.Filters) ([]ride.Candidate, error)
}

func (s *stubSource) QueryAvailable(_ context.Context, f ride.Filters) ([]ride.Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, f)
	s.mu.Unlock()
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(f)
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// primaryOnly serves rows only to the corridor pass, which sends no text filters.
func primaryOnly(rows ...ride.Candidate) func(ride.Filters) ([]ride.Candidate, error) {
	return func(f ride.Filters) ([]ride.Candidate, error) {
		if f.FromText == "" && f.ToText == "" {
			return rows, nil
		}
		return nil, nil
	}
}

func rideBetween(id, fromCity, fromProvince, toCity, toProvince string) ride.Candidate {
	return ride.Candidate{
		ID:             types.ID(id),
		DriverID:       "drv-" + types.ID(id),
		From:           ride.Endpoint{City: fromCity, Province: fromProvince},
		To:             ride.Endpoint{City: toCity, Province: toProvince},
		DepartureAt:    testDepart,
		PricePerSeat:   types.Money{Amount: 150000, Currency: types.DefaultCurrency},
		AvailableSeats: 3,
		MaxPassengers:  4,
		Status:         ride.StatusAvailable,
	}
}

func point(lat, lng float64) *types.Point {
	return &types.Point{Lat: lat, Lng: lng}
}
