package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"googlemaps.github.io/maps"

	"boleia/internal/types"
)

var ErrNoResults = errors.New("no geocoding results")

type geocoder interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GeocodeService resolves Mozambican place names to coordinates with the
// Google Geocoding API. Answers are remembered for the process lifetime.
type GeocodeService struct {
	client geocoder

	mu    sync.RWMutex
	known map[string]types.Point
}

// NewGeocodeService creates a new GeocodeService with the given API Key.
func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return newGeocodeService(client), nil
}

func newGeocodeService(client geocoder) *GeocodeService {
	return &GeocodeService{client: client, known: make(map[string]types.Point)}
}

// Geocode returns the first result for text, restricted to Mozambique.
func (s *GeocodeService) Geocode(ctx context.Context, text string) (*types.Point, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return nil, ErrNoResults
	}
	s.mu.RLock()
	p, ok := s.known[key]
	s.mu.RUnlock()
	if ok {
		return &p, nil
	}

	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:    text,
		Region:     "mz",
		Language:   "pt",
		Components: map[maps.Component]string{maps.ComponentCountry: "MZ"},
	})
	if err != nil {
		return nil, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	loc := results[0].Geometry.Location
	p = types.Point{Lat: loc.Lat, Lng: loc.Lng}
	if !p.Valid() {
		return nil, fmt.Errorf("geocoding api returned %v,%v", loc.Lat, loc.Lng)
	}
	s.mu.Lock()
	s.known[key] = p
	s.mu.Unlock()
	return &p, nil
}
