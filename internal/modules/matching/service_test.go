package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]*Response
	ttls    map[string]time.Duration
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*Response{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if r, ok := c.entries[key]; ok {
		return r, nil
	}
	return nil, ErrCacheMiss
}

func (c *memCache) Set(_ context.Context, key string, resp *Response, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
	c.ttls[key] = ttl
	return nil
}

type stubGeocoder struct {
	points map[string]types.Point
	calls  []string
}

func (g *stubGeocoder) Geocode(_ context.Context, text string) (*types.Point, error) {
	g.calls = append(g.calls, text)
	if p, ok := g.points[text]; ok {
		return &p, nil
	}
	return nil, errors.New("zero results")
}

type countingRecorder struct {
	mu       sync.Mutex
	searches map[string]int
	results  map[string]int
	errors   map[string]int
	cache    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		searches: map[string]int{}, results: map[string]int{},
		errors: map[string]int{}, cache: map[string]int{},
	}
}

func (r *countingRecorder) ObserveSearch(strategy string, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches[strategy]++
}

func (r *countingRecorder) ObserveResults(matchType string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[matchType] += n
}

func (r *countingRecorder) EngineError(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[stage]++
}

func (r *countingRecorder) CacheLookup(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[outcome]++
}

func TestSearch_RejectsEmptySides(t *testing.T) {
	svc := NewService(ride.NewMemoryStore(), testClock(), testConfig())
	for _, q := range []Query{
		{From: " ", To: "Beira"},
		{From: "Maputo", To: "\t"},
		{From: "", To: ""},
		{From: "!!", To: "??"},
		{From: "Maputo", To: " -- "},
	} {
		resp, err := svc.Search(context.Background(), q)
		assert.ErrorIs(t, err, ErrInvalidQuery, "%+v", q)
		assert.Nil(t, resp)
	}
}

func TestSearch_RejectsInvalidCoordinates(t *testing.T) {
	svc := NewService(ride.NewMemoryStore(), testClock(), testConfig())
	_, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira", FromCoords: point(95, 10)})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearch_ExactMatchScenario(t *testing.T) {
	store := ride.NewMemoryStore(rideBetween("r-1", "maputo", "", "beira", ""))
	svc := NewService(store, testClock(), testConfig())

	resp, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	require.Len(t, resp.Rides, 1)
	assert.Equal(t, MatchExact, resp.Rides[0].MatchType)
	assert.GreaterOrEqual(t, resp.Rides[0].CompatibilityScore, 90)
	assert.Equal(t, StrategyPrimary, resp.SearchParams.StrategyUsed)
	assert.Equal(t, Pair{From: "Maputo", To: "Beira"}, resp.SearchParams.Original)
	assert.Equal(t, Pair{From: "maputo", To: "beira"}, resp.SearchParams.Normalized)
	assert.False(t, resp.Degraded)
}

func TestSearch_AppliesDefaultsAndBounds(t *testing.T) {
	svc := NewService(ride.NewMemoryStore(), testClock(), testConfig())
	ctx := context.Background()

	resp, err := svc.Search(ctx, Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.SearchParams.RadiusKm)
	assert.Equal(t, 20, resp.SearchParams.MaxResults)

	resp, err = svc.Search(ctx, Query{From: "Maputo", To: "Beira", RadiusKm: 9000, MaxResults: 1000})
	require.NoError(t, err)
	assert.Equal(t, 500.0, resp.SearchParams.RadiusKm)
	assert.Equal(t, 100, resp.SearchParams.MaxResults)

	resp, err = svc.Search(ctx, Query{From: "Maputo", To: "Beira", RadiusKm: 0.2, MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.SearchParams.RadiusKm)
	assert.Equal(t, 3, resp.SearchParams.MaxResults)
}

func TestSearch_ZeroCandidatesEndsInFallback(t *testing.T) {
	svc := NewService(ride.NewMemoryStore(), testClock(), testConfig())
	resp, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, resp.SearchParams.StrategyUsed)
	assert.Empty(t, resp.Rides)
	assert.NotNil(t, resp.Rides)
	assert.Equal(t, 0, resp.Stats.Total)
	assert.False(t, resp.Degraded)
}

func TestSearch_DegradedIsNotAnError(t *testing.T) {
	store := ride.NewMemoryStore()
	store.FailWith(errors.New("too many connections"))
	cache := newMemCache()
	rec := newCountingRecorder()
	svc := NewService(store, testClock(), testConfig(), WithCache(cache), WithRecorder(rec))

	resp, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Rides)
	assert.Equal(t, StrategyFallback, resp.SearchParams.StrategyUsed)
	assert.Empty(t, cache.entries, "degraded responses are not cached")
	assert.Equal(t, 1, rec.errors[StageQuery])
	assert.Equal(t, 1, rec.errors[StageTraditional])
}

func TestSearch_CachesResponses(t *testing.T) {
	store := ride.NewMemoryStore(rideBetween("r-1", "Maputo", "", "Beira", ""))
	cache := newMemCache()
	rec := newCountingRecorder()
	svc := NewService(store, testClock(), testConfig(), WithCache(cache), WithRecorder(rec))
	ctx := context.Background()

	first, err := svc.Search(ctx, Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)
	for key, ttl := range cache.ttls {
		assert.Equal(t, "boleia:search:maputo|beira|-|-|100|20", key)
		assert.Equal(t, 30*time.Second, ttl)
	}

	store.Add(rideBetween("r-2", "Maputo", "", "Beira", ""))
	second, err := svc.Search(ctx, Query{From: " maputo", To: "BEIRA"})
	require.NoError(t, err)
	assert.Len(t, second.Rides, len(first.Rides))
	assert.Equal(t, Pair{From: "maputo", To: "BEIRA"}, second.SearchParams.Original)
	require.NotEmpty(t, second.Rides)
	assert.Equal(t, "maputo", second.Rides[0].SearchMetadata.OriginalFrom)
	assert.Equal(t, "BEIRA", second.Rides[0].SearchMetadata.OriginalTo)
	assert.False(t, second.Rides[0].SearchMetadata.FromChanged)
	assert.True(t, second.Rides[0].SearchMetadata.ToChanged)
	assert.Equal(t, Pair{From: "Maputo", To: "Beira"}, first.SearchParams.Original)
	assert.Equal(t, "Maputo", first.Rides[0].SearchMetadata.OriginalFrom)
	assert.Equal(t, 1, rec.cache["miss"])
	assert.Equal(t, 1, rec.cache["hit"])
	assert.Equal(t, 1, rec.searches[string(StrategyPrimary)])
}

func TestSearch_ScoresBeyondFirstPage(t *testing.T) {
	early := testDepart.Add(-time.Hour)
	a := rideBetween("a", "Maputo", "", "Lichinga", "")
	a.DepartureAt = early
	b := rideBetween("b", "Maputo", "", "Lichinga", "")
	b.DepartureAt = early
	exact := rideBetween("z-exact", "Maputo", "", "Beira", "")
	exact.DepartureAt = testDepart.AddDate(0, 0, 1)
	cfg := testConfig()
	cfg.MaxCandidates = 2
	svc := NewService(ride.NewMemoryStore(a, b, exact), testClock(), cfg)

	resp, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Rides)
	assert.Equal(t, types.ID("z-exact"), resp.Rides[0].ID)
	assert.Equal(t, MatchExact, resp.Rides[0].MatchType)
	assert.Len(t, resp.Rides, 3)
}

// gatedSource blocks its first query until release is closed.
type gatedSource struct {
	inner   *ride.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) QueryAvailable(ctx context.Context, f ride.Filters) ([]ride.Candidate, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.inner.QueryAvailable(ctx, f)
}

func TestSearch_SharedRunSurvivesCallerCancel(t *testing.T) {
	src := &gatedSource{
		inner:   ride.NewMemoryStore(rideBetween("r-1", "Maputo", "", "Beira", "")),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(src, testClock(), testConfig())
	q := Query{From: "Maputo", To: "Beira"}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Search(leaderCtx, q)
		leaderErr <- err
	}()
	<-src.entered

	type outcome struct {
		resp *Response
		err  error
	}
	follower := make(chan outcome, 1)
	go func() {
		resp, err := svc.Search(context.Background(), q)
		follower <- outcome{resp, err}
	}()

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	time.Sleep(10 * time.Millisecond)
	close(src.release)

	got := <-follower
	require.NoError(t, got.err)
	assert.False(t, got.resp.Degraded)
	require.Len(t, got.resp.Rides, 1)
	assert.Equal(t, MatchExact, got.resp.Rides[0].MatchType)
}

func TestSearch_CacheErrorsAreIgnored(t *testing.T) {
	store := ride.NewMemoryStore(rideBetween("r-1", "Maputo", "", "Beira", ""))
	cache := newMemCache()
	cache.getErr = errors.New("redis: connection pool timeout")
	svc := NewService(store, testClock(), testConfig(), WithCache(cache))

	resp, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	assert.Len(t, resp.Rides, 1)
}

func TestSearch_CacheDisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.CacheEnabled = false
	cache := newMemCache()
	svc := NewService(ride.NewMemoryStore(rideBetween("r-1", "Maputo", "", "Beira", "")), testClock(), cfg, WithCache(cache))

	_, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)
	assert.Empty(t, cache.entries)
}

func TestSearch_GeocodesMissingCoordinates(t *testing.T) {
	r := rideBetween("r-1", "Namialo", "", "Mecufi", "")
	r.From.Coordinates = point(-14.85, 39.07)
	geo := &stubGeocoder{points: map[string]types.Point{"Nampula": {Lat: -15.1165, Lng: 39.2666}}}
	svc := NewService(ride.NewMemoryStore(r), testClock(), testConfig(), WithGeocoder(geo))

	resp, err := svc.Search(context.Background(), Query{From: "Nampula", To: "Pemba"})
	require.NoError(t, err)
	require.Len(t, resp.Rides, 1)
	assert.Equal(t, MatchNearby, resp.Rides[0].MatchType)
	require.NotNil(t, resp.Rides[0].DistanceFromOriginKm)
	assert.LessOrEqual(t, *resp.Rides[0].DistanceFromOriginKm, 100.0)
	assert.Equal(t, []string{"Nampula", "Pemba"}, geo.calls)
}

func TestSearch_GeocoderSkippedWhenCoordinatesGiven(t *testing.T) {
	geo := &stubGeocoder{}
	svc := NewService(ride.NewMemoryStore(), testClock(), testConfig(), WithGeocoder(geo))
	_, err := svc.Search(context.Background(), Query{
		From: "Maputo", To: "Beira",
		FromCoords: point(-25.97, 32.57), ToCoords: point(-19.84, 34.84),
	})
	require.NoError(t, err)
	assert.Empty(t, geo.calls)
}

func TestSearch_ResponseJSON(t *testing.T) {
	store := ride.NewMemoryStore(rideBetween("r-1", "Maputo", "", "Beira", ""))
	svc := NewService(store, testClock(), testConfig())
	resp, err := svc.Search(context.Background(), Query{From: "Maputo", To: "Beira"})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Contains(t, doc, "rides")
	assert.Contains(t, doc, "stats")
	params := doc["searchParams"].(map[string]any)
	assert.Equal(t, "primary", params["strategyUsed"])
	assert.Equal(t, 100.0, params["radiusKm"])

	rides := doc["rides"].([]any)
	first := rides[0].(map[string]any)
	assert.Equal(t, "exact_match", first["matchType"])
	assert.IsType(t, float64(0), first["compatibilityScore"])
	assert.Equal(t, testDepart.Format(time.RFC3339), first["departureAt"])
	assert.Equal(t, "corridor", first["searchMetadata"].(map[string]any)["function_used"])
	assert.NotContains(t, doc, "error")
}

// TestSearch_RandomQueriesStayOrdered runs random corridors over a random inventory.
func TestSearch_RandomQueriesStayOrdered(t *testing.T) {
	places := [][2]string{
		{"Maputo", "Maputo"}, {"Matola", "Maputo"}, {"Xai-Xai", "Gaza"}, {"Beira", "Sofala"},
		{"Dondo", "Sofala"}, {"Chimoio", "Manica"}, {"Tete", "Tete"}, {"Quelimane", "Zambézia"},
		{"Nampula", "Nampula"}, {"Nacala", "Nampula"}, {"Pemba", "Cabo Delgado"}, {"Lichinga", "Niassa"},
	}
	rng := rand.New(rand.NewSource(3))
	store := ride.NewMemoryStore()
	for i := 0; i < 120; i++ {
		from, to := places[rng.Intn(len(places))], places[rng.Intn(len(places))]
		r := rideBetween(fmt.Sprintf("r-%03d", i), from[0], from[1], to[0], to[1])
		r.DepartureAt = testDepart.Add(time.Duration(rng.Intn(96)) * time.Hour)
		r.AvailableSeats = rng.Intn(5)
		store.Add(r)
	}
	svc := NewService(store, testClock(), testConfig())

	for i := 0; i < 40; i++ {
		from, to := places[rng.Intn(len(places))], places[rng.Intn(len(places))]
		limit := 1 + rng.Intn(30)
		resp, err := svc.Search(context.Background(), Query{From: from[rng.Intn(2)], To: to[rng.Intn(2)], MaxResults: limit})
		require.NoError(t, err)
		require.LessOrEqual(t, len(resp.Rides), limit)
		seen := map[types.ID]bool{}
		for j, r := range resp.Rides {
			require.False(t, seen[r.ID])
			seen[r.ID] = true
			if j > 0 {
				require.GreaterOrEqual(t, resp.Rides[j-1].MatchType.Priority(), r.MatchType.Priority())
			}
			lo, hi := r.MatchType.scoreBand()
			require.GreaterOrEqual(t, r.CompatibilityScore, lo)
			require.LessOrEqual(t, r.CompatibilityScore, hi)
		}
	}
}
