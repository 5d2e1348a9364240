package ride

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boleia/internal/types"
)

var maputoTZ = time.FixedZone("CAT", 2*60*60)

func TestCandidateFromRow_SnakeCase(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	var price pgtype.Numeric
	require.NoError(t, price.Scan("1250.50"))

	rec := map[string]any{
		"id":              [16]byte(id),
		"driver_id":       "drv-1",
		"from_city":       "Maputo",
		"from_province":   "Maputo",
		"to_city":         "Beira",
		"to_province":     "Sofala",
		"from_lat":        -25.9692,
		"from_lng":        32.5732,
		"departure_date":  time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		"departure_time":  pgtype.Time{Microseconds: int64((7*time.Hour + 30*time.Minute) / time.Microsecond), Valid: true},
		"price_per_seat":  price,
		"available_seats": int32(3),
		"max_passengers":  int32(4),
		"status":          "Available",
		"vehicle_make":    "Toyota",
		"driver_name":     "Ana",
		"driver_rating":   4.8,
	}

	c, err := candidateFromRow(rec, maputoTZ)
	require.NoError(t, err)
	assert.Equal(t, types.ID(id.String()), c.ID)
	assert.Equal(t, "Maputo", c.From.City)
	assert.Equal(t, "Sofala", c.To.Province)
	assert.Equal(t, time.Date(2026, 10, 20, 7, 30, 0, 0, maputoTZ), c.DepartureAt)
	assert.Equal(t, types.Money{Amount: 125050, Currency: "MZN"}, c.PricePerSeat)
	assert.Equal(t, 3, c.AvailableSeats)
	assert.Equal(t, StatusAvailable, c.Status)
	require.NotNil(t, c.From.Coordinates)
	assert.InDelta(t, -25.9692, c.From.Coordinates.Lat, 1e-9)
	assert.Nil(t, c.To.Coordinates)
	assert.Equal(t, "Toyota", c.Vehicle.Make)
	assert.Equal(t, 4.8, c.Driver.Rating)
}

func TestCandidateFromRow_CamelAndLegacyAliases(t *testing.T) {
	rec := map[string]any{
		"rideId":          "r-9",
		"originCity":      "Nampula",
		"destinationCity": "Pemba",
		"departureDate":   "2026-11-02",
		"departureTime":   "14:05",
		"price":           "300",
		"seatsAvailable":  "2",
		"licensePlate":    "ABC-123-MP",
	}

	c, err := candidateFromRow(rec, maputoTZ)
	require.NoError(t, err)
	assert.Equal(t, types.ID("r-9"), c.ID)
	assert.Equal(t, "Nampula", c.From.City)
	assert.Equal(t, "Pemba", c.To.City)
	assert.Equal(t, time.Date(2026, 11, 2, 14, 5, 0, 0, maputoTZ), c.DepartureAt)
	assert.Equal(t, int64(30000), c.PricePerSeat.Amount)
	assert.Equal(t, 2, c.AvailableSeats)
	assert.Equal(t, "ABC-123-MP", c.Vehicle.Plate)
}

func TestCandidateFromRow_ClampsSeats(t *testing.T) {
	rec := map[string]any{"id": "r-1", "departure_date": "2026-10-20", "available_seats": int64(-2)}
	c, err := candidateFromRow(rec, maputoTZ)
	require.NoError(t, err)
	assert.Equal(t, 0, c.AvailableSeats)
}

func TestCandidateFromRow_PrefersTimestamp(t *testing.T) {
	at := time.Date(2026, 10, 20, 5, 0, 0, 0, time.UTC)
	rec := map[string]any{"id": "r-1", "departure_at": at, "departure_date": "2001-01-01"}
	c, err := candidateFromRow(rec, maputoTZ)
	require.NoError(t, err)
	assert.True(t, at.Equal(c.DepartureAt))
	assert.Equal(t, 7, c.DepartureAt.Hour())
}

func TestCandidateFromRow_Rejects(t *testing.T) {
	_, err := candidateFromRow(map[string]any{"from_city": "Maputo"}, maputoTZ)
	assert.ErrorIs(t, err, errMissingID)

	_, err = candidateFromRow(map[string]any{"id": "r-1"}, maputoTZ)
	assert.Error(t, err)
}

func TestCandidateFromRow_IgnoresZeroCoordinates(t *testing.T) {
	rec := map[string]any{"id": "r-1", "departure_date": "2026-10-20", "to_lat": 0.0, "to_lng": 0.0}
	c, err := candidateFromRow(rec, maputoTZ)
	require.NoError(t, err)
	assert.Nil(t, c.To.Coordinates)
}
