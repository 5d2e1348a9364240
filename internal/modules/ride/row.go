// README: Storage-boundary adapter turning loosely-typed ride rows into Candidate.
package ride

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"boleia/internal/types"
)

var errMissingID = errors.New("ride row has no id")

// fieldAliases lists the spellings a column has had across schema versions.
// Keys are compared after lower-casing and dropping underscores, so from_city
// and fromCity need no separate entry.
var fieldAliases = map[string][]string{
	"id":             {"id", "ride_id"},
	"driver_id":      {"driver_id", "user_id", "owner_id"},
	"from_city":      {"from_city", "origin_city", "from_location"},
	"from_province":  {"from_province", "origin_province"},
	"from_district":  {"from_district", "origin_district"},
	"from_locality":  {"from_locality", "origin_locality", "from_neighborhood"},
	"from_lat":       {"from_lat", "from_latitude", "origin_lat", "origin_latitude"},
	"from_lng":       {"from_lng", "from_longitude", "origin_lng", "origin_longitude"},
	"to_city":        {"to_city", "destination_city", "to_location"},
	"to_province":    {"to_province", "destination_province"},
	"to_district":    {"to_district", "destination_district"},
	"to_locality":    {"to_locality", "destination_locality", "to_neighborhood"},
	"to_lat":         {"to_lat", "to_latitude", "destination_lat", "destination_latitude"},
	"to_lng":         {"to_lng", "to_longitude", "destination_lng", "destination_longitude"},
	"departure_at":   {"departure_at", "departure_datetime"},
	"departure_date": {"departure_date", "date"},
	"departure_time": {"departure_time", "time"},
	"price_per_seat": {"price_per_seat", "price", "seat_price"},
	"currency":       {"currency"},
	"available":      {"available_seats", "seats_available", "seats"},
	"max_passengers": {"max_passengers", "capacity"},
	"vehicle_make":   {"vehicle_make", "make"},
	"vehicle_model":  {"vehicle_model", "model"},
	"vehicle_type":   {"vehicle_type", "type"},
	"vehicle_plate":  {"vehicle_plate", "license_plate", "plate"},
	"vehicle_color":  {"vehicle_color", "color"},
	"driver_name":    {"driver_name", "full_name"},
	"driver_rating":  {"driver_rating", "rating"},
	"status":         {"status", "ride_status"},
}

type row map[string]any

func indexRow(rec map[string]any) row {
	r := make(row, len(rec))
	for k, v := range rec {
		r[foldKey(k)] = v
	}
	return r
}

func foldKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(k), "_", "")
}

// get returns the first non-nil value among a field's aliases.
func (r row) get(field string) any {
	for _, alias := range fieldAliases[field] {
		if v, ok := r[foldKey(alias)]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (r row) str(field string) string    { return asString(r.get(field)) }
func (r row) float(field string) float64 { f, _ := asFloat(r.get(field)); return f }
func (r row) integer(field string) int   { n, _ := asInt(r.get(field)); return n }

// candidateFromRow adapts one row; loc interprets zone-less dates and times.
func candidateFromRow(rec map[string]any, loc *time.Location) (Candidate, error) {
	r := indexRow(rec)
	c := Candidate{
		ID:       types.ID(r.str("id")),
		DriverID: types.ID(r.str("driver_id")),
		From: Endpoint{
			City:     r.str("from_city"),
			Province: r.str("from_province"),
			District: r.str("from_district"),
			Locality: r.str("from_locality"),
		},
		To: Endpoint{
			City:     r.str("to_city"),
			Province: r.str("to_province"),
			District: r.str("to_district"),
			Locality: r.str("to_locality"),
		},
		AvailableSeats: max(r.integer("available"), 0),
		MaxPassengers:  max(r.integer("max_passengers"), 0),
		Vehicle: Vehicle{
			Make:  r.str("vehicle_make"),
			Model: r.str("vehicle_model"),
			Type:  r.str("vehicle_type"),
			Plate: r.str("vehicle_plate"),
			Color: r.str("vehicle_color"),
		},
		Driver: Driver{
			Name:   r.str("driver_name"),
			Rating: r.float("driver_rating"),
		},
		Status: Status(strings.ToLower(strings.TrimSpace(r.str("status")))),
	}
	if c.ID == "" {
		return Candidate{}, errMissingID
	}
	c.From.Coordinates = r.point("from_lat", "from_lng")
	c.To.Coordinates = r.point("to_lat", "to_lng")

	departure, err := r.departure(loc)
	if err != nil {
		return Candidate{}, fmt.Errorf("ride %s: %w", c.ID, err)
	}
	c.DepartureAt = departure

	currency := strings.ToUpper(r.str("currency"))
	if currency == "" {
		currency = types.DefaultCurrency
	}
	price, _ := asFloat(r.get("price_per_seat"))
	c.PricePerSeat = types.Money{Amount: int64(math.Round(price * 100)), Currency: currency}
	return c, nil
}

func (r row) point(latField, lngField string) *types.Point {
	lat, okLat := asFloat(r.get(latField))
	lng, okLng := asFloat(r.get(lngField))
	if !okLat || !okLng {
		return nil
	}
	p := types.Point{Lat: lat, Lng: lng}
	if !p.Valid() || (lat == 0 && lng == 0) {
		return nil
	}
	return &p
}

// departure combines the stored date and time of day, or uses a full
// timestamp column when the row has one.
func (r row) departure(loc *time.Location) (time.Time, error) {
	if at, ok := asTimestamp(r.get("departure_at"), loc); ok {
		return at, nil
	}
	day, ok := asDate(r.get("departure_date"), loc)
	if !ok {
		return time.Time{}, errors.New("missing departure date")
	}
	clock := asClock(r.get("departure_time"))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).Add(clock), nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case [16]byte:
		return uuid.UUID(t).String()
	case pgtype.UUID:
		if !t.Valid {
			return ""
		}
		return uuid.UUID(t.Bytes).String()
	case pgtype.Text:
		return strings.TrimSpace(t.String)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case pgtype.Numeric:
		f, err := t.Float64Value()
		return f.Float64, err == nil && f.Valid
	case pgtype.Float8:
		return t.Float64, t.Valid
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	if f, ok := asFloat(v); ok {
		return int(f), true
	}
	return 0, false
}

func asTimestamp(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.In(loc), true
	case pgtype.Timestamptz:
		return t.Time.In(loc), t.Valid
	case pgtype.Timestamp:
		return time.Date(t.Time.Year(), t.Time.Month(), t.Time.Day(),
			t.Time.Hour(), t.Time.Minute(), t.Time.Second(), 0, loc), t.Valid
	case string:
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(t)); err == nil {
			return ts.In(loc), true
		}
	}
	return time.Time{}, false
}

// asDate keeps the calendar day as stored; pgx reports dates at UTC midnight.
func asDate(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case pgtype.Date:
		return t.Time, t.Valid
	case string:
		d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(t), loc)
		return d, err == nil
	}
	return time.Time{}, false
}

// asClock returns the time of day as an offset from midnight.
func asClock(v any) time.Duration {
	switch t := v.(type) {
	case pgtype.Time:
		if t.Valid {
			return time.Duration(t.Microseconds) * time.Microsecond
		}
	case time.Time:
		return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second
	case time.Duration:
		return t
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range []string{"15:04:05", "15:04"} {
			if tm, err := time.Parse(layout, s); err == nil {
				return time.Duration(tm.Hour())*time.Hour + time.Duration(tm.Minute())*time.Minute +
					time.Duration(tm.Second())*time.Second
			}
		}
	}
	return 0
}
