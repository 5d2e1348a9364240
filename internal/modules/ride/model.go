// README: Ride inventory projection consumed by search, and its status set.
package ride

import (
	"time"

	"boleia/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBooked, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Endpoint is one end of a ride's corridor as stored, with original casing.
type Endpoint struct {
	City        string       `json:"city"`
	Province    string       `json:"province"`
	District    string       `json:"district,omitempty"`
	Locality    string       `json:"locality,omitempty"`
	Coordinates *types.Point `json:"coordinates,omitempty"`
}

type Vehicle struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Type  string `json:"type,omitempty"`
	Plate string `json:"plate,omitempty"`
	Color string `json:"color,omitempty"`
}

type Driver struct {
	Name   string  `json:"name,omitempty"`
	Rating float64 `json:"rating"`
}

// Candidate is a read-only ride row in its one canonical shape.
type Candidate struct {
	ID             types.ID    `json:"id"`
	DriverID       types.ID    `json:"driverId"`
	From           Endpoint    `json:"from"`
	To             Endpoint    `json:"to"`
	DepartureAt    time.Time   `json:"departureAt"`
	PricePerSeat   types.Money `json:"pricePerSeat"`
	AvailableSeats int         `json:"availableSeats"`
	MaxPassengers  int         `json:"maxPassengers"`
	Vehicle        Vehicle     `json:"vehicle"`
	Driver         Driver      `json:"driver"`
	Status         Status      `json:"status"`
}

// Matchable reports whether the ride can be offered to a search made at now.
func (c Candidate) Matchable(now time.Time) bool {
	return c.Status == StatusAvailable && !c.DepartureAt.Before(now)
}

// Filters narrows QueryAvailable. Text and province filters are
// case-insensitive substring filters on the raw columns and are OR-combined:
// a row qualifies when any set filter hits.
type Filters struct {
	FromText     string
	ToText       string
	FromProvince string
	ToProvince   string
	// CrossSide also matches FromText against the destination columns and
	// ToText against the origin columns.
	CrossSide     bool
	Statuses      []Status
	DepartureFrom time.Time
	// After resumes the scan strictly after this row in departure order.
	After *Cursor
	Limit int
}

// Cursor is a position in the (departure, id) order QueryAvailable returns.
type Cursor struct {
	DepartureAt time.Time
	ID          types.ID
}

// CursorAfter returns the cursor that resumes a scan after c.
func CursorAfter(c Candidate) *Cursor {
	return &Cursor{DepartureAt: c.DepartureAt, ID: c.ID}
}

// Before reports whether c sorts strictly before other.
func (c Cursor) Before(other Cursor) bool {
	if !c.DepartureAt.Equal(other.DepartureAt) {
		return c.DepartureAt.Before(other.DepartureAt)
	}
	return c.ID < other.ID
}

func (f Filters) hasCorridor() bool {
	return f.FromText != "" || f.ToText != "" || f.FromProvince != "" || f.ToProvince != ""
}
