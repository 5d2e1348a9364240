// README: Ride store backed by PostgreSQL; read-only queries for search and lookup.
package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"boleia/internal/log"
	"boleia/internal/types"
)

// The rides table belongs to the ride-creation workflow; r.* is adapted
// column by column in candidateFromRow.
const selectRides = `
        SELECT r.*,
               d.full_name AS driver_name, d.rating AS driver_rating,
               v.make AS vehicle_make, v.model AS vehicle_model, v.vehicle_type AS vehicle_type,
               v.plate AS vehicle_plate, v.color AS vehicle_color
        FROM rides r
        LEFT JOIN drivers d ON d.id = r.driver_id
        LEFT JOIN vehicles v ON v.id = r.vehicle_id`

type Store struct {
	db  *pgxpool.Pool
	loc *time.Location
}

// NewStore returns a Store; loc is the zone departure dates and times are stored in.
func NewStore(db *pgxpool.Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) QueryAvailable(ctx context.Context, f Filters) ([]Candidate, error) {
	query, args := buildAvailableQuery(f, s.loc)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query available rides: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect ride rows: %w", err)
	}

	out := make([]Candidate, 0, len(records))
	for _, rec := range records {
		c, err := candidateFromRow(rec, s.loc)
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("skipping malformed ride row")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id types.ID) (*Candidate, error) {
	rows, err := s.db.Query(ctx, selectRides+"\n        WHERE r.id::text = $1", string(id))
	if err != nil {
		return nil, fmt.Errorf("query ride %s: %w", id, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("collect ride %s: %w", id, err)
	}
	c, err := candidateFromRow(rec, s.loc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// buildAvailableQuery renders Filters as SQL with positional arguments.
func buildAvailableQuery(f Filters, loc *time.Location) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []Status{StatusAvailable}
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	where = append(where, "lower(r.status) = ANY("+arg(names)+")")

	if !f.DepartureFrom.IsZero() {
		d := f.DepartureFrom.In(loc)
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "r.departure_date >= "+arg(day))
	}

	if f.After != nil {
		d := f.After.DepartureAt.In(loc)
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		tod := pgtype.Time{
			Microseconds: int64(d.Hour())*3600e6 + int64(d.Minute())*60e6 +
				int64(d.Second())*1e6 + int64(d.Nanosecond()/1000),
			Valid: true,
		}
		where = append(where, fmt.Sprintf("(r.departure_date, r.departure_time, r.id) > (%s::date, %s::time, %s::uuid)",
			arg(day), arg(tod), arg(string(f.After.ID))))
	}

	if f.hasCorridor() {
		var corridor []string
		endpoint := func(side, p string) []string {
			return []string{
				"r." + side + "_city ILIKE " + p, "r." + side + "_province ILIKE " + p,
				"r." + side + "_district ILIKE " + p, "r." + side + "_locality ILIKE " + p,
			}
		}
		if f.FromText != "" {
			p := arg(likePattern(f.FromText))
			corridor = append(corridor, endpoint("from", p)...)
			if f.CrossSide {
				corridor = append(corridor, endpoint("to", p)...)
			}
		}
		if f.ToText != "" {
			p := arg(likePattern(f.ToText))
			corridor = append(corridor, endpoint("to", p)...)
			if f.CrossSide {
				corridor = append(corridor, endpoint("from", p)...)
			}
		}
		if f.FromProvince != "" {
			corridor = append(corridor, "r.from_province ILIKE "+arg(likePattern(f.FromProvince)))
		}
		if f.ToProvince != "" {
			corridor = append(corridor, "r.to_province ILIKE "+arg(likePattern(f.ToProvince)))
		}
		where = append(where, "("+strings.Join(corridor, " OR ")+")")
	}

	query := selectRides + "\n        WHERE " + strings.Join(where, "\n          AND ") +
		"\n        ORDER BY r.departure_date, r.departure_time, r.id"
	if f.Limit > 0 {
		query += "\n        LIMIT " + arg(f.Limit)
	}
	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(text string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(text)) + "%"
}
