// README: In-memory ride repository for tests and the offline search CLI.
package ride

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"boleia/internal/types"
)

// MemoryStore mirrors Store's filter semantics over a fixed slice.
type MemoryStore struct {
	mu    sync.RWMutex
	rides []Candidate
	err   error
}

func NewMemoryStore(rides ...Candidate) *MemoryStore {
	return &MemoryStore{rides: append([]Candidate(nil), rides...)}
}

func (m *MemoryStore) Add(c Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides = append(m.rides, c)
}

// FailWith makes every later query return err; nil clears it.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryStore) QueryAvailable(ctx context.Context, f Filters) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []Status{StatusAvailable}
	}
	var out []Candidate
	for _, c := range m.rides {
		if !hasStatus(statuses, c.Status) {
			continue
		}
		if !f.DepartureFrom.IsZero() && c.DepartureAt.Before(startOfDay(f.DepartureFrom)) {
			continue
		}
		if f.After != nil && !f.After.Before(Cursor{DepartureAt: c.DepartureAt, ID: c.ID}) {
			continue
		}
		if f.hasCorridor() && !corridorHit(f, c) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DepartureAt.Equal(out[j].DepartureAt) {
			return out[i].DepartureAt.Before(out[j].DepartureAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id types.ID) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.rides {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func hasStatus(set []Status, s Status) bool {
	for _, st := range set {
		if st == s {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func corridorHit(f Filters, c Candidate) bool {
	from := []string{c.From.City, c.From.Province, c.From.District, c.From.Locality}
	to := []string{c.To.City, c.To.Province, c.To.District, c.To.Locality}
	if f.CrossSide {
		from = append(from, to...)
		to = from
	}
	return (f.FromText != "" && anyContains(from, f.FromText)) ||
		(f.ToText != "" && anyContains(to, f.ToText)) ||
		(f.FromProvince != "" && anyContains([]string{c.From.Province}, f.FromProvince)) ||
		(f.ToProvince != "" && anyContains([]string{c.To.Province}, f.ToProvince))
}

func anyContains(cols []string, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	for _, col := range cols {
		if strings.Contains(strings.ToLower(col), needle) {
			return true
		}
	}
	return false
}
