// README: Ride service exposes single-ride lookup and the available-rides query.
package ride

import (
	"context"
	"errors"
	"strings"

	"boleia/internal/types"
)

var (
	ErrNotFound   = errors.New("ride not found")
	ErrBadRequest = errors.New("bad request")
)

// Repository is the read side of ride storage. *Store implements it.
type Repository interface {
	QueryAvailable(ctx context.Context, f Filters) ([]Candidate, error)
	GetByID(ctx context.Context, id types.ID) (*Candidate, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns one ride regardless of status; callers decide what a booked ride means.
func (s *Service) Get(ctx context.Context, id types.ID) (*Candidate, error) {
	id = types.ID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.repo.GetByID(ctx, id)
}

// Available lists rides for f, defaulting to the available status.
func (s *Service) Available(ctx context.Context, f Filters) ([]Candidate, error) {
	if f.Limit < 0 {
		return nil, ErrBadRequest
	}
	return s.repo.QueryAvailable(ctx, f)
}
