package event

import (
	"context"
	"time"

	"github.com/calbot/calbot/internal/utils"
)

// Filter narrows a listing. Nil fields impose no constraint.
type Filter struct {
	// Start keeps events with start_time >= Start.
	Start *time.Time
	// End keeps events with end_time <= End.
	End          *time.Time
	Owner        *string
	OrderByStart bool
}

// Agenda is a listing over a derived time range.
type Agenda struct {
	From   time.Time
	To     time.Time
	Events []Event
}

type QueryService interface {
	List(ctx context.Context, filter Filter) ([]Event, error)
	ForOwner(ctx context.Context, owner string) ([]Event, error)
	Today(ctx context.Context, owner string) (Agenda, error)
	Tomorrow(ctx context.Context, owner string) (Agenda, error)
	Week(ctx context.Context, owner string) (Agenda, error)
}

type QueryServiceImpl struct {
	repo     Repository
	clock    utils.Clock
	location *time.Location
}

func NewQueryService(repo Repository, clock utils.Clock, location *time.Location) *QueryServiceImpl {
	if location == nil {
		location = time.Local
	}
	return &QueryServiceImpl{repo: repo, clock: clock, location: location}
}

func (s *QueryServiceImpl) List(ctx context.Context, filter Filter) ([]Event, error) {
	return s.repo.FindEvents(ctx, filter)
}

func (s *QueryServiceImpl) ForOwner(ctx context.Context, owner string) ([]Event, error) {
	return s.repo.FindEvents(ctx, Filter{Owner: &owner, OrderByStart: true})
}

func (s *QueryServiceImpl) Today(ctx context.Context, owner string) (Agenda, error) {
	return s.day(ctx, owner, s.clock.Now())
}

func (s *QueryServiceImpl) Tomorrow(ctx context.Context, owner string) (Agenda, error) {
	return s.day(ctx, owner, s.clock.Now().AddDate(0, 0, 1))
}

func (s *QueryServiceImpl) Week(ctx context.Context, owner string) (Agenda, error) {
	now := s.clock.Now().In(s.location)
	return s.agenda(ctx, owner, now, now.AddDate(0, 0, 7))
}

func (s *QueryServiceImpl) day(ctx context.Context, owner string, at time.Time) (Agenda, error) {
	local := at.In(s.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	return s.agenda(ctx, owner, midnight, midnight.AddDate(0, 0, 1))
}

func (s *QueryServiceImpl) agenda(ctx context.Context, owner string, from, to time.Time) (Agenda, error) {
	events, err := s.repo.FindEvents(ctx, Filter{
		Start:        &from,
		End:          &to,
		Owner:        &owner,
		OrderByStart: true,
	})
	if err != nil {
		return Agenda{}, err
	}
	return Agenda{From: from, To: to, Events: events}, nil
}
