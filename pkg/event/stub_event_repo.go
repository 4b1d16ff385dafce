package event

import (
	"context"
	"sort"
	"sync"
)

type StubEventRepository struct {
	mu     sync.Mutex
	nextID int64
	Events []Event
	// Err, when set, is returned by every call.
	Err error
}

func NewStubEventRepository() *StubEventRepository {
	return &StubEventRepository{nextID: 1}
}

func (s *StubEventRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if s.Err != nil {
		return s.Err
	}
	return fn(s)
}

func (s *StubEventRepository) StoreEvent(ctx context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Event{}, s.Err
	}
	if s.nextID == 0 {
		s.nextID = 1
	}
	event.ID = s.nextID
	s.nextID++
	s.Events = append(s.Events, event)
	return event, nil
}

func (s *StubEventRepository) GetEvent(ctx context.Context, id int64) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Event{}, s.Err
	}
	for _, e := range s.Events {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, ErrEventNotFound
}

func (s *StubEventRepository) GetEventForUpdate(ctx context.Context, id int64) (Event, error) {
	return s.GetEvent(ctx, id)
}

func (s *StubEventRepository) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Event{}, s.Err
	}
	for i, e := range s.Events {
		if e.ID == event.ID {
			event.Owner = e.Owner
			s.Events[i] = event
			return event, nil
		}
	}
	return Event{}, ErrEventNotFound
}

func (s *StubEventRepository) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for i, e := range s.Events {
		if e.ID == id {
			s.Events = append(s.Events[:i], s.Events[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *StubEventRepository) FindEvents(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	result := make([]Event, 0, len(s.Events))
	for _, e := range s.Events {
		if filter.Start != nil && e.StartTime.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && e.EndTime.After(*filter.End) {
			continue
		}
		if filter.Owner != nil && !e.IsOwnedBy(*filter.Owner) {
			continue
		}
		result = append(result, e)
	}
	if filter.OrderByStart {
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].StartTime.Before(result[j].StartTime)
		})
	}
	return result, nil
}

func (s *StubEventRepository) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Events)
}
