package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calbot/calbot/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

const (
	TopicEventCreated event_bus.Topic = "event.created"
	TopicEventUpdated event_bus.Topic = "event.updated"
	TopicEventDeleted event_bus.Topic = "event.deleted"
)

// Deleted is the payload published on TopicEventDeleted.
type Deleted struct {
	ID int64
}

type NewEvent struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Owner       *string
}

type EventService interface {
	Create(ctx context.Context, newEvent NewEvent) (Event, error)
	Update(ctx context.Context, id int64, patch Patch) (Event, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Event, error)
}

type EventServiceImpl struct {
	repo Repository
	bus  *event_bus.EventBus
}

// NewEventService creates the service. bus may be nil, in which case no domain events are published.
func NewEventService(repo Repository, bus *event_bus.EventBus) *EventServiceImpl {
	return &EventServiceImpl{repo: repo, bus: bus}
}

func (s *EventServiceImpl) Create(ctx context.Context, newEvent NewEvent) (Event, error) {
	event := Event{
		Title:       strings.TrimSpace(newEvent.Title),
		Description: newEvent.Description,
		StartTime:   newEvent.StartTime,
		EndTime:     newEvent.EndTime,
		Owner:       newEvent.Owner,
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}

	stored, err := s.repo.StoreEvent(ctx, event)
	if err != nil {
		return Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	log.Debugf("Created event %d", stored.ID)

	s.publish(ctx, TopicEventCreated, stored)
	return stored, nil
}

func (s *EventServiceImpl) Update(ctx context.Context, id int64, patch Patch) (Event, error) {
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}

	var updated Event
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		current, err := repo.GetEventForUpdate(ctx, id)
		if err != nil {
			return err
		}

		candidate := current.Apply(patch)
		if err := candidate.Validate(); err != nil {
			return err
		}
		if patch.IsEmpty() {
			updated = current
			return nil
		}

		updated, err = repo.UpdateEvent(ctx, candidate)
		return err
	})
	if err != nil {
		return Event{}, err
	}
	if patch.IsEmpty() {
		return updated, nil
	}
	log.Debugf("Updated event %d", updated.ID)

	s.publish(ctx, TopicEventUpdated, updated)
	return updated, nil
}

func (s *EventServiceImpl) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if !deleted {
		return ErrEventNotFound
	}
	log.Debugf("Deleted event %d", id)

	s.publish(ctx, TopicEventDeleted, Deleted{ID: id})
	return nil
}

func (s *EventServiceImpl) Get(ctx context.Context, id int64) (Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// publish notifies subscribers after a committed mutation; their failures do not undo it.
func (s *EventServiceImpl) publish(ctx context.Context, topic event_bus.Topic, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewMessage(ctx, topic, payload)); err != nil {
		log.Warnf("Subscribers of %s failed: %v", topic, err)
	}
}
