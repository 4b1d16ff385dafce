package event_bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Topic identifies a kind of message published on the bus.
type Topic string

// Message is the envelope delivered to subscribers.
type Message struct {
	ctx       context.Context
	Topic     Topic
	Timestamp time.Time
	Payload   any
}

func NewMessage(ctx context.Context, topic Topic, payload any) Message {
	return Message{
		ctx:       ctx,
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Context returns the publisher's context, or Background when none was given.
func (m Message) Context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

type subscription struct {
	id      uint64
	handler func(Message) error
}

// EventBus dispatches messages synchronously to subscribers in registration order.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[Topic][]subscription
	nextID      uint64
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[Topic][]subscription),
	}
}

// Subscribe registers h for topic and returns a function that removes it again.
func (eb *EventBus) Subscribe(topic Topic, h func(Message) error) (unsubscribe func()) {
	eb.mu.Lock()
	eb.nextID++
	id := eb.nextID
	eb.subscribers[topic] = append(eb.subscribers[topic], subscription{id: id, handler: h})
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		subs := eb.subscribers[topic]
		for i, s := range subs {
			if s.id == id {
				eb.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(eb.subscribers[topic]) == 0 {
			delete(eb.subscribers, topic)
		}
	}
}

// SubscribeTyped registers a handler that only receives payloads of type T.
// Messages carrying another payload type are skipped.
func SubscribeTyped[T any](eb *EventBus, topic Topic, h func(ctx context.Context, payload T) error) (unsubscribe func()) {
	return eb.Subscribe(topic, func(m Message) error {
		payload, ok := m.Payload.(T)
		if !ok {
			log.Debugf("event bus: skipping %s, expected payload %T, got %T", topic, *new(T), m.Payload)
			return nil
		}
		return h(m.Context(), payload)
	})
}

// Publish runs every handler of m.Topic. Handler errors and panics are collected and returned
// joined; remaining handlers still run unless the message context is cancelled.
func (eb *EventBus) Publish(m Message) error {
	if err := m.Context().Err(); err != nil {
		return fmt.Errorf("publish %s: %w", m.Topic, err)
	}

	eb.mu.RLock()
	subs := make([]subscription, len(eb.subscribers[m.Topic]))
	copy(subs, eb.subscribers[m.Topic])
	eb.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := m.Context().Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s interrupted: %w", m.Topic, err))
			break
		}
		if err := invoke(s, m); err != nil {
			log.Errorf("event bus: subscriber %d failed on %s: %v", s.id, m.Topic, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(s subscription, m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %d panicked on %s: %v", s.id, m.Topic, r)
		}
	}()
	return s.handler(m)
}
