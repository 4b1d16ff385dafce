package chat

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/calbot/calbot/pkg/event"
	"github.com/calbot/calbot/pkg/user"
	log "github.com/sirupsen/logrus"
)

// EventCreator persists an event once a conversation has collected all of its fields.
type EventCreator interface {
	Create(ctx context.Context, newEvent event.NewEvent) (event.Event, error)
}

// Machine drives the event creation dialogue. Every identity has at most one session and
// turns of one identity never interleave.
type Machine struct {
	mu       sync.Mutex
	sessions map[string]*session
	locks    map[string]*turnLock

	registry user.Registry
	events   EventCreator
	location *time.Location
	skipWord string
}

func NewMachine(registry user.Registry, events EventCreator, location *time.Location, skipWord string) *Machine {
	if location == nil {
		location = time.Local
	}
	if skipWord == "" {
		skipWord = "skip"
	}
	return &Machine{
		sessions: make(map[string]*session),
		locks:    make(map[string]*turnLock),
		registry: registry,
		events:   events,
		location: location,
		skipWord: skipWord,
	}
}

// turnLock serializes the turns of one identity; it lives in Machine.locks only while
// some turn holds or waits for it.
type turnLock struct {
	sync.Mutex
	refs int
}

// lock acquires the turn lock of identity and returns its release function.
func (m *Machine) lock(identity string) func() {
	m.mu.Lock()
	l, ok := m.locks[identity]
	if !ok {
		l = &turnLock{}
		m.locks[identity] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, identity)
		}
		m.mu.Unlock()
	}
}

func (m *Machine) session(identity string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[identity]
}

func (m *Machine) setSession(identity string, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		delete(m.sessions, identity)
		return
	}
	m.sessions[identity] = s
}

// State reports the current dialogue state of identity.
func (m *Machine) State(identity string) State {
	unlock := m.lock(identity)
	defer unlock()

	if s := m.session(identity); s != nil {
		return s.state
	}
	return StateIdle
}

// Begin starts a new event dialogue, discarding anything collected so far.
func (m *Machine) Begin(identity string) string {
	unlock := m.lock(identity)
	defer unlock()

	m.setSession(identity, &session{state: StateCollectTitle})
	log.Debugf("chat %s: %s", identity, StateCollectTitle)
	return msgAskTitle
}

// Cancel drops the session of identity.
func (m *Machine) Cancel(identity string) string {
	unlock := m.lock(identity)
	defer unlock()

	if m.session(identity) == nil {
		return msgNothingToCancel
	}
	m.setSession(identity, nil)
	log.Debugf("chat %s: cancelled", identity)
	return msgCancelled
}

// Handle consumes one plain text turn from the sender.
func (m *Machine) Handle(ctx context.Context, sender user.Profile, text string) string {
	identity := sender.ExternalId
	unlock := m.lock(identity)
	defer unlock()

	s := m.session(identity)
	if s == nil {
		return msgIdleHint
	}

	switch s.state {
	case StateCollectTitle:
		title := strings.TrimSpace(text)
		if title == "" {
			return msgTitleEmpty
		}
		if utf8.RuneCountInString(title) > event.MaxTitleLength {
			return msgTitleTooLong
		}
		s.title = title
		s.state = StateCollectDescription
		return askDescription(m.skipWord)

	case StateCollectDescription:
		description := text
		if strings.EqualFold(strings.TrimSpace(text), m.skipWord) {
			description = ""
		}
		s.description = description
		s.state = StateCollectStart
		return msgAskStart

	case StateCollectStart:
		start, err := m.parseDateTime(text)
		if err != nil {
			return msgInvalidStart
		}
		s.startTime = start
		s.state = StateCollectEnd
		return msgAskEnd

	case StateCollectEnd:
		end, err := m.parseDateTime(text)
		if err != nil {
			return msgInvalidEnd
		}
		if !end.After(s.startTime) {
			return msgEndBeforeStart
		}
		return m.commit(ctx, sender, s, end)
	}
	return msgIdleHint
}

func (m *Machine) commit(ctx context.Context, sender user.Profile, s *session, end time.Time) string {
	u, err := m.registry.GetOrCreate(ctx, sender)
	if err != nil {
		log.Errorf("chat %s: could not resolve user: %v", sender.ExternalId, err)
		return msgStoreFailed
	}

	owner := u.ExternalId
	created, err := m.events.Create(ctx, event.NewEvent{
		Title:       s.title,
		Description: s.description,
		StartTime:   s.startTime,
		EndTime:     end,
		Owner:       &owner,
	})
	if err != nil {
		log.Errorf("chat %s: could not store event: %v", sender.ExternalId, err)
		return msgStoreFailed
	}

	m.setSession(sender.ExternalId, nil)
	log.Debugf("chat %s: committed event %d", sender.ExternalId, created.ID)
	return formatCreated(created, m.location)
}

func (m *Machine) parseDateTime(text string) (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, strings.TrimSpace(text), m.location)
}
