package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calbot/calbot/internal/utils"
	"github.com/calbot/calbot/pkg/event"
	"github.com/calbot/calbot/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	bot      *Bot
	machine  *Machine
	events   *event.StubEventRepository
	users    *user.StubUserRepository
	clock    *utils.MockClock
	location *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	location, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	events := event.NewStubEventRepository()
	users := user.NewStubUserRepository()
	registry := user.NewRegistry(users)
	clock := &utils.MockClock{FixedNow: time.Date(2024, time.May, 1, 9, 0, 0, 0, location)}

	machine := NewMachine(registry, event.NewEventService(events, nil), location, "skip")
	queries := event.NewQueryService(events, clock, location)
	return &fixture{
		bot:      NewBot(machine, registry, queries, location),
		machine:  machine,
		events:   events,
		users:    users,
		clock:    clock,
		location: location,
	}
}

var alice = user.Profile{ExternalId: "1001", Username: "alice", FirstName: "Alice"}

func (f *fixture) send(texts ...string) string {
	var reply string
	for _, text := range texts {
		reply = f.bot.Handle(context.Background(), Incoming{Sender: alice, Text: text})
	}
	return reply
}

func TestMachine_AddEventDialogue(t *testing.T) {
	t.Run("should commit one event and return to idle", func(t *testing.T) {
		// given
		f := newFixture(t)

		// when
		reply := f.send("/addevent", "Meeting", "skip", "01.05.2024 10:00", "01.05.2024 11:00")

		// then
		assert.Contains(t, reply, "Event created")
		assert.Contains(t, reply, "Meeting")
		assert.Equal(t, StateIdle, f.machine.State(alice.ExternalId))
		require.Equal(t, 1, f.events.Count())
		stored := f.events.Events[0]
		assert.Equal(t, "Meeting", stored.Title)
		assert.Equal(t, "", stored.Description)
		assert.True(t, stored.StartTime.Equal(time.Date(2024, time.May, 1, 10, 0, 0, 0, f.location)))
		assert.True(t, stored.EndTime.Equal(time.Date(2024, time.May, 1, 11, 0, 0, 0, f.location)))
		require.NotNil(t, stored.Owner)
		assert.Equal(t, alice.ExternalId, *stored.Owner)
		assert.Equal(t, 1, f.users.Count())
	})

	t.Run("should walk through every state", func(t *testing.T) {
		f := newFixture(t)
		id := alice.ExternalId

		assert.Equal(t, StateIdle, f.machine.State(id))
		assert.Equal(t, msgAskTitle, f.send("/addevent"))
		assert.Equal(t, StateCollectTitle, f.machine.State(id))
		assert.Equal(t, askDescription("skip"), f.send("Meeting"))
		assert.Equal(t, StateCollectDescription, f.machine.State(id))
		assert.Equal(t, msgAskStart, f.send("Quarterly planning"))
		assert.Equal(t, StateCollectStart, f.machine.State(id))
		assert.Equal(t, msgAskEnd, f.send("01.05.2024 10:00"))
		assert.Equal(t, StateCollectEnd, f.machine.State(id))
		f.send("01.05.2024 11:00")
		assert.Equal(t, StateIdle, f.machine.State(id))
		assert.Equal(t, "Quarterly planning", f.events.Events[0].Description)
	})

	t.Run("should treat skip word case insensitively", func(t *testing.T) {
		f := newFixture(t)

		f.send("/addevent", "Meeting", "SKIP", "01.05.2024 10:00", "01.05.2024 11:00")

		require.Equal(t, 1, f.events.Count())
		assert.Equal(t, "", f.events.Events[0].Description)
	})

	t.Run("should keep asking for end until it is after start", func(t *testing.T) {
		f := newFixture(t)

		reply := f.send("/addevent", "Meeting", "skip", "01.05.2024 10:00", "01.05.2024 09:00")
		assert.Equal(t, msgEndBeforeStart, reply)
		assert.Equal(t, StateCollectEnd, f.machine.State(alice.ExternalId))
		assert.Equal(t, 0, f.events.Count())

		reply = f.send("01.05.2024 10:00")
		assert.Equal(t, msgEndBeforeStart, reply)

		reply = f.send("01.05.2024 12:00")
		assert.Contains(t, reply, "Event created")
		assert.Equal(t, 1, f.events.Count())
		assert.Equal(t, StateIdle, f.machine.State(alice.ExternalId))
	})

	t.Run("should re-prompt on malformed dates", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgInvalidStart, f.send("/addevent", "Meeting", "skip", "2024-05-01 10:00"))
		assert.Equal(t, StateCollectStart, f.machine.State(alice.ExternalId))
		assert.Equal(t, msgInvalidStart, f.send("32.05.2024 10:00"))

		assert.Equal(t, msgInvalidEnd, f.send("01.05.2024 10:00", "tomorrow"))
		assert.Equal(t, StateCollectEnd, f.machine.State(alice.ExternalId))
		assert.Equal(t, 0, f.events.Count())
	})

	t.Run("should re-prompt on blank title", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgTitleEmpty, f.send("/addevent", "   "))
		assert.Equal(t, StateCollectTitle, f.machine.State(alice.ExternalId))
	})

	t.Run("should re-prompt on title wider than the events table allows", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgTitleTooLong, f.send("/addevent", strings.Repeat("a", event.MaxTitleLength+1)))
		assert.Equal(t, StateCollectTitle, f.machine.State(alice.ExternalId))

		reply := f.send(strings.Repeat("a", event.MaxTitleLength), "skip", "01.05.2024 10:00", "01.05.2024 11:00")
		assert.Contains(t, reply, "Event created")
		assert.Equal(t, 1, f.events.Count())
	})

	t.Run("should store description as sent", func(t *testing.T) {
		f := newFixture(t)

		f.send("/addevent", "Meeting", "  room 4, bring laptop \n", "01.05.2024 10:00", "01.05.2024 11:00")
		f.send("/addevent", "Other", "  skip  ", "01.05.2024 10:00", "01.05.2024 11:00")

		require.Equal(t, 2, f.events.Count())
		assert.Equal(t, "  room 4, bring laptop \n", f.events.Events[0].Description)
		assert.Equal(t, "", f.events.Events[1].Description)
	})

	t.Run("should discard partial fields when restarted", func(t *testing.T) {
		f := newFixture(t)

		f.send("/addevent", "First", "notes", "/addevent", "Second", "skip", "01.05.2024 10:00", "01.05.2024 11:00")

		require.Equal(t, 1, f.events.Count())
		assert.Equal(t, "Second", f.events.Events[0].Title)
		assert.Equal(t, "", f.events.Events[0].Description)
	})
}

func TestMachine_Cancel(t *testing.T) {
	t.Run("should cancel in every collecting state without committing", func(t *testing.T) {
		prefixes := [][]string{
			{"/addevent"},
			{"/addevent", "Meeting"},
			{"/addevent", "Meeting", "skip"},
			{"/addevent", "Meeting", "skip", "01.05.2024 10:00"},
		}
		for _, prefix := range prefixes {
			t.Run(fmt.Sprintf("after %d turns", len(prefix)), func(t *testing.T) {
				f := newFixture(t)
				f.send(prefix...)

				reply := f.send("/cancel")

				assert.Equal(t, msgCancelled, reply)
				assert.Equal(t, StateIdle, f.machine.State(alice.ExternalId))
				assert.Equal(t, 0, f.events.Count())
			})
		}
	})

	t.Run("should report nothing to cancel when idle", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgNothingToCancel, f.send("/cancel"))
	})

	t.Run("should treat later text as idle after cancel", func(t *testing.T) {
		f := newFixture(t)

		reply := f.send("/addevent", "Meeting", "/cancel", "01.05.2024 10:00")

		assert.Equal(t, msgIdleHint, reply)
		assert.Equal(t, 0, f.events.Count())
	})
}

func TestMachine_StoreFailure(t *testing.T) {
	t.Run("should stay in end state and allow retry", func(t *testing.T) {
		// given
		f := newFixture(t)
		f.send("/addevent", "Meeting", "skip", "01.05.2024 10:00")
		f.events.Err = errors.New("database down")

		// when
		reply := f.send("01.05.2024 11:00")

		// then
		assert.Equal(t, msgStoreFailed, reply)
		assert.Equal(t, StateCollectEnd, f.machine.State(alice.ExternalId))

		f.events.Err = nil
		reply = f.send("01.05.2024 11:00")
		assert.Contains(t, reply, "Event created")
		assert.Equal(t, 1, f.events.Count())
	})

	t.Run("should stay in end state when user registration fails", func(t *testing.T) {
		f := newFixture(t)
		f.send("/addevent", "Meeting", "skip", "01.05.2024 10:00")
		f.users.Err = errors.New("database down")

		reply := f.send("01.05.2024 11:00")

		assert.Equal(t, msgStoreFailed, reply)
		assert.Equal(t, StateCollectEnd, f.machine.State(alice.ExternalId))
		assert.Equal(t, 0, f.events.Count())
	})
}

func (m *Machine) trackedIdentities() (sessions, locks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), len(m.locks)
}

func TestMachine_ReleasesFinishedIdentities(t *testing.T) {
	t.Run("should forget identities after commit and cancel", func(t *testing.T) {
		f := newFixture(t)
		bob := user.Profile{ExternalId: "2002"}

		f.send("/addevent", "Meeting", "skip", "01.05.2024 10:00", "01.05.2024 11:00")
		f.bot.Handle(context.Background(), Incoming{Sender: bob, Text: "/addevent"})
		f.bot.Handle(context.Background(), Incoming{Sender: bob, Text: "/cancel"})
		f.send("/today")

		sessions, locks := f.machine.trackedIdentities()
		assert.Zero(t, sessions)
		assert.Zero(t, locks)
	})

	t.Run("should keep only sessions in progress", func(t *testing.T) {
		f := newFixture(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := user.Profile{ExternalId: fmt.Sprintf("%d", 7000+i)}
				f.bot.Handle(context.Background(), Incoming{Sender: sender, Text: "/addevent"})
				if i%2 == 0 {
					f.bot.Handle(context.Background(), Incoming{Sender: sender, Text: "/cancel"})
				}
			}(i)
		}
		wg.Wait()

		sessions, locks := f.machine.trackedIdentities()
		assert.Equal(t, 5, sessions)
		assert.Zero(t, locks)
	})
}

func TestMachine_Concurrency(t *testing.T) {
	t.Run("should keep sessions of different identities apart", func(t *testing.T) {
		f := newFixture(t)
		const participants = 20
		var wg sync.WaitGroup
		for i := 0; i < participants; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := user.Profile{ExternalId: fmt.Sprintf("%d", 5000+i)}
				for _, text := range []string{"/addevent", fmt.Sprintf("Event %d", i), "skip", "01.05.2024 10:00", "01.05.2024 11:00"} {
					f.bot.Handle(context.Background(), Incoming{Sender: sender, Text: text})
				}
			}(i)
		}
		wg.Wait()

		require.Equal(t, participants, f.events.Count())
		for _, e := range f.events.Events {
			var n int
			_, err := fmt.Sscanf(e.Title, "Event %d", &n)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("%d", 5000+n), *e.Owner)
		}
	})

	t.Run("should commit once when the same end turn arrives concurrently", func(t *testing.T) {
		f := newFixture(t)
		f.send("/addevent", "Meeting", "skip", "01.05.2024 10:00")

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.send("01.05.2024 11:00")
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, f.events.Count())
		assert.Equal(t, StateIdle, f.machine.State(alice.ExternalId))
	})
}
