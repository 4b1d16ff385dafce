package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calbot/calbot/pkg/event"
	"github.com/calbot/calbot/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) store(t *testing.T, title, description string, start, end time.Time, owner string) {
	t.Helper()
	_, err := f.events.StoreEvent(context.Background(), event.Event{
		Title:       title,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Owner:       &owner,
	})
	require.NoError(t, err)
}

func TestBot_Start(t *testing.T) {
	t.Run("should register user once and greet by first name", func(t *testing.T) {
		f := newFixture(t)

		reply := f.send("/start")
		f.send("/start")

		assert.Contains(t, reply, "Hello, Alice!")
		assert.Contains(t, reply, "/addevent")
		assert.Equal(t, 1, f.users.Count())
		registered, err := f.users.GetByExternalId(context.Background(), alice.ExternalId)
		require.NoError(t, err)
		assert.Equal(t, "alice", registered.Username)
	})

	t.Run("should greet even when registration fails", func(t *testing.T) {
		f := newFixture(t)
		f.users.Err = errors.New("database down")

		reply := f.send("/start")

		assert.Contains(t, reply, "Hello, Alice!")
	})
}

func TestBot_Commands(t *testing.T) {
	t.Run("should answer help", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, help(), f.send("/help"))
	})

	t.Run("should hint help for unknown command", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgUnknownCommand, f.send("/dance"))
	})

	t.Run("should hint addevent for idle text", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgIdleHint, f.send("hello there"))
	})

	t.Run("should accept command addressed to the bot", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, msgAskTitle, f.send("/addevent@calbot"))
		assert.Equal(t, StateCollectTitle, f.machine.State(alice.ExternalId))
	})

	t.Run("should list events without disturbing an open dialogue", func(t *testing.T) {
		f := newFixture(t)
		f.send("/addevent", "Meeting")

		reply := f.send("/myevents")

		assert.Equal(t, msgNoEvents, reply)
		assert.Equal(t, StateCollectDescription, f.machine.State(alice.ExternalId))
		f.send("skip", "01.05.2024 10:00", "01.05.2024 11:00")
		assert.Equal(t, 1, f.events.Count())
	})
}

func TestBot_Listings(t *testing.T) {
	f := newFixture(t)
	day := func(d, h, m int) time.Time {
		return time.Date(2024, time.May, d, h, m, 0, 0, f.location)
	}
	// clock is 01.05.2024 09:00
	f.store(t, "Standup", "daily", day(1, 10, 0), day(1, 10, 15), alice.ExternalId)
	f.store(t, "Dentist", "", day(2, 14, 0), day(2, 15, 0), alice.ExternalId)
	f.store(t, "Trip", "mountains", day(5, 8, 0), day(6, 18, 0), alice.ExternalId)
	f.store(t, "Conference", "", day(20, 9, 0), day(20, 17, 0), alice.ExternalId)
	f.store(t, "Not mine", "", day(1, 12, 0), day(1, 13, 0), "2002")

	t.Run("should list all own events by start", func(t *testing.T) {
		reply := f.send("/myevents")

		assert.Equal(t, "📅 Your events:\n"+
			"\n📌 Standup\n📝 daily\n🕐 01.05.2024 10:00 - 10:15\n"+
			"\n📌 Dentist\n🕐 02.05.2024 14:00 - 15:00\n"+
			"\n📌 Trip\n📝 mountains\n🕐 05.05.2024 08:00 - 06.05.2024 18:00\n"+
			"\n📌 Conference\n🕐 20.05.2024 09:00 - 17:00", reply)
	})

	t.Run("should list today", func(t *testing.T) {
		reply := f.send("/today")

		assert.Equal(t, "📅 Events for today (01.05.2024):\n\n📌 Standup\n🕐 10:00 - 10:15\n📝 daily", reply)
	})

	t.Run("should list tomorrow", func(t *testing.T) {
		reply := f.send("/tomorrow")

		assert.Equal(t, "📅 Events for tomorrow (02.05.2024):\n\n📌 Dentist\n🕐 14:00 - 15:00", reply)
	})

	t.Run("should list the coming week", func(t *testing.T) {
		reply := f.send("/week")

		assert.Contains(t, reply, "Standup")
		assert.Contains(t, reply, "Dentist")
		assert.Contains(t, reply, "Trip")
		assert.NotContains(t, reply, "Conference")
		assert.NotContains(t, reply, "Not mine")
	})

	t.Run("should report empty days", func(t *testing.T) {
		f.clock.SetNow(day(10, 9, 0))
		defer f.clock.SetNow(day(1, 9, 0))

		assert.Equal(t, msgNoEventsToday, f.send("/today"))
		assert.Equal(t, msgNoEventsTomorrow, f.send("/tomorrow"))
		assert.Equal(t, msgNoEventsWeek, f.send("/week"))
	})

	t.Run("should apologise when listing fails", func(t *testing.T) {
		f.events.Err = errors.New("database down")
		defer func() { f.events.Err = nil }()

		assert.Equal(t, msgListFailed, f.send("/today"))
	})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text    string
		command string
		ok      bool
	}{
		{"/start", "start", true},
		{"  /Today  ", "today", true},
		{"/week@calbot extra", "week", true},
		{"/", "", true},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		command, ok := parseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.command, command, tt.text)
	}
}

func TestCommands_AreAllHandled(t *testing.T) {
	f := newFixture(t)
	for _, c := range Commands {
		reply := f.bot.Handle(context.Background(), Incoming{Sender: user.Profile{ExternalId: "77"}, Text: "/" + c.Name})
		assert.NotEqual(t, msgUnknownCommand, reply, c.Name)
	}
}
