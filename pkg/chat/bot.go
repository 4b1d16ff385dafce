package chat

import (
	"context"
	"strings"
	"time"

	"github.com/calbot/calbot/pkg/event"
	"github.com/calbot/calbot/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Command is a bot command advertised to chat clients.
type Command struct {
	Name        string
	Description string
}

var Commands = []Command{
	{Name: "start", Description: "Start working with the bot"},
	{Name: "addevent", Description: "Create a new event"},
	{Name: "myevents", Description: "Show all my events"},
	{Name: "today", Description: "Events for today"},
	{Name: "tomorrow", Description: "Events for tomorrow"},
	{Name: "week", Description: "Events for the coming week"},
	{Name: "cancel", Description: "Cancel event creation"},
	{Name: "help", Description: "Show help"},
}

// Incoming is a text message received from a chat participant.
type Incoming struct {
	Sender user.Profile
	Text   string
}

// Bot routes incoming messages to commands or to the event dialogue.
type Bot struct {
	machine  *Machine
	registry user.Registry
	queries  event.QueryService
	location *time.Location
}

func NewBot(machine *Machine, registry user.Registry, queries event.QueryService, location *time.Location) *Bot {
	if location == nil {
		location = time.Local
	}
	return &Bot{machine: machine, registry: registry, queries: queries, location: location}
}

// Handle processes one message and returns the reply text.
func (b *Bot) Handle(ctx context.Context, in Incoming) string {
	identity := in.Sender.ExternalId
	command, ok := parseCommand(in.Text)
	if !ok {
		return b.machine.Handle(ctx, in.Sender, in.Text)
	}
	log.Debugf("chat %s: command /%s", identity, command)

	switch command {
	case "start":
		return b.start(ctx, in.Sender)
	case "help":
		return help()
	case "addevent":
		return b.machine.Begin(identity)
	case "cancel":
		return b.machine.Cancel(identity)
	case "myevents":
		events, err := b.queries.ForOwner(ctx, identity)
		if err != nil {
			log.Errorf("chat %s: could not list events: %v", identity, err)
			return msgListFailed
		}
		return formatAll(events, b.location)
	case "today":
		agenda, err := b.queries.Today(ctx, identity)
		if err != nil {
			log.Errorf("chat %s: could not list today's events: %v", identity, err)
			return msgListFailed
		}
		return formatDay("Events for today", msgNoEventsToday, agenda, b.location)
	case "tomorrow":
		agenda, err := b.queries.Tomorrow(ctx, identity)
		if err != nil {
			log.Errorf("chat %s: could not list tomorrow's events: %v", identity, err)
			return msgListFailed
		}
		return formatDay("Events for tomorrow", msgNoEventsTomorrow, agenda, b.location)
	case "week":
		agenda, err := b.queries.Week(ctx, identity)
		if err != nil {
			log.Errorf("chat %s: could not list week events: %v", identity, err)
			return msgListFailed
		}
		return formatWeek(agenda, b.location)
	default:
		return msgUnknownCommand
	}
}

func (b *Bot) start(ctx context.Context, sender user.Profile) string {
	u, err := b.registry.GetOrCreate(ctx, sender)
	if err != nil {
		// greet anyway, registration is retried on the next commit
		log.Errorf("chat %s: could not register user: %v", sender.ExternalId, err)
		return welcome(user.User{ExternalId: sender.ExternalId, FirstName: sender.FirstName, Username: sender.Username}.DisplayName())
	}
	return welcome(u.DisplayName())
}

// parseCommand extracts the command name from "/name@bot args".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), true
}
