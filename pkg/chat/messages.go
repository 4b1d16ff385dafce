package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/calbot/calbot/pkg/event"
)

const (
	msgAskTitle        = "Let's create a new event! 📝\n\nEnter the event title:"
	msgTitleEmpty      = "The title cannot be empty. Enter the event title:"
	msgAskStart        = "Enter the start date and time as DD.MM.YYYY HH:MM\nFor example: 25.12.2024 15:30"
	msgAskEnd          = "Enter the end date and time as DD.MM.YYYY HH:MM\nFor example: 25.12.2024 16:30"
	msgInvalidStart    = "Wrong format! Please use DD.MM.YYYY HH:MM\nFor example: 25.12.2024 15:30"
	msgInvalidEnd      = "Wrong format! Please use DD.MM.YYYY HH:MM\nFor example: 25.12.2024 16:30"
	msgEndBeforeStart  = "The end must be later than the start!\nEnter the end date and time again:"
	msgStoreFailed     = "Sorry, the event could not be saved. Send the end time again to retry or /cancel to give up."
	msgCancelled       = "Event creation cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgIdleHint        = "Use /addevent to create an event or /help to see what I can do."
	msgUnknownCommand  = "Unknown command. Use /help to see the available commands."
	msgListFailed      = "Sorry, your events could not be loaded right now. Please try again later."

	msgNoEvents         = "You have no events yet. Create one with /addevent"
	msgNoEventsToday    = "No events today! 🎉"
	msgNoEventsTomorrow = "No events tomorrow! 🎉"
	msgNoEventsWeek     = "No events in the coming week! 🎉"
)

var msgTitleTooLong = fmt.Sprintf("The title is too long, use at most %d characters. Enter the event title:", event.MaxTitleLength)

const commandList = `/addevent - Create a new event
/myevents - Show all my events
/today - Events for today
/tomorrow - Events for tomorrow
/week - Events for the coming week
/cancel - Cancel event creation
/help - Show this help`

func askDescription(skipWord string) string {
	return fmt.Sprintf("Great! Now enter the event description (or type '%s'):", skipWord)
}

func welcome(name string) string {
	return fmt.Sprintf("Hello, %s! 👋\n\nI am a calendar bot. I will help you manage your events.\n\nAvailable commands:\n/start - Start working with the bot\n%s", name, commandList)
}

func help() string {
	return "📅 Bot commands:\n\n" + commandList + "\n\nTo create an event use /addevent and follow the prompts."
}

func formatCreated(e event.Event, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("✅ Event created!\n\n")
	fmt.Fprintf(&sb, "📌 %s\n", e.Title)
	if e.Description != "" {
		fmt.Fprintf(&sb, "📝 %s\n", e.Description)
	}
	fmt.Fprintf(&sb, "🕐 Start: %s\n", e.StartTime.In(loc).Format(DateTimeLayout))
	fmt.Fprintf(&sb, "🕐 End: %s", e.EndTime.In(loc).Format(DateTimeLayout))
	return sb.String()
}

func formatAll(events []event.Event, loc *time.Location) string {
	if len(events) == 0 {
		return msgNoEvents
	}
	var sb strings.Builder
	sb.WriteString("📅 Your events:\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "\n📌 %s\n", e.Title)
		if e.Description != "" {
			fmt.Fprintf(&sb, "📝 %s\n", e.Description)
		}
		fmt.Fprintf(&sb, "🕐 %s - %s\n", e.StartTime.In(loc).Format(DateTimeLayout), formatEnd(e, loc))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDay(header, empty string, agenda event.Agenda, loc *time.Location) string {
	if len(agenda.Events) == 0 {
		return empty
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s (%s):\n", header, agenda.From.In(loc).Format("02.01.2006"))
	for _, e := range agenda.Events {
		fmt.Fprintf(&sb, "\n📌 %s\n", e.Title)
		fmt.Fprintf(&sb, "🕐 %s - %s\n", e.StartTime.In(loc).Format("15:04"), formatEnd(e, loc))
		if e.Description != "" {
			fmt.Fprintf(&sb, "📝 %s\n", e.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatWeek(agenda event.Agenda, loc *time.Location) string {
	if len(agenda.Events) == 0 {
		return msgNoEventsWeek
	}
	var sb strings.Builder
	sb.WriteString("📅 Events for the coming week:\n")
	for _, e := range agenda.Events {
		fmt.Fprintf(&sb, "\n📌 %s\n", e.Title)
		fmt.Fprintf(&sb, "📅 %s\n", e.StartTime.In(loc).Format("02.01.2006"))
		fmt.Fprintf(&sb, "🕐 %s - %s\n", e.StartTime.In(loc).Format("15:04"), formatEnd(e, loc))
		if e.Description != "" {
			fmt.Fprintf(&sb, "📝 %s\n", e.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatEnd prints only the clock time when the event ends on the day it starts.
func formatEnd(e event.Event, loc *time.Location) string {
	start := e.StartTime.In(loc)
	end := e.EndTime.In(loc)
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return end.Format("15:04")
	}
	return end.Format(DateTimeLayout)
}
