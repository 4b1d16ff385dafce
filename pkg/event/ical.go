package event

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

const icalProductId = "-//calbot//events//EN"

// ToICalendar renders events as a VCALENDAR document; stamp is used as DTSTAMP of every entry.
func ToICalendar(events []Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icalProductId)

	for _, e := range events {
		ve := cal.AddEvent(fmt.Sprintf("event-%d@calbot", e.ID))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(e.StartTime.UTC())
		ve.SetEndAt(e.EndTime.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
	}
	return cal.Serialize()
}
