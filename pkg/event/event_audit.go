package event

import (
	"context"

	"github.com/calbot/calbot/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// SubscribeAuditLog logs every committed event mutation.
func SubscribeAuditLog(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped(bus, TopicEventCreated, func(ctx context.Context, e Event) error {
		log.WithFields(auditFields(e)).Info("event created")
		return nil
	})
	event_bus.SubscribeTyped(bus, TopicEventUpdated, func(ctx context.Context, e Event) error {
		log.WithFields(auditFields(e)).Info("event updated")
		return nil
	})
	event_bus.SubscribeTyped(bus, TopicEventDeleted, func(ctx context.Context, d Deleted) error {
		log.WithField("event_id", d.ID).Info("event deleted")
		return nil
	})
}

func auditFields(e Event) log.Fields {
	fields := log.Fields{
		"event_id": e.ID,
		"start":    e.StartTime,
		"end":      e.EndTime,
	}
	if e.Owner != nil {
		fields["owner"] = *e.Owner
	}
	return fields
}
