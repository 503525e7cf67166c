// Package events publishes clinic domain events after their transaction has
// committed. Delivery is best effort: a failed publish is logged and never
// surfaces to the HTTP caller.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/db"
)

const (
	PatientCreated      = "patient.created"
	AppointmentCreated  = "appointment.created"
	AppointmentUpdated  = "appointment.updated"
	AppointmentDeleted  = "appointment.deleted"
	ConsultationCreated = "consultation.created"
	ConsultationUpdated = "consultation.updated"
	ConsultationDeleted = "consultation.deleted"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Clinic     string    `json:"clinic"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher drops every event. Used when AMQP_URL is empty.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Emitter stamps events with an id, the request's clinic and a timestamp
// before handing them to a Publisher.
type Emitter struct {
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewEmitter(pub Publisher, logger zerolog.Logger) *Emitter {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Emitter{pub: pub, logger: logger, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, entityID int64) {
	if e == nil {
		return
	}
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Clinic:     db.ClinicFromContext(ctx),
		EntityID:   strconv.FormatInt(entityID, 10),
		OccurredAt: e.now().UTC(),
	}
	if err := e.pub.Publish(ctx, evt); err != nil {
		e.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("entity_id", evt.EntityID).
			Msg("event publish failed")
	}
}
