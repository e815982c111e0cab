package sequence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventTypeGenerated is the event type published after each successful
// generation.
const EventTypeGenerated = "SequenceGenerated"

// GeneratedEvent is emitted for external audit consumption. Consumers must
// tolerate at-least-once delivery; a publish failure never rolls back the
// counter increment.
type GeneratedEvent struct {
	ID           string    `json:"id"`
	Scope        string    `json:"scope"`
	SequenceName string    `json:"sequence_name"`
	Value        string    `json:"value"`
	Counter      int64     `json:"counter"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// NewGeneratedEvent builds the event for one generation. Event IDs are
// UUIDv7 so audit consumers can sort chronologically without a separate
// timestamp index.
func NewGeneratedEvent(cfg Config, n *GeneratedNumber) GeneratedEvent {
	return GeneratedEvent{
		ID:           newEventID(),
		Scope:        cfg.Scope,
		SequenceName: cfg.Name,
		Value:        n.Value,
		Counter:      n.Counter,
		GeneratedAt:  n.GeneratedAt,
	}
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// EventPublisher delivers GeneratedEvents to external consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event GeneratedEvent) error
}

// NopPublisher discards events. Default when no publisher is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, GeneratedEvent) error { return nil }
