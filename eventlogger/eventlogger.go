// Package eventlogger records domain events (pot created, member joined,
// transaction recorded...) off the request path.
package eventlogger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        uuid.UUID         `json:"id,omitempty"`
	Type      string            `json:"event_type,omitempty"`
	Data      any               `json:"event_data,omitempty"`
	Metadata  map[string]string `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

func WithMetadata(metadata map[string]string) EventOption {
	return func(e *Event) {
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

// WithActor tags the event with the user who caused it.
func WithActor(actorID uuid.UUID) EventOption {
	return func(e *Event) {
		e.Metadata["actor_id"] = actorID.String()
	}
}

// WithPot tags the event with the pot it belongs to. Sinks that partition
// events use it as the key.
func WithPot(potID uuid.UUID) EventOption {
	return func(e *Event) {
		e.Metadata["pot_id"] = potID.String()
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Sink is anywhere an event can be written to.
type Sink interface {
	Save(ctx context.Context, e Event) error
}

type EventLogger interface {
	Sink
	GetByType(ctx context.Context, eventType string) ([]Event, error)
}
