package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "GENERATION_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	GenerationStarted   = "GENERATION_STARTED"
	GenerationCompleted = "GENERATION_COMPLETED"
	GenerationFailed    = "GENERATION_FAILED"
	CreditsRefunded     = "CREDITS_REFUNDED"
	CreditsDailyReset   = "CREDITS_DAILY_RESET"
)

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher is satisfied by the in-process bus and the NATS publisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
