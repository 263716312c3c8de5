package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const GenerationTopic = "generation_events"

// Bus carries domain events between services inside one process.
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewBus(pubSub *gochannel.GoChannel, topic string) *Bus {
	if topic == "" {
		topic = GenerationTopic
	}
	return &Bus{pubSub: pubSub, topic: topic}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, b.topic)
}

// Decode restores the event carried by a bus message.
func Decode(msg *message.Message) (BaseEvent, error) {
	var evt BaseEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to decode event message %s: %w", msg.UUID, err)
	}
	return evt, nil
}
