package service

import (
	"context"

	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/pkg/mailer"
	"ai-mediagen-be/internal/repository/specification"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Notifier pushes an event to every live connection of a user.
type Notifier interface {
	Send(userID uuid.UUID, eventType string, data interface{})
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	bus        *events.Bus
	uowFactory unitofwork.RepositoryFactory
	notifier   Notifier
	forwarder  events.Publisher
	mailer     mailer.IEmailService
	logger     logger.ILogger
}

// NewConsumerService fans bus events out to websocket clients, the durable NATS
// stream and, for failed generations, email. forwarder and mailer may be nil.
func NewConsumerService(
	bus *events.Bus,
	uowFactory unitofwork.RepositoryFactory,
	notifier Notifier,
	forwarder events.Publisher,
	emailService mailer.IEmailService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		bus:        bus,
		uowFactory: uowFactory,
		notifier:   notifier,
		forwarder:  forwarder,
		mailer:     emailService,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks. Delivery to each sink is best-effort and a redelivery
// would push duplicates to the clients that already received the event.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	evt, err := events.Decode(msg)
	if err != nil {
		cs.logger.Error("CONSUMER", "Dropping undecodable event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	userID, hasUser := eventUserID(evt)
	if hasUser && cs.notifier != nil {
		cs.notifier.Send(userID, evt.Type, evt.Data)
	}

	if cs.forwarder != nil {
		if err := cs.forwarder.Publish(ctx, evt); err != nil {
			cs.logger.Warn("CONSUMER", "Failed to forward event", map[string]interface{}{
				"type":  evt.Type,
				"error": err.Error(),
			})
		}
	}

	if evt.Type == events.GenerationFailed && hasUser {
		cs.sendFailureEmail(ctx, userID, evt)
	}
}

func (cs *consumerService) sendFailureEmail(ctx context.Context, userID uuid.UUID, evt events.BaseEvent) {
	if cs.mailer == nil {
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userID})
	if err != nil {
		cs.logger.Error("CONSUMER", "Failed to load user for failure email", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	if user == nil || user.Email == "" {
		return
	}

	notice := mailer.GenerationFailedNotice{
		FullName:        user.FullName,
		ModelID:         stringField(evt.Data, "model_id"),
		Prompt:          stringField(evt.Data, "prompt"),
		Reason:          stringField(evt.Data, "error"),
		CreditsRefunded: intField(evt.Data, "credits_refunded"),
		GenerationID:    stringField(evt.Data, "generation_id"),
	}
	if err := cs.mailer.SendGenerationFailed(user.Email, notice); err != nil {
		cs.logger.Error("CONSUMER", "Failed to send failure email", map[string]interface{}{
			"user_id":       userID,
			"generation_id": notice.GenerationID,
			"error":         err.Error(),
		})
	}
}

func eventUserID(evt events.BaseEvent) (uuid.UUID, bool) {
	id, err := uuid.Parse(stringField(evt.Data, "user_id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

// intField reads a number that went through JSON.
func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
