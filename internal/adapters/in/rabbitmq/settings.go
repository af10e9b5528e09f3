package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

type ChangeSettingsMessage struct {
	ClinicID uuid.UUID `json:"clinicId"`
}

func (l *ChangeListener) startSettingsQueue(ctx context.Context) error {
	return l.consumeQueue(
		ctx,
		l.cfg.RabbitMq.QueueConfig.SettingsQueueName,
		l.cfg.RabbitMq.QueueConfig.SettingsQueueBind,
		l.cfg.RabbitMq.QueueConfig.SettingsQueueExchange,
		l.processSettingsMessage,
	)
}

func (l *ChangeListener) processSettingsMessage(ctx context.Context, msg amqp.Delivery) error {
	routingKey, err := l.parseChangeMessageRoutingKey(ctx, msg)
	if err != nil {
		return err
	}

	if routingKey.ResourceType != ChangeResourceTypeSettings {
		return nil
	}

	var msgJson ChangeSettingsMessage
	if err := json.Unmarshal(msg.Body, &msgJson); err != nil {
		return err
	}

	l.feed.HandleSettingsEvent(ctx, msgJson.ClinicID)

	l.logger.Info("settings.message.handled", out.LogFields{
		"clinic_id": msgJson.ClinicID,
		"action":    routingKey.Action,
	})

	return nil
}
