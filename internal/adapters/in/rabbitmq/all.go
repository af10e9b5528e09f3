package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

func (l *ChangeListener) startAllQueue(ctx context.Context) error {
	return l.consumeQueue(
		ctx,
		l.cfg.RabbitMq.QueueConfig.AllQueueName,
		l.cfg.RabbitMq.QueueConfig.AllQueueBind,
		l.cfg.RabbitMq.QueueConfig.AllQueueExchange,
		l.processAllMessage,
	)
}

func (l *ChangeListener) processAllMessage(ctx context.Context, msg amqp.Delivery) error {
	routingKey, err := l.parseChangeMessageRoutingKey(ctx, msg)
	if err != nil {
		return err
	}

	if routingKey.ResourceType != ChangeResourceTypeAll {
		return nil
	}

	// Полный сброс кэша по служебному событию стора
	l.feed.InvalidateAll(ctx)

	l.logger.Info("_all_.message.invalidated", out.LogFields{
		"routingKey": msg.RoutingKey,
	})

	return nil
}
