package rabbitmq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/in"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

// ChangeListener - прием push-ленты удаленного стора из rabbitmq.
// Сообщения очереди обрабатываются последовательно: порядок прихода
// важен для сведения версий в реконсиляторе
type ChangeListener struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	feed    in.ChangeFeedUseCase
	cfg     *config.Config
	logger  out.LoggerPort
}

type (
	ChangeAction       string
	ChangeResourceType string
)

type ChangeMessageRoutingKey struct {
	Source       string
	Receiver     string
	ResourceType ChangeResourceType
	Version      string
	Action       ChangeAction
}

const (
	ChangeResourceTypeAll         ChangeResourceType = "_all_"
	ChangeResourceTypeAppointment ChangeResourceType = "appointment"
	ChangeResourceTypeSettings    ChangeResourceType = "settings"
)

const (
	ChangeActionInsert ChangeAction = "insert"
	ChangeActionUpdate ChangeAction = "update"
	ChangeActionDelete ChangeAction = "delete"
)

func NewChangeListener(feed in.ChangeFeedUseCase, cfg *config.Config, logger out.LoggerPort) (*ChangeListener, error) {
	if !cfg.RabbitMq.Enabled {
		logger.Info("rabbitmq.disabled", out.LogFields{
			"message": "RabbitMQ is disabled, listener will not be started",
		})
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.RabbitMq.AmqpUri)
	if err != nil {
		logger.Error("rabbitmq.connect.failed", out.LogFields{
			"error": err.Error(),
			"url":   cfg.RabbitMq.AmqpUri,
		})
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		logger.Error("rabbitmq.channel.failed", out.LogFields{
			"error": err.Error(),
		})
		return nil, err
	}

	return &ChangeListener{
		conn:    conn,
		channel: channel,
		feed:    feed,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (l *ChangeListener) Start(ctx context.Context) error {
	var err error
	err = l.startAppointmentQueue(ctx)
	if err != nil {
		return err
	}
	l.logger.Info("appointment.queue.started", out.LogFields{
		"queue": l.cfg.RabbitMq.QueueConfig.AppointmentQueueName,
	})
	err = l.startSettingsQueue(ctx)
	if err != nil {
		return err
	}
	l.logger.Info("settings.queue.started", out.LogFields{
		"queue": l.cfg.RabbitMq.QueueConfig.SettingsQueueName,
	})
	err = l.startAllQueue(ctx)
	if err != nil {
		return err
	}
	l.logger.Info("_all_.queue.started", out.LogFields{
		"queue": l.cfg.RabbitMq.QueueConfig.AllQueueName,
	})

	return nil
}

func (l *ChangeListener) Stop() error {
	if l == nil || l.channel == nil {
		return nil
	}

	if err := l.channel.Close(); err != nil {
		return err
	}
	return l.conn.Close()
}

// consumeQueue объявляет очередь, биндит ее к exchange и запускает
// последовательную обработку сообщений
func (l *ChangeListener) consumeQueue(ctx context.Context, name, bind, exchange string, process func(ctx context.Context, msg amqp.Delivery) error) error {
	queue, err := l.channel.QueueDeclare(
		name,
		true,  // durable
		true,  // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}
	err = l.channel.QueueBind(
		queue.Name,
		bind,
		exchange,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	msgs, err := l.channel.Consume(
		queue.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				if err := process(ctx, msg); err != nil {
					msg.Nack(false, true) // requeue message
					continue
				}
				msg.Ack(false)
			}
		}
	}()

	return nil
}

// Пример routingKey:
// store.appointment-engine.appointment.v1.insert
// store.appointment-engine.appointment.v1.delete
// store.appointment-engine.settings.v1.update
// store.appointment-engine._all_.v1.invalidate
func (l *ChangeListener) parseChangeMessageRoutingKey(ctx context.Context, msg amqp.Delivery) (ChangeMessageRoutingKey, error) {
	routingKey := msg.RoutingKey
	parts := strings.Split(routingKey, ".")

	if len(parts) < 5 {
		return ChangeMessageRoutingKey{}, fmt.Errorf("invalid routing key: %s", routingKey)
	}

	return ChangeMessageRoutingKey{
		Source:       parts[0],
		Receiver:     parts[1],
		ResourceType: ChangeResourceType(parts[2]),
		Version:      parts[3],
		Action:       ChangeAction(parts[4]),
	}, nil
}
