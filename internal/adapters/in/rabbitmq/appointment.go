package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

type ChangeAppointmentMessage struct {
	ClinicID    uuid.UUID          `json:"clinicId"`
	Version     int64              `json:"version"`
	Appointment domain.Appointment `json:"appointment"`
}

func (l *ChangeListener) startAppointmentQueue(ctx context.Context) error {
	return l.consumeQueue(
		ctx,
		l.cfg.RabbitMq.QueueConfig.AppointmentQueueName,
		l.cfg.RabbitMq.QueueConfig.AppointmentQueueBind,
		l.cfg.RabbitMq.QueueConfig.AppointmentQueueExchange,
		l.processAppointmentMessage,
	)
}

func (l *ChangeListener) processAppointmentMessage(ctx context.Context, msg amqp.Delivery) error {
	routingKey, err := l.parseChangeMessageRoutingKey(ctx, msg)
	if err != nil {
		return err
	}

	if routingKey.ResourceType != ChangeResourceTypeAppointment {
		return nil
	}

	var msgJson ChangeAppointmentMessage
	if err := json.Unmarshal(msg.Body, &msgJson); err != nil {
		return err
	}

	var eventType domain.ChangeEventType
	switch routingKey.Action {
	case ChangeActionInsert:
		eventType = domain.ChangeEventTypeInsert
	case ChangeActionUpdate:
		eventType = domain.ChangeEventTypeUpdate
	case ChangeActionDelete:
		eventType = domain.ChangeEventTypeDelete
	default:
		l.logger.Warn("appointment.message.unknown_action", out.LogFields{
			"routingKey": msg.RoutingKey,
		})
		return nil
	}

	// Обработка синхронная: события одной записи должны применяться
	// в порядке прихода
	l.feed.HandleAppointmentEvent(ctx, domain.ChangeEvent{
		Type:        eventType,
		ClinicID:    msgJson.ClinicID,
		Appointment: msgJson.Appointment,
		Version:     msgJson.Version,
	})

	l.logger.Debug("appointment.message.handled", out.LogFields{
		"appointment_id": msgJson.Appointment.ID,
		"action":         routingKey.Action,
		"version":        msgJson.Version,
	})

	return nil
}
