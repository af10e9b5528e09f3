package booking_service

import (
	"context"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/in"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
	"github.com/suchimauz/clinic-appointment-engine/internal/utils"
)

// optimisticApplier - то, что нужно букингу от реконсилятора:
// применить локально, подтвердить, откатить компенсирующим событием
type optimisticApplier interface {
	ApplyOptimistic(ctx context.Context, appointment domain.Appointment)
	ConfirmWrite(ctx context.Context, localID uuid.UUID, confirmed domain.Appointment)
	Revert(ctx context.Context, previous *domain.Appointment, applied domain.Appointment)
}

// BookingService - путь записи: гейт AbuseGuard, проверка слота,
// оптимистичное применение, отправка в стор, откат при отказе
type BookingService struct {
	guard        in.AbuseGuardUseCase
	availability in.AvailabilityUseCase
	storePort    out.StorePort
	applier      optimisticApplier
	logger       out.LoggerPort
}

func NewBookingService(
	guard in.AbuseGuardUseCase,
	availability in.AvailabilityUseCase,
	storePort out.StorePort,
	applier optimisticApplier,
	logger out.LoggerPort,
) *BookingService {
	return &BookingService{
		guard:        guard,
		availability: availability,
		storePort:    storePort,
		applier:      applier,
		logger:       logger.WithModule("BookingService"),
	}
}

func (s *BookingService) CreateAppointment(ctx context.Context, input in.CreateAppointmentInput) (*domain.Appointment, error) {
	if err := s.gate(ctx, input.Subject); err != nil {
		return nil, err
	}

	if err := s.guard.RecordAttempt(ctx, domain.AttemptKindBooking, input.Subject); err != nil {
		s.logger.Warn("booking.attempt.record_failed", out.LogFields{
			"error": err.Error(),
		})
	}

	if err := s.ensureSlotBookable(ctx, input.ClinicID, input.Date, input.Time); err != nil {
		return nil, err
	}

	appointment := domain.Appointment{
		// Временный локальный идентификатор, стор назначит свой
		ID:                 uuid.New(),
		ClinicID:           input.ClinicID,
		Date:               input.Date,
		Time:               input.Time,
		Status:             domain.AppointmentStatusConfirmed,
		ContactFingerprint: domain.NewContactFingerprint(input.Email, input.Phone),
	}

	s.applier.ApplyOptimistic(ctx, appointment)

	created, err := s.storePort.CreateAppointment(ctx, appointment)
	if err != nil {
		s.applier.Revert(ctx, nil, appointment)
		return nil, err
	}

	s.applier.ConfirmWrite(ctx, appointment.ID, *created)

	s.logger.Info("booking.create.success", out.LogFields{
		"appointmentId": created.ID,
		"clinicId":      created.ClinicID,
		"date":          created.Date.String(),
	})

	return created, nil
}

func (s *BookingService) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, subject domain.SubjectKeys) error {
	if err := s.gate(ctx, subject); err != nil {
		return err
	}

	current, err := s.storePort.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}

	cancelled := *current
	cancelled.Status = domain.AppointmentStatusCancelled

	s.applier.ApplyOptimistic(ctx, cancelled)

	updated, err := s.storePort.UpdateAppointment(ctx, cancelled)
	if err != nil {
		s.applier.Revert(ctx, current, cancelled)
		return err
	}

	s.applier.ConfirmWrite(ctx, appointmentID, *updated)

	s.logger.Info("booking.cancel.success", out.LogFields{
		"appointmentId": appointmentID,
	})

	return nil
}

func (s *BookingService) RescheduleAppointment(ctx context.Context, appointmentID uuid.UUID, input in.RescheduleAppointmentInput) (*domain.Appointment, error) {
	if err := s.gate(ctx, input.Subject); err != nil {
		return nil, err
	}

	current, err := s.storePort.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureSlotBookable(ctx, current.ClinicID, input.Date, input.Time); err != nil {
		return nil, err
	}

	moved := *current
	moved.Date = input.Date
	moved.Time = input.Time
	moved.Status = domain.AppointmentStatusRescheduled

	s.applier.ApplyOptimistic(ctx, moved)

	updated, err := s.storePort.UpdateAppointment(ctx, moved)
	if err != nil {
		s.applier.Revert(ctx, current, moved)
		return nil, err
	}

	s.applier.ConfirmWrite(ctx, appointmentID, *updated)

	s.logger.Info("booking.reschedule.success", out.LogFields{
		"appointmentId": appointmentID,
		"date":          input.Date.String(),
	})

	return updated, nil
}

// gate проверяет состояние AbuseGuard до любой мутации
func (s *BookingService) gate(ctx context.Context, subject domain.SubjectKeys) error {
	status := s.guard.CheckStatus(ctx, subject)
	if status.RequiresChallenge {
		return &domain.ChallengeRequiredError{
			Reason:            status.Reason,
			CooldownRemaining: status.CooldownRemaining,
		}
	}
	return nil
}

// ensureSlotBookable ищет слот с указанным началом в актуальной выдаче
func (s *BookingService) ensureSlotBookable(ctx context.Context, clinicID uuid.UUID, date json_types.Date, slotTime json_types.DayTime) error {
	generation, err := s.availability.GetDaySlots(ctx, clinicID, date)
	if err != nil {
		return err
	}

	if generation.Reason != domain.GenerationReasonOK {
		return &domain.ValidationError{
			Field:   "date",
			Message: "appointments are not available on this day",
		}
	}

	wanted := slotTime.At(utils.StartCurrentDay(date.Date))

	for _, slot := range generation.Slots {
		if slot.StartTime.Equal(wanted) {
			if !slot.Bookable {
				return &domain.ValidationError{
					Field:   "time",
					Message: "slot is not bookable",
				}
			}
			return nil
		}
	}

	return &domain.ValidationError{
		Field:   "time",
		Message: "slot does not exist",
	}
}
