package in

import (
	"context"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

type CreateAppointmentInput struct {
	ClinicID uuid.UUID
	Date     json_types.Date
	Time     json_types.DayTime
	Email    string
	Phone    string
	Subject  domain.SubjectKeys
}

type RescheduleAppointmentInput struct {
	Date    json_types.Date
	Time    json_types.DayTime
	Subject domain.SubjectKeys
}

// BookingUseCase - путь записи: гейт AbuseGuard, оптимистичное применение,
// отправка в стор, откат компенсирующим событием при отказе
type BookingUseCase interface {
	CreateAppointment(ctx context.Context, input CreateAppointmentInput) (*domain.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, subject domain.SubjectKeys) error
	RescheduleAppointment(ctx context.Context, appointmentID uuid.UUID, input RescheduleAppointmentInput) (*domain.Appointment, error)
}
