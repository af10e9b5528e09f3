package out

import (
	"context"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

// AppointmentFilter - фильтр листинга записей в удаленном сторе
type AppointmentFilter struct {
	ClinicID uuid.UUID
	Date     json_types.Date
}

// StorePort - удаленный мутабельный стор, единственный источник истины.
// Любой вызов может вернуть TransientStoreError, записи не идемпотентны
type StorePort interface {
	// Методы для работы с записями на прием
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Appointment, error)
	CreateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error)
	DeleteAppointment(ctx context.Context, appointmentID uuid.UUID) error

	// Методы для работы с настройками клиники
	GetSchedulingConfig(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error)
	SaveSchedulingConfig(ctx context.Context, config domain.SchedulingConfig) (*domain.SchedulingConfig, error)
}
