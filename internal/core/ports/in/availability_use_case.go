package in

import (
	"context"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

type AvailabilityUseCase interface {
	// Генерация слотов на один день
	GetDaySlots(ctx context.Context, clinicID uuid.UUID, date json_types.Date) (*domain.Generation, error)

	// Генерация слотов на несколько дней
	GetBatchDaySlots(ctx context.Context, clinicID uuid.UUID, dates []json_types.Date) (map[string]*domain.Generation, error)
}
