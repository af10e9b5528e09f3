package in

import (
	"context"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
)

type SettingsUseCase interface {
	Get(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error)

	// Set применяет частичное обновление поверх текущих настроек.
	// Успешный Set инвалидирует все кэшированные слоты клиники
	Set(ctx context.Context, clinicID uuid.UUID, patch domain.SchedulingConfigPatch) (*domain.SchedulingConfig, error)
}
