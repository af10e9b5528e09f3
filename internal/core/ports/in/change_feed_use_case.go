package in

import (
	"context"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
)

// ChangeFeedUseCase - прием событий push-ленты удаленного стора
type ChangeFeedUseCase interface {
	HandleAppointmentEvent(ctx context.Context, event domain.ChangeEvent)
	HandleSettingsEvent(ctx context.Context, clinicID uuid.UUID)
	InvalidateAll(ctx context.Context)
}
