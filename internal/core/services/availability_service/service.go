package availability_service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/in"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services/slot_generator_service"
)

// pendingSource - оптимистично примененные записи, которых удаленный стор
// еще может не знать
type pendingSource interface {
	PendingAppointments(clinicID uuid.UUID, date json_types.Date) []domain.Appointment
}

// AvailabilityService - выдача слотов на день: настройки и записи через кэш,
// генерация чистой функцией
type AvailabilityService struct {
	settings  in.SettingsUseCase
	storePort out.StorePort
	cachePort out.CachePort
	pending   pendingSource
	logger    out.LoggerPort
	cfg       *config.Config
	nowFn     func() time.Time
}

func NewAvailabilityService(
	settings in.SettingsUseCase,
	storePort out.StorePort,
	cachePort out.CachePort,
	pending pendingSource,
	logger out.LoggerPort,
	cfg *config.Config,
) *AvailabilityService {
	return &AvailabilityService{
		settings:  settings,
		storePort: storePort,
		cachePort: cachePort,
		pending:   pending,
		logger:    logger.WithModule("AvailabilityService"),
		cfg:       cfg,
		nowFn:     time.Now,
	}
}

func (s *AvailabilityService) GetDaySlots(ctx context.Context, clinicID uuid.UUID, date json_types.Date) (*domain.Generation, error) {
	settingsDebug := domain.DebugInfo{Event: "slots.generate.settings"}
	settingsDebug.Start()

	settings, err := s.settings.Get(ctx, clinicID)
	if err != nil {
		s.logger.Error("slots.generate.settings.failed", out.LogFields{
			"clinicId": clinicID,
			"date":     date.String(),
			"error":    err.Error(),
		})
		return s.failedGeneration(date), err
	}
	settingsDebug.Elapse()

	appointmentsDebug := domain.DebugInfo{Event: "slots.generate.appointments"}
	appointmentsDebug.Start()

	appointments, err := s.loadAppointments(ctx, clinicID, date)
	if err != nil {
		s.logger.Error("slots.generate.appointments.failed", out.LogFields{
			"clinicId": clinicID,
			"date":     date.String(),
			"error":    err.Error(),
		})
		return s.failedGeneration(date), err
	}
	appointments = s.overlayPending(clinicID, date, appointments)
	appointmentsDebug.Elapse()

	generateDebug := domain.DebugInfo{Event: "slots.generate"}
	generateDebug.Start()
	generation := slot_generator_service.GenerateSlots(date, settings, appointments, s.nowFn())
	generateDebug.Elapse()

	generation.Debug = []domain.DebugInfo{settingsDebug, appointmentsDebug, generateDebug}

	s.logger.Debug("slots.generate.success", out.LogFields{
		"clinicId": clinicID,
		"date":     date.String(),
		"reason":   generation.Reason,
		"count":    len(generation.Slots),
	})

	return generation, nil
}

// GetBatchDaySlots генерирует слоты на несколько дней параллельно.
// Первая ошибка прерывает выдачу целиком
func (s *AvailabilityService) GetBatchDaySlots(ctx context.Context, clinicID uuid.UUID, dates []json_types.Date) (map[string]*domain.Generation, error) {
	generations := make(map[string]*domain.Generation, len(dates))

	var wg sync.WaitGroup
	var mu sync.Mutex
	errCh := make(chan error, len(dates))

	for _, date := range dates {
		wg.Add(1)
		go func(date json_types.Date) {
			defer wg.Done()

			generation, err := s.GetDaySlots(ctx, clinicID, date)
			if err != nil {
				errCh <- err
				return
			}

			mu.Lock()
			generations[date.String()] = generation
			mu.Unlock()
		}(date)
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}

	return generations, nil
}

func (s *AvailabilityService) loadAppointments(ctx context.Context, clinicID uuid.UUID, date json_types.Date) ([]domain.Appointment, error) {
	cacheKey := services.AppointmentsCacheKey(clinicID, date)

	value, err := s.cachePort.GetOrLoad(ctx, cacheKey, s.cfg.Cache.AppointmentsTTL, func(loadCtx context.Context) (interface{}, error) {
		return s.storePort.ListAppointments(loadCtx, out.AppointmentFilter{
			ClinicID: clinicID,
			Date:     date,
		})
	})
	if err != nil {
		return nil, err
	}

	appointments, ok := value.([]domain.Appointment)
	if !ok {
		return nil, errors.New("unexpected cached appointments type")
	}

	return appointments, nil
}

// overlayPending накладывает оптимистичные записи на список из стора:
// занятый ими слот не должен выглядеть свободным, пока стор не подтвердил
// запись и не отдал ее в листинге
func (s *AvailabilityService) overlayPending(clinicID uuid.UUID, date json_types.Date, appointments []domain.Appointment) []domain.Appointment {
	if s.pending == nil {
		return appointments
	}

	pending := s.pending.PendingAppointments(clinicID, date)
	if len(pending) == 0 {
		return appointments
	}

	merged := make([]domain.Appointment, 0, len(appointments)+len(pending))
	byID := make(map[uuid.UUID]domain.Appointment, len(pending))
	for _, appointment := range pending {
		byID[appointment.ID] = appointment
	}

	// Локальная версия новее серверной копии
	for _, appointment := range appointments {
		if local, exists := byID[appointment.ID]; exists {
			merged = append(merged, local)
			delete(byID, appointment.ID)
			continue
		}
		merged = append(merged, appointment)
	}
	for _, appointment := range pending {
		if _, exists := byID[appointment.ID]; exists {
			merged = append(merged, appointment)
		}
	}

	return merged
}

// Выдача при ошибке загрузки: пустой список с причиной, не nil
func (s *AvailabilityService) failedGeneration(date json_types.Date) *domain.Generation {
	return &domain.Generation{
		Date:   date,
		Reason: domain.GenerationReasonLoadFailed,
		Slots:  []domain.Slot{},
	}
}
