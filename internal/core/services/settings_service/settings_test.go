package settings_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/cache"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/kv"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/logger"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services"
)

// fakeStore - управляемый стор для тестов настроек
type fakeStore struct {
	settings    map[uuid.UUID]*domain.SchedulingConfig
	getErr      error
	saveErr     error
	getCalls    int
	savedConfig *domain.SchedulingConfig
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: make(map[uuid.UUID]*domain.SchedulingConfig)}
}

func (f *fakeStore) ListAppointments(ctx context.Context, filter out.AppointmentFilter) ([]domain.Appointment, error) {
	return nil, nil
}

func (f *fakeStore) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Appointment, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	return &appointment, nil
}

func (f *fakeStore) UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	return &appointment, nil
}

func (f *fakeStore) DeleteAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	return nil
}

func (f *fakeStore) GetSchedulingConfig(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	settings, exists := f.settings[clinicID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	copied := *settings
	return &copied, nil
}

func (f *fakeStore) SaveSchedulingConfig(ctx context.Context, settings domain.SchedulingConfig) (*domain.SchedulingConfig, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	copied := settings
	f.settings[settings.ClinicID] = &copied
	f.savedConfig = &copied
	return &copied, nil
}

func newTestService(t *testing.T, store *fakeStore) (*SettingsService, *cache.CacheAdapter) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cache.Size = 100
	cfg.Cache.SettingsTTL = 10 * time.Minute
	cfg.Cache.AppointmentsTTL = 5 * time.Minute

	cacheAdapter, err := cache.NewCacheAdapter(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	service := NewSettingsService(store, cacheAdapter, kv.NewMemoryKeyValueAdapter(), logger.NewNopLogger(), cfg)
	return service, cacheAdapter
}

func TestSettings_DefaultsWhenNotFound(t *testing.T) {
	service, _ := newTestService(t, newFakeStore())
	ctx := context.Background()
	clinicID := uuid.New()

	settings, err := service.Get(ctx, clinicID)
	require.NoError(t, err)

	assert.Equal(t, json_types.NewDayTime(9, 0), settings.StartTime)
	assert.Equal(t, json_types.NewDayTime(18, 0), settings.EndTime)
	assert.Equal(t, json_types.NewDayTime(13, 0), settings.BreakStart)
	assert.Equal(t, json_types.NewDayTime(14, 0), settings.BreakEnd)
	assert.Equal(t, 30, settings.SlotIntervalMinutes)
	assert.Empty(t, settings.WeeklyHolidays)
}

func TestSettings_GetCached(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(t, store)
	ctx := context.Background()
	clinicID := uuid.New()

	_, err := service.Get(ctx, clinicID)
	require.NoError(t, err)
	_, err = service.Get(ctx, clinicID)
	require.NoError(t, err)

	// Повторное чтение идет из кэша
	assert.Equal(t, 1, store.getCalls)
}

func TestSettings_SetRejectsSmallInterval(t *testing.T) {
	service, _ := newTestService(t, newFakeStore())
	ctx := context.Background()
	clinicID := uuid.New()

	interval := 3
	_, err := service.Set(ctx, clinicID, domain.SchedulingConfigPatch{
		SlotIntervalMinutes: &interval,
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "slotIntervalMinutes", validationErr.Field)
}

func TestSettings_SetRejectsStartAfterEnd(t *testing.T) {
	service, _ := newTestService(t, newFakeStore())
	ctx := context.Background()
	clinicID := uuid.New()

	start := json_types.NewDayTime(19, 0)
	_, err := service.Set(ctx, clinicID, domain.SchedulingConfigPatch{
		StartTime: &start,
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestSettings_SetMergesPatchAndInvalidates(t *testing.T) {
	store := newFakeStore()
	service, cacheAdapter := newTestService(t, store)
	ctx := context.Background()
	clinicID := uuid.New()

	appointmentsKey := services.AppointmentsCacheKey(clinicID, json_types.NewDate(2026, time.September, 1, time.UTC))
	cacheAdapter.Set(ctx, appointmentsKey, "slots", time.Minute)

	interval := 15
	updated, err := service.Set(ctx, clinicID, domain.SchedulingConfigPatch{
		SlotIntervalMinutes: &interval,
	})
	require.NoError(t, err)

	// Непереданные поля остались дефолтными
	assert.Equal(t, 15, updated.SlotIntervalMinutes)
	assert.Equal(t, json_types.NewDayTime(9, 0), updated.StartTime)

	// Кэш слотов клиники инвалидирован
	_, found := cacheAdapter.Get(ctx, appointmentsKey)
	assert.False(t, found)

	// Следующее чтение видит новые настройки
	settings, err := service.Get(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, 15, settings.SlotIntervalMinutes)
}

func TestSettings_LocalBootstrapOnTransientError(t *testing.T) {
	store := newFakeStore()
	service, cacheAdapter := newTestService(t, store)
	ctx := context.Background()
	clinicID := uuid.New()

	custom := domain.DefaultSchedulingConfig(clinicID)
	custom.SlotIntervalMinutes = 20
	store.settings[clinicID] = &custom

	// Первое чтение успешно и сохраняет локальную копию
	settings, err := service.Get(ctx, clinicID)
	require.NoError(t, err)
	require.Equal(t, 20, settings.SlotIntervalMinutes)

	// Стор падает, кэш сбрасываем - чтение поднимает локальную копию
	store.getErr = &domain.TransientStoreError{Op: "GET", Err: errors.New("connection refused")}
	cacheAdapter.Invalidate(ctx, services.SettingsCacheKey(clinicID))

	settings, err = service.Get(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, 20, settings.SlotIntervalMinutes)
}

func TestSettings_TransientErrorWithoutLocalCopy(t *testing.T) {
	store := newFakeStore()
	store.getErr = &domain.TransientStoreError{Op: "GET", Err: errors.New("connection refused")}
	service, _ := newTestService(t, store)
	ctx := context.Background()

	_, err := service.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}
