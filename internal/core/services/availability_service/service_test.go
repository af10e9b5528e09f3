package availability_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/cache"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/logger"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

// fakeSettings отдает фиксированные настройки
type fakeSettings struct {
	settings *domain.SchedulingConfig
	err      error
}

func (f *fakeSettings) Get(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error) {
	return f.settings, f.err
}

func (f *fakeSettings) Set(ctx context.Context, clinicID uuid.UUID, patch domain.SchedulingConfigPatch) (*domain.SchedulingConfig, error) {
	return f.settings, f.err
}

// fakeAppointmentStore считает обращения к списку записей
type fakeAppointmentStore struct {
	appointments []domain.Appointment
	listErr      error
	listCalls    int
}

func (f *fakeAppointmentStore) ListAppointments(ctx context.Context, filter out.AppointmentFilter) ([]domain.Appointment, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.appointments, nil
}

func (f *fakeAppointmentStore) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Appointment, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeAppointmentStore) CreateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	return &appointment, nil
}

func (f *fakeAppointmentStore) UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	return &appointment, nil
}

func (f *fakeAppointmentStore) DeleteAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	return nil
}

func (f *fakeAppointmentStore) GetSchedulingConfig(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeAppointmentStore) SaveSchedulingConfig(ctx context.Context, settings domain.SchedulingConfig) (*domain.SchedulingConfig, error) {
	return &settings, nil
}

// fakePending отдает фиксированный список оптимистичных записей
type fakePending struct {
	appointments []domain.Appointment
}

func (f *fakePending) PendingAppointments(clinicID uuid.UUID, date json_types.Date) []domain.Appointment {
	result := make([]domain.Appointment, 0)
	for _, appointment := range f.appointments {
		if appointment.ClinicID == clinicID && appointment.Date.Equal(date) {
			result = append(result, appointment)
		}
	}
	return result
}

func newTestAvailability(t *testing.T, store *fakeAppointmentStore, pending *fakePending) *AvailabilityService {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cache.Size = 100
	cfg.Cache.AppointmentsTTL = 5 * time.Minute
	cfg.Cache.SettingsTTL = 10 * time.Minute

	cacheAdapter, err := cache.NewCacheAdapter(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	defaults := domain.DefaultSchedulingConfig(uuid.New())
	settings := &fakeSettings{settings: &defaults}

	service := NewAvailabilityService(settings, store, cacheAdapter, pending, logger.NewNopLogger(), cfg)
	service.nowFn = func() time.Time {
		return time.Date(2026, time.August, 30, 8, 0, 0, 0, time.UTC)
	}
	return service
}

func TestAvailability_GetDaySlots(t *testing.T) {
	store := &fakeAppointmentStore{}
	service := newTestAvailability(t, store, &fakePending{})
	ctx := context.Background()

	date := json_types.NewDate(2026, time.September, 1, time.UTC)
	generation, err := service.GetDaySlots(ctx, uuid.New(), date)
	require.NoError(t, err)

	assert.Equal(t, domain.GenerationReasonOK, generation.Reason)
	assert.Len(t, generation.Slots, 16)
	assert.NotEmpty(t, generation.Debug)
}

func TestAvailability_AppointmentsCached(t *testing.T) {
	store := &fakeAppointmentStore{}
	service := newTestAvailability(t, store, &fakePending{})
	ctx := context.Background()

	clinicID := uuid.New()
	date := json_types.NewDate(2026, time.September, 1, time.UTC)

	_, err := service.GetDaySlots(ctx, clinicID, date)
	require.NoError(t, err)
	_, err = service.GetDaySlots(ctx, clinicID, date)
	require.NoError(t, err)

	// Второй запрос читает записи из кэша
	assert.Equal(t, 1, store.listCalls)
}

func TestAvailability_LoadFailure(t *testing.T) {
	store := &fakeAppointmentStore{
		listErr: &domain.TransientStoreError{Op: "GET", Err: errors.New("connection refused")},
	}
	service := newTestAvailability(t, store, &fakePending{})
	ctx := context.Background()

	date := json_types.NewDate(2026, time.September, 1, time.UTC)
	generation, err := service.GetDaySlots(ctx, uuid.New(), date)

	// Ошибка возвращается вместе с деградированной выдачей
	require.Error(t, err)
	require.NotNil(t, generation)
	assert.Equal(t, domain.GenerationReasonLoadFailed, generation.Reason)
	assert.Empty(t, generation.Slots)
	assert.NotNil(t, generation.Slots)
}

func TestAvailability_ErrorsNotCached(t *testing.T) {
	store := &fakeAppointmentStore{
		listErr: &domain.TransientStoreError{Op: "GET", Err: errors.New("connection refused")},
	}
	service := newTestAvailability(t, store, &fakePending{})
	ctx := context.Background()

	clinicID := uuid.New()
	date := json_types.NewDate(2026, time.September, 1, time.UTC)

	_, err := service.GetDaySlots(ctx, clinicID, date)
	require.Error(t, err)

	// Стор восстановился, следующий запрос грузит заново
	store.listErr = nil
	generation, err := service.GetDaySlots(ctx, clinicID, date)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationReasonOK, generation.Reason)
	assert.Equal(t, 2, store.listCalls)
}

func TestAvailability_PendingAppointmentBlocksSlot(t *testing.T) {
	store := &fakeAppointmentStore{}
	clinicID := uuid.New()
	date := json_types.NewDate(2026, time.September, 1, time.UTC)

	// Стор еще не знает об оптимистичной записи, в кэше дня пусто
	pending := &fakePending{
		appointments: []domain.Appointment{
			{
				ID:       uuid.New(),
				ClinicID: clinicID,
				Date:     date,
				Time:     json_types.NewDayTime(10, 0),
				Status:   domain.AppointmentStatusConfirmed,
			},
		},
	}
	service := newTestAvailability(t, store, pending)
	ctx := context.Background()

	generation, err := service.GetDaySlots(ctx, clinicID, date)
	require.NoError(t, err)
	require.Equal(t, domain.GenerationReasonOK, generation.Reason)

	for _, slot := range generation.Slots {
		if slot.Label == "10:00 - 10:30" {
			assert.False(t, slot.Bookable)
			return
		}
	}
	t.Fatal("slot 10:00 - 10:30 not found")
}

func TestAvailability_CancelledPendingFreesSlot(t *testing.T) {
	clinicID := uuid.New()
	date := json_types.NewDate(2026, time.September, 1, time.UTC)

	appointmentID := uuid.New()
	store := &fakeAppointmentStore{
		appointments: []domain.Appointment{
			{
				ID:       appointmentID,
				ClinicID: clinicID,
				Date:     date,
				Time:     json_types.NewDayTime(10, 0),
				Status:   domain.AppointmentStatusConfirmed,
			},
		},
	}

	// Оптимистичная отмена новее серверной копии и замещает ее
	pending := &fakePending{
		appointments: []domain.Appointment{
			{
				ID:       appointmentID,
				ClinicID: clinicID,
				Date:     date,
				Time:     json_types.NewDayTime(10, 0),
				Status:   domain.AppointmentStatusCancelled,
			},
		},
	}
	service := newTestAvailability(t, store, pending)
	ctx := context.Background()

	generation, err := service.GetDaySlots(ctx, clinicID, date)
	require.NoError(t, err)

	for _, slot := range generation.Slots {
		if slot.Label == "10:00 - 10:30" {
			assert.True(t, slot.Bookable)
			return
		}
	}
	t.Fatal("slot 10:00 - 10:30 not found")
}

func TestAvailability_Batch(t *testing.T) {
	store := &fakeAppointmentStore{}
	service := newTestAvailability(t, store, &fakePending{})
	ctx := context.Background()

	dates := []json_types.Date{
		json_types.NewDate(2026, time.September, 1, time.UTC),
		json_types.NewDate(2026, time.September, 2, time.UTC),
		json_types.NewDate(2026, time.September, 3, time.UTC),
	}

	generations, err := service.GetBatchDaySlots(ctx, uuid.New(), dates)
	require.NoError(t, err)
	require.Len(t, generations, 3)

	for _, date := range dates {
		generation, exists := generations[date.String()]
		require.True(t, exists, "missing generation for %s", date)
		assert.Equal(t, domain.GenerationReasonOK, generation.Reason)
	}
}
