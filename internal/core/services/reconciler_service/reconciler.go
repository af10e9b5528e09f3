package reconciler_service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services"
)

type SubscriptionState string

const (
	SubscriptionDisconnected SubscriptionState = "disconnected"
	SubscriptionConnecting   SubscriptionState = "connecting"
	SubscriptionSubscribed   SubscriptionState = "subscribed"
)

// appliedState - последняя примененная версия сущности.
// deleted - надгробие: события с меньшей версией после удаления отбрасываются
type appliedState struct {
	version int64
	deleted bool
}

// pendingWrite - оптимистично примененная локальная запись,
// эхо которой из ленты подавляется после подтверждения стором
type pendingWrite struct {
	seq        uint64
	ackVersion int64
	confirmed  bool
}

// ReconcilerService сводит push-ленту стора с локальным состоянием:
// порядок по версиям, фильтр по активной клинике, подавление эха
// оптимистичных записей, отложенная инвалидация кэша
type ReconcilerService struct {
	cachePort out.CachePort
	logger    out.LoggerPort
	cfg       *config.Config

	mu             sync.Mutex
	state          SubscriptionState
	activeClinicID uuid.UUID
	appointments   map[uuid.UUID]domain.Appointment
	applied        map[uuid.UUID]appliedState
	pending        map[uuid.UUID]*pendingWrite
	seq            uint64

	invalidateDebounce *Debouncer
	applyDebounce      *Debouncer
	listeners          []func(clinicID uuid.UUID, date json_types.Date)
}

func NewReconcilerService(cachePort out.CachePort, logger out.LoggerPort, cfg *config.Config) *ReconcilerService {
	return &ReconcilerService{
		cachePort:          cachePort,
		logger:             logger.WithModule("ReconcilerService"),
		cfg:                cfg,
		state:              SubscriptionDisconnected,
		appointments:       make(map[uuid.UUID]domain.Appointment),
		applied:            make(map[uuid.UUID]appliedState),
		pending:            make(map[uuid.UUID]*pendingWrite),
		invalidateDebounce: NewDebouncer(cfg.Reconciler.InvalidateDebounce),
		applyDebounce:      NewDebouncer(cfg.Reconciler.ApplyDebounce),
	}
}

// SetActiveClinic переключает активную клинику, локальное состояние сбрасывается
func (r *ReconcilerService) SetActiveClinic(clinicID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeClinicID == clinicID {
		return
	}

	r.activeClinicID = clinicID
	r.appointments = make(map[uuid.UUID]domain.Appointment)
	r.applied = make(map[uuid.UUID]appliedState)
	r.pending = make(map[uuid.UUID]*pendingWrite)
}

func (r *ReconcilerService) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = SubscriptionConnecting
}

func (r *ReconcilerService) MarkSubscribed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = SubscriptionSubscribed
}

func (r *ReconcilerService) Stop() {
	r.mu.Lock()
	r.state = SubscriptionDisconnected
	r.mu.Unlock()

	r.invalidateDebounce.Stop()
	r.applyDebounce.Stop()
}

func (r *ReconcilerService) State() SubscriptionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnApply регистрирует слушателя отложенных применений
func (r *ReconcilerService) OnApply(fn func(clinicID uuid.UUID, date json_types.Date)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot - локальные записи на дату, отсортированные по времени
func (r *ReconcilerService) Snapshot(date json_types.Date) []domain.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]domain.Appointment, 0)
	for _, appointment := range r.appointments {
		if appointment.Date.Equal(date) {
			snapshot = append(snapshot, appointment)
		}
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Time.Minutes < snapshot[j].Time.Minutes
	})

	return snapshot
}

// PendingAppointments - оптимистично примененные записи клиники на дату,
// которых удаленный стор еще может не знать. Накладываются на выдачу
// слотов, чтобы занятый ими слот не выглядел свободным
func (r *ReconcilerService) PendingAppointments(clinicID uuid.UUID, date json_types.Date) []domain.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Appointment, 0)
	for id := range r.pending {
		appointment, exists := r.appointments[id]
		if !exists {
			continue
		}
		if appointment.ClinicID == clinicID && appointment.Date.Equal(date) {
			result = append(result, appointment)
		}
	}

	return result
}

func (r *ReconcilerService) HandleAppointmentEvent(ctx context.Context, event domain.ChangeEvent) {
	r.mu.Lock()

	// События чужих клиник отбрасываются до применения
	if r.activeClinicID != uuid.Nil && event.ClinicID != r.activeClinicID {
		r.mu.Unlock()
		return
	}

	applied := r.applyEventLocked(event, false)
	if !applied {
		r.mu.Unlock()
		return
	}

	clinicID := event.ClinicID
	date := event.Appointment.Date
	r.mu.Unlock()

	r.scheduleEffects(ctx, clinicID, date)
}

// applyEventLocked применяет событие к локальному состоянию.
// force обходит проверки версий, используется компенсирующим откатом
func (r *ReconcilerService) applyEventLocked(event domain.ChangeEvent, force bool) bool {
	id := event.Appointment.ID
	version := event.Version
	if version == 0 {
		version = event.Appointment.Version
	}

	state, seen := r.applied[id]

	if !force {
		// Надгробие: Insert после Delete не воскрешает запись
		if seen && state.deleted {
			r.logger.Debug("reconciler.event.tombstone_drop", out.LogFields{
				"appointmentId": id,
				"version":       version,
			})
			return false
		}

		// Устаревшее по версии событие отбрасывается.
		// Логируется, наружу не поднимается
		if seen && version <= state.version {
			staleErr := &domain.StaleWriteRejectedError{AppointmentID: id}
			r.logger.Debug("reconciler.event.stale_drop", out.LogFields{
				"error":   staleErr.Error(),
				"version": version,
				"applied": state.version,
			})
			return false
		}

		// Эхо подтвержденной оптимистичной записи
		if pw, ok := r.pending[id]; ok && pw.confirmed {
			if version <= pw.ackVersion {
				staleErr := &domain.StaleWriteRejectedError{AppointmentID: id}
				r.logger.Debug("reconciler.event.echo_drop", out.LogFields{
					"error":   staleErr.Error(),
					"version": version,
				})
				r.applied[id] = appliedState{version: version}
				return false
			}
			// Более новое событие, чем подтверждение: запись завершена
			delete(r.pending, id)
		}
	}

	switch event.Type {
	case domain.ChangeEventTypeDelete:
		delete(r.appointments, id)
		r.applied[id] = appliedState{version: version, deleted: true}
	default:
		appointment := event.Appointment
		appointment.Version = version
		r.appointments[id] = appointment
		r.applied[id] = appliedState{version: version}
	}

	return true
}

// scheduleEffects планирует отложенную инвалидацию кэша и уведомление
// слушателей. Повторные события по тому же дню сбрасывают окна
func (r *ReconcilerService) scheduleEffects(ctx context.Context, clinicID uuid.UUID, date json_types.Date) {
	cacheKey := services.AppointmentsCacheKey(clinicID, date)

	r.invalidateDebounce.Trigger(cacheKey, func() {
		r.cachePort.Invalidate(context.WithoutCancel(ctx), cacheKey)
		r.logger.Debug("reconciler.cache.invalidated", out.LogFields{
			"clinicId": clinicID,
			"date":     date.String(),
		})
	})

	r.applyDebounce.Trigger(cacheKey, func() {
		r.mu.Lock()
		listeners := make([]func(uuid.UUID, json_types.Date), len(r.listeners))
		copy(listeners, r.listeners)
		r.mu.Unlock()

		for _, listener := range listeners {
			listener(clinicID, date)
		}
	})
}

// ApplyOptimistic применяет локальную запись до подтверждения стором
func (r *ReconcilerService) ApplyOptimistic(ctx context.Context, appointment domain.Appointment) {
	r.mu.Lock()
	r.seq++
	r.pending[appointment.ID] = &pendingWrite{seq: r.seq}
	r.appointments[appointment.ID] = appointment
	r.mu.Unlock()

	r.patchCachedList(ctx, appointment, false)
}

// ConfirmWrite фиксирует подтверждение стора: эхо события с версией
// подтверждения будет подавлено. Стор мог назначить другой идентификатор
func (r *ReconcilerService) ConfirmWrite(ctx context.Context, localID uuid.UUID, confirmed domain.Appointment) {
	r.mu.Lock()

	pw, ok := r.pending[localID]
	if !ok {
		pw = &pendingWrite{}
	}
	pw.confirmed = true
	pw.ackVersion = confirmed.Version

	var stale *domain.Appointment
	if confirmed.ID != localID {
		if local, exists := r.appointments[localID]; exists {
			stale = &local
		}
		delete(r.appointments, localID)
		delete(r.applied, localID)
		delete(r.pending, localID)
		r.pending[confirmed.ID] = pw
	} else {
		r.pending[localID] = pw
	}

	r.appointments[confirmed.ID] = confirmed
	r.applied[confirmed.ID] = appliedState{version: confirmed.Version}
	r.mu.Unlock()

	if stale != nil {
		r.patchCachedList(ctx, *stale, true)
	}
	r.patchCachedList(ctx, confirmed, false)
}

// Revert откатывает оптимистичную запись компенсирующим событием
// через общий путь применения. previous == nil означает, что записи не было
func (r *ReconcilerService) Revert(ctx context.Context, previous *domain.Appointment, applied domain.Appointment) {
	r.mu.Lock()
	delete(r.pending, applied.ID)

	var event domain.ChangeEvent
	if previous == nil {
		event = domain.ChangeEvent{
			Type:        domain.ChangeEventTypeDelete,
			ClinicID:    applied.ClinicID,
			Appointment: applied,
		}
	} else {
		event = domain.ChangeEvent{
			Type:        domain.ChangeEventTypeUpdate,
			ClinicID:    previous.ClinicID,
			Appointment: *previous,
			Version:     previous.Version,
		}
	}

	r.applyEventLocked(event, true)
	clinicID := applied.ClinicID
	date := applied.Date
	r.mu.Unlock()

	r.logger.Warn("reconciler.optimistic.reverted", out.LogFields{
		"appointmentId": applied.ID,
		"clinicId":      clinicID,
	})

	if previous == nil {
		r.patchCachedList(ctx, applied, true)
	} else {
		r.patchCachedList(ctx, *previous, false)
	}

	r.scheduleEffects(ctx, clinicID, date)
}

// HandleSettingsEvent: смена настроек инвалидирует настройки и все слоты
// клиники без дебаунса
func (r *ReconcilerService) HandleSettingsEvent(ctx context.Context, clinicID uuid.UUID) {
	r.cachePort.Invalidate(ctx, services.SettingsCacheKey(clinicID))
	r.cachePort.InvalidatePrefix(ctx, services.AppointmentsCachePrefix(clinicID))

	r.logger.Info("reconciler.settings.invalidated", out.LogFields{
		"clinicId": clinicID,
	})
}

func (r *ReconcilerService) InvalidateAll(ctx context.Context) {
	r.cachePort.InvalidatePrefix(ctx, "")
	r.logger.Info("reconciler.cache.invalidated_all", nil)
}

// patchCachedList правит кэшированный список записей дня на месте,
// чтобы оптимистичная запись была видна до инвалидации
func (r *ReconcilerService) patchCachedList(ctx context.Context, appointment domain.Appointment, remove bool) {
	cacheKey := services.AppointmentsCacheKey(appointment.ClinicID, appointment.Date)

	value, found := r.cachePort.Get(ctx, cacheKey)
	if !found {
		return
	}

	cached, ok := value.([]domain.Appointment)
	if !ok {
		return
	}

	patched := make([]domain.Appointment, 0, len(cached)+1)
	replaced := false
	for _, existing := range cached {
		if existing.ID == appointment.ID {
			if remove {
				continue
			}
			patched = append(patched, appointment)
			replaced = true
			continue
		}
		patched = append(patched, existing)
	}
	if !remove && !replaced {
		patched = append(patched, appointment)
	}

	r.cachePort.Set(ctx, cacheKey, patched, r.cfg.Cache.AppointmentsTTL)
}
