package settings_service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services"
)

// Бутстрап-копия настроек в kv переживает рестарты и недоступность стора
const localSettingsTTL = 7 * 24 * time.Hour

// SettingsService - чтение и частичное обновление настроек клиники.
// Чтение идет через кэш, при недоступности стора поднимается локальная копия
type SettingsService struct {
	storePort out.StorePort
	cachePort out.CachePort
	kvPort    out.KeyValuePort
	logger    out.LoggerPort
	cfg       *config.Config
}

func NewSettingsService(
	storePort out.StorePort,
	cachePort out.CachePort,
	kvPort out.KeyValuePort,
	logger out.LoggerPort,
	cfg *config.Config,
) *SettingsService {
	return &SettingsService{
		storePort: storePort,
		cachePort: cachePort,
		kvPort:    kvPort,
		logger:    logger.WithModule("SettingsService"),
		cfg:       cfg,
	}
}

func (s *SettingsService) Get(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error) {
	cacheKey := services.SettingsCacheKey(clinicID)

	value, err := s.cachePort.GetOrLoad(ctx, cacheKey, s.cfg.Cache.SettingsTTL, func(loadCtx context.Context) (interface{}, error) {
		return s.load(loadCtx, clinicID)
	})
	if err != nil {
		return nil, err
	}

	settings, ok := value.(*domain.SchedulingConfig)
	if !ok {
		return nil, errors.New("unexpected cached settings type")
	}

	return settings, nil
}

func (s *SettingsService) Set(ctx context.Context, clinicID uuid.UUID, patch domain.SchedulingConfigPatch) (*domain.SchedulingConfig, error) {
	current, err := s.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	merged := current.Merge(patch)
	merged.ClinicID = clinicID

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.storePort.SaveSchedulingConfig(ctx, merged)
	if err != nil {
		s.logger.Error("settings.save.failed", out.LogFields{
			"clinicId": clinicID,
			"error":    err.Error(),
		})
		return nil, err
	}

	saved.ApplyDefaults()
	s.saveLocal(ctx, saved)

	// Смена настроек меняет сетку слотов всех дней клиники
	s.cachePort.Invalidate(ctx, services.SettingsCacheKey(clinicID))
	s.cachePort.InvalidatePrefix(ctx, services.AppointmentsCachePrefix(clinicID))

	s.logger.Info("settings.save.success", out.LogFields{
		"clinicId": clinicID,
	})

	return saved, nil
}

func (s *SettingsService) load(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error) {
	settings, err := s.storePort.GetSchedulingConfig(ctx, clinicID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			defaults := domain.DefaultSchedulingConfig(clinicID)
			return &defaults, nil
		}
		if domain.IsTransient(err) {
			if local := s.loadLocal(ctx, clinicID); local != nil {
				s.logger.Warn("settings.load.local_fallback", out.LogFields{
					"clinicId": clinicID,
					"error":    err.Error(),
				})
				return local, nil
			}
		}
		return nil, err
	}

	settings.ClinicID = clinicID
	settings.ApplyDefaults()
	s.saveLocal(ctx, settings)

	return settings, nil
}

func localSettingsKey(clinicID uuid.UUID) string {
	return "settings:local:" + clinicID.String()
}

func (s *SettingsService) saveLocal(ctx context.Context, settings *domain.SchedulingConfig) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.kvPort.Set(ctx, localSettingsKey(settings.ClinicID), payload, localSettingsTTL); err != nil {
		s.logger.Warn("settings.local.save_failed", out.LogFields{
			"clinicId": settings.ClinicID,
			"error":    err.Error(),
		})
	}
}

func (s *SettingsService) loadLocal(ctx context.Context, clinicID uuid.UUID) *domain.SchedulingConfig {
	payload, found, err := s.kvPort.Get(ctx, localSettingsKey(clinicID))
	if err != nil || !found {
		return nil
	}

	var settings domain.SchedulingConfig
	if err := json.Unmarshal(payload, &settings); err != nil {
		return nil
	}

	settings.ApplyDefaults()
	return &settings
}
