package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/in/http"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/in/rabbitmq"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/cache"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/kv"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/logger"
	"github.com/suchimauz/clinic-appointment-engine/internal/adapters/out/store"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services/abuse_guard_service"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services/availability_service"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services/booking_service"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services/reconciler_service"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/services/settings_service"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера с таймзоной
	mainLogger, err := logger.NewConsoleLogger(cfg.App.Timezone)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := mainLogger.WithModule("Main")

	log.Info("app.starting", out.LogFields{
		"version":         cfg.App.Version,
		"env":             cfg.App.Env,
		"timezone":        cfg.App.Timezone,
		"rabbitmqEnabled": cfg.RabbitMq.Enabled,
		"redisEnabled":    cfg.Redis.Enabled,
	})

	// Настройка Gin в зависимости от окружения
	if cfg.IsNotLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Инициализация исходящих адаптеров
	storeAdapter := store.NewStoreAdapter(cfg, mainLogger.WithModule("StoreAdapter"))

	cacheAdapter, err := cache.NewCacheAdapter(cfg, mainLogger.WithModule("CacheAdapter"))
	if err != nil {
		log.Error("app.cache.init_failed", out.LogFields{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	var kvAdapter out.KeyValuePort
	if cfg.Redis.Enabled {
		redisAdapter := kv.NewRedisKeyValueAdapter(cfg, mainLogger)
		defer redisAdapter.Close()
		kvAdapter = redisAdapter
	} else {
		kvAdapter = kv.NewMemoryKeyValueAdapter()
	}

	// Инициализация сервисов
	settingsService := settings_service.NewSettingsService(storeAdapter, cacheAdapter, kvAdapter, mainLogger, cfg)
	reconcilerService := reconciler_service.NewReconcilerService(cacheAdapter, mainLogger, cfg)
	availabilityService := availability_service.NewAvailabilityService(settingsService, storeAdapter, cacheAdapter, reconcilerService, mainLogger, cfg)
	guardService := abuse_guard_service.NewAbuseGuardService(kvAdapter, mainLogger, cfg)
	bookingService := booking_service.NewBookingService(guardService, availabilityService, storeAdapter, reconcilerService, mainLogger)

	defer reconcilerService.Stop()

	reconcilerService.OnApply(func(clinicID uuid.UUID, date json_types.Date) {
		log.Debug("app.reconciler.applied", out.LogFields{
			"clinicId": clinicID,
			"date":     date.String(),
		})
	})

	// Настройка HTTP сервера
	router := gin.Default()
	controller := http.NewBookingController(availabilityService, settingsService, bookingService, guardService, cfg)
	controller.RegisterRoutes(router)

	// Настройка RabbitMQ слушателя только если он включен
	if cfg.RabbitMq.Enabled {
		reconcilerService.Start()

		listener, err := rabbitmq.NewChangeListener(reconcilerService, cfg, mainLogger.WithModule("ChangeListener"))
		if err != nil {
			log.Error("app.rabbitmq.init_failed", out.LogFields{
				"error": err.Error(),
			})
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := listener.Start(ctx); err != nil {
			log.Error("app.rabbitmq.start_failed", out.LogFields{
				"error": err.Error(),
			})
			os.Exit(1)
		}
		reconcilerService.MarkSubscribed()

		defer func() {
			if err := listener.Stop(); err != nil {
				log.Error("app.rabbitmq.stop_failed", out.LogFields{
					"error": err.Error(),
				})
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("app.http.starting", out.LogFields{
			"host": cfg.HTTP.Host,
			"port": cfg.HTTP.Port,
		})

		if err := router.Run(cfg.HTTP.Host + ":" + cfg.HTTP.Port); err != nil {
			log.Error("app.http.failed", out.LogFields{
				"error": err.Error(),
			})
			sigChan <- syscall.SIGTERM
		}
	}()

	sig := <-sigChan
	log.Info("app.shutdown.initiated", out.LogFields{
		"signal": sig.String(),
	})
}
