package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDev        Environment = "dev"
	EnvStage      Environment = "stage"
	EnvProduction Environment = "production"
)

type ConfigBasicClient struct {
	Username string
	Password string
}

type Config struct {
	App struct {
		Version  string      `env:"APP_VERSION" envDefault:"local"`
		Env      Environment `env:"APP_ENV" envDefault:"local"`
		Timezone string      `env:"APP_TIMEZONE" envDefault:"Europe/Moscow"`
	}

	HTTP struct {
		Port string `env:"HTTP_SERVER_PORT" envDefault:"8080"`
		Host string `env:"HTTP_SERVER_HOST" envDefault:"localhost"`
	}

	Store struct {
		URL      string `env:"STORE_URL"`
		Username string `env:"STORE_USERNAME"`
		Password string `env:"STORE_PASSWORD"`
	}

	Auth struct {
		BasicClientsString string `env:"AUTH_BASIC_CLIENTS" envDefault:"appointment_engine:appointment_engine"`
		BasicClients       []ConfigBasicClient
	}

	RabbitMq struct {
		Enabled bool   `env:"RABBITMQ_ENABLED"`
		AmqpUri string `env:"RABBITMQ_URL"`

		QueueConfig struct {
			AppointmentQueueName     string `env:"RABBITMQ_APPOINTMENT_QUEUE" envDefault:"appointment-engine.appointment"`
			AppointmentQueueBind     string `env:"RABBITMQ_APPOINTMENT_QUEUE_BIND" envDefault:"store.appointment-engine.appointment.v1.*"`
			AppointmentQueueExchange string `env:"RABBITMQ_APPOINTMENT_QUEUE_EXCHANGE" envDefault:"store.events"`
			SettingsQueueName        string `env:"RABBITMQ_SETTINGS_QUEUE" envDefault:"appointment-engine.settings"`
			SettingsQueueBind        string `env:"RABBITMQ_SETTINGS_QUEUE_BIND" envDefault:"store.appointment-engine.settings.v1.*"`
			SettingsQueueExchange    string `env:"RABBITMQ_SETTINGS_QUEUE_EXCHANGE" envDefault:"store.events"`
			AllQueueName             string `env:"RABBITMQ_ALL_QUEUE" envDefault:"appointment-engine._all_"`
			AllQueueBind             string `env:"RABBITMQ_ALL_QUEUE_BIND" envDefault:"store.appointment-engine._all_.v1.*"`
			AllQueueExchange         string `env:"RABBITMQ_ALL_QUEUE_EXCHANGE" envDefault:"store.events"`
		}
	}

	Redis struct {
		Enabled  bool   `env:"REDIS_ENABLED"`
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Cache struct {
		Size            int           `env:"CACHE_SIZE" envDefault:"500"`
		AppointmentsTTL time.Duration `env:"CACHE_APPOINTMENTS_TTL" envDefault:"5m"`
		SettingsTTL     time.Duration `env:"CACHE_SETTINGS_TTL" envDefault:"10m"`
	}

	Reconciler struct {
		InvalidateDebounce time.Duration `env:"RECONCILER_INVALIDATE_DEBOUNCE" envDefault:"2000ms"`
		ApplyDebounce      time.Duration `env:"RECONCILER_APPLY_DEBOUNCE" envDefault:"1000ms"`
	}

	Guard struct {
		Window            time.Duration `env:"GUARD_WINDOW" envDefault:"24h"`
		MaxPerSubject     int           `env:"GUARD_MAX_PER_SUBJECT" envDefault:"10"`
		MaxPerEmail       int           `env:"GUARD_MAX_PER_EMAIL" envDefault:"5"`
		MaxPerPhone       int           `env:"GUARD_MAX_PER_PHONE" envDefault:"3"`
		MaxFailedLogins   int           `env:"GUARD_MAX_FAILED_LOGINS" envDefault:"5"`
		Cooldown          time.Duration `env:"GUARD_COOLDOWN" envDefault:"1h"`
		BlacklistAfter    int           `env:"GUARD_BLACKLIST_AFTER" envDefault:"3"`
		BlacklistFor      time.Duration `env:"GUARD_BLACKLIST_FOR" envDefault:"24h"`
		ChallengeRegen    int           `env:"GUARD_CHALLENGE_REGEN" envDefault:"3"`
		ChallengeCooldown int           `env:"GUARD_CHALLENGE_COOLDOWN_AFTER" envDefault:"5"`
	}
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Приведение окружения к нижнему регистру для унификации
	cfg.App.Env = Environment(strings.ToLower(string(cfg.App.Env)))

	// Разделение basic-клиентов
	if cfg.Auth.BasicClients == nil {
		cfg.Auth.BasicClients = []ConfigBasicClient{}
	}
	clientPairs := strings.Split(cfg.Auth.BasicClientsString, ",")
	for _, pair := range clientPairs {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			cfg.Auth.BasicClients = append(cfg.Auth.BasicClients, ConfigBasicClient{
				Username: parts[0],
				Password: parts[1],
			})
		}
	}

	return cfg, nil
}

func (c *Config) IsLocal() bool {
	return c.App.Env == EnvLocal
}

func (c *Config) IsNotLocal() bool {
	return c.App.Env == EnvDev || c.App.Env == EnvStage || c.App.Env == EnvProduction
}
