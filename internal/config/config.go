package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN             string
	Environment       string
	HTTPAddr          string
	TelegramToken     string
	RabbitMQURL       string
	AuditExchange     string
	TxMaxRetries      uint64
	TxBaseBackoff     time.Duration
	TxMaxBackoff      time.Duration
	SweepInterval     time.Duration
	MigrationsEnabled bool
	Location          *time.Location

	// EnvFileLoaded true, если конфигурация дочитана из .env
	EnvFileLoaded bool
}

// Load читает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	envLoaded := godotenv.Load(".env") == nil

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   getEnv("ENV", "development"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		AuditExchange: getEnv("AUDIT_EXCHANGE", "lab_reservations.audit"),
		EnvFileLoaded: envLoaded,
	}

	var err error
	if cfg.TxMaxRetries, err = getUint("TX_MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.TxBaseBackoff, err = getDuration("TX_BASE_BACKOFF", 20*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.TxMaxBackoff, err = getDuration("TX_MAX_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.MigrationsEnabled, err = getBool("MIGRATIONS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.TxBaseBackoff <= 0 {
		return nil, fmt.Errorf("TX_BASE_BACKOFF must be positive")
	}
	if cfg.TxMaxBackoff < cfg.TxBaseBackoff {
		return nil, fmt.Errorf("TX_MAX_BACKOFF must not be less than TX_BASE_BACKOFF")
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must not be negative")
	}

	return cfg, nil
}

// IsProduction проверяет production окружение
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getUint(key string, def uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool %q: %w", key, raw, err)
	}
	return v, nil
}
