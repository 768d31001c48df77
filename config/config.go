package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	GRPC     ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Payments PaymentsConfig
	Breaker  BreakerConfig
	Redis    RedisConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	SignatureTolerance time.Duration
	HTTPTimeout        time.Duration
	APIBaseURL         string
}

type CheckoutConfig struct {
	SuccessURL      string
	CancelURL       string
	DefaultCurrency string
}

type PaymentsConfig struct {
	RetryMaxAttempts    int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	LockWait            time.Duration
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
}

// RedisConfig enables distributed locking when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type JobsConfig struct {
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN environment variable is required")
	}

	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "mysql"))
	if driver != "mysql" && driver != "sqlite" {
		return nil, errors.New("DATABASE_DRIVER must be mysql or sqlite")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payments-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Driver:          driver,
			DSN:             dsn,
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SignatureTolerance: getSecondsEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300*time.Second),
			HTTPTimeout:        getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			APIBaseURL:         getEnv("STRIPE_API_BASE_URL", ""),
		},
		Checkout: CheckoutConfig{
			SuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", ""),
			CancelURL:       getEnv("CHECKOUT_CANCEL_URL", ""),
			DefaultCurrency: strings.ToUpper(getEnv("CHECKOUT_DEFAULT_CURRENCY", "BRL")),
		},
		Payments: PaymentsConfig{
			RetryMaxAttempts:    getIntEnv("PAYMENTS_RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:      getMillisecondsEnv("PAYMENTS_RETRY_BASE_DELAY_MS", 200*time.Millisecond),
			RetryMaxDelay:       getMillisecondsEnv("PAYMENTS_RETRY_MAX_DELAY_MS", 2*time.Second),
			LockWait:            getSecondsEnv("PAYMENTS_LOCK_WAIT_SECONDS", 10*time.Second),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Breaker: BreakerConfig{
			MaxRequests:         uint32(getIntEnv("BREAKER_MAX_REQUESTS", 1)),
			Interval:            getSecondsEnv("BREAKER_INTERVAL_SECONDS", 60*time.Second),
			OpenTimeout:         getSecondsEnv("BREAKER_OPEN_TIMEOUT_SECONDS", 30*time.Second),
			ConsecutiveFailures: uint32(getIntEnv("BREAKER_CONSECUTIVE_FAILURES", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			LockTTL:  getSecondsEnv("REDIS_LOCK_TTL_SECONDS", 30*time.Second),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
