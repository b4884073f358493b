package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Config struct {
	Env      string
	LogLevel string
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Store    StoreConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Checkout CheckoutConfig
	Dash     DashboardConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Addr string
}

type StoreConfig struct {
	Driver   string
	MySQLDSN string
}

// RedisConfig with an empty Addr means sessions and identity changes stay in
// process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

type CheckoutConfig struct {
	RatePerSecond float64
	Burst         int
}

type DashboardConfig struct {
	VendorRecentOrders int
	AdminRecentOrders  int
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, newConfigError(".env", err.Error())
	}

	var env envParser
	cfg := &Config{
		Env:      getEnv("APP_ENV", "local"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: env.getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		GRPC: GRPCConfig{
			Addr: getEnv("GRPC_ADDR", ":50051"),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", StoreMySQL)),
			MySQLDSN: getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/chopnow?parseTime=true"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       env.getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(getEnv("KAFKA_BROKERS", "")),
			OrderTopic: getEnv("ORDER_TOPIC", "order-events"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			SessionTTL: env.getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		},
		Checkout: CheckoutConfig{
			RatePerSecond: env.getEnvAsFloat("CHECKOUT_RATE", 1),
			Burst:         env.getEnvAsInt("CHECKOUT_BURST", 3),
		},
		Dash: DashboardConfig{
			VendorRecentOrders: env.getEnvAsInt("VENDOR_RECENT_ORDERS", 5),
			AdminRecentOrders:  env.getEnvAsInt("ADMIN_RECENT_ORDERS", 10),
		},
	}

	if env.err != nil {
		return nil, env.err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return newConfigError("JWT_SECRET", "must not be empty")
	}
	switch cfg.Store.Driver {
	case StoreMySQL:
		if cfg.Store.MySQLDSN == "" {
			return newConfigError("MYSQL_DSN", "required when STORE_DRIVER=mysql")
		}
	case StoreMemory:
	default:
		return newConfigError("STORE_DRIVER", "must be mysql or memory")
	}
	if cfg.Checkout.RatePerSecond <= 0 || cfg.Checkout.Burst < 1 {
		return newConfigError("CHECKOUT_RATE", "rate and burst must be positive")
	}
	if cfg.Dash.VendorRecentOrders < 1 || cfg.Dash.AdminRecentOrders < 1 {
		return newConfigError("VENDOR_RECENT_ORDERS", "recent order limits must be positive")
	}
	return nil
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Reason
}

func newConfigError(field, reason string) ConfigError {
	return ConfigError{
		Field:  field,
		Reason: reason,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// envParser reads typed values, keeping the first parse failure. Unset or
// empty variables take the default.
type envParser struct {
	err error
}

func (p *envParser) fail(key, raw, kind string) {
	if p.err == nil {
		p.err = newConfigError(key, fmt.Sprintf("%q is not a valid %s", raw, kind))
	}
}

func (p *envParser) getEnvAsInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, "integer")
		return defaultValue
	}
	return value
}

func (p *envParser) getEnvAsFloat(key string, defaultValue float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, "number")
		return defaultValue
	}
	return value
}

func (p *envParser) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, "duration")
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
