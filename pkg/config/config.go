package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Bathrooms BathroomConfig  `mapstructure:"bathrooms"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogQueries   bool   `mapstructure:"log_queries"`
	SlowQueryMs  int    `mapstructure:"slow_query_ms"`
}

type AuthConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	ExpiryHours int    `mapstructure:"expiry_hours"` // 0 issues credentials without exp
	Issuer      string `mapstructure:"issuer"`
	BcryptCost  int    `mapstructure:"bcrypt_cost"`
}

type BathroomConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	Timeout          int     `mapstructure:"timeout"`
	DefaultLatitude  float64 `mapstructure:"default_lat"`
	DefaultLongitude float64 `mapstructure:"default_lng"`
	PerPage          int     `mapstructure:"per_page"`
	BreakerTimeout   int     `mapstructure:"breaker_timeout"`
	BreakerFailures  uint32  `mapstructure:"breaker_min_requests"`
}

type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	JaegerURL    string  `mapstructure:"jaeger_url"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddCaller  bool   `mapstructure:"add_caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`
}

// DefaultSecretKey is only acceptable outside production.
const DefaultSecretKey = "secret-dev"

func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/transconnect")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TRANSCONNECT")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env vars still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(v, &config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)

	v.SetDefault("server.port", 3001)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 30)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "transconnect")
	v.SetDefault("database.password", "transconnect")
	v.SetDefault("database.name", "transconnect")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.log_queries", false)
	v.SetDefault("database.slow_query_ms", 200)

	v.SetDefault("auth.secret_key", DefaultSecretKey)
	v.SetDefault("auth.expiry_hours", 0)
	v.SetDefault("auth.issuer", "transconnect")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("bathrooms.base_url", "https://www.refugerestrooms.org/api/v1/restrooms")
	v.SetDefault("bathrooms.timeout", 10)
	v.SetDefault("bathrooms.default_lat", 40.776676)
	v.SetDefault("bathrooms.default_lng", -73.971321)
	v.SetDefault("bathrooms.per_page", 50)
	v.SetDefault("bathrooms.breaker_timeout", 30)
	v.SetDefault("bathrooms.breaker_min_requests", 5)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "transconnect-events")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.jaeger_url", "http://localhost:14268/api/traces")
	v.SetDefault("telemetry.service_name", "transconnect-api")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.add_caller", true)
	v.SetDefault("logger.stacktrace", false)
}

func overrideFromEnv(v *viper.Viper, cfg *Config) {
	// Platform-style variables without the prefix
	for _, key := range []string{"PORT", "SECRET_KEY", "DATABASE_URL", "NODE_ENV"} {
		_ = v.BindEnv(key, key)
	}

	if port := v.GetInt("PORT"); port != 0 {
		cfg.Server.Port = port
	}
	if secret := v.GetString("SECRET_KEY"); secret != "" {
		cfg.Auth.SecretKey = secret
	}
	if url := v.GetString("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if env := v.GetString("NODE_ENV"); env != "" && cfg.Env == EnvDevelopment {
		cfg.Env = env
	}
	if brokers := v.GetString("EVENTS_BROKERS"); brokers != "" {
		cfg.Events.Brokers = strings.Split(brokers, ",")
	}
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return errors.New("auth.secret_key must be set")
	}
	if c.IsProduction() && c.Auth.SecretKey == DefaultSecretKey {
		return errors.New("auth.secret_key must be changed in production")
	}
	if c.Auth.ExpiryHours < 0 {
		return errors.New("auth.expiry_hours must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// DSN prefers an explicit connection URL over the individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c *BathroomConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
