package config

import (
	"time"

	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/resilience"
	"github.com/transconnect-go/pkg/telemetry"
)

func (c LoggerConfig) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		AddCaller:  c.AddCaller,
		Stacktrace: c.Stacktrace,
	}
}

func (c DatabaseConfig) ToDatabaseConfig() database.Config {
	return database.Config{
		DSN:                c.DSN(),
		MaxOpenConns:       c.MaxOpenConns,
		MaxIdleConns:       c.MaxIdleConns,
		LogQueries:         c.LogQueries,
		SlowQueryThreshold: time.Duration(c.SlowQueryMs) * time.Millisecond,
	}
}

func (c EventsConfig) ToKafkaConfig() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers: c.Brokers,
		Topic:   c.Topic,
	}
}

// ToTelemetryConfig tags spans with the deployment environment.
func (c TelemetryConfig) ToTelemetryConfig(env string) telemetry.Config {
	return telemetry.Config{
		Enabled:      c.Enabled,
		JaegerURL:    c.JaegerURL,
		ServiceName:  c.ServiceName,
		Environment:  env,
		SamplingRate: c.SamplingRate,
	}
}

func (c BathroomConfig) ToCircuitBreakerConfig() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig("bathrooms")
	if c.BreakerTimeout > 0 {
		cfg.Timeout = time.Duration(c.BreakerTimeout) * time.Second
	}
	if c.BreakerFailures > 0 {
		cfg.MinRequests = c.BreakerFailures
	}
	return cfg
}
