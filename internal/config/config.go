package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Scheduling SchedulingConfig
	RateLimit  RateLimitConfig
	Logger     LoggerConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// SchedulingConfig tunes the booking engine.
type SchedulingConfig struct {
	// IncludeCancelledInConflict makes cancelled appointments block their
	// slot. Off by default so cancelling frees the slot for rebooking.
	IncludeCancelledInConflict bool `mapstructure:"include_cancelled_in_conflict"`
	// CompletionGrace delays auto-completion past the session end so a
	// running-late consult is not cut off the second its hour elapses.
	CompletionGrace time.Duration `mapstructure:"completion_grace"`
	// SweepInterval is how often the background sweeper settles elapsed
	// confirmed appointments.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", time.Second)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("scheduling.include_cancelled_in_conflict", false)
	viper.SetDefault("scheduling.completion_grace", 15*time.Minute)
	viper.SetDefault("scheduling.sweep_interval", 5*time.Minute)
	viper.SetDefault("ratelimit.requests_per_second", 50)
	viper.SetDefault("ratelimit.burst", 100)
	viper.SetDefault("logger.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
