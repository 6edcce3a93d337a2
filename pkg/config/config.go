package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

// channelNamePattern restricts the NOTIFY channel to identifier-safe names;
// the channel is spliced into trigger DDL and must never need quoting.
var channelNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config represents the chatsync service configuration.
type Config struct {
	SourceDatabase DatabaseConfig `mapstructure:"source_database"`
	ChatDatabase   DatabaseConfig `mapstructure:"chat_database"`
	Sync           SyncConfig     `mapstructure:"sync"`
	Retry          RetryConfig    `mapstructure:"retry"`
	Realtime       RealtimeConfig `mapstructure:"realtime"`
	Health         HealthConfig   `mapstructure:"health"`
	Server         ServerConfig   `mapstructure:"server"`
	Logging        LoggingConfig  `mapstructure:"logging"`
	Shutdown       ShutdownConfig `mapstructure:"shutdown"`
}

// DatabaseConfig contains connection settings for one of the two stores.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// SyncConfig contains batch reconciliation settings.
type SyncConfig struct {
	// Interval is the scheduling cadence of the windowed batch pass.
	Interval time.Duration `mapstructure:"interval"`
	// LookbackMultiplier sizes the trailing rescan window as a multiple of
	// Interval so consecutive windows overlap. Minimum 1.
	LookbackMultiplier int `mapstructure:"lookback_multiplier"`
	// PageSize bounds each pagination query.
	PageSize int `mapstructure:"page_size"`
	// VerifyTolerance is the accepted absolute count difference between the
	// two stores before verify reports inconsistency.
	VerifyTolerance int64 `mapstructure:"verify_tolerance"`
}

// RetryConfig contains exponential backoff settings for store operations.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// RealtimeConfig contains change feed listener settings.
type RealtimeConfig struct {
	Channel              string        `mapstructure:"channel"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	MinReconnectInterval time.Duration `mapstructure:"min_reconnect_interval"`
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`
}

// HealthConfig contains thresholds for the health evaluation.
type HealthConfig struct {
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	MaxSyncAge             time.Duration `mapstructure:"max_sync_age"`
}

// ServerConfig contains HTTP server settings for the operational surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings for the engine.
type ShutdownConfig struct {
	// Timeout bounds the wait for an in-flight batch pass on shutdown.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("source_database.host", "localhost")
	viper.SetDefault("source_database.port", 5432)
	viper.SetDefault("source_database.ssl_mode", "disable")
	viper.SetDefault("source_database.pool_size", 10)
	viper.SetDefault("chat_database.host", "localhost")
	viper.SetDefault("chat_database.port", 5432)
	viper.SetDefault("chat_database.ssl_mode", "disable")
	viper.SetDefault("chat_database.pool_size", 10)

	// Sync defaults
	viper.SetDefault("sync.interval", "1m")
	viper.SetDefault("sync.lookback_multiplier", 3)
	viper.SetDefault("sync.page_size", 100)
	viper.SetDefault("sync.verify_tolerance", 5)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_delay", "1s")
	viper.SetDefault("retry.max_delay", "30s")
	viper.SetDefault("retry.multiplier", 2.0)

	// Realtime defaults
	viper.SetDefault("realtime.channel", "chatsync_user_changes")
	viper.SetDefault("realtime.max_reconnect_attempts", 10)
	viper.SetDefault("realtime.min_reconnect_interval", "1s")
	viper.SetDefault("realtime.max_reconnect_interval", "1m")

	// Health defaults
	viper.SetDefault("health.max_consecutive_failures", 5)
	viper.SetDefault("health.max_sync_age", "3m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.SourceDatabase.Host == "" {
		return fmt.Errorf("source_database.host is required")
	}
	if config.SourceDatabase.Database == "" {
		return fmt.Errorf("source_database.database is required")
	}
	if config.ChatDatabase.Host == "" {
		return fmt.Errorf("chat_database.host is required")
	}
	if config.ChatDatabase.Database == "" {
		return fmt.Errorf("chat_database.database is required")
	}
	if config.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if config.Sync.LookbackMultiplier < 1 {
		return fmt.Errorf("sync.lookback_multiplier must be at least 1")
	}
	if config.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	if config.Realtime.Channel != "" && !channelNamePattern.MatchString(config.Realtime.Channel) {
		return fmt.Errorf("realtime.channel must match %s", channelNamePattern)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the store.
// The change feed listener uses it for its dedicated LISTEN connection.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
