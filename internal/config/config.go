// Package config loads service configuration from an optional YAML file
// and SEARCH_ANALYTICS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the search analytics services.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration for the query/publish API.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// MetricsConfig holds the consumer's ops endpoint configuration.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx-compatible connection string.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// KafkaConfig holds broker addresses and topic names.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	SearchEvents    string        `mapstructure:"search_events_topic"`
	SearchEventsDLT string        `mapstructure:"search_events_dlt_topic"`
	StatsUpdates    string        `mapstructure:"stats_updates_topic"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
	CommitTimeout   time.Duration `mapstructure:"commit_timeout"`
	MinBytes        int           `mapstructure:"min_bytes"`
	MaxBytes        int           `mapstructure:"max_bytes"`
}

// ConsumerConfig tunes the ingestion worker.
type ConsumerConfig struct {
	// FetchBackoff is the pause after a fetch error before retrying.
	FetchBackoff time.Duration `mapstructure:"fetch_backoff"`
}

// OutboxConfig tunes the outbox drain loop.
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("metrics.port", 9090)

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "search_analytics")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "search_analytics")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.search_events_topic", "search-events")
	v.SetDefault("kafka.search_events_dlt_topic", "search-events-dlt")
	v.SetDefault("kafka.stats_updates_topic", "search-stats-updates")
	v.SetDefault("kafka.consumer_group", "search-analytics")
	v.SetDefault("kafka.commit_timeout", "10s")
	v.SetDefault("kafka.min_bytes", 1)
	v.SetDefault("kafka.max_bytes", 10*1024*1024)

	v.SetDefault("consumer.fetch_backoff", "1s")

	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.batch_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	v.SetEnvPrefix("SEARCH_ANALYTICS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
