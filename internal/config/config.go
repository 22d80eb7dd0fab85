package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Balancing BalancingConfig `yaml:"balancing"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds the roster-event consumer configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// BalancingConfig holds team generation policy
type BalancingConfig struct {
	TeamCount      int           `yaml:"team_count"`
	RatingMin      float64       `yaml:"rating_min"`
	RatingMax      float64       `yaml:"rating_max"`
	LockTTL        time.Duration `yaml:"lock_ttl"`
	LockRetryDelay time.Duration `yaml:"lock_retry_delay"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// AlertsConfig holds capacity and retention policy for alerts
type AlertsConfig struct {
	LowCapacityThreshold int    `yaml:"low_capacity_threshold"`
	RetentionDays        int    `yaml:"retention_days"`
	PurgeSchedule        string `yaml:"purge_schedule"`
	PurgeEnabled         bool   `yaml:"purge_enabled"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects policies the services cannot run with
func (c *Config) Validate() error {
	if c.Balancing.TeamCount < 2 {
		return fmt.Errorf("balancing.team_count must be at least 2, got %d", c.Balancing.TeamCount)
	}
	if c.Balancing.RatingMin >= c.Balancing.RatingMax {
		return fmt.Errorf("balancing.rating_min (%v) must be below rating_max (%v)", c.Balancing.RatingMin, c.Balancing.RatingMax)
	}
	if c.Alerts.RetentionDays < 0 {
		return fmt.Errorf("alerts.retention_days must not be negative")
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 20
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "match-roster-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "team-balancer"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 50
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Balancing defaults
	if c.Balancing.TeamCount == 0 {
		c.Balancing.TeamCount = 2
	}
	if c.Balancing.RatingMin == 0 && c.Balancing.RatingMax == 0 {
		c.Balancing.RatingMin = 1
		c.Balancing.RatingMax = 10
	}
	if c.Balancing.LockTTL == 0 {
		c.Balancing.LockTTL = 10 * time.Second
	}
	if c.Balancing.LockRetryDelay == 0 {
		c.Balancing.LockRetryDelay = 250 * time.Millisecond
	}
	if c.Balancing.CacheTTL == 0 {
		c.Balancing.CacheTTL = 15 * time.Minute
	}

	// Alert defaults
	if c.Alerts.LowCapacityThreshold == 0 {
		c.Alerts.LowCapacityThreshold = 5
	}
	if c.Alerts.RetentionDays == 0 {
		c.Alerts.RetentionDays = 30
	}
	if c.Alerts.PurgeSchedule == "" {
		c.Alerts.PurgeSchedule = "@daily"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Kafka.Enabled = true
	cfg.Alerts.PurgeEnabled = true
	return cfg
}
