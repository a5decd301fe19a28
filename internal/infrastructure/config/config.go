package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Outbox        OutboxConfig        `mapstructure:"outbox"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_minute"`
	// JWTSecret enables bearer-token auth on the API routes when set.
	JWTSecret string     `mapstructure:"jwt_secret"`
	CORS      CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// PaymentConfig governs the payment lifecycle.
type PaymentConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	SubmissionTimeout time.Duration `mapstructure:"submission_timeout"`
	RetryBackoffBase  time.Duration `mapstructure:"retry_backoff_base"`
	RetryBackoffCap   time.Duration `mapstructure:"retry_backoff_cap"`
	ConflictRetries   int           `mapstructure:"conflict_retries"`
}

// OutboxConfig governs the event publisher loop.
type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	LeaseDuration time.Duration `mapstructure:"lease_duration"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffCap    time.Duration `mapstructure:"backoff_cap"`
	Topic         string        `mapstructure:"topic"`
}

// SchedulerConfig governs the retry coordinator.
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	ScanLimit    int           `mapstructure:"scan_limit"`
	// StuckAfter is how long a payment may sit in submitted before the
	// scheduler presumes the confirmation was lost.
	StuckAfter time.Duration `mapstructure:"stuck_after"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAYMENTS")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payments")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimitPerMin <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_per_minute must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Payment.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("payment.max_retries must be positive"))
	}
	if c.Payment.SubmissionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("payment.submission_timeout must be positive"))
	}
	if c.Payment.RetryBackoffBase <= 0 {
		errs = append(errs, fmt.Errorf("payment.retry_backoff_base must be positive"))
	}
	if c.Payment.RetryBackoffCap < c.Payment.RetryBackoffBase {
		errs = append(errs, fmt.Errorf("payment.retry_backoff_cap must be >= retry_backoff_base"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox.batch_size must be positive"))
	}
	if c.Outbox.LeaseDuration <= 0 {
		errs = append(errs, fmt.Errorf("outbox.lease_duration must be positive"))
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("outbox.poll_interval must be positive"))
	}
	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.poll_interval must be positive"))
	}
	if c.Scheduler.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.lock_ttl must be positive"))
	}
	if c.Scheduler.StuckAfter <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.stuck_after must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit_per_minute", 300)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "payments")
	v.SetDefault("database.database", "payments")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Payment lifecycle defaults
	v.SetDefault("payment.max_retries", 3)
	v.SetDefault("payment.submission_timeout", "2m")
	v.SetDefault("payment.retry_backoff_base", "1s")
	v.SetDefault("payment.retry_backoff_cap", "5m")
	v.SetDefault("payment.conflict_retries", 3)

	// Outbox publisher defaults
	v.SetDefault("outbox.batch_size", 25)
	v.SetDefault("outbox.lease_duration", "30s")
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.backoff_base", "1s")
	v.SetDefault("outbox.backoff_cap", "5m")
	v.SetDefault("outbox.topic", "payment-events")

	// Scheduler defaults
	v.SetDefault("scheduler.poll_interval", "5s")
	v.SetDefault("scheduler.lock_ttl", "30s")
	v.SetDefault("scheduler.scan_limit", 50)
	v.SetDefault("scheduler.stuck_after", "5m")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "payments-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
