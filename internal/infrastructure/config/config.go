package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	HTTP           HTTPConfig
	ERP            ERPConfig
	Reconciliation ReconciliationConfig
	Telemetry      TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the run lock
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
}

// ERPConfig holds Bling ERP API settings
type ERPConfig struct {
	APIBaseURL        string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	RequestsPerSecond float64
	RateLimitBackoff  time.Duration // fixed sleep before the single 429 retry
	TokenExpiryBuffer time.Duration // token treated as expired this long before expires_at
}

// ReconciliationConfig holds run defaults and the scheduled run slot
type ReconciliationConfig struct {
	ToleranceValue   float64
	ToleranceDays    int
	LockTTL          time.Duration
	SchedulerEnabled bool
	ScheduleHour     int
	ScheduleMinute   int
	ScheduledDryRun  bool
	CheckInterval    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
}

var (
	ErrERPClientIDRequired     = errors.New("config: erp.client_id is required")
	ErrERPClientSecretRequired = errors.New("config: erp.client_secret is required")
)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with RECON_ prefix (e.g., RECON_ERP_CLIENT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
		},
		ERP: ERPConfig{
			APIBaseURL:        v.GetString("erp.api_base_url"),
			TokenURL:          v.GetString("erp.token_url"),
			ClientID:          v.GetString("erp.client_id"),
			ClientSecret:      v.GetString("erp.client_secret"),
			Timeout:           v.GetDuration("erp.timeout"),
			RequestsPerSecond: v.GetFloat64("erp.requests_per_second"),
			RateLimitBackoff:  v.GetDuration("erp.rate_limit_backoff"),
			TokenExpiryBuffer: v.GetDuration("erp.token_expiry_buffer"),
		},
		Reconciliation: ReconciliationConfig{
			ToleranceValue:   v.GetFloat64("reconciliation.tolerance_value"),
			ToleranceDays:    v.GetInt("reconciliation.tolerance_days"),
			LockTTL:          v.GetDuration("reconciliation.lock_ttl"),
			SchedulerEnabled: v.GetBool("reconciliation.scheduler_enabled"),
			ScheduleHour:     v.GetInt("reconciliation.schedule_hour"),
			ScheduleMinute:   v.GetInt("reconciliation.schedule_minute"),
			ScheduledDryRun:  v.GetBool("reconciliation.scheduled_dry_run"),
			CheckInterval:    v.GetDuration("reconciliation.check_interval"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	// tolerance_days may legitimately be 0, so only default it when unset
	if !v.IsSet("reconciliation.tolerance_days") {
		cfg.Reconciliation.ToleranceDays = -1
	}
	if !v.IsSet("reconciliation.tolerance_value") {
		cfg.Reconciliation.ToleranceValue = -1
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "commission-reconciler"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "comissoes"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// a full run walks every order sequentially against a paced ERP
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 64 << 10 // 64KB
	}
	if cfg.ERP.APIBaseURL == "" {
		cfg.ERP.APIBaseURL = "https://www.bling.com.br/Api/v3"
	}
	if cfg.ERP.TokenURL == "" {
		cfg.ERP.TokenURL = strings.TrimRight(cfg.ERP.APIBaseURL, "/") + "/oauth/token"
	}
	if cfg.ERP.Timeout == 0 {
		cfg.ERP.Timeout = 30 * time.Second
	}
	if cfg.ERP.RequestsPerSecond == 0 {
		cfg.ERP.RequestsPerSecond = 3
	}
	if cfg.ERP.RateLimitBackoff == 0 {
		cfg.ERP.RateLimitBackoff = time.Second
	}
	if cfg.ERP.TokenExpiryBuffer == 0 {
		cfg.ERP.TokenExpiryBuffer = 5 * time.Minute
	}
	if cfg.Reconciliation.ToleranceValue < 0 {
		cfg.Reconciliation.ToleranceValue = 1.0
	}
	if cfg.Reconciliation.ToleranceDays < 0 {
		cfg.Reconciliation.ToleranceDays = 7
	}
	if cfg.Reconciliation.LockTTL == 0 {
		cfg.Reconciliation.LockTTL = 30 * time.Minute
	}
	if cfg.Reconciliation.CheckInterval == 0 {
		cfg.Reconciliation.CheckInterval = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// ERP credentials are required in every environment
	if strings.TrimSpace(c.ERP.ClientID) == "" {
		return ErrERPClientIDRequired
	}
	if strings.TrimSpace(c.ERP.ClientSecret) == "" {
		return ErrERPClientSecretRequired
	}
	if c.ERP.RequestsPerSecond < 0 {
		return fmt.Errorf("erp.requests_per_second cannot be negative")
	}

	if c.Reconciliation.ScheduleHour < 0 || c.Reconciliation.ScheduleHour > 23 {
		return fmt.Errorf("reconciliation.schedule_hour must be between 0 and 23, got %d", c.Reconciliation.ScheduleHour)
	}
	if c.Reconciliation.ScheduleMinute < 0 || c.Reconciliation.ScheduleMinute > 59 {
		return fmt.Errorf("reconciliation.schedule_minute must be between 0 and 59, got %d", c.Reconciliation.ScheduleMinute)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
