package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // scheduler timezone must load on minimal images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Scheduler    SchedulerConfig
	Dedup        DedupConfig
	Integration  IntegrationConfig
	Zones        []ZoneRangeConfig
	Pricing      PricingConfig
	Notification NotificationConfig
	Telemetry    TelemetryConfig
	Providers    map[string]ProviderConfig
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
	// PublicBaseURL is where the public tracking page is served.
	PublicBaseURL string
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
	AutoMigrate     bool
	MigrationsPath  string
}

// RedisConfig holds Redis connection settings. Leases fall back to an
// in-process store when Enabled is false or Redis cannot be reached.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int // public tracking lookups per window and client IP
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SchedulerConfig holds ingestion and status sync cadences
type SchedulerConfig struct {
	Enabled bool
	// IngestionInterval is the tick of every storefront ingestion job.
	IngestionInterval time.Duration
	// Lookback is subtracted from the last successful sync of a link.
	Lookback time.Duration
	// InitialLookback bounds the first sync of a freshly linked account.
	InitialLookback time.Duration
	SyncInterval    time.Duration
	// ClosingInterval replaces SyncInterval between ClosingStart and ClosingEnd.
	ClosingInterval time.Duration
	ClosingStart    string // HH:MM local
	ClosingEnd      string // HH:MM local, 24:00 allowed
	Timezone        string
	JobTimeout      time.Duration
	MaxTasks        int
	TaskTimeout     time.Duration
	RunHistorySize  int
}

// DedupConfig tunes duplicate detection and the ingestion lease
type DedupConfig struct {
	Window    time.Duration
	Bucket    time.Duration
	LeaseTTL  time.Duration
	LeaseWait time.Duration
}

// IntegrationConfig holds settings shared by every provider integration
type IntegrationConfig struct {
	RefreshMargin time.Duration
	OAuthStateTTL time.Duration
}

// ZoneRangeConfig is one named postal code range of the delivery zone table
type ZoneRangeConfig struct {
	Name string `mapstructure:"name"`
	From int    `mapstructure:"from"`
	To   int    `mapstructure:"to"`
}

// PricingConfig holds price list settings
type PricingConfig struct {
	CacheTTL time.Duration
}

// NotificationConfig holds the outbound mail relay settings
type NotificationConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	Sender   string
	Timeout  time.Duration
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP gRPC endpoint, e.g. localhost:4317
	Insecure          bool
	SamplingRatio     float64
	ServiceName       string
	MetricsInterval   time.Duration
	LogsEnabled       bool // also ship zap entries through the otelzap bridge
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TMS_ prefix (e.g., TMS_DATABASE_PASSWORD)
// 2. Variables from a local .env file, never overriding the environment
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("TMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:          v.GetString("app.name"),
			Env:           v.GetString("app.env"),
			Port:          v.GetString("app.port"),
			PublicBaseURL: v.GetString("app.public_base_url"),
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
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MigrationsPath:  v.GetString("database.migrations_path"),
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
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			IngestionInterval: v.GetDuration("scheduler.ingestion_interval"),
			Lookback:          v.GetDuration("scheduler.lookback"),
			InitialLookback:   v.GetDuration("scheduler.initial_lookback"),
			SyncInterval:      v.GetDuration("scheduler.sync_interval"),
			ClosingInterval:   v.GetDuration("scheduler.closing_interval"),
			ClosingStart:      v.GetString("scheduler.closing_start"),
			ClosingEnd:        v.GetString("scheduler.closing_end"),
			Timezone:          v.GetString("scheduler.timezone"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			MaxTasks:          v.GetInt("scheduler.max_tasks"),
			TaskTimeout:       v.GetDuration("scheduler.task_timeout"),
			RunHistorySize:    v.GetInt("scheduler.run_history_size"),
		},
		Dedup: DedupConfig{
			Window:    v.GetDuration("dedup.window"),
			Bucket:    v.GetDuration("dedup.bucket"),
			LeaseTTL:  v.GetDuration("dedup.lease_ttl"),
			LeaseWait: v.GetDuration("dedup.lease_wait"),
		},
		Integration: IntegrationConfig{
			RefreshMargin: v.GetDuration("integration.refresh_margin"),
			OAuthStateTTL: v.GetDuration("integration.oauth_state_ttl"),
		},
		Pricing: PricingConfig{
			CacheTTL: v.GetDuration("pricing.cache_ttl"),
		},
		Notification: NotificationConfig{
			Enabled:  v.GetBool("notification.enabled"),
			Endpoint: v.GetString("notification.endpoint"),
			APIKey:   v.GetString("notification.api_key"),
			Sender:   v.GetString("notification.sender"),
			Timeout:  v.GetDuration("notification.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Providers: loadProviders(v),
	}

	if err := v.UnmarshalKey("zones", &cfg.Zones); err != nil {
		return nil, fmt.Errorf("invalid zones table: %w", err)
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
		cfg.App.Name = "tms-backend"
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
		cfg.Database.DBName = "tms"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
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
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 60
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Actor"}
	}

	s := &cfg.Scheduler
	if s.IngestionInterval == 0 {
		s.IngestionInterval = 10 * time.Minute
	}
	if s.Lookback == 0 {
		s.Lookback = 30 * time.Minute
	}
	if s.InitialLookback == 0 {
		s.InitialLookback = 72 * time.Hour
	}
	if s.SyncInterval == 0 {
		s.SyncInterval = 5 * time.Minute
	}
	if s.ClosingInterval == 0 {
		s.ClosingInterval = time.Minute
	}
	if s.ClosingStart == "" {
		s.ClosingStart = "21:00"
	}
	if s.ClosingEnd == "" {
		s.ClosingEnd = "24:00"
	}
	if s.Timezone == "" {
		s.Timezone = "America/Argentina/Buenos_Aires"
	}
	if s.JobTimeout == 0 {
		s.JobTimeout = 5 * time.Minute
	}
	if s.MaxTasks == 0 {
		s.MaxTasks = 4
	}
	if s.TaskTimeout == 0 {
		s.TaskTimeout = 10 * time.Minute
	}
	if s.RunHistorySize == 0 {
		s.RunHistorySize = 100
	}

	if cfg.Dedup.Window == 0 {
		cfg.Dedup.Window = 2 * time.Minute
	}
	if cfg.Dedup.Bucket == 0 {
		cfg.Dedup.Bucket = 4 * time.Minute
	}
	if cfg.Dedup.LeaseTTL == 0 {
		cfg.Dedup.LeaseTTL = 30 * time.Second
	}
	if cfg.Dedup.LeaseWait == 0 {
		cfg.Dedup.LeaseWait = 10 * time.Second
	}
	if cfg.Integration.RefreshMargin == 0 {
		cfg.Integration.RefreshMargin = 5 * time.Minute
	}
	if cfg.Integration.OAuthStateTTL == 0 {
		cfg.Integration.OAuthStateTTL = 15 * time.Minute
	}
	if len(cfg.Zones) == 0 {
		cfg.Zones = []ZoneRangeConfig{
			{Name: "CABA", From: 1000, To: 1499},
			{Name: "GBA Norte", From: 1600, To: 1669},
			{Name: "GBA Oeste", From: 1700, To: 1779},
			{Name: "GBA Sur", From: 1800, To: 1899},
		}
	}
	if cfg.Pricing.CacheTTL == 0 {
		cfg.Pricing.CacheTTL = 5 * time.Minute
	}
	if cfg.Notification.Timeout == 0 {
		cfg.Notification.Timeout = 10 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = time.Minute
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	for code, p := range cfg.Providers {
		cfg.Providers[code] = p.withDefaults()
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

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if _, err := ParseClock(c.Scheduler.ClosingStart); err != nil {
		return fmt.Errorf("scheduler.closing_start: %w", err)
	}
	if _, err := ParseClock(c.Scheduler.ClosingEnd); err != nil {
		return fmt.Errorf("scheduler.closing_end: %w", err)
	}
	if c.Dedup.Window < 0 || c.Dedup.Bucket < c.Dedup.Window {
		return fmt.Errorf("dedup.bucket (%s) must be at least dedup.window (%s)", c.Dedup.Bucket, c.Dedup.Window)
	}
	for _, z := range c.Zones {
		if strings.TrimSpace(z.Name) == "" || z.From > z.To {
			return fmt.Errorf("zones: invalid range %q %d-%d", z.Name, z.From, z.To)
		}
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Notification.Enabled && c.Notification.Endpoint == "" {
		return fmt.Errorf("notification.endpoint is required when notifications are enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// Location returns the scheduler timezone. validate guarantees it loads.
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is the
// end of the day.
func ParseClock(value string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", value)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
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

// Addr returns the Redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
