package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Quota     QuotaConfig
	Health    HealthConfig
	Analytics AnalyticsConfig
	Notify    NotifyConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type CacheConfig struct {
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
	// Consecutive backend failures before the cache is marked unavailable.
	FailureThreshold uint32
	// How long the cache stays unavailable before a trial request is let through.
	RetryAfter   time.Duration
	OpTimeout    time.Duration
	UsersTTL     time.Duration
	LogsTTL      time.Duration
	AnalyticsTTL time.Duration
	AlertsTTL    time.Duration
}

type QuotaConfig struct {
	Window        time.Duration
	DefaultLimit  int
	AdminLimit    int
	TestIdentity  string
	MemoryBackend bool
}

type HealthConfig struct {
	PendingBacklogThreshold int64
	LargeBalanceThreshold   int64
	SuspendedThreshold      int64
	BannedThreshold         int64
	// Pending actions older than this are reported as stale.
	StalePendingAge   time.Duration
	MemoryLimitBytes  uint64
	MemoryHighRatio   float64
	MemoryMediumRatio float64
}

type AnalyticsConfig struct {
	DefaultPeriod string
}

type NotifyConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
}

// Global provides access to the loaded configuration.
var Global *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_version", "v1.0.0")
	v.SetDefault("app_port", "3000")
	v.SetDefault("app_debug", false)
	v.SetDefault("app_env", "development")
	v.SetDefault("app_basic_auth", "")
	v.SetDefault("app_base_path", "")
	v.SetDefault("app_trusted_proxies", "")
	v.SetDefault("app_cors_allowed_origins", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "storages/admin.db")

	v.SetDefault("valkey_enabled", false)
	v.SetDefault("valkey_address", "localhost:6379")
	v.SetDefault("valkey_password", "")
	v.SetDefault("valkey_db", 0)
	v.SetDefault("valkey_key_prefix", "azadmin:")
	v.SetDefault("cache_failure_threshold", 3)
	v.SetDefault("cache_retry_after", "30s")
	v.SetDefault("cache_op_timeout", "250ms")
	v.SetDefault("cache_users_ttl", "120s")
	v.SetDefault("cache_logs_ttl", "60s")
	v.SetDefault("cache_analytics_ttl", "180s")
	v.SetDefault("cache_alerts_ttl", "30s")

	v.SetDefault("quota_window", "15m")
	v.SetDefault("quota_default_limit", 100)
	v.SetDefault("quota_admin_limit", 200)
	v.SetDefault("quota_test_identity", "")

	v.SetDefault("health_pending_backlog_threshold", 50)
	v.SetDefault("health_large_balance_threshold", 1000000)
	v.SetDefault("health_suspended_threshold", 10)
	v.SetDefault("health_banned_threshold", 5)
	v.SetDefault("health_stale_pending_age", "168h")
	v.SetDefault("health_memory_limit_bytes", 512*1024*1024)
	v.SetDefault("health_memory_high_ratio", 0.9)
	v.SetDefault("health_memory_medium_ratio", 0.75)

	v.SetDefault("analytics_default_period", "7d")

	v.SetDefault("notify_workers", 4)
	v.SetDefault("notify_queue_size", 500)
	v.SetDefault("notify_max_attempts", 3)
	v.SetDefault("notify_base_delay", "200ms")
}

// LoadConfig reads configuration from the environment (and an optional .env
// file) through viper. Cobra flags bound to the global viper instance take
// precedence over both.
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.GetViper()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Version:            v.GetString("app_version"),
			Port:               v.GetString("app_port"),
			Debug:              v.GetBool("app_debug"),
			Environment:        v.GetString("app_env"),
			BasicAuth:          splitList(v.GetString("app_basic_auth")),
			BasePath:           v.GetString("app_base_path"),
			TrustedProxies:     splitList(v.GetString("app_trusted_proxies")),
			CorsAllowedOrigins: splitList(v.GetString("app_cors_allowed_origins")),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("db_driver"),
			Host:     v.GetString("db_host"),
			Port:     v.GetInt("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
		},
		Cache: CacheConfig{
			ValkeyEnabled:    v.GetBool("valkey_enabled"),
			ValkeyAddress:    v.GetString("valkey_address"),
			ValkeyPassword:   v.GetString("valkey_password"),
			ValkeyDB:         v.GetInt("valkey_db"),
			ValkeyKeyPrefix:  v.GetString("valkey_key_prefix"),
			FailureThreshold: v.GetUint32("cache_failure_threshold"),
			RetryAfter:       v.GetDuration("cache_retry_after"),
			OpTimeout:        v.GetDuration("cache_op_timeout"),
			UsersTTL:         v.GetDuration("cache_users_ttl"),
			LogsTTL:          v.GetDuration("cache_logs_ttl"),
			AnalyticsTTL:     v.GetDuration("cache_analytics_ttl"),
			AlertsTTL:        v.GetDuration("cache_alerts_ttl"),
		},
		Quota: QuotaConfig{
			Window:       v.GetDuration("quota_window"),
			DefaultLimit: v.GetInt("quota_default_limit"),
			AdminLimit:   v.GetInt("quota_admin_limit"),
			TestIdentity: v.GetString("quota_test_identity"),
		},
		Health: HealthConfig{
			PendingBacklogThreshold: v.GetInt64("health_pending_backlog_threshold"),
			LargeBalanceThreshold:   v.GetInt64("health_large_balance_threshold"),
			SuspendedThreshold:      v.GetInt64("health_suspended_threshold"),
			BannedThreshold:         v.GetInt64("health_banned_threshold"),
			StalePendingAge:         v.GetDuration("health_stale_pending_age"),
			MemoryLimitBytes:        v.GetUint64("health_memory_limit_bytes"),
			MemoryHighRatio:         v.GetFloat64("health_memory_high_ratio"),
			MemoryMediumRatio:       v.GetFloat64("health_memory_medium_ratio"),
		},
		Analytics: AnalyticsConfig{
			DefaultPeriod: v.GetString("analytics_default_period"),
		},
		Notify: NotifyConfig{
			Workers:     v.GetInt("notify_workers"),
			QueueSize:   v.GetInt("notify_queue_size"),
			MaxAttempts: v.GetInt("notify_max_attempts"),
			BaseDelay:   v.GetDuration("notify_base_delay"),
		},
	}
	cfg.Quota.MemoryBackend = !cfg.Cache.ValkeyEnabled

	Global = cfg
	return cfg, nil
}
