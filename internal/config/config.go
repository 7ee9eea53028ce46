package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete TierCache configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Lockout    LockoutConfig    `yaml:"lockout"`
	Warmup     WarmupConfig     `yaml:"warmup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
}

// CacheConfig represents cache backend settings
type CacheConfig struct {
	// Backend selects the caching strategy: memory, lru, redis or multi.
	Backend     string        `yaml:"backend"`
	LRUCapacity int           `yaml:"lru_capacity"`
	DefaultTTL  time.Duration `yaml:"default_ttl"`

	// PrefixTTLs overrides the default TTL per key prefix.
	PrefixTTLs map[string]time.Duration `yaml:"prefix_ttls"`
}

// RedisConfig represents distributed tier connection settings
type RedisConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	DB          int           `yaml:"db"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	PoolSize    int           `yaml:"pool_size"`
}

// Addr returns the host:port address of the redis server.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LockoutConfig represents login attempt tracking settings
type LockoutConfig struct {
	MaxLoginAttempts int `yaml:"max_login_attempts"`

	// LockoutDuration is expressed in minutes, matching the external
	// LOCKOUT_DURATION contract.
	LockoutDuration int `yaml:"lockout_duration"`

	// SoftWindow is how long isolated failures below the threshold persist.
	SoftWindow time.Duration `yaml:"soft_window"`
}

// WarmupConfig represents cache warmup pipeline settings
type WarmupConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	Concurrency     int           `yaml:"concurrency"`
	PopularLimit    int           `yaml:"popular_limit"`
	ActiveDays      int           `yaml:"active_days"`
	ActiveLimit     int           `yaml:"active_limit"`
	SystemConfigTTL time.Duration `yaml:"system_config_ttl"`
}

// MonitoringConfig represents metrics and health check settings
type MonitoringConfig struct {
	Metrics      MetricsConfig      `yaml:"metrics"`
	HealthChecks HealthChecksConfig `yaml:"health_checks"`
}

// MetricsConfig represents Prometheus metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// HealthChecksConfig represents health check settings
type HealthChecksConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			MetricsPort: 8080,
			HealthPort:  8081,
		},
		Cache: CacheConfig{
			Backend:     "multi",
			LRUCapacity: 1000,
			DefaultTTL:  5 * time.Minute,
			PrefixTTLs: map[string]time.Duration{
				"token":   30 * time.Minute,
				"user":    time.Hour,
				"profile": time.Hour,
				"recipe":  24 * time.Hour,
				"stats":   time.Minute,
			},
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			DB:          0,
			DialTimeout: time.Second,
			PoolSize:    8,
		},
		Lockout: LockoutConfig{
			MaxLoginAttempts: 5,
			LockoutDuration:  15,
			SoftWindow:       5 * time.Minute,
		},
		Warmup: WarmupConfig{
			BatchSize:       100,
			Concurrency:     10,
			PopularLimit:    500,
			ActiveDays:      7,
			ActiveLimit:     500,
			SystemConfigTTL: time.Hour,
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Path:      "/metrics",
				Namespace: "tiercache",
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Timeout:  5 * time.Second,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables. The lockout
// settings additionally honor the bare MAX_LOGIN_ATTEMPTS and LOCKOUT_DURATION
// names used by the authentication layer's deployment.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("TIERCACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("TIERCACHE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}

	if val := os.Getenv("TIERCACHE_CACHE_BACKEND"); val != "" {
		c.Cache.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("TIERCACHE_LRU_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			c.Cache.LRUCapacity = capacity
		}
	}
	if val := os.Getenv("TIERCACHE_DEFAULT_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.DefaultTTL = duration
		}
	}

	if val := os.Getenv("TIERCACHE_REDIS_HOST"); val != "" {
		c.Redis.Host = val
	}
	if val := os.Getenv("TIERCACHE_REDIS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Redis.Port = port
		}
	}
	if val := os.Getenv("TIERCACHE_REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			c.Redis.DB = db
		}
	}
	if val := os.Getenv("TIERCACHE_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	if val := os.Getenv("MAX_LOGIN_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil {
			c.Lockout.MaxLoginAttempts = attempts
		}
	}
	if val := os.Getenv("LOCKOUT_DURATION"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil {
			c.Lockout.LockoutDuration = minutes
		}
	}

	if val := os.Getenv("TIERCACHE_WARMUP_BATCH_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.Warmup.BatchSize = size
		}
	}
	if val := os.Getenv("TIERCACHE_WARMUP_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Warmup.Concurrency = n
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validBackends := []string{"memory", "lru", "redis", "multi"}
	backendValid := false
	for _, backend := range validBackends {
		if c.Cache.Backend == backend {
			backendValid = true
			break
		}
	}
	if !backendValid {
		return fmt.Errorf("invalid cache backend: %s (must be one of: %s)",
			c.Cache.Backend, strings.Join(validBackends, ", "))
	}

	if c.Cache.LRUCapacity <= 0 {
		return fmt.Errorf("lru_capacity must be greater than 0")
	}

	if c.Lockout.MaxLoginAttempts <= 0 {
		return fmt.Errorf("max_login_attempts must be greater than 0")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return fmt.Errorf("lockout_duration must be greater than 0")
	}

	if c.Warmup.BatchSize <= 0 {
		return fmt.Errorf("warmup batch_size must be greater than 0")
	}
	if c.Warmup.Concurrency <= 0 {
		return fmt.Errorf("warmup concurrency must be greater than 0")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
