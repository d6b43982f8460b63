// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // postgres | mongo | memory
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Table    string `yaml:"table"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`   // record cache ttl
	Cache    bool          `yaml:"cache"` // cache activation records (postgres only)
	Lock     bool          `yaml:"lock"`  // serialise validate per code across instances
}

type ActivationConfig struct {
	// Timezone whose calendar day is "today" for expiry checks. Default: Local.
	Timezone string `yaml:"timezone"`
}

type AdminConfig struct {
	// JWTSecret enables HS256 bearer auth on deactivate/update-expiry when set.
	JWTSecret string `yaml:"jwt_secret"`
}

type MetricsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	PoolStatsInterval time.Duration `yaml:"pool_stats_interval"`
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	Activation ActivationConfig `yaml:"activation"`
	Admin      AdminConfig      `yaml:"admin"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies env overrides and defaults,
// and validates what the selected store driver needs. An empty path skips the
// file and builds the config from env and defaults only.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg, dev)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	return nil
}

func applyDefaults(cfg *Config, dev bool) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.ShutdownGrace <= 0 {
		cfg.HTTP.ShutdownGrace = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		if dev {
			cfg.Store.Driver = DriverMemory
		} else {
			cfg.Store.Driver = DriverPostgres
		}
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = "activations"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "activation"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "activations"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Metrics.PoolStatsInterval <= 0 {
		cfg.Metrics.PoolStatsInterval = 15 * time.Second
	}
}

// Validate checks the settings the selected driver cannot run without.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for store.driver=postgres")
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required for store.driver=mongo")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if (c.Redis.Cache || c.Redis.Lock) && c.Redis.URL == "" {
		return errors.New("redis.url is required when redis.cache or redis.lock is enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves activation.timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Activation.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("activation.timezone: %w", err)
	}
	return loc, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
