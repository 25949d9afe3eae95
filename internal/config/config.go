package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DevelopmentSecret is only accepted outside production.
	DevelopmentSecret = "development-insecure-secret-change-me"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// PushNone disables the push backend; sessions fall back to local sync.
	PushNone      = ""
	PushWebsocket = "websocket"
	PushRedis     = "redis"
)

// Config is the process configuration for the API server.
type Config struct {
	Port          string         `mapstructure:"port"`
	Environment   string         `mapstructure:"environment"`
	PublicBaseURL string         `mapstructure:"public_base_url"`
	Database      DatabaseConfig `mapstructure:"database"`
	JWT           JWTConfig      `mapstructure:"jwt"`
	Push          PushConfig     `mapstructure:"push"`
	Log           LogConfig      `mapstructure:"log"`
	Cache         CacheConfig    `mapstructure:"cache"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PushConfig struct {
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

type CacheConfig struct {
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
	ViewWindow time.Duration `mapstructure:"view_window"`
}

// SetDefaults registers every key so that AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8008")
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("public_base_url", "http://localhost:8008")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "treebio.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("jwt.secret", DevelopmentSecret)
	v.SetDefault("jwt.issuer", "treebio-api")
	v.SetDefault("jwt.audience", "treebio-clients")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("push.backend", PushWebsocket)
	v.SetDefault("push.redis_url", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.profile_ttl", time.Minute)
	v.SetDefault("cache.view_window", 30*time.Minute)
}

// BindFlags declares the server flags and binds them to viper keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.String("port", "8008", "HTTP listen port")
	flags.String("environment", EnvDevelopment, "development or production")
	flags.String("database-driver", DriverSQLite, "sqlite or postgres")
	flags.String("database-dsn", "treebio.db", "database file (sqlite) or DSN (postgres)")
	flags.String("push-backend", PushWebsocket, `push backend: "", websocket or redis`)
	flags.String("redis-url", "", "redis URL for the redis push backend")
	flags.String("log-dir", "", "directory for rotated log files")

	bindings := map[string]string{
		"port":            "port",
		"environment":     "environment",
		"database.driver": "database-driver",
		"database.dsn":    "database-dsn",
		"push.backend":    "push-backend",
		"push.redis_url":  "redis-url",
		"log.dir":         "log-dir",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// New returns a viper instance reading TREEBIO_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("TREEBIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// TREEBIO_PUSH_BACKEND= must be able to switch the push backend off.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return v
}

// Load reads an optional config file and decodes the configuration.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	switch c.Push.Backend {
	case PushNone, PushWebsocket:
	case PushRedis:
		if c.Push.RedisURL == "" {
			errs = append(errs, errors.New("push.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown push backend %q", c.Push.Backend))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.IsProduction() && c.JWT.Secret == DevelopmentSecret {
		errs = append(errs, errors.New("jwt secret must be set in production"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// PushConfigured reports whether a push backend is selected.
func (c *Config) PushConfigured() bool {
	return c.Push.Backend != PushNone
}
