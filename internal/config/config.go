package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Plan     PlanConfig     `mapstructure:"plan"`
	AutoSave AutoSaveConfig `mapstructure:"autosave"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "mongo" or "memory"
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	// Multi-document transactions for clone. Needs a replica set.
	Transactions bool `mapstructure:"transactions"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// JWTConfig defines JWT specific configuration. Tokens are issued elsewhere;
// only the signing secret is needed to verify them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// AdminConfig guards the clone route. TokenHash is a bcrypt hash of the
// admin token; an empty hash disables the route.
type AdminConfig struct {
	TokenHash string `mapstructure:"token_hash"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Stdout bool   `mapstructure:"stdout"`
	JSON   bool   `mapstructure:"json"`
}

type SentryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// RedisConfig enables the auto-save rate limit when Addr is set.
type RedisConfig struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	AutoSavePerMinute int    `mapstructure:"autosave_per_minute"`
}

type PlanConfig struct {
	DefaultTemplate string `mapstructure:"default_template"`
}

type AutoSaveConfig struct {
	MaxRetries     uint64        `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Defaults and env vars only
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "plan_tracker")
	v.SetDefault("database.transactions", false)

	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", "15m")

	// Every key needs a default for AutomaticEnv to pick it up on Unmarshal.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("admin.token_hash", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.json", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.autosave_per_minute", 120)

	v.SetDefault("plan.default_template", "classic")

	v.SetDefault("autosave.max_retries", 5)
	v.SetDefault("autosave.initial_backoff", "200ms")
	v.SetDefault("autosave.max_backoff", "5s")

	v.SetDefault("tracing.enabled", false)
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Plan.DefaultTemplate == "" {
		return errors.New("plan.default_template must be set")
	}
	if c.AutoSave.InitialBackoff <= 0 || c.AutoSave.MaxBackoff < c.AutoSave.InitialBackoff {
		return errors.New("autosave backoff must be positive and max_backoff >= initial_backoff")
	}
	return nil
}
