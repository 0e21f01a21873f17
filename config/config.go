package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`

	MongoDB struct {
		Enabled        bool   `mapstructure:"enabled"`
		URI            string `mapstructure:"uri"`
		Database       string `mapstructure:"database"`
		MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
		ArchiveBuffer  int    `mapstructure:"archive_buffer"`
		ArchiveTimeout int    `mapstructure:"archive_timeout"` // seconds
	} `mapstructure:"mongodb"`

	API struct {
		Port           int      `mapstructure:"port"`
		Host           string   `mapstructure:"host"`
		TLS            bool     `mapstructure:"tls"`
		CertFile       string   `mapstructure:"cert_file"`
		KeyFile        string   `mapstructure:"key_file"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		JWTExpiry  time.Duration `mapstructure:"jwt_expiry"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`

	Audit struct {
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"audit"`

	Recommender struct {
		CacheSize            int `mapstructure:"cache_size"`
		RecencyHalfLifeHours int `mapstructure:"recency_half_life_hours"`
	} `mapstructure:"recommender"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

func setDefaults() {
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("sqlite.path", "") // empty derives from data_dir

	viper.SetDefault("mongodb.enabled", false)
	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "aegis")
	viper.SetDefault("mongodb.max_pool_size", 10)
	viper.SetDefault("mongodb.archive_buffer", 256)
	viper.SetDefault("mongodb.archive_timeout", 10)

	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.tls", false)
	viper.SetDefault("api.allowed_origins", []string{})
	viper.SetDefault("api.rate_limit.requests_per_second", 50)
	viper.SetDefault("api.rate_limit.burst", 100)

	viper.SetDefault("auth.jwt_expiry", 15*time.Minute)
	viper.SetDefault("auth.bcrypt_cost", 12)

	viper.SetDefault("audit.queue_size", 1024)

	viper.SetDefault("recommender.cache_size", 512)
	viper.SetDefault("recommender.recency_half_life_hours", 24)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// LoadConfig reads configuration from config.yaml and the environment.
// Environment variables use the AEGIS_ prefix with underscores for
// nesting, e.g. AEGIS_AUTH_JWT_SECRET.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.SetEnvPrefix("AEGIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, defaults and env vars apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.resolvePaths()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) resolvePaths() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(c.DataDir, "aegis.db")
	} else {
		c.SQLite.Path = filepath.Clean(c.SQLite.Path)
	}
}

// Validate checks that the configuration is usable. The JWT secret is
// mandatory; there is no insecure default to fall back to.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api.port: %d", c.API.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set AEGIS_AUTH_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.JWTExpiry < time.Minute {
		return fmt.Errorf("auth.jwt_expiry must be at least 1 minute")
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 10 and 31")
	}
	if c.API.TLS && (c.API.CertFile == "" || c.API.KeyFile == "") {
		return fmt.Errorf("api.tls requires api.cert_file and api.key_file")
	}
	if c.MongoDB.Enabled && c.MongoDB.URI == "" {
		return fmt.Errorf("mongodb.enabled requires mongodb.uri")
	}
	return nil
}
