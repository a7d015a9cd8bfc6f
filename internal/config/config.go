// Package config loads the YAML config file and overlays environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/util"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither a flag nor CONFIG_PATH names a file.
const DefaultConfigPath = "config.yaml"

// AppConfig carries process-level options from the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the full file-backed configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Payment  PaymentConfig  `yaml:"payment"`
	Redis    RedisConfig    `yaml:"redis"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Checkout CheckoutConfig `yaml:"checkout"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr          string        `yaml:"addr" env:"SERVER_ADDR"`
	Mode          string        `yaml:"mode" env:"GIN_MODE"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	LoginRPM      int           `yaml:"login_rpm" env:"LOGIN_RPM"`
	LoginBurst    int           `yaml:"login_burst"`
	WebUIDisabled bool          `yaml:"webui_disabled" env:"WEBUI_DISABLED"`
}

// DatabaseConfig selects the database.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// JWTConfig signs session tokens.
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET"`
	Expiry time.Duration `yaml:"expiry" env:"JWT_EXPIRY"`
}

// PaymentConfig holds the gateway credentials.
type PaymentConfig struct {
	KeyID     string `yaml:"key_id" env:"PAYMENT_KEY_ID"`
	KeySecret string `yaml:"key_secret" env:"PAYMENT_KEY_SECRET"`
	BaseURL   string `yaml:"base_url" env:"PAYMENT_BASE_URL"`
	Currency  string `yaml:"currency" env:"PAYMENT_CURRENCY"`
}

// RedisConfig enables the product cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Username string        `yaml:"username" env:"REDIS_USERNAME"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl"`
}

// AMQPConfig enables purchase events when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE"`
}

// StorageConfig selects where uploaded media goes.
type StorageConfig struct {
	Driver    string   `yaml:"driver" env:"STORAGE_DRIVER"`
	Dir       string   `yaml:"dir" env:"STORAGE_DIR"`
	PublicURL string   `yaml:"public_url" env:"STORAGE_PUBLIC_URL"`
	S3        S3Config `yaml:"s3"`
}

// S3Config configures the S3 media driver.
type S3Config struct {
	Bucket       string `yaml:"bucket" env:"S3_BUCKET"`
	Region       string `yaml:"region" env:"S3_REGION"`
	Endpoint     string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey    string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// CheckoutConfig tunes the checkout flow.
type CheckoutConfig struct {
	BuyNowURL     string        `yaml:"buy_now_url" env:"BUY_NOW_URL"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ResolveConfigPath picks the explicit path, then CONFIG_PATH, then the default.
func ResolveConfigPath(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return DefaultConfigPath
}

// ConfigExists reports whether the config file is present.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads path (a missing file is allowed), overlays the environment,
// fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errDecode := yaml.Unmarshal(data, &cfg); errDecode != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, errDecode)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := cleanenv.ReadEnv(&cfg); errEnv != nil {
		return nil, fmt.Errorf("config: read env: %w", errEnv)
	}
	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.LoginRPM <= 0 {
		c.Server.LoginRPM = 20
	}
	if c.Server.LoginBurst <= 0 {
		c.Server.LoginBurst = 5
	}
	if c.Database.DSN == "" {
		c.Database.DSN = util.UnderWritable("data/coachline.db")
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = 24 * time.Hour
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "INR"
	}
	c.Payment.Currency = strings.ToUpper(c.Payment.Currency)
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "coachline.events"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = util.UnderWritable("data/media")
	}
	if c.Storage.PublicURL == "" && c.Storage.Driver == "local" {
		c.Storage.PublicURL = "/media"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Checkout.SweepInterval <= 0 {
		c.Checkout.SweepInterval = 5 * time.Minute
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("config: storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
