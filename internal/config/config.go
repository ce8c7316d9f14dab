// Package config loads daemon configuration from a YAML file and
// WARRANTY_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // devices may ship without a zoneinfo database

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// WARRANTY_ACTIVATION_ENDPOINT.
const EnvPrefix = "WARRANTY"

// LockFileName is created next to the state file.
const LockFileName = "warranty-activator.lock"

// Config holds the complete application configuration
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	Display    DisplayConfig    `mapstructure:"display"`
	Activation ActivationConfig `mapstructure:"activation"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StorageConfig defines the counter store backend
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // "bolt" or "redis"
	Path      string      `mapstructure:"path"`
	Namespace string      `mapstructure:"namespace"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// DisplayConfig selects and tunes the display-state signal
type DisplayConfig struct {
	Source string     `mapstructure:"source"` // "drm" or "gpio"
	GPIO   GPIOConfig `mapstructure:"gpio"`
	DRM    DRMConfig  `mapstructure:"drm"`
}

// GPIOConfig defines the panel-power sense line
type GPIOConfig struct {
	Chip      string        `mapstructure:"chip"`
	Line      int           `mapstructure:"line"`
	ActiveLow bool          `mapstructure:"active_low"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

// DRMConfig defines sysfs connector polling
type DRMConfig struct {
	Glob         string        `mapstructure:"glob"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ActivationConfig defines the threshold and the remote endpoint
type ActivationConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	Threshold        time.Duration `mapstructure:"threshold"`
	EvaluateInterval time.Duration `mapstructure:"evaluate_interval"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	Timezone         string        `mapstructure:"timezone"` // reference zone for activatedAt
	Brand            string        `mapstructure:"brand"`    // overrides DMI sys_vendor
	Model            string        `mapstructure:"model"`    // overrides DMI product_name
	DMIDir           string        `mapstructure:"dmi_dir"`
}

// MQTTConfig defines the optional status publisher
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"` // empty disables MQTT
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	BufferSize  int    `mapstructure:"buffer_size"`
}

// HTTPConfig defines the status server
type HTTPConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the server
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. An empty
// path searches /etc/warranty-activator and the working directory for
// warranty-activator.yaml; a missing file there is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("warranty-activator")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/warranty-activator")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/warranty-activator/state.db")
	v.SetDefault("storage.namespace", "warranty")
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.dial_timeout", "5s")

	// Display defaults
	v.SetDefault("display.source", "drm")
	v.SetDefault("display.gpio.chip", "gpiochip0")
	v.SetDefault("display.gpio.line", 17)
	v.SetDefault("display.gpio.active_low", false)
	v.SetDefault("display.gpio.debounce", "0s")
	v.SetDefault("display.drm.glob", "/sys/class/drm/card*-*")
	v.SetDefault("display.drm.poll_interval", "1s")

	// Activation defaults
	v.SetDefault("activation.endpoint", "")
	v.SetDefault("activation.threshold", "5m")
	v.SetDefault("activation.evaluate_interval", "10s")
	v.SetDefault("activation.connect_timeout", "15s")
	v.SetDefault("activation.read_timeout", "20s")
	v.SetDefault("activation.timezone", "Asia/Dhaka")
	v.SetDefault("activation.brand", "")
	v.SetDefault("activation.model", "")
	v.SetDefault("activation.dmi_dir", "/sys/class/dmi/id")

	// MQTT defaults
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "warranty-activator")
	v.SetDefault("mqtt.topic_prefix", "device/warranty")
	v.SetDefault("mqtt.buffer_size", 100)

	// HTTP defaults
	v.SetDefault("http.addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	switch cfg.Display.Source {
	case "drm":
		if cfg.Display.DRM.PollInterval <= 0 {
			return fmt.Errorf("drm poll interval must be positive")
		}
	case "gpio":
		if cfg.Display.GPIO.Line < 0 {
			return fmt.Errorf("invalid gpio line: %d", cfg.Display.GPIO.Line)
		}
	default:
		return fmt.Errorf("unknown display source: %q", cfg.Display.Source)
	}

	if cfg.Activation.Endpoint == "" {
		return fmt.Errorf("activation endpoint is required")
	}
	u, err := url.Parse(cfg.Activation.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("activation endpoint must be an absolute http(s) URL: %q", cfg.Activation.Endpoint)
	}
	if cfg.Activation.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if cfg.Activation.EvaluateInterval <= 0 {
		return fmt.Errorf("evaluate interval must be positive")
	}
	if cfg.Activation.ConnectTimeout <= 0 || cfg.Activation.ReadTimeout <= 0 {
		return fmt.Errorf("activation timeouts must be positive")
	}
	if _, err := time.LoadLocation(cfg.Activation.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Activation.Timezone, err)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", cfg.Logging.Format)
	}

	return nil
}

// Location returns the reference timezone for activation timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Activation.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.Storage.Path), LockFileName)
}
