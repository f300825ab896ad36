package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	PolicyCap   = "cap"
	PolicyFloor = "floor"
)

type Config struct {
	// Link lifecycle
	Links LinksConfig `mapstructure:"links"`

	// Background reclamation
	Janitor JanitorConfig `mapstructure:"janitor"`

	// Logging
	Log LogConfig `mapstructure:"log"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Interactive shell
	Shell ShellConfig `mapstructure:"shell"`
}

type LinksConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	DefaultMaxLifetime    time.Duration `mapstructure:"default_max_lifetime"`
	DefaultMaxAccessLimit int           `mapstructure:"default_max_access_limit"`
	// LimitPolicy combines the requested access limit with DefaultMaxAccessLimit:
	// "floor" keeps the larger value, "cap" keeps the smaller one.
	LimitPolicy string `mapstructure:"limit_policy"`
	// LifetimePolicy combines the requested lifetime with DefaultMaxLifetime, same values as LimitPolicy.
	LifetimePolicy       string  `mapstructure:"lifetime_policy"`
	TokenAttempts        int     `mapstructure:"token_attempts"`
	ReissueGuardCapacity uint    `mapstructure:"reissue_guard_capacity"`
	ReissueGuardFPRate   float64 `mapstructure:"reissue_guard_fp_rate"`
	LegacyProperties     string  `mapstructure:"legacy_properties"`
}

type JanitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
	// Output is "stderr", "stdout" or a file path; the shell owns stdout.
	Output string `mapstructure:"output"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type ShellConfig struct {
	DetailedErrors bool `mapstructure:"detailed_errors"`
	OpenBrowser    bool `mapstructure:"open_browser"`
}

// Load reads configuration once at startup. An empty path searches config.yaml in . and ./config;
// a missing search result is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// SHORTLIFE_LINKS_BASE_URL overrides links.base_url, and so on.
	v.SetEnvPrefix("shortlife")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Links.LegacyProperties != "" {
		if err := applyLegacyProperties(&cfg.Links, cfg.Links.LegacyProperties); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("links.base_url", "https://short.ly/")
	v.SetDefault("links.default_max_lifetime", 24*time.Hour)
	v.SetDefault("links.default_max_access_limit", 100)
	v.SetDefault("links.limit_policy", PolicyFloor)
	v.SetDefault("links.lifetime_policy", PolicyCap)
	v.SetDefault("links.token_attempts", 8)
	v.SetDefault("links.reissue_guard_capacity", 1_000_000)
	v.SetDefault("links.reissue_guard_fp_rate", 0.001)
	v.SetDefault("links.legacy_properties", "")

	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.output", "stderr")

	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("shell.detailed_errors", true)
	v.SetDefault("shell.open_browser", true)
}

func bindEnvVars(v *viper.Viper) {
	// Short names for the three settings the link engine reads.
	v.BindEnv("links.base_url", "SHORTLIFE_BASE_URL")
	v.BindEnv("links.default_max_lifetime", "SHORTLIFE_DEFAULT_MAX_LIFETIME")
	v.BindEnv("links.default_max_access_limit", "SHORTLIFE_DEFAULT_MAX_ACCESS_LIMIT")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.encoding", "LOG_ENCODING")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}

// applyLegacyProperties reads a key=value file using the pre-YAML property names
// (base_url, default_link_lifetime_ms, max_link_access_limit). Its values win over YAML and env.
func applyLegacyProperties(cfg *LinksConfig, path string) error {
	props, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read legacy properties %s: %w", path, err)
	}

	if raw, ok := props["base_url"]; ok {
		cfg.BaseURL = raw
	}
	if raw, ok := props["default_link_lifetime_ms"]; ok {
		ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("legacy property default_link_lifetime_ms: %w", err)
		}
		cfg.DefaultMaxLifetime = time.Duration(ms) * time.Millisecond
	}
	if raw, ok := props["max_link_access_limit"]; ok {
		limit, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("legacy property max_link_access_limit: %w", err)
		}
		cfg.DefaultMaxAccessLimit = limit
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Links.Validate(); err != nil {
		return fmt.Errorf("links: %w", err)
	}
	if err := c.Janitor.Validate(); err != nil {
		return fmt.Errorf("janitor: %w", err)
	}
	if err := c.Prometheus.Validate(); err != nil {
		return fmt.Errorf("prometheus: %w", err)
	}
	return nil
}

func (c *LinksConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.DefaultMaxLifetime < 0 {
		return fmt.Errorf("default max lifetime cannot be negative")
	}
	if c.DefaultMaxAccessLimit < 0 {
		return fmt.Errorf("default max access limit cannot be negative")
	}
	if !validPolicy(c.LimitPolicy) {
		return fmt.Errorf("invalid limit policy: %q (must be one of: cap, floor)", c.LimitPolicy)
	}
	if !validPolicy(c.LifetimePolicy) {
		return fmt.Errorf("invalid lifetime policy: %q (must be one of: cap, floor)", c.LifetimePolicy)
	}
	if c.TokenAttempts < 1 {
		return fmt.Errorf("token attempts must be positive")
	}
	if c.ReissueGuardCapacity > 0 && (c.ReissueGuardFPRate <= 0 || c.ReissueGuardFPRate >= 1) {
		return fmt.Errorf("reissue guard false-positive rate must be between 0 and 1, got %f", c.ReissueGuardFPRate)
	}
	return nil
}

func (c *JanitorConfig) Validate() error {
	if c.Enabled && c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

func (c *PrometheusConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

func validPolicy(p string) bool {
	return p == PolicyCap || p == PolicyFloor
}
