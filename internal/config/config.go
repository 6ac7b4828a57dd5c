package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/qr"
)

type Config struct {
	Server    ServerConfig `json:"server"`
	Anonymous Anonymous    `json:"anonymous"`
	Tiers     []TierConfig `json:"tiers"`
	Secrets   Secrets      `json:"-"`

	limits map[models.Tier]models.TierLimits
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type Anonymous struct {
	Enabled bool   `json:"enabled"`
	Tier    string `json:"tier"`
}

type TierConfig struct {
	Name              string   `json:"name"`
	RequestsPerWindow int      `json:"requests_per_window"`
	WindowSeconds     int      `json:"window_seconds"`
	MaxBatchSize      int      `json:"max_batch_size"`
	AllowedStyles     []string `json:"allowed_styles"`
}

// Secrets come from the environment, never from the config file.
type Secrets struct {
	DatabaseDSN    string `env:"DATABASE_DSN"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
	IdentitySalt   string `env:"IDENTITY_SALT"`
	JWTSecret      string `env:"JWT_SECRET"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`
	AdminEmail     string `env:"ADMIN_EMAIL"`
	AdminPassword  string `env:"ADMIN_PASSWORD"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(&cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on a malformed tier table so a bad deploy never
// serves traffic with undefined limits.
func (c *Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("config: no tiers configured")
	}

	c.limits = make(map[models.Tier]models.TierLimits, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Name == "" {
			return fmt.Errorf("config: tier with empty name")
		}
		if _, dup := c.limits[models.Tier(t.Name)]; dup {
			return fmt.Errorf("config: duplicate tier %q", t.Name)
		}
		if t.WindowSeconds <= 0 {
			return fmt.Errorf("config: tier %q has non-positive window_seconds", t.Name)
		}
		for _, s := range t.AllowedStyles {
			if !qr.ValidStyle(s) {
				return fmt.Errorf("config: tier %q allows unknown style %q", t.Name, s)
			}
		}
		c.limits[models.Tier(t.Name)] = models.TierLimits{
			RequestsPerWindow: t.RequestsPerWindow,
			WindowSeconds:     t.WindowSeconds,
			MaxBatchSize:      t.MaxBatchSize,
			AllowedStyles:     t.AllowedStyles,
		}
	}

	if c.Anonymous.Enabled {
		if c.Anonymous.Tier == "" {
			c.Anonymous.Tier = string(models.TierAnonymous)
		}
		if _, ok := c.limits[models.Tier(c.Anonymous.Tier)]; !ok {
			return fmt.Errorf("config: anonymous tier %q not present in tier table", c.Anonymous.Tier)
		}
		if c.Secrets.IdentitySalt == "" {
			return fmt.Errorf("config: IDENTITY_SALT is required when anonymous access is enabled")
		}
	}

	if c.Secrets.WebhookSecret == "" {
		return fmt.Errorf("config: WEBHOOK_SECRET is required")
	}

	return nil
}

// Limits returns the immutable tier table built during validation.
func (c *Config) Limits() map[models.Tier]models.TierLimits {
	return c.limits
}

func (c *Config) RedisAddr() string {
	return c.Secrets.RedisAddr
}
