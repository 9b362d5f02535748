// Package config loads bridge settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces structured environment overrides. Nested keys use a
// double underscore, e.g. BRIDGE_UPTIMEROBOT__API_KEY.
const EnvPrefix = "BRIDGE_"

// DefaultFile is read when present; its absence is not an error.
const DefaultFile = "config.yaml"

// ErrMissingAPIKey is returned when no monitoring API key is configured.
var ErrMissingAPIKey = errors.New("uptimerobot api key is not configured")

// legacyEnv maps the flat variable names of earlier deployments.
var legacyEnv = map[string]string{
	"UPTIMEROBOT_API_KEY": "uptimerobot.api_key",
	"DEFAULT_SCHEME":      "webhook.scheme",
	"ASANA_PATH_TOKEN":    "webhook.path_token",
}

var defaults = map[string]any{
	"server.port":                        8080,
	"server.request_timeout":             60 * time.Second,
	"log.level":                          "info",
	"uptimerobot.timeout":                20 * time.Second,
	"uptimerobot.conn_limit":             20,
	"uptimerobot.block_private_networks": true,
	"webhook.domain_field":               "домен",
	"webhook.scheme":                     "https",
	"monitor.interval":                   300,
	"monitor.http_method":                "POST",
	"monitor.timeout":                    30,
	"monitor.grace_period":               0,
	"reconcile.lock":                     LockLocal,
	"redis.lock_ttl":                     30 * time.Second,
	"telemetry.enabled":                  false,
}

// Lock modes for reconcile.lock.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	UptimeRobot UptimeRobotConfig `koanf:"uptimerobot"`
	Webhook     WebhookConfig     `koanf:"webhook"`
	Monitor     MonitorConfig     `koanf:"monitor"`
	Reconcile   ReconcileConfig   `koanf:"reconcile"`
	Redis       RedisConfig       `koanf:"redis"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port" validate:"min=0,max=65535"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"min=0"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type UptimeRobotConfig struct {
	APIKey               string        `koanf:"api_key"`
	BaseURL              string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout              time.Duration `koanf:"timeout" validate:"gt=0"`
	ConnLimit            int           `koanf:"conn_limit" validate:"gt=0"`
	BlockPrivateNetworks bool          `koanf:"block_private_networks"`
}

type WebhookConfig struct {
	// PathToken is the secret URL segment. When empty every webhook call is rejected.
	PathToken   string `koanf:"path_token"`
	DomainField string `koanf:"domain_field" validate:"required"`
	Scheme      string `koanf:"scheme" validate:"required,alpha"`
}

type MonitorConfig struct {
	Interval    int    `koanf:"interval" validate:"gt=0"`
	HTTPMethod  string `koanf:"http_method" validate:"required"`
	Timeout     int    `koanf:"timeout" validate:"gt=0"`
	GracePeriod int    `koanf:"grace_period" validate:"min=0"`
}

type ReconcileConfig struct {
	Lock string `koanf:"lock" validate:"oneof=none local redis"`
}

type RedisConfig struct {
	URL     string        `koanf:"url"`
	LockTTL time.Duration `koanf:"lock_ttl" validate:"gt=0"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load reads DefaultFile if it exists, then the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultFile, false)
}

// LoadFile reads path, then applies legacy and BRIDGE_ environment overrides
// in that order. A missing file is an error only when required is set.
func LoadFile(path string, required bool) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil || required {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Webhook.Scheme = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(cfg.Webhook.Scheme), "://"))
	if cfg.Webhook.Scheme == "" {
		cfg.Webhook.Scheme = "https"
	}
	cfg.Reconcile.Lock = strings.ToLower(cfg.Reconcile.Lock)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UptimeRobot.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q check", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Reconcile.Lock == LockRedis && c.Redis.URL == "" {
		return errors.New("invalid config: reconcile.lock=redis requires redis.url")
	}
	return nil
}
