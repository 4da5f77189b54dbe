// Package config loads the gateway configuration once at startup.
//
// Values come from an optional YAML file, then DEPLOYWATCH_* environment
// variables (double underscore separates nesting levels). The returned
// Config is treated as immutable and passed explicitly to every component.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/deploywatch/internal/signature"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DEPLOYWATCH_"

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Email     EmailConfig     `koanf:"email"`
	Backend   BackendConfig   `koanf:"backend"`
	Outbound  OutboundConfig  `koanf:"outbound"`
	Dedupe    DedupeConfig    `koanf:"dedupe"`
	Storage   StorageConfig   `koanf:"storage"`
	Events    EventsConfig    `koanf:"events"`
	Alert     AlertConfig     `koanf:"alert"`
	Admin     AdminConfig     `koanf:"admin"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// WebhookConfig configures the inbound endpoint and its verification.
type WebhookConfig struct {
	Path      string `koanf:"path"`
	Secret    string `koanf:"secret"`     // whsec_... shared secret
	EventType string `koanf:"event_type"` // the only type that is forwarded
	// AllowUnsigned skips verification when Secret is empty. Only for
	// deployments behind something that already authenticated the traffic.
	AllowUnsigned bool          `koanf:"allow_unsigned"`
	Tolerance     time.Duration `koanf:"tolerance"` // 0 disables the timestamp check
	MaxBodyBytes  int64         `koanf:"max_body_bytes"`
}

// EmailConfig configures the email provider REST API used for enrichment.
type EmailConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// BackendConfig configures the execution backend.
type BackendConfig struct {
	Endpoint   string        `koanf:"endpoint"`
	ProjectID  string        `koanf:"project_id"`
	FunctionID string        `koanf:"function_id"`
	APIKey     string        `koanf:"api_key"` // Optional server key
	Timeout    time.Duration `koanf:"timeout"`
}

type OutboundConfig struct {
	BlockPrivateNetworks bool `koanf:"block_private_networks"`
}

// DedupeConfig configures the delivery-id ledger.
type DedupeConfig struct {
	Driver     string        `koanf:"driver"` // none, memory, sqlite, redis
	TTL        time.Duration `koanf:"ttl"`
	MaxEntries int           `koanf:"max_entries"`
	SQLitePath string        `koanf:"sqlite_path"`
	Redis      RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Prefix   string        `koanf:"prefix"`
	Timeout  time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type EventsConfig struct {
	Driver string      `koanf:"driver"` // direct, kafka, none
	Kafka  KafkaConfig `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// AlertConfig configures failure notifications.
type AlertConfig struct {
	Driver     string        `koanf:"driver"` // none, log, ses
	Sender     string        `koanf:"sender"`
	Recipients []string      `koanf:"recipients"`
	Timeout    time.Duration `koanf:"timeout"`
	SES        SESConfig     `koanf:"ses"`
}

type SESConfig struct {
	Region          string `koanf:"region"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

type AdminConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.request_timeout":  30 * time.Second,
	"server.shutdown_timeout": 30 * time.Second,
	"log.level":               "info",
	"webhook.path":            "/webhooks/inbound",
	"webhook.event_type":      "email.received",
	"webhook.tolerance":       5 * time.Minute,
	"webhook.max_body_bytes":  int64(1 << 20),
	"email.base_url":          "https://api.resend.com",
	"email.timeout":           3 * time.Second,
	"backend.timeout":         8 * time.Second,
	"dedupe.driver":           "none",
	"dedupe.ttl":              24 * time.Hour,
	"dedupe.max_entries":      8192,
	"dedupe.sqlite_path":      "./data/ledger.db",
	"dedupe.redis.prefix":     "deploywatch:delivery",
	"dedupe.redis.timeout":    2 * time.Second,
	"storage.type":            "none",
	"storage.sqlite.path":     "./data/deliveries.db",
	"events.driver":           "direct",
	"events.kafka.topic":      "webhook-deliveries",
	"alert.driver":            "none",
	"alert.timeout":           10 * time.Second,
	"telemetry.service_name":  "deploywatch-gateway",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty; a missing file is fine),
// applies environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.substituteSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load yields with no file and no
// environment. It is not valid until the backend and secret are filled in.
func Default() *Config {
	k := koanf.New(".")
	for key, value := range defaults {
		_ = k.Set(key, value)
	}
	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return &cfg
}

func (c *Config) substituteSecrets() {
	for _, s := range []*string{
		&c.Webhook.Secret,
		&c.Email.APIKey,
		&c.Backend.APIKey,
		&c.Dedupe.Redis.Password,
		&c.Alert.SES.AccessKeyID,
		&c.Alert.SES.SecretAccessKey,
	} {
		*s = substituteEnvVars(*s)
	}
}

// Validate checks required values and enum fields.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Webhook.Path, "/") {
		errs = append(errs, fmt.Errorf("webhook.path must start with /"))
	}
	if c.Webhook.EventType == "" {
		errs = append(errs, fmt.Errorf("webhook.event_type is required"))
	}
	if c.Webhook.Secret == "" {
		if !c.Webhook.AllowUnsigned {
			errs = append(errs, fmt.Errorf("webhook.secret is required unless webhook.allow_unsigned is set"))
		}
	} else if _, err := signature.ParseSecret(c.Webhook.Secret); err != nil {
		errs = append(errs, fmt.Errorf("webhook.secret: %w", err))
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("webhook.max_body_bytes must be positive"))
	}

	if c.Backend.Endpoint == "" {
		errs = append(errs, fmt.Errorf("backend.endpoint is required"))
	}
	if c.Backend.ProjectID == "" {
		errs = append(errs, fmt.Errorf("backend.project_id is required"))
	}
	if c.Backend.FunctionID == "" {
		errs = append(errs, fmt.Errorf("backend.function_id is required"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be positive"))
	}

	switch c.Dedupe.Driver {
	case "none", "memory", "sqlite":
	case "redis":
		if c.Dedupe.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("dedupe.redis.addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("dedupe.driver %q is not one of none, memory, sqlite, redis", c.Dedupe.Driver))
	}

	switch c.Storage.Type {
	case "none", "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of none, memory, sqlite", c.Storage.Type))
	}

	switch c.Events.Driver {
	case "none", "direct":
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "" {
			errs = append(errs, fmt.Errorf("events.kafka.brokers and events.kafka.topic are required for the kafka driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.driver %q is not one of none, direct, kafka", c.Events.Driver))
	}

	switch c.Alert.Driver {
	case "none", "log":
	case "ses":
		if c.Alert.Sender == "" || len(c.Alert.Recipients) == 0 {
			errs = append(errs, fmt.Errorf("alert.sender and alert.recipients are required for the ses driver"))
		}
		if c.Alert.SES.Region == "" {
			errs = append(errs, fmt.Errorf("alert.ses.region is required for the ses driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("alert.driver %q is not one of none, log, ses", c.Alert.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Unsigned reports whether signature verification is skipped.
func (c *Config) Unsigned() bool {
	return c.Webhook.Secret == "" && c.Webhook.AllowUnsigned
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
