package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore: DISPATCH_BATCH__MAX_PARTS sets batch.max_parts.
const EnvPrefix = "DISPATCH_"

// DefaultPath is loaded when no config path is given. Its absence is not
// an error.
const DefaultPath = "config.yaml"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Batch      BatchConfig      `koanf:"batch"`
	Auth       AuthConfig       `koanf:"auth"`
	Exceptions ExceptionsConfig `koanf:"exceptions"`
	Storage    StorageConfig    `koanf:"storage"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

type BatchConfig struct {
	Path           string   `koanf:"path"`
	ExecutionOrder string   `koanf:"execution_order"` // sequential, non_sequential
	MediaTypes     []string `koanf:"media_types"`
	MaxParts       int      `koanf:"max_parts"`       // 0 = unlimited
	MaxConcurrency int      `koanf:"max_concurrency"` // 0 = unbounded
}

// Order returns the parsed execution order.
func (b BatchConfig) Order() (domain.ExecutionOrder, error) {
	return domain.ParseExecutionOrder(b.ExecutionOrder)
}

type AuthConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	Name    string `koanf:"name"`
	KeyHash string `koanf:"key_hash"`
}

type ExceptionsConfig struct {
	// ErrorResponses turns unhandled faults into JSON 500 responses, so a
	// failing batch sub-request yields an item response instead of failing
	// the envelope.
	ErrorResponses bool `koanf:"error_responses"`
	// IncludeDetail copies fault messages into those responses.
	IncludeDetail bool `koanf:"include_detail"`
	// PropagateLoggerFailures attaches logger failures to the fault.
	PropagateLoggerFailures bool `koanf:"propagate_logger_failures"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
	Memory MemoryConfig `koanf:"memory"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type MemoryConfig struct {
	Capacity int `koanf:"capacity"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.timeout":          "30s",
	"batch.path":              "/api/$batch",
	"batch.execution_order":   "sequential",
	"batch.media_types":       []string{"multipart/mixed"},
	"storage.type":            "memory",
	"storage.sqlite.path":     "actiondispatch.db",
	"storage.memory.capacity": 1000,
	"telemetry.service_name":  "actiondispatch",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (DefaultPath when empty), applies
// DISPATCH_ environment overrides and defaults, and validates the result.
// An explicitly named file must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	required := path != ""
	if path == "" {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Auth.APIKeys {
		cfg.Auth.APIKeys[i].KeyHash = substituteEnvVars(cfg.Auth.APIKeys[i].KeyHash)
	}
	cfg.Storage.SQLite.Path = substituteEnvVars(cfg.Storage.SQLite.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enums.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative"))
	}
	if !strings.HasPrefix(c.Batch.Path, "/") {
		errs = append(errs, fmt.Errorf("batch.path %q must start with /", c.Batch.Path))
	}
	if _, err := c.Batch.Order(); err != nil {
		errs = append(errs, fmt.Errorf("batch.execution_order: %w", err))
	}
	if c.Batch.MaxParts < 0 || c.Batch.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("batch limits must not be negative"))
	}
	switch c.Storage.Type {
	case "sqlite", "memory", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of sqlite, memory, none", c.Storage.Type))
	}
	for i, key := range c.Auth.APIKeys {
		if key.KeyHash == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].key_hash is empty", i))
		}
	}
	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
