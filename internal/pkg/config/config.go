// Package config loads action settings from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override; "__" separates levels.
	EnvPrefix = "ROBOTO_"
	// FileEnv names an alternative config file.
	FileEnv = "ACTIONS_CONFIG"
	// DefaultFile is read when present.
	DefaultFile = "config.yaml"
)

// Store types.
const (
	StoreRoboto = "roboto"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	Roboto     RobotoConfig     `koanf:"roboto"`
	Invocation InvocationConfig `koanf:"invocation"`
	Advisor    AdvisorConfig    `koanf:"advisor"`
	Extract    ExtractConfig    `koanf:"extract"`
	Store      StoreConfig      `koanf:"store"`
	Ledger     LedgerConfig     `koanf:"ledger"`
	Log        LogConfig        `koanf:"log"`
	Server     ServerConfig     `koanf:"server"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// RobotoConfig locates and authenticates against the platform.
type RobotoConfig struct {
	Endpoint    string        `koanf:"endpoint"`
	APIKey      string        `koanf:"api_key"`
	OrgID       string        `koanf:"org_id"`
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}

// InvocationConfig describes what a single action run operates on.
type InvocationConfig struct {
	DatasetID  string            `koanf:"dataset_id"`
	InputDir   string            `koanf:"input_dir"`
	InputFiles []InputFileConfig `koanf:"input_files"`
	DryRun     bool              `koanf:"dry_run"`
	Parameters map[string]string `koanf:"parameters"`
}

// InputFileConfig is a file handed to the action.
type InputFileConfig struct {
	FileID       string `koanf:"file_id"`
	DatasetID    string `koanf:"dataset_id"`
	RelativePath string `koanf:"relative_path"`
	LocalPath    string `koanf:"local_path"`
}

// Parameter returns a named parameter or def when unset or blank.
func (c InvocationConfig) Parameter(name, def string) string {
	if v, ok := c.Parameters[strings.ToLower(name)]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

type AdvisorConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
	MaxAttempts  int           `koanf:"max_attempts"`
	// Encoding is the tokenizer used when logging transcript sizes.
	Encoding string `koanf:"encoding"`
}

type ExtractConfig struct {
	// LenientJSON accepts comments and trailing commas in agent output.
	LenientJSON bool `koanf:"lenient_json"`
}

// StoreConfig selects where events, summaries and tags are written.
type StoreConfig struct {
	Type   string       `koanf:"type"` // roboto, sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// LedgerConfig enables the local audit trail of runs.
type LedgerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// SlogLevel maps Level to a slog level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// AuthToken, when set, is required as a bearer token on action routes.
	AuthToken string `koanf:"auth_token"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// platformEnv maps the variables the platform sets for every invocation to
// config keys.
var platformEnv = map[string]string{
	"ROBOTO_API_KEY":          "roboto.api_key",
	"ROBOTO_ORG_ID":           "roboto.org_id",
	"ROBOTO_SERVICE_ENDPOINT": "roboto.endpoint",
	"ROBOTO_DATASET_ID":       "invocation.dataset_id",
	"ROBOTO_INPUT_DIR":        "invocation.input_dir",
	"ROBOTO_DRY_RUN":          "invocation.dry_run",
	"ROBOTO_LOG_LEVEL":        "log.level",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"roboto.endpoint":        "https://api.roboto.ai",
	"roboto.http_timeout":    "30s",
	"advisor.timeout":        "3m",
	"advisor.poll_interval":  "1s",
	"advisor.max_attempts":   3,
	"advisor.encoding":       "cl100k_base",
	"store.type":             StoreRoboto,
	"store.sqlite.path":      "./data/actions.db",
	"ledger.path":            "./data/actions.db",
	"log.level":              "info",
	"log.format":             "json",
	"server.port":            8080,
	"server.request_timeout": "15m",
	"telemetry.service_name": "roboto-ai-actions",
}

// Load reads ACTIONS_CONFIG (or config.yaml) and applies environment overrides.
func Load() (*Config, error) {
	path := os.Getenv(FileEnv)
	if path == "" {
		path = DefaultFile
	}
	return LoadFile(path)
}

// LoadFile reads path, if it exists, then applies environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Substitute environment variables in secrets
	cfg.Roboto.APIKey = substituteEnvVars(cfg.Roboto.APIKey)
	cfg.Roboto.OrgID = substituteEnvVars(cfg.Roboto.OrgID)
	cfg.Server.AuthToken = substituteEnvVars(cfg.Server.AuthToken)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Type {
	case StoreRoboto, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.type: unknown store %q", c.Store.Type))
	}
	if c.Store.Type == StoreSQLite && c.Store.SQLite.Path == "" {
		errs = append(errs, errors.New("store.sqlite.path: required for sqlite store"))
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		errs = append(errs, errors.New("ledger.path: required when the ledger is enabled"))
	}
	if c.Advisor.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("advisor.max_attempts: must be at least 1, got %d", c.Advisor.MaxAttempts))
	}
	if c.Advisor.Timeout <= 0 || c.Advisor.PollInterval <= 0 {
		errs = append(errs, errors.New("advisor.timeout and advisor.poll_interval must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func envKey(s string) string {
	if key, ok := platformEnv[s]; ok {
		return key
	}
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
