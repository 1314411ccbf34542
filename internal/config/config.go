// Package config provides configuration management for ecoscore.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultWorkerPort is the default port shared by HTTP and gRPC.
	DefaultWorkerPort = 37780

	// DefaultWorkerHost binds to loopback unless configured otherwise.
	DefaultWorkerHost = "127.0.0.1"

	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 1 << 20

	// EnvPrefix prefixes every setting key and environment variable.
	EnvPrefix = "ECOSCORE_"
)

// Config holds the application configuration.
//
// Every field is keyed by its ECOSCORE_* name both in the settings file and
// in the environment. Environment variables win over the file.
type Config struct {
	// Worker settings
	WorkerHost   string `mapstructure:"ECOSCORE_WORKER_HOST" json:"worker_host"`
	WorkerPort   int    `mapstructure:"ECOSCORE_WORKER_PORT" json:"worker_port"`
	MaxBodyBytes int64  `mapstructure:"ECOSCORE_MAX_BODY_BYTES" json:"max_body_bytes"`
	GRPCEnabled  bool   `mapstructure:"ECOSCORE_GRPC_ENABLED" json:"grpc_enabled"`

	// Anonymous quick predictions are rate limited per client.
	QuickRateLimit float64 `mapstructure:"ECOSCORE_QUICK_RATE_LIMIT" json:"quick_rate_limit"` // requests per second
	QuickRateBurst int     `mapstructure:"ECOSCORE_QUICK_RATE_BURST" json:"quick_rate_burst"`

	// Database settings: a DSN selects PostgreSQL, otherwise SQLite at DBPath.
	DatabaseDSN string `mapstructure:"ECOSCORE_DATABASE_DSN" json:"-"`
	DBPath      string `mapstructure:"ECOSCORE_DB_PATH" json:"db_path"`
	MaxConns    int    `mapstructure:"ECOSCORE_MAX_CONNS" json:"max_conns"`

	// Model artifacts
	ModelDir         string `mapstructure:"ECOSCORE_MODEL_DIR" json:"model_dir"`
	ModelFile        string `mapstructure:"ECOSCORE_MODEL_FILE" json:"model_file"`
	FeatureNamesFile string `mapstructure:"ECOSCORE_FEATURE_NAMES_FILE" json:"feature_names_file"`

	// Auth: an empty secret disables token verification (development only).
	JWTSecret string `mapstructure:"ECOSCORE_JWT_SECRET" json:"-"`
	JWTIssuer string `mapstructure:"ECOSCORE_JWT_ISSUER" json:"jwt_issuer"`

	// Observability
	LogLevel       string `mapstructure:"ECOSCORE_LOG_LEVEL" json:"log_level"`
	LogFormat      string `mapstructure:"ECOSCORE_LOG_FORMAT" json:"log_format"` // console or json
	MetricsEnabled bool   `mapstructure:"ECOSCORE_METRICS_ENABLED" json:"metrics_enabled"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (ECOSCORE_DATA_DIR or ~/.ecoscore).
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ecoscore")
}

// DBPath returns the default SQLite database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "ecoscore.db")
}

// ModelDir returns the default model artifact directory.
func ModelDir() string {
	return filepath.Join(DataDir(), "model")
}

// SettingsPath returns the settings file in use: settings.yaml, settings.yml
// or settings.json in the data directory. It falls back to settings.json when
// none exists.
func SettingsPath() string {
	dir := DataDir()
	for _, name := range []string{"settings.yaml", "settings.yml", "settings.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dir, "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "ECOSCORE_WORKER_PORT": 37780,
  "ECOSCORE_LOG_LEVEL": "info",
  "ECOSCORE_METRICS_ENABLED": true
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerHost:     DefaultWorkerHost,
		WorkerPort:     DefaultWorkerPort,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		GRPCEnabled:    true,
		QuickRateLimit: 5,
		QuickRateBurst: 10,
		DBPath:         DBPath(),
		MaxConns:       4,
		ModelDir:       ModelDir(),
		LogLevel:       "info",
		LogFormat:      "console",
		MetricsEnabled: true,
	}
}

// Load loads the settings file from the data directory and applies
// environment overrides on top of the defaults.
func Load() (*Config, error) {
	return LoadFrom(SettingsPath())
}

// LoadFrom is Load with an explicit settings file. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	settings, err := readSettings(path)
	if err != nil {
		return nil, err
	}
	if err := decode(settings, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := decode(environment(), cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkerPort <= 0 || c.WorkerPort > 65535 {
		errs = append(errs, fmt.Errorf("ECOSCORE_WORKER_PORT out of range: %d", c.WorkerPort))
	}
	if c.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("ECOSCORE_MAX_CONNS must be positive: %d", c.MaxConns))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("ECOSCORE_MAX_BODY_BYTES must be positive: %d", c.MaxBodyBytes))
	}
	if c.QuickRateLimit <= 0 || c.QuickRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("quick rate limit and burst must be positive: %g/%d", c.QuickRateLimit, c.QuickRateBurst))
	}
	if c.DatabaseDSN == "" && c.DBPath == "" {
		errs = append(errs, errors.New("either ECOSCORE_DATABASE_DSN or ECOSCORE_DB_PATH is required"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("ECOSCORE_LOG_FORMAT must be console or json: %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// AuthEnabled reports whether bearer tokens are verified.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.WorkerHost, c.WorkerPort)
}

func readSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	settings := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &settings)
	default:
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

// environment collects ECOSCORE_* variables.
func environment() map[string]any {
	env := make(map[string]any)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, EnvPrefix) {
			env[key] = value
		}
	}
	return env
}

// decode overlays settings onto cfg. Only present keys change cfg; string
// values are converted to the field types.
func decode(settings map[string]any, cfg *Config) error {
	if len(settings) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(settings)
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
