// Package config loads MARGO CRM runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the assistant and transport.
const (
	DefaultListen          = ":8000"
	DefaultBaseURL         = "https://api.deepseek.com/v1"
	DefaultModel           = "deepseek-chat"
	DefaultTemperature     = 0.7
	DefaultModelTimeout    = 60 * time.Second
	DefaultMaxIterations   = 5
	DefaultToolOutputRunes = 8000
	DefaultTokenTTL        = 30 * time.Minute
	DefaultSessionQueue    = 4
)

// Config holds runtime configuration. Secrets (API key, seed password) are read
// from the environment or from the config file; never committed.
type Config struct {
	// Listen is the HTTP bind address (e.g. ":8000").
	Listen string `yaml:"listen"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	// APIKey authenticates against the model backend. Empty puts the
	// assistant into its degraded "unavailable" mode.
	APIKey string `yaml:"deepseek_api_key"`
	// BaseURL is the OpenAI-compatible endpoint root (".../v1").
	BaseURL     string  `yaml:"deepseek_base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// ModelTimeout bounds a single chat-completions call.
	ModelTimeout time.Duration `yaml:"model_timeout"`

	// MaxIterations caps tool rounds per turn.
	MaxIterations int `yaml:"max_iterations"`
	// ToolOutputMaxRunes caps tool output fed back to the model (0 = no truncation).
	ToolOutputMaxRunes int `yaml:"tool_output_max_runes"`

	// TokenTTL is the lifetime of access tokens issued by /api/auth/login.
	TokenTTL time.Duration `yaml:"token_ttl"`
	// SessionQueueSize is how many utterances a chat session buffers while a turn runs.
	SessionQueueSize int `yaml:"session_queue_size"`
	// CORSOrigins restricts browser origins for REST and websocket (empty = any).
	CORSOrigins []string `yaml:"cors_origins"`

	// SeedOwner creates the first owner account when none exists.
	SeedOwner OwnerSeed `yaml:"seed_owner"`
}

// OwnerSeed describes the bootstrap owner account.
type OwnerSeed struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
}

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given: ./config.yaml, ~/.config/margocrm/config.yaml,
// /etc/margocrm/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "margocrm", "config.yaml"))
	}
	return append(paths, "/etc/margocrm/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise returns the first existing search path, or "" when none exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Listen:             DefaultListen,
		DBPath:             "margocrm.db",
		LogLevel:           "info",
		LogFormat:          "text",
		BaseURL:            DefaultBaseURL,
		Model:              DefaultModel,
		Temperature:        DefaultTemperature,
		ModelTimeout:       DefaultModelTimeout,
		MaxIterations:      DefaultMaxIterations,
		ToolOutputMaxRunes: DefaultToolOutputRunes,
		TokenTTL:           DefaultTokenTTL,
		SessionQueueSize:   DefaultSessionQueue,
	}
}

// Load builds the configuration. Priority: defaults < environment < config file.
// path may be empty, in which case the default search paths are tried and a
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	applyEnv(cfg)

	found, err := FindConfig(path)
	if err != nil {
		return nil, err
	}
	if found != "" {
		data, err := os.ReadFile(found)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", found, err)
		}
		// Expand ${VAR} references so secrets can stay in the environment.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", found, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise break the loop or the server.
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("model_timeout must be positive, got %s", c.ModelTimeout)
	}
	if c.SessionQueueSize <= 0 {
		return fmt.Errorf("session_queue_size must be positive, got %d", c.SessionQueueSize)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("deepseek_base_url must not be empty")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.APIKey, "DEEPSEEK_API_KEY")
	setString(&cfg.BaseURL, "DEEPSEEK_BASE_URL")
	setString(&cfg.Model, "MARGOCRM_MODEL")
	setString(&cfg.DBPath, "MARGOCRM_DB_PATH")
	setString(&cfg.Listen, "MARGOCRM_LISTEN")
	setString(&cfg.LogLevel, "MARGOCRM_LOG_LEVEL")
	setString(&cfg.LogFormat, "MARGOCRM_LOG_FORMAT")
	setString(&cfg.SeedOwner.Email, "MARGOCRM_OWNER_EMAIL")
	setString(&cfg.SeedOwner.Password, "MARGOCRM_OWNER_PASSWORD")
	setString(&cfg.SeedOwner.FullName, "MARGOCRM_OWNER_NAME")
	if v := os.Getenv("MARGOCRM_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if v := os.Getenv("MARGOCRM_TOOL_OUTPUT_MAX_RUNES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ToolOutputMaxRunes = n
		}
	}
	if v := os.Getenv("MARGOCRM_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ModelTimeout = d
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
