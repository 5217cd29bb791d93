// Package config resolves service settings from flags, environment,
// an optional config file and .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables (INTENTGUARD_HTTP_ADDR, ...).
const EnvPrefix = "INTENTGUARD"

// Keys shared by flags, env vars and config files.
const (
	KeyPolicy        = "policy"
	KeySchemas       = "schemas"
	KeyAuditLog      = "audit_log"
	KeyApprovalsDir  = "approvals_dir"
	KeyDB            = "db"
	KeyHTTPAddr      = "http_addr"
	KeyGRPCPort      = "grpc_port"
	KeyPublicURL     = "public_url"
	KeyAllowedOrigin = "allowed_origin"
	KeyGeminiAPIKey  = "gemini_api_key"
	KeyGeminiModel   = "gemini_model"
	KeyRateRequests  = "rate_limit_requests"
	KeyRateWindow    = "rate_limit_window"
)

// Settings are the resolved runtime settings.
type Settings struct {
	PolicyPath    string `mapstructure:"policy"`
	SchemaPath    string `mapstructure:"schemas"`
	AuditLogPath  string `mapstructure:"audit_log"`
	ApprovalsDir  string `mapstructure:"approvals_dir"`
	DBPath        string `mapstructure:"db"`
	HTTPAddr      string `mapstructure:"http_addr"`
	GRPCPort      int    `mapstructure:"grpc_port"`
	PublicURL     string `mapstructure:"public_url"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	GeminiModel   string `mapstructure:"gemini_model"`

	// RateLimitRequests caps evaluation requests per client IP per
	// RateLimitWindow. Zero disables limiting.
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// Dir returns ~/.intentguard, or a relative .intentguard when the home
// directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".intentguard"
	}
	return filepath.Join(home, ".intentguard")
}

// SetDefaults registers defaults on v. Paths default under Dir().
func SetDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault(KeyPolicy, filepath.Join(dir, "policy.yaml"))
	v.SetDefault(KeySchemas, filepath.Join(dir, "schemas.yaml"))
	v.SetDefault(KeyAuditLog, filepath.Join(dir, "audit.jsonl"))
	v.SetDefault(KeyApprovalsDir, filepath.Join(dir, "approvals"))
	v.SetDefault(KeyDB, filepath.Join(dir, "intentguard.db"))
	v.SetDefault(KeyHTTPAddr, ":5001")
	v.SetDefault(KeyGRPCPort, 50051)
	v.SetDefault(KeyPublicURL, "http://localhost:5001")
	v.SetDefault(KeyAllowedOrigin, "")
	v.SetDefault(KeyGeminiModel, "gemini-2.0-flash")
	v.SetDefault(KeyRateRequests, 0)
	v.SetDefault(KeyRateWindow, time.Minute)
}

// BindEnv maps every key to INTENTGUARD_<KEY>. The Gemini key also
// accepts the conventional GEMINI_API_KEY.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindEnv(KeyGeminiAPIKey, EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
}

// LoadDotEnv loads KEY=value pairs from path into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads the optional config file into v and decodes the settings.
// An empty configFile skips file loading.
func Load(v *viper.Viper, configFile string) (Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode settings: %w", err)
	}
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return Settings{}, fmt.Errorf("config: grpc_port %d out of range", s.GRPCPort)
	}
	return s, nil
}

// New returns a viper instance with defaults and env bindings applied.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}
	return v, nil
}
