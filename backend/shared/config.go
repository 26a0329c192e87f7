package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Environment variables win over the
// optional YAML file named by SHADERLAND_CONFIG.
type Config struct {
	TableName         string        `yaml:"table_name"`
	StoreDriver       string        `yaml:"store_driver"`
	SQLitePath        string        `yaml:"sqlite_path"`
	DefaultModel      string        `yaml:"default_model"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	MaxOutputTokens   int           `yaml:"max_output_tokens"`
	APIEndpoint       string        `yaml:"api_endpoint"`
	LogGroupName      string        `yaml:"log_group_name"`
	Debug             bool          `yaml:"debug"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	MistralAPIKey   string `yaml:"mistral_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key"`
}

const (
	// DefaultGenerationTimeout bounds one backend call.
	DefaultGenerationTimeout = 120 * time.Second
	// EnvConfigFile names the optional YAML config file.
	EnvConfigFile = "SHADERLAND_CONFIG"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		TableName:         "shaders",
		StoreDriver:       StoreDynamoDB,
		SQLitePath:        "shaderland.db",
		DefaultModel:      DefaultModel,
		GenerationTimeout: DefaultGenerationTimeout,
		MaxOutputTokens:   DefaultMaxOutputTokens,
	}
}

// LoadConfig builds the configuration from defaults, the YAML file and the
// environment, in that order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv(EnvConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.TableName = GetEnv("SHADERS_TABLE", cfg.TableName)
	cfg.StoreDriver = GetEnv("SHADERLAND_STORE", cfg.StoreDriver)
	cfg.SQLitePath = GetEnv("SHADERLAND_SQLITE_PATH", cfg.SQLitePath)
	cfg.DefaultModel = GetEnv("SHADERLAND_DEFAULT_MODEL", cfg.DefaultModel)
	cfg.APIEndpoint = GetEnv("API_ENDPOINT", cfg.APIEndpoint)
	cfg.LogGroupName = GetEnv("LOG_GROUP_NAME", cfg.LogGroupName)
	cfg.AnthropicAPIKey = GetEnv(EnvAnthropicAPIKey, cfg.AnthropicAPIKey)
	cfg.MistralAPIKey = GetEnv(EnvMistralAPIKey, cfg.MistralAPIKey)
	cfg.GoogleAPIKey = GetEnv(EnvGoogleAPIKey, cfg.GoogleAPIKey)

	if v := os.Getenv("SHADERLAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("SHADERLAND_TIMEOUT: %w", err)
		}
		cfg.GenerationTimeout = d
	}
	if v := os.Getenv("SHADERLAND_MAX_OUTPUT_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("SHADERLAND_MAX_OUTPUT_TOKENS: %w", err)
		}
		cfg.MaxOutputTokens = n
	}
	if v := os.Getenv("SHADERLAND_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("SHADERLAND_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	if _, ok := Backends[cfg.DefaultModel]; !ok {
		return cfg, &UnsupportedModelError{Model: cfg.DefaultModel}
	}
	return cfg, nil
}

// Credentials returns the provider keys held by the configuration.
func (c Config) Credentials() Credentials {
	return Credentials{
		Keys: map[Provider]string{
			ProviderAnthropic: c.AnthropicAPIKey,
			ProviderMistral:   c.MistralAPIKey,
			ProviderGoogle:    c.GoogleAPIKey,
		},
	}
}
