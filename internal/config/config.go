package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for Agri-Assistant.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Classifier ClassifierConfig `json:"classifier"`
	Narrator   NarratorConfig   `json:"narrator"`
	Channels   ChannelsConfig   `json:"channels"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"` // "debug" | "info" | "warn" | "error"
}

// ClassifierConfig configures the plant-health image classification service.
type ClassifierConfig struct {
	APIBase string `json:"apiBase,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
}

// Configured reports whether a credential is available for the image path.
func (c ClassifierConfig) Configured() bool { return c.APIKey != "" }

// NarratorConfig selects and configures the text-generation provider.
type NarratorConfig struct {
	Provider  string                    `json:"provider"` // "gemini" | "openai" | custom OpenAI-compatible
	Providers map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// Active returns the configuration for the selected narration provider.
func (n NarratorConfig) Active() (string, ProviderConfig) {
	name := n.Provider
	if name == "" {
		name = "gemini"
	}
	return name, n.Providers[name]
}

// Configured reports whether a credential is available for the text path.
func (n NarratorConfig) Configured() bool {
	_, pc := n.Active()
	return pc.APIKey != ""
}

type ChannelsConfig struct {
	Web      WebConfig      `json:"web"`
	CLI      CLIConfig      `json:"cli"`
	Telegram TelegramConfig `json:"telegram"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	ParseMode string   `json:"parseMode"`
}

// DefaultConfigDir returns the default config directory (~/.agriassist).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agriassist"
	}
	return filepath.Join(home, ".agriassist")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		hasDefault := strings.Contains(match, ":-")
		defaultVal := ""
		if hasDefault && len(groups) >= 3 {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when the telegram channel is enabled")
	}

	name, pc := cfg.Narrator.Active()
	if _, known := cfg.Narrator.Providers[name]; !known {
		errs = append(errs, fmt.Sprintf("narrator.provider references unknown provider: %s", name))
	} else if name != "gemini" && name != "openai" && pc.APIBase == "" {
		// Custom providers are treated as OpenAI-compatible and need a base URL.
		errs = append(errs, fmt.Sprintf("narrator.providers.%s: apiBase is required for custom providers", name))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Sanitize returns a deep copy with credentials redacted, safe for display.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Classifier.APIKey = redact(cfg.Classifier.APIKey)
	out.Channels.Telegram.Token = redact(cfg.Channels.Telegram.Token)
	out.Narrator.Providers = make(map[string]ProviderConfig, len(cfg.Narrator.Providers))
	for name, pc := range cfg.Narrator.Providers {
		pc.APIKey = redact(pc.APIKey)
		out.Narrator.Providers[name] = pc
	}
	return &out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
