package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig holds the configuration for the mail source connection.
type MailboxConfig struct {
	// Provider selects the adapter: "gmail" or "imap".
	Provider string `mapstructure:"provider" yaml:"provider"`

	// CredentialsPath points at the Gmail OAuth credentials.json file.
	// Only used by the gmail provider.
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`

	// Host, Port, and Username configure the IMAP connection. The
	// password lives in the system keyring, never in this file.
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// MaxResults caps how many unread messages one sync fetches.
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
}

// EngineConfig holds settings for the text-generation endpoint.
type EngineConfig struct {
	// BaseURL is the root URL of the generation engine
	// (e.g., "http://localhost:11434").
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Model is the model name sent with every generate request.
	Model string `mapstructure:"model" yaml:"model"`

	// Temperature is passed through in the request options.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// TimeoutSec bounds a single generate call. Deadline expiry is an
	// expected outcome that routes to the fallback result, so this can
	// be generous without risking a stuck sync.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// TriageConfig holds the tunables of the triage pipeline itself.
type TriageConfig struct {
	// PromptBudget is the max character budget for the triage prompt body.
	PromptBudget int `mapstructure:"prompt_budget" yaml:"prompt_budget"`

	// SummaryBudget is the max character budget for the summary prompt body.
	SummaryBudget int `mapstructure:"summary_budget" yaml:"summary_budget"`

	// SummaryThreshold is the cleaned-body length above which a message
	// additionally gets summarized.
	SummaryThreshold int `mapstructure:"summary_threshold" yaml:"summary_threshold"`

	// Workers bounds how many messages are processed concurrently within
	// one batch. 1 reproduces the sequential reference behavior.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum zap level: debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// File is the log file path; empty means the default location under
	// the config directory.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Triage  TriageConfig  `mapstructure:"triage" yaml:"triage"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// StorePath is the sqlite database location; empty means the default
	// location under the config directory.
	StorePath string `mapstructure:"store_path" yaml:"store_path"`
}

// ConfigDir returns the directory holding the config file, database, and
// log file, located at ~/.config/mailtriage.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailtriage")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mailbox: MailboxConfig{
			Provider:   "imap",
			Port:       "993",
			MaxResults: 25,
		},
		Engine: EngineConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1",
			Temperature: 0.2,
			TimeoutSec:  90,
		},
		Triage: TriageConfig{
			PromptBudget:     1800,
			SummaryBudget:    4000,
			SummaryThreshold: 1200,
			Workers:          1,
		},
		Display: DisplayConfig{
			PollIntervalSec: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("mailbox.provider", "imap")
	v.SetDefault("mailbox.port", "993")
	v.SetDefault("mailbox.max_results", 25)
	v.SetDefault("engine.base_url", "http://localhost:11434")
	v.SetDefault("engine.model", "llama3.1")
	v.SetDefault("engine.temperature", 0.2)
	v.SetDefault("engine.timeout_sec", 90)
	v.SetDefault("triage.prompt_budget", 1800)
	v.SetDefault("triage.summary_budget", 4000)
	v.SetDefault("triage.summary_threshold", 1200)
	v.SetDefault("triage.workers", 1)
	v.SetDefault("display.poll_interval_sec", 300)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Triage.Workers < 1 {
		cfg.Triage.Workers = 1
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mailbox", cfg.Mailbox)
	v.Set("engine", cfg.Engine)
	v.Set("triage", cfg.Triage)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("store_path", cfg.StorePath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
