package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for renderbot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Channels  ChannelsConfig  `json:"channels"`
	Content   ContentConfig   `json:"content"`
	Responder ResponderConfig `json:"responder"`
	Proactive ProactiveConfig `json:"proactive"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	Slack    SlackConfig    `json:"slack,omitempty"`
	Web      WebConfig      `json:"web"`
	CLI      CLIConfig      `json:"cli"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	GuildID string `json:"guildId,omitempty"` // optional: restrict to specific guild
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"` // required for Socket Mode
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

// ContentConfig configures the content store and the YAML library it is
// seeded from on startup.
type ContentConfig struct {
	DBPath     string `json:"dbPath"`
	LibraryDir string `json:"libraryDir,omitempty"`
}

// ResponderConfig maps incoming message keywords to renderer or content
// references.
type ResponderConfig struct {
	Enabled bool            `json:"enabled"`
	Rules   []ResponderRule `json:"rules,omitempty"`
}

type ResponderRule struct {
	Keywords []string `json:"keywords"`
	Ref      string   `json:"ref"` // "#renderer" or "!contentItem"
}

// ProactiveConfig configures scheduled sends.
type ProactiveConfig struct {
	Enabled bool            `json:"enabled"`
	Tasks   []ProactiveTask `json:"tasks,omitempty"`
}

type ProactiveTask struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Ref       string         `json:"ref"`
	IntervalS int            `json:"intervalSeconds"`
	Platform  string         `json:"platform"`
	ChatID    string         `json:"chatId"`
	Data      map[string]any `json:"data,omitempty"`
	Enabled   bool           `json:"enabled"`
}

// MetricsConfig configures the Prometheus metrics endpoint served by the
// web channel.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.renderbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".renderbot"
	}
	return filepath.Join(home, ".renderbot")
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

	cfg.Content.DBPath = ExpandPath(cfg.Content.DBPath)
	cfg.Content.LibraryDir = ExpandPath(cfg.Content.LibraryDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

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
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
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

	return os.WriteFile(path, data, 0o644)
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
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}
	if cfg.Channels.Slack.Enabled && (cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "") {
		errs = append(errs, "channels.slack.botToken and appToken are required when slack is enabled")
	}

	if cfg.Content.DBPath == "" {
		errs = append(errs, "content.dbPath must be set")
	}

	for i, rule := range cfg.Responder.Rules {
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("responder.rules[%d]: keywords must be non-empty", i))
		}
		if rule.Ref == "" {
			errs = append(errs, fmt.Sprintf("responder.rules[%d]: ref must be set", i))
		}
	}

	for i, task := range cfg.Proactive.Tasks {
		if task.IntervalS < 1 {
			errs = append(errs, fmt.Sprintf("proactive.tasks[%d]: intervalSeconds must be >= 1", i))
		}
		if task.Ref == "" || task.Platform == "" || task.ChatID == "" {
			errs = append(errs, fmt.Sprintf("proactive.tasks[%d]: ref, platform, and chatId are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
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
