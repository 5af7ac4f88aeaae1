package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound   = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing = errors.New("config file is missing version field")
	ErrConfigVersionTooNew  = errors.New("config file version is newer than supported")
)

// CurrentBotVersion is the config schema version this binary understands.
const CurrentBotVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config schema.
	Version     int         `koanf:"version"`
	Debug       Debug       `koanf:"debug"`
	Discord     Discord     `koanf:"discord"`
	Perspective Perspective `koanf:"perspective"`
	NER         NER         `koanf:"ner"`
	Thresholds  Thresholds  `koanf:"thresholds"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Suffix appended to "group-" and "group-mod-" channel names to select
	// the channels this deployment operates in.
	ChannelSuffix string `koanf:"channel_suffix"`
}

// Perspective contains toxicity scoring API configuration.
type Perspective struct {
	// Base URL for the API.
	Endpoint string `koanf:"endpoint"`
	// API key for authentication.
	APIKey string `koanf:"api_key"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Maximum concurrent scoring requests.
	MaxConcurrent int64 `koanf:"max_concurrent"`
}

// NER contains entity extraction service configuration.
type NER struct {
	// Base URL for the extraction service.
	Endpoint string `koanf:"endpoint"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
}

// Thresholds contains abuse-detection tuning knobs. Zero values fall back
// to the ledger package defaults.
type Thresholds struct {
	// Per-attribute score at which a message counts as flagged.
	Score float64 `koanf:"score"`
	// Accumulated entity score that triggers a targeting alert.
	EntityScore float64 `koanf:"entity_score"`
	// Flagged message count that triggers a per-user alert.
	UserMessages int `koanf:"user_messages"`
	// TF-IDF weight above which a token is surfaced as a keyword.
	Keyword float64 `koanf:"keyword"`
}

// LoadConfig loads the configuration from the first bot.toml found in the
// search paths. Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".warden",
		homeDir + "/.warden/config",
		"/etc/warden/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/bot.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: bot.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Version == 0 {
		return nil, "", fmt.Errorf("%w: bot.toml", ErrConfigVersionMissing)
	}

	if config.Version > CurrentBotVersion {
		return nil, "", fmt.Errorf("%w: bot.toml (got: %d, supported: %d)",
			ErrConfigVersionTooNew, config.Version, CurrentBotVersion)
	}

	return &config, usedConfigPath, nil
}
