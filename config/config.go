package config

import "time"

type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Database DatabaseConfig `mapstructure:"database"`
	Backend  BackendConfig  `mapstructure:"backend"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type DiscordConfig struct {
	Token          string `mapstructure:"token"`
	GuildID        string `mapstructure:"guild_id"`
	Command        string `mapstructure:"command"`
	DevMode        bool   `mapstructure:"dev_mode"`
	RemoveCommands bool   `mapstructure:"remove_commands"`
}

type DatabaseConfig struct {
	// Path of the sqlite file; empty means next to the working directory.
	Path string `mapstructure:"path"`
}

// BackendConfig overrides the stored backend URL and credentials at startup when set.
type BackendConfig struct {
	URL  string `mapstructure:"url"`
	Auth string `mapstructure:"auth"`
}

type LLMConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	MaxTokens       int    `mapstructure:"max_tokens"`
	HistoryMessages int    `mapstructure:"history_messages"`
}

type StorageConfig struct {
	ImagesDir string `mapstructure:"images_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// Address to serve /metrics on; empty disables the endpoint.
	Address string `mapstructure:"address"`
}

type LimitsConfig struct {
	GenerationsPerMinute int           `mapstructure:"generations_per_minute"`
	OptionCacheTTL       time.Duration `mapstructure:"option_cache_ttl"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}
