package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPath = "config.yaml"
	EnvPrefix   = "SD_BOT"
)

var placeholderRegex = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load reads configuration with increasing precedence: defaults, the YAML file at path (optional, with
// ${VAR:default} placeholders expanded) and SD_BOT_ environment variables. A .env file in the working
// directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if path == "" {
		path = DefaultPath
	}

	err = loadConfigFile(v, path)
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config

	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func loadConfigFile(v *viper.Viper, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = v.ReadConfig(strings.NewReader(expandEnv(string(content))))
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// expandEnv replaces ${VAR} and ${VAR:default}. Unset variables without a default are left as written.
func expandEnv(s string) string {
	return placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)

		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}

		if submatch[2] != "" {
			return submatch[3]
		}

		return match
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.command", "sd")
	v.SetDefault("discord.dev_mode", false)
	v.SetDefault("discord.remove_commands", false)

	v.SetDefault("database.path", "")

	v.SetDefault("backend.url", "")
	v.SetDefault("backend.auth", "")

	v.SetDefault("llm.base_url", "http://localhost:5000/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "local-model")
	v.SetDefault("llm.max_tokens", 200)
	v.SetDefault("llm.history_messages", 20)

	v.SetDefault("storage.images_dir", "images")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.address", "")

	v.SetDefault("limits.generations_per_minute", 6)
	v.SetDefault("limits.option_cache_ttl", "5m")

	v.SetDefault("http.timeout", "5m")
}
