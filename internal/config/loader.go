package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "PARTYROOM"
	envConfigDefaultPath = "PARTYROOM_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
//
// Two conventional variables are honoured as fallbacks: PORT when
// PARTYROOM_ADDR is unset, and OPENAI_API_KEY when no avatar key is configured.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	applyFallbacks(&cfg)
	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("send_buffer", cfg.SendBuffer)
	v.SetDefault("rate_limit_per_sec", cfg.RateLimitPerSec)
	v.SetDefault("rate_limit_burst", cfg.RateLimitBurst)

	// Nested keys need explicit defaults, otherwise AutomaticEnv cannot
	// surface PARTYROOM_AVATAR_* through Unmarshal.
	v.SetDefault("avatar.endpoint", cfg.Avatar.Endpoint)
	v.SetDefault("avatar.api_key", cfg.Avatar.APIKey)
	v.SetDefault("avatar.model", cfg.Avatar.Model)
	v.SetDefault("avatar.size", cfg.Avatar.Size)
	v.SetDefault("avatar.timeout", cfg.Avatar.Timeout)
	v.SetDefault("avatar.max_concurrent", cfg.Avatar.MaxConcurrent)
	v.SetDefault("avatar.cache_ttl", cfg.Avatar.CacheTTL)
	v.SetDefault("avatar.cache_size", cfg.Avatar.CacheSize)
	v.SetDefault("avatar.redis_url", cfg.Avatar.RedisURL)
}

func applyFallbacks(cfg *Config) {
	if _, set := os.LookupEnv(envPrefix + "_ADDR"); !set {
		if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
			cfg.Addr = ":" + port
		}
	}
	if cfg.Avatar.APIKey == "" {
		cfg.Avatar.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
