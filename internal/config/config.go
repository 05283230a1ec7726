package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendBuffer        int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	RateLimitPerSec   float64       `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	Avatar            AvatarConfig  `mapstructure:"avatar" yaml:"avatar"`
}

// AvatarConfig configures the image generation upstream and its cache.
// An empty APIKey selects the static placeholder generator.
type AvatarConfig struct {
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	Model         string        `mapstructure:"model" yaml:"model"`
	Size          string        `mapstructure:"size" yaml:"size"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheSize     int           `mapstructure:"cache_size" yaml:"cache_size"`
	RedisURL      string        `mapstructure:"redis_url" yaml:"redis_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   16 << 10,
		SendBuffer:        64,
		RateLimitPerSec:   20,
		RateLimitBurst:    40,
		Avatar: AvatarConfig{
			Endpoint:      "https://api.openai.com/v1/images/generations",
			Model:         "dall-e-3",
			Size:          "1024x1024",
			Timeout:       60 * time.Second,
			MaxConcurrent: 4,
			CacheTTL:      24 * time.Hour,
			CacheSize:     512,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
}
