// Package config loads and validates the relay server configuration from
// defaults, an optional config.yaml, and PYCHAT_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the server configuration, including the listen address,
// WebSocket security controls, message store location, and logging settings.
type Config struct {
	ServerAddr      string        `mapstructure:"server_addr"       validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"  validate:"gt=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"  validate:"gt=0"`
	RateLimitRefill time.Duration `mapstructure:"rate_limit_refill" validate:"gt=0"`
	DBPath          string        `mapstructure:"db_path"           validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"  validate:"gt=0"`
	LogLevel        string        `mapstructure:"log_level"         validate:"oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format"        validate:"oneof=text json"`
}

// Load reads configuration in order of precedence: defaults, config.yaml in
// the working directory (optional), then environment variables prefixed with
// PYCHAT_ (e.g. PYCHAT_SERVER_ADDR). The result is validated before use.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PYCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8765")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_message_size", 4096)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("rate_limit_refill", time.Second)
	v.SetDefault("db_path", "chat.db")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}
