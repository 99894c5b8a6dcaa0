package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// REVIVE_SERVER_PORT, REVIVE_DATABASE_URL, REVIVE_ENGINE_MAX_RETRIES.
const envPrefix = "REVIVE"

// Load reads configuration from an optional config.yaml (working directory
// or /etc/revive) and from environment variables. Environment variables take
// precedence over values from the config file. Returns a populated Config or
// an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/revive")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("provider.model_name", "gemini-2.0-flash-preview-image-generation")
	v.SetDefault("provider.output_dir", "./results")

	v.SetDefault("engine.tick_interval_seconds", 30)
	v.SetDefault("engine.max_concurrent_tasks", 3)
	v.SetDefault("engine.max_retries", 5)
	v.SetDefault("engine.max_task_age_hours", 24)
	v.SetDefault("engine.failed_cooldown_minutes", 10)
	v.SetDefault("engine.stuck_threshold_minutes", 10)
	v.SetDefault("engine.per_call_timeout_minutes", 3)
	v.SetDefault("engine.backoff_multiplier", 2.0)
	v.SetDefault("engine.foreground_budget_minutes", 3)
	v.SetDefault("engine.foreground_initial_delay_secs", 1)
	v.SetDefault("engine.foreground_max_delay_secs", 30)
	v.SetDefault("engine.background_budget_minutes", 15)
	v.SetDefault("engine.background_initial_delay_secs", 5)
	v.SetDefault("engine.background_max_delay_secs", 120)

	v.SetDefault("pricing.default_cost", 100)
	v.SetDefault("pricing.costs", map[string]int64{
		"restore":        100,
		"stylize":        150,
		"era_transform":  150,
		"poet_composite": 200,
		"generate":       100,
	})

	v.SetDefault("notifier.timeout_seconds", 5)
}
