package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile is Load with an explicit config file path. An empty path
// falls back to looking for config.yaml in the working directory.
func LoadWithFile(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults for everything that has a sensible one; secrets and
	// connection strings must come from the environment.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("sidecar.base_url", "http://localhost:3500")
	v.SetDefault("sidecar.pubsub_name", "pubsub")
	v.SetDefault("sidecar.state_store_name", "statestore")
	v.SetDefault("sidecar.publish_timeout_millis", 2000)
	v.SetDefault("sidecar.task_events_topic", "task-events")
	v.SetDefault("notifier.max_attempts", 5)
	v.SetDefault("notifier.backoff_base_millis", 100)
	v.SetDefault("notifier.dedup_marker_ttl_seconds", 86400)
	v.SetDefault("notifier.conversation_ttl_seconds", 604800)
	v.SetDefault("scheduler.catch_up_limit", 10)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars alone may be complete.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TASKWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables. AutomaticEnv alone
	// does not surface keys that were never touched via SetDefault.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"database.url", "TASKWIRE_DATABASE_URL"},
		{"auth.jwt_secret", "TASKWIRE_AUTH_JWT_SECRET"},
		{"sidecar.base_url", "TASKWIRE_SIDECAR_BASE_URL"},
		{"sidecar.source", "TASKWIRE_SIDECAR_SOURCE"},
		{"server.port", "TASKWIRE_SERVER_PORT"},
		{"server.log_level", "TASKWIRE_SERVER_LOG_LEVEL"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
