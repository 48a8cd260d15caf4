package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// envKeys are the settings most often supplied through the environment,
// e.g. BOOST_UPSTREAM_API_KEY
var envKeys = []string{
	"server.port",
	"rewrite.mode",
	"rewrite.min_length",
	"upstream.base_url",
	"upstream.api_key",
	"upstream.model",
	"privacy.enabled",
	"usage.backend",
	"usage.daily_limit",
	"usage.redis_url",
	"cache.enabled",
	"cache.redis_url",
	"history.enabled",
	"history.database_url",
	"logging.level",
	"logging.format",
}

var (
	mu      sync.Mutex
	current *viper.Viper
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/confidenceboost/")
	v.AddConfigPath("$HOME/.confidenceboost/")

	v.SetEnvPrefix("BOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	current = v
	mu.Unlock()

	return config, nil
}

// Validate validates the loaded configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Rewrite.Mode != "offline" && config.Rewrite.Mode != "remote" {
		return fmt.Errorf("invalid rewrite mode: %s (must be offline or remote)", config.Rewrite.Mode)
	}

	if config.Rewrite.MinLength < 0 {
		return fmt.Errorf("invalid min_length: %d", config.Rewrite.MinLength)
	}

	if config.Rewrite.MaxInputLength <= 0 {
		return fmt.Errorf("invalid max_input_length: %d", config.Rewrite.MaxInputLength)
	}

	if config.Rewrite.Mode == "remote" {
		if config.Upstream.BaseURL == "" || config.Upstream.Model == "" {
			return fmt.Errorf("upstream base_url and model are required in remote mode")
		}
		if config.Upstream.MaxTokens <= 0 {
			return fmt.Errorf("invalid upstream max_tokens: %d", config.Upstream.MaxTokens)
		}
	}

	if config.Privacy.Enabled && len(config.Privacy.Detectors) == 0 {
		return fmt.Errorf("privacy detectors are required when privacy is enabled")
	}

	if config.Usage.Enabled {
		if config.Usage.Backend != "memory" && config.Usage.Backend != "redis" {
			return fmt.Errorf("invalid usage backend: %s (must be memory or redis)", config.Usage.Backend)
		}
		if config.Usage.DailyLimit <= 0 {
			return fmt.Errorf("invalid usage daily_limit: %d", config.Usage.DailyLimit)
		}
		if config.Usage.Window <= 0 {
			return fmt.Errorf("invalid usage window: %s", config.Usage.Window)
		}
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache redis_url is required when cache is enabled")
	}

	if config.History.Enabled && config.History.DatabaseURL == "" {
		return fmt.Errorf("history database_url is required when history is enabled")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Batch.WorkerCount <= 0 || config.Batch.BatchSize <= 0 {
		return fmt.Errorf("batch worker_count and batch_size must be positive")
	}

	return nil
}

// Watch starts watching the configuration file loaded by Load for changes.
// Invalid revisions are logged and skipped.
func Watch(log *zap.Logger, callback func(*Config)) error {
	mu.Lock()
	v := current
	mu.Unlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			log.Error("Failed to reload configuration", zap.String("file", e.Name), zap.Error(err))
			return
		}

		if err := Validate(newConfig); err != nil {
			log.Error("Ignoring invalid configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}

		log.Info("Configuration reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
