package util

import (
	"fmt"
	"time"
)

// ParseClientSettings reads driver settings from a raw TOML table.
// Durations are Go duration strings ("30s", "1m").
func ParseClientSettings(raw map[string]interface{}) (MongoDBClientConfig, error) {
	var cfg MongoDBClientConfig

	if appName, ok := raw["app_name"].(string); ok {
		cfg.AppName = appName
	}
	if maxPoolSize, ok := raw["max_pool_size"].(int64); ok {
		if maxPoolSize < 0 {
			return MongoDBClientConfig{}, fmt.Errorf("invalid max_pool_size %d: must not be negative", maxPoolSize)
		}
		cfg.MaxPoolSize = int(maxPoolSize)
	}
	if minPoolSize, ok := raw["min_pool_size"].(int64); ok {
		if minPoolSize < 0 {
			return MongoDBClientConfig{}, fmt.Errorf("invalid min_pool_size %d: must not be negative", minPoolSize)
		}
		cfg.MinPoolSize = int(minPoolSize)
	}
	if err := CheckPoolSizes(cfg.MinPoolSize, cfg.MaxPoolSize); err != nil {
		return MongoDBClientConfig{}, err
	}
	if retryWrites, ok := raw["retry_writes"].(bool); ok {
		cfg.RetryWrites = &retryWrites
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"max_conn_idle_time", &cfg.MaxConnIdleTime},
		{"server_selection_timeout", &cfg.ServerSelectionTimeout},
		{"connect_timeout", &cfg.ConnectTimeout},
		{"socket_timeout", &cfg.SocketTimeout},
		{"heartbeat_interval", &cfg.HeartbeatInterval},
	}
	for _, d := range durations {
		value, ok := raw[d.key].(string)
		if !ok {
			continue
		}
		duration, err := time.ParseDuration(value)
		if err != nil {
			return MongoDBClientConfig{}, fmt.Errorf("invalid %s %q: %w", d.key, value, err)
		}
		*d.dst = duration
	}

	return cfg, nil
}

// CheckPoolSizes rejects a minimum above the maximum. Zero means unset.
func CheckPoolSizes(minPoolSize, maxPoolSize int) error {
	if minPoolSize > 0 && maxPoolSize > 0 && minPoolSize > maxPoolSize {
		return fmt.Errorf("min_pool_size %d exceeds max_pool_size %d", minPoolSize, maxPoolSize)
	}
	return nil
}
