package util

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const defaultAppName = "mongotap"

// ApplyMongoDBClientSettings merges the global driver settings with the
// per-database overrides and applies the result to opts
func ApplyMongoDBClientSettings(
	opts *options.ClientOptions,
	dbName string,
	defaults MongoDBClientConfig,
	dbOverrides *MongoDBClientConfig,
	logger *zap.Logger,
) *options.ClientOptions {
	merged, overrides := MergeClientSettings(defaults, dbOverrides)

	if len(overrides) > 0 {
		logger.Info("Using database-specific MongoDB client overrides",
			zap.String("database", dbName),
			zap.Any("overrides", overrides))
	} else {
		logger.Debug("Using default MongoDB client settings",
			zap.String("database", dbName))
	}

	opts = opts.SetAppName(merged.AppName)
	opts = opts.SetMaxPoolSize(uint64(merged.MaxPoolSize))
	opts = opts.SetMinPoolSize(uint64(merged.MinPoolSize))
	opts = opts.SetMaxConnIdleTime(merged.MaxConnIdleTime)
	opts = opts.SetServerSelectionTimeout(merged.ServerSelectionTimeout)
	opts = opts.SetConnectTimeout(merged.ConnectTimeout)
	opts = opts.SetSocketTimeout(merged.SocketTimeout)
	opts = opts.SetHeartbeatInterval(merged.HeartbeatInterval)
	if merged.RetryWrites != nil {
		opts = opts.SetRetryWrites(*merged.RetryWrites)
	}

	logFields := []zap.Field{
		zap.String("database", dbName),
		zap.String("app_name", merged.AppName),
		zap.Int("max_pool_size", merged.MaxPoolSize),
		zap.Int("min_pool_size", merged.MinPoolSize),
		zap.Duration("max_conn_idle_time", merged.MaxConnIdleTime),
		zap.Duration("server_selection_timeout", merged.ServerSelectionTimeout),
		zap.Duration("connect_timeout", merged.ConnectTimeout),
		zap.Duration("socket_timeout", merged.SocketTimeout),
		zap.Duration("heartbeat_interval", merged.HeartbeatInterval),
	}
	if merged.RetryWrites != nil {
		logFields = append(logFields, zap.Bool("retry_writes", *merged.RetryWrites))
	}
	logger.Debug("MongoDB client configuration applied", logFields...)

	return opts
}

// MergeClientSettings resolves the effective driver settings for one database.
// The second return value lists the keys taken from dbOverrides.
func MergeClientSettings(defaults MongoDBClientConfig, dbOverrides *MongoDBClientConfig) (MongoDBClientConfig, map[string]interface{}) {
	merged := defaults
	overrides := make(map[string]interface{})

	if dbOverrides != nil {
		if dbOverrides.AppName != "" {
			merged.AppName = dbOverrides.AppName
			overrides["app_name"] = merged.AppName
		}
		if dbOverrides.MaxPoolSize > 0 {
			merged.MaxPoolSize = dbOverrides.MaxPoolSize
			overrides["max_pool_size"] = merged.MaxPoolSize
		}
		if dbOverrides.MinPoolSize > 0 {
			merged.MinPoolSize = dbOverrides.MinPoolSize
			overrides["min_pool_size"] = merged.MinPoolSize
		}
		if dbOverrides.MaxConnIdleTime > 0 {
			merged.MaxConnIdleTime = dbOverrides.MaxConnIdleTime
			overrides["max_conn_idle_time"] = merged.MaxConnIdleTime
		}
		if dbOverrides.ServerSelectionTimeout > 0 {
			merged.ServerSelectionTimeout = dbOverrides.ServerSelectionTimeout
			overrides["server_selection_timeout"] = merged.ServerSelectionTimeout
		}
		if dbOverrides.ConnectTimeout > 0 {
			merged.ConnectTimeout = dbOverrides.ConnectTimeout
			overrides["connect_timeout"] = merged.ConnectTimeout
		}
		if dbOverrides.SocketTimeout > 0 {
			merged.SocketTimeout = dbOverrides.SocketTimeout
			overrides["socket_timeout"] = merged.SocketTimeout
		}
		if dbOverrides.HeartbeatInterval > 0 {
			merged.HeartbeatInterval = dbOverrides.HeartbeatInterval
			overrides["heartbeat_interval"] = merged.HeartbeatInterval
		}
		if dbOverrides.RetryWrites != nil {
			merged.RetryWrites = dbOverrides.RetryWrites
			overrides["retry_writes"] = *merged.RetryWrites
		}
	}

	// Only fill what neither level configured
	if merged.AppName == "" {
		merged.AppName = defaultAppName
	}
	if merged.MaxPoolSize == 0 {
		merged.MaxPoolSize = 10
	}
	if merged.MinPoolSize == 0 {
		merged.MinPoolSize = 1
	}
	if merged.MaxConnIdleTime == 0 {
		merged.MaxConnIdleTime = 30 * time.Second
	}
	if merged.ServerSelectionTimeout == 0 {
		merged.ServerSelectionTimeout = 30 * time.Second
	}
	if merged.ConnectTimeout == 0 {
		merged.ConnectTimeout = 30 * time.Second
	}
	if merged.SocketTimeout == 0 {
		merged.SocketTimeout = 30 * time.Second
	}
	if merged.HeartbeatInterval == 0 {
		merged.HeartbeatInterval = 10 * time.Second
	}

	return merged, overrides
}
