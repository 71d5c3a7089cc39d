package util

import "time"

// MongoDBClientConfig represents MongoDB driver settings.
// Shared between the global [mongotap] section and per-database overrides.
type MongoDBClientConfig struct {
	AppName                string
	MaxPoolSize            int
	MinPoolSize            int
	MaxConnIdleTime        time.Duration
	ServerSelectionTimeout time.Duration
	ConnectTimeout         time.Duration
	SocketTimeout          time.Duration
	HeartbeatInterval      time.Duration
	RetryWrites            *bool
}
