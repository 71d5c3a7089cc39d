package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func TestMergeClientSettings(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		merged, overrides := MergeClientSettings(MongoDBClientConfig{}, nil)
		assert.Empty(t, overrides)
		assert.Equal(t, "mongotap", merged.AppName)
		assert.Equal(t, 10, merged.MaxPoolSize)
		assert.Equal(t, 1, merged.MinPoolSize)
		assert.Equal(t, 30*time.Second, merged.ServerSelectionTimeout)
		assert.Equal(t, 10*time.Second, merged.HeartbeatInterval)
		assert.Nil(t, merged.RetryWrites)
	})

	t.Run("GlobalSettingsKept", func(t *testing.T) {
		merged, overrides := MergeClientSettings(MongoDBClientConfig{
			MaxPoolSize:    50,
			ConnectTimeout: 5 * time.Second,
		}, &MongoDBClientConfig{})
		assert.Empty(t, overrides)
		assert.Equal(t, 50, merged.MaxPoolSize)
		assert.Equal(t, 5*time.Second, merged.ConnectTimeout)
	})

	t.Run("DatabaseOverrides", func(t *testing.T) {
		retry := false
		merged, overrides := MergeClientSettings(
			MongoDBClientConfig{MaxPoolSize: 50, AppName: "global"},
			&MongoDBClientConfig{MaxPoolSize: 5, AppName: "orders-tap", RetryWrites: &retry},
		)
		assert.Equal(t, 5, merged.MaxPoolSize)
		assert.Equal(t, "orders-tap", merged.AppName)
		require.NotNil(t, merged.RetryWrites)
		assert.False(t, *merged.RetryWrites)
		assert.Equal(t, map[string]interface{}{
			"max_pool_size": 5,
			"app_name":      "orders-tap",
			"retry_writes":  false,
		}, overrides)
	})
}

func TestApplyMongoDBClientSettings(t *testing.T) {
	retry := true
	opts := options.Client().ApplyURI("mongodb://localhost:27017/test")
	opts = ApplyMongoDBClientSettings(opts, "test",
		MongoDBClientConfig{MaxPoolSize: 20, RetryWrites: &retry},
		&MongoDBClientConfig{SocketTimeout: 45 * time.Second},
		zap.NewNop(),
	)

	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	require.NotNil(t, opts.MinPoolSize)
	assert.Equal(t, uint64(1), *opts.MinPoolSize)
	require.NotNil(t, opts.SocketTimeout)
	assert.Equal(t, 45*time.Second, *opts.SocketTimeout)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "mongotap", *opts.AppName)
	require.NotNil(t, opts.RetryWrites)
	assert.True(t, *opts.RetryWrites)
}

func TestParseClientSettings(t *testing.T) {
	t.Run("AllKeys", func(t *testing.T) {
		cfg, err := ParseClientSettings(map[string]interface{}{
			"app_name":                 "tap",
			"max_pool_size":            int64(25),
			"min_pool_size":            int64(2),
			"max_conn_idle_time":       "1m",
			"server_selection_timeout": "15s",
			"connect_timeout":          "5s",
			"socket_timeout":           "20s",
			"heartbeat_interval":       "2s",
			"retry_writes":             false,
		})
		require.NoError(t, err)
		assert.Equal(t, "tap", cfg.AppName)
		assert.Equal(t, 25, cfg.MaxPoolSize)
		assert.Equal(t, 2, cfg.MinPoolSize)
		assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
		assert.Equal(t, 15*time.Second, cfg.ServerSelectionTimeout)
		assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
		assert.Equal(t, 20*time.Second, cfg.SocketTimeout)
		assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
		require.NotNil(t, cfg.RetryWrites)
		assert.False(t, *cfg.RetryWrites)
	})

	t.Run("InvalidDuration", func(t *testing.T) {
		_, err := ParseClientSettings(map[string]interface{}{"connect_timeout": "soon"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connect_timeout")
	})

	t.Run("NegativePoolSize", func(t *testing.T) {
		for _, key := range []string{"max_pool_size", "min_pool_size"} {
			_, err := ParseClientSettings(map[string]interface{}{key: int64(-5)})
			require.Error(t, err, key)
			assert.Contains(t, err.Error(), key)
		}
	})

	t.Run("MinAboveMax", func(t *testing.T) {
		_, err := ParseClientSettings(map[string]interface{}{
			"max_pool_size": int64(5),
			"min_pool_size": int64(10),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds max_pool_size")
	})

	t.Run("MinEqualsMax", func(t *testing.T) {
		cfg, err := ParseClientSettings(map[string]interface{}{
			"max_pool_size": int64(5),
			"min_pool_size": int64(5),
		})
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MinPoolSize)
	})

	t.Run("Empty", func(t *testing.T) {
		cfg, err := ParseClientSettings(map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, MongoDBClientConfig{}, cfg)
	})
}

func TestCheckPoolSizes(t *testing.T) {
	tests := []struct {
		name    string
		min     int
		max     int
		wantErr bool
	}{
		{name: "Unset", min: 0, max: 0},
		{name: "OnlyMin", min: 20, max: 0},
		{name: "OnlyMax", min: 0, max: 5},
		{name: "Ordered", min: 1, max: 10},
		{name: "MinAboveMax", min: 20, max: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPoolSizes(tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
