package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/sameer-m-dev/mongotap/util"
)

const pingTimeout = 60 * time.Second
const disconnectTimeout = 10 * time.Second

// PoolStats tracks MongoDB driver connection pool statistics
type PoolStats struct {
	mu                sync.RWMutex
	activeConnections int64
	totalConnections  int64
	maxPoolSize       int64
	checkoutCount     int64
	checkoutFailures  int64
	lastUpdated       time.Time
}

// Mongo is a driver client opened from a built connection string
type Mongo struct {
	log     *zap.Logger
	metrics util.MetricsInterface
	opts    *options.ClientOptions

	name         string
	databaseName string
	client       *mongo.Client
	poolStats    *PoolStats

	closeOnce sync.Once
}

// createPoolMonitor creates a pool monitor that tracks connection pool events
func createPoolMonitor(log *zap.Logger, metrics util.MetricsInterface, name string, poolStats *PoolStats) *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			poolStats.mu.Lock()
			defer poolStats.mu.Unlock()

			poolStats.lastUpdated = time.Now()

			switch evt.Type {
			case event.PoolCreated:
				if evt.PoolOptions != nil {
					poolStats.maxPoolSize = int64(evt.PoolOptions.MaxPoolSize)
				}
			case event.ConnectionCreated:
				poolStats.totalConnections++
			case event.ConnectionClosed:
				poolStats.totalConnections--
				if poolStats.totalConnections < 0 {
					poolStats.totalConnections = 0
				}
			case event.GetSucceeded:
				poolStats.activeConnections++
				poolStats.checkoutCount++
			case event.ConnectionReturned:
				poolStats.activeConnections--
				if poolStats.activeConnections < 0 {
					poolStats.activeConnections = 0
				}
			case event.GetFailed:
				poolStats.checkoutFailures++
			}

			log.Debug("Pool event",
				zap.String("database", name),
				zap.String("event", evt.Type),
				zap.Int64("active_connections", poolStats.activeConnections),
				zap.Int64("total_connections", poolStats.totalConnections))

			if metrics != nil {
				tags := []string{fmt.Sprintf("database:%s", name)}
				_ = metrics.Incr(evt.Type, tags, 1)
				_ = metrics.Gauge("pool_active_connections", float64(poolStats.activeConnections), tags, 1)
				_ = metrics.Gauge("pool_total_connections", float64(poolStats.totalConnections), tags, 1)
			}
		},
	}
}

// extractDatabaseName returns the database path segment of the client URI
func extractDatabaseName(opts *options.ClientOptions) string {
	return databaseFromURI(opts.GetURI())
}

func databaseFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	return util.ParseConnectionString(uri).Database
}

// Connect opens a driver client for the named database configuration.
// With ping set, the primary must answer before Connect returns.
func Connect(ctx context.Context, log *zap.Logger, metrics util.MetricsInterface, name string, opts *options.ClientOptions, ping bool) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	record := func(success bool) {
		if metrics == nil {
			return
		}
		result := []string{fmt.Sprintf("database:%s", name), fmt.Sprintf("success:%t", success)}
		_ = metrics.Incr("connect", result, 1)
		_ = metrics.Timing("connect", time.Since(start), result, 1)
	}

	poolStats := &PoolStats{}
	opts = opts.SetPoolMonitor(createPoolMonitor(log, metrics, name, poolStats))

	log.Info("Connect", zap.String("database", name))
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		record(false)
		return nil, err
	}

	m := &Mongo{
		log:          log,
		metrics:      metrics,
		opts:         opts,
		name:         name,
		databaseName: extractDatabaseName(opts),
		client:       c,
		poolStats:    poolStats,
	}

	if ping {
		log.Info("Ping", zap.String("database", name))
		if err := m.Ping(ctx); err != nil {
			record(false)
			m.Close()
			return nil, err
		}
		log.Info("Pong", zap.String("database", name))
	}

	record(true)
	return m, nil
}

// Ping checks that the primary is reachable
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Name() string {
	return m.name
}

func (m *Mongo) DatabaseName() string {
	return m.databaseName
}

func (m *Mongo) Client() *mongo.Client {
	return m.client
}

func (m *Mongo) GetClientOptions() *options.ClientOptions {
	return m.opts
}

// GetPoolStats returns the current connection pool statistics
func (m *Mongo) GetPoolStats() map[string]interface{} {
	m.poolStats.mu.RLock()
	defer m.poolStats.mu.RUnlock()

	utilization := 0.0
	if m.poolStats.maxPoolSize > 0 {
		utilization = float64(m.poolStats.activeConnections) / float64(m.poolStats.maxPoolSize)
	}

	return map[string]interface{}{
		"active_connections": m.poolStats.activeConnections,
		"total_connections":  m.poolStats.totalConnections,
		"max_pool_size":      m.poolStats.maxPoolSize,
		"utilization_ratio":  utilization,
		"checkout_count":     m.poolStats.checkoutCount,
		"checkout_failures":  m.poolStats.checkoutFailures,
		"last_updated":       m.poolStats.lastUpdated,
	}
}

// Close disconnects the client; repeated calls are no-ops
func (m *Mongo) Close() {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()

		m.log.Info("Disconnect", zap.String("database", m.name))
		if err := m.client.Disconnect(ctx); err != nil {
			m.log.Warn("Error disconnecting", zap.String("database", m.name), zap.Error(err))
		}
	})
}
