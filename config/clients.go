package config

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sameer-m-dev/mongotap/mongo"
	"github.com/sameer-m-dev/mongotap/util"
)

// ClientOptions returns driver options for a configured database: the built
// connection string plus the merged pool settings
func (c *Config) ClientOptions(name string) (*options.ClientOptions, error) {
	db, ok := c.databases[name]
	if !ok {
		return nil, fmt.Errorf("database '%s' is not configured", name)
	}

	opts := options.Client().ApplyURI(db.ConnectionString)
	opts = util.ApplyMongoDBClientSettings(opts, name, c.main.MongoDBConfig, &db.MongoDBConfig, c.logger)
	if err := util.CheckPoolSizes(int(*opts.MinPoolSize), int(*opts.MaxPoolSize)); err != nil {
		c.recordError(name, "invalid_pool")
		return nil, fmt.Errorf("database '%s': %w", name, err)
	}
	if err := opts.Validate(); err != nil {
		c.recordError(name, "invalid_uri")
		return nil, fmt.Errorf("database '%s': %w", name, err)
	}
	return opts, nil
}

// Connect opens a client for every configured database. On failure the
// clients opened so far are closed.
func (c *Config) Connect(ctx context.Context, ping bool) (map[string]*mongo.Mongo, error) {
	clients := make(map[string]*mongo.Mongo, len(c.databases))
	closeAll := func() {
		for _, m := range clients {
			m.Close()
		}
	}

	for _, name := range c.DatabaseNames() {
		if err := ctx.Err(); err != nil {
			closeAll()
			return nil, err
		}

		opts, err := c.ClientOptions(name)
		if err != nil {
			closeAll()
			return nil, err
		}

		m, err := mongo.Connect(ctx, c.logger, c.metrics, name, opts, ping)
		if err != nil {
			c.logger.Error("Failed to connect to database",
				zap.String("database", name),
				zap.String("uri", sanitizeURI(c.databases[name].ConnectionString)),
				zap.Error(err))
			c.recordError(name, "connect")
			closeAll()
			return nil, fmt.Errorf("database '%s': %w", name, err)
		}
		clients[name] = m
	}

	return clients, nil
}

// Close releases the metrics server, if any
func (c *Config) Close() error {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Close()
}

func (c *Config) recordError(name, errorType string) {
	if c.metrics == nil {
		return
	}
	_ = c.metrics.Incr("error", []string{"database:" + name, "error_type:" + errorType}, 1)
}
