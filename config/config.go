package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sameer-m-dev/mongotap/connstring"
	"github.com/sameer-m-dev/mongotap/util"
)

// Keys accepted under [databases.<name>] besides the connector keys, mapped to
// the connector key they stand for
var keyAliases = map[string]string{
	"connection_string": "uri",
	"dbname":            "database",
	"auth_db":           "auth_database",
}

// MongotapConfig holds the [mongotap] section
type MongotapConfig struct {
	LogLevel string
	LogFile  string

	MetricsAddress string
	MetricsEnabled bool

	// Ping the primary after connecting in check mode
	Ping bool

	MongoDBConfig util.MongoDBClientConfig
}

// Database is one configured connection
type Database struct {
	Name             string
	ConnectionString string
	Connection       connstring.ConnectionConfig

	// MongoDB client pool overrides (optional)
	MongoDBConfig util.MongoDBClientConfig
}

// Config represents the runtime configuration
type Config struct {
	main      MongotapConfig
	databases map[string]Database
	logger    *zap.Logger
	metrics   util.MetricsInterface
}

func defaultMongotapConfig() MongotapConfig {
	return MongotapConfig{
		LogLevel:       "info",
		MetricsAddress: "localhost:9090",
		MetricsEnabled: false,
		Ping:           true,
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string, verbose bool) (*Config, error) {
	main := defaultMongotapConfig()
	rawDatabases := map[string]interface{}{}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}

		var rawConfig map[string]interface{}
		if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		if err := parseMainSection(rawConfig, &main); err != nil {
			return nil, fmt.Errorf("failed to process config: %w", err)
		}
		if databases, ok := rawConfig["databases"].(map[string]interface{}); ok {
			rawDatabases = databases
		}
	}

	return newConfig(main, rawDatabases, verbose)
}

// LoadTapConfig loads a single connector configuration from a JSON file.
// The database is registered under the value of its "database" key.
func LoadTapConfig(configPath string, verbose bool) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	name, _ := raw["database"].(string)
	if name == "" {
		name = "default"
	}

	return newConfig(defaultMongotapConfig(), map[string]interface{}{name: raw}, verbose)
}

func newConfig(main MongotapConfig, rawDatabases map[string]interface{}, verbose bool) (*Config, error) {
	if verbose {
		main.LogLevel = "debug"
	}

	logger, err := createLogger(main.LogLevel, main.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	var metricsClient util.MetricsInterface
	if main.MetricsEnabled {
		client, err := util.NewMetricsClient(logger, main.MetricsAddress)
		if err != nil {
			logger.Warn("Failed to create metrics client", zap.Error(err))
			// Continue without metrics
		} else {
			metricsClient = client
		}
	}

	databases, err := buildDatabases(rawDatabases, logger, metricsClient)
	if err != nil {
		if metricsClient != nil {
			_ = metricsClient.Close()
		}
		return nil, fmt.Errorf("failed to build databases: %w", err)
	}

	c := &Config{
		main:      main,
		databases: databases,
		logger:    logger,
		metrics:   metricsClient,
	}
	c.recordBuilds()

	return c, nil
}

// parseMainSection parses the [mongotap] table
func parseMainSection(rawConfig map[string]interface{}, main *MongotapConfig) error {
	mt, ok := rawConfig["mongotap"].(map[string]interface{})
	if !ok {
		return nil
	}

	if logLevel, ok := mt["log_level"].(string); ok {
		main.LogLevel = logLevel
	}
	if logFile, ok := mt["logfile"].(string); ok {
		main.LogFile = logFile
	}
	if metricsAddress, ok := mt["metrics_address"].(string); ok {
		main.MetricsAddress = metricsAddress
	}
	if metricsEnabled, ok := mt["metrics_enabled"].(bool); ok {
		main.MetricsEnabled = metricsEnabled
	}
	if ping, ok := mt["ping"].(bool); ok {
		main.Ping = ping
	}

	clientConfig, err := util.ParseClientSettings(mt)
	if err != nil {
		return err
	}
	main.MongoDBConfig = clientConfig

	return nil
}

// buildDatabases turns every [databases.<name>] table into a connection string
// A failed build is counted as a "build" error when metrics is set.
func buildDatabases(rawDatabases map[string]interface{}, logger *zap.Logger, metrics util.MetricsInterface) (map[string]Database, error) {
	if len(rawDatabases) == 0 {
		return nil, fmt.Errorf("no databases configured - mongotap needs at least one [databases.<name>] section")
	}

	databases := make(map[string]Database, len(rawDatabases))
	for name, value := range rawDatabases {
		table, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid database configuration for '%s': simple string format is not supported. Please use structured format with 'uri' field. Example: %s = { uri = \"%v\" }", name, name, value)
		}

		db, err := buildDatabase(name, table)
		if err != nil {
			if metrics != nil {
				_ = metrics.Incr("error", []string{"database:" + name, "error_type:build"}, 1)
			}
			return nil, err
		}
		databases[name] = db

		logger.Info("Configured database",
			zap.String("name", name),
			zap.String("uri", sanitizeURI(db.ConnectionString)),
			zap.Bool("srv", db.Connection.IsSRV()),
			zap.Bool("tls", db.Connection.TLSEnabled()))
	}

	return databases, nil
}

func buildDatabase(name string, table map[string]interface{}) (Database, error) {
	settings := normalizeKeys(table)

	conn, err := connstring.FromMap(settings)
	if err != nil {
		return Database{}, fmt.Errorf("database '%s': %w", name, err)
	}
	uri, err := connstring.Build(conn)
	if err != nil {
		return Database{}, fmt.Errorf("database '%s': %w", name, err)
	}

	clientConfig, err := util.ParseClientSettings(settings)
	if err != nil {
		return Database{}, fmt.Errorf("database '%s': %w", name, err)
	}

	return Database{
		Name:             name,
		ConnectionString: uri,
		Connection:       conn,
		MongoDBConfig:    clientConfig,
	}, nil
}

// normalizeKeys rewrites aliases to connector keys; an explicit connector key wins
func normalizeKeys(table map[string]interface{}) map[string]interface{} {
	settings := make(map[string]interface{}, len(table))
	for k, v := range table {
		settings[k] = v
	}
	for alias, key := range keyAliases {
		v, ok := settings[alias]
		if !ok {
			continue
		}
		if _, exists := settings[key]; !exists {
			settings[key] = v
		}
		delete(settings, alias)
	}
	return settings
}

func (c *Config) recordBuilds() {
	if c.metrics == nil {
		return
	}
	for name, db := range c.databases {
		scheme := util.ParseConnectionString(db.ConnectionString).Scheme
		_ = c.metrics.Incr("connection_string_built", []string{"database:" + name, "scheme:" + scheme}, 1)
	}
}

// createLogger creates a zap logger with the specified level and output.
// A log file is rotated with lumberjack.
func createLogger(level, logFile string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	if logFile != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			writer,
			zap.NewAtomicLevelAt(zapLevel),
		)
		return zap.New(core), nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// sanitizeURI removes sensitive information from URI for logging.
// Passwords are not escaped, so user info runs to the last '@' before the query.
func sanitizeURI(uri string) string {
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return uri
	}
	rest := uri[schemeEnd+3:]

	head := rest
	if idx := strings.Index(head, "?"); idx != -1 {
		head = head[:idx]
	}
	at := strings.LastIndex(head, "@")
	if at == -1 {
		return uri
	}

	userInfo := head[:at]
	colon := strings.Index(userInfo, ":")
	if colon == -1 {
		return uri
	}

	return uri[:schemeEnd+3] + userInfo[:colon] + ":***" + rest[at:]
}

// SanitizeURI masks the password of a connection string
func SanitizeURI(uri string) string {
	return sanitizeURI(uri)
}

func (c *Config) Logger() *zap.Logger {
	return c.logger
}

func (c *Config) Metrics() util.MetricsInterface {
	return c.metrics
}

func (c *Config) Ping() bool {
	return c.main.Ping
}

// GetMainConfig returns the [mongotap] section
func (c *Config) GetMainConfig() MongotapConfig {
	return c.main
}

// GetDatabases returns the database configurations
func (c *Config) GetDatabases() map[string]Database {
	result := make(map[string]Database, len(c.databases))
	for name, db := range c.databases {
		result[name] = db
	}
	return result
}

// Database returns one database configuration by name
func (c *Config) Database(name string) (Database, bool) {
	db, ok := c.databases[name]
	return db, ok
}

// DatabaseNames returns the configured names in sorted order
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.databases))
	for name := range c.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
