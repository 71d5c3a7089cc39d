package util

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	mongotapUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mongotap_up",
			Help: "Whether mongotap is running (1 = up, 0 = down)",
		},
	)

	connectionStringsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongotap_connection_strings_built_total",
			Help: "Total number of connection strings built, by scheme",
		},
		[]string{"database", "scheme"},
	)

	connectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongotap_connect_attempts_total",
			Help: "Total number of MongoDB connect attempts",
		},
		[]string{"database", "success"},
	)

	connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongotap_connect_duration_seconds",
			Help:    "Time spent connecting to and pinging MongoDB",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"database", "success"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongotap_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"database", "error_type"},
	)

	poolEventCounters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongotap_pool_events_total",
			Help: "Go driver connection pool events",
		},
		[]string{"database", "event_type"},
	)

	poolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mongotap_pool_connections",
			Help: "Connections held by the Go driver pool",
		},
		[]string{"database", "state"},
	)
)

// MetricsInterface defines the common interface for metrics clients
type MetricsInterface interface {
	Timing(name string, duration time.Duration, tags []string, rate float64) error
	Incr(name string, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Close() error
	Shutdown(ctx context.Context) error
}

// MetricsClient exposes mongotap metrics for Prometheus scraping
type MetricsClient struct {
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
}

// NewMetricsClient registers the collectors and starts the metrics HTTP server
func NewMetricsClient(logger *zap.Logger, metricsAddr string) (*MetricsClient, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		mongotapUp,
		connectionStringsBuiltTotal,
		connectAttemptsTotal,
		connectDuration,
		errorsTotal,
		poolEventCounters,
		poolConnections,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    metricsAddr,
		Handler: mux,
	}

	client := &MetricsClient{
		logger:   logger,
		server:   server,
		registry: registry,
	}

	mongotapUp.Set(1)

	go func() {
		logger.Info("Starting Prometheus metrics server", zap.String("address", metricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return client, nil
}

// Registry returns the registry backing the /metrics endpoint
func (m *MetricsClient) Registry() *prometheus.Registry {
	return m.registry
}

// Shutdown gracefully shuts down the metrics server
func (m *MetricsClient) Shutdown(ctx context.Context) error {
	mongotapUp.Set(0)
	return m.server.Shutdown(ctx)
}

func (m *MetricsClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Shutdown(ctx)
}

// Timing records a duration metric
func (m *MetricsClient) Timing(name string, duration time.Duration, tags []string, rate float64) error {
	switch name {
	case "connect":
		connectDuration.WithLabelValues(parseDatabaseTag(tags), parseSuccessTag(tags)).Observe(duration.Seconds())
	}
	return nil
}

// Incr increments a counter
func (m *MetricsClient) Incr(name string, tags []string, rate float64) error {
	database := parseDatabaseTag(tags)

	switch name {
	case "connection_string_built":
		connectionStringsBuiltTotal.WithLabelValues(database, parseTag(tags, "scheme", "mongodb")).Inc()
	case "connect":
		connectAttemptsTotal.WithLabelValues(database, parseSuccessTag(tags)).Inc()
	case "error":
		errorsTotal.WithLabelValues(database, parseTag(tags, "error_type", "unknown")).Inc()
	default:
		poolEventCounters.WithLabelValues(database, name).Inc()
	}
	return nil
}

// Gauge sets a gauge value
func (m *MetricsClient) Gauge(name string, value float64, tags []string, rate float64) error {
	switch name {
	case "pool_active_connections":
		poolConnections.WithLabelValues(parseDatabaseTag(tags), "active").Set(value)
	case "pool_total_connections":
		poolConnections.WithLabelValues(parseDatabaseTag(tags), "total").Set(value)
	}
	return nil
}

// parseSuccessTag extracts success status from tags, defaults to "true"
func parseSuccessTag(tags []string) string {
	return parseTag(tags, "success", "true")
}

func parseDatabaseTag(tags []string) string {
	return parseTag(tags, "database", "default")
}

// parseTag returns the value of the first "key:value" tag, or fallback
func parseTag(tags []string, key, fallback string) string {
	prefix := key + ":"
	for _, tag := range tags {
		if strings.HasPrefix(tag, prefix) {
			return tag[len(prefix):]
		}
	}
	return fallback
}
