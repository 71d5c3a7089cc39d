package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMetricsClient(t *testing.T, addr string) *MetricsClient {
	t.Helper()

	client, err := NewMetricsClient(zap.NewNop(), addr)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = client.Shutdown(ctx)
	})
	return client
}

func TestNewMetricsClient(t *testing.T) {
	client, err := NewMetricsClient(zap.NewNop(), "localhost:19190")
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, client.Registry())
	assert.Equal(t, float64(1), testutil.ToFloat64(mongotapUp))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, client.Shutdown(ctx))
	assert.Equal(t, float64(0), testutil.ToFloat64(mongotapUp))
}

func TestMetricsInterface(t *testing.T) {
	client := newTestMetricsClient(t, "localhost:19191")

	built := connectionStringsBuiltTotal.WithLabelValues("orders", "mongodb+srv")
	before := testutil.ToFloat64(built)
	require.NoError(t, client.Incr("connection_string_built", []string{"database:orders", "scheme:mongodb+srv"}, 1))
	assert.Equal(t, before+1, testutil.ToFloat64(built))

	attempts := connectAttemptsTotal.WithLabelValues("orders", "false")
	before = testutil.ToFloat64(attempts)
	require.NoError(t, client.Incr("connect", []string{"database:orders", "success:false"}, 1))
	assert.Equal(t, before+1, testutil.ToFloat64(attempts))

	errs := errorsTotal.WithLabelValues("orders", "build")
	before = testutil.ToFloat64(errs)
	require.NoError(t, client.Incr("error", []string{"database:orders", "error_type:build"}, 1))
	assert.Equal(t, before+1, testutil.ToFloat64(errs))

	events := poolEventCounters.WithLabelValues("orders", "ConnectionCreated")
	before = testutil.ToFloat64(events)
	require.NoError(t, client.Incr("ConnectionCreated", []string{"database:orders"}, 1))
	assert.Equal(t, before+1, testutil.ToFloat64(events))

	require.NoError(t, client.Gauge("pool_active_connections", 3, []string{"database:orders"}, 1))
	assert.Equal(t, float64(3), testutil.ToFloat64(poolConnections.WithLabelValues("orders", "active")))

	require.NoError(t, client.Timing("connect", 150*time.Millisecond, []string{"database:orders"}, 1))
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		key      string
		fallback string
		expected string
	}{
		{
			name:     "Empty tags",
			tags:     []string{},
			key:      "database",
			fallback: "default",
			expected: "default",
		},
		{
			name:     "Present",
			tags:     []string{"database:prod", "success:true"},
			key:      "database",
			fallback: "default",
			expected: "prod",
		},
		{
			name:     "Value with colon",
			tags:     []string{"scheme:mongodb+srv", "error_type:dns:timeout"},
			key:      "error_type",
			fallback: "unknown",
			expected: "dns:timeout",
		},
		{
			name:     "Prefix is not enough",
			tags:     []string{"databases:prod"},
			key:      "database",
			fallback: "default",
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseTag(tt.tags, tt.key, tt.fallback))
		})
	}

	assert.Equal(t, "true", parseSuccessTag(nil))
	assert.Equal(t, "default", parseDatabaseTag(nil))
}

func TestMetricsHTTPEndpoint(t *testing.T) {
	client := newTestMetricsClient(t, "localhost:19193")
	require.NoError(t, client.Incr("connection_string_built", []string{"database:http_test"}, 1))

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19193/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "mongotap_connection_strings_built_total")

	resp, err = http.Get("http://localhost:19193/health")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConcurrentMetrics(t *testing.T) {
	client := newTestMetricsClient(t, "localhost:19194")

	var wg sync.WaitGroup
	numGoroutines := 10
	numOperations := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			tags := []string{fmt.Sprintf("database:worker_%d", id)}
			for j := 0; j < numOperations; j++ {
				_ = client.Incr("connect", tags, 1.0)
				_ = client.Timing("connect", time.Duration(j)*time.Millisecond, tags, 1.0)
				_ = client.Gauge("pool_total_connections", float64(j), tags, 1.0)
			}
		}(i)
	}

	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		counter := connectAttemptsTotal.WithLabelValues(fmt.Sprintf("worker_%d", i), "true")
		assert.Equal(t, float64(numOperations), testutil.ToFloat64(counter))
	}
}
