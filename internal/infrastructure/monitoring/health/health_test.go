package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/prometheus"
)

func ok(context.Context) error { return nil }

func TestProber_AllHealthy(t *testing.T) {
	p := NewProber(time.Second, nil, nil, NewChecker("postgres", ok), NewChecker("redis", ok))
	report := p.CheckAll(context.Background())

	assert.True(t, report.Healthy)
	require.Len(t, report.Components, 2)
	assert.Equal(t, StatusHealthy, report.Components["postgres"].Status)
	assert.NotEmpty(t, report.Components["redis"].Latency)
	assert.Equal(t, 2, p.Len())
}

func TestProber_OneFailing(t *testing.T) {
	p := NewProber(time.Second, nil, nil,
		NewChecker("postgres", ok),
		NewChecker("minio", func(context.Context) error { return fmt.Errorf("connection refused") }),
	)
	report := p.CheckAll(context.Background())

	assert.False(t, report.Healthy)
	assert.Equal(t, StatusUnhealthy, report.Components["minio"].Status)
	assert.Equal(t, "connection refused", report.Components["minio"].Error)
	assert.Equal(t, StatusHealthy, report.Components["postgres"].Status)
}

func TestProber_Timeout(t *testing.T) {
	slow := NewChecker("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	start := time.Now()
	report := NewProber(20*time.Millisecond, nil, nil, slow).CheckAll(context.Background())

	assert.False(t, report.Healthy)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, report.Components["redis"].Error, "deadline")
}

func TestProber_NoCheckers(t *testing.T) {
	report := NewProber(0, nil, nil).CheckAll(context.Background())
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Components)
}

func TestProber_RecordsGauge(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	m := prometheus.NewAppMetrics(collector)

	NewProber(time.Second, m, nil,
		NewChecker("postgres", ok),
		NewChecker("redis", func(context.Context) error { return fmt.Errorf("down") }),
	).CheckAll(context.Background())

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `test_health_check_status{component="postgres"} 1`)
	assert.Contains(t, w.Body.String(), `test_health_check_status{component="redis"} 0`)
}
