package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesNamespacedSeries(t *testing.T) {
	m := New("")
	m.TicksApplied.Add(2)
	m.SinkErrors.WithLabelValues("redis").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksApplied))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "polyarb_stream_ticks_applied_total 2")
	assert.Contains(t, string(body), `polyarb_executor_sink_errors_total{sink="redis"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesDoNotShareRegistries(t *testing.T) {
	a, b := New("a"), New("a")
	a.FeedReconnects.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FeedReconnects))
}
