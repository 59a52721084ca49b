package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapper(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	require.NotNil(t, wrapper)
	assert.Same(t, metrics, wrapper.m)
}

func TestMetricsWrapper_Counters(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PredictionsTotal))

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	wrapper.FailuresInc()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PredictionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FailuresTotal))
}

func TestMetricsWrapper_Gauges(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	wrapper.ResultSet(11.5, 4.25)
	assert.Equal(t, 11.5, testutil.ToFloat64(metrics.MoistureLast))
	assert.Equal(t, 4.25, testutil.ToFloat64(metrics.PiperineLast))

	wrapper.DriftSet(0.25)
	assert.Equal(t, 0.25, testutil.ToFloat64(metrics.DriftResidual))

	wrapper.ModelAgeSet("Random Forest", 90*time.Second)
	assert.Equal(t, 90.0, testutil.ToFloat64(metrics.ModelAge.WithLabelValues("random_forest")))
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	wrapper.LatencyObserve(0.2)
	wrapper.StageLatencyObserve("mask", 0.01)
	wrapper.StageLatencyObserve("mask", 0.02)
	wrapper.StageLatencyObserve("pca", 0.001)

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.PredictionLatency))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.StageLatency))
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// two registries must not collide on metric names
	assert.NotPanics(t, func() {
		NewWithRegistry(prometheus.NewRegistry())
		NewWithRegistry(prometheus.NewRegistry())
	})
}

func TestModelLabel(t *testing.T) {
	assert.Equal(t, "kmeans", ModelLabel("KMeans"))
	assert.Equal(t, "random_forest", ModelLabel("Random Forest"))
	assert.Equal(t, "cnn", ModelLabel("CNN"))
}

func TestWriteTextfile(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)
	wrapper.PredictionsInc()
	wrapper.ResultSet(12, 3)

	path := filepath.Join(t.TempDir(), "pepper.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "pepper_predictions_total 1")
	assert.Contains(t, text, "pepper_moisture_prediction 12")
	assert.True(t, strings.HasPrefix(text, "# HELP"))
}

func TestWriteTextfile_BadDir(t *testing.T) {
	metrics := New()
	err := metrics.WriteTextfile(filepath.Join(t.TempDir(), "missing", "pepper.prom"))
	assert.Error(t, err)
}
