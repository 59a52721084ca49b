// Package metrics provides Prometheus metrics for pepper-predict.
//
// The predictor is a one-shot process, so metrics are never scraped. Instead
// they are written in the Prometheus text format to a file that a node
// exporter textfile collector can pick up.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a prediction run.
type Metrics struct {
	PredictionsTotal  prometheus.Counter       // Successful predictions
	FailuresTotal     prometheus.Counter       // Pipeline failures
	PredictionLatency prometheus.Histogram     // End-to-end pipeline duration
	StageLatency      *prometheus.HistogramVec // Per-stage duration, labelled by stage
	ModelAge          *prometheus.GaugeVec     // Artifact age in seconds, labelled by model
	MoistureLast      prometheus.Gauge         // Most recent moisture prediction
	PiperineLast      prometheus.Gauge         // Most recent piperine prediction
	DriftResidual     prometheus.Gauge         // PCA residual ratio of the last spectrum

	gatherer prometheus.Gatherer
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered with reg, which is also used
// when writing the textfile.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pepper_predictions_total",
			Help: "Total number of successful predictions",
		}),
		FailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pepper_prediction_failures_total",
			Help: "Total number of failed prediction pipelines",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pepper_prediction_latency_seconds",
			Help:    "End-to-end prediction pipeline latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10, 30},
		}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pepper_stage_latency_seconds",
			Help:    "Latency of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"stage"}),
		ModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pepper_model_age_seconds",
			Help: "Age of each model artifact in seconds",
		}, []string{"model"}),
		MoistureLast: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pepper_moisture_prediction",
			Help: "Most recent moisture prediction",
		}),
		PiperineLast: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pepper_piperine_prediction",
			Help: "Most recent piperine prediction",
		}),
		DriftResidual: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pepper_spectrum_residual_ratio",
			Help: "Share of the last mean spectrum outside the PCA subspace",
		}),
		gatherer: reg,
	}
}

// ModelLabel turns a model display name into a label value,
// "Random Forest" becomes "random_forest".
func ModelLabel(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// WriteTextfile writes every registered metric to path. The file is
// replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
