package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsWrapper adapts Metrics to the flat method set the pipeline uses.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) FailuresInc() {
	w.m.FailuresTotal.Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) StageLatencyObserve(stage string, seconds float64) {
	w.m.StageLatency.With(prometheus.Labels{"stage": stage}).Observe(seconds)
}

func (w *MetricsWrapper) ResultSet(moisture, piperine float64) {
	w.m.MoistureLast.Set(moisture)
	w.m.PiperineLast.Set(piperine)
}

// ModelAgeSet records the artifact age for a model display name.
func (w *MetricsWrapper) ModelAgeSet(model string, age time.Duration) {
	w.m.ModelAge.With(prometheus.Labels{"model": ModelLabel(model)}).Set(age.Seconds())
}

func (w *MetricsWrapper) DriftSet(residualRatio float64) {
	w.m.DriftResidual.Set(residualRatio)
}
