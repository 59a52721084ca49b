// Package pipeline runs the prediction chain for one image pair: load the
// cube, mask it with the clustering model, normalize, reduce to a mean
// spectrum, project it and score it with both regressors.
package pipeline

import (
	"fmt"
	"math"
	"time"

	"pepper-predict/internal/common"
	"pepper-predict/internal/envi"
	"pepper-predict/internal/hsi"
	"pepper-predict/internal/ml"
	"pepper-predict/internal/report"

	"github.com/rs/zerolog"
)

// Stage names used for latency metrics and logs.
const (
	StageLoad      = "load"
	StageMask      = "mask"
	StageNormalize = "normalize"
	StageFeatures  = "features"
	StageMoisture  = "moisture"
	StagePiperine  = "piperine"
)

// MetricsInterface defines the metrics the pipeline reports.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(seconds float64)
	StageLatencyObserve(stage string, seconds float64)
	ResultSet(moisture, piperine float64)
	ModelAgeSet(model string, age time.Duration)
	DriftSet(residualRatio float64)
}

// Pipeline holds the loaded models. It is not safe for concurrent use.
type Pipeline struct {
	models     *ml.Models
	logger     zerolog.Logger
	metrics    MetricsInterface
	band       int
	foreground int
}

// Outcome is the result of one run plus the intermediate vectors, kept for
// the history store.
type Outcome struct {
	Result     report.Result
	Spectrum   []float64
	Components []float64
	Drift      ml.DriftReport
	Foreground int
	Duration   time.Duration
}

// New creates a pipeline over models. metrics may be nil.
func New(models *ml.Models, logger zerolog.Logger, metrics MetricsInterface) *Pipeline {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	now := time.Now()
	for _, info := range models.Info {
		metrics.ModelAgeSet(info.Name, info.Age(now))
	}

	return &Pipeline{
		models:     models,
		logger:     logger,
		metrics:    metrics,
		band:       common.MaskBand,
		foreground: common.ForegroundCluster,
	}
}

// Run processes one image pair. Every failure, including a panic in the
// numeric code, becomes an error result.
func (p *Pipeline) Run(imgPath, hdrPath string) report.Result {
	return p.RunDetailed(imgPath, hdrPath).Result
}

// RunDetailed is Run with the intermediate vectors.
func (p *Pipeline) RunDetailed(imgPath, hdrPath string) (out Outcome) {
	start := time.Now()
	logger := p.logger.With().Str("image", imgPath).Str("header", hdrPath).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Pipeline panicked")
			out.Result = report.Failure(fmt.Errorf("%v", r))
		}

		out.Duration = time.Since(start)
		p.metrics.LatencyObserve(out.Duration.Seconds())
		if out.Result.Success {
			p.metrics.PredictionsInc()
			p.metrics.ResultSet(out.Result.Moisture, out.Result.Piperine)
		} else {
			p.metrics.FailuresInc()
		}
	}()

	moisture, piperine, err := p.run(&out, logger, imgPath, hdrPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Prediction failed")
		out.Result = report.Failure(err)
		return out
	}

	logger.Info().
		Float64("moisture", moisture).
		Float64("piperine", piperine).
		Dur("elapsed", time.Since(start)).
		Msg("Prediction complete")
	out.Result = report.Success(moisture, piperine)
	return out
}

func (p *Pipeline) run(out *Outcome, logger zerolog.Logger, imgPath, hdrPath string) (float64, float64, error) {
	var (
		cube   *hsi.Cube
		header *envi.Header
		err    error
	)
	p.stage(StageLoad, func() {
		cube, header, err = envi.Open(imgPath, hdrPath)
	})
	if err != nil {
		return 0, 0, err
	}
	logger.Debug().
		Int("lines", cube.Lines).
		Int("samples", cube.Samples).
		Int("bands", cube.Bands).
		Str("interleave", string(header.Interleave)).
		Int("data_type", header.DataType).
		Msg("Cube loaded")

	var mask *hsi.Mask
	p.stage(StageMask, func() {
		mask, err = hsi.ForegroundMask(cube, p.models.Clusterer, p.band, p.foreground)
	})
	if err != nil {
		return 0, 0, err
	}
	out.Foreground = mask.Count()
	if out.Foreground == 0 {
		logger.Warn().Msg("Mask selected no pixels, spectrum will be all zeros")
	}
	logger.Debug().Int("foreground_pixels", out.Foreground).Int("pixels", cube.Pixels()).Msg("Mask built")

	var avg []float64
	p.stage(StageNormalize, func() {
		var masked *hsi.Cube
		masked, err = hsi.ApplyMask(cube, mask)
		if err != nil {
			return
		}
		avg = hsi.AverageSpectrum(hsi.MinMaxNormalize(masked.Matrix()))
	})
	if err != nil {
		return 0, 0, err
	}
	out.Spectrum = avg

	var features []float64
	p.stage(StageFeatures, func() {
		features, err = p.models.Projection.Transform(avg)
	})
	if err != nil {
		return 0, 0, err
	}
	out.Components = features
	logger.Debug().Floats64("components", features).Msg("Spectrum projected")

	if drift, err := p.models.Projection.Drift(avg); err == nil {
		out.Drift = drift
		p.metrics.DriftSet(drift.ResidualRatio)
		if drift.Drifted(common.DriftResidualWarn) {
			logger.Warn().
				Float64("residual_ratio", drift.ResidualRatio).
				Int("max_band", drift.MaxBand).
				Float64("max_deviation", drift.MaxDeviation).
				Msg("Spectrum lies outside the training distribution")
		}
	}

	var moisture float64
	p.stage(StageMoisture, func() {
		moisture, err = p.models.Moisture.Predict(features)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("moisture prediction: %w", err)
	}

	var piperine float64
	p.stage(StagePiperine, func() {
		piperine, err = p.models.Piperine.Predict(features)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("piperine prediction: %w", err)
	}

	if !isFinite(moisture) || !isFinite(piperine) {
		return 0, 0, fmt.Errorf("prediction is not finite (moisture=%v, piperine=%v)", moisture, piperine)
	}
	return moisture, piperine, nil
}

func (p *Pipeline) stage(name string, fn func()) {
	start := time.Now()
	fn()
	p.metrics.StageLatencyObserve(name, time.Since(start).Seconds())
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type nopMetrics struct{}

func (nopMetrics) PredictionsInc()                     {}
func (nopMetrics) FailuresInc()                        {}
func (nopMetrics) LatencyObserve(float64)              {}
func (nopMetrics) StageLatencyObserve(string, float64) {}
func (nopMetrics) ResultSet(float64, float64)          {}
func (nopMetrics) ModelAgeSet(string, time.Duration)   {}
func (nopMetrics) DriftSet(float64)                    {}
