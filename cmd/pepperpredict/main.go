package main

import (
	"io"
	"os"
	"strings"
	"time"

	"pepper-predict/internal/cfg"
	"pepper-predict/internal/common"
	"pepper-predict/internal/metrics"
	"pepper-predict/internal/ml"
	"pepper-predict/internal/pipeline"
	"pepper-predict/internal/report"
	"pepper-predict/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run scores one image pair and returns the exit status. Bad arguments,
// configuration or model loading write an error line to stderr and return
// 1. Anything that fails after that is reported on stdout with status 0.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		return fatal(stderr, report.FailureMessage(common.ErrMsgInvalidArgs))
	}
	imgPath, hdrPath := args[0], args[1]

	c, err := cfg.Load()
	if err != nil {
		return fatal(stderr, report.Failure(err))
	}
	setupLogging(c, stderr)

	models, err := ml.LoadModels(modelPaths(c))
	if err != nil {
		log.Error().Err(err).Msg("Model loading failed")
		return fatal(stderr, report.Failure(err))
	}
	defer func() {
		if err := models.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release model resources")
		}
	}()

	m := metrics.New()
	p := pipeline.New(models, log.Logger, metrics.NewWrapper(m))

	out := p.RunDetailed(imgPath, hdrPath)
	if err := report.Write(stdout, out.Result); err != nil {
		// only a non-finite value can fail here, and the pipeline rejects those
		log.Error().Err(err).Msg("Failed to write result")
		report.Write(stdout, report.Failure(err))
	}

	recordHistory(c, imgPath, hdrPath, out)
	writeMetrics(c, m)
	return 0
}

func fatal(stderr io.Writer, r report.Result) int {
	report.Write(stderr, r)
	return 1
}

func setupLogging(c cfg.Settings, stderr io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(c.LogFormat, "console") {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(stderr).With().Timestamp().Logger()
}

func modelPaths(c cfg.Settings) ml.ModelPaths {
	return ml.ModelPaths{
		KMeans:         c.ResolveModelPath(c.KMeansModel),
		PCA:            c.ResolveModelPath(c.PCAModel),
		Forest:         c.ResolveModelPath(c.ForestModel),
		CNN:            c.ResolveModelPath(c.CNNModel),
		ONNXRuntimeLib: c.ONNXRuntimeLib,
	}
}

// recordHistory appends the run to the history store when DATA_PATH is
// configured. Failures are logged only.
func recordHistory(c cfg.Settings, imgPath, hdrPath string, out pipeline.Outcome) {
	if c.DataPath == "" {
		return
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Str("data_path", c.DataPath).Msg("Failed to open history store")
		return
	}
	defer store.Close()

	now := time.Now()
	sample := storage.SampleName(imgPath)
	rec := storage.PredictionRecord{
		Sample:     sample,
		ImagePath:  imgPath,
		HeaderPath: hdrPath,
		Success:    out.Result.Success,
		Moisture:   out.Result.Moisture,
		Piperine:   out.Result.Piperine,
		Error:      out.Result.Err,
		Duration:   out.Duration.Seconds(),
		Ts:         now,
	}
	if err := store.StorePrediction(rec); err != nil {
		log.Warn().Err(err).Msg("Failed to store prediction")
	}

	if !out.Result.Success {
		return
	}
	spectrum := storage.SpectrumRecord{
		Sample:     sample,
		Timestamp:  now,
		Pixels:     out.Foreground,
		Spectrum:   out.Spectrum,
		Components: out.Components,
	}
	if err := store.StoreSpectrum(spectrum); err != nil {
		log.Warn().Err(err).Msg("Failed to store spectrum")
	}
}

func writeMetrics(c cfg.Settings, m *metrics.Metrics) {
	if c.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(c.MetricsFile); err != nil {
		log.Warn().Err(err).Str("metrics_file", c.MetricsFile).Msg("Failed to write metrics")
	}
}
