package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pepper-predict/internal/ml"
	"pepper-predict/internal/pipeline"
	"pepper-predict/internal/report"
	"pepper-predict/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBands = 150

// setupModels writes test models into a temp MODEL_DIR and clears every
// other setting.
func setupModels(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	paths, err := ml.WriteTestModels(dir, testBands)
	require.NoError(t, err)

	for _, key := range []string{"CONFIG_FILE", "KMEANS_MODEL", "PCA_MODEL", "FOREST_MODEL", "ONNX_RUNTIME_LIB", "LOG_FORMAT", "DATA_PATH", "METRICS_FILE"} {
		t.Setenv(key, "")
	}
	t.Setenv("MODEL_DIR", dir)
	t.Setenv("CNN_MODEL", filepath.Base(paths.CNN))
	t.Setenv("LOG_LEVEL", "disabled")
	return dir
}

func TestRun_InvalidArgumentCount(t *testing.T) {
	for _, args := range [][]string{nil, {"a"}, {"a", "b", "c"}} {
		var stdout, stderr bytes.Buffer
		code := run(args, &stdout, &stderr)

		assert.Equal(t, 1, code)
		assert.Equal(t, "{\"error\": \"Invalid number of arguments\"}\n", stderr.String())
		assert.Empty(t, stdout.String())
	}
}

func TestRun_Success(t *testing.T) {
	setupModels(t)
	img, hdr, err := pipeline.WriteTestCube(t.TempDir(), 4, 6, testBands)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	code := run([]string{img, hdr}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.True(t, strings.HasPrefix(out, `{"success": true, "moisture_prediction": `))
	assert.Contains(t, out, `"peperine_prediction": `)

	d, err := report.Parse(stdout.Bytes())
	require.NoError(t, err)
	assert.True(t, d.Success)
	require.NotNil(t, d.Moisture)
	require.NotNil(t, d.Piperine)
}

func TestRun_Idempotent(t *testing.T) {
	setupModels(t)
	img, hdr, err := pipeline.WriteTestCube(t.TempDir(), 3, 3, testBands)
	require.NoError(t, err)

	var first, second bytes.Buffer
	require.Equal(t, 0, run([]string{img, hdr}, &first, &bytes.Buffer{}))
	require.Equal(t, 0, run([]string{img, hdr}, &second, &bytes.Buffer{}))
	assert.Equal(t, first.String(), second.String())
}

func TestRun_MissingHeaderReportsOnStdout(t *testing.T) {
	setupModels(t)
	img, _, err := pipeline.WriteTestCube(t.TempDir(), 2, 2, testBands)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	code := run([]string{img, filepath.Join(t.TempDir(), "nope.hdr")}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	d, err := report.Parse(stdout.Bytes())
	require.NoError(t, err)
	assert.False(t, d.Success)
	assert.NotEmpty(t, d.Error)
	assert.True(t, strings.HasPrefix(stdout.String(), `{"error": `))
}

func TestRun_ModelLoadFailureIsFatal(t *testing.T) {
	dir := setupModels(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "pca_model.json")))

	var stdout, stderr bytes.Buffer
	code := run([]string{"img.bin", "img.hdr"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.True(t, strings.HasPrefix(stderr.String(), `{"error": "PCA model loading error: `), stderr.String())
}

func TestRun_BadConfigIsFatal(t *testing.T) {
	setupModels(t)
	t.Setenv("LOG_FORMAT", "xml")

	var stdout, stderr bytes.Buffer
	code := run([]string{"img.bin", "img.hdr"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "log format")
}

func TestRun_HistoryAndMetrics(t *testing.T) {
	setupModels(t)
	dataDir := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "pepper.prom")
	t.Setenv("DATA_PATH", dataDir)
	t.Setenv("METRICS_FILE", metricsFile)

	img, hdr, err := pipeline.WriteTestCube(t.TempDir(), 3, 4, testBands)
	require.NoError(t, err)

	start := time.Now()
	var stdout bytes.Buffer
	require.Equal(t, 0, run([]string{img, hdr}, &stdout, &bytes.Buffer{}))

	store, err := storage.New(dataDir)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.GetPredictions("sample", start.Add(-time.Second), time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, img, records[0].ImagePath)

	spectra, err := store.GetSpectraInRange("sample", start.Add(-time.Second), time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, spectra, 1)
	assert.Len(t, spectra[0].Spectrum, testBands)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pepper_predictions_total 1")
	assert.Contains(t, string(data), `pepper_model_age_seconds{model="random_forest"}`)
}

func TestRun_HistoryFailureDoesNotChangeResult(t *testing.T) {
	setupModels(t)
	t.Setenv("DATA_PATH", filepath.Join(t.TempDir(), "missing", "dir"))

	img, hdr, err := pipeline.WriteTestCube(t.TempDir(), 2, 2, testBands)
	require.NoError(t, err)

	var stdout bytes.Buffer
	assert.Equal(t, 0, run([]string{img, hdr}, &stdout, &bytes.Buffer{}))
	assert.True(t, strings.HasPrefix(stdout.String(), `{"success": true`))
}
