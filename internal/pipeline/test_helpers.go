package pipeline

import (
	"path/filepath"
	"sync"
	"time"

	"pepper-predict/internal/common"
	"pepper-predict/internal/envi"
	"pepper-predict/internal/hsi"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    int
	latencySum  float64
	stages      map[string]int
	moisture    float64
	piperine    float64
	modelAges   map[string]time.Duration
	drift       float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) FailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) StageLatencyObserve(stage string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stages == nil {
		m.stages = make(map[string]int)
	}
	m.stages[stage]++
}

func (m *MockMetrics) ResultSet(moisture, piperine float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moisture = moisture
	m.piperine = piperine
}

func (m *MockMetrics) ModelAgeSet(model string, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modelAges == nil {
		m.modelAges = make(map[string]time.Duration)
	}
	m.modelAges[model] = age
}

func (m *MockMetrics) DriftSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drift = v
}

// Counts returns predictions and failures recorded so far.
func (m *MockMetrics) Counts() (predictions, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures
}

// StageCount returns how often a stage was timed.
func (m *MockMetrics) StageCount(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stages[stage]
}

// Drift returns the last residual ratio.
func (m *MockMetrics) Drift() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drift
}

// ModelAges returns the recorded artifact ages by model name.
func (m *MockMetrics) ModelAges() map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Duration, len(m.modelAges))
	for k, v := range m.modelAges {
		out[k] = v
	}
	return out
}

// WriteTestCube writes a float32 ENVI cube into dir and returns the data
// and header paths. The left half of every line reads 0.1 in the mask band
// and the right half 0.9, which the models from ml.WriteTestModels split
// into foreground and background. Other bands carry a smooth ramp.
func WriteTestCube(dir string, lines, samples, bands int) (string, string, error) {
	cube, err := hsi.NewCube(lines, samples, bands)
	if err != nil {
		return "", "", err
	}

	for l := 0; l < lines; l++ {
		for s := 0; s < samples; s++ {
			for b := 0; b < bands; b++ {
				v := float64((l*7+s*3+b)%50) / 64
				if b == common.MaskBand {
					v = 0.9
					if s < samples/2 {
						v = 0.1
					}
				}
				cube.Set(l, s, b, v)
			}
		}
	}

	img := filepath.Join(dir, "sample.bin")
	hdr := filepath.Join(dir, "sample.hdr")
	if err := envi.Save(img, hdr, cube, envi.BIL); err != nil {
		return "", "", err
	}
	return img, hdr, nil
}
