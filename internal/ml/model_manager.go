package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pepper-predict/internal/common"

	"github.com/rs/zerolog/log"
)

// ModelPaths locates the four artifacts.
type ModelPaths struct {
	KMeans string
	PCA    string
	Forest string
	CNN    string
	// ONNXRuntimeLib overrides the onnxruntime shared library location.
	ONNXRuntimeLib string
}

// ModelInfo records where a model came from.
type ModelInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Format   string    `json:"format"`
	ModTime  time.Time `json:"mod_time"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Age is the time since the artifact was last written.
func (mi ModelInfo) Age(now time.Time) time.Duration {
	if mi.ModTime.IsZero() {
		return 0
	}
	return now.Sub(mi.ModTime)
}

// Models is the loaded model chain.
type Models struct {
	Clusterer  *KMeans
	Projection *PCA
	Moisture   Regressor
	Piperine   Regressor
	Info       []ModelInfo
}

// LoadModels loads the artifacts in pipeline order and stops at the first
// failure. Errors name the model that failed.
func LoadModels(paths ModelPaths) (*Models, error) {
	m := &Models{}

	km, err := LoadKMeans(paths.KMeans)
	if err != nil {
		return nil, loadError(common.ModelKMeans, err)
	}
	m.Clusterer = km
	m.record(common.ModelKMeans, paths.KMeans)

	if common.ForegroundCluster < len(km.Centers) {
		log.Debug().
			Int("foreground_cluster", common.ForegroundCluster).
			Floats64("foreground_center", km.Centers[common.ForegroundCluster]).
			Int("clusters", len(km.Centers)).
			Msg("Foreground cluster assumed from training label order")
	} else {
		log.Warn().
			Int("foreground_cluster", common.ForegroundCluster).
			Int("clusters", len(km.Centers)).
			Msg("Foreground cluster index exceeds cluster count, mask will be empty")
	}

	pca, err := LoadPCA(paths.PCA)
	if err != nil {
		return nil, loadError(common.ModelPCA, err)
	}
	m.Projection = pca
	m.record(common.ModelPCA, paths.PCA)

	forest, err := LoadForest(paths.Forest)
	if err != nil {
		return nil, loadError(common.ModelForest, err)
	}
	m.Moisture = forest
	m.record(common.ModelForest, paths.Forest)

	net, err := LoadNeural(paths.CNN, paths.ONNXRuntimeLib)
	if err != nil {
		return nil, loadError(common.ModelCNN, err)
	}
	m.Piperine = net
	m.record(common.ModelCNN, paths.CNN)

	if pca.OutputDim() != forest.NFeatures {
		log.Warn().
			Int("pca_components", pca.OutputDim()).
			Int("forest_features", forest.NFeatures).
			Msg("PCA output does not match forest input, predictions will fail")
	}

	return m, nil
}

// LoadNeural picks the runtime from the file extension: .onnx goes through
// onnxruntime, .json is evaluated in pure Go.
func LoadNeural(path, libPath string) (Regressor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		n, err := NewONNXNetwork(path, libPath)
		if err != nil {
			return nil, err
		}
		return n, nil
	case ".json":
		n, err := LoadNetwork(path)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unsupported network format %q", filepath.Ext(path))
}

func loadError(name string, err error) error {
	return fmt.Errorf("%s model loading error: %w", name, err)
}

func (m *Models) record(name, path string) {
	info := ModelInfo{
		Name:     name,
		Path:     path,
		Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		LoadedAt: time.Now(),
	}
	if st, err := os.Stat(path); err == nil {
		info.ModTime = st.ModTime()
	} else {
		log.Warn().Err(err).Str("model_path", path).Msg("Failed to get model file info")
	}
	m.Info = append(m.Info, info)

	log.Debug().Str("model", name).Str("model_path", path).Msg("Model loaded")
}

// Close releases runtime resources held by the neural model.
func (m *Models) Close() error {
	if m == nil || m.Piperine == nil {
		return nil
	}
	if c, ok := m.Piperine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// readArtifact decodes a JSON model artifact.
func readArtifact(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
