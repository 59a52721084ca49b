package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pepper-predict/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds the ambient configuration. The image pair to score is
// never configured here; it always comes from the command line.
type Settings struct {
	ModelDir       string
	KMeansModel    string
	PCAModel       string
	ForestModel    string
	CNNModel       string
	ONNXRuntimeLib string
	LogLevel       string
	LogFormat      string
	DataPath       string
	MetricsFile    string
}

type ConfigFile struct {
	Models struct {
		Dir            string `yaml:"dir"`
		KMeans         string `yaml:"kmeans"`
		PCA            string `yaml:"pca"`
		Forest         string `yaml:"forest"`
		CNN            string `yaml:"cnn"`
		ONNXRuntimeLib string `yaml:"onnxRuntimeLib"`
	} `yaml:"models"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		ModelDir:       getEnvOrDefault(common.EnvModelDir, config.Models.Dir),
		KMeansModel:    getEnvOrDefault(common.EnvKMeansModel, orDefault(config.Models.KMeans, common.DefaultKMeansModel)),
		PCAModel:       getEnvOrDefault(common.EnvPCAModel, orDefault(config.Models.PCA, common.DefaultPCAModel)),
		ForestModel:    getEnvOrDefault(common.EnvForestModel, orDefault(config.Models.Forest, common.DefaultForestModel)),
		CNNModel:       getEnvOrDefault(common.EnvCNNModel, orDefault(config.Models.CNN, common.DefaultCNNModel)),
		ONNXRuntimeLib: getEnvOrDefault(common.EnvONNXRuntimeLib, config.Models.ONNXRuntimeLib),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		MetricsFile:    getEnvOrDefault(common.EnvMetricsFile, config.System.MetricsFile),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelDir:       os.Getenv(common.EnvModelDir),
		KMeansModel:    getEnvOrDefault(common.EnvKMeansModel, common.DefaultKMeansModel),
		PCAModel:       getEnvOrDefault(common.EnvPCAModel, common.DefaultPCAModel),
		ForestModel:    getEnvOrDefault(common.EnvForestModel, common.DefaultForestModel),
		CNNModel:       getEnvOrDefault(common.EnvCNNModel, common.DefaultCNNModel),
		ONNXRuntimeLib: os.Getenv(common.EnvONNXRuntimeLib),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		MetricsFile:    os.Getenv(common.EnvMetricsFile),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ResolveModelPath joins a relative model path onto ModelDir. Absolute
// paths are returned unchanged.
func (s *Settings) ResolveModelPath(p string) string {
	if filepath.IsAbs(p) || s.ModelDir == "" {
		return p
	}
	return filepath.Join(s.ModelDir, p)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// validateSettings rejects empty model paths and unknown logging options
func validateSettings(settings *Settings) error {
	models := map[string]string{
		common.ModelKMeans: settings.KMeansModel,
		common.ModelPCA:    settings.PCAModel,
		common.ModelForest: settings.ForestModel,
		common.ModelCNN:    settings.CNNModel,
	}
	for name, p := range models {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s model path cannot be empty", name)
		}
	}

	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	switch strings.ToLower(settings.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	if settings.MetricsFile != "" && filepath.Ext(settings.MetricsFile) != ".prom" {
		return fmt.Errorf("metrics file must have a .prom extension, got %s", settings.MetricsFile)
	}

	return nil
}
