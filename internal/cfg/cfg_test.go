package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.KMeansModel != "kmeans_model.json" {
					t.Errorf("expected default KMeansModel, got %s", settings.KMeansModel)
				}
				if settings.PCAModel != "pca_model.json" {
					t.Errorf("expected default PCAModel, got %s", settings.PCAModel)
				}
				if settings.ForestModel != "random_forest_moisture_model.json" {
					t.Errorf("expected default ForestModel, got %s", settings.ForestModel)
				}
				if settings.CNNModel != "piperine_prediction_cnn_model.onnx" {
					t.Errorf("expected default CNNModel, got %s", settings.CNNModel)
				}
				if settings.LogLevel != "warn" {
					t.Errorf("expected default LogLevel warn, got %s", settings.LogLevel)
				}
				if settings.DataPath != "" || settings.MetricsFile != "" {
					t.Errorf("expected optional sinks to be disabled, got %q %q", settings.DataPath, settings.MetricsFile)
				}
			},
		},
		{
			name: "custom model paths",
			envVars: map[string]string{
				"MODEL_DIR":    "/opt/models",
				"CNN_MODEL":    "net.json",
				"LOG_LEVEL":    "debug",
				"LOG_FORMAT":   "console",
				"METRICS_FILE": "/var/lib/node_exporter/pepper.prom",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelDir != "/opt/models" {
					t.Errorf("expected ModelDir /opt/models, got %s", settings.ModelDir)
				}
				if settings.CNNModel != "net.json" {
					t.Errorf("expected CNNModel net.json, got %s", settings.CNNModel)
				}
				if settings.LogFormat != "console" {
					t.Errorf("expected LogFormat console, got %s", settings.LogFormat)
				}
			},
		},
		{
			name:    "invalid log level",
			envVars: map[string]string{"LOG_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name:    "invalid metrics file extension",
			envVars: map[string]string{"METRICS_FILE": "metrics.txt"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
models:
  dir: "/srv/pepper"
  kmeans: "km.json"
  cnn: "cnn.onnx"
  onnxRuntimeLib: "/usr/lib/libonnxruntime.so"
logging:
  level: "info"
system:
  dataPath: "/srv/pepper/history"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Run("yaml values", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", configPath)

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.ModelDir != "/srv/pepper" {
			t.Errorf("expected ModelDir from yaml, got %s", settings.ModelDir)
		}
		if settings.KMeansModel != "km.json" {
			t.Errorf("expected KMeansModel from yaml, got %s", settings.KMeansModel)
		}
		if settings.PCAModel != "pca_model.json" {
			t.Errorf("expected default PCAModel when yaml omits it, got %s", settings.PCAModel)
		}
		if settings.ONNXRuntimeLib != "/usr/lib/libonnxruntime.so" {
			t.Errorf("expected ONNXRuntimeLib from yaml, got %s", settings.ONNXRuntimeLib)
		}
		if settings.LogLevel != "info" {
			t.Errorf("expected LogLevel info, got %s", settings.LogLevel)
		}
		if settings.LogFormat != "json" {
			t.Errorf("expected default LogFormat json, got %s", settings.LogFormat)
		}
		if settings.DataPath != "/srv/pepper/history" {
			t.Errorf("expected DataPath from yaml, got %s", settings.DataPath)
		}
	})

	t.Run("env overrides yaml", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", configPath)
		t.Setenv("KMEANS_MODEL", "override.json")
		t.Setenv("LOG_LEVEL", "error")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.KMeansModel != "override.json" {
			t.Errorf("expected env override for KMeansModel, got %s", settings.KMeansModel)
		}
		if settings.LogLevel != "error" {
			t.Errorf("expected env override for LogLevel, got %s", settings.LogLevel)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(tempDir, "missing.yaml"))

		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		clearTestEnv(t)
		badPath := filepath.Join(tempDir, "bad.yaml")
		if err := os.WriteFile(badPath, []byte("models: [unterminated"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("CONFIG_FILE", badPath)

		if _, err := Load(); err == nil {
			t.Error("expected error for malformed config file")
		}
	})
}

func TestResolveModelPath(t *testing.T) {
	settings := Settings{ModelDir: "/models"}

	if got := settings.ResolveModelPath("pca_model.json"); got != filepath.Join("/models", "pca_model.json") {
		t.Errorf("expected path joined onto ModelDir, got %s", got)
	}
	if got := settings.ResolveModelPath("/abs/pca.json"); got != "/abs/pca.json" {
		t.Errorf("expected absolute path unchanged, got %s", got)
	}

	empty := Settings{}
	if got := empty.ResolveModelPath("pca_model.json"); got != "pca_model.json" {
		t.Errorf("expected relative path unchanged without ModelDir, got %s", got)
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "MODEL_DIR", "KMEANS_MODEL", "PCA_MODEL", "FOREST_MODEL",
		"CNN_MODEL", "ONNX_RUNTIME_LIB", "LOG_LEVEL", "LOG_FORMAT", "DATA_PATH",
		"METRICS_FILE",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
