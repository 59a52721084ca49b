package cfg

import (
	"strings"
	"testing"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		KMeansModel: "kmeans_model.json",
		PCAModel:    "pca_model.json",
		ForestModel: "random_forest_moisture_model.json",
		CNNModel:    "piperine_prediction_cnn_model.onnx",
		LogLevel:    "warn",
		LogFormat:   "json",
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	if err := validateSettings(createValidSettings()); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		errPart string
	}{
		{"empty kmeans path", func(s *Settings) { s.KMeansModel = "" }, "KMeans model path"},
		{"blank pca path", func(s *Settings) { s.PCAModel = "   " }, "PCA model path"},
		{"empty forest path", func(s *Settings) { s.ForestModel = "" }, "Random Forest model path"},
		{"empty cnn path", func(s *Settings) { s.CNNModel = "" }, "CNN model path"},
		{"bad log level", func(s *Settings) { s.LogLevel = "verbose" }, "log level"},
		{"bad log format", func(s *Settings) { s.LogFormat = "xml" }, "log format"},
		{"bad metrics file", func(s *Settings) { s.MetricsFile = "out.txt" }, ".prom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("expected error to mention %q, got %v", tt.errPart, err)
			}
		})
	}
}

func TestValidateSettings_CaseInsensitiveLogOptions(t *testing.T) {
	settings := createValidSettings()
	settings.LogLevel = "DEBUG"
	settings.LogFormat = "Console"

	if err := validateSettings(settings); err != nil {
		t.Errorf("expected mixed-case log options to pass, got %v", err)
	}
}
