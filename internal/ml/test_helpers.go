package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TestComponents is the PCA width used by WriteTestModels.
const TestComponents = 3

// WriteTestModels writes a small, deterministic model chain for cubes with
// the given band count into dir. The neural model uses the JSON layer
// format so no ONNX runtime is needed.
func WriteTestModels(dir string, bands int) (ModelPaths, error) {
	paths := ModelPaths{
		KMeans: filepath.Join(dir, "kmeans_model.json"),
		PCA:    filepath.Join(dir, "pca_model.json"),
		Forest: filepath.Join(dir, "random_forest_moisture_model.json"),
		CNN:    filepath.Join(dir, "piperine_prediction_cnn_model.json"),
	}

	km := KMeans{Centers: [][]float64{{0.2}, {0.8}}}

	pca := PCA{Mean: make([]float64, bands)}
	for j := range pca.Mean {
		pca.Mean[j] = 0.25
	}
	for i := 0; i < TestComponents; i++ {
		row := make([]float64, bands)
		for j := range row {
			row[j] = float64((i+j)%5-2) / 10
		}
		pca.Components = append(pca.Components, row)
	}

	forest := Forest{
		NFeatures: TestComponents,
		Trees: []Tree{
			{
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{0, -2, -2},
				Threshold:     []float64{0, -2, -2},
				Value:         []float64{12, 10, 14},
			},
			{
				ChildrenLeft:  []int{-1},
				ChildrenRight: []int{-1},
				Feature:       []int{-2},
				Threshold:     []float64{-2},
				Value:         []float64{13},
			},
		},
	}

	net := NetworkSpec{
		InputShape: []int{TestComponents},
		Layers: []LayerSpec{
			{
				Type:       "dense",
				Units:      4,
				Activation: "relu",
				Kernel: []float64{
					0.5, -0.25, 0.1, 0.3,
					-0.4, 0.2, 0.6, -0.1,
					0.05, 0.3, -0.2, 0.4,
				},
				Bias: []float64{0.1, 0.1, 0, -0.05},
			},
			{Type: "dropout", Rate: 0.2},
			{
				Type:   "dense",
				Units:  1,
				Kernel: []float64{0.7, -0.3, 0.5, 0.2},
				Bias:   []float64{3.5},
			},
		},
	}

	artifacts := []struct {
		path string
		v    interface{}
	}{
		{paths.KMeans, km},
		{paths.PCA, pca},
		{paths.Forest, forest},
		{paths.CNN, net},
	}
	for _, a := range artifacts {
		if err := writeJSON(a.path, a.v); err != nil {
			return ModelPaths{}, err
		}
	}

	return paths, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o600)
}
