package ml

import (
	"errors"
	"fmt"
	"math"
)

// KMeans assigns samples to the nearest of a fixed set of cluster centers.
type KMeans struct {
	Centers [][]float64 `json:"cluster_centers"`
}

// LoadKMeans reads a k-means artifact.
func LoadKMeans(path string) (*KMeans, error) {
	var km KMeans
	if err := readArtifact(path, &km); err != nil {
		return nil, err
	}
	if err := km.validate(); err != nil {
		return nil, err
	}
	return &km, nil
}

func (km *KMeans) validate() error {
	if len(km.Centers) == 0 {
		return fmt.Errorf("k-means model has no cluster centers")
	}
	dim := len(km.Centers[0])
	if dim == 0 {
		return fmt.Errorf("k-means cluster centers are empty")
	}
	for i, c := range km.Centers {
		if len(c) != dim {
			return fmt.Errorf("cluster center %d has %d features, expected %d", i, len(c), dim)
		}
	}
	return nil
}

// Features is the dimensionality of each center.
func (km *KMeans) Features() int {
	return len(km.Centers[0])
}

// Predict returns the index of the nearest center for each sample. Ties go
// to the lowest index.
func (km *KMeans) Predict(samples [][]float64) ([]int, error) {
	labels := make([]int, len(samples))
	for i, x := range samples {
		if len(x) != km.Features() {
			return nil, fmt.Errorf("sample %d has %d features, but KMeans is expecting %d features as input", i, len(x), km.Features())
		}
		if err := checkFinite(x); err != nil {
			return nil, err
		}
		labels[i] = km.nearest(x)
	}
	return labels, nil
}

// Classify labels scalar samples. It only works for single-feature models.
func (km *KMeans) Classify(values []float64) ([]int, error) {
	if km.Features() != 1 {
		return nil, fmt.Errorf("X has 1 features, but KMeans is expecting %d features as input", km.Features())
	}
	if err := checkFinite(values); err != nil {
		return nil, err
	}
	labels := make([]int, len(values))
	x := make([]float64, 1)
	for i, v := range values {
		x[0] = v
		labels[i] = km.nearest(x)
	}
	return labels, nil
}

func (km *KMeans) nearest(x []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range km.Centers {
		var d float64
		for j := range c {
			diff := x[j] - c[j]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// checkFinite rejects inputs a distance or threshold comparison would
// silently misplace.
func checkFinite(values []float64) error {
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			return errors.New("input X contains NaN")
		case math.IsInf(v, 0):
			return errors.New("input X contains infinity")
		}
	}
	return nil
}
