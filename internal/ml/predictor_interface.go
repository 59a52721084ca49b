// Package ml provides the pre-trained models used to score pepper samples:
// a k-means pixel clusterer, a PCA projection, a random forest moisture
// regressor and a neural piperine regressor (ONNX runtime or a pure-Go
// layer network).
//
// Models are trained elsewhere and exported to plain artifacts; this package
// only loads and evaluates them.
package ml

// Regressor maps a feature vector to a single scalar.
type Regressor interface {
	// Predict returns the model output for one sample.
	Predict(features []float64) (float64, error)
}
