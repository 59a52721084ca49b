package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PCA projects vectors onto pre-fit principal components.
type PCA struct {
	Mean              []float64   `json:"mean"`
	Components        [][]float64 `json:"components"`
	ExplainedVariance []float64   `json:"explained_variance"`
	Whiten            bool        `json:"whiten"`

	components *mat.Dense
}

// LoadPCA reads a PCA artifact.
func LoadPCA(path string) (*PCA, error) {
	var p PCA
	if err := readArtifact(path, &p); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *PCA) init() error {
	n := len(p.Mean)
	if n == 0 {
		return fmt.Errorf("PCA model has empty mean")
	}
	k := len(p.Components)
	if k == 0 {
		return fmt.Errorf("PCA model has no components")
	}

	data := make([]float64, 0, k*n)
	for i, c := range p.Components {
		if len(c) != n {
			return fmt.Errorf("component %d has %d features, expected %d", i, len(c), n)
		}
		data = append(data, c...)
	}

	if p.Whiten {
		if len(p.ExplainedVariance) != k {
			return fmt.Errorf("whitening needs %d explained variances, got %d", k, len(p.ExplainedVariance))
		}
		for i, v := range p.ExplainedVariance {
			if v <= 0 {
				return fmt.Errorf("explained variance %d must be positive, got %g", i, v)
			}
		}
	}

	p.components = mat.NewDense(k, n, data)
	return nil
}

// InputDim is the expected input length.
func (p *PCA) InputDim() int {
	return len(p.Mean)
}

// OutputDim is the number of components.
func (p *PCA) OutputDim() int {
	return len(p.Components)
}

// Transform computes (x - mean) . components^T, whitened when configured.
func (p *PCA) Transform(x []float64) ([]float64, error) {
	if p.components == nil {
		if err := p.init(); err != nil {
			return nil, err
		}
	}
	if len(x) != p.InputDim() {
		return nil, fmt.Errorf("X has %d features, but PCA is expecting %d features as input", len(x), p.InputDim())
	}

	centered := mat.NewVecDense(len(x), nil)
	centered.SubVec(mat.NewVecDense(len(x), x), mat.NewVecDense(len(p.Mean), p.Mean))

	var out mat.VecDense
	out.MulVec(p.components, centered)

	res := make([]float64, out.Len())
	for i := range res {
		res[i] = out.AtVec(i)
		if p.Whiten {
			res[i] /= math.Sqrt(p.ExplainedVariance[i])
		}
	}
	return res, nil
}
