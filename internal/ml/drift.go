package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DriftReport compares one spectrum with the training distribution the
// PCA was fit on.
type DriftReport struct {
	// MaxDeviation is the largest |x - mean| over all bands, at MaxBand.
	MaxDeviation float64 `json:"max_deviation"`
	MaxBand      int     `json:"max_band"`
	// MeanDeviation is the mean |x - mean|.
	MeanDeviation float64 `json:"mean_deviation"`
	// ResidualRatio is ||residual|| / ||x - mean|| where the residual is
	// the part of the centered spectrum the components cannot reconstruct.
	// Values near 1 mean the sample lies outside the training subspace.
	ResidualRatio float64 `json:"residual_ratio"`
}

// Drifted reports whether the residual ratio exceeds threshold.
func (d DriftReport) Drifted(threshold float64) bool {
	return d.ResidualRatio > threshold
}

// Drift measures how far x lies from the training mean and from the
// subspace spanned by the components.
func (p *PCA) Drift(x []float64) (DriftReport, error) {
	if p.components == nil {
		if err := p.init(); err != nil {
			return DriftReport{}, err
		}
	}
	if len(x) != p.InputDim() {
		return DriftReport{}, fmt.Errorf("X has %d features, but PCA is expecting %d features as input", len(x), p.InputDim())
	}

	centered := make([]float64, len(x))
	floats.SubTo(centered, x, p.Mean)

	abs := make([]float64, len(centered))
	for i, v := range centered {
		abs[i] = math.Abs(v)
	}
	report := DriftReport{
		MaxBand:       floats.MaxIdx(abs),
		MeanDeviation: floats.Sum(abs) / float64(len(abs)),
	}
	report.MaxDeviation = abs[report.MaxBand]

	norm := floats.Norm(centered, 2)
	if norm == 0 {
		return report, nil
	}

	c := mat.NewVecDense(len(centered), centered)
	var proj, recon mat.VecDense
	proj.MulVec(p.components, c)
	recon.MulVec(p.components.T(), &proj)

	var residual mat.VecDense
	residual.SubVec(c, &recon)
	report.ResidualRatio = mat.Norm(&residual, 2) / norm
	return report, nil
}
