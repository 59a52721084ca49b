package hsi

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinMaxNormalize rescales every column of a pixels x bands matrix into
// [0, 1] using that column's own min and max. A column with zero range is
// shifted by its min and left unscaled, so it becomes all zeros.
func MinMaxNormalize(m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Copy(m)

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, out)
		lo, hi := floats.Min(col), floats.Max(col)

		floats.AddConst(-lo, col)
		if r := hi - lo; r != 0 {
			for i := range col {
				col[i] /= r
			}
		}
		out.SetCol(j, col)
	}
	return out
}

// AverageSpectrum is the per-band mean over all pixels.
func AverageSpectrum(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	avg := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		avg[j] = stat.Mean(col, nil)
	}
	return avg
}
