// Package hsi holds the in-memory hyperspectral cube and the image-side
// stages of the pipeline: foreground masking, per-channel normalization and
// spectrum averaging.
package hsi

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Cube is a lines x samples x bands reflectance image stored band
// interleaved by pixel, so Data[(line*Samples+sample)*Bands+band].
type Cube struct {
	Lines   int
	Samples int
	Bands   int
	Data    []float64
}

// NewCube allocates a zeroed cube.
func NewCube(lines, samples, bands int) (*Cube, error) {
	if lines <= 0 || samples <= 0 || bands <= 0 {
		return nil, fmt.Errorf("invalid cube shape (%d, %d, %d)", lines, samples, bands)
	}
	return &Cube{
		Lines:   lines,
		Samples: samples,
		Bands:   bands,
		Data:    make([]float64, lines*samples*bands),
	}, nil
}

// Shape returns (lines, samples, bands).
func (c *Cube) Shape() (int, int, int) {
	return c.Lines, c.Samples, c.Bands
}

// Pixels is the number of spatial positions.
func (c *Cube) Pixels() int {
	return c.Lines * c.Samples
}

func (c *Cube) At(line, sample, band int) float64 {
	return c.Data[(line*c.Samples+sample)*c.Bands+band]
}

func (c *Cube) Set(line, sample, band int, v float64) {
	c.Data[(line*c.Samples+sample)*c.Bands+band] = v
}

// Band copies one spectral band out in row-major pixel order.
func (c *Cube) Band(band int) ([]float64, error) {
	if band < 0 || band >= c.Bands {
		return nil, fmt.Errorf("band index %d is out of bounds for cube with %d bands", band, c.Bands)
	}
	out := make([]float64, c.Pixels())
	for p := range out {
		out[p] = c.Data[p*c.Bands+band]
	}
	return out, nil
}

// Matrix views the cube as a pixels x bands matrix. The matrix shares
// storage with the cube.
func (c *Cube) Matrix() *mat.Dense {
	return mat.NewDense(c.Pixels(), c.Bands, c.Data)
}

// Clone returns a deep copy.
func (c *Cube) Clone() *Cube {
	data := make([]float64, len(c.Data))
	copy(data, c.Data)
	return &Cube{Lines: c.Lines, Samples: c.Samples, Bands: c.Bands, Data: data}
}
