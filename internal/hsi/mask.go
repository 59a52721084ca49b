package hsi

import "fmt"

// PixelClassifier assigns a cluster label to each scalar pixel value.
type PixelClassifier interface {
	Classify(values []float64) ([]int, error)
}

// Mask is a lines x samples boolean image, row-major.
type Mask struct {
	Lines   int
	Samples int
	Values  []bool
}

func (m *Mask) At(line, sample int) bool {
	return m.Values[line*m.Samples+sample]
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Values {
		if v {
			n++
		}
	}
	return n
}

// ForegroundMask classifies every pixel of one band and marks those whose
// label equals foreground.
func ForegroundMask(c *Cube, clf PixelClassifier, band, foreground int) (*Mask, error) {
	values, err := c.Band(band)
	if err != nil {
		return nil, err
	}

	labels, err := clf.Classify(values)
	if err != nil {
		return nil, fmt.Errorf("classify band %d: %w", band, err)
	}
	if len(labels) != len(values) {
		return nil, fmt.Errorf("classifier returned %d labels for %d pixels", len(labels), len(values))
	}

	m := &Mask{Lines: c.Lines, Samples: c.Samples, Values: make([]bool, len(labels))}
	for i, l := range labels {
		m.Values[i] = l == foreground
	}
	return m, nil
}

// ApplyMask returns a copy of c with every band zeroed where m is false.
func ApplyMask(c *Cube, m *Mask) (*Cube, error) {
	if m.Lines != c.Lines || m.Samples != c.Samples {
		return nil, fmt.Errorf("mask shape (%d, %d) does not match cube shape (%d, %d)", m.Lines, m.Samples, c.Lines, c.Samples)
	}

	out := c.Clone()
	for p, keep := range m.Values {
		if keep {
			continue
		}
		row := out.Data[p*out.Bands : (p+1)*out.Bands]
		for i := range row {
			row[i] = 0
		}
	}
	return out, nil
}
