package hsi

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// thresholdClassifier labels values below cut as 0 and the rest as 1.
type thresholdClassifier struct {
	cut float64
	err error
	// short drops the last label to exercise length checks
	short bool
}

func (c thresholdClassifier) Classify(values []float64) ([]int, error) {
	if c.err != nil {
		return nil, c.err
	}
	labels := make([]int, len(values))
	for i, v := range values {
		if v >= c.cut {
			labels[i] = 1
		}
	}
	if c.short {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}

func rampCube(t *testing.T, lines, samples, bands int) *Cube {
	t.Helper()
	c, err := NewCube(lines, samples, bands)
	require.NoError(t, err)
	for l := 0; l < lines; l++ {
		for s := 0; s < samples; s++ {
			for b := 0; b < bands; b++ {
				c.Set(l, s, b, float64(l*samples+s)+float64(b)/10)
			}
		}
	}
	return c
}

func TestNewCube_InvalidShape(t *testing.T) {
	_, err := NewCube(0, 2, 3)
	assert.Error(t, err)
	_, err = NewCube(2, 2, -1)
	assert.Error(t, err)
}

func TestCube_Band(t *testing.T) {
	c := rampCube(t, 2, 2, 3)

	band, err := c.Band(2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 1.2, 2.2, 3.2}, band, 1e-12)

	_, err = c.Band(3)
	assert.ErrorContains(t, err, "out of bounds")
}

func TestForegroundMask_ShapeForAnyCube(t *testing.T) {
	shapes := [][3]int{{1, 1, 142}, {3, 5, 141}, {7, 2, 200}}
	for _, s := range shapes {
		c := rampCube(t, s[0], s[1], s[2])

		m, err := ForegroundMask(c, thresholdClassifier{cut: 2}, 140, 0)
		require.NoError(t, err)
		assert.Equal(t, s[0], m.Lines)
		assert.Equal(t, s[1], m.Samples)
		assert.Len(t, m.Values, s[0]*s[1])
	}
}

func TestForegroundMask_Labels(t *testing.T) {
	c := rampCube(t, 2, 2, 3)

	m, err := ForegroundMask(c, thresholdClassifier{cut: 2}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false, false}, m.Values)
	assert.True(t, m.At(0, 1))
	assert.False(t, m.At(1, 0))
	assert.Equal(t, 2, m.Count())

	inverted, err := ForegroundMask(c, thresholdClassifier{cut: 2}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, true}, inverted.Values)
}

func TestForegroundMask_Errors(t *testing.T) {
	c := rampCube(t, 2, 2, 3)

	_, err := ForegroundMask(c, thresholdClassifier{}, 140, 0)
	assert.ErrorContains(t, err, "out of bounds")

	_, err = ForegroundMask(c, thresholdClassifier{err: errors.New("boom")}, 0, 0)
	assert.ErrorContains(t, err, "boom")

	_, err = ForegroundMask(c, thresholdClassifier{short: true}, 0, 0)
	assert.ErrorContains(t, err, "labels")
}

func TestApplyMask(t *testing.T) {
	c := rampCube(t, 1, 2, 2)
	m := &Mask{Lines: 1, Samples: 2, Values: []bool{false, true}}

	out, err := ApplyMask(c, m)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1.1}, out.Data)
	// source untouched
	assert.Equal(t, []float64{0, 0.1, 1, 1.1}, c.Data)

	_, err = ApplyMask(c, &Mask{Lines: 2, Samples: 2, Values: make([]bool, 4)})
	assert.ErrorContains(t, err, "does not match")
}

func TestMinMaxNormalize_Bounded(t *testing.T) {
	m := mat.NewDense(4, 2, []float64{
		-3, 10,
		1, 20,
		5, 15,
		0, 40,
	})

	out := MinMaxNormalize(m)
	rows, cols := out.Dims()
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < rows; i++ {
			v := out.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		assert.Equal(t, 0.0, lo)
		assert.Equal(t, 1.0, hi)
	}
	assert.InDelta(t, 0.5, out.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0/6, out.At(2, 1), 1e-12)
	// input untouched
	assert.Equal(t, -3.0, m.At(0, 0))
}

func TestMinMaxNormalize_ConstantChannelIsZero(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{
		7, 1,
		7, 2,
		7, 3,
	})

	out := MinMaxNormalize(m)
	for i := 0; i < 3; i++ {
		v := out.At(i, 0)
		assert.False(t, math.IsNaN(v), "constant channel must not produce NaN")
		assert.Equal(t, 0.0, v)
	}
}

func TestMinMaxNormalize_MaskedZerosSetMin(t *testing.T) {
	// Background zeros pull the min down even when all foreground values are positive.
	m := mat.NewDense(3, 1, []float64{0, 4, 8})

	out := MinMaxNormalize(m)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out), 1e-12)
}

func TestAverageSpectrum(t *testing.T) {
	c := rampCube(t, 2, 3, 5)

	avg := AverageSpectrum(c.Matrix())
	assert.Len(t, avg, 5)
	for b, v := range avg {
		assert.InDelta(t, 2.5+float64(b)/10, v, 1e-12)
	}
}

func TestPipelineStages_LengthEqualsBands(t *testing.T) {
	c := rampCube(t, 4, 4, 150)

	m, err := ForegroundMask(c, thresholdClassifier{cut: 22}, 140, 0)
	require.NoError(t, err)
	masked, err := ApplyMask(c, m)
	require.NoError(t, err)

	avg := AverageSpectrum(MinMaxNormalize(masked.Matrix()))
	assert.Len(t, avg, 150)
	for _, v := range avg {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
