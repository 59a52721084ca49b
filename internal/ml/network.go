package ml

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// tensor is a steps x channels activation, row-major. A flat vector is one
// step with n channels.
type tensor struct {
	steps    int
	channels int
	data     []float64
}

type shape struct {
	steps    int
	channels int
}

func (s shape) size() int { return s.steps * s.channels }

type layer interface {
	outputShape(in shape) (shape, error)
	forward(in tensor) tensor
}

// LayerSpec is the serialized form of one layer.
type LayerSpec struct {
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	Units       int       `json:"units,omitempty"`
	Filters     int       `json:"filters,omitempty"`
	KernelSize  int       `json:"kernel_size,omitempty"`
	Padding     string    `json:"padding,omitempty"`
	PoolSize    int       `json:"pool_size,omitempty"`
	Strides     int       `json:"strides,omitempty"`
	TargetShape []int     `json:"target_shape,omitempty"`
	Activation  string    `json:"activation,omitempty"`
	Kernel      []float64 `json:"kernel,omitempty"`
	Bias        []float64 `json:"bias,omitempty"`
	Rate        float64   `json:"rate,omitempty"`
}

// NetworkSpec is the serialized network: an input shape and a layer stack.
type NetworkSpec struct {
	InputShape []int       `json:"input_shape"`
	Layers     []LayerSpec `json:"layers"`
}

// Network is a feed-forward layer stack evaluated in pure Go. Kernels are
// stored flattened in the layout Keras uses: dense (in, units), conv1d
// (kernel_size, in_channels, filters).
type Network struct {
	input  shape
	layers []layer
	names  []string
}

// LoadNetwork reads a JSON network artifact.
func LoadNetwork(path string) (*Network, error) {
	var spec NetworkSpec
	if err := readArtifact(path, &spec); err != nil {
		return nil, err
	}
	return NewNetwork(spec)
}

// NewNetwork builds and shape-checks a network.
func NewNetwork(spec NetworkSpec) (*Network, error) {
	in, err := inputShape(spec.InputShape)
	if err != nil {
		return nil, err
	}
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("network has no layers")
	}

	n := &Network{input: in}
	cur := in
	for i, ls := range spec.Layers {
		l, err := buildLayer(ls, cur)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, ls.Type, err)
		}
		next, err := l.outputShape(cur)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, ls.Type, err)
		}
		n.layers = append(n.layers, l)
		n.names = append(n.names, ls.Type)
		cur = next
	}
	if cur.size() == 0 {
		return nil, fmt.Errorf("network produces an empty output")
	}
	return n, nil
}

func inputShape(dims []int) (shape, error) {
	switch len(dims) {
	case 1:
		if dims[0] > 0 {
			return shape{steps: 1, channels: dims[0]}, nil
		}
	case 2:
		if dims[0] > 0 && dims[1] > 0 {
			return shape{steps: dims[0], channels: dims[1]}, nil
		}
	}
	return shape{}, fmt.Errorf("input shape must be [n] or [steps, channels], got %v", dims)
}

// LayerTypes lists the layer kinds in evaluation order.
func (n *Network) LayerTypes() []string {
	return append([]string(nil), n.names...)
}

// InputSize is the flat input length.
func (n *Network) InputSize() int {
	return n.input.size()
}

// Predict runs the stack and returns the first output value.
func (n *Network) Predict(features []float64) (float64, error) {
	if len(features) != n.input.size() {
		return 0, fmt.Errorf("input has %d values, network expects %d", len(features), n.input.size())
	}

	x := tensor{steps: n.input.steps, channels: n.input.channels, data: append([]float64(nil), features...)}
	for _, l := range n.layers {
		x = l.forward(x)
	}
	return x.data[0], nil
}

func buildLayer(ls LayerSpec, in shape) (layer, error) {
	act, err := activationFor(ls.Activation)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(ls.Type) {
	case "dense":
		if ls.Units <= 0 {
			return nil, fmt.Errorf("units must be positive")
		}
		if len(ls.Kernel) != in.channels*ls.Units {
			return nil, fmt.Errorf("kernel has %d weights, expected %dx%d", len(ls.Kernel), in.channels, ls.Units)
		}
		bias, err := biasOrZero(ls.Bias, ls.Units)
		if err != nil {
			return nil, err
		}
		return &dense{
			kernel: mat.NewDense(in.channels, ls.Units, append([]float64(nil), ls.Kernel...)),
			bias:   bias,
			act:    act,
		}, nil

	case "conv1d":
		if ls.Filters <= 0 || ls.KernelSize <= 0 {
			return nil, fmt.Errorf("filters and kernel_size must be positive")
		}
		if len(ls.Kernel) != ls.KernelSize*in.channels*ls.Filters {
			return nil, fmt.Errorf("kernel has %d weights, expected %dx%dx%d", len(ls.Kernel), ls.KernelSize, in.channels, ls.Filters)
		}
		padding := strings.ToLower(ls.Padding)
		if padding == "" {
			padding = "valid"
		}
		if padding != "valid" && padding != "same" {
			return nil, fmt.Errorf("unsupported padding %q", ls.Padding)
		}
		bias, err := biasOrZero(ls.Bias, ls.Filters)
		if err != nil {
			return nil, err
		}
		return &conv1d{
			filters:    ls.Filters,
			kernelSize: ls.KernelSize,
			same:       padding == "same",
			kernel:     append([]float64(nil), ls.Kernel...),
			bias:       bias,
			act:        act,
		}, nil

	case "max_pooling1d", "maxpooling1d":
		if ls.PoolSize <= 0 {
			return nil, fmt.Errorf("pool_size must be positive")
		}
		strides := ls.Strides
		if strides <= 0 {
			strides = ls.PoolSize
		}
		return &maxPool1d{pool: ls.PoolSize, strides: strides}, nil

	case "flatten":
		return flatten{}, nil

	case "reshape":
		if len(ls.TargetShape) == 0 {
			return nil, fmt.Errorf("reshape needs target_shape")
		}
		target, err := inputShape(ls.TargetShape)
		if err != nil {
			return nil, err
		}
		return reshape{target: target}, nil

	case "dropout":
		return identity{}, nil

	case "activation":
		return activationLayer{act: act}, nil
	}

	return nil, fmt.Errorf("unsupported layer type %q", ls.Type)
}

func biasOrZero(bias []float64, n int) ([]float64, error) {
	if len(bias) == 0 {
		return make([]float64, n), nil
	}
	if len(bias) != n {
		return nil, fmt.Errorf("bias has %d values, expected %d", len(bias), n)
	}
	return append([]float64(nil), bias...), nil
}

type dense struct {
	kernel *mat.Dense
	bias   []float64
	act    activation
}

func (d *dense) outputShape(in shape) (shape, error) {
	r, c := d.kernel.Dims()
	if in.channels != r {
		return shape{}, fmt.Errorf("dense expects %d input channels, got %d", r, in.channels)
	}
	return shape{steps: in.steps, channels: c}, nil
}

func (d *dense) forward(in tensor) tensor {
	_, units := d.kernel.Dims()
	x := mat.NewDense(in.steps, in.channels, in.data)
	var y mat.Dense
	y.Mul(x, d.kernel)

	out := tensor{steps: in.steps, channels: units, data: make([]float64, in.steps*units)}
	for s := 0; s < in.steps; s++ {
		row := out.data[s*units : (s+1)*units]
		mat.Row(row, s, &y)
		floats.Add(row, d.bias)
		d.act(row)
	}
	return out
}

type conv1d struct {
	filters    int
	kernelSize int
	same       bool
	kernel     []float64 // (kernelSize, inChannels, filters)
	bias       []float64
	act        activation
}

func (c *conv1d) padLeft() int {
	if !c.same {
		return 0
	}
	return (c.kernelSize - 1) / 2
}

func (c *conv1d) outputShape(in shape) (shape, error) {
	if len(c.kernel) != c.kernelSize*in.channels*c.filters {
		return shape{}, fmt.Errorf("conv1d kernel does not match %d input channels", in.channels)
	}
	steps := in.steps
	if !c.same {
		steps = in.steps - c.kernelSize + 1
	}
	if steps <= 0 {
		return shape{}, fmt.Errorf("conv1d kernel %d is longer than input length %d", c.kernelSize, in.steps)
	}
	return shape{steps: steps, channels: c.filters}, nil
}

func (c *conv1d) forward(in tensor) tensor {
	outShape, _ := c.outputShape(shape{steps: in.steps, channels: in.channels})
	out := tensor{steps: outShape.steps, channels: c.filters, data: make([]float64, outShape.size())}
	pad := c.padLeft()

	for t := 0; t < out.steps; t++ {
		row := out.data[t*c.filters : (t+1)*c.filters]
		copy(row, c.bias)
		for k := 0; k < c.kernelSize; k++ {
			src := t + k - pad
			if src < 0 || src >= in.steps {
				continue
			}
			for ch := 0; ch < in.channels; ch++ {
				v := in.data[src*in.channels+ch]
				if v == 0 {
					continue
				}
				w := c.kernel[(k*in.channels+ch)*c.filters : (k*in.channels+ch+1)*c.filters]
				floats.AddScaled(row, v, w)
			}
		}
		c.act(row)
	}
	return out
}

type maxPool1d struct {
	pool    int
	strides int
}

func (p *maxPool1d) outputShape(in shape) (shape, error) {
	if in.steps < p.pool {
		return shape{}, fmt.Errorf("pool size %d is larger than input length %d", p.pool, in.steps)
	}
	return shape{steps: (in.steps-p.pool)/p.strides + 1, channels: in.channels}, nil
}

func (p *maxPool1d) forward(in tensor) tensor {
	outShape, _ := p.outputShape(shape{steps: in.steps, channels: in.channels})
	out := tensor{steps: outShape.steps, channels: in.channels, data: make([]float64, outShape.size())}
	for t := 0; t < out.steps; t++ {
		for ch := 0; ch < in.channels; ch++ {
			m := math.Inf(-1)
			for k := 0; k < p.pool; k++ {
				m = math.Max(m, in.data[(t*p.strides+k)*in.channels+ch])
			}
			out.data[t*in.channels+ch] = m
		}
	}
	return out
}

type flatten struct{}

func (flatten) outputShape(in shape) (shape, error) {
	return shape{steps: 1, channels: in.size()}, nil
}

func (flatten) forward(in tensor) tensor {
	return tensor{steps: 1, channels: len(in.data), data: in.data}
}

type reshape struct {
	target shape
}

func (r reshape) outputShape(in shape) (shape, error) {
	if in.size() != r.target.size() {
		return shape{}, fmt.Errorf("cannot reshape %d values into %dx%d", in.size(), r.target.steps, r.target.channels)
	}
	return r.target, nil
}

func (r reshape) forward(in tensor) tensor {
	return tensor{steps: r.target.steps, channels: r.target.channels, data: in.data}
}

type identity struct{}

func (identity) outputShape(in shape) (shape, error) { return in, nil }
func (identity) forward(in tensor) tensor            { return in }

type activationLayer struct {
	act activation
}

func (a activationLayer) outputShape(in shape) (shape, error) { return in, nil }

func (a activationLayer) forward(in tensor) tensor {
	for s := 0; s < in.steps; s++ {
		a.act(in.data[s*in.channels : (s+1)*in.channels])
	}
	return in
}

// activation transforms one row in place.
type activation func(row []float64)

func activationFor(name string) (activation, error) {
	switch strings.ToLower(name) {
	case "", "linear":
		return func([]float64) {}, nil
	case "relu":
		return func(row []float64) {
			for i, v := range row {
				if v < 0 {
					row[i] = 0
				}
			}
		}, nil
	case "sigmoid":
		return func(row []float64) {
			for i, v := range row {
				row[i] = 1 / (1 + math.Exp(-v))
			}
		}, nil
	case "tanh":
		return func(row []float64) {
			for i, v := range row {
				row[i] = math.Tanh(v)
			}
		}, nil
	case "softmax":
		return func(row []float64) {
			m := floats.Max(row)
			var sum float64
			for i, v := range row {
				row[i] = math.Exp(v - m)
				sum += row[i]
			}
			floats.Scale(1/sum, row)
		}, nil
	case "elu":
		return func(row []float64) {
			for i, v := range row {
				if v < 0 {
					row[i] = math.Expm1(v)
				}
			}
		}, nil
	case "selu":
		const alpha, scale = 1.6732632423543772, 1.0507009873554805
		return func(row []float64) {
			for i, v := range row {
				if v < 0 {
					row[i] = scale * alpha * math.Expm1(v)
				} else {
					row[i] = scale * v
				}
			}
		}, nil
	case "softplus":
		return func(row []float64) {
			for i, v := range row {
				row[i] = math.Log1p(math.Exp(v))
			}
		}, nil
	}
	return nil, fmt.Errorf("unsupported activation %q", name)
}
