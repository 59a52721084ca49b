package ml

import (
	"fmt"
)

const leafNode = -1

// Tree is a regression tree in parallel-array form: node i splits on
// Feature[i] at Threshold[i], going left when x <= threshold. Leaves have
// ChildrenLeft[i] == -1 and predict Value[i].
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

// Forest averages the predictions of its trees.
type Forest struct {
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

// LoadForest reads a random forest artifact.
func LoadForest(path string) (*Forest, error) {
	var f Forest
	if err := readArtifact(path, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("forest n_features must be positive, got %d", f.NFeatures)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.Value)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenLeft) != n || len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leafNode {
			if r != leafNode {
				return fmt.Errorf("node %d has only one child", i)
			}
			continue
		}
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has children out of range (%d, %d)", i, l, r)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, t.Feature[i], nFeatures)
		}
	}
	return nil
}

// predict walks from the root. Validation guarantees children have larger
// indices than their parent, so the walk terminates.
func (t *Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Predict returns the mean tree output.
func (f *Forest) Predict(features []float64) (float64, error) {
	if len(features) != f.NFeatures {
		return 0, fmt.Errorf("X has %d features, but RandomForestRegressor is expecting %d features as input", len(features), f.NFeatures)
	}
	if err := checkFinite(features); err != nil {
		return 0, err
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(features)
	}
	return sum / float64(len(f.Trees)), nil
}
