package model

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Built-in artifact types.
const (
	KindLinear       = "linear"
	KindTreeEnsemble = "tree_ensemble"
)

// linearModel scores scale · (bias + Σ coefficient·x).
type linearModel struct {
	version      string
	coefficients []float64
	bias         float64
	scale        float64
}

var _ ScoreModel = (*linearModel)(nil)

func newLinearModel(header Header, data []byte) (ScoreModel, error) {
	var doc struct {
		Scale        *float64  `json:"scale"`
		Coefficients []float64 `json:"coefficients"`
		Bias         float64   `json:"bias"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse linear model: %w", err)
	}
	if len(doc.Coefficients) == 0 {
		return nil, fmt.Errorf("linear model has no coefficients")
	}
	scale := 1.0
	if doc.Scale != nil {
		scale = *doc.Scale
	}
	return &linearModel{
		version:      header.Version,
		coefficients: doc.Coefficients,
		bias:         doc.Bias,
		scale:        scale,
	}, nil
}

func (m *linearModel) Kind() string    { return KindLinear }
func (m *linearModel) Version() string { return m.version }
func (m *linearModel) InputSize() int  { return len(m.coefficients) }

func (m *linearModel) Score(vector []float64) (float64, error) {
	if len(vector) != len(m.coefficients) {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(vector), len(m.coefficients))
	}
	sum := m.bias
	for i, c := range m.coefficients {
		sum += c * vector[i]
	}
	return m.scale * sum, nil
}

// treeNode is one node of a regression tree. Leaves carry Value; split nodes
// send x[Feature] < Threshold to Left, everything else to Right.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// treeEnsemble scores base_score + learning_rate · Σ tree(x), the layout
// exported by common gradient-boosting trainers.
type treeEnsemble struct {
	version      string
	trees        []regressionTree
	numFeatures  int
	baseScore    float64
	learningRate float64
}

var _ ScoreModel = (*treeEnsemble)(nil)

func newTreeEnsemble(header Header, data []byte) (ScoreModel, error) {
	var doc struct {
		LearningRate *float64         `json:"learning_rate"`
		Trees        []regressionTree `json:"trees"`
		NumFeatures  int              `json:"num_features"`
		BaseScore    float64          `json:"base_score"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tree ensemble: %w", err)
	}
	if doc.NumFeatures <= 0 {
		return nil, fmt.Errorf("tree ensemble requires num_features > 0")
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("tree ensemble has no trees")
	}
	for i, tree := range doc.Trees {
		if err := tree.validate(doc.NumFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	lr := 1.0
	if doc.LearningRate != nil {
		lr = *doc.LearningRate
	}

	return &treeEnsemble{
		version:      header.Version,
		trees:        doc.Trees,
		numFeatures:  doc.NumFeatures,
		baseScore:    doc.BaseScore,
		learningRate: lr,
	}, nil
}

// validate checks indexes and requires children to come after their parent,
// which guarantees traversal terminates.
func (t regressionTree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

func (t regressionTree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (m *treeEnsemble) Kind() string    { return KindTreeEnsemble }
func (m *treeEnsemble) Version() string { return m.version }
func (m *treeEnsemble) InputSize() int  { return m.numFeatures }

func (m *treeEnsemble) Score(vector []float64) (float64, error) {
	if len(vector) != m.numFeatures {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(vector), m.numFeatures)
	}
	sum := 0.0
	for _, tree := range m.trees {
		sum += tree.eval(vector)
	}
	out := m.baseScore + m.learningRate*sum
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("tree ensemble produced non-finite output")
	}
	return out, nil
}
