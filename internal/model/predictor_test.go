package model

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearArtifact = `{
  "type": "linear",
  "version": "lin-2026.10",
  "bias": 50,
  "coefficients": [2, -1, 0.5]
}`

const treeArtifact = `{
  "type": "tree_ensemble",
  "version": "gbt-7",
  "num_features": 2,
  "base_score": 40,
  "learning_rate": 0.5,
  "trees": [
    {"nodes": [
      {"feature": 0, "threshold": 10, "left": 1, "right": 2},
      {"leaf": true, "value": 20},
      {"leaf": true, "value": -20}
    ]},
    {"nodes": [
      {"feature": 1, "threshold": 0.5, "left": 1, "right": 2},
      {"leaf": true, "value": 0},
      {"leaf": true, "value": 10}
    ]}
  ]
}`

func writeArtifacts(t *testing.T, model, names string) string {
	t.Helper()
	dir := t.TempDir()
	if model != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultModelFile), []byte(model), 0o600))
	}
	if names != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFeatureNamesFile), []byte(names), 0o600))
	}
	return dir
}

func TestLoad_Linear(t *testing.T) {
	dir := writeArtifacts(t, linearArtifact, `["a","b","c"]`)

	p := Load(dir, LoadOptions{})
	require.True(t, p.IsLoaded())
	assert.Equal(t, []string{"a", "b", "c"}, p.FeatureNames())
	assert.Equal(t, "lin-2026.10", p.Version())
	assert.NoError(t, p.LoadError())

	score, err := p.Invoke([]float64{10, 4, 2})
	require.NoError(t, err)
	assert.InDelta(t, 50+20-4+1, score, 1e-9)
}

func TestLoad_LinearScale(t *testing.T) {
	dir := writeArtifacts(t, `{"type":"linear","version":"s","bias":1,"coefficients":[1],"scale":10}`, "x\n")

	p := Load(dir, LoadOptions{})
	require.True(t, p.IsLoaded())

	score, err := p.Invoke([]float64{2})
	require.NoError(t, err)
	assert.InDelta(t, 30.0, score, 1e-9)
}

func TestLoad_TreeEnsemble(t *testing.T) {
	dir := writeArtifacts(t, treeArtifact, "# trained 2026-10\nf0\n\nf1\n")

	p := Load(dir, LoadOptions{})
	require.True(t, p.IsLoaded())
	assert.Equal(t, []string{"f0", "f1"}, p.FeatureNames())

	tests := []struct {
		name   string
		vector []float64
		want   float64
	}{
		{"left left", []float64{5, 0}, 40 + 0.5*(20+0)},
		{"left right", []float64{5, 1}, 40 + 0.5*(20+10)},
		{"right left", []float64{10, 0}, 40 + 0.5*(-20+0)},
		{"right right", []float64{50, 0.5}, 40 + 0.5*(-20+10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Invoke(tt.vector)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestLoad_MissingArtifacts(t *testing.T) {
	tests := []struct {
		name  string
		model string
		names string
	}{
		{"no files", "", ""},
		{"no feature names", linearArtifact, ""},
		{"no model", "", `["a","b","c"]`},
		{"corrupt model", `{"type":`, `["a","b","c"]`},
		{"unknown type", `{"type":"neural","version":"1"}`, `["a"]`},
		{"corrupt names", linearArtifact, `["a",`},
		{"name count mismatch", linearArtifact, `["a","b"]`},
		{"duplicate names", linearArtifact, `["a","a","c"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Load(writeArtifacts(t, tt.model, tt.names), LoadOptions{})

			assert.False(t, p.IsLoaded())
			assert.Error(t, p.LoadError())
			assert.Nil(t, p.FeatureNames())
			assert.Empty(t, p.Version())

			_, err := p.Invoke([]float64{1, 2, 3})
			assert.ErrorIs(t, err, ErrModelUnavailable)

			status := p.Status()
			assert.False(t, status.Loaded)
			assert.NotEmpty(t, status.LoadError)
		})
	}
}

func TestLoad_CustomFileNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.json"), []byte(linearArtifact), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "names.txt"), []byte("a\nb\nc\n"), 0o600))

	p := Load(dir, LoadOptions{ModelFile: "m.json", FeatureNamesFile: "names.txt"})
	require.True(t, p.IsLoaded())

	status := p.Status()
	assert.Equal(t, Status{Loaded: true, Kind: KindLinear, Version: "lin-2026.10", FeatureCount: 3}, status)
}

func TestInvoke_VectorMismatch(t *testing.T) {
	p := Load(writeArtifacts(t, linearArtifact, `["a","b","c"]`), LoadOptions{})
	require.True(t, p.IsLoaded())

	_, err := p.Invoke([]float64{1, 2})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestInvoke_NonFiniteOutput(t *testing.T) {
	p := New(&stubModel{out: math.Inf(1)}, []string{"a"})

	_, err := p.Invoke([]float64{1})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrModelUnavailable)
}

func TestInvoke_NilPredictor(t *testing.T) {
	var p *Predictor
	assert.False(t, p.IsLoaded())
	_, err := p.Invoke(nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestInvoke_Concurrent(t *testing.T) {
	p := Load(writeArtifacts(t, linearArtifact, `["a","b","c"]`), LoadOptions{})
	require.True(t, p.IsLoaded())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := p.Invoke([]float64{float64(i), 0, 0})
			assert.NoError(t, err)
			assert.InDelta(t, 50+2*float64(i), got, 1e-9)
		}(i)
	}
	wg.Wait()
}

func TestParseFeatureNames(t *testing.T) {
	names, err := ParseFeatureNames([]byte("  [\"x\", \"y\"]  "))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, names)

	names, err = ParseFeatureNames([]byte("x\r\ny\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, names)

	_, err = ParseFeatureNames([]byte("   "))
	assert.Error(t, err)

	_, err = ParseFeatureNames([]byte(`[]`))
	assert.Error(t, err)

	_, err = ParseFeatureNames([]byte(`["x", ""]`))
	assert.Error(t, err)
}

func TestTreeEnsemble_RejectsBackEdges(t *testing.T) {
	doc := `{"type":"tree_ensemble","version":"1","num_features":1,"trees":[{"nodes":[
		{"feature":0,"threshold":1,"left":0,"right":1},
		{"leaf":true,"value":1}
	]}]}`
	_, err := DefaultRegistry.Decode([]byte(doc))
	assert.Error(t, err)
}

func TestTreeEnsemble_RejectsFeatureOutOfRange(t *testing.T) {
	doc := `{"type":"tree_ensemble","version":"1","num_features":1,"trees":[{"nodes":[
		{"feature":3,"threshold":1,"left":1,"right":2},
		{"leaf":true,"value":1},
		{"leaf":true,"value":2}
	]}]}`
	_, err := DefaultRegistry.Decode([]byte(doc))
	assert.Error(t, err)
}

func TestModelRegistry_Custom(t *testing.T) {
	r := NewModelRegistry()
	r.Register("stub", func(h Header, _ []byte) (ScoreModel, error) {
		return &stubModel{version: h.Version, out: 42}, nil
	})
	assert.Equal(t, []string{"stub"}, r.Kinds())

	m, err := r.Decode([]byte(`{"type":"stub","version":"v9"}`))
	require.NoError(t, err)
	assert.Equal(t, "v9", m.Version())

	_, err = r.Decode([]byte(`{"type":"linear"}`))
	assert.Error(t, err)
}

type stubModel struct {
	version string
	out     float64
}

func (s *stubModel) Kind() string    { return "stub" }
func (s *stubModel) Version() string { return s.version }
func (s *stubModel) InputSize() int  { return 1 }
func (s *stubModel) Score(_ []float64) (float64, error) {
	return s.out, nil
}
