package model

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Default artifact file names inside the model directory.
const (
	DefaultModelFile        = "eco_score_model.json"
	DefaultFeatureNamesFile = "feature_names.json"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Registry resolves artifact types. Nil means DefaultRegistry.
	Registry *ModelRegistry
	// ModelFile overrides DefaultModelFile.
	ModelFile string
	// FeatureNamesFile overrides DefaultFeatureNamesFile.
	FeatureNamesFile string
}

// Status describes the loaded artifacts.
type Status struct {
	Version      string `json:"version,omitempty"`
	Kind         string `json:"kind,omitempty"`
	LoadError    string `json:"load_error,omitempty"`
	FeatureCount int    `json:"feature_count"`
	Loaded       bool   `json:"loaded"`
}

// Predictor wraps the loaded model and its declared feature names.
// It is immutable after Load and safe for concurrent use.
type Predictor struct {
	model    ScoreModel
	loadErr  error
	features []string
}

// Load reads the model and feature-name artifacts from dir.
//
// Load never fails: when either artifact is missing or corrupt it logs a
// warning and returns a predictor whose IsLoaded reports false.
func Load(dir string, opts LoadOptions) *Predictor {
	p, err := load(dir, opts)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Eco-score model not loaded; predictions disabled")
		return &Predictor{loadErr: err}
	}
	log.Info().
		Str("kind", p.model.Kind()).
		Str("version", p.model.Version()).
		Int("features", len(p.features)).
		Msg("Eco-score model loaded")
	return p
}

func load(dir string, opts LoadOptions) (*Predictor, error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	modelFile := opts.ModelFile
	if modelFile == "" {
		modelFile = DefaultModelFile
	}
	namesFile := opts.FeatureNamesFile
	if namesFile == "" {
		namesFile = DefaultFeatureNamesFile
	}

	data, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	m, err := registry.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, namesFile))
	if err != nil {
		return nil, fmt.Errorf("read feature names: %w", err)
	}
	names, err := ParseFeatureNames(raw)
	if err != nil {
		return nil, err
	}
	if len(names) != m.InputSize() {
		return nil, fmt.Errorf("%w: %d feature names, model expects %d", ErrFeatureMismatch, len(names), m.InputSize())
	}

	return New(m, names), nil
}

// New wraps an already built model. Mostly useful in tests.
func New(m ScoreModel, featureNames []string) *Predictor {
	return &Predictor{
		model:    m,
		features: append([]string(nil), featureNames...),
	}
}

// ParseFeatureNames accepts a JSON array of strings or a plain-text list
// with one name per line. Blank lines and lines starting with # are skipped.
func ParseFeatureNames(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("feature names file is empty")
	}

	var names []string
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return nil, fmt.Errorf("parse feature names: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan feature names: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return nil, errors.New("feature names contain an empty name")
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("duplicate feature name %q", n)
		}
		seen[n] = struct{}{}
	}
	if len(names) == 0 {
		return nil, errors.New("feature names file lists no names")
	}
	return names, nil
}

// IsLoaded reports whether predictions can be served.
func (p *Predictor) IsLoaded() bool {
	return p != nil && p.model != nil
}

// FeatureNames returns a copy of the declared feature order, or nil when
// the model is not loaded.
func (p *Predictor) FeatureNames() []string {
	if !p.IsLoaded() {
		return nil
	}
	return append([]string(nil), p.features...)
}

// Version returns the artifact version, or "" when not loaded.
func (p *Predictor) Version() string {
	if !p.IsLoaded() {
		return ""
	}
	return p.model.Version()
}

// LoadError returns why loading failed, if it did.
func (p *Predictor) LoadError() error {
	if p == nil {
		return ErrModelUnavailable
	}
	return p.loadErr
}

// Status summarizes the predictor for health and status endpoints.
func (p *Predictor) Status() Status {
	if !p.IsLoaded() {
		s := Status{}
		if err := p.LoadError(); err != nil {
			s.LoadError = err.Error()
		}
		return s
	}
	return Status{
		Loaded:       true,
		Kind:         p.model.Kind(),
		Version:      p.model.Version(),
		FeatureCount: len(p.features),
	}
}

// Invoke scores one feature vector. No retries.
func (p *Predictor) Invoke(vector []float64) (float64, error) {
	if !p.IsLoaded() {
		return 0, ErrModelUnavailable
	}
	if len(vector) != len(p.features) {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(vector), len(p.features))
	}
	score, err := p.model.Score(vector)
	if err != nil {
		return 0, fmt.Errorf("invoke %s model: %w", p.model.Kind(), err)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("invoke %s model: non-finite output", p.model.Kind())
	}
	return score, nil
}
