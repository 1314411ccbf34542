// Package model loads the eco-score model artifacts and invokes the model.
package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

var (
	// ErrModelUnavailable is returned when the artifacts failed to load.
	ErrModelUnavailable = errors.New("eco-score model is not available")
	// ErrFeatureMismatch is returned when a vector does not match the declared features.
	ErrFeatureMismatch = errors.New("feature vector does not match model")
)

// ScoreModel is an opaque scoring function: vector in, scalar out.
// Implementations must be safe for concurrent use.
type ScoreModel interface {
	// Kind returns the artifact type (e.g. "linear").
	Kind() string

	// Version returns the artifact version string stored with predictions.
	Version() string

	// InputSize returns the expected vector length.
	InputSize() int

	// Score evaluates the model.
	Score(vector []float64) (float64, error)
}

// Header is the common part of every model artifact.
type Header struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// ModelFactory builds a model from a raw artifact document.
type ModelFactory func(header Header, data []byte) (ScoreModel, error)

// ModelRegistry maps artifact types to factories.
type ModelRegistry struct {
	mu        sync.RWMutex
	factories map[string]ModelFactory
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{factories: make(map[string]ModelFactory)}
}

// Register adds a factory for an artifact type.
func (r *ModelRegistry) Register(kind string, factory ModelFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds lists the registered artifact types.
func (r *ModelRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}

// Decode parses an artifact document and builds the model it describes.
func (r *ModelRegistry) Decode(data []byte) (ScoreModel, error) {
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parse model header: %w", err)
	}

	r.mu.RLock()
	factory, ok := r.factories[header.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown model type: %q", header.Type)
	}
	return factory(header, data)
}

// DefaultRegistry knows every built-in artifact type.
var DefaultRegistry = NewModelRegistry()

func init() {
	DefaultRegistry.Register(KindLinear, newLinearModel)
	DefaultRegistry.Register(KindTreeEnsemble, newTreeEnsemble)
}
