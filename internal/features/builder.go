package features

import (
	"time"

	"github.com/thebtf/ecoscore/pkg/models"
)

// Builder prepares feature vectors for a fixed, ordered feature-name list.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	names []string
}

// NewBuilder creates a builder projecting onto names.
// If names is empty, CanonicalFeatureNames is used.
func NewBuilder(names []string) *Builder {
	if len(names) == 0 {
		names = CanonicalFeatureNames()
	}
	return &Builder{names: append([]string(nil), names...)}
}

// FeatureNames returns a copy of the projected name order.
func (b *Builder) FeatureNames() []string {
	return append([]string(nil), b.names...)
}

// Prepare runs the full pipeline: seed, overlay, derive, encode, project.
// It never fails; unusable inputs fall back to defaults or zero flags.
func (b *Builder) Prepare(raw models.Signals, ref time.Time) Vector {
	return Project(b.Features(raw, ref), b.names)
}

// Features runs the pipeline up to (not including) projection.
// Useful for inspection and debugging.
func (b *Builder) Features(raw models.Signals, ref time.Time) FeatureMap {
	m := Seed()
	m = Overlay(m, raw)
	m = Derive(m, ref)
	return Encode(m, raw, ref)
}
