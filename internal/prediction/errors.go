package prediction

import (
	"errors"

	"github.com/thebtf/ecoscore/internal/model"
)

var (
	// ErrModelUnavailable is returned by every prediction call while the model
	// artifacts are not loaded.
	ErrModelUnavailable = model.ErrModelUnavailable

	// ErrProfileMissing is returned by PredictForUser for users without an eco profile.
	ErrProfileMissing = errors.New("no eco profile found: create an eco profile first")

	// ErrInvalidInput is returned for malformed arguments (empty user id, bad limits).
	ErrInvalidInput = errors.New("invalid prediction input")
)
