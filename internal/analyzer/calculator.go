package analyzer

import (
	"errors"
	"fmt"
)

// ErrGoCVUnavailable is returned when the gocv backend is requested from a
// build without the gocv tag
var ErrGoCVUnavailable = errors.New("gocv build tag is not enabled")

// NewCalculator returns the MetricsCalculator for opts.Backend
func NewCalculator(opts Options) (MetricsCalculator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	backend, _ := ParseBackend(string(opts.Backend))
	switch backend {
	case BackendGoCV:
		calc, err := newGoCVCalculator(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create gocv calculator: %w", err)
		}
		return calc, nil
	default:
		return newNativeCalculator(opts), nil
	}
}
