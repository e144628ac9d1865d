package analyzer

import (
	"fmt"
	"math"
	"runtime"
	"strings"
)

// Backend selects the implementation behind MetricsCalculator
type Backend string

const (
	// BackendNative is the pure Go calculator
	BackendNative Backend = "native"
	// BackendGoCV delegates to OpenCV; only available in builds tagged gocv
	BackendGoCV Backend = "gocv"
)

// DefaultParallelPixelThreshold is the frame size from which sums are
// computed over row strips in parallel
const DefaultParallelPixelThreshold = 100000

// StuckPixelOptions tune the stuck pixel classifier.
// A pixel is stuck when its temporal std-dev is below VarEpsilon and its
// temporal mean lies within ExtremeThreshold of either end of the range.
type StuckPixelOptions struct {
	VarEpsilon       float64
	ExtremeThreshold int
}

// DefaultStuckPixelOptions returns VarEpsilon 1.0 and ExtremeThreshold 10
func DefaultStuckPixelOptions() StuckPixelOptions {
	return StuckPixelOptions{
		VarEpsilon:       1.0,
		ExtremeThreshold: 10,
	}
}

// Validate rejects values that cannot describe a classifier
func (o StuckPixelOptions) Validate() error {
	if math.IsNaN(o.VarEpsilon) || math.IsInf(o.VarEpsilon, 0) || o.VarEpsilon < 0 {
		return fmt.Errorf("var epsilon must be a finite value >= 0 (got %v)", o.VarEpsilon)
	}
	if o.ExtremeThreshold < 0 || o.ExtremeThreshold > maxSample {
		return fmt.Errorf("extreme threshold must be within [0, %d] (got %d)", maxSample, o.ExtremeThreshold)
	}
	return nil
}

// Options configure a calculator and temporal analyzer pair
type Options struct {
	Backend     Backend
	StuckPixels StuckPixelOptions

	// Performance options
	MaxWorkers             int // <= 0 uses runtime.NumCPU()
	ParallelPixelThreshold int // <= 0 uses DefaultParallelPixelThreshold
}

// DefaultOptions returns the native backend with default stuck pixel settings
func DefaultOptions() Options {
	return Options{
		Backend:                BackendNative,
		StuckPixels:            DefaultStuckPixelOptions(),
		MaxWorkers:             0, // Use default CPU count
		ParallelPixelThreshold: DefaultParallelPixelThreshold,
	}
}

// WithBackend returns options using the given backend
func (opts Options) WithBackend(backend Backend) Options {
	opts.Backend = backend
	return opts
}

// WithStuckPixels returns options with a custom stuck pixel classifier
func (opts Options) WithStuckPixels(varEpsilon float64, extremeThreshold int) Options {
	opts.StuckPixels = StuckPixelOptions{
		VarEpsilon:       varEpsilon,
		ExtremeThreshold: extremeThreshold,
	}
	return opts
}

// WithMaxWorkers bounds the number of goroutines used per frame
func (opts Options) WithMaxWorkers(n int) Options {
	opts.MaxWorkers = n
	return opts
}

// Validate checks the backend name and the stuck pixel settings
func (opts Options) Validate() error {
	if _, err := ParseBackend(string(opts.Backend)); err != nil {
		return err
	}
	return opts.StuckPixels.Validate()
}

func (opts Options) workers() int {
	if opts.MaxWorkers > 0 {
		return opts.MaxWorkers
	}
	return runtime.NumCPU()
}

func (opts Options) parallelThreshold() int {
	if opts.ParallelPixelThreshold > 0 {
		return opts.ParallelPixelThreshold
	}
	return DefaultParallelPixelThreshold
}

// ParseBackend accepts "native" or "gocv"; an empty name means native
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case "", BackendNative:
		return BackendNative, nil
	case BackendGoCV:
		return BackendGoCV, nil
	default:
		return "", fmt.Errorf("unknown analyzer backend %q", name)
	}
}
