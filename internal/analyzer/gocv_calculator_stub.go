//go:build !gocv
// +build !gocv

package analyzer

// GoCVAvailable reports whether this build links OpenCV
const GoCVAvailable = false

func newGoCVCalculator(opts Options) (MetricsCalculator, error) {
	_ = opts
	return nil, ErrGoCVUnavailable
}
