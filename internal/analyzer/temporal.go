package analyzer

import (
	"errors"
	"image"
	"math"
	"sync"

	apperrors "go-endoqa/internal/errors"
	"go-endoqa/pkg/models"
)

var (
	// ErrEmptyFrameSet is returned when a cross-frame scan receives no frames
	ErrEmptyFrameSet = apperrors.NewValidationError("frame set is empty", nil)
	// ErrFrameSizeMismatch marks a frame set whose frames differ in size.
	// The stuck pixel count is 0 alongside it.
	ErrFrameSizeMismatch = apperrors.NewValidationError("frames have inconsistent dimensions", nil)
)

// temporalAnalyzer runs the stuck pixel scan and brightness trend over a frame set
type temporalAnalyzer struct {
	calc    MetricsCalculator
	opts    StuckPixelOptions
	workers int
}

// NewTemporalAnalyzer creates a temporal analyzer whose per-frame brightness
// comes from calc
func NewTemporalAnalyzer(calc MetricsCalculator, opts Options) TemporalAnalyzer {
	return &temporalAnalyzer{
		calc:    calc,
		opts:    opts.StuckPixels,
		workers: opts.workers(),
	}
}

// AnalyzeSequence computes the stuck pixel count and brightness trend.
// A single frame yields its own mean as the series, slope 0 and no stuck
// pixels. Frames of different sizes still get a brightness trend, while the
// stuck pixel count stays 0 with Status TemporalNotApplicable.
func (ta *temporalAnalyzer) AnalyzeSequence(frames []*image.Gray) models.TemporalResult {
	switch len(frames) {
	case 0:
		return models.TemporalResult{
			BrightnessSeries: []float64{},
			Status:           models.TemporalNotApplicable,
		}
	case 1:
		return models.TemporalResult{
			BrightnessSeries: []float64{ta.calc.CalculateBrightness(frames[0])},
			Status:           models.TemporalSingleFrame,
		}
	}

	series, slope := brightnessTrend(ta.calc, frames, ta.workers)
	result := models.TemporalResult{
		BrightnessSeries: series,
		BrightnessSlope:  slope,
		Status:           models.TemporalAnalyzed,
	}

	dead, err := countStuckPixels(frames, ta.opts, ta.workers)
	if errors.Is(err, ErrFrameSizeMismatch) {
		result.Status = models.TemporalNotApplicable
		return result
	}
	result.DeadPixelCount = dead
	return result
}

// CountStuckPixels counts coordinates whose value is near constant across
// frames and close to black or white: temporal std-dev below VarEpsilon and
// temporal mean below ExtremeThreshold or above 255-ExtremeThreshold.
// It returns 0 with ErrEmptyFrameSet or ErrFrameSizeMismatch when the scan
// cannot run.
func CountStuckPixels(frames []*image.Gray, opts StuckPixelOptions) (int, error) {
	return countStuckPixels(frames, opts, DefaultOptions().workers())
}

func countStuckPixels(frames []*image.Gray, opts StuckPixelOptions, workers int) (int, error) {
	if len(frames) == 0 {
		return 0, ErrEmptyFrameSet
	}
	if !SameSize(frames) {
		return 0, ErrFrameSizeMismatch
	}

	w, h := frames[0].Bounds().Dx(), frames[0].Bounds().Dy()
	if w == 0 || h == 0 {
		return 0, nil
	}

	strips := workers
	if strips > h {
		strips = h
	}
	counts := make([]int, max(strips, 1))

	n := int64(len(frames))
	low := float64(opts.ExtremeThreshold)
	high := float64(maxSample - opts.ExtremeThreshold)

	runStrips(h, strips, func(strip, y0, y1 int) {
		rows := make([][]uint8, len(frames))
		stuck := 0
		for y := y0; y < y1; y++ {
			for i, f := range frames {
				rows[i] = row(f, y)
			}
			for x := 0; x < w; x++ {
				var sum, sumSq int64
				for _, r := range rows {
					v := int64(r[x])
					sum += v
					sumSq += v * v
				}
				// n*sumSq - sum^2 is n^2 times the population variance, exact in integers
				mean := float64(sum) / float64(n)
				sd := math.Sqrt(float64(n*sumSq-sum*sum)) / float64(n)
				if sd < opts.VarEpsilon && (mean < low || mean > high) {
					stuck++
				}
			}
		}
		counts[strip] = stuck
	})

	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// BrightnessTrend returns the per-frame mean brightness in frame order and
// the least squares slope of that series against the frame index.
func BrightnessTrend(frames []*image.Gray) (series []float64, slope float64) {
	return brightnessTrend(NewMetricsCalculator(), frames, DefaultOptions().workers())
}

func brightnessTrend(calc MetricsCalculator, frames []*image.Gray, workers int) ([]float64, float64) {
	series := make([]float64, len(frames))

	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))
	for i, f := range frames {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			series[i] = calc.CalculateBrightness(f)
		}()
	}
	wg.Wait()

	return series, linearSlope(series)
}

// linearSlope fits y = slope*x + intercept over x = 0..n-1 with the closed
// form estimator; a zero denominator gives slope 0.
func linearSlope(ys []float64) float64 {
	n := float64(len(ys))
	var sx, sy, sxx, sxy float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / denom
}
