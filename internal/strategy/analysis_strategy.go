package strategy

import (
	"fmt"
	"image"

	"go-endoqa/internal/analyzer"
	apperrors "go-endoqa/internal/errors"
	"go-endoqa/pkg/models"
)

// AnalysisStrategy turns a decoded frame set into the inputs of a report:
// the single-frame metrics of the first frame and the temporal result
type AnalysisStrategy interface {
	Analyze(frames []*image.Gray) (models.Metrics, models.TemporalResult, error)
	GetStrategyName() string
}

// SingleFrameStrategy analyzes a lone frame. The temporal part carries the
// frame's own brightness and no stuck pixels.
type SingleFrameStrategy struct {
	calc analyzer.MetricsCalculator
}

// NewSingleFrameStrategy creates a single frame strategy
func NewSingleFrameStrategy(calc analyzer.MetricsCalculator) AnalysisStrategy {
	return &SingleFrameStrategy{calc: calc}
}

// Analyze computes the metrics of frames[0]
func (s *SingleFrameStrategy) Analyze(frames []*image.Gray) (models.Metrics, models.TemporalResult, error) {
	if len(frames) == 0 {
		return models.Metrics{}, models.TemporalResult{}, analyzer.ErrEmptyFrameSet
	}
	m, err := s.calc.ComputeMetrics(frames[0])
	if err != nil {
		return models.Metrics{}, models.TemporalResult{}, err
	}
	return m, models.TemporalResult{
		BrightnessSeries: []float64{m.BrightnessMean},
		Status:           models.TemporalSingleFrame,
	}, nil
}

// GetStrategyName returns the strategy name
func (s *SingleFrameStrategy) GetStrategyName() string {
	return "single_frame"
}

// SequenceStrategy analyzes two or more frames
type SequenceStrategy struct {
	calc     analyzer.MetricsCalculator
	temporal analyzer.TemporalAnalyzer
}

// NewSequenceStrategy creates a sequence strategy
func NewSequenceStrategy(calc analyzer.MetricsCalculator, temporal analyzer.TemporalAnalyzer) AnalysisStrategy {
	return &SequenceStrategy{
		calc:     calc,
		temporal: temporal,
	}
}

// Analyze computes the metrics of frames[0] and runs the temporal analysis
// over the whole set
func (s *SequenceStrategy) Analyze(frames []*image.Gray) (models.Metrics, models.TemporalResult, error) {
	if len(frames) == 0 {
		return models.Metrics{}, models.TemporalResult{}, analyzer.ErrEmptyFrameSet
	}
	m, err := s.calc.ComputeMetrics(frames[0])
	if err != nil {
		return models.Metrics{}, models.TemporalResult{}, err
	}
	for i, f := range frames[1:] {
		if f == nil || f.Bounds().Empty() {
			return models.Metrics{}, models.TemporalResult{}, apperrors.NewValidationError("frame has no samples", nil).
				WithDetails(fmt.Sprintf("frame %d", i+1))
		}
	}
	return m, s.temporal.AnalyzeSequence(frames), nil
}

// GetStrategyName returns the strategy name
func (s *SequenceStrategy) GetStrategyName() string {
	return "sequence"
}

// ForFrameCount picks the strategy for a set of n frames
func ForFrameCount(n int, calc analyzer.MetricsCalculator, temporal analyzer.TemporalAnalyzer) AnalysisStrategy {
	if n < 2 {
		return NewSingleFrameStrategy(calc)
	}
	return NewSequenceStrategy(calc, temporal)
}
