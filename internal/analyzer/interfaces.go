package analyzer

import (
	"image"

	"go-endoqa/pkg/models"
)

// MetricsCalculator computes the single-frame quality measures.
// Frames are only read; implementations must not retain or modify them.
type MetricsCalculator interface {
	// ComputeMetrics returns every single-frame measure at once.
	// It fails with ErrEmptyFrame when the frame has no samples.
	ComputeMetrics(frame *image.Gray) (models.Metrics, error)

	CalculateSharpness(frame *image.Gray) float64
	CalculateNoise(frame *image.Gray) float64
	CalculateExposureUniformity(frame *image.Gray) float64
	CalculateBrightness(frame *image.Gray) float64
}

// TemporalAnalyzer handles the cross-frame analysis of an ordered frame set
type TemporalAnalyzer interface {
	AnalyzeSequence(frames []*image.Gray) models.TemporalResult
}
