package validation

import (
	"fmt"
	"math"

	"go-endoqa/pkg/models"
)

// QualityIssue is re-exported so callers of this package need not import models
type QualityIssue = models.QualityIssue

// Issue types produced by the report builder, one per threshold check
const (
	IssueLowSharpness      = "low_sharpness"
	IssueHighNoise         = "high_noise"
	IssueUnevenExposure    = "uneven_exposure"
	IssueDeadPixels        = "dead_pixels"
	IssueBrightnessTooLow  = "brightness_too_low"
	IssueBrightnessTooHigh = "brightness_too_high"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

const maxSampleValue = 255.0

// DefaultThresholds returns the thresholds used unless the caller overrides them
func DefaultThresholds() models.Thresholds {
	return models.Thresholds{
		MinSharpness:          50.0,
		MaxNoise:              15.0,
		MinExposureUniformity: 0.85,
		MaxDeadPixels:         0,
		MinBrightness:         10.0,
		MaxBrightness:         245.0,
	}
}

// ValidateThresholds rejects threshold sets that no frame could ever satisfy
// or that contain non-finite values
func ValidateThresholds(th models.Thresholds) error {
	bounds := []struct {
		name  string
		value float64
	}{
		{"minSharpness", th.MinSharpness},
		{"maxNoise", th.MaxNoise},
		{"minExposureUniformity", th.MinExposureUniformity},
		{"minBrightness", th.MinBrightness},
		{"maxBrightness", th.MaxBrightness},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return fmt.Errorf("%s must be finite", b.name)
		}
		if b.value < 0 {
			return fmt.Errorf("%s must be >= 0 (got %g)", b.name, b.value)
		}
	}
	if th.MaxDeadPixels < 0 {
		return fmt.Errorf("maxDeadPixels must be >= 0 (got %d)", th.MaxDeadPixels)
	}
	if th.MinExposureUniformity > 1 {
		return fmt.Errorf("minExposureUniformity must be <= 1 (got %g)", th.MinExposureUniformity)
	}
	if th.MinBrightness > th.MaxBrightness {
		return fmt.Errorf("minBrightness (%g) must not exceed maxBrightness (%g)", th.MinBrightness, th.MaxBrightness)
	}
	if th.MinBrightness > maxSampleValue {
		return fmt.Errorf("minBrightness must be <= 255 (got %g)", th.MinBrightness)
	}
	return nil
}

// QualityValidator applies one fixed threshold set
type QualityValidator struct {
	thresholds models.Thresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds models.Thresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Thresholds returns the thresholds this validator applies
func (qv *QualityValidator) Thresholds() models.Thresholds {
	return qv.thresholds
}

// Validate runs the five independent threshold checks and returns one issue per
// violated check. The checks do not interact. Each check is written as the
// negation of its passing predicate so that a NaN metric fails.
func (qv *QualityValidator) Validate(m models.Metrics, deadPixels int) []QualityIssue {
	th := qv.thresholds
	issues := make([]QualityIssue, 0, 5)

	// 1. Sharpness (variance of Laplacian)
	if !(m.Sharpness >= th.MinSharpness) {
		issues = append(issues, QualityIssue{
			Type:        IssueLowSharpness,
			Message:     "Image is out of focus. Clean the lens and check the focus setting.",
			Severity:    SeverityError,
			ActualValue: m.Sharpness,
			Threshold:   th.MinSharpness,
		})
	}

	// 2. Noise (std-dev of high-frequency residual)
	if !(m.Noise <= th.MaxNoise) {
		issues = append(issues, QualityIssue{
			Type:        IssueHighNoise,
			Message:     "Sensor noise is too high. Check gain settings and illumination.",
			Severity:    SeverityError,
			ActualValue: m.Noise,
			Threshold:   th.MaxNoise,
		})
	}

	// 3. Exposure uniformity across the tile grid
	if !(m.ExposureUniformity >= th.MinExposureUniformity) {
		issues = append(issues, QualityIssue{
			Type:        IssueUnevenExposure,
			Message:     "Illumination is uneven across the field of view.",
			Severity:    SeverityError,
			ActualValue: m.ExposureUniformity,
			Threshold:   th.MinExposureUniformity,
		})
	}

	// 4. Stuck / dead pixels
	if !(deadPixels <= th.MaxDeadPixels) {
		issues = append(issues, QualityIssue{
			Type:        IssueDeadPixels,
			Message:     fmt.Sprintf("%d stuck or dead pixels detected across frames.", deadPixels),
			Severity:    SeverityError,
			ActualValue: float64(deadPixels),
			Threshold:   float64(th.MaxDeadPixels),
		})
	}

	// 5. Mean brightness window
	if !(m.BrightnessMean >= th.MinBrightness) {
		issues = append(issues, QualityIssue{
			Type:        IssueBrightnessTooLow,
			Message:     "Image is too dark. Check the light source.",
			Severity:    SeverityError,
			ActualValue: m.BrightnessMean,
			Threshold:   th.MinBrightness,
		})
	} else if !(m.BrightnessMean <= th.MaxBrightness) {
		issues = append(issues, QualityIssue{
			Type:        IssueBrightnessTooHigh,
			Message:     "Image is too bright. Reduce illumination or exposure time.",
			Severity:    SeverityError,
			ActualValue: m.BrightnessMean,
			Threshold:   th.MaxBrightness,
		})
	}

	return issues
}

// BuildReport combines the metrics with this validator's thresholds
func (qv *QualityValidator) BuildReport(m models.Metrics, deadPixels int, brightnessSeries []float64, slope float64) models.Report {
	issues := qv.Validate(m, deadPixels)

	series := make([]float64, len(brightnessSeries))
	copy(series, brightnessSeries)

	report := models.Report{
		PerFrame:         m,
		DeadPixels:       deadPixels,
		BrightnessSeries: series,
		BrightnessSlope:  slope,
		Thresholds:       qv.thresholds,
		Pass:             !HasCriticalIssues(issues),
	}
	if len(issues) > 0 {
		report.Issues = issues
	}
	return report
}

// BuildReport is the pure report builder: the verdict passes only when all
// five checks hold. The returned report shares no memory with the inputs.
func BuildReport(m models.Metrics, deadPixels int, brightnessSeries []float64, slope float64, th models.Thresholds) models.Report {
	return NewQualityValidatorWithThresholds(th).BuildReport(m, deadPixels, brightnessSeries, slope)
}

// ConvertIssuesToMessages converts quality issues to simple messages
func ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
