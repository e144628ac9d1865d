package models

import "time"

// Metrics holds the single-frame quality measures of one intensity frame
type Metrics struct {
	Sharpness          float64 `json:"sharpness" yaml:"sharpness"`
	Noise              float64 `json:"noise" yaml:"noise"`
	ExposureUniformity float64 `json:"exposure_uniformity" yaml:"exposure_uniformity"`
	BrightnessMean     float64 `json:"brightness_mean" yaml:"brightness_mean"`
}

// TemporalStatus tells whether the cross-frame analysis could run
type TemporalStatus string

const (
	// TemporalAnalyzed means two or more equally sized frames were analyzed
	TemporalAnalyzed TemporalStatus = "analyzed"
	// TemporalSingleFrame means only one frame was supplied
	TemporalSingleFrame TemporalStatus = "single_frame"
	// TemporalNotApplicable means frame sizes differed and no stuck-pixel scan ran
	TemporalNotApplicable TemporalStatus = "not_applicable"
)

// TemporalResult is the output of the multi-frame analysis.
// BrightnessSeries is index-aligned with the input frames.
type TemporalResult struct {
	DeadPixelCount   int            `json:"dead_pixel_count"`
	BrightnessSeries []float64      `json:"brightness_series"`
	BrightnessSlope  float64        `json:"brightness_slope"`
	Status           TemporalStatus `json:"status"`
}

// Thresholds are the pass/fail bounds applied by the report builder
type Thresholds struct {
	MinSharpness          float64 `json:"minSharpness" yaml:"minSharpness" mapstructure:"minSharpness"`
	MaxNoise              float64 `json:"maxNoise" yaml:"maxNoise" mapstructure:"maxNoise"`
	MinExposureUniformity float64 `json:"minExposureUniformity" yaml:"minExposureUniformity" mapstructure:"minExposureUniformity"`
	MaxDeadPixels         int     `json:"maxDeadPixels" yaml:"maxDeadPixels" mapstructure:"maxDeadPixels"`
	MinBrightness         float64 `json:"minBrightness" yaml:"minBrightness" mapstructure:"minBrightness"`
	MaxBrightness         float64 `json:"maxBrightness" yaml:"maxBrightness" mapstructure:"maxBrightness"`
}

// ThresholdOverrides carries optional per-request threshold changes.
// Nil fields keep the base value.
type ThresholdOverrides struct {
	MinSharpness          *float64 `json:"minSharpness,omitempty" yaml:"minSharpness,omitempty"`
	MaxNoise              *float64 `json:"maxNoise,omitempty" yaml:"maxNoise,omitempty"`
	MinExposureUniformity *float64 `json:"minExposureUniformity,omitempty" yaml:"minExposureUniformity,omitempty"`
	MaxDeadPixels         *int     `json:"maxDeadPixels,omitempty" yaml:"maxDeadPixels,omitempty"`
	MinBrightness         *float64 `json:"minBrightness,omitempty" yaml:"minBrightness,omitempty"`
	MaxBrightness         *float64 `json:"maxBrightness,omitempty" yaml:"maxBrightness,omitempty"`
}

// Apply returns base with every non-nil override replaced
func (o *ThresholdOverrides) Apply(base Thresholds) Thresholds {
	if o == nil {
		return base
	}
	if o.MinSharpness != nil {
		base.MinSharpness = *o.MinSharpness
	}
	if o.MaxNoise != nil {
		base.MaxNoise = *o.MaxNoise
	}
	if o.MinExposureUniformity != nil {
		base.MinExposureUniformity = *o.MinExposureUniformity
	}
	if o.MaxDeadPixels != nil {
		base.MaxDeadPixels = *o.MaxDeadPixels
	}
	if o.MinBrightness != nil {
		base.MinBrightness = *o.MinBrightness
	}
	if o.MaxBrightness != nil {
		base.MaxBrightness = *o.MaxBrightness
	}
	return base
}

// QualityIssue describes one violated check in a report
type QualityIssue struct {
	Type        string  `json:"type" yaml:"type"`
	Message     string  `json:"message" yaml:"message"`
	Severity    string  `json:"severity" yaml:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value" yaml:"actual_value"`
	Threshold   float64 `json:"threshold" yaml:"threshold"`
}

// Report is the verdict of one inspection run.
// The fields set by the report builder are PerFrame through Issues;
// ID, CreatedAt, FrameCount and TemporalStatus are stamped by the service.
type Report struct {
	ID             string
	CreatedAt      time.Time
	FrameCount     int
	TemporalStatus TemporalStatus

	PerFrame         Metrics
	DeadPixels       int
	BrightnessSeries []float64
	BrightnessSlope  float64
	Thresholds       Thresholds
	Pass             bool
	Issues           []QualityIssue
}

const (
	OverallPass = "PASS"
	OverallFail = "FAIL"
)

// Overall renders the pass flag the way reports expose it
func (r Report) Overall() string {
	if r.Pass {
		return OverallPass
	}
	return OverallFail
}
