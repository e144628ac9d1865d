package validation

import (
	"math"
	"reflect"
	"testing"

	"go-endoqa/pkg/models"
)

// passingMetrics returns metrics that clear every default threshold
func passingMetrics() models.Metrics {
	return models.Metrics{
		Sharpness:          400.0,
		Noise:              4.0,
		ExposureUniformity: 0.95,
		BrightnessMean:     128.0,
	}
}

func TestNewQualityValidator(t *testing.T) {
	validator := NewQualityValidator()
	if validator == nil {
		t.Fatal("Expected non-nil quality validator")
	}

	if validator.Thresholds() != DefaultThresholds() {
		t.Errorf("Expected default thresholds, got %+v", validator.Thresholds())
	}
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	expected := models.Thresholds{
		MinSharpness:          50.0,
		MaxNoise:              15.0,
		MinExposureUniformity: 0.85,
		MaxDeadPixels:         0,
		MinBrightness:         10.0,
		MaxBrightness:         245.0,
	}
	if th != expected {
		t.Errorf("Expected %+v, got %+v", expected, th)
	}
}

func TestBuildReport_AllChecksPass(t *testing.T) {
	report := BuildReport(passingMetrics(), 0, []float64{128}, 0, DefaultThresholds())

	if !report.Pass {
		t.Fatalf("Expected PASS, got issues: %v", report.Issues)
	}
	if report.Overall() != "PASS" {
		t.Errorf("Expected overall PASS, got %s", report.Overall())
	}
	if len(report.Issues) != 0 {
		t.Errorf("Expected no issues, got %d", len(report.Issues))
	}
	if report.Thresholds != DefaultThresholds() {
		t.Error("Expected report to retain the thresholds used")
	}
}

func TestBuildReport_EachCheckFailsIndependently(t *testing.T) {
	th := DefaultThresholds()

	testCases := []struct {
		name      string
		mutate    func(m *models.Metrics, dead *int)
		issueType string
	}{
		{"Low sharpness", func(m *models.Metrics, _ *int) { m.Sharpness = th.MinSharpness - 0.001 }, IssueLowSharpness},
		{"High noise", func(m *models.Metrics, _ *int) { m.Noise = th.MaxNoise + 0.001 }, IssueHighNoise},
		{"Uneven exposure", func(m *models.Metrics, _ *int) { m.ExposureUniformity = th.MinExposureUniformity - 0.001 }, IssueUnevenExposure},
		{"Dead pixels", func(_ *models.Metrics, dead *int) { *dead = th.MaxDeadPixels + 1 }, IssueDeadPixels},
		{"Too dark", func(m *models.Metrics, _ *int) { m.BrightnessMean = th.MinBrightness - 0.001 }, IssueBrightnessTooLow},
		{"Too bright", func(m *models.Metrics, _ *int) { m.BrightnessMean = th.MaxBrightness + 0.001 }, IssueBrightnessTooHigh},
		{"NaN sharpness", func(m *models.Metrics, _ *int) { m.Sharpness = math.NaN() }, IssueLowSharpness},
		{"NaN noise", func(m *models.Metrics, _ *int) { m.Noise = math.NaN() }, IssueHighNoise},
		{"NaN uniformity", func(m *models.Metrics, _ *int) { m.ExposureUniformity = math.NaN() }, IssueUnevenExposure},
		{"NaN brightness", func(m *models.Metrics, _ *int) { m.BrightnessMean = math.NaN() }, IssueBrightnessTooLow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := passingMetrics()
			dead := 0
			tc.mutate(&m, &dead)

			report := BuildReport(m, dead, nil, 0, th)
			if report.Pass {
				t.Fatal("Expected FAIL after violating a single threshold")
			}
			if len(report.Issues) != 1 {
				t.Fatalf("Expected exactly one issue, got %v", report.Issues)
			}
			if report.Issues[0].Type != tc.issueType {
				t.Errorf("Expected issue %s, got %s", tc.issueType, report.Issues[0].Type)
			}
			if report.Issues[0].Severity != SeverityError {
				t.Errorf("Expected error severity, got %s", report.Issues[0].Severity)
			}
		})
	}
}

func TestBuildReport_BoundariesAreInclusive(t *testing.T) {
	th := DefaultThresholds()
	m := models.Metrics{
		Sharpness:          th.MinSharpness,
		Noise:              th.MaxNoise,
		ExposureUniformity: th.MinExposureUniformity,
		BrightnessMean:     th.MinBrightness,
	}

	if report := BuildReport(m, th.MaxDeadPixels, nil, 0, th); !report.Pass {
		t.Errorf("Expected PASS exactly on the lower bounds, got %v", report.Issues)
	}

	m.BrightnessMean = th.MaxBrightness
	if report := BuildReport(m, th.MaxDeadPixels, nil, 0, th); !report.Pass {
		t.Errorf("Expected PASS exactly on maxBrightness, got %v", report.Issues)
	}
}

func TestBuildReport_IsPure(t *testing.T) {
	series := []float64{50, 60, 70}
	first := BuildReport(passingMetrics(), 0, series, 10, DefaultThresholds())
	second := BuildReport(passingMetrics(), 0, series, 10, DefaultThresholds())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical reports, got %+v and %+v", first, second)
	}

	// The report must not alias the caller's slice
	series[0] = 999
	if first.BrightnessSeries[0] != 50 {
		t.Errorf("Expected report series to be a copy, got %v", first.BrightnessSeries)
	}
}

func TestValidateThresholds(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(th *models.Thresholds)
		wantErr bool
	}{
		{"Defaults", func(th *models.Thresholds) {}, false},
		{"Min above max brightness", func(th *models.Thresholds) { th.MinBrightness = 250 }, true},
		{"Negative dead pixels", func(th *models.Thresholds) { th.MaxDeadPixels = -1 }, true},
		{"Uniformity above one", func(th *models.Thresholds) { th.MinExposureUniformity = 1.5 }, true},
		{"Negative noise", func(th *models.Thresholds) { th.MaxNoise = -2 }, true},
		{"Zero everywhere", func(th *models.Thresholds) { *th = models.Thresholds{} }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			th := DefaultThresholds()
			tc.mutate(&th)
			err := ValidateThresholds(th)
			if tc.wantErr && err == nil {
				t.Error("Expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestHasCriticalIssues(t *testing.T) {
	if HasCriticalIssues(nil) {
		t.Error("Expected no critical issues for empty list")
	}
	if HasCriticalIssues([]QualityIssue{{Severity: SeverityWarning}}) {
		t.Error("Expected warnings not to be critical")
	}
	if !HasCriticalIssues([]QualityIssue{{Severity: SeverityWarning}, {Severity: SeverityError}}) {
		t.Error("Expected error severity to be critical")
	}
}

func TestConvertIssuesToMessages(t *testing.T) {
	m := passingMetrics()
	m.Sharpness = 0
	m.Noise = 100
	report := BuildReport(m, 0, nil, 0, DefaultThresholds())

	messages := ConvertIssuesToMessages(report.Issues)
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	for _, msg := range messages {
		if msg == "" {
			t.Error("Expected non-empty message")
		}
	}
}
