package models

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		ID:             "4b0c1f55-5f6e-4d6a-9b0e-0d6f3c1a2b3c",
		CreatedAt:      time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		FrameCount:     3,
		TemporalStatus: TemporalAnalyzed,
		PerFrame: Metrics{
			Sharpness:          812.4375,
			Noise:              3.1415926,
			ExposureUniformity: 0.9731,
			BrightnessMean:     127.5,
		},
		DeadPixels:       2,
		BrightnessSeries: []float64{127.5, 126.25, 125.0},
		BrightnessSlope:  -1.25,
		Thresholds: Thresholds{
			MinSharpness:          50,
			MaxNoise:              15,
			MinExposureUniformity: 0.85,
			MaxDeadPixels:         0,
			MinBrightness:         10,
			MaxBrightness:         245,
		},
		Pass: false,
		Issues: []QualityIssue{
			{Type: "dead_pixels", Message: "2 stuck pixels", Severity: "error", ActualValue: 2, Threshold: 0},
		},
	}
}

func TestEncodeReport_JSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeReport(&buf, sampleReport(), FormatJSON))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	perFrame, ok := doc["per_frame"].(map[string]interface{})
	require.True(t, ok, "per_frame must be an object")
	for _, key := range []string{"sharpness", "noise", "exposure_uniformity", "brightness_mean", "dead_pixels_single_frame"} {
		assert.Contains(t, perFrame, key)
	}

	thresholds, ok := doc["thresholds"].(map[string]interface{})
	require.True(t, ok, "thresholds must be an object")
	for _, key := range []string{"minSharpness", "maxNoise", "minExposureUniformity", "maxDeadPixels", "minBrightness", "maxBrightness"} {
		assert.Contains(t, thresholds, key)
	}

	assert.Equal(t, float64(2), doc["dead_pixels_multi_frame"])
	assert.Equal(t, -1.25, doc["brightness_slope"])
	assert.Equal(t, "FAIL", doc["overall"])
	assert.Len(t, doc["brightness_series"], 3)
	assert.Equal(t, "analyzed", doc["temporal_status"])
}

func TestReportRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			for _, pass := range []bool{true, false} {
				original := sampleReport()
				original.Pass = pass

				var buf bytes.Buffer
				require.NoError(t, EncodeReport(&buf, original, format))

				decoded, err := DecodeReport(&buf, format)
				require.NoError(t, err)

				assert.Equal(t, original.Pass, decoded.Pass)
				assert.Equal(t, original.Overall(), decoded.Overall())
				assert.InDelta(t, original.PerFrame.Sharpness, decoded.PerFrame.Sharpness, 1e-9)
				assert.InDelta(t, original.PerFrame.Noise, decoded.PerFrame.Noise, 1e-9)
				assert.InDelta(t, original.PerFrame.ExposureUniformity, decoded.PerFrame.ExposureUniformity, 1e-9)
				assert.InDelta(t, original.PerFrame.BrightnessMean, decoded.PerFrame.BrightnessMean, 1e-9)
				assert.InDelta(t, original.BrightnessSlope, decoded.BrightnessSlope, 1e-9)
				assert.InDeltaSlice(t, original.BrightnessSeries, decoded.BrightnessSeries, 1e-9)
				assert.Equal(t, original.DeadPixels, decoded.DeadPixels)
				assert.Equal(t, original.Thresholds, decoded.Thresholds)
				assert.Equal(t, original.ID, decoded.ID)
				assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
				assert.Equal(t, original.Issues, decoded.Issues)
			}
		})
	}
}

func TestEncodeReport_NilSeriesIsEmptyList(t *testing.T) {
	var buf bytes.Buffer
	r := Report{Pass: true}
	require.NoError(t, EncodeReport(&buf, r, FormatJSON))
	assert.Contains(t, buf.String(), `"brightness_series": []`)
	assert.Contains(t, buf.String(), `"overall": "PASS"`)
	assert.NotContains(t, buf.String(), "created_at")
}

func TestDecodeReport_InvalidOverall(t *testing.T) {
	_, err := DecodeReport(bytes.NewBufferString(`{"overall":"MAYBE"}`), FormatJSON)
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestThresholdOverrides_Apply(t *testing.T) {
	base := sampleReport().Thresholds
	sharp := 120.0
	dead := 3
	got := (&ThresholdOverrides{MinSharpness: &sharp, MaxDeadPixels: &dead}).Apply(base)

	assert.Equal(t, 120.0, got.MinSharpness)
	assert.Equal(t, 3, got.MaxDeadPixels)
	assert.Equal(t, base.MaxNoise, got.MaxNoise)
	assert.Equal(t, base.MaxBrightness, got.MaxBrightness)

	var nilOverrides *ThresholdOverrides
	assert.Equal(t, base, nilOverrides.Apply(base))
}
