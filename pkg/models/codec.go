package models

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is a report exchange format
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported report format: %q", s)
	}
}

// perFrameDocument is the per_frame block of the exchange document
type perFrameDocument struct {
	Sharpness          float64 `json:"sharpness" yaml:"sharpness"`
	Noise              float64 `json:"noise" yaml:"noise"`
	ExposureUniformity float64 `json:"exposure_uniformity" yaml:"exposure_uniformity"`
	// Always zero; stuck pixels need more than one frame.
	DeadPixelsSingleFrame int     `json:"dead_pixels_single_frame" yaml:"dead_pixels_single_frame"`
	BrightnessMean        float64 `json:"brightness_mean" yaml:"brightness_mean"`
}

// reportDocument is the wire layout of a Report
type reportDocument struct {
	ID               string           `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedAt        *time.Time       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	FrameCount       int              `json:"frame_count" yaml:"frame_count"`
	PerFrame         perFrameDocument `json:"per_frame" yaml:"per_frame"`
	DeadPixels       int              `json:"dead_pixels_multi_frame" yaml:"dead_pixels_multi_frame"`
	BrightnessSeries []float64        `json:"brightness_series" yaml:"brightness_series"`
	BrightnessSlope  float64          `json:"brightness_slope" yaml:"brightness_slope"`
	TemporalStatus   TemporalStatus   `json:"temporal_status,omitempty" yaml:"temporal_status,omitempty"`
	Thresholds       Thresholds       `json:"thresholds" yaml:"thresholds"`
	Issues           []QualityIssue   `json:"issues,omitempty" yaml:"issues,omitempty"`
	Overall          string           `json:"overall" yaml:"overall"`
}

func (r Report) document() reportDocument {
	doc := reportDocument{
		ID:         r.ID,
		FrameCount: r.FrameCount,
		PerFrame: perFrameDocument{
			Sharpness:          r.PerFrame.Sharpness,
			Noise:              r.PerFrame.Noise,
			ExposureUniformity: r.PerFrame.ExposureUniformity,
			BrightnessMean:     r.PerFrame.BrightnessMean,
		},
		DeadPixels:       r.DeadPixels,
		BrightnessSeries: r.BrightnessSeries,
		BrightnessSlope:  r.BrightnessSlope,
		TemporalStatus:   r.TemporalStatus,
		Thresholds:       r.Thresholds,
		Issues:           r.Issues,
		Overall:          r.Overall(),
	}
	if !r.CreatedAt.IsZero() {
		createdAt := r.CreatedAt
		doc.CreatedAt = &createdAt
	}
	if doc.BrightnessSeries == nil {
		doc.BrightnessSeries = []float64{}
	}
	return doc
}

func (r *Report) fromDocument(doc reportDocument) error {
	var pass bool
	switch doc.Overall {
	case OverallPass:
		pass = true
	case OverallFail:
		pass = false
	default:
		return fmt.Errorf("invalid overall verdict %q", doc.Overall)
	}

	*r = Report{
		ID:             doc.ID,
		FrameCount:     doc.FrameCount,
		TemporalStatus: doc.TemporalStatus,
		PerFrame: Metrics{
			Sharpness:          doc.PerFrame.Sharpness,
			Noise:              doc.PerFrame.Noise,
			ExposureUniformity: doc.PerFrame.ExposureUniformity,
			BrightnessMean:     doc.PerFrame.BrightnessMean,
		},
		DeadPixels:       doc.DeadPixels,
		BrightnessSeries: doc.BrightnessSeries,
		BrightnessSlope:  doc.BrightnessSlope,
		Thresholds:       doc.Thresholds,
		Pass:             pass,
		Issues:           doc.Issues,
	}
	if doc.CreatedAt != nil {
		r.CreatedAt = *doc.CreatedAt
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.document())
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Report) UnmarshalJSON(data []byte) error {
	var doc reportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return r.fromDocument(doc)
}

// MarshalYAML implements yaml.Marshaler
func (r Report) MarshalYAML() (interface{}, error) {
	return r.document(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (r *Report) UnmarshalYAML(value *yaml.Node) error {
	var doc reportDocument
	if err := value.Decode(&doc); err != nil {
		return err
	}
	return r.fromDocument(doc)
}

// EncodeReport writes r to w in the given format, indented by two spaces
func EncodeReport(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format: %q", format)
	}
}

// DecodeReport reads a report previously written by EncodeReport
func DecodeReport(rd io.Reader, format Format) (Report, error) {
	var r Report
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(rd).Decode(&r); err != nil {
			return Report{}, err
		}
	case FormatYAML:
		if err := yaml.NewDecoder(rd).Decode(&r); err != nil {
			return Report{}, err
		}
	default:
		return Report{}, fmt.Errorf("unsupported report format: %q", format)
	}
	return r, nil
}
