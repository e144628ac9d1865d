package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"go-endoqa/pkg/models"
	"go-endoqa/pkg/validation"
)

// Threshold keys as they appear in threshold files and ENDOQA_* variables
const (
	keyMinSharpness          = "minSharpness"
	keyMaxNoise              = "maxNoise"
	keyMinExposureUniformity = "minExposureUniformity"
	keyMaxDeadPixels         = "maxDeadPixels"
	keyMinBrightness         = "minBrightness"
	keyMaxBrightness         = "maxBrightness"

	thresholdsEnvPrefix = "ENDOQA"
)

// LoadThresholds reads a threshold file (yaml, toml or json, chosen by
// extension). Keys missing from the file keep their default, and
// ENDOQA_<KEY> environment variables override both. An empty path yields the
// defaults with environment overrides applied.
func LoadThresholds(path string) (models.Thresholds, error) {
	v := viper.New()

	defaults := validation.DefaultThresholds()
	v.SetDefault(keyMinSharpness, defaults.MinSharpness)
	v.SetDefault(keyMaxNoise, defaults.MaxNoise)
	v.SetDefault(keyMinExposureUniformity, defaults.MinExposureUniformity)
	v.SetDefault(keyMaxDeadPixels, defaults.MaxDeadPixels)
	v.SetDefault(keyMinBrightness, defaults.MinBrightness)
	v.SetDefault(keyMaxBrightness, defaults.MaxBrightness)

	v.SetEnvPrefix(thresholdsEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return models.Thresholds{}, fmt.Errorf("failed to read thresholds file %s: %w", path, err)
		}
	}

	th := models.Thresholds{
		MinSharpness:          v.GetFloat64(keyMinSharpness),
		MaxNoise:              v.GetFloat64(keyMaxNoise),
		MinExposureUniformity: v.GetFloat64(keyMinExposureUniformity),
		MaxDeadPixels:         v.GetInt(keyMaxDeadPixels),
		MinBrightness:         v.GetFloat64(keyMinBrightness),
		MaxBrightness:         v.GetFloat64(keyMaxBrightness),
	}

	if err := validation.ValidateThresholds(th); err != nil {
		return models.Thresholds{}, fmt.Errorf("invalid thresholds: %w", err)
	}
	return th, nil
}
