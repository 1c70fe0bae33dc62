package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ValidateConfig validates configuration values and returns an error
// listing every invalid one. Call it after Load.
func ValidateConfig() error {
	var errors []string

	positiveInt := func(key string) {
		if v := viper.GetInt64(key); v <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", key, v))
		}
	}
	positiveInt(KeyWarmupThresholdMs)
	positiveInt(KeyMaxIterations)
	positiveInt(KeyCalibrationBudgetMs)
	positiveInt(KeyParallelism)

	if g := viper.GetInt64(KeyGrowthFactor); g < 2 {
		errors = append(errors, fmt.Sprintf("%s must be at least 2, got: %d", KeyGrowthFactor, g))
	}
	if n := viper.GetInt(KeySampleCount); n < 2 {
		errors = append(errors, fmt.Sprintf("%s must be at least 2, got: %d", KeySampleCount, n))
	}
	if k := viper.GetFloat64(KeyOutlierK); k <= 0 {
		errors = append(errors, fmt.Sprintf("%s must be positive, got: %v", KeyOutlierK, k))
	}
	if f := viper.GetFloat64(KeyMaxOutlierFraction); f < 0 || f >= 1 {
		errors = append(errors, fmt.Sprintf("%s must be in [0, 1), got: %v", KeyMaxOutlierFraction, f))
	}
	if cv := viper.GetFloat64(KeyInstabilityCVThreshold); cv <= 0 {
		errors = append(errors, fmt.Sprintf("%s must be positive, got: %v", KeyInstabilityCVThreshold, cv))
	}
	if b := viper.GetInt64(KeyTimeBudgetMs); b < 0 {
		errors = append(errors, fmt.Sprintf("%s must not be negative, got: %d", KeyTimeBudgetMs, b))
	}
	if t := viper.GetFloat64(KeyCompareThresh); t < 0 {
		errors = append(errors, fmt.Sprintf("%s must not be negative, got: %v", KeyCompareThresh, t))
	}

	switch backend := viper.GetString(KeyHistoryBackend); backend {
	case "file", "sqlite":
		if viper.GetString(KeyHistoryPath) == "" {
			errors = append(errors, fmt.Sprintf("%s is required for the %s history backend", KeyHistoryPath, backend))
		}
	case "postgres":
		if viper.GetString(KeyHistoryDSN) == "" {
			errors = append(errors, fmt.Sprintf("%s is required for the postgres history backend", KeyHistoryDSN))
		}
	default:
		errors = append(errors, fmt.Sprintf("%s must be one of file, sqlite, postgres, got: %q", KeyHistoryBackend, backend))
	}

	if viper.IsSet(KeyMetricsPort) {
		port := viper.GetInt(KeyMetricsPort)
		if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("%s must be between 1 and 65535, got: %d", KeyMetricsPort, port))
		}
	}

	switch f := strings.ToLower(viper.GetString(KeyLogFormat)); f {
	case "", "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("%s must be json or text, got: %q", KeyLogFormat, f))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}
