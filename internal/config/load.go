package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"microbench/internal/benchmark"
)

// Configuration keys.
const (
	KeyWarmupThresholdMs      = "warmup_threshold_ms"
	KeyGrowthFactor           = "growth_factor"
	KeyMaxIterations          = "max_iterations"
	KeyCalibrationBudgetMs    = "calibration_budget_ms"
	KeySampleCount            = "sample_count"
	KeyOutlierK               = "outlier_k"
	KeyMaxOutlierFraction     = "max_outlier_fraction"
	KeyInstabilityCVThreshold = "instability_cv_threshold"
	KeyTimeBudgetMs           = "time_budget_ms"
	KeyParallelism            = "parallelism"
	KeySeed                   = "seed"

	KeyHistoryBackend  = "history.backend"
	KeyHistoryPath     = "history.path"
	KeyHistoryDSN      = "history.dsn"
	KeyCompareThresh   = "compare.threshold"
	KeyMetricsEnabled  = "metrics.enabled"
	KeyMetricsPort     = "metrics_port"
	KeyPushgateway     = "metrics.pushgateway"
	KeySlackEnabled    = "notifications.slack.enabled"
	KeySlackChannel    = "notifications.slack.channel"
	KeySlackOnlyIssues = "notifications.slack.only_on_issues"
	KeyVerbose         = "verbose"
	KeyLogFile         = "log_file"
	KeyLogFormat       = "log_format"
)

// EnvPrefix prefixes every environment override, e.g. MICROBENCH_SAMPLE_COUNT.
const EnvPrefix = "MICROBENCH"

// Load initializes the configuration from file and environment variables.
// A missing config file is not an error; run `microbench init` to create one.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	return nil
}

// SetDefaults registers a default for every option.
func SetDefaults() {
	d := benchmark.DefaultConfig()
	viper.SetDefault(KeyWarmupThresholdMs, d.MinInterval.Milliseconds())
	viper.SetDefault(KeyGrowthFactor, d.GrowthFactor)
	viper.SetDefault(KeyMaxIterations, d.MaxIterations)
	viper.SetDefault(KeyCalibrationBudgetMs, d.CalibrationBudget.Milliseconds())
	viper.SetDefault(KeySampleCount, d.SampleCount)
	viper.SetDefault(KeyOutlierK, d.OutlierK)
	viper.SetDefault(KeyMaxOutlierFraction, d.MaxOutlierFraction)
	viper.SetDefault(KeyInstabilityCVThreshold, d.CVThreshold)
	viper.SetDefault(KeyTimeBudgetMs, 0)
	viper.SetDefault(KeyParallelism, d.Parallelism)
	viper.SetDefault(KeySeed, 1)

	viper.SetDefault(KeyHistoryBackend, "file")
	viper.SetDefault(KeyHistoryPath, ".microbench/history.json")
	viper.SetDefault(KeyHistoryDSN, "")
	viper.SetDefault(KeyCompareThresh, 5.0)
	viper.SetDefault(KeyMetricsEnabled, false)
	viper.SetDefault(KeyMetricsPort, 2112)
	viper.SetDefault(KeyPushgateway, "")

	viper.SetDefault(KeySlackEnabled, os.Getenv("SLACK_BOT_USER_TOKEN") != "")
	viper.SetDefault(KeySlackChannel, "#benchmarks")
	viper.SetDefault(KeySlackOnlyIssues, false)

	viper.SetDefault(KeyVerbose, false)
	viper.SetDefault(KeyLogFile, "")
	viper.SetDefault(KeyLogFormat, "json")
}

// Harness materializes the engine configuration from viper.
func Harness() benchmark.Config {
	return benchmark.Config{
		MinInterval:        time.Duration(viper.GetInt64(KeyWarmupThresholdMs)) * time.Millisecond,
		GrowthFactor:       viper.GetInt64(KeyGrowthFactor),
		MaxIterations:      viper.GetInt64(KeyMaxIterations),
		CalibrationBudget:  time.Duration(viper.GetInt64(KeyCalibrationBudgetMs)) * time.Millisecond,
		SampleCount:        viper.GetInt(KeySampleCount),
		OutlierK:           viper.GetFloat64(KeyOutlierK),
		MaxOutlierFraction: viper.GetFloat64(KeyMaxOutlierFraction),
		CVThreshold:        viper.GetFloat64(KeyInstabilityCVThreshold),
		TimeBudget:         time.Duration(viper.GetInt64(KeyTimeBudgetMs)) * time.Millisecond,
		Parallelism:        viper.GetInt(KeyParallelism),
	}
}

// Seed is the data generation seed.
func Seed() uint64 {
	return viper.GetUint64(KeySeed)
}

// Save writes the current settings to path as YAML.
func Save(path string) error {
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
