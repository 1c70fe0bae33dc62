package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbench/internal/benchmark"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Chdir(t.TempDir())

	require.NoError(t, Load(""))
	assert.Equal(t, benchmark.DefaultConfig(), Harness())
	assert.Equal(t, uint64(1), Seed())
	assert.Equal(t, "file", viper.GetString(KeyHistoryBackend))
	assert.NoError(t, ValidateConfig())

	_, err := os.Stat("config.yaml")
	assert.True(t, os.IsNotExist(err), "loading must not create a config file")
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("MICROBENCH_SAMPLE_COUNT", "7")
	t.Setenv("MICROBENCH_HISTORY_BACKEND", "sqlite")

	require.NoError(t, Load(""))
	assert.Equal(t, 7, Harness().SampleCount)
	assert.Equal(t, "sqlite", viper.GetString(KeyHistoryBackend))
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("warmup_threshold_ms: 20\ntime_budget_ms: 1500\nseed: 42\n"), 0644))

	require.NoError(t, Load(path))
	cfg := Harness()
	assert.Equal(t, 20*time.Millisecond, cfg.MinInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.TimeBudget)
	assert.Equal(t, uint64(42), Seed())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestSaveRoundTrip(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Chdir(t.TempDir())
	require.NoError(t, Load(""))
	viper.Set(KeySampleCount, 33)

	require.NoError(t, Save("config.yaml"))

	viper.Reset()
	require.NoError(t, Load(""))
	assert.Equal(t, 33, Harness().SampleCount)
}

func TestValidateConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	viper.Set(KeySampleCount, 1)
	viper.Set(KeyMaxOutlierFraction, 1.5)
	viper.Set(KeyHistoryBackend, "mongo")
	viper.Set(KeyMetricsPort, 70000)
	viper.Set(KeyLogFormat, "xml")

	err := ValidateConfig()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "sample_count must be at least 2")
	assert.Contains(t, msg, "max_outlier_fraction")
	assert.Contains(t, msg, "history.backend")
	assert.Contains(t, msg, "metrics_port")
	assert.Contains(t, msg, "log_format must be json or text")

	viper.Set(KeyHistoryBackend, "postgres")
	assert.Contains(t, ValidateConfig().Error(), "history.dsn is required")
}
