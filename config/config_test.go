package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bcdannyboy/wcva/ipfp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// unsetForTest clears key for the duration of the test, restoring it afterwards
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 100000, cfg.Paths)
	assert.Equal(t, 20, cfg.Intervals)
	assert.Equal(t, 10.0, cfg.MaxExposure)
	assert.Equal(t, []float64{0, 0.5, 1, 2, 5, 10}, cfg.Penalties)
	assert.Equal(t, 0.6, cfg.LossGivenDefault)
	assert.Equal(t, 0.0, cfg.HazardRate)
	assert.Equal(t, 0.0, cfg.DiscountRate)
	assert.Equal(t, 5.0, cfg.Horizon)
	assert.Equal(t, ipfp.ZeroSumFail, cfg.ZeroSumPolicy)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.Progress)

	opts := cfg.EngineOptions(nil)
	assert.Equal(t, ipfp.DefaultTolerances(), opts.Tolerances)
	assert.Equal(t, ipfp.DefaultMaxIterations, opts.MaxIterations)
	assert.Equal(t, ipfp.DefaultBlockSize, opts.BlockSize)
	assert.NoError(t, opts.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CVA_PATHS", "5000")
	t.Setenv("CVA_PENALTIES", "0, 1.5 ,3")
	t.Setenv("CVA_LGD", "0.45")
	t.Setenv("CVA_ZERO_SUM_POLICY", "Uniform")
	t.Setenv("CVA_WORKERS", "3")
	t.Setenv("CVA_REQUIRE_CONVERGENCE", "true")
	t.Setenv("CVA_ROW_TOLERANCE", "1e-9")
	t.Setenv("CVA_LOG_FORMAT", "json")
	t.Setenv("CVA_HAZARD", "0.02")
	t.Setenv("CVA_DISCOUNT_RATE", "0.03")
	t.Setenv("CVA_HORIZON", "10")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Paths)
	assert.Equal(t, 0.02, cfg.HazardRate)
	assert.Equal(t, 0.03, cfg.DiscountRate)
	assert.Equal(t, 10.0, cfg.Horizon)
	assert.Equal(t, []float64{0, 1.5, 3}, cfg.Penalties)
	assert.Equal(t, 0.45, cfg.LossGivenDefault)
	assert.Equal(t, ipfp.ZeroSumUniform, cfg.ZeroSumPolicy)

	opts := cfg.EngineOptions(nil)
	assert.Equal(t, 3, opts.Workers)
	assert.True(t, opts.RequireConvergence)
	assert.Equal(t, 1e-9, opts.Tolerances.Row)
	assert.Equal(t, ipfp.ZeroSumUniform, opts.ZeroSum)
}

func TestLoadFromDotEnv(t *testing.T) {
	unsetForTest(t, "CVA_INTERVALS")
	unsetForTest(t, "CVA_SEED")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CVA_INTERVALS=7\nCVA_SEED=42\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Intervals)
	assert.Equal(t, uint64(42), cfg.Seed)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cva.yaml")
	body := "paths: 250\nmax_exposure: 4\npenalties: [0, 2, 8]\nmax_iterations: 40\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CVA_CONFIG", path)
	t.Setenv("CVA_MAX_ITERATIONS", "60")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Paths)
	assert.Equal(t, 4.0, cfg.MaxExposure)
	assert.Equal(t, []float64{0, 2, 8}, cfg.Penalties)
	assert.Equal(t, 60, cfg.MaxIterations, "environment overrides the file")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CVA_PATHS", "0"},
		{"CVA_INTERVALS", "-2"},
		{"CVA_PENALTIES", "0,abc"},
		{"CVA_PENALTIES", "-1"},
		{"CVA_LGD", "1.2"},
		{"CVA_HAZARD", "-0.1"},
		{"CVA_DISCOUNT_RATE", "NaN"},
		{"CVA_HORIZON", "0"},
		{"CVA_ZERO_SUM_POLICY", "skip"},
		{"CVA_MAX_ITERATIONS", "0"},
		{"CVA_COLUMN_ABSOLUTE_TOLERANCE", "0"},
		{"CVA_LOG_FORMAT", "xml"},
		{"CVA_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(missingEnvFile(t))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CVA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load(missingEnvFile(t))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	cfg.LogFormat = "console"
	cfg.LogLevel = "debug"
	logger, err = cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	cfg.LogLevel = "nope"
	_, err = cfg.Logger()
	assert.Error(t, err)
}
