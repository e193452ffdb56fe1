// Package config loads engine and CLI settings from .env files, CVA_*
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/bcdannyboy/wcva/ipfp"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "CVA"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	// synthetic scenario
	Paths       int
	Intervals   int
	MaxExposure float64
	Seed        uint64

	// term structure; zero rates keep the flat 1/intervals defaults and undiscounted exposures
	HazardRate   float64
	DiscountRate float64
	Horizon      float64

	Penalties        []float64
	LossGivenDefault float64

	RowTolerance            float64
	ColumnRelativeTolerance float64
	ColumnAbsoluteTolerance float64
	MaxIterations           int
	BlockSize               int
	Workers                 int
	DisableRescale          bool
	ZeroSumPolicy           ipfp.ZeroSumPolicy
	RequireConvergence      bool

	LogLevel  string
	LogFormat string
	Output    string
	Progress  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths", 100000)
	v.SetDefault("intervals", 20)
	v.SetDefault("max_exposure", 10.0)
	v.SetDefault("seed", 1)
	v.SetDefault("hazard", 0.0)
	v.SetDefault("discount_rate", 0.0)
	v.SetDefault("horizon", 5.0)
	v.SetDefault("penalties", "0,0.5,1,2,5,10")
	v.SetDefault("lgd", 0.6)

	v.SetDefault("row_tolerance", ipfp.DefaultRowTolerance)
	v.SetDefault("column_relative_tolerance", ipfp.DefaultColumnRelativeTolerance)
	v.SetDefault("column_absolute_tolerance", ipfp.DefaultColumnAbsoluteTolerance)
	v.SetDefault("max_iterations", ipfp.DefaultMaxIterations)
	v.SetDefault("block_size", ipfp.DefaultBlockSize)
	v.SetDefault("workers", 0)
	v.SetDefault("disable_rescale", false)
	v.SetDefault("zero_sum_policy", "fail")
	v.SetDefault("require_convergence", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("output", "")
	v.SetDefault("progress", true)
}

// Load reads the given .env files (missing files are skipped; none means
// ".env"), then resolves every key from CVA_* variables, the YAML file
// named by CVA_CONFIG, and the defaults, in that order of precedence.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	penalties, err := penaltiesFrom(v.Get("penalties"))
	if err != nil {
		return nil, fmt.Errorf("%w: penalties: %v", ErrInvalidConfig, err)
	}
	policy, err := ipfp.ParseZeroSumPolicy(strings.ToLower(v.GetString("zero_sum_policy")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Config{
		Paths:       v.GetInt("paths"),
		Intervals:   v.GetInt("intervals"),
		MaxExposure: v.GetFloat64("max_exposure"),
		Seed:        v.GetUint64("seed"),

		HazardRate:   v.GetFloat64("hazard"),
		DiscountRate: v.GetFloat64("discount_rate"),
		Horizon:      v.GetFloat64("horizon"),

		Penalties:        penalties,
		LossGivenDefault: v.GetFloat64("lgd"),

		RowTolerance:            v.GetFloat64("row_tolerance"),
		ColumnRelativeTolerance: v.GetFloat64("column_relative_tolerance"),
		ColumnAbsoluteTolerance: v.GetFloat64("column_absolute_tolerance"),
		MaxIterations:           v.GetInt("max_iterations"),
		BlockSize:               v.GetInt("block_size"),
		Workers:                 v.GetInt("workers"),
		DisableRescale:          v.GetBool("disable_rescale"),
		ZeroSumPolicy:           policy,
		RequireConvergence:      v.GetBool("require_convergence"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: strings.ToLower(v.GetString("log_format")),
		Output:    v.GetString("output"),
		Progress:  v.GetBool("progress"),
	}, nil
}

// penaltiesFrom accepts a comma list from the environment or a YAML sequence
func penaltiesFrom(raw interface{}) ([]float64, error) {
	switch vals := raw.(type) {
	case []interface{}:
		fields := make([]string, len(vals))
		for i, val := range vals {
			fields[i] = fmt.Sprint(val)
		}
		return parseFloatList(strings.Join(fields, ","))
	case []float64:
		return vals, nil
	default:
		return parseFloatList(fmt.Sprint(raw))
	}
}

// parseFloatList parses "0, 0.5,1" into its values; blank entries are skipped
func parseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (c *Config) Validate() error {
	if c.Paths < 1 {
		return fmt.Errorf("%w: paths must be positive, got %d", ErrInvalidConfig, c.Paths)
	}
	if c.Intervals < 1 {
		return fmt.Errorf("%w: intervals must be positive, got %d", ErrInvalidConfig, c.Intervals)
	}
	if !(c.MaxExposure >= 0) || math.IsInf(c.MaxExposure, 0) {
		return fmt.Errorf("%w: max_exposure must be finite and non-negative, got %v", ErrInvalidConfig, c.MaxExposure)
	}
	if !(c.HazardRate >= 0) || math.IsInf(c.HazardRate, 0) {
		return fmt.Errorf("%w: hazard must be finite and non-negative, got %v", ErrInvalidConfig, c.HazardRate)
	}
	if !(c.DiscountRate >= 0) || math.IsInf(c.DiscountRate, 0) {
		return fmt.Errorf("%w: discount_rate must be finite and non-negative, got %v", ErrInvalidConfig, c.DiscountRate)
	}
	if !(c.Horizon > 0) || math.IsInf(c.Horizon, 0) {
		return fmt.Errorf("%w: horizon must be finite and positive, got %v", ErrInvalidConfig, c.Horizon)
	}
	if len(c.Penalties) == 0 {
		return fmt.Errorf("%w: at least one penalty is required", ErrInvalidConfig)
	}
	for _, p := range c.Penalties {
		if !(p >= 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: penalty %v must be finite and non-negative", ErrInvalidConfig, p)
		}
	}
	if !(c.LossGivenDefault >= 0 && c.LossGivenDefault <= 1) {
		return fmt.Errorf("%w: lgd must be in [0, 1], got %v", ErrInvalidConfig, c.LossGivenDefault)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("%w: log_format must be json or console, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.EngineOptions(nil).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// EngineOptions maps the engine keys onto ipfp.Options
func (c *Config) EngineOptions(logger *zap.Logger) ipfp.Options {
	return ipfp.Options{
		Tolerances: ipfp.Tolerances{
			Row:            c.RowTolerance,
			ColumnRelative: c.ColumnRelativeTolerance,
			ColumnAbsolute: c.ColumnAbsoluteTolerance,
		},
		MaxIterations:      c.MaxIterations,
		BlockSize:          c.BlockSize,
		Workers:            c.Workers,
		DisableRescale:     c.DisableRescale,
		ZeroSum:            c.ZeroSumPolicy,
		RequireConvergence: c.RequireConvergence,
		Logger:             logger,
	}
}

// Logger builds a production (json) or development (console) zap logger at LogLevel
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if c.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
