package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/bcdannyboy/wcva/config"
	"github.com/bcdannyboy/wcva/cva"
	"github.com/bcdannyboy/wcva/ipfp"
	"github.com/bcdannyboy/wcva/scenario"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/xhhuango/json"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

type penaltyReport struct {
	Penalty      float64  `json:"penalty"`
	CVA          float64  `json:"cva"`
	ExpectedLoss float64  `json:"expected_loss"`
	Objective    *float64 `json:"objective,omitempty"`
	Status       string   `json:"status"`
	Iterations   int      `json:"iterations"`
	Rescale      float64  `json:"rescale"`
	Workers      int      `json:"workers"`
	RowError     float64  `json:"row_error"`
	ColumnError  float64  `json:"column_error"`
	MaxWeight    float64  `json:"max_weight"`
}

type report struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	Paths            int             `json:"paths"`
	Intervals        int             `json:"intervals"`
	Seed             uint64          `json:"seed"`
	HazardRate       float64         `json:"hazard"`
	DiscountRate     float64         `json:"discount_rate"`
	Horizon          float64         `json:"horizon"`
	LossGivenDefault float64         `json:"lgd"`
	IndependentCVA   float64         `json:"independent_cva"`
	WorstCase        []penaltyReport `json:"worst_case"`
}

func main() {
	envFile := flag.String("env", ".env", "dotenv file loaded before reading CVA_* variables")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "wcva: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	start := time.Now()
	s, err := scenario.NewUniform(cfg.Paths, cfg.Intervals, cfg.MaxExposure, cfg.Seed, ipfp.AvailableCores())
	if err != nil {
		return err
	}
	if cfg.HazardRate > 0 || cfg.DiscountRate > 0 {
		if s, err = scenario.WithTermStructure(s, cfg.Horizon, cfg.HazardRate, cfg.DiscountRate); err != nil {
			return err
		}
	}
	logger.Info("synthetic scenario ready",
		zap.Int("paths", s.PathCount()),
		zap.Int("intervals", s.IntervalCount()),
		zap.Float64("hazard", cfg.HazardRate),
		zap.Float64("discount_rate", cfg.DiscountRate),
		zap.Duration("elapsed", time.Since(start)),
	)
	exposures, probabilities := scenario.Collect(s)

	calc, err := cva.NewCalculator(cfg.LossGivenDefault)
	if err != nil {
		return err
	}
	calc.Options = cfg.EngineOptions(logger)

	independent, err := calc.Independent(exposures, probabilities)
	if err != nil {
		return err
	}

	bars, wait := progressBars(cfg)
	current := 0
	calc.Options.OnIteration = func(ipfp.IterationReport) {
		bars[current].Increment()
	}

	results, err := calc.Sweep(s, cfg.Penalties, func(res *cva.Result) {
		bars[current].SetTotal(-1, true)
		current++
		logger.Info("worst-case cva",
			zap.Float64("penalty", res.Penalty),
			zap.Float64("cva", res.Value),
			zap.Stringer("status", res.Status),
			zap.Int("iterations", res.Iterations),
		)
	})
	for ; current < len(bars); current++ {
		bars[current].Abort(false)
	}
	wait()
	if err != nil && !errors.Is(err, ipfp.ErrNotConverged) {
		return err
	}
	if err != nil {
		logger.Warn("sweep finished with unconverged penalties", zap.Error(err))
	}

	rep := report{
		GeneratedAt:      time.Now().UTC(),
		Paths:            cfg.Paths,
		Intervals:        cfg.Intervals,
		Seed:             cfg.Seed,
		HazardRate:       cfg.HazardRate,
		DiscountRate:     cfg.DiscountRate,
		Horizon:          cfg.Horizon,
		LossGivenDefault: cfg.LossGivenDefault,
		IndependentCVA:   independent,
	}
	for _, res := range results {
		rowErr, colErr, err := res.Coupling.MarginalErrors(probabilities)
		if err != nil {
			return err
		}
		rep.WorstCase = append(rep.WorstCase, penaltyReport{
			Penalty:      res.Penalty,
			CVA:          res.Value,
			ExpectedLoss: res.ExpectedLoss,
			Objective:    finite(ipfp.Objective(res.Coupling, exposures, probabilities, res.Penalty)),
			Status:       res.Status.String(),
			Iterations:   res.Iterations,
			Rescale:      res.Rescale,
			Workers:      res.Workers,
			RowError:     rowErr,
			ColumnError:  colErr,
			MaxWeight:    mat.Max(res.Coupling.View()),
		})
	}

	fmt.Printf("independent CVA: %.6f\n", independent)
	for _, pr := range rep.WorstCase {
		fmt.Printf("penalty %-8g CVA %.6f  (%s after %d iterations)\n", pr.Penalty, pr.CVA, pr.Status, pr.Iterations)
	}

	if cfg.Output == "" {
		return nil
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(cfg.Output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	logger.Info("report written", zap.String("path", cfg.Output))
	return nil
}

// progressBars creates one iteration bar per penalty. With progress disabled
// the bars still exist but render nowhere.
func progressBars(cfg *config.Config) ([]*mpb.Bar, func()) {
	opts := []mpb.ContainerOption{mpb.WithWidth(64)}
	if !cfg.Progress {
		opts = append(opts, mpb.WithOutput(io.Discard))
	}
	p := mpb.New(opts...)

	bars := make([]*mpb.Bar, len(cfg.Penalties))
	for k, penalty := range cfg.Penalties {
		bars[k] = p.AddBar(int64(cfg.MaxIterations),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("penalty %-6g", penalty)),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			),
		)
	}
	return bars, p.Wait
}

// finite drops values JSON cannot encode
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
