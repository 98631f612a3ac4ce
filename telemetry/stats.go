package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TickRecord is one row of trajectory.csv.
type TickRecord struct {
	Tick    int     `csv:"tick"`
	SimTime float64 `csv:"sim_time"`

	// Committed pose
	X       float64 `csv:"x"`
	Y       float64 `csv:"y"`
	Heading float64 `csv:"heading"`

	// Wheel speeds (vl, vr) or (v, w) depending on the motion model
	SpeedA float64 `csv:"speed_a"`
	SpeedB float64 `csv:"speed_b"`

	Outcome   string  `csv:"outcome"`
	MinSensor float64 `csv:"min_sensor"`
	Coverage  float64 `csv:"coverage"`

	// Localization, zero when disabled
	HasEstimate bool    `csv:"has_estimate"`
	EstX        float64 `csv:"est_x"`
	EstY        float64 `csv:"est_y"`
	EstHeading  float64 `csv:"est_heading"`
	LocError    float64 `csv:"loc_error"`
	BeaconsSeen int     `csv:"beacons_seen"`
	Fixed       bool    `csv:"fixed"`
}

// WindowStats holds aggregated statistics for a window of ticks.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Motion
	Distance  float64 `csv:"distance"`
	FreeMoves int     `csv:"free_moves"`
	Slides    int     `csv:"slides"`
	Blocked   int     `csv:"blocked"`

	// Coverage at window end
	CellsCleaned     int     `csv:"cells_cleaned"`
	CoverageFraction float64 `csv:"coverage"`

	// Localization
	Fixes       int     `csv:"fixes"`
	FixFailures int     `csv:"fix_failures"`
	LocErrMean  float64 `csv:"loc_err_mean"`
	LocErrStd   float64 `csv:"loc_err_std"`
	LocErrP50   float64 `csv:"loc_err_p50"`
	LocErrP90   float64 `csv:"loc_err_p90"`
	LocErrMax   float64 `csv:"loc_err_max"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ErrorStats summarizes a set of localization errors.
type ErrorStats struct {
	Mean, Std     float64
	P50, P90, Max float64
}

// ComputeErrorStats calculates mean, population std and percentiles.
func ComputeErrorStats(values []float64) ErrorStats {
	n := len(values)
	if n == 0 {
		return ErrorStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, variance := stat.PopMeanVariance(sorted, nil)
	return ErrorStats{
		Mean: mean,
		Std:  math.Sqrt(variance),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
		Max:  sorted[n-1],
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Float64("distance", s.Distance),
		slog.Int("free_moves", s.FreeMoves),
		slog.Int("slides", s.Slides),
		slog.Int("blocked", s.Blocked),
		slog.Int("cells_cleaned", s.CellsCleaned),
		slog.Float64("coverage", s.CoverageFraction),
		slog.Int("fixes", s.Fixes),
		slog.Int("fix_failures", s.FixFailures),
		slog.Float64("loc_err_mean", s.LocErrMean),
		slog.Float64("loc_err_p90", s.LocErrP90),
	)
}

// LogStats logs the window stats.
func (s WindowStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"distance", s.Distance,
		"slides", s.Slides,
		"blocked", s.Blocked,
		"coverage", s.CoverageFraction,
		"fixes", s.Fixes,
		"fix_failures", s.FixFailures,
		"loc_err_mean", s.LocErrMean,
		"loc_err_p90", s.LocErrP90,
	)
}
