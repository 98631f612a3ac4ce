package telemetry

import "github.com/go-gl/mathgl/mgl64"

// Collector accumulates per-tick events within time windows and produces
// WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int
	dt                  float64

	// Current window tracking
	windowStartTick int
	lastPos         mgl64.Vec2
	hasLastPos      bool

	// Counters for current window
	distance    float64
	freeMoves   int
	slides      int
	blocked     int
	fixes       int
	fixFailures int
	locErrors   []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := 1
	if dt > 0 {
		ticksPerWindow = max(1, int(windowDurationSec/dt))
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// Start anchors distance tracking at pos and opens the window at tick.
func (c *Collector) Start(pos mgl64.Vec2, tick int) {
	c.lastPos = pos
	c.hasLastPos = true
	c.windowStartTick = tick
}

// RecordMove records the committed position and how the move resolved.
// outcome is one of "free", "slid" or "blocked".
func (c *Collector) RecordMove(pos mgl64.Vec2, outcome string) {
	if c.hasLastPos {
		c.distance += pos.Sub(c.lastPos).Len()
	}
	c.lastPos = pos
	c.hasLastPos = true

	switch outcome {
	case "slid":
		c.slides++
	case "blocked":
		c.blocked++
	default:
		c.freeMoves++
	}
}

// RecordFix records whether a localization tick produced a position fix.
func (c *Collector) RecordFix(fixed bool) {
	if fixed {
		c.fixes++
	} else {
		c.fixFailures++
	}
}

// RecordLocError records the estimate's position error for the tick.
func (c *Collector) RecordLocError(err float64) {
	c.locErrors = append(c.locErrors, err)
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// cleaned and fraction are the coverage totals at currentTick.
func (c *Collector) Flush(currentTick, cleaned int, fraction float64) WindowStats {
	errs := ComputeErrorStats(c.locErrors)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Distance:  c.distance,
		FreeMoves: c.freeMoves,
		Slides:    c.slides,
		Blocked:   c.blocked,

		CellsCleaned:     cleaned,
		CoverageFraction: fraction,

		Fixes:       c.fixes,
		FixFailures: c.fixFailures,
		LocErrMean:  errs.Mean,
		LocErrStd:   errs.Std,
		LocErrP50:   errs.P50,
		LocErrP90:   errs.P90,
		LocErrMax:   errs.Max,
	}

	c.windowStartTick = currentTick
	c.distance = 0
	c.freeMoves, c.slides, c.blocked = 0, 0, 0
	c.fixes, c.fixFailures = 0, 0
	c.locErrors = c.locErrors[:0]

	return stats
}
