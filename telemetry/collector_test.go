package telemetry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(1.0, 0.1)

	if c.ShouldFlush(9) {
		t.Error("flush requested before the window elapsed")
	}
	if !c.ShouldFlush(10) {
		t.Error("flush not requested after 10 ticks of 0.1s")
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.0, 0.1)

	c.RecordMove(mgl64.Vec2{0, 0}, "free")
	c.RecordMove(mgl64.Vec2{3, 4}, "free")
	c.RecordMove(mgl64.Vec2{3, 5}, "slid")
	c.RecordMove(mgl64.Vec2{3, 5}, "blocked")
	c.RecordFix(true)
	c.RecordFix(false)
	c.RecordLocError(1)
	c.RecordLocError(3)

	s := c.Flush(10, 40, 0.25)

	if s.WindowStartTick != 0 || s.WindowEndTick != 10 {
		t.Errorf("window = [%d, %d], want [0, 10]", s.WindowStartTick, s.WindowEndTick)
	}
	if math.Abs(s.SimTimeSec-1.0) > 1e-12 {
		t.Errorf("sim time = %v, want 1", s.SimTimeSec)
	}
	if s.Distance != 6 {
		t.Errorf("distance = %v, want 6", s.Distance)
	}
	if s.FreeMoves != 2 || s.Slides != 1 || s.Blocked != 1 {
		t.Errorf("moves = %d/%d/%d, want 2/1/1", s.FreeMoves, s.Slides, s.Blocked)
	}
	if s.Fixes != 1 || s.FixFailures != 1 {
		t.Errorf("fixes = %d/%d, want 1/1", s.Fixes, s.FixFailures)
	}
	if s.LocErrMean != 2 || s.LocErrMax != 3 {
		t.Errorf("loc err mean/max = %v/%v, want 2/3", s.LocErrMean, s.LocErrMax)
	}
	if s.CellsCleaned != 40 || s.CoverageFraction != 0.25 {
		t.Errorf("coverage = %d/%v", s.CellsCleaned, s.CoverageFraction)
	}

	// Counters reset, distance continues from the last position
	c.RecordMove(mgl64.Vec2{3, 6}, "free")
	next := c.Flush(20, 40, 0.25)
	if next.WindowStartTick != 10 || next.Distance != 1 || next.FreeMoves != 1 || next.Slides != 0 || next.Fixes != 0 {
		t.Errorf("second window = %+v", next)
	}
}
