package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/roboarena/localization"
	"github.com/pthm-cable/roboarena/robot"
	"github.com/pthm-cable/roboarena/telemetry"
	"github.com/pthm-cable/roboarena/world"
)

// TickResult describes one Update.
type TickResult struct {
	Tick int
	Move world.Resolution

	// Coverage
	NewlyCleaned int

	// Localization. Fix is the measured position when Fixed is true.
	Beacons []robot.BeaconReading
	Fix     mgl64.Vec2
	Fixed   bool
}

// Update advances the episode by dt: the world steps the robot, the hull
// cleans the floor, and the localizer predicts then corrects from a beacon
// fix when one is available. The returned error only reports localizer
// numerical failures; the robot has already moved when it is non-nil.
func (s *Simulation) Update(dt float64) (TickResult, error) {
	if s.perf != nil {
		s.perf.StartTick()
		s.perf.StartPhase(telemetry.PhaseMotion)
	}

	s.world.Update(s.robot, dt)
	s.tick++
	s.simTime += dt

	res := TickResult{Tick: s.tick, Move: s.robot.LastMove()}
	if res.Move.Outcome == world.MoveBlocked {
		s.logger.Debug("move blocked", "tick", s.tick, "resolution", res.Move)
	}

	if s.grid != nil {
		s.startPhase(telemetry.PhaseCoverage)
		res.NewlyCleaned = s.grid.CleanCircle(s.robot.Position(), s.robot.Radius())
	}

	var err error
	if s.kf != nil {
		s.startPhase(telemetry.PhaseLocalization)
		err = s.localize(dt, &res)
	}

	s.startPhase(telemetry.PhaseTelemetry)
	s.ensureCollector(dt)
	s.recordTick(res)
	s.flushTelemetry()

	if s.perf != nil {
		s.perf.EndTick()
	}
	s.last = res
	return res, err
}

func (s *Simulation) startPhase(phase string) {
	if s.perf != nil {
		s.perf.StartPhase(phase)
	}
}

// localize runs one predict step and, when the visible beacons give a
// position fix, one correct step.
func (s *Simulation) localize(dt float64, res *TickResult) error {
	a, b := robot.Speeds(s.robot.Model())
	if err := s.kf.Predict(mat.NewVecDense(2, []float64{a, b}), dt); err != nil {
		return err
	}

	res.Beacons = s.robot.ScanBeacons(s.world)
	obs := make([]localization.Observation, len(res.Beacons))
	for i, br := range res.Beacons {
		obs[i] = localization.Observation{Position: br.Location, Range: br.Range, Bearing: br.Bearing}
	}

	fix, ok := s.positionFix(obs)
	if !ok {
		s.logger.Debug("no position fix", "tick", s.tick, "beacons", len(obs))
		return nil
	}

	heading, ok := localization.EstimateHeading(fix, obs)
	if !ok {
		// Keep the predicted heading so its innovation is zero
		heading = s.kf.State()[2]
	}

	res.Fix, res.Fixed = fix, true
	return s.kf.Correct(mat.NewVecDense(3, []float64{fix.X(), fix.Y(), heading}))
}

// positionFix prefers the least-squares solution over every visible beacon
// and falls back to the first non-singular triple.
func (s *Simulation) positionFix(obs []localization.Observation) (mgl64.Vec2, bool) {
	if len(obs) < 3 {
		return mgl64.Vec2{}, false
	}
	fix, ok := localization.Multilaterate(obs)
	if !ok {
		fix, ok = localization.TriangulateAny(obs)
	}
	if !ok {
		return mgl64.Vec2{}, false
	}
	if s.refine {
		refined, err := localization.RefineFix(fix, obs)
		if err != nil {
			s.logger.Debug("refine fix failed", "tick", s.tick, "error", err)
			return fix, true
		}
		fix = refined
	}
	return fix, true
}

// locError is the distance between the belief and the true position.
func (s *Simulation) locError() float64 {
	est, ok := s.Estimate()
	if !ok {
		return math.NaN()
	}
	return est.Position.Sub(s.robot.Position()).Len()
}
