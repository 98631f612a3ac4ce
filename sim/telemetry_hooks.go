package sim

import (
	"fmt"
	"math"

	"github.com/pthm-cable/roboarena/robot"
	"github.com/pthm-cable/roboarena/telemetry"
)

// recordTick writes the trajectory row and feeds the stats window.
func (s *Simulation) recordTick(res TickResult) {
	if s.outputManager == nil && s.collector == nil {
		return
	}

	pose := s.robot.Pose()
	a, b := robot.Speeds(s.robot.Model())
	rec := telemetry.TickRecord{
		Tick:        s.tick,
		SimTime:     s.simTime,
		X:           pose.Position.X(),
		Y:           pose.Position.Y(),
		Heading:     pose.Heading,
		SpeedA:      a,
		SpeedB:      b,
		Outcome:     res.Move.Outcome.String(),
		MinSensor:   minSensor(s.robot.Sensors()),
		BeaconsSeen: len(res.Beacons),
		Fixed:       res.Fixed,
	}
	if s.grid != nil {
		rec.Coverage = s.grid.Fraction()
	}
	if est, ok := s.Estimate(); ok {
		rec.HasEstimate = true
		rec.EstX, rec.EstY, rec.EstHeading = est.Position.X(), est.Position.Y(), est.Heading
		rec.LocError = s.locError()
	}

	if err := s.outputManager.WriteTick(rec); err != nil {
		s.logger.Error("failed to write trajectory", "error", err)
	}

	if s.collector != nil {
		s.collector.RecordMove(pose.Position, rec.Outcome)
		if s.kf != nil {
			s.collector.RecordFix(res.Fixed)
			s.collector.RecordLocError(rec.LocError)
		}
	}
}

// ensureCollector sizes the stats window from dt on the first tick when no
// nominal tick length was configured.
func (s *Simulation) ensureCollector(dt float64) {
	if s.collector != nil || s.statsWindow <= 0 {
		return
	}
	s.collector = telemetry.NewCollector(s.statsWindow, dt)
	s.collector.Start(s.startPos, s.tick-1)
}

// flushTelemetry emits window stats once the window has elapsed.
func (s *Simulation) flushTelemetry() {
	if s.collector == nil || !s.collector.ShouldFlush(s.tick) {
		return
	}
	s.FlushStats()
}

// FlushStats closes the current stats window early, for example at the end
// of an episode. It is a no-op when stats are disabled.
func (s *Simulation) FlushStats() {
	if s.collector == nil {
		return
	}

	var cleaned int
	var fraction float64
	if s.grid != nil {
		cleaned, fraction = s.grid.Cleaned(), s.grid.Fraction()
	}
	stats := s.collector.Flush(s.tick, cleaned, fraction)
	perfStats := s.PerfStats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}
	if s.logStats {
		stats.LogStats(s.logger)
		if s.perf != nil {
			perfStats.LogStats(s.logger)
		}
	}

	if err := s.outputManager.WriteTelemetry(stats); err != nil {
		s.logger.Error("failed to write telemetry", "error", err)
	}
	if s.perf != nil {
		if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			s.logger.Error("failed to write perf", "error", err)
		}
	}
}

func minSensor(readings []robot.SensorReading) float64 {
	m := math.Inf(1)
	for _, r := range readings {
		m = min(m, r.Distance)
	}
	return m
}

// Snapshot captures the state a renderer needs for one frame.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	snap := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		Tick:        s.tick,
		SimTime:     s.simTime,
		ArenaWidth:  s.world.Width(),
		ArenaHeight: s.world.Height(),
	}

	for _, w := range s.world.Walls() {
		for _, seg := range w.Segments() {
			snap.Walls = append(snap.Walls, telemetry.SegmentState{
				X1: seg.Start.X(), Y1: seg.Start.Y(),
				X2: seg.End.X(), Y2: seg.End.Y(),
			})
		}
	}
	for _, b := range s.world.Beacons() {
		snap.Beacons = append(snap.Beacons, telemetry.BeaconState{ID: b.ID, X: b.Location.X(), Y: b.Location.Y()})
	}

	pose := s.robot.Pose()
	a, b := robot.Speeds(s.robot.Model())
	snap.Robot = telemetry.RobotState{
		X:       pose.Position.X(),
		Y:       pose.Position.Y(),
		Heading: pose.Heading,
		Radius:  s.robot.Radius(),
		Model:   modelName(s.robot.Model()),
		SpeedA:  a,
		SpeedB:  b,
		Outcome: s.robot.LastMove().Outcome.String(),
	}
	for _, r := range s.robot.Sensors() {
		snap.Robot.Sensors = append(snap.Robot.Sensors, telemetry.SensorState{
			Distance: r.Distance,
			Hit:      r.HasHit,
			HitX:     r.Hit.X(),
			HitY:     r.Hit.Y(),
		})
	}

	if est, ok := s.Estimate(); ok {
		snap.Estimate = &telemetry.EstimateState{
			X:           est.Position.X(),
			Y:           est.Position.Y(),
			Heading:     est.Heading,
			Uncertainty: s.kf.Uncertainty(),
		}
	}
	if s.grid != nil {
		snap.CellsCleaned = s.grid.Cleaned()
		snap.Coverage = s.grid.Fraction()
	}
	return snap
}

// SaveSnapshot writes the current snapshot into dir.
func (s *Simulation) SaveSnapshot(dir string) (string, error) {
	path, err := telemetry.SaveSnapshot(s.Snapshot(), dir)
	if err != nil {
		return "", err
	}
	s.logger.Info("snapshot saved", "path", path, "tick", s.tick)
	return path, nil
}

func modelName(m robot.MotionModel) string {
	switch m.(type) {
	case robot.DifferentialDrive:
		return "differential"
	case robot.VelocityDrive:
		return "velocity"
	default:
		panic(fmt.Sprintf("sim: unknown motion model %T", m))
	}
}
