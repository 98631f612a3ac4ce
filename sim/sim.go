// Package sim runs one robot episode. A Simulation is the single owner of
// the world and the robot; neither holds a reference to the other.
package sim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/roboarena/config"
	"github.com/pthm-cable/roboarena/coverage"
	"github.com/pthm-cable/roboarena/localization"
	"github.com/pthm-cable/roboarena/robot"
	"github.com/pthm-cable/roboarena/telemetry"
	"github.com/pthm-cable/roboarena/walls"
	"github.com/pthm-cable/roboarena/world"
)

// LocalizerOptions enables pose estimation. Each slice holds per-component
// standard deviations over (x, y, heading).
type LocalizerOptions struct {
	InitialSigma     []float64
	ProcessNoise     []float64
	MeasurementNoise []float64

	// Initial belief. Nil starts from the robot's true pose.
	Initial *robot.Pose

	// Polish beacon fixes by minimizing range residuals
	Refine bool
}

// Options configures the optional parts of a Simulation.
type Options struct {
	Logger    *slog.Logger
	Localizer *LocalizerOptions // Nil disables localization

	CellSize float64 // Coverage cell size, 0 disables coverage

	// Nominal tick length used to size stats windows. Zero takes the dt of
	// the first Update.
	DT float64

	// Telemetry
	StatsWindow   float64 // Seconds per stats window, 0 disables stats
	PerfWindow    int     // Ticks averaged by the perf collector, 0 disables perf
	Output        *telemetry.OutputManager
	LogStats      bool
	StatsCallback func(telemetry.WindowStats)
}

// Simulation holds the complete episode state.
type Simulation struct {
	world *world.World
	robot *robot.Robot

	kf     *localization.KFLocalizer
	refine bool
	grid   *coverage.Grid

	collector     *telemetry.Collector
	statsWindow   float64
	perf          *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	logger        *slog.Logger

	tick     int
	simTime  float64
	last     TickResult
	startPos mgl64.Vec2
}

// New wraps an existing world and robot.
func New(w *world.World, r *robot.Robot, opts Options) (*Simulation, error) {
	if w == nil || r == nil {
		return nil, errors.New("sim: world and robot are required")
	}

	s := &Simulation{
		world:         w,
		robot:         r,
		statsWindow:   opts.StatsWindow,
		outputManager: opts.Output,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		logger:        opts.Logger,
		startPos:      r.Position(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if opts.Localizer != nil {
		kf, err := newLocalizer(r, *opts.Localizer)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		s.kf = kf
		s.refine = opts.Localizer.Refine
	}

	if opts.CellSize > 0 {
		lo, hi := w.Bounds()
		size := hi.Sub(lo)
		if size.X() <= 0 || size.Y() <= 0 {
			lo, size = mgl64.Vec2{}, mgl64.Vec2{w.Width(), w.Height()}
		}
		grid, err := coverage.New(lo, size.X(), size.Y(), opts.CellSize)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		s.grid = grid
		grid.CleanCircle(r.Position(), r.Radius())
	}

	if opts.PerfWindow > 0 {
		s.perf = telemetry.NewPerfCollector(opts.PerfWindow)
	}
	if opts.StatsWindow > 0 && opts.DT > 0 {
		s.collector = telemetry.NewCollector(opts.StatsWindow, opts.DT)
		s.collector.Start(s.startPos, 0)
	}

	s.last = TickResult{Move: r.LastMove()}
	s.logger.Info("episode",
		"walls", len(w.Walls()),
		"beacons", len(w.Beacons()),
		"robot", r,
		"localization", s.kf != nil,
		"coverage", s.grid != nil,
	)
	return s, nil
}

// NewFromConfig builds the world, the robot and every optional part from cfg.
func NewFromConfig(cfg *config.Config, ws []walls.Wall, beacons []world.Beacon, start robot.Pose, opts Options) (*Simulation, error) {
	w, err := world.New(cfg.Arena.Width, cfg.Arena.Height, ws, beacons...)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	var model robot.MotionModel
	switch cfg.Robot.MotionModel {
	case config.MotionDifferential:
		model = robot.DifferentialDrive{WheelBase: cfg.Derived.WheelBase}
	case config.MotionVelocity:
		model = robot.VelocityDrive{}
	default:
		return nil, fmt.Errorf("sim: unknown motion model %q", cfg.Robot.MotionModel)
	}

	r, err := robot.New(robot.Config{
		Radius:          cfg.Robot.Radius,
		NumSensors:      cfg.Robot.NumSensors,
		MaxSensorLength: cfg.Robot.MaxSensorLength,
		BeaconRange:     cfg.Robot.BeaconRange,
		Limits: robot.Limits{
			MaxSpeed:    cfg.Robot.MaxSpeed,
			MaxTurnRate: cfg.Robot.MaxTurnRate,
		},
	}, start, model)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	if opts.Localizer == nil && cfg.Localizer.Enabled {
		opts.Localizer = &LocalizerOptions{
			InitialSigma:     cfg.Localizer.InitialSigma,
			ProcessNoise:     cfg.Localizer.ProcessNoise,
			MeasurementNoise: cfg.Localizer.MeasurementNoise,
			Refine:           cfg.Localizer.Refine,
		}
	}
	if opts.CellSize == 0 {
		opts.CellSize = cfg.Coverage.CellSize
	}
	if opts.StatsWindow == 0 {
		opts.StatsWindow = cfg.Telemetry.StatsWindow
	}
	if opts.PerfWindow == 0 {
		opts.PerfWindow = cfg.Telemetry.PerfCollectorWindow
	}
	if opts.DT == 0 {
		opts.DT = cfg.Physics.DT
	}
	return New(w, r, opts)
}

// newLocalizer seeds a three-state filter whose transition is the robot's
// own motion model.
func newLocalizer(r *robot.Robot, lo LocalizerOptions) (*localization.KFLocalizer, error) {
	initial := r.Pose()
	if lo.Initial != nil {
		initial = *lo.Initial
	}
	return localization.NewDiagonal(
		initial.StateVector(),
		lo.InitialSigma, lo.ProcessNoise, lo.MeasurementNoise,
		motionFunc(r.Model()),
		localization.WithAngleComponent(2),
	)
}

// motionFunc adapts robot.Integrate to a filter transition. The action
// vector carries the model's two speeds.
func motionFunc(template robot.MotionModel) localization.MotionFunc {
	return func(state, action mat.Vector, dt float64) *mat.VecDense {
		p := robot.Pose{
			Position: mgl64.Vec2{state.AtVec(0), state.AtVec(1)},
			Heading:  state.AtVec(2),
		}
		m := robot.WithSpeeds(template, action.AtVec(0), action.AtVec(1))
		return mat.NewVecDense(3, robot.Integrate(p, m, dt).StateVector())
	}
}

// Command forwards controller input to the robot.
func (s *Simulation) Command(cmd robot.Command) { s.robot.Command(cmd) }

// World returns the arena.
func (s *Simulation) World() *world.World { return s.world }

// Robot returns the robot.
func (s *Simulation) Robot() *robot.Robot { return s.robot }

// Localizer returns the filter, or nil when localization is disabled.
func (s *Simulation) Localizer() *localization.KFLocalizer { return s.kf }

// Coverage returns the coverage grid, or nil when disabled.
func (s *Simulation) Coverage() *coverage.Grid { return s.grid }

// Tick returns the number of completed updates.
func (s *Simulation) Tick() int { return s.tick }

// SimTime returns the simulated seconds elapsed.
func (s *Simulation) SimTime() float64 { return s.simTime }

// Last returns the result of the most recent Update.
func (s *Simulation) Last() TickResult { return s.last }

// Estimate returns the belief pose. ok is false without a localizer.
func (s *Simulation) Estimate() (p robot.Pose, ok bool) {
	if s.kf == nil {
		return robot.Pose{}, false
	}
	mu := s.kf.State()
	return robot.Pose{Position: mgl64.Vec2{mu[0], mu[1]}, Heading: mu[2]}, true
}

// PerfStats returns the rolling tick timings. Zero without a perf collector.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	if s.perf == nil {
		return telemetry.PerfStats{}
	}
	return s.perf.Stats()
}
