package sim

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/config"
	"github.com/pthm-cable/roboarena/robot"
	"github.com/pthm-cable/roboarena/telemetry"
	"github.com/pthm-cable/roboarena/walls"
	"github.com/pthm-cable/roboarena/world"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// arena returns walls at x, y = ±100 plus any extra walls.
func arena(t *testing.T, extra ...walls.Wall) []walls.Wall {
	t.Helper()
	ws, err := walls.Rectangle(mgl64.Vec2{0, 0}, 200, 200)
	if err != nil {
		t.Fatal(err)
	}
	return append(ws, extra...)
}

func newSim(t *testing.T, ws []walls.Wall, beacons []world.Beacon, start robot.Pose, model robot.MotionModel, opts Options) *Simulation {
	t.Helper()
	w, err := world.New(200, 200, ws, beacons...)
	if err != nil {
		t.Fatal(err)
	}
	r, err := robot.New(robot.Config{
		Radius:          5,
		NumSensors:      8,
		MaxSensorLength: 50,
		Limits:          robot.Limits{MaxSpeed: 30},
	}, start, model)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s, err := New(w, r, opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func step(t *testing.T, s *Simulation, dt float64) TickResult {
	t.Helper()
	res, err := s.Update(dt)
	if err != nil {
		t.Fatalf("tick %d: %v", s.Tick(), err)
	}
	return res
}

func TestNewRequiresWorldAndRobot(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Error("expected error")
	}
}

// Drive straight at the +x wall one unit per tick: free until the hull is
// tangent at x = 95, then a single slide holds the robot just inside.
func TestDriveIntoWallSlidesOnce(t *testing.T) {
	s := newSim(t, arena(t), nil, robot.Pose{}, robot.DifferentialDrive{VL: 10, VR: 10, WheelBase: 10}, Options{})

	slides := 0
	for i := 1; i <= 96; i++ {
		res := step(t, s, 0.1)
		switch res.Move.Outcome {
		case world.MoveSlid:
			slides++
		case world.MoveBlocked:
			t.Fatalf("tick %d: move blocked", i)
		}
		if i == 90 {
			p := s.Robot().Position()
			if p.X() != 90 || p.Y() != 0 {
				t.Fatalf("after 90 ticks at %v, want (90, 0)", p)
			}
		}
	}

	if slides != 1 {
		t.Errorf("slides = %d, want 1", slides)
	}
	p := s.Robot().Position()
	if p.X() >= 95 || p.X() < 95-1e-3 || p.Y() != 0 {
		t.Errorf("final position %v, want just below (95, 0)", p)
	}
	if s.Robot().Heading() != 0 {
		t.Errorf("heading = %v, want 0", s.Robot().Heading())
	}
}

func TestDeterministicReplay(t *testing.T) {
	tri, err := walls.NewPolygonWall([]mgl64.Vec2{{20, -10}, {40, 15}, {10, 30}})
	if err != nil {
		t.Fatal(err)
	}
	ws := arena(t, tri)
	beacons := []world.Beacon{
		{ID: 1, Location: mgl64.Vec2{-90, -90}},
		{ID: 2, Location: mgl64.Vec2{90, -90}},
		{ID: 3, Location: mgl64.Vec2{0, 90}},
	}

	rng := rand.New(rand.NewSource(3))
	cmds := make([]robot.Command, 600)
	for i := range cmds {
		cmds[i] = robot.Command{DeltaLeft: rng.Float64()*4 - 2, DeltaRight: rng.Float64()*4 - 2}
	}

	run := func() []robot.Pose {
		s := newSim(t, ws, beacons, robot.Pose{Position: mgl64.Vec2{-50, -50}}, robot.DifferentialDrive{WheelBase: 10}, Options{
			Localizer: &LocalizerOptions{
				InitialSigma:     []float64{1, 1, 0.1},
				ProcessNoise:     []float64{0.5, 0.5, 0.01},
				MeasurementNoise: []float64{2, 2, 0.05},
			},
			CellSize: 5,
		})
		var out []robot.Pose
		for _, cmd := range cmds {
			s.Command(cmd)
			step(t, s, 0.05)
			est, _ := s.Estimate()
			out = append(out, s.Robot().Pose(), est)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs diverge at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLocalizationConverges(t *testing.T) {
	beacons := []world.Beacon{
		{ID: 1, Location: mgl64.Vec2{-90, -90}},
		{ID: 2, Location: mgl64.Vec2{90, -90}},
		{ID: 3, Location: mgl64.Vec2{90, 90}},
		{ID: 4, Location: mgl64.Vec2{-90, 90}},
	}
	s := newSim(t, arena(t), beacons, robot.Pose{}, robot.DifferentialDrive{VL: 10, VR: 10, WheelBase: 10}, Options{
		Localizer: &LocalizerOptions{
			InitialSigma:     []float64{10, 10, 0.1},
			ProcessNoise:     []float64{0.5, 0.5, 0.01},
			MeasurementNoise: []float64{2, 2, 0.05},
			Initial:          &robot.Pose{Position: mgl64.Vec2{5, -5}},
		},
	})

	initial := s.Localizer().Uncertainty()
	for i := 0; i < 30; i++ {
		res := step(t, s, 0.1)
		if !res.Fixed || len(res.Beacons) != 4 {
			t.Fatalf("tick %d: fixed=%v with %d beacons", res.Tick, res.Fixed, len(res.Beacons))
		}
	}

	est, ok := s.Estimate()
	if !ok {
		t.Fatal("no estimate")
	}
	if d := est.Position.Sub(s.Robot().Position()).Len(); d > 0.01 {
		t.Errorf("estimate %v is %v from truth %v", est.Position, d, s.Robot().Position())
	}
	if math.Abs(math.Remainder(est.Heading-s.Robot().Heading(), 2*math.Pi)) > 1e-3 {
		t.Errorf("estimated heading %v, true %v", est.Heading, s.Robot().Heading())
	}
	if s.Localizer().Corrections() != 30 {
		t.Errorf("corrections = %d, want 30", s.Localizer().Corrections())
	}
	if s.Localizer().Uncertainty() >= initial {
		t.Errorf("uncertainty %v did not drop below %v", s.Localizer().Uncertainty(), initial)
	}
}

func TestLocalizationSkipsCorrectionWithoutFix(t *testing.T) {
	// Two beacons cannot fix a position
	beacons := []world.Beacon{
		{ID: 1, Location: mgl64.Vec2{-90, -90}},
		{ID: 2, Location: mgl64.Vec2{90, -90}},
	}
	s := newSim(t, arena(t), beacons, robot.Pose{}, robot.DifferentialDrive{VL: 10, VR: 10, WheelBase: 10}, Options{
		Localizer: &LocalizerOptions{
			InitialSigma:     []float64{1, 1, 0.1},
			ProcessNoise:     []float64{0.5, 0.5, 0.01},
			MeasurementNoise: []float64{2, 2, 0.05},
		},
	})

	before := s.Localizer().Uncertainty()
	res := step(t, s, 0.1)
	if res.Fixed {
		t.Error("fix reported with two beacons")
	}
	if s.Localizer().Corrections() != 0 {
		t.Error("correct ran without a measurement")
	}
	// Predict alone only grows the covariance
	if s.Localizer().Uncertainty() <= before {
		t.Errorf("uncertainty %v, want above %v", s.Localizer().Uncertainty(), before)
	}
	est, _ := s.Estimate()
	if est.Position != s.Robot().Position() {
		t.Errorf("predicted %v, robot at %v", est.Position, s.Robot().Position())
	}
}

func TestCoverageGrows(t *testing.T) {
	s := newSim(t, arena(t), nil, robot.Pose{}, robot.DifferentialDrive{VL: 10, VR: 10, WheelBase: 10}, Options{CellSize: 5})

	start := s.Coverage().Cleaned()
	if start == 0 {
		t.Fatal("start position not cleaned")
	}
	added := 0
	for i := 0; i < 50; i++ {
		added += step(t, s, 0.1).NewlyCleaned
	}
	if got := s.Coverage().Cleaned(); got != start+added || added == 0 {
		t.Errorf("cleaned %d, want %d + %d with progress", got, start, added)
	}
	if s.Coverage().Total() != 40*40 {
		t.Errorf("total cells = %d, want 1600", s.Coverage().Total())
	}
}

func TestSnapshot(t *testing.T) {
	beacons := []world.Beacon{{ID: 7, Location: mgl64.Vec2{0, 90}}}
	s := newSim(t, arena(t), beacons, robot.Pose{}, robot.VelocityDrive{V: 5}, Options{CellSize: 10})
	step(t, s, 0.1)

	snap := s.Snapshot()
	if snap.Tick != 1 || len(snap.Walls) != 4 || len(snap.Beacons) != 1 {
		t.Fatalf("snapshot = tick %d, %d walls, %d beacons", snap.Tick, len(snap.Walls), len(snap.Beacons))
	}
	if snap.Robot.Model != "velocity" || snap.Robot.SpeedA != 5 || len(snap.Robot.Sensors) != 8 {
		t.Errorf("robot state = %+v", snap.Robot)
	}
	if snap.Estimate != nil {
		t.Error("estimate present without a localizer")
	}
	if snap.Coverage <= 0 {
		t.Error("coverage missing")
	}

	path, err := s.SaveSnapshot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := telemetry.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Robot.X != snap.Robot.X || loaded.Robot.Outcome != "free" {
		t.Errorf("loaded robot = %+v", loaded.Robot)
	}
}

func TestNewFromConfigWithTelemetry(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Telemetry.StatsWindow = 1.0 // 20 ticks of 0.05s

	dir := filepath.Join(t.TempDir(), "out")
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	var windows []telemetry.WindowStats
	ws, err := walls.Rectangle(mgl64.Vec2{250, 162.5}, 500, 325)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewFromConfig(cfg, ws, nil, robot.Pose{Position: mgl64.Vec2{250, 162.5}}, Options{
		Logger:        quietLogger(),
		Output:        om,
		StatsCallback: func(w telemetry.WindowStats) { windows = append(windows, w) },
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Command(robot.Command{DeltaLeft: 20, DeltaRight: 20})

	for i := 0; i < 45; i++ {
		step(t, s, cfg.Physics.DT)
	}
	s.FlushStats()
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if windows[0].WindowEndTick != 20 || windows[1].WindowStartTick != 20 || windows[2].WindowEndTick != 45 {
		t.Errorf("window bounds = %+v", windows)
	}
	// 20 units per second for 20 ticks of 0.05s
	if math.Abs(windows[0].Distance-20) > 1e-9 {
		t.Errorf("first window distance = %v, want 20", windows[0].Distance)
	}
	if windows[0].FreeMoves != 20 || windows[0].CoverageFraction <= 0 {
		t.Errorf("first window = %+v", windows[0])
	}

	for _, name := range []string{"trajectory.csv", "telemetry.csv", "perf.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("%s missing or empty: %v", name, err)
		}
	}
}
