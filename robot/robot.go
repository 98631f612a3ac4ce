// Package robot implements a circular mobile robot: its kinematic state,
// the two supported motion models and a ring of range sensors.
//
// A Robot never holds a reference to the world it moves in. Every query is
// made through the Environment passed to Update, which *world.World
// satisfies.
package robot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/walls"
	"github.com/pthm-cable/roboarena/world"
)

var (
	ErrInvalidRadius      = errors.New("robot: radius must be positive")
	ErrInvalidSensorCount = errors.New("robot: sensor count must be positive")
	ErrInvalidWheelBase   = errors.New("robot: wheel base must be positive")
)

// Environment is the part of the world a robot needs during a tick.
type Environment interface {
	Raycast(origin mgl64.Vec2, angle, maxLength float64) (walls.Intercept, bool)
	ResolveMove(current, requested mgl64.Vec2, radius float64) world.Resolution
	Beacons() []world.Beacon
}

// Config holds the fixed physical parameters of a robot.
type Config struct {
	Radius          float64
	NumSensors      int
	MaxSensorLength float64 // Measured from the hull
	BeaconRange     float64 // Zero means unlimited
	Limits          Limits
}

// Robot is created once per episode and mutated by Update every tick.
type Robot struct {
	cfg     Config
	pose    Pose
	model   MotionModel
	sensors []SensorReading
	last    world.Resolution
}

// New validates cfg and model and places the robot at start.
func New(cfg Config, start Pose, model MotionModel) (*Robot, error) {
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidRadius, cfg.Radius)
	}
	if cfg.NumSensors <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSensorCount, cfg.NumSensors)
	}
	if cfg.MaxSensorLength < 0 {
		return nil, fmt.Errorf("robot: max sensor length must not be negative, got %g", cfg.MaxSensorLength)
	}
	switch m := model.(type) {
	case DifferentialDrive:
		if m.WheelBase <= 0 {
			return nil, fmt.Errorf("%w: got %g", ErrInvalidWheelBase, m.WheelBase)
		}
	case VelocityDrive:
	case nil:
		return nil, errors.New("robot: motion model is required")
	}

	start.Heading = NormalizeHeading(start.Heading)
	return &Robot{
		cfg:     cfg,
		pose:    start,
		model:   model,
		sensors: make([]SensorReading, cfg.NumSensors),
		last:    world.Resolution{Position: start.Position, Outcome: world.MoveFree},
	}, nil
}

// Update advances the robot by dt: it integrates the motion model, lets env
// resolve collisions for the requested position, commits the result and
// refreshes the sensors. Heading is always committed as requested.
func (r *Robot) Update(env Environment, dt float64) world.Resolution {
	requested := Integrate(r.pose, r.model, dt)
	res := env.ResolveMove(r.pose.Position, requested.Position, r.cfg.Radius)

	r.pose = Pose{Position: res.Position, Heading: requested.Heading}
	r.last = res
	r.Sense(env)
	return res
}

// Step implements world.Stepper.
func (r *Robot) Step(w *world.World, dt float64) {
	r.Update(w, dt)
}

// Command applies controller input to the motion model.
func (r *Robot) Command(cmd Command) {
	r.model = Apply(r.model, cmd, r.cfg.Limits)
}

// Stop zeroes every speed.
func (r *Robot) Stop() {
	r.model = Stopped(r.model)
}

// Pose returns the committed pose.
func (r *Robot) Pose() Pose { return r.pose }

// Position returns the committed position.
func (r *Robot) Position() mgl64.Vec2 { return r.pose.Position }

// Heading returns the committed heading in [0, 2π).
func (r *Robot) Heading() float64 { return r.pose.Heading }

// Radius returns the hull radius.
func (r *Robot) Radius() float64 { return r.cfg.Radius }

// Config returns the robot's configuration.
func (r *Robot) Config() Config { return r.cfg }

// Model returns the motion model with its current speeds.
func (r *Robot) Model() MotionModel { return r.model }

// LastMove returns how the most recent Update was resolved.
func (r *Robot) LastMove() world.Resolution { return r.last }

// ICC returns the turning radius and center for the current state.
func (r *Robot) ICC() (float64, mgl64.Vec2) {
	return ICC(r.pose, r.model)
}

// LogValue implements slog.LogValuer.
func (r *Robot) LogValue() slog.Value {
	a, b := Speeds(r.model)
	return slog.GroupValue(
		slog.Float64("x", r.pose.Position.X()),
		slog.Float64("y", r.pose.Position.Y()),
		slog.Float64("heading", r.pose.Heading),
		slog.Float64("speed_a", a),
		slog.Float64("speed_b", b),
	)
}
