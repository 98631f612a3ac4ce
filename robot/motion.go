package robot

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ICCEpsilon replaces a zero wheel-speed difference when reporting the
// instantaneous center of curvature. Motion itself never uses it: equal
// wheel speeds always take the straight-line branch of Integrate.
const ICCEpsilon = 0.0001

// Pose is a position and a heading in radians, kept in [0, 2π).
type Pose struct {
	Position mgl64.Vec2
	Heading  float64
}

// MotionModel is a closed set of kinematic models. The concrete types are
// DifferentialDrive and VelocityDrive.
type MotionModel interface {
	motionModel()
}

// DifferentialDrive steers by the speed difference of two wheels
// WheelBase apart.
type DifferentialDrive struct {
	VL, VR    float64
	WheelBase float64
}

// VelocityDrive is driven directly by a forward speed and a turn rate.
type VelocityDrive struct {
	V           float64
	AngularRate float64
}

func (DifferentialDrive) motionModel() {}
func (VelocityDrive) motionModel()     {}

// Command is one tick of controller input. Differential drives add the
// deltas to their wheel speeds; velocity drives take Linear and Angular as
// absolute values.
type Command struct {
	DeltaLeft  float64
	DeltaRight float64
	Linear     float64
	Angular    float64
}

// Limits bound the speeds a Command can produce. Zero means unbounded.
type Limits struct {
	MaxSpeed    float64
	MaxTurnRate float64
}

// Apply returns m updated by cmd and clamped to lim.
func Apply(m MotionModel, cmd Command, lim Limits) MotionModel {
	switch m := m.(type) {
	case DifferentialDrive:
		m.VL = clamp(m.VL+cmd.DeltaLeft, lim.MaxSpeed)
		m.VR = clamp(m.VR+cmd.DeltaRight, lim.MaxSpeed)
		return m
	case VelocityDrive:
		m.V = clamp(cmd.Linear, lim.MaxSpeed)
		m.AngularRate = clamp(cmd.Angular, lim.MaxTurnRate)
		return m
	default:
		panic(fmt.Sprintf("robot: unknown motion model %T", m))
	}
}

// Stopped returns m with every speed set to zero.
func Stopped(m MotionModel) MotionModel {
	switch m := m.(type) {
	case DifferentialDrive:
		m.VL, m.VR = 0, 0
		return m
	case VelocityDrive:
		m.V, m.AngularRate = 0, 0
		return m
	default:
		panic(fmt.Sprintf("robot: unknown motion model %T", m))
	}
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}

// Integrate advances p by dt under m and returns the requested pose.
//
// Differential drive rotates about the instantaneous center of curvature by
// (vr-vl)/l*dt. Equal wheel speeds translate straight along the heading at
// (vl+vr)/2. Velocity drive is a forward Euler step.
func Integrate(p Pose, m MotionModel, dt float64) Pose {
	x, y, h := p.Position.X(), p.Position.Y(), p.Heading

	switch m := m.(type) {
	case DifferentialDrive:
		if m.VL == m.VR {
			v := (m.VL + m.VR) / 2
			return Pose{
				Position: mgl64.Vec2{x + v*math.Cos(h)*dt, y + v*math.Sin(h)*dt},
				Heading:  NormalizeHeading(h),
			}
		}
		omega := (m.VR - m.VL) / m.WheelBase
		r := m.WheelBase / 2 * (m.VL + m.VR) / (m.VR - m.VL)
		icc := mgl64.Vec2{x - r*math.Sin(h), y + r*math.Cos(h)}
		return Pose{
			Position: rotateAbout(p.Position, icc, omega*dt),
			Heading:  NormalizeHeading(h + omega*dt),
		}

	case VelocityDrive:
		return Pose{
			Position: mgl64.Vec2{x + m.V*math.Cos(h)*dt, y + m.V*math.Sin(h)*dt},
			Heading:  NormalizeHeading(h + m.AngularRate*dt),
		}

	default:
		panic(fmt.Sprintf("robot: unknown motion model %T", m))
	}
}

func rotateAbout(p, center mgl64.Vec2, angle float64) mgl64.Vec2 {
	s, c := math.Sincos(angle)
	d := p.Sub(center)
	return mgl64.Vec2{
		c*d.X() - s*d.Y() + center.X(),
		s*d.X() + c*d.Y() + center.Y(),
	}
}

// ICC returns the turning radius and the instantaneous center of curvature
// for pose p under m. A zero speed difference (or turn rate) is replaced by
// ICCEpsilon, so straight motion reports a very large finite radius.
func ICC(p Pose, m MotionModel) (radius float64, center mgl64.Vec2) {
	switch m := m.(type) {
	case DifferentialDrive:
		diff := m.VR - m.VL
		if diff == 0 {
			diff = ICCEpsilon
		}
		radius = m.WheelBase / 2 * (m.VL + m.VR) / diff
	case VelocityDrive:
		w := m.AngularRate
		if w == 0 {
			w = ICCEpsilon
		}
		radius = m.V / w
	default:
		panic(fmt.Sprintf("robot: unknown motion model %T", m))
	}

	s, c := math.Sincos(p.Heading)
	center = mgl64.Vec2{p.Position.X() - radius*s, p.Position.Y() + radius*c}
	return radius, center
}

// NormalizeHeading wraps a into [0, 2π).
func NormalizeHeading(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		// a was a tiny negative number that rounded up
		a = 0
	}
	return a
}

// StateVector packs a pose as (x, y, heading).
func (p Pose) StateVector() []float64 {
	return []float64{p.Position.X(), p.Position.Y(), p.Heading}
}

// Speeds returns the model's two speed components: (vl, vr) for a
// differential drive, (v, w) for a velocity drive.
func Speeds(m MotionModel) (a, b float64) {
	switch m := m.(type) {
	case DifferentialDrive:
		return m.VL, m.VR
	case VelocityDrive:
		return m.V, m.AngularRate
	default:
		panic(fmt.Sprintf("robot: unknown motion model %T", m))
	}
}

// WithSpeeds returns m with its two speed components replaced, in the same
// order Speeds reports them.
func WithSpeeds(m MotionModel, a, b float64) MotionModel {
	switch m := m.(type) {
	case DifferentialDrive:
		m.VL, m.VR = a, b
		return m
	case VelocityDrive:
		m.V, m.AngularRate = a, b
		return m
	default:
		panic(fmt.Sprintf("robot: unknown motion model %T", m))
	}
}
