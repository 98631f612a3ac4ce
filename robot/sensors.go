package robot

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
)

// Exponential decay applied by SensorInputs.
const (
	decayStart  = 1.0
	decayEnd    = 0.1
	decayFactor = 30.0
)

// SensorReading is one range sensor. Distance is measured from the hull;
// without a hit it equals the sensor's maximum length.
type SensorReading struct {
	Hit      mgl64.Vec2
	HasHit   bool
	Distance float64
}

// BeaconReading is a beacon seen from the robot's current pose.
type BeaconReading struct {
	ID       int
	Location mgl64.Vec2
	Range    float64 // Center to beacon
	Bearing  float64 // Relative to heading, in [-π, π]
}

// Sense refreshes the sensor ring in place. Sensor i points at
// heading + i*2π/n and casts from the robot center, so the radius is
// subtracted from each reported distance.
func (r *Robot) Sense(env Environment) {
	length := r.cfg.Radius + r.cfg.MaxSensorLength
	spacing := 2 * math.Pi / float64(len(r.sensors))

	for i := range r.sensors {
		angle := r.pose.Heading + spacing*float64(i)
		hit, ok := env.Raycast(r.pose.Position, angle, length)
		r.sensors[i] = SensorReading{
			Hit:      hit.Point,
			HasHit:   ok,
			Distance: hit.Distance - r.cfg.Radius,
		}
	}
}

// Sensors returns the current readings. The slice is overwritten by the
// next Update; copy it to keep it.
func (r *Robot) Sensors() []SensorReading { return r.sensors }

// SensorInputs maps each distance through an exponential decay from 1 at
// contact toward 0.1 far away, producing controller inputs.
func (r *Robot) SensorInputs() []float64 {
	out := make([]float64, len(r.sensors))
	for i, s := range r.sensors {
		out[i] = decay(s.Distance)
	}
	return out
}

func decay(x float64) float64 {
	return decayStart + (decayStart*decayEnd-decayStart)*(1-math.Exp(-x/decayFactor))
}

// ScanBeacons returns the beacons within range that have a clear line of
// sight from the robot center, ordered by ID. Readings are exact. A beacon
// mounted on a wall surface is still visible.
func (r *Robot) ScanBeacons(env Environment) []BeaconReading {
	var out []BeaconReading
	pos := r.pose.Position
	for _, b := range env.Beacons() {
		delta := b.Location.Sub(pos)
		dist := delta.Len()
		if r.cfg.BeaconRange > 0 && dist > r.cfg.BeaconRange {
			continue
		}
		angle := math.Atan2(delta.Y(), delta.X())
		if dist > 0 {
			if hit, ok := env.Raycast(pos, angle, dist); ok && hit.Distance < dist-geometry.Tolerance {
				continue
			}
		}
		out = append(out, BeaconReading{
			ID:       b.ID,
			Location: b.Location,
			Range:    dist,
			Bearing:  wrapPi(angle - r.pose.Heading),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// wrapPi wraps a into [-π, π].
func wrapPi(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}
