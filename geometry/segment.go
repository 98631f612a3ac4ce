// Package geometry provides the 2D primitives behind wall queries:
// segment intersection, closest-point projection and swept-circle contact.
//
// All vectors are mgl64.Vec2 values. Degenerate configurations (parallel
// lines, zero-length travel) are reported as "no result", never as errors,
// because polygons with many edges hit them constantly.
package geometry

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Tolerance absorbs floating point noise in contact and clearance tests.
const Tolerance = 1e-9

// ErrDegenerateSegment is returned when a segment's endpoints coincide.
var ErrDegenerateSegment = errors.New("geometry: zero-length segment")

// Segment is an immutable straight piece of wall between two points.
type Segment struct {
	Start mgl64.Vec2
	End   mgl64.Vec2
}

// NewSegment builds a segment, rejecting zero-length input.
func NewSegment(start, end mgl64.Vec2) (Segment, error) {
	if start == end {
		return Segment{}, ErrDegenerateSegment
	}
	return Segment{Start: start, End: end}, nil
}

// Vec returns the displacement from Start to End.
func (s Segment) Vec() mgl64.Vec2 {
	return s.End.Sub(s.Start)
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.Vec().Len()
}

// Normal returns the unit left-hand normal of the segment.
func (s Segment) Normal() mgl64.Vec2 {
	d := s.Vec()
	l := d.Len()
	if l == 0 {
		return mgl64.Vec2{}
	}
	return mgl64.Vec2{-d.Y() / l, d.X() / l}
}

// Bounds returns the axis-aligned bounding box of the segment.
func (s Segment) Bounds() (lo, hi mgl64.Vec2) {
	return mgl64.Vec2{math.Min(s.Start.X(), s.End.X()), math.Min(s.Start.Y(), s.End.Y())},
		mgl64.Vec2{math.Max(s.Start.X(), s.End.X()), math.Max(s.Start.Y(), s.End.Y())}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b mgl64.Vec2) float64 {
	return a.Sub(b).Len()
}

// cross returns the z component of the 2D cross product.
func cross(a, b mgl64.Vec2) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}

// FromAngle returns the unit vector pointing at angle radians.
func FromAngle(angle float64) mgl64.Vec2 {
	return mgl64.Vec2{math.Cos(angle), math.Sin(angle)}
}
