package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Contact describes the first touch between a moving circle and a segment.
type Contact struct {
	Point    mgl64.Vec2 // Touched point on the segment
	Center   mgl64.Vec2 // Circle center at the moment of contact
	Normal   mgl64.Vec2 // Unit vector from Point toward Center
	Fraction float64    // Travel fraction in [0, 1] at contact
	Depth    float64    // Radius minus the closest approach along the whole path
}

// Penetrates reports whether the path carries the circle past tangency.
func (c Contact) Penetrates() bool {
	return c.Depth > Tolerance
}

// SweepCircle finds where a circle of the given radius moving from start to
// end first touches seg. Three cases are resolved in order and only the
// earliest is reported: the flat body of the segment, either endpoint (pole),
// and a grazing pass whose closest approach is within Tolerance of tangency.
// A circle that already touches the segment at start only reports a contact
// when it moves further in.
func SweepCircle(start, end mgl64.Vec2, radius float64, seg Segment) (Contact, bool) {
	travel := end.Sub(start)
	closest, at := SegmentDistance(start, end, seg)
	if closest > radius+Tolerance {
		return Contact{}, false
	}

	q0 := ClosestPointOnSegment(seg, start)
	if Distance(start, q0) <= radius+Tolerance {
		if travel.Dot(start.Sub(q0)) >= 0 {
			return Contact{}, false
		}
		return makeContact(seg, start, start, radius, 0, closest), true
	}

	best := math.Inf(1)
	if t, ok := bodyHit(start, travel, radius, seg); ok {
		best = t
	}
	for _, pole := range [2]mgl64.Vec2{seg.Start, seg.End} {
		if t, ok := poleHit(start, travel, radius, pole); ok && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		best = at
	}

	center := start.Add(travel.Mul(best))
	return makeContact(seg, start, center, radius, best, closest), true
}

// bodyHit returns the travel fraction where the circle edge reaches the
// segment's supporting line while its center projects inside the segment.
func bodyHit(start, travel mgl64.Vec2, radius float64, seg Segment) (float64, bool) {
	n := seg.Normal()
	s0 := start.Sub(seg.Start).Dot(n)
	if s0 < 0 {
		n = n.Mul(-1)
		s0 = -s0
	}
	dn := travel.Dot(n)
	if dn >= 0 {
		return 0, false
	}

	t := (radius - s0) / dn
	if t < 0 {
		return 0, false
	}
	if t > 1 {
		// Accept an end position that is tangent within tolerance
		if (t-1)*(-dn) > Tolerance {
			return 0, false
		}
		t = 1
	}

	center := start.Add(travel.Mul(t))
	d := seg.Vec()
	u := center.Sub(seg.Start).Dot(d) / d.Dot(d)
	if u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// poleHit returns the first travel fraction where the circle edge reaches pole.
func poleHit(start, travel mgl64.Vec2, radius float64, pole mgl64.Vec2) (float64, bool) {
	a := travel.Dot(travel)
	if a == 0 {
		return 0, false
	}
	f := start.Sub(pole)
	b := 2 * f.Dot(travel)
	c := f.Dot(f) - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}

	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 {
		return 0, false
	}
	if t > 1 {
		if Distance(start.Add(travel), pole) > radius+Tolerance {
			return 0, false
		}
		t = 1
	}
	return t, true
}

func makeContact(seg Segment, start, center mgl64.Vec2, radius, fraction, closest float64) Contact {
	point := ClosestPointOnSegment(seg, center)
	normal := center.Sub(point)
	if l := normal.Len(); l > Tolerance {
		normal = normal.Mul(1 / l)
	} else {
		// Center sits on the segment; push back toward the side we came from
		normal = seg.Normal()
		if start.Sub(seg.Start).Dot(normal) < 0 {
			normal = normal.Mul(-1)
		}
	}
	return Contact{
		Point:    point,
		Center:   center,
		Normal:   normal,
		Fraction: fraction,
		Depth:    radius - closest,
	}
}
