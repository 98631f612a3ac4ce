package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SegmentIntersect returns the point where segment a1-a2 crosses segment b1-b2.
// Both interpolation parameters must lie in [0, 1]. Parallel and collinear
// pairs (zero determinant) never intersect.
func SegmentIntersect(a1, a2, b1, b2 mgl64.Vec2) (mgl64.Vec2, bool) {
	t, _, ok := intersectParams(a1, a2, b1, b2)
	if !ok {
		return mgl64.Vec2{}, false
	}
	return a1.Add(a2.Sub(a1).Mul(t)), true
}

// intersectParams solves a1 + t(a2-a1) = b1 + u(b2-b1).
func intersectParams(a1, a2, b1, b2 mgl64.Vec2) (t, u float64, ok bool) {
	b := a2.Sub(a1)
	d := b2.Sub(b1)
	det := cross(b, d)
	if det == 0 {
		return 0, 0, false
	}

	c := b1.Sub(a1)
	t = cross(c, d) / det
	if t < 0 || t > 1 {
		return 0, 0, false
	}
	u = cross(c, b) / det
	if u < 0 || u > 1 {
		return 0, 0, false
	}
	return t, u, true
}

// ClosestPointOnSegment projects p onto the segment, clamping to the endpoints.
func ClosestPointOnSegment(seg Segment, p mgl64.Vec2) mgl64.Vec2 {
	return seg.Start.Add(seg.Vec().Mul(projectParam(seg, p)))
}

// projectParam returns the clamped interpolation parameter of p's projection.
func projectParam(seg Segment, p mgl64.Vec2) float64 {
	d := seg.Vec()
	lenSq := d.Dot(d)
	if lenSq == 0 {
		return 0
	}
	u := p.Sub(seg.Start).Dot(d) / lenSq
	return math.Max(0, math.Min(1, u))
}

// DistanceToSegment returns the distance from p to the closest point of seg.
func DistanceToSegment(seg Segment, p mgl64.Vec2) float64 {
	return Distance(p, ClosestPointOnSegment(seg, p))
}

// SegmentDistance returns the minimum distance between path p1-p2 and seg,
// along with the interpolation parameter on the path where it is attained.
// Crossing segments have distance zero.
func SegmentDistance(p1, p2 mgl64.Vec2, seg Segment) (dist, at float64) {
	if t, _, ok := intersectParams(p1, p2, seg.Start, seg.End); ok {
		return 0, t
	}

	path := Segment{Start: p1, End: p2}

	// Path endpoints against the segment
	dist = DistanceToSegment(seg, p1)
	at = 0
	if d := DistanceToSegment(seg, p2); d < dist {
		dist, at = d, 1
	}

	// Segment endpoints against the path
	for _, q := range [2]mgl64.Vec2{seg.Start, seg.End} {
		u := projectParam(path, q)
		if d := Distance(q, path.Start.Add(path.Vec().Mul(u))); d < dist {
			dist, at = d, u
		}
	}
	return dist, at
}
