// Package walls defines the static obstacles of an arena.
//
// A Wall answers two queries: where a line first crosses it, and where a
// moving circle first touches it. Walls are immutable once built.
package walls

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
)

// ErrTooFewPoints is returned for polygons with fewer than three vertices.
var ErrTooFewPoints = errors.New("walls: polygon needs at least 3 points")

// Intercept is the closest crossing of a line with a wall.
type Intercept struct {
	Point    mgl64.Vec2
	Distance float64 // From the line start
	Segment  geometry.Segment
}

// Wall is implemented by LineWall and PolygonWall.
type Wall interface {
	// CheckLineIntercept returns the crossing closest to start.
	// Equal distances keep the lowest edge index.
	CheckLineIntercept(start, end mgl64.Vec2) (Intercept, bool)

	// CheckCircleIntercept returns the earliest contact of a circle moving
	// from start to end. Touching without penetration counts as a contact.
	CheckCircleIntercept(start, end mgl64.Vec2, radius float64) (geometry.Contact, bool)

	// ClosestPoint returns the point of the wall nearest to p.
	ClosestPoint(p mgl64.Vec2) mgl64.Vec2

	// Segments returns the wall's edges in order.
	Segments() []geometry.Segment

	// Bounds returns the axis-aligned bounding box of the wall.
	Bounds() (lo, hi mgl64.Vec2)
}

// lineIntercept scans edges in order and keeps the strictly closest crossing.
func lineIntercept(edges []geometry.Segment, start, end mgl64.Vec2) (Intercept, bool) {
	best := Intercept{Distance: math.Inf(1)}
	found := false
	for _, e := range edges {
		p, ok := geometry.SegmentIntersect(start, end, e.Start, e.End)
		if !ok {
			continue
		}
		if d := geometry.Distance(p, start); d < best.Distance {
			best = Intercept{Point: p, Distance: d, Segment: e}
			found = true
		}
	}
	return best, found
}

// circleIntercept keeps the contact with the smallest travel fraction.
// Penetrating contacts rank ahead of grazing ones so that a graze on one edge
// never hides a real collision with another; equal fractions prefer depth.
func circleIntercept(edges []geometry.Segment, start, end mgl64.Vec2, radius float64) (geometry.Contact, bool) {
	var best geometry.Contact
	found := false
	for _, e := range edges {
		c, ok := geometry.SweepCircle(start, end, radius, e)
		if !ok {
			continue
		}
		if !found || earlier(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func earlier(c, best geometry.Contact) bool {
	if c.Penetrates() != best.Penetrates() {
		return c.Penetrates()
	}
	if c.Fraction != best.Fraction {
		return c.Fraction < best.Fraction
	}
	return c.Depth > best.Depth
}

func closestPoint(edges []geometry.Segment, p mgl64.Vec2) mgl64.Vec2 {
	var best mgl64.Vec2
	bestDist := math.Inf(1)
	for _, e := range edges {
		q := geometry.ClosestPointOnSegment(e, p)
		if d := geometry.Distance(p, q); d < bestDist {
			best, bestDist = q, d
		}
	}
	return best
}

func edgeBounds(edges []geometry.Segment) (lo, hi mgl64.Vec2) {
	lo = mgl64.Vec2{math.Inf(1), math.Inf(1)}
	hi = mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for _, e := range edges {
		elo, ehi := e.Bounds()
		lo = mgl64.Vec2{math.Min(lo.X(), elo.X()), math.Min(lo.Y(), elo.Y())}
		hi = mgl64.Vec2{math.Max(hi.X(), ehi.X()), math.Max(hi.Y(), ehi.Y())}
	}
	return lo, hi
}
