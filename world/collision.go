package world

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
)

// SlideMargin is the clearance left between a slid circle and the wall it
// was pushed off. It keeps a resting robot from registering a fresh contact
// with the same wall on the next tick.
const SlideMargin = 1e-6

// Outcome classifies how a requested move was resolved.
type Outcome uint8

const (
	MoveFree    Outcome = iota // Requested position committed unchanged
	MoveSlid                   // Pushed out along a wall
	MoveBlocked                // Every slide candidate was blocked; position unchanged
)

func (o Outcome) String() string {
	switch o {
	case MoveFree:
		return "free"
	case MoveSlid:
		return "slid"
	case MoveBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Resolution is the result of ResolveMove.
type Resolution struct {
	Position mgl64.Vec2
	Outcome  Outcome
	Contacts int // Walls penetrated by the requested move
}

// LogValue implements slog.LogValuer.
func (r Resolution) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("outcome", r.Outcome.String()),
		slog.Float64("x", r.Position.X()),
		slog.Float64("y", r.Position.Y()),
		slog.Int("contacts", r.Contacts),
	)
}

type wallContact struct {
	wall    int
	contact geometry.Contact
}

// ResolveMove applies the slide-then-refuse policy to a circle moving from
// current to requested:
//
//  1. if no wall is penetrated the move is free;
//  2. otherwise each penetrated wall, in wall order, proposes a slide
//     position that leaves the circle just clear of it;
//  3. the first proposal reachable from current without penetrating any
//     wall is committed;
//  4. if none is, the circle stays at current.
//
// A move that ends exactly tangent to a wall is free.
func (w *World) ResolveMove(current, requested mgl64.Vec2, radius float64) Resolution {
	hits := w.penetrations(current, requested, radius)
	if len(hits) == 0 {
		return Resolution{Position: requested, Outcome: MoveFree}
	}

	for _, h := range hits {
		candidate := w.slidePosition(h, requested, radius)
		if w.IsFree(current, candidate, radius) {
			return Resolution{Position: candidate, Outcome: MoveSlid, Contacts: len(hits)}
		}
	}
	return Resolution{Position: current, Outcome: MoveBlocked, Contacts: len(hits)}
}

// SlideCollision reports the corrected position for a colliding move. It
// returns false when the requested move is free and should be committed as is.
func (w *World) SlideCollision(current, requested mgl64.Vec2, radius float64) (mgl64.Vec2, bool) {
	res := w.ResolveMove(current, requested, radius)
	if res.Outcome == MoveFree {
		return mgl64.Vec2{}, false
	}
	return res.Position, true
}

// IsFree reports whether a circle can travel from a to b without
// penetrating any wall. Touching is allowed.
func (w *World) IsFree(a, b mgl64.Vec2, radius float64) bool {
	lo, hi := pathBox(a, b)
	for _, i := range w.index.query(lo, hi, radius+geometry.Tolerance) {
		if c, ok := w.walls[i].CheckCircleIntercept(a, b, radius); ok && c.Penetrates() {
			return false
		}
	}
	return true
}

func (w *World) penetrations(current, requested mgl64.Vec2, radius float64) []wallContact {
	var hits []wallContact
	lo, hi := pathBox(current, requested)
	for _, i := range w.index.query(lo, hi, radius+geometry.Tolerance) {
		if c, ok := w.walls[i].CheckCircleIntercept(current, requested, radius); ok && c.Penetrates() {
			hits = append(hits, wallContact{wall: i, contact: c})
		}
	}
	return hits
}

// slidePosition pushes requested out of the wall along the perpendicular
// from the wall's closest point. If requested has crossed to the far side
// the push follows the contact normal back toward the approach side.
func (w *World) slidePosition(h wallContact, requested mgl64.Vec2, radius float64) mgl64.Vec2 {
	q := w.walls[h.wall].ClosestPoint(requested)
	n := requested.Sub(q)
	if l := n.Len(); l > geometry.Tolerance && n.Dot(h.contact.Normal) > 0 {
		n = n.Mul(1 / l)
	} else {
		n = h.contact.Normal
	}
	return q.Add(n.Mul(radius + SlideMargin))
}
