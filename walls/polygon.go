package walls

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
)

// PolygonWall is a closed loop of edges; edge i joins point i to point (i+1) mod n.
type PolygonWall struct {
	points []mgl64.Vec2
	edges  []geometry.Segment
}

// NewPolygonWall builds a closed polygon. Consecutive duplicate points are
// rejected because they would produce a zero-length edge.
func NewPolygonWall(points []mgl64.Vec2) (*PolygonWall, error) {
	if len(points) < 3 {
		return nil, ErrTooFewPoints
	}

	pts := make([]mgl64.Vec2, len(points))
	copy(pts, points)

	edges := make([]geometry.Segment, len(pts))
	for i := range pts {
		seg, err := geometry.NewSegment(pts[i], pts[(i+1)%len(pts)])
		if err != nil {
			return nil, fmt.Errorf("polygon wall edge %d: %w", i, err)
		}
		edges[i] = seg
	}
	return &PolygonWall{points: pts, edges: edges}, nil
}

// Points returns a copy of the polygon's vertices.
func (w *PolygonWall) Points() []mgl64.Vec2 {
	out := make([]mgl64.Vec2, len(w.points))
	copy(out, w.points)
	return out
}

func (w *PolygonWall) CheckLineIntercept(start, end mgl64.Vec2) (Intercept, bool) {
	return lineIntercept(w.edges, start, end)
}

func (w *PolygonWall) CheckCircleIntercept(start, end mgl64.Vec2, radius float64) (geometry.Contact, bool) {
	return circleIntercept(w.edges, start, end, radius)
}

func (w *PolygonWall) ClosestPoint(p mgl64.Vec2) mgl64.Vec2 {
	return closestPoint(w.edges, p)
}

func (w *PolygonWall) Segments() []geometry.Segment {
	out := make([]geometry.Segment, len(w.edges))
	copy(out, w.edges)
	return out
}

func (w *PolygonWall) Bounds() (lo, hi mgl64.Vec2) {
	return edgeBounds(w.edges)
}
