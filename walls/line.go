package walls

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
)

// LineWall is a single straight wall segment.
type LineWall struct {
	seg geometry.Segment
}

// NewLineWall builds a wall from start to end.
func NewLineWall(start, end mgl64.Vec2) (*LineWall, error) {
	seg, err := geometry.NewSegment(start, end)
	if err != nil {
		return nil, fmt.Errorf("line wall: %w", err)
	}
	return &LineWall{seg: seg}, nil
}

// Segment returns the wall's only edge.
func (w *LineWall) Segment() geometry.Segment { return w.seg }

func (w *LineWall) CheckLineIntercept(start, end mgl64.Vec2) (Intercept, bool) {
	return lineIntercept([]geometry.Segment{w.seg}, start, end)
}

func (w *LineWall) CheckCircleIntercept(start, end mgl64.Vec2, radius float64) (geometry.Contact, bool) {
	return geometry.SweepCircle(start, end, radius, w.seg)
}

func (w *LineWall) ClosestPoint(p mgl64.Vec2) mgl64.Vec2 {
	return geometry.ClosestPointOnSegment(w.seg, p)
}

func (w *LineWall) Segments() []geometry.Segment {
	return []geometry.Segment{w.seg}
}

func (w *LineWall) Bounds() (lo, hi mgl64.Vec2) {
	return w.seg.Bounds()
}
