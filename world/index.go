package world

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
	"github.com/pthm-cable/roboarena/walls"
)

// indexPad keeps every bounding box non-degenerate; axis-aligned walls
// would otherwise have zero extent on one axis.
const indexPad = 1e-6

// wallEntry adapts a wall to rtreego.Spatial.
type wallEntry struct {
	idx  int
	rect rtreego.Rect
}

func (e *wallEntry) Bounds() rtreego.Rect { return e.rect }

// wallIndex is an r-tree broadphase over wall bounding boxes. Query results
// are returned in wall order so that tie-breaks match a linear scan.
type wallIndex struct {
	tree   *rtreego.Rtree
	lo, hi mgl64.Vec2
	all    []int
}

func newWallIndex(ws []walls.Wall) *wallIndex {
	idx := &wallIndex{
		tree: rtreego.NewTree(2, 2, 8),
		lo:   mgl64.Vec2{math.Inf(1), math.Inf(1)},
		hi:   mgl64.Vec2{math.Inf(-1), math.Inf(-1)},
		all:  make([]int, len(ws)),
	}
	for i, w := range ws {
		idx.all[i] = i
		lo, hi := w.Bounds()
		idx.lo = mgl64.Vec2{math.Min(idx.lo.X(), lo.X()), math.Min(idx.lo.Y(), lo.Y())}
		idx.hi = mgl64.Vec2{math.Max(idx.hi.X(), hi.X()), math.Max(idx.hi.Y(), hi.Y())}

		rect, err := boxRect(lo, hi, indexPad)
		if err != nil {
			// Cannot happen with a positive pad; fall back to linear scans
			idx.tree = nil
			continue
		}
		if idx.tree != nil {
			idx.tree.Insert(&wallEntry{idx: i, rect: rect})
		}
	}
	return idx
}

// query returns the indices of walls whose boxes overlap [lo, hi] grown by margin.
func (idx *wallIndex) query(lo, hi mgl64.Vec2, margin float64) []int {
	if idx.tree == nil {
		return idx.all
	}
	rect, err := boxRect(lo, hi, margin+indexPad)
	if err != nil {
		return idx.all
	}

	found := idx.tree.SearchIntersect(rect)
	out := make([]int, 0, len(found))
	for _, s := range found {
		out = append(out, s.(*wallEntry).idx)
	}
	sort.Ints(out)
	return out
}

func boxRect(lo, hi mgl64.Vec2, pad float64) (rtreego.Rect, error) {
	p := rtreego.Point{lo.X() - pad, lo.Y() - pad}
	lengths := []float64{hi.X() - lo.X() + 2*pad, hi.Y() - lo.Y() + 2*pad}
	return rtreego.NewRect(p, lengths)
}

// pathBox returns the bounding box of a straight path.
func pathBox(a, b mgl64.Vec2) (lo, hi mgl64.Vec2) {
	return geometry.Segment{Start: a, End: b}.Bounds()
}
