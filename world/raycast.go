package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/geometry"
	"github.com/pthm-cable/roboarena/walls"
)

// Raycast casts a ray of maxLength from origin at angle and returns the
// closest wall crossing. When nothing is hit the returned intercept has
// Distance == maxLength and ok is false.
//
// Ties between walls keep the lowest wall index; ties inside a wall keep
// its lowest edge index.
func (w *World) Raycast(origin mgl64.Vec2, angle, maxLength float64) (walls.Intercept, bool) {
	end := origin.Add(geometry.FromAngle(angle).Mul(maxLength))
	best := walls.Intercept{Distance: maxLength}
	found := false

	lo, hi := pathBox(origin, end)
	for _, i := range w.index.query(lo, hi, 0) {
		hit, ok := w.walls[i].CheckLineIntercept(origin, end)
		if !ok {
			continue
		}
		if !found || hit.Distance < best.Distance {
			best = hit
			found = true
		}
	}
	return best, found
}
