// Package coverage tracks which parts of the arena floor the robot has swept.
package coverage

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Grid divides a rectangle into square cells. A cell is cleaned once the
// robot hull covers its center.
type Grid struct {
	cells    []bool // true = cleaned
	origin   mgl64.Vec2
	cellSize float64
	width    int // grid width in cells
	height   int // grid height in cells
	cleaned  int
}

// New covers the box [origin, origin + (width, height)] with cells of
// cellSize. Partial cells at the far edges are included.
func New(origin mgl64.Vec2, width, height, cellSize float64) (*Grid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("coverage: cell size must be positive, got %g", cellSize)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("coverage: area must be positive, got %gx%g", width, height)
	}
	w := int(math.Ceil(width / cellSize))
	h := int(math.Ceil(height / cellSize))
	return &Grid{
		cells:    make([]bool, w*h),
		origin:   origin,
		cellSize: cellSize,
		width:    w,
		height:   h,
	}, nil
}

// CleanCircle marks every cell whose center lies inside the circle and
// returns how many of them were not cleaned before.
func (g *Grid) CleanCircle(center mgl64.Vec2, radius float64) int {
	local := center.Sub(g.origin)
	minX := g.clampX(int(math.Floor((local.X() - radius) / g.cellSize)))
	maxX := g.clampX(int(math.Floor((local.X() + radius) / g.cellSize)))
	minY := g.clampY(int(math.Floor((local.Y() - radius) / g.cellSize)))
	maxY := g.clampY(int(math.Floor((local.Y() + radius) / g.cellSize)))

	r2 := radius * radius
	added := 0
	for gy := minY; gy <= maxY; gy++ {
		for gx := minX; gx <= maxX; gx++ {
			idx := gy*g.width + gx
			if g.cells[idx] {
				continue
			}
			c := g.cellCenter(gx, gy)
			dx, dy := c.X()-center.X(), c.Y()-center.Y()
			if dx*dx+dy*dy <= r2 {
				g.cells[idx] = true
				added++
			}
		}
	}
	g.cleaned += added
	return added
}

// IsCleaned reports whether the cell containing p has been cleaned. Points
// outside the grid are never cleaned.
func (g *Grid) IsCleaned(p mgl64.Vec2) bool {
	local := p.Sub(g.origin)
	gx := int(math.Floor(local.X() / g.cellSize))
	gy := int(math.Floor(local.Y() / g.cellSize))
	if gx < 0 || gx >= g.width || gy < 0 || gy >= g.height {
		return false
	}
	return g.cells[gy*g.width+gx]
}

// Cleaned returns the number of cleaned cells.
func (g *Grid) Cleaned() int { return g.cleaned }

// Total returns the number of cells.
func (g *Grid) Total() int { return len(g.cells) }

// Fraction returns Cleaned / Total.
func (g *Grid) Fraction() float64 {
	return float64(g.cleaned) / float64(len(g.cells))
}

// Dims returns the grid size in cells.
func (g *Grid) Dims() (width, height int) { return g.width, g.height }

// Reset marks every cell dirty.
func (g *Grid) Reset() {
	clear(g.cells)
	g.cleaned = 0
}

func (g *Grid) cellCenter(gx, gy int) mgl64.Vec2 {
	return mgl64.Vec2{
		g.origin.X() + (float64(gx)+0.5)*g.cellSize,
		g.origin.Y() + (float64(gy)+0.5)*g.cellSize,
	}
}

func (g *Grid) clampX(x int) int { return max(0, min(g.width-1, x)) }
func (g *Grid) clampY(y int) int { return max(0, min(g.height-1, y)) }
