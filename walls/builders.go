package walls

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Rectangle returns four line walls enclosing an axis-aligned box centered on
// center, ordered left, top, right, bottom.
func Rectangle(center mgl64.Vec2, width, height float64) ([]Wall, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("walls: rectangle dimensions must be positive, got %gx%g", width, height)
	}
	hw, hh := width/2, height/2
	bottomLeft := mgl64.Vec2{center.X() - hw, center.Y() - hh}
	topLeft := mgl64.Vec2{center.X() - hw, center.Y() + hh}
	topRight := mgl64.Vec2{center.X() + hw, center.Y() + hh}
	bottomRight := mgl64.Vec2{center.X() + hw, center.Y() - hh}

	corners := [][2]mgl64.Vec2{
		{bottomLeft, topLeft},
		{topLeft, topRight},
		{topRight, bottomRight},
		{bottomRight, bottomLeft},
	}
	out := make([]Wall, 0, len(corners))
	for _, c := range corners {
		w, err := NewLineWall(c[0], c[1])
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
