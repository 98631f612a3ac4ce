// Package world owns the arena: its walls, bounds and beacons. It answers
// the ray and swept-circle queries a robot needs to move and sense.
package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/roboarena/walls"
)

// ErrInvalidDimensions is returned when the arena width or height is not positive.
var ErrInvalidDimensions = errors.New("world: arena dimensions must be positive")

// Beacon is a fixed, identifiable landmark used for localization.
type Beacon struct {
	ID       int
	Location mgl64.Vec2
}

// Stepper is advanced by the world once per tick. The world only borrows it
// for the duration of the call.
type Stepper interface {
	Step(w *World, dt float64)
}

// World is the static part of a simulation episode.
type World struct {
	walls   []walls.Wall
	beacons []Beacon
	width   float64
	height  float64
	index   *wallIndex
}

// New builds a world from an already-validated wall list.
func New(width, height float64, ws []walls.Wall, beacons ...Beacon) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %gx%g", ErrInvalidDimensions, width, height)
	}
	for i, wall := range ws {
		if wall == nil {
			return nil, fmt.Errorf("world: wall %d is nil", i)
		}
	}

	w := &World{
		walls:   append([]walls.Wall(nil), ws...),
		beacons: append([]Beacon(nil), beacons...),
		width:   width,
		height:  height,
	}
	w.index = newWallIndex(w.walls)
	return w, nil
}

// Update advances s by dt.
func (w *World) Update(s Stepper, dt float64) {
	s.Step(w, dt)
}

// Walls returns the wall list. Callers must not modify it.
func (w *World) Walls() []walls.Wall { return w.walls }

// Beacons returns the beacon list. Callers must not modify it.
func (w *World) Beacons() []Beacon { return w.beacons }

// Width returns the arena width.
func (w *World) Width() float64 { return w.width }

// Height returns the arena height.
func (w *World) Height() float64 { return w.height }

// Bounds returns the box covering every wall, or the origin-anchored arena
// rectangle when there are no walls.
func (w *World) Bounds() (lo, hi mgl64.Vec2) {
	if len(w.walls) == 0 {
		return mgl64.Vec2{}, mgl64.Vec2{w.width, w.height}
	}
	return w.index.lo, w.index.hi
}
