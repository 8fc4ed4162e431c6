// Package geometry places participants on the attack map and computes the
// curved trajectories drawn between them.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Layout describes the viewport participants are placed in.
type Layout struct {
	Width  float64 // viewport width
	Height float64 // viewport height
	Icon   float64 // team icon edge length
	Margin float64 // gap kept between the ring and the viewport edge
	// AnchorOffset is the beam endpoint relative to an icon's top-left corner.
	AnchorOffset r2.Vec
}

// DefaultLayout returns the 1500x750 map with 100px icons.
func DefaultLayout() Layout {
	return Layout{
		Width:        1500,
		Height:       750,
		Icon:         100,
		Margin:       40,
		AnchorOffset: r2.Vec{X: 50, Y: 17},
	}
}

// Centre is the midpoint of the viewport.
func (l Layout) Centre() r2.Vec {
	return r2.Vec{X: l.Width / 2, Y: l.Height / 2}
}

// Position returns the icon top-left corner of participant slot among total.
// Participants sit on an ellipse inscribed in the viewport, starting at
// 12 o'clock and going clockwise. A slot outside [0,total) maps to the
// viewport centre.
func (l Layout) Position(slot, total int) r2.Vec {
	if total < 1 {
		total = 1
	}
	half := r2.Vec{X: l.Icon / 2, Y: l.Icon / 2}
	c := l.Centre()
	if slot < 0 || slot >= total {
		return r2.Sub(c, half)
	}

	rx := math.Max(l.Width/2-l.Icon/2-l.Margin, 0)
	ry := math.Max(l.Height/2-l.Icon/2-l.Margin, 0)

	theta := 2 * math.Pi * float64(slot) / float64(total)
	centre := r2.Vec{
		X: c.X + rx*math.Sin(theta),
		Y: c.Y - ry*math.Cos(theta),
	}
	return r2.Sub(centre, half)
}

// Anchor returns the beam endpoint of participant slot among total.
func (l Layout) Anchor(slot, total int) r2.Vec {
	return r2.Add(l.Position(slot, total), l.AnchorOffset)
}

// Path returns the trajectory between two participants.
func (l Layout) Path(attacker, defender, total int) Curve {
	p0 := l.Anchor(attacker, total)
	p3 := l.Anchor(defender, total)
	p1, p2 := ControlPoints(p0, p3)
	return Curve{P0: p0, P1: p1, P2: p2, P3: p3}
}
