package geometry

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Control point tuning.
const (
	// Bend is the control point offset as a fraction of the chord length.
	Bend = 0.25
	// MinOffset keeps short or degenerate chords visibly curved.
	MinOffset = 40.0

	lengthSamples = 64
)

// ControlPoints returns the interior points of a cubic Bézier arcing from p0
// to p3. They sit at 1/3 and 2/3 of the chord, pushed along its left normal
// by max(MinOffset, Bend*|p3-p0|). Coincident endpoints produce a loop above
// the point.
func ControlPoints(p0, p3 r2.Vec) (r2.Vec, r2.Vec) {
	chord := r2.Sub(p3, p0)
	dist := r2.Norm(chord)
	offset := math.Max(MinOffset, Bend*dist)

	if dist == 0 {
		// SVG y grows downwards.
		lift := r2.Vec{Y: -offset}
		side := r2.Vec{X: offset / 2}
		return r2.Add(r2.Sub(p0, side), lift), r2.Add(r2.Add(p0, side), lift)
	}

	normal := r2.Scale(offset, r2.Unit(r2.Vec{X: chord.Y, Y: -chord.X}))
	p1 := r2.Add(r2.Add(p0, r2.Scale(1.0/3, chord)), normal)
	p2 := r2.Add(r2.Add(p0, r2.Scale(2.0/3, chord)), normal)
	return p1, p2
}

// Curve is a cubic Bézier.
type Curve struct {
	P0, P1, P2, P3 r2.Vec
}

// At returns the point at parameter t, clamped to [0,1].
func (c Curve) At(t float64) r2.Vec {
	t = clamp01(t)
	u := 1 - t
	p := r2.Scale(u*u*u, c.P0)
	p = r2.Add(p, r2.Scale(3*u*u*t, c.P1))
	p = r2.Add(p, r2.Scale(3*u*t*t, c.P2))
	return r2.Add(p, r2.Scale(t*t*t, c.P3))
}

// Sample returns n points evenly spaced in t, both endpoints included.
// n below 2 is raised to 2.
func (c Curve) Sample(n int) []r2.Vec {
	if n < 2 {
		n = 2
	}
	pts := make([]r2.Vec, n)
	for i := range pts {
		pts[i] = c.At(float64(i) / float64(n-1))
	}
	return pts
}

// Length approximates the arc length with a sampled polyline.
func (c Curve) Length() float64 {
	pts := c.Sample(lengthSamples + 1)
	var total float64
	for i := 1; i < len(pts); i++ {
		total += r2.Norm(r2.Sub(pts[i], pts[i-1]))
	}
	return total
}

// AtDistance returns the point reached after travelling fraction f of the
// arc length, the way a CSS offset-distance percentage moves along a path.
func (c Curve) AtDistance(f float64) r2.Vec {
	f = clamp01(f)
	pts := c.Sample(lengthSamples + 1)
	seg := make([]float64, len(pts)-1)
	var total float64
	for i := range seg {
		seg[i] = r2.Norm(r2.Sub(pts[i+1], pts[i]))
		total += seg[i]
	}
	if total == 0 {
		return c.At(f)
	}

	target := f * total
	for i, l := range seg {
		if target <= l || i == len(seg)-1 {
			if l == 0 {
				return pts[i]
			}
			return r2.Add(pts[i], r2.Scale(math.Min(target/l, 1), r2.Sub(pts[i+1], pts[i])))
		}
		target -= l
	}
	return c.P3
}

// Path renders the curve as an SVG path: "M x,y C x,y x,y x,y".
func (c Curve) Path() string {
	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, c.P0)
	b.WriteString(" C ")
	writePoint(&b, c.P1)
	b.WriteByte(' ')
	writePoint(&b, c.P2)
	b.WriteByte(' ')
	writePoint(&b, c.P3)
	return b.String()
}

func writePoint(b *strings.Builder, p r2.Vec) {
	b.WriteString(formatCoord(p.X))
	b.WriteByte(',')
	b.WriteString(formatCoord(p.Y))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
