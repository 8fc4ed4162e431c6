package pool

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/okian/attackmap/internal/domain/geometry"
)

// Visual constants of a marker.
const (
	BeamWidth    = 2.5
	BulletRadius = 4.0
)

// tween is a linear 0..1 progression started at a point in time.
type tween struct {
	start    time.Time
	duration time.Duration
	running  bool
}

func (t *tween) begin(now time.Time, d time.Duration) {
	t.start, t.duration, t.running = now, d, true
}

func (t *tween) progress(now time.Time) float64 {
	if !t.running {
		return 0
	}
	if t.duration <= 0 {
		return 1
	}
	p := float64(now.Sub(t.start)) / float64(t.duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Beam is the path drawn from attacker to defender. It is declarative:
// it records when its draw-in and fade started and frames are sampled
// from that.
type Beam struct {
	curve  geometry.Curve
	path   string
	length float64
	color  string
	draw   tween
	fade   tween
}

// BeamFrame is a beam sampled at an instant.
type BeamFrame struct {
	Path       string  `json:"path,omitempty"`
	Color      string  `json:"color,omitempty"`
	Width      float64 `json:"width"`
	Length     float64 `json:"length"`
	DashOffset float64 `json:"dash_offset"` // Length when undrawn, 0 when fully drawn
	Opacity    float64 `json:"opacity"`
	Visible    bool    `json:"visible"`
	// Drawn is the fraction of the path already visible.
	Drawn float64 `json:"drawn"`

	Curve geometry.Curve `json:"-"`
}

// Setup assigns the trajectory and colour. The beam stays undrawn until
// StartDraw.
func (b *Beam) Setup(curve geometry.Curve, color string) {
	b.curve = curve
	b.path = curve.Path()
	b.length = curve.Length()
	b.color = color
	b.draw = tween{}
	b.fade = tween{}
}

// StartDraw begins the draw-in.
func (b *Beam) StartDraw(now time.Time, d time.Duration) { b.draw.begin(now, d) }

// StartFade begins fading to zero opacity.
func (b *Beam) StartFade(now time.Time, d time.Duration) { b.fade.begin(now, d) }

// Reset returns the beam to neutral: full opacity, no path.
func (b *Beam) Reset() { *b = Beam{} }

// Curve is the assigned trajectory.
func (b *Beam) Curve() geometry.Curve { return b.curve }

// Frame samples the beam at now.
func (b *Beam) Frame(now time.Time) BeamFrame {
	f := BeamFrame{Width: BeamWidth, Opacity: 1}
	if b.path == "" {
		return f
	}
	drawn := b.draw.progress(now)
	f.Path = b.path
	f.Curve = b.curve
	f.Color = b.color
	f.Length = b.length
	f.Drawn = drawn
	f.DashOffset = b.length * (1 - drawn)
	f.Opacity = 1 - b.fade.progress(now)
	f.Visible = b.draw.running && f.Opacity > 0
	return f
}

// Bullet is the point travelling along the beam's path.
type Bullet struct {
	curve  geometry.Curve
	color  string
	travel tween
	set    bool
	hidden bool
}

// BulletFrame is a bullet sampled at an instant.
type BulletFrame struct {
	Position r2.Vec  `json:"position"`
	Color    string  `json:"color,omitempty"`
	Radius   float64 `json:"radius"`
	Progress float64 `json:"progress"` // travelled fraction of the path length
	Visible  bool    `json:"visible"`
}

// Setup assigns the trajectory and colour.
func (b *Bullet) Setup(curve geometry.Curve, color string) {
	b.curve = curve
	b.color = color
	b.travel = tween{}
	b.set = true
	b.hidden = false
}

// StartTravel begins travelling from attacker to defender.
func (b *Bullet) StartTravel(now time.Time, d time.Duration) { b.travel.begin(now, d) }

// Hide removes the bullet from view.
func (b *Bullet) Hide() { b.hidden = true }

// Reset returns the bullet to neutral: no path, no travel offset, hidden.
func (b *Bullet) Reset() { *b = Bullet{} }

// Frame samples the bullet at now.
func (b *Bullet) Frame(now time.Time) BulletFrame {
	f := BulletFrame{Radius: BulletRadius}
	if !b.set {
		return f
	}
	f.Color = b.color
	f.Progress = b.travel.progress(now)
	f.Position = b.curve.AtDistance(f.Progress)
	f.Visible = b.travel.running && !b.hidden
	return f
}
