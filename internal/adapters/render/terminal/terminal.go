// Package terminal draws animation frames onto a tcell screen.
package terminal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/okian/attackmap/internal/animation/panel"
)

// Glyphs used on the grid.
const (
	TeamGlyph   = '■'
	BeamGlyph   = '·'
	BulletGlyph = '●'

	labelWidth = 12
	// beamStep is the viewport distance between two beam glyphs.
	beamStep = 12.0
)

var (
	teamStyle   = tcell.StyleDefault.Foreground(tcell.ColorLightSteelBlue).Bold(true)
	labelStyle  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
)

// Renderer projects the viewport onto the screen's cell grid. The bottom
// row is reserved for the status line.
type Renderer struct {
	screen tcell.Screen
}

// New creates a renderer on an initialised screen.
func New(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Project maps a viewport point to a cell.
func (r *Renderer) Project(f panel.Frame, p r2.Vec) (int, int) { //nolint:gocritic // hugeParam
	w, h := r.screen.Size()
	h--
	if w <= 0 || h <= 0 || f.Width <= 0 || f.Height <= 0 {
		return 0, 0
	}
	x := int(math.Round(p.X / f.Width * float64(w-1)))
	y := int(math.Round(p.Y / f.Height * float64(h-1)))
	return clamp(x, 0, w-1), clamp(y, 0, h-1)
}

// Draw replaces the screen content with f and shows it.
func (r *Renderer) Draw(f panel.Frame) { //nolint:gocritic // hugeParam
	r.screen.Clear()

	for _, m := range f.Markers {
		if !m.Beam.Visible {
			continue
		}
		style := tcell.StyleDefault.Foreground(tcell.GetColor(m.Beam.Color))
		if m.Beam.Opacity < 0.5 {
			style = style.Dim(true)
		}
		steps := int(m.Beam.Length*m.Beam.Drawn/beamStep) + 1
		for i := 0; i <= steps; i++ {
			frac := m.Beam.Drawn * float64(i) / float64(steps)
			x, y := r.Project(f, m.Beam.Curve.AtDistance(frac))
			r.screen.SetContent(x, y, BeamGlyph, nil, style)
		}
	}

	for _, t := range f.Teams {
		x, y := r.Project(f, t.Anchor)
		r.screen.SetContent(x, y, TeamGlyph, nil, teamStyle)
		name := []rune(t.Name)
		if len(name) > labelWidth {
			name = name[:labelWidth]
		}
		r.text(x-len(name)/2, y+1, string(name), labelStyle)
	}

	for _, m := range f.Markers {
		if !m.Bullet.Visible {
			continue
		}
		x, y := r.Project(f, m.Bullet.Position)
		r.screen.SetContent(x, y, BulletGlyph, nil, tcell.StyleDefault.Foreground(tcell.GetColor(m.Bullet.Color)).Bold(true))
	}

	_, h := r.screen.Size()
	s := f.Stats
	r.text(0, h-1, fmt.Sprintf(" slots %d/%d  pending %d  batches %d  shots %d  impacts %d  done %d ",
		s.Busy, s.PoolSize, s.Pending, s.OpenBatches, s.Shots, s.Impacts, s.CompletedJobs), statusStyle)

	r.screen.Show()
}

func (r *Renderer) text(x, y int, s string, style tcell.Style) {
	w, _ := r.screen.Size()
	for _, c := range s {
		if x >= 0 && x < w {
			r.screen.SetContent(x, y, c, nil, style)
		}
		x++
	}
}

// Run redraws frames at fps until ctx is done or the user presses q, Esc or
// Ctrl-C. The caller owns the screen's Init and Fini.
func Run(ctx context.Context, screen tcell.Screen, frames func() panel.Frame, fps int) error {
	if fps <= 0 {
		fps = 30
	}
	r := New(screen)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	r.Draw(frames())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return nil
				}
			}
		case <-ticker.C:
			r.Draw(frames())
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
