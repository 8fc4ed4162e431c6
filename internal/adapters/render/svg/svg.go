// Package svg draws an animation frame as a standalone SVG document.
package svg

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/okian/attackmap/internal/animation/panel"
)

const (
	background = "#0b0f1a"
	iconFill   = "#1c2438"
	iconStroke = "#3d4b6b"
	labelColor = "#d8e0f0"
	fontFamily = "monospace"
	fontSize   = 14.0
)

// Render writes f as SVG. Teams are drawn first so beams and bullets sit on
// top of the icons.
func Render(w io.Writer, f panel.Frame) error { //nolint:gocritic // hugeParam
	var buf bytes.Buffer

	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.0f %.0f" width="%.0f" height="%.0f">`,
		f.Width, f.Height, f.Width, f.Height)
	buf.WriteString("\n")
	fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", background)

	for _, t := range f.Teams {
		fmt.Fprintf(&buf, `  <g class="team" data-slot="%d" data-id="%d">`+"\n", t.Slot, t.ID)
		fmt.Fprintf(&buf, `    <rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="12" fill="%s" stroke="%s"/>`+"\n",
			t.Position.X, t.Position.Y, f.Icon, f.Icon, iconFill, iconStroke)
		fmt.Fprintf(&buf, `    <text x="%.2f" y="%.2f" font-family="%s" font-size="%.0f" fill="%s" text-anchor="middle">%s</text>`+"\n",
			t.Position.X+f.Icon/2, t.Position.Y+f.Icon+fontSize+4, fontFamily, fontSize, labelColor, html.EscapeString(t.Name))
		buf.WriteString("  </g>\n")
	}

	for _, m := range f.Markers {
		if m.Beam.Visible {
			fmt.Fprintf(&buf, `  <path class="beam" data-slot="%d" d="%s" fill="none" stroke="%s" stroke-width="%.2f" stroke-dasharray="%.2f" stroke-dashoffset="%.2f" opacity="%.3f"/>`+"\n",
				m.Slot, m.Beam.Path, html.EscapeString(m.Beam.Color), m.Beam.Width, m.Beam.Length, m.Beam.DashOffset, m.Beam.Opacity)
		}
		if m.Bullet.Visible {
			fmt.Fprintf(&buf, `  <circle class="bullet" data-slot="%d" cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>`+"\n",
				m.Slot, m.Bullet.Position.X, m.Bullet.Position.Y, m.Bullet.Radius, html.EscapeString(m.Bullet.Color))
		}
	}

	buf.WriteString("</svg>\n")
	_, err := buf.WriteTo(w)
	return err
}
