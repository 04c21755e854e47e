// Package tlplot renders frame activity timelines: one horizontal band per
// trace channel, with a box per frame and a glyph per timing marker.
package tlplot

import (
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Span is one frame on the wire, from first to last transfer.
type Span struct {
	Start float64
	End   float64
	Color color.Color
	Label string
}

// Marker is a point annotation on the band, such as an SFD timestamp or a
// gap violation.
type Marker struct {
	Time  float64
	Glyph draw.GlyphStyle
	Label string
}

// Band plots the spans and markers of one channel at a fixed Y location.
type Band struct {
	Spans    []Span
	Markers  []Marker
	Location float64
	Height   vg.Length

	BoxStyle  draw.LineStyle
	TextStyle draw.TextStyle
}

var _ plot.Plotter = &Band{}

// NewBand builds a channel band at the given Y location. Markers are drawn
// in time order.
func NewBand(spans []Span, markers []Marker, loc float64, height vg.Length) *Band {
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].Time < markers[j].Time
	})
	return &Band{
		Spans:    spans,
		Markers:  markers,
		Location: loc,
		Height:   height,
		BoxStyle: plotter.DefaultLineStyle,
		TextStyle: text.Style{
			Font:    font.From(plotter.DefaultFont, plotter.DefaultFontSize),
			XAlign:  draw.XCenter,
			YAlign:  draw.YCenter,
			Handler: plot.DefaultTextHandler,
		},
	}
}

func (b *Band) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	y := trY(b.Location)
	if !c.ContainsY(y) {
		return
	}

	for _, span := range b.Spans {
		xStart, xEnd := trX(span.Start), trX(span.End)
		pts := []vg.Point{
			{X: xStart, Y: y - b.Height/2},
			{X: xEnd, Y: y - b.Height/2},
			{X: xEnd, Y: y + b.Height/2},
			{X: xStart, Y: y + b.Height/2},
			{X: xStart, Y: y - b.Height/2},
		}
		c.FillPolygon(span.Color, c.ClipPolygonX(pts[0:4]))
		c.StrokeLines(b.BoxStyle, c.ClipLinesX(pts)...)
		if span.Label != "" && b.TextStyle.Width(span.Label) <= xEnd-xStart && c.ContainsX(xStart) {
			c.FillText(b.TextStyle, vg.Point{
				X: (xStart + xEnd) / 2,
				Y: y,
			}, span.Label)
		}
	}

	for _, marker := range b.Markers {
		xPos := trX(marker.Time)
		if !c.ContainsX(xPos) {
			continue
		}
		c.DrawGlyph(marker.Glyph, vg.Point{X: xPos, Y: y})
		if marker.Label != "" {
			c.FillText(b.TextStyle, vg.Point{
				X: xPos,
				Y: y + b.Height/2 + b.TextStyle.FontExtents().Height/2,
			}, marker.Label)
		}
	}
}

type xyconv Band

func (b *xyconv) Len() int {
	return len(b.Markers) + len(b.Spans)*2
}

func (b *xyconv) XY(i int) (x, y float64) {
	if i < len(b.Markers) {
		return b.Markers[i].Time, b.Location
	}
	i -= len(b.Markers)
	if i < len(b.Spans) {
		return b.Spans[i].Start, b.Location
	}
	i -= len(b.Spans)
	if i < len(b.Spans) {
		return b.Spans[i].End, b.Location
	}
	panic("invalid index")
}

func (b *Band) DataRange() (xmin, xmax, ymin, ymax float64) {
	return plotter.XYRange((*xyconv)(b))
}
