package chart

import (
	"fmt"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/message"
)

// barSeries draws one bar per category at x = index + offset. go-chart has no
// continuous-axis bar series, so this plugs into chart.Chart as a custom
// Series and ValuesProvider.
type barSeries struct {
	name   string
	values []float64
	offset float64
	width  float64
	color  drawing.Color
	// fills overrides color per bar when set.
	fills []drawing.Color
	edge  drawing.Color
	// labels attaches the formatted value above every bar greater than zero.
	labels  bool
	printer *message.Printer
}

var (
	_ gochart.Series         = barSeries{}
	_ gochart.ValuesProvider = barSeries{}
)

func (b barSeries) GetName() string { return b.name }

func (b barSeries) GetYAxis() gochart.YAxisType { return gochart.YAxisPrimary }

// GetStyle is what the legend draws, so it carries the fill color.
func (b barSeries) GetStyle() gochart.Style {
	return gochart.Style{FillColor: b.color, StrokeColor: b.color, StrokeWidth: 6}
}

func (b barSeries) Len() int { return len(b.values) }

func (b barSeries) GetValues(i int) (float64, float64) {
	return float64(i) + b.offset, b.values[i]
}

func (b barSeries) Validate() error {
	if len(b.values) == 0 {
		return fmt.Errorf("bar series %q has no values", b.name)
	}
	if b.width <= 0 {
		return fmt.Errorf("bar series %q has non-positive width", b.name)
	}
	return nil
}

func (b barSeries) fill(i int) drawing.Color {
	if i < len(b.fills) {
		return b.fills[i]
	}
	return b.color
}

// span returns the horizontal pixel extent of bar i.
func (b barSeries) span(i int, canvasBox gochart.Box, xrange gochart.Range) (left, right int) {
	x := float64(i) + b.offset
	half := b.width / 2
	return canvasBox.Left + xrange.Translate(x-half), canvasBox.Left + xrange.Translate(x+half)
}

func (b barSeries) Render(r gochart.Renderer, canvasBox gochart.Box, xrange, yrange gochart.Range, defaults gochart.Style) {
	base := canvasBox.Bottom - yrange.Translate(yrange.GetMin())
	for i, v := range b.values {
		left, right := b.span(i, canvasBox, xrange)
		top := canvasBox.Bottom - yrange.Translate(v)
		r.SetFillColor(b.fill(i))
		r.SetStrokeColor(b.edge)
		r.SetStrokeWidth(1)
		r.MoveTo(left, base)
		r.LineTo(right, base)
		r.LineTo(right, top)
		r.LineTo(left, top)
		r.LineTo(left, base)
		r.Close()
		r.FillStroke()
	}
	if !b.labels {
		return
	}
	style := gochart.Style{FontSize: 10, FontColor: drawing.ColorFromHex("333333")}.InheritFrom(defaults)
	lift := int(0.01 * float64(yrange.Translate(yrange.GetMax())))
	for i, v := range b.values {
		if v <= 0 {
			continue
		}
		text := b.printer.Sprintf("%d", int64(v))
		style.WriteTextOptionsToRenderer(r)
		box := r.MeasureText(text)
		cx := canvasBox.Left + xrange.Translate(float64(i)+b.offset)
		top := canvasBox.Bottom - yrange.Translate(v)
		r.Text(text, cx-box.Width()/2, top-lift-4)
	}
}
