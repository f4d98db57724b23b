package chart

import "github.com/wcharczuk/go-chart/v2/drawing"

// bluesStops is the sequential "Blues" ramp, light to dark, at even spacing.
var bluesStops = []drawing.Color{
	drawing.ColorFromHex("F7FBFF"),
	drawing.ColorFromHex("DEEBF7"),
	drawing.ColorFromHex("C6DBEF"),
	drawing.ColorFromHex("9ECAE1"),
	drawing.ColorFromHex("6BAED6"),
	drawing.ColorFromHex("4292C6"),
	drawing.ColorFromHex("2171B5"),
	drawing.ColorFromHex("08519C"),
	drawing.ColorFromHex("08306B"),
}

// Blues maps t in [0,1] onto the Blues ramp by linear interpolation. Values
// outside the interval are clamped.
func Blues(t float64) drawing.Color {
	switch {
	case t <= 0:
		return bluesStops[0]
	case t >= 1:
		return bluesStops[len(bluesStops)-1]
	}
	pos := t * float64(len(bluesStops)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := bluesStops[i], bluesStops[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*frac + 0.5) }
	return drawing.Color{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}
