package render

import "image/color"

// heatStops is a dark-to-bright ramp similar to matplotlib's inferno
var heatStops = []struct {
	at uint8
	c  color.RGBA
}{
	{0, color.RGBA{R: 0, G: 0, B: 4, A: 0xff}},
	{64, color.RGBA{R: 87, G: 16, B: 110, A: 0xff}},
	{128, color.RGBA{R: 188, G: 55, B: 84, A: 0xff}},
	{192, color.RGBA{R: 249, G: 142, B: 9, A: 0xff}},
	{255, color.RGBA{R: 252, G: 255, B: 164, A: 0xff}},
}

// Heat maps an 8-bit magnitude to a colour
func Heat(v uint8) color.RGBA {
	for i := 1; i < len(heatStops); i++ {
		lo, hi := heatStops[i-1], heatStops[i]
		if v > hi.at {
			continue
		}
		t := float64(v-lo.at) / float64(hi.at-lo.at)
		lerp := func(a, b uint8) uint8 {
			return uint8(float64(a) + t*(float64(b)-float64(a)) + 0.5)
		}
		return color.RGBA{R: lerp(lo.c.R, hi.c.R), G: lerp(lo.c.G, hi.c.G), B: lerp(lo.c.B, hi.c.B), A: 0xff}
	}
	return heatStops[len(heatStops)-1].c
}
