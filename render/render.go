// Package render draws a spectrogram heat map with the pitch contour laid
// over it, the view a learner uses to compare against a reference.
package render

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/RyanBlaney/sonido-tono/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/audioerr"
)

// Options controls the output image
type Options struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	MaxFrequency  float64 `json:"max_frequency"`  // Top of the frequency axis, 0 uses the spectrogram's
	MinConfidence float64 `json:"min_confidence"` // Voiced frames below this are not drawn
	Smooth        bool    `json:"smooth"`         // Catmull-Rom scaling instead of nearest neighbour
	Labels        bool    `json:"labels"`         // Frequency gridlines with Hz labels
	ContourWidth  int     `json:"contour_width"`  // Pixels

	// Progress (0-100) draws a playback cursor when positive
	Progress float64 `json:"-"`

	ContourColor color.RGBA `json:"-"`
	CursorColor  color.RGBA `json:"-"`
	LabelColor   color.RGBA `json:"-"`
}

// DefaultOptions returns an 800x300 image with labels
func DefaultOptions() Options {
	return Options{
		Width:         800,
		Height:        300,
		MinConfidence: 0,
		Smooth:        true,
		Labels:        true,
		ContourWidth:  2,
		ContourColor:  color.RGBA{R: 0x00, G: 0xe5, B: 0xff, A: 0xff},
		CursorColor:   color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xc0},
		LabelColor:    color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff},
	}
}

// Validate checks the image options
func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return audioerr.NewConfigError("render.size", [2]int{o.Width, o.Height}, "width and height must be positive")
	}
	if o.MaxFrequency < 0 {
		return audioerr.NewConfigError("render.max_frequency", o.MaxFrequency, "max frequency must not be negative")
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return audioerr.NewConfigError("render.min_confidence", o.MinConfidence, "confidence must be in [0, 1]")
	}
	if o.ContourWidth < 1 {
		return audioerr.NewConfigError("render.contour_width", o.ContourWidth, "contour width must be at least 1")
	}
	return nil
}

// Render draws the spectrogram as a heat map (low frequencies at the bottom) and the
// voiced frames of track as a line on the same frequency axis. Either may be
// nil, but not both.
func Render(sg *spectral.Spectrogram, track *tonal.PitchTrack, opts Options) (*image.RGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if sg == nil && track == nil {
		return nil, fmt.Errorf("render: nothing to draw")
	}

	maxFreq := opts.MaxFrequency
	if maxFreq == 0 && sg != nil {
		maxFreq = sg.MaxFrequency()
	}
	if maxFreq <= 0 {
		return nil, fmt.Errorf("render: max frequency is required without a spectrogram")
	}

	dst := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	duration := span(sg, track)
	if sg != nil && len(sg.Slices) > 0 {
		drawHeatMap(dst, sg, duration, maxFreq, opts.Smooth)
	}
	if opts.Labels {
		drawLabels(dst, maxFreq, opts.LabelColor)
	}
	if track != nil && duration > 0 {
		drawContour(dst, track, duration, maxFreq, opts)
	}
	if opts.Progress > 0 {
		x := int(math.Round(opts.Progress / 100 * float64(opts.Width-1)))
		x = max(0, min(opts.Width-1, x))
		for y := 0; y < opts.Height; y++ {
			blend(dst, x, y, opts.CursorColor)
		}
	}
	return dst, nil
}

// span returns the longer of the two time extents in seconds
func span(sg *spectral.Spectrogram, track *tonal.PitchTrack) float64 {
	var d float64
	if sg != nil && sg.SampleRate > 0 {
		d = float64(len(sg.Slices)*sg.HopSize) / float64(sg.SampleRate)
	}
	if track != nil && track.SampleRate > 0 && len(track.Frames) > 0 {
		n := len(track.Frames)
		end := float64((n-1)*track.HopSize+track.FrameSize) / float64(track.SampleRate)
		d = math.Max(d, end)
	}
	return d
}

// drawHeatMap builds one pixel per slice and bin, then scales it into dst.
// Rows between the spectrogram's top bin and maxFreq stay black.
func drawHeatMap(dst *image.RGBA, sg *spectral.Spectrogram, duration, maxFreq float64, smooth bool) {
	bins := sg.BinCount
	// Rows of the source image cover 0..maxFreq at the spectrogram's resolution
	rows := max(1, int(math.Ceil(maxFreq/sg.FrequencyResolution())))
	src := image.NewRGBA(image.Rect(0, 0, len(sg.Slices), rows))
	for x, slice := range sg.Slices {
		for bin := 0; bin < rows; bin++ {
			var v uint8
			if bin < bins && bin < len(slice) {
				v = slice[bin]
			}
			src.SetRGBA(x, rows-1-bin, Heat(v))
		}
	}

	// The spectrogram may end before the track does
	target := dst.Bounds()
	own := float64(len(sg.Slices)*sg.HopSize) / float64(sg.SampleRate)
	if own < duration {
		target.Max.X = target.Min.X + max(1, int(math.Round(own/duration*float64(target.Dx()))))
	}
	var scaler draw.Scaler = draw.NearestNeighbor
	if smooth {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, target, src, src.Bounds(), draw.Src, nil)
}

func drawContour(dst *image.RGBA, track *tonal.PitchTrack, duration, maxFreq float64, opts Options) {
	w, h := float64(opts.Width), float64(opts.Height)
	center := float64(track.FrameSize) / 2 / float64(track.SampleRate)

	havePrev := false
	var px, py int
	for i, f := range track.Frames {
		if !f.Voiced() || f.Confidence < opts.MinConfidence || f.Pitch > maxFreq {
			havePrev = false
			continue
		}
		t := track.FrameTime(i) + center
		x := int(math.Round(t / duration * (w - 1)))
		y := int(math.Round((1 - f.Pitch/maxFreq) * (h - 1)))
		if havePrev {
			line(dst, px, py, x, y, opts.ContourWidth, opts.ContourColor)
		} else {
			dot(dst, x, y, opts.ContourWidth, opts.ContourColor)
		}
		px, py, havePrev = x, y, true
	}
}

// gridStep picks a round Hz spacing giving at most ten gridlines
func gridStep(maxFreq float64) float64 {
	for _, step := range []float64{50, 100, 250, 500, 1000, 2000, 5000} {
		if maxFreq/step <= 10 {
			return step
		}
	}
	return 10000
}

func drawLabels(dst *image.RGBA, maxFreq float64, c color.RGBA) {
	b := dst.Bounds()
	h := float64(b.Dy())
	grid := c
	grid.A = 0x40

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
	}
	step := gridStep(maxFreq)
	for f := step; f < maxFreq; f += step {
		y := int(math.Round((1 - f/maxFreq) * (h - 1)))
		for x := b.Min.X; x < b.Max.X; x += 4 {
			blend(dst, x, y, grid)
		}
		d.Dot = fixed.P(b.Min.X+2, y-2)
		d.DrawString(fmt.Sprintf("%.0f Hz", f))
	}
}

// line draws a thick segment with Bresenham's algorithm
func line(dst *image.RGBA, x0, y0, x1, y1, width int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		dot(dst, x0, y0, width, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func dot(dst *image.RGBA, x, y, width int, c color.RGBA) {
	r := width / 2
	for oy := -r; oy < width-r; oy++ {
		for ox := -r; ox < width-r; ox++ {
			if image.Pt(x+ox, y+oy).In(dst.Bounds()) {
				dst.SetRGBA(x+ox, y+oy, c)
			}
		}
	}
}

// blend alpha-composites c over the pixel at (x, y)
func blend(dst *image.RGBA, x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(dst.Bounds()) {
		return
	}
	under := dst.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(top, bottom uint8) uint8 {
		return uint8((uint32(top)*a + uint32(bottom)*(255-a)) / 255)
	}
	dst.SetRGBA(x, y, color.RGBA{
		R: mix(c.R, under.R),
		G: mix(c.G, under.G),
		B: mix(c.B, under.B),
		A: 0xff,
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Encode writes img as PNG
func Encode(w io.Writer, img image.Image) error {
	bw := bufio.NewWriter(w)
	if err := png.Encode(bw, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return bw.Flush()
}

// WritePNG writes img to path
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return Encode(f, img)
}
