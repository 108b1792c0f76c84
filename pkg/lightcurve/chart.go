package lightcurve

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	chartMarginLeft   = 70
	chartMarginRight  = 20
	chartMarginTop    = 40
	chartMarginBottom = 50
	chartTickCount    = 5
	chartMinWidth     = 320
	chartMinHeight    = 240
)

var (
	chartBackground = color.RGBA{255, 255, 255, 255}
	chartAxisColor  = color.RGBA{40, 40, 40, 255}
	chartGridColor  = color.RGBA{225, 225, 225, 255}
	chartTextColor  = color.RGBA{20, 20, 20, 255}

	// Target first, then references in order.
	seriesColors = []color.RGBA{
		{30, 80, 220, 255},
		{220, 40, 40, 255},
		{200, 40, 200, 255},
		{30, 160, 60, 255},
		{230, 140, 20, 255},
		{20, 170, 190, 255},
	}
)

// RenderChartFile renders the light curve as a JPEG file.
func RenderChartFile(c *Curve, width, height int, outputPath string) error {
	img, err := RenderChart(c, width, height)
	if err != nil {
		return err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return nil
}

// RenderChartBytes renders the light curve and returns it as JPEG bytes.
func RenderChartBytes(c *Curve, width, height int) ([]byte, error) {
	img, err := RenderChart(c, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderChart draws differential magnitude against frame number, one colour
// per series. The magnitude axis is inverted so brighter points sit higher.
// Undefined magnitudes are not drawn.
func RenderChart(c *Curve, width, height int) (*image.RGBA, error) {
	if c == nil {
		return nil, fmt.Errorf("no light curve data")
	}
	if width < chartMinWidth {
		width = chartMinWidth
	}
	if height < chartMinHeight {
		height = chartMinHeight
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(img, img.Bounds(), chartBackground)

	plot := image.Rect(chartMarginLeft, chartMarginTop, width-chartMarginRight, height-chartMarginBottom)

	series := make([][]Magnitude, 0, 1+len(c.ReferenceMagnitude))
	labels := make([]string, 0, cap(series))
	series = append(series, c.TargetMagnitude)
	labels = append(labels, c.Target.Label(0))
	for i, ref := range c.References {
		series = append(series, c.ReferenceMagnitude[i])
		labels = append(labels, ref.Label(i))
	}

	lo, hi, ok := magnitudeRange(series)
	if !ok {
		lo, hi = -1, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 0.1
	}
	lo -= pad
	hi += pad

	n := c.Len()
	xAt := func(i int) int {
		if n <= 1 {
			return plot.Min.X + plot.Dx()/2
		}
		return plot.Min.X + int(math.Round(float64(i)*float64(plot.Dx()-1)/float64(n-1)))
	}
	// Smaller magnitude means brighter, so lo maps to the top edge.
	yAt := func(m float64) int {
		return plot.Min.Y + int(math.Round((m-lo)/(hi-lo)*float64(plot.Dy()-1)))
	}

	face := basicfont.Face7x13

	// Horizontal grid and magnitude ticks
	for t := 0; t <= chartTickCount; t++ {
		m := lo + (hi-lo)*float64(t)/chartTickCount
		y := yAt(m)
		for x := plot.Min.X; x < plot.Max.X; x++ {
			img.Set(x, y, chartGridColor)
		}
		label := fmt.Sprintf("%.3f", m)
		advance := font.MeasureString(face, label).Round()
		drawText(img, face, label, plot.Min.X-advance-6, y+4, chartTextColor)
	}

	// Frame number ticks
	for t := 0; t <= chartTickCount && n > 0; t++ {
		i := int(math.Round(float64(n-1) * float64(t) / chartTickCount))
		x := xAt(i)
		drawLine(img, x, plot.Max.Y, x, plot.Max.Y+4, chartAxisColor)
		drawCenteredText(img, face, fmt.Sprintf("%d", i), x, plot.Max.Y+18, chartTextColor)
	}

	drawLine(img, plot.Min.X, plot.Min.Y, plot.Min.X, plot.Max.Y, chartAxisColor)
	drawLine(img, plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y, chartAxisColor)

	for s, values := range series {
		col := seriesColors[s%len(seriesColors)]
		for i, m := range values {
			if !m.Defined {
				continue
			}
			fillCircle(img, xAt(i), yAt(m.Value), 3, col)
		}
	}

	// Legend, top right inside the plot area
	legendX := plot.Max.X - 10
	for s, label := range labels {
		advance := font.MeasureString(face, label).Round()
		y := plot.Min.Y + 16 + s*16
		col := seriesColors[s%len(seriesColors)]
		fillCircle(img, legendX-advance-12, y-4, 4, col)
		drawText(img, face, label, legendX-advance, y, chartTextColor)
	}

	title := fmt.Sprintf("%s differential magnitude (%s of %d reference(s))", c.Target.Label(0), c.Method, len(c.References))
	drawCenteredText(img, face, title, width/2, chartMarginTop/2+4, chartTextColor)
	drawCenteredText(img, face, "Image Number", plot.Min.X+plot.Dx()/2, height-12, chartTextColor)
	drawText(img, face, "Mag", 8, plot.Min.Y-8, chartTextColor)

	return img, nil
}

func magnitudeRange(series [][]Magnitude) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, values := range series {
		for _, m := range values {
			if !m.Defined {
				continue
			}
			lo = math.Min(lo, m.Value)
			hi = math.Max(hi, m.Value)
			ok = true
		}
	}
	return lo, hi, ok
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCenteredText draws a string centered at (cx, cy).
func drawCenteredText(img *image.RGBA, face font.Face, s string, cx, cy int, c color.RGBA) {
	advance := font.MeasureString(face, s)
	x := cx - advance.Round()/2
	drawText(img, face, s, x, cy, c)
}

// drawLine draws a 1px line between two points using Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := intAbs(x1 - x0)
	dy := -intAbs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}
