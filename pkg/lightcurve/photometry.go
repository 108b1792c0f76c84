package lightcurve

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Measure sums the intensity of every pixel whose centre lies within the
// aperture radius. Pixel centres sit at integer coordinates. Parts of the
// aperture outside the frame contribute nothing.
func Measure(frame Mat, a Aperture) float64 {
	data := frame.DataFloat32()
	var sum float64
	forEachApertureOffset(a, frame.Cols(), frame.Rows(), func(offset int) {
		sum += float64(data[offset])
	})
	return sum
}

// Footprint counts the in-frame pixels covered by the aperture.
func Footprint(a Aperture, width, height int) int {
	n := 0
	forEachApertureOffset(a, width, height, func(int) { n++ })
	return n
}

func forEachApertureOffset(a Aperture, width, height int, fn func(offset int)) {
	r := float64(a.Radius)
	r2 := r * r
	cx, cy := a.Center.X, a.Center.Y
	if width <= 0 || height <= 0 || !isFinite(cx) || !isFinite(cy) {
		return
	}
	maxX, maxY := float64(width-1), float64(height-1)
	if cx+r < 0 || cx-r > maxX || cy+r < 0 || cy-r > maxY {
		return
	}

	// Bounds are clamped in float space so the int conversion cannot overflow.
	yStart := int(math.Max(math.Ceil(cy-r), 0))
	yEnd := int(math.Min(math.Floor(cy+r), maxY))
	xStart := int(math.Max(math.Ceil(cx-r), 0))
	xEnd := int(math.Min(math.Floor(cx+r), maxX))

	for y := yStart; y <= yEnd; y++ {
		dy := float64(y) - cy
		rowOffset := y * width
		for x := xStart; x <= xEnd; x++ {
			dx := float64(x) - cx
			if dx*dx+dy*dy <= r2 {
				fn(rowOffset + x)
			}
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ReadApertures measures the target and every reference on every frame.
// The returned series are index-aligned with frames. Frames are measured
// concurrently by up to workers goroutines; workers <= 1 runs sequentially.
func ReadApertures(ctx context.Context, frames []Frame, target Aperture, refs []Aperture, workers int) ([]float64, [][]float64, error) {
	targetSeries := make([]float64, len(frames))
	refSeries := make([][]float64, len(refs))
	for r := range refs {
		refSeries[r] = make([]float64, len(frames))
	}

	if err := checkDimensions(frames); err != nil {
		return nil, nil, err
	}

	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range frames {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each goroutine owns index i of every series.
			targetSeries[i] = Measure(frames[i].Pixels, target)
			for r, ref := range refs {
				refSeries[r][i] = Measure(frames[i].Pixels, ref)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("reading apertures: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading apertures: %w", err)
	}
	return targetSeries, refSeries, nil
}

func checkDimensions(frames []Frame) error {
	for i := 1; i < len(frames); i++ {
		if frames[i].Pixels.Rows() != frames[0].Pixels.Rows() || frames[i].Pixels.Cols() != frames[0].Pixels.Cols() {
			return fmt.Errorf("%w: frame %d is %dx%d, frame 0 is %dx%d", ErrFrameDimensions, i,
				frames[i].Pixels.Cols(), frames[i].Pixels.Rows(), frames[0].Pixels.Cols(), frames[0].Pixels.Rows())
		}
	}
	return nil
}
