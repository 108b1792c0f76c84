package lightcurve

// DebayerRGGB interpolates a raw RGGB Bayer mosaic bilinearly and returns the
// luminance (R + G + B) / 3 of every pixel, keeping the input intensity scale.
//
//	(even row, even col) = R
//	(even row, odd  col) = G
//	(odd  row, even col) = G
//	(odd  row, odd  col) = B
//
// Neighbours outside the frame are replicated from the nearest edge pixel.
func DebayerRGGB(raw []float32, width, height int) []float32 {
	out := make([]float32, width*height)

	px := func(x, y int) float64 {
		x = clampInt(x, 0, width-1)
		y = clampInt(y, 0, height-1)
		return float64(raw[y*width+x])
	}
	cross := func(x, y int) float64 {
		return (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
	}
	diagonal := func(x, y int) float64 {
		return (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
	}
	horizontal := func(x, y int) float64 { return (px(x-1, y) + px(x+1, y)) / 2 }
	vertical := func(x, y int) float64 { return (px(x, y-1) + px(x, y+1)) / 2 }

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b float64
			switch {
			case y%2 == 0 && x%2 == 0:
				r, g, b = px(x, y), cross(x, y), diagonal(x, y)
			case y%2 == 0:
				r, g, b = horizontal(x, y), px(x, y), vertical(x, y)
			case x%2 == 0:
				r, g, b = vertical(x, y), px(x, y), horizontal(x, y)
			default:
				r, g, b = diagonal(x, y), cross(x, y), px(x, y)
			}
			out[y*width+x] = float32((r + g + b) / 3)
		}
	}
	return out
}

// DebayerToMat converts raw Bayer pixels to a luminance Mat.
func DebayerToMat(raw []float32, width, height int) Mat {
	return NewMatFromFloat32(height, width, DebayerRGGB(raw, width, height))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
