package lightcurve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebayerRGGBUniform(t *testing.T) {
	out := DebayerRGGB(uniformPixels(6, 4, 5), 6, 4)
	require.Len(t, out, 24)
	for _, v := range out {
		require.InDelta(t, 5.0, v, 1e-6)
	}
}

func TestDebayerRGGBChannelMean(t *testing.T) {
	// R=30, G=60, B=90 everywhere in the mosaic. Edge pixels replicate
	// neighbours of the wrong colour, so only the interior is checked.
	const w, h = 6, 6
	raw := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case y%2 == 0 && x%2 == 0:
				raw[y*w+x] = 30
			case y%2 == 1 && x%2 == 1:
				raw[y*w+x] = 90
			default:
				raw[y*w+x] = 60
			}
		}
	}
	out := DebayerRGGB(raw, w, h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			require.InDelta(t, 60.0, out[y*w+x], 1e-5, "pixel (%d,%d)", x, y)
		}
	}

	mat := DebayerToMat(raw, w, h)
	defer mat.Close()
	require.Equal(t, h, mat.Rows())
	require.Equal(t, w, mat.Cols())
}
