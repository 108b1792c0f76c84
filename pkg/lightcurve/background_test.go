package lightcurve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateBackgroundUniform(t *testing.T) {
	frame := pointFrame(t, 0, 32, 32, 10, nil)
	est := EstimateBackground(frame.Pixels)
	require.InDelta(t, 10.0, est.Mean, 1e-9)
	require.Zero(t, est.Sigma)
	require.Equal(t, 2, est.NumIterations)
}

func TestEstimateBackgroundClipsStars(t *testing.T) {
	px := make([]float32, 64*64)
	for i := range px {
		// Alternating 9/11 gives a background of 10 +/- 1.
		px[i] = 9
		if i%2 == 1 {
			px[i] = 11
		}
	}
	px[100] = 5000
	px[2000] = 8000
	frame := NewFrame(0, 64, 64, px)
	defer frame.Pixels.Close()

	est := EstimateBackground(frame.Pixels)
	require.InDelta(t, 10.0, est.Mean, 0.01)
	require.InDelta(t, 1.0, est.Sigma, 0.01)
}

func TestEstimateBackgroundReportsConvergedMean(t *testing.T) {
	// Zero pixels count on the first pass only, so the second pass moves the
	// mean from 5 to 10 while sigma is within tolerance.
	px := make([]float32, 16*16)
	for i := range px {
		if i%2 == 0 {
			px[i] = 10
		}
	}
	frame := NewFrame(0, 16, 16, px)
	defer frame.Pixels.Close()

	est := EstimateBackgroundWith(frame.Pixels, 4, 100, 5)
	require.Equal(t, 2, est.NumIterations)
	require.InDelta(t, 10.0, est.Mean, 1e-9)
	require.Zero(t, est.Sigma)
}

func TestEstimateBackgroundEmpty(t *testing.T) {
	m := NewMat()
	defer m.Close()
	require.Equal(t, BackgroundEstimate{}, EstimateBackground(m))
}

func TestMedianBackground(t *testing.T) {
	sky, noise := MedianBackground([]BackgroundEstimate{
		{Mean: 10, Sigma: 1},
		{Mean: 30, Sigma: 3},
		{Mean: 20, Sigma: 2},
	})
	require.Equal(t, 20.0, sky)
	require.Equal(t, 2.0, noise)
}
