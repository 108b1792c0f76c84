package lightcurve

import "math"

const (
	defaultClippingMultiplier = 4.0
	defaultAllowedError       = 0.00001
	defaultMaxIterations      = 5
)

// BackgroundEstimate is the sky level and noise of one frame. It is a
// diagnostic only; luminosities are never background subtracted.
type BackgroundEstimate struct {
	Mean          float64
	Sigma         float64
	NumIterations int
}

// EstimateBackground runs EstimateBackgroundWith using the default clipping
// settings.
func EstimateBackground(frame Mat) BackgroundEstimate {
	return EstimateBackgroundWith(frame, defaultClippingMultiplier, defaultAllowedError, defaultMaxIterations)
}

// EstimateBackgroundWith performs iterative kappa-sigma clipping: pixels
// brighter than mean + clippingMultiplier*sigma are dropped until sigma
// changes by no more than allowedError or maxIterations is reached. Zero
// pixels are ignored after the first pass.
func EstimateBackgroundWith(frame Mat, clippingMultiplier, allowedError float64, maxIterations int) BackgroundEstimate {
	data := frame.DataFloat32()
	if len(data) == 0 {
		return BackgroundEstimate{}
	}

	threshold := math.Inf(1)
	lastSigma := 0.0
	lastMean := 0.0
	numIterations := 0

	for numIterations < maxIterations {
		meanVal, sigmaVal := clippedMeanStdDev(data, numIterations > 0, threshold)

		numIterations++
		if numIterations > 1 && math.Abs(sigmaVal-lastSigma) <= allowedError {
			lastSigma = sigmaVal
			lastMean = meanVal
			break
		}
		threshold = meanVal + clippingMultiplier*sigmaVal
		lastSigma = sigmaVal
		lastMean = meanVal
	}

	return BackgroundEstimate{
		Mean:          lastMean,
		Sigma:         lastSigma,
		NumIterations: numIterations,
	}
}

// clippedMeanStdDev computes mean and stddev of the pixels up to threshold.
// When clip is set, zero pixels are excluded as well.
func clippedMeanStdDev(data []float32, clip bool, threshold float64) (float64, float64) {
	var sum float64
	var count int64
	for _, v := range data {
		p := float64(v)
		if clip && (p <= 0 || p > threshold) {
			continue
		}
		sum += p
		count++
	}
	if count == 0 {
		return 0, 0
	}
	mean := sum / float64(count)

	var sse float64
	for _, v := range data {
		p := float64(v)
		if clip && (p <= 0 || p > threshold) {
			continue
		}
		diff := p - mean
		sse += diff * diff
	}
	return mean, math.Sqrt(sse / float64(count))
}

// MedianBackground returns the median sky level and noise over frames.
func MedianBackground(estimates []BackgroundEstimate) (float64, float64) {
	means := make([]float64, len(estimates))
	sigmas := make([]float64, len(estimates))
	for i, e := range estimates {
		means[i] = e.Mean
		sigmas[i] = e.Sigma
	}
	return medianFloat64(means), medianFloat64(sigmas)
}
