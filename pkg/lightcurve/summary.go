package lightcurve

import (
	"math"
	"sort"
)

// madToSigma scales a median absolute deviation to a Gaussian standard deviation.
const madToSigma = 1.4826

// SeriesSummary holds robust statistics of one magnitude series.
type SeriesSummary struct {
	Count     int
	Undefined int
	Median    float64
	Scatter   float64 // 1.4826 * MAD
	Min       float64
	Max       float64
}

// Summarize computes statistics over the defined values of a series.
// Statistics are NaN when no value is defined.
func Summarize(series []Magnitude) SeriesSummary {
	s := SeriesSummary{Count: len(series)}
	values := make([]float64, 0, len(series))
	for _, m := range series {
		if !m.Defined {
			s.Undefined++
			continue
		}
		values = append(values, m.Value)
	}
	if len(values) == 0 {
		s.Median, s.Scatter, s.Min, s.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}

	s.Median, s.Scatter = medianMAD(values)
	s.Min, s.Max = values[0], values[0]
	for _, v := range values[1:] {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	return s
}

// Amplitude is the peak-to-peak range of the defined values.
func (s SeriesSummary) Amplitude() float64 {
	return s.Max - s.Min
}

func medianMAD(values []float64) (float64, float64) {
	median := medianFloat64(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	return median, madToSigma * medianFloat64(deviations)
}

func medianFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}
