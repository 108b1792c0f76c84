package lightcurve

import (
	"fmt"
	"math"
)

// DifferentialMagnitude converts luminosity series into magnitudes relative
// to the combined reference luminosity of each frame:
//
//	m = -2.5 * log10(L / R)
//
// With a single reference R is that reference, so its own magnitudes are all
// zero. A frame where L or R is not strictly positive yields an undefined
// Magnitude at that index only.
func DifferentialMagnitude(target []float64, refs [][]float64, method Method) ([]Magnitude, [][]Magnitude, error) {
	combine, err := combiner(method)
	if err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one reference series is required", ErrInvalidConfig)
	}
	for r, series := range refs {
		if len(series) != len(target) {
			return nil, nil, fmt.Errorf("%w: reference %d has %d values, target has %d",
				ErrNotMeasured, r, len(series), len(target))
		}
	}

	targetMag := make([]Magnitude, len(target))
	refMag := make([][]Magnitude, len(refs))
	for r := range refs {
		refMag[r] = make([]Magnitude, len(target))
	}

	values := make([]float64, len(refs))
	for i := range target {
		for r := range refs {
			values[r] = refs[r][i]
		}
		combined := combine(values)

		targetMag[i] = magnitude(target[i], combined)
		for r := range refs {
			refMag[r][i] = magnitude(refs[r][i], combined)
		}
	}
	return targetMag, refMag, nil
}

func combiner(method Method) (func([]float64) float64, error) {
	switch method {
	case MethodAverage:
		return mean, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, string(method))
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func magnitude(luminosity, reference float64) Magnitude {
	if !(luminosity > 0) || !(reference > 0) || math.IsInf(luminosity, 0) || math.IsInf(reference, 0) {
		return Magnitude{}
	}
	return Magnitude{Value: -2.5 * math.Log10(luminosity/reference), Defined: true}
}
