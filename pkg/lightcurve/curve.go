package lightcurve

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Curve is an immutable snapshot of a differentiated light curve. All series
// are index-aligned with the frame sequence.
type Curve struct {
	Method     Method
	Target     Aperture
	References []Aperture

	// Times holds the Julian date of each frame; HasTimes is false when
	// at least one frame carried no timestamp.
	Times    []float64
	HasTimes bool

	TargetLuminosity    []float64
	ReferenceLuminosity [][]float64
	TargetMagnitude     []Magnitude
	ReferenceMagnitude  [][]Magnitude
}

// Len returns the number of frames in the curve.
func (c *Curve) Len() int { return len(c.TargetLuminosity) }

// WriteCSV writes one row per frame: index, time, target luminosity and
// magnitude, then luminosity and magnitude of every reference. Undefined
// magnitudes and missing times are written as empty cells.
func WriteCSV(w io.Writer, c *Curve) error {
	cw := csv.NewWriter(w)

	header := []string{"frame", "jd", "target_lum", "target_mag"}
	for i, ref := range c.References {
		label := ref.Label(i)
		header = append(header, label+"_lum", label+"_mag")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := 0; i < c.Len(); i++ {
		row := []string{strconv.Itoa(i), "", formatFloat(c.TargetLuminosity[i]), formatMagnitude(c.TargetMagnitude[i])}
		if c.HasTimes {
			row[1] = strconv.FormatFloat(c.Times[i], 'f', 6, 64)
		}
		for r := range c.References {
			row = append(row, formatFloat(c.ReferenceLuminosity[r][i]), formatMagnitude(c.ReferenceMagnitude[r][i]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatMagnitude(m Magnitude) string {
	if !m.Defined {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', 6, 64)
}
