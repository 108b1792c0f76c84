package lightcurve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig reports an aperture or method setting that was rejected.
	// Nothing from the rejected call is committed.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownMethod is returned for a reference combination method other than average.
	ErrUnknownMethod = fmt.Errorf("%w: unknown combination method", ErrInvalidConfig)
	// ErrNoTarget is returned when photometry is requested before a target aperture is set.
	ErrNoTarget = errors.New("no target aperture configured")
	// ErrNotMeasured is returned when magnitudes are requested without current photometry.
	ErrNotMeasured = errors.New("aperture photometry has not been performed for the current apertures")
	// ErrFrameDimensions is returned when frames in one sequence differ in size.
	ErrFrameDimensions = errors.New("frame dimensions differ")
)

// Role distinguishes the variable star from the comparison stars.
type Role int

const (
	RoleTarget Role = iota
	RoleReference
)

func (r Role) String() string {
	switch r {
	case RoleTarget:
		return "target"
	case RoleReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Point2d represents a 2D point with float64 coordinates.
type Point2d struct {
	X, Y float64
}

// Aperture is a circular measurement footprint. Names are for display only;
// references are identified by their position in the reference list.
type Aperture struct {
	Center Point2d
	Radius int
	Role   Role
	Name   string
}

// NewAperture validates the radius and returns the aperture.
func NewAperture(center Point2d, radius int, role Role, name string) (Aperture, error) {
	if radius <= 0 {
		return Aperture{}, fmt.Errorf("%w: aperture radius must be positive, got %d", ErrInvalidConfig, radius)
	}
	return Aperture{Center: center, Radius: radius, Role: role, Name: name}, nil
}

// Label returns the name, or a positional fallback for unnamed apertures.
func (a Aperture) Label(index int) string {
	if a.Name != "" {
		return a.Name
	}
	if a.Role == RoleTarget {
		return "target"
	}
	return fmt.Sprintf("ref%d", index+1)
}

func (a Aperture) String() string {
	return fmt.Sprintf("{Role=%s, Name=%q, Center=(%.2f,%.2f), Radius=%d}", a.Role, a.Name, a.Center.X, a.Center.Y, a.Radius)
}

// Method selects how reference luminosities are combined per frame.
type Method string

const (
	// MethodAverage combines references by arithmetic mean.
	MethodAverage Method = "average"
)

// ParseMethod maps a method name to a Method. An empty name selects average.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(MethodAverage):
		return MethodAverage, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMethod, name)
	}
}

// Magnitude is one differential magnitude. Defined is false when either
// luminosity in the ratio was not strictly positive.
type Magnitude struct {
	Value   float64
	Defined bool
}

func (m Magnitude) String() string {
	if !m.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", m.Value)
}
