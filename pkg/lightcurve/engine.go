package lightcurve

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Stage is the lifecycle position of an Engine.
type Stage int

const (
	StageConfigured Stage = iota
	StagePhotometered
	StageDifferentiated
)

func (s Stage) String() string {
	switch s {
	case StageConfigured:
		return "configured"
	case StagePhotometered:
		return "photometered"
	case StageDifferentiated:
		return "differentiated"
	default:
		return "unknown"
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of frames measured concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Engine owns the aperture configuration of one observing session and the
// series derived from it. Changing an aperture or the frames drops the
// affected series; magnitudes can only be computed from current photometry.
type Engine struct {
	mu      sync.RWMutex
	log     *slog.Logger
	workers int

	frames     []Frame
	target     *Aperture
	references []Aperture

	targetLum []float64
	refLum    [][]float64
	measured  bool

	targetMag []Magnitude
	refMag    [][]Magnitude
	method    Method
}

// New creates an Engine over an ordered frame sequence.
func New(frames []Frame, opts ...Option) *Engine {
	e := &Engine{
		log:     slog.Default(),
		workers: runtime.NumCPU(),
		frames:  frames,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetFrames replaces the frame sequence and drops every computed series.
func (e *Engine) SetFrames(frames []Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = frames
	e.targetLum = nil
	e.refLum = nil
	e.measured = false
	e.clearMagnitudes()
}

// SetTarget configures the target aperture.
func (e *Engine) SetTarget(center Point2d, radius int, name string) error {
	a, err := NewAperture(center, radius, RoleTarget, name)
	if err != nil {
		return fmt.Errorf("setting target: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = &a
	e.targetLum = nil
	e.measured = false
	e.clearMagnitudes()
	return nil
}

// SetReference configures one reference aperture per center, all sharing
// radius. names may be nil; otherwise it must match centers element-wise.
func (e *Engine) SetReference(centers []Point2d, radius int, names []string) error {
	if len(centers) == 0 {
		return fmt.Errorf("setting references: %w: at least one reference position is required", ErrInvalidConfig)
	}
	if names != nil && len(names) != len(centers) {
		return fmt.Errorf("setting references: %w: %d names for %d positions", ErrInvalidConfig, len(names), len(centers))
	}

	refs := make([]Aperture, len(centers))
	for i, c := range centers {
		name := ""
		if names != nil {
			name = names[i]
		}
		a, err := NewAperture(c, radius, RoleReference, name)
		if err != nil {
			return fmt.Errorf("setting references: %w", err)
		}
		refs[i] = a
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.references = refs
	e.refLum = nil
	e.measured = false
	e.clearMagnitudes()
	return nil
}

// ReadApertures measures the target and every reference on every frame,
// replacing any previous luminosity series.
func (e *Engine) ReadApertures(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target == nil {
		return fmt.Errorf("reading apertures: %w", ErrNoTarget)
	}

	start := time.Now()
	targetLum, refLum, err := ReadApertures(ctx, e.frames, *e.target, e.references, e.workers)
	if err != nil {
		return err
	}

	e.targetLum = targetLum
	e.refLum = refLum
	e.measured = true
	e.clearMagnitudes()

	e.log.Debug("aperture photometry complete",
		"frames", len(e.frames),
		"references", len(e.references),
		"workers", e.workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// DifferentialMagnitude computes magnitude series from the current
// photometry. An empty method selects average. Previously computed
// magnitudes survive a failed call.
func (e *Engine) DifferentialMagnitude(method Method) error {
	if method == "" {
		method = MethodAverage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := combiner(method); err != nil {
		return fmt.Errorf("differential magnitude: %w", err)
	}
	if !e.measured {
		return fmt.Errorf("differential magnitude: %w", ErrNotMeasured)
	}

	targetMag, refMag, err := DifferentialMagnitude(e.targetLum, e.refLum, method)
	if err != nil {
		return fmt.Errorf("differential magnitude: %w", err)
	}

	for i, m := range targetMag {
		if !m.Defined {
			e.log.Warn("undefined target magnitude",
				"frame", i,
				"target_luminosity", e.targetLum[i],
			)
		}
	}

	e.targetMag = targetMag
	e.refMag = refMag
	e.method = method
	return nil
}

// Stage reports how far the current configuration has been processed.
func (e *Engine) Stage() Stage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch {
	case e.targetMag != nil:
		return StageDifferentiated
	case e.measured:
		return StagePhotometered
	default:
		return StageConfigured
	}
}

// TargetAperture returns the configured target, if any.
func (e *Engine) TargetAperture() (Aperture, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.target == nil {
		return Aperture{}, false
	}
	return *e.target, true
}

// ReferenceApertures returns the configured references in order.
func (e *Engine) ReferenceApertures() []Aperture {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Aperture(nil), e.references...)
}

// Target returns the target luminosity series, or nil if it is not current.
func (e *Engine) Target() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyFloats(e.targetLum)
}

// Reference returns one luminosity series per reference, or nil if not current.
func (e *Engine) Reference() [][]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.refLum == nil {
		return nil
	}
	out := make([][]float64, len(e.refLum))
	for i, s := range e.refLum {
		out[i] = copyFloats(s)
	}
	return out
}

// TargetMagnitude returns the target magnitude series, or nil if not current.
func (e *Engine) TargetMagnitude() []Magnitude {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyMagnitudes(e.targetMag)
}

// ReferenceMagnitude returns one magnitude series per reference, or nil if not current.
func (e *Engine) ReferenceMagnitude() [][]Magnitude {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.refMag == nil {
		return nil
	}
	out := make([][]Magnitude, len(e.refMag))
	for i, s := range e.refMag {
		out[i] = copyMagnitudes(s)
	}
	return out
}

// Times returns the Julian date of each frame, and false if any frame lacks one.
func (e *Engine) Times() ([]float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return frameTimes(e.frames)
}

// Curve snapshots the differentiated state.
func (e *Engine) Curve() (*Curve, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.targetMag == nil {
		return nil, fmt.Errorf("building curve: %w", ErrNotMeasured)
	}

	times, hasTimes := frameTimes(e.frames)
	c := &Curve{
		Method:              e.method,
		Target:              *e.target,
		References:          append([]Aperture(nil), e.references...),
		Times:               times,
		HasTimes:            hasTimes,
		TargetLuminosity:    copyFloats(e.targetLum),
		TargetMagnitude:     copyMagnitudes(e.targetMag),
		ReferenceLuminosity: make([][]float64, len(e.refLum)),
		ReferenceMagnitude:  make([][]Magnitude, len(e.refMag)),
	}
	for i := range e.refLum {
		c.ReferenceLuminosity[i] = copyFloats(e.refLum[i])
		c.ReferenceMagnitude[i] = copyMagnitudes(e.refMag[i])
	}
	return c, nil
}

func (e *Engine) clearMagnitudes() {
	e.targetMag = nil
	e.refMag = nil
}

func frameTimes(frames []Frame) ([]float64, bool) {
	times := make([]float64, len(frames))
	all := true
	for i, f := range frames {
		times[i] = f.Time
		all = all && f.HasTime
	}
	return times, all
}

func copyFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append(make([]float64, 0, len(s)), s...)
}

func copyMagnitudes(s []Magnitude) []Magnitude {
	if s == nil {
		return nil
	}
	return append(make([]Magnitude, 0, len(s)), s...)
}
