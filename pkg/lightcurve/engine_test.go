package lightcurve

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scenarioFrames returns n frames with a single-pixel source of flux 110 at
// (10,10) and single-pixel sources of flux 10 and 30 at (30,10) and (10,30).
func scenarioFrames(t *testing.T, n int) []Frame {
	t.Helper()
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = pointFrame(t, i, 40, 40, 0, map[[2]int]float32{
			{10, 10}: 110,
			{30, 10}: 10,
			{10, 30}: 30,
		})
	}
	return frames
}

func newScenarioEngine(t *testing.T, frames []Frame, refs ...Point2d) *Engine {
	t.Helper()
	e := New(frames, WithWorkers(2))
	require.NoError(t, e.SetTarget(Point2d{X: 10, Y: 10}, 2, "var"))
	if len(refs) > 0 {
		require.NoError(t, e.SetReference(refs, 2, nil))
	}
	return e
}

func TestEngineSingleReferenceScenario(t *testing.T) {
	e := newScenarioEngine(t, scenarioFrames(t, 3), Point2d{X: 30, Y: 10})
	ctx := context.Background()

	require.Equal(t, StageConfigured, e.Stage())
	require.NoError(t, e.ReadApertures(ctx))
	require.Equal(t, StagePhotometered, e.Stage())
	require.Equal(t, []float64{110, 110, 110}, e.Target())
	require.Equal(t, [][]float64{{10, 10, 10}}, e.Reference())

	require.NoError(t, e.DifferentialMagnitude(MethodAverage))
	require.Equal(t, StageDifferentiated, e.Stage())

	want := -2.5 * math.Log10(11)
	requireMagnitudes(t, []float64{want, want, want}, e.TargetMagnitude())
	refMag := e.ReferenceMagnitude()
	require.Len(t, refMag, 1)
	requireMagnitudes(t, []float64{0, 0, 0}, refMag[0])
}

func TestEngineScenarioOnUniformBackground(t *testing.T) {
	// Sky of 10 everywhere plus a point source of 100 under the target.
	frames := make([]Frame, 3)
	for i := range frames {
		frames[i] = pointFrame(t, i, 40, 40, 10, map[[2]int]float32{{0, 5}: 100, {20, 20}: 100})
	}

	t.Run("single pixel footprint", func(t *testing.T) {
		// Half the aperture is off the left edge, leaving pixel (0,y).
		target := Point2d{X: -0.9, Y: 5}
		ref := Point2d{X: -0.9, Y: 30}
		require.Equal(t, 1, Footprint(Aperture{Center: target, Radius: 1}, 40, 40))

		e := New(frames)
		require.NoError(t, e.SetTarget(target, 1, ""))
		require.NoError(t, e.SetReference([]Point2d{ref}, 1, nil))
		require.NoError(t, e.ReadApertures(context.Background()))
		require.Equal(t, []float64{110, 110, 110}, e.Target())
		require.Equal(t, [][]float64{{10, 10, 10}}, e.Reference())

		require.NoError(t, e.DifferentialMagnitude(MethodAverage))
		want := -2.5 * math.Log10(110.0/10.0)
		requireMagnitudes(t, []float64{want, want, want}, e.TargetMagnitude())
		requireMagnitudes(t, []float64{0, 0, 0}, e.ReferenceMagnitude()[0])
	})

	t.Run("interior aperture", func(t *testing.T) {
		e := New(frames)
		require.NoError(t, e.SetTarget(Point2d{X: 20, Y: 20}, 3, ""))
		require.NoError(t, e.SetReference([]Point2d{{X: 30, Y: 30}}, 3, nil))
		require.NoError(t, e.ReadApertures(context.Background()))

		sky := 10.0 * 29
		require.InDelta(t, sky+100, e.Target()[0], 1e-9)
		require.InDelta(t, sky, e.Reference()[0][0], 1e-9)

		require.NoError(t, e.DifferentialMagnitude(MethodAverage))
		want := -2.5 * math.Log10((sky+100)/sky)
		requireMagnitudes(t, []float64{want, want, want}, e.TargetMagnitude())
	})
}

func TestEngineTwoReferenceScenario(t *testing.T) {
	e := newScenarioEngine(t, scenarioFrames(t, 2), Point2d{X: 30, Y: 10}, Point2d{X: 10, Y: 30})
	require.NoError(t, e.ReadApertures(context.Background()))
	require.NoError(t, e.DifferentialMagnitude(MethodAverage))

	target := e.TargetMagnitude()
	refMag := e.ReferenceMagnitude()
	for i := range target {
		require.InDelta(t, -2.5*math.Log10(110.0/20.0), target[i].Value, 1e-9)
		require.InDelta(t, -2.5*math.Log10(10.0/20.0), refMag[0][i].Value, 1e-9)
		require.InDelta(t, -2.5*math.Log10(30.0/20.0), refMag[1][i].Value, 1e-9)
	}
}

func TestEngineTargetOutsideFrame(t *testing.T) {
	e := New(scenarioFrames(t, 3))
	require.NoError(t, e.SetTarget(Point2d{X: -100, Y: -100}, 3, ""))
	require.NoError(t, e.SetReference([]Point2d{{X: 30, Y: 10}}, 2, nil))
	require.NoError(t, e.ReadApertures(context.Background()))
	require.Equal(t, []float64{0, 0, 0}, e.Target())

	require.NoError(t, e.DifferentialMagnitude(MethodAverage))
	for _, m := range e.TargetMagnitude() {
		require.False(t, m.Defined)
	}
	requireMagnitudes(t, []float64{0, 0, 0}, e.ReferenceMagnitude()[0])
}

func TestEngineSequencingErrors(t *testing.T) {
	t.Run("differential before photometry", func(t *testing.T) {
		e := newScenarioEngine(t, scenarioFrames(t, 1), Point2d{X: 30, Y: 10})
		require.ErrorIs(t, e.DifferentialMagnitude(MethodAverage), ErrNotMeasured)
		require.Nil(t, e.TargetMagnitude())
	})
	t.Run("photometry without target", func(t *testing.T) {
		e := New(scenarioFrames(t, 1))
		require.ErrorIs(t, e.ReadApertures(context.Background()), ErrNoTarget)
	})
	t.Run("curve before differential", func(t *testing.T) {
		e := newScenarioEngine(t, scenarioFrames(t, 1), Point2d{X: 30, Y: 10})
		require.NoError(t, e.ReadApertures(context.Background()))
		_, err := e.Curve()
		require.ErrorIs(t, err, ErrNotMeasured)
	})
	t.Run("differential without references", func(t *testing.T) {
		e := newScenarioEngine(t, scenarioFrames(t, 2))
		require.NoError(t, e.ReadApertures(context.Background()))
		require.Empty(t, e.Reference())
		require.ErrorIs(t, e.DifferentialMagnitude(MethodAverage), ErrInvalidConfig)
	})
}

func TestEngineApertureChangeInvalidates(t *testing.T) {
	ctx := context.Background()
	e := newScenarioEngine(t, scenarioFrames(t, 2), Point2d{X: 30, Y: 10})
	require.NoError(t, e.ReadApertures(ctx))
	require.NoError(t, e.DifferentialMagnitude(MethodAverage))

	require.NoError(t, e.SetTarget(Point2d{X: 10, Y: 30}, 2, ""))
	require.Equal(t, StageConfigured, e.Stage())
	require.Nil(t, e.Target())
	require.Nil(t, e.TargetMagnitude())
	require.Nil(t, e.ReferenceMagnitude())
	require.Equal(t, [][]float64{{10, 10}}, e.Reference(), "reference photometry is kept")
	require.ErrorIs(t, e.DifferentialMagnitude(MethodAverage), ErrNotMeasured)

	require.NoError(t, e.ReadApertures(ctx))
	require.Equal(t, []float64{30, 30}, e.Target())

	require.NoError(t, e.SetReference([]Point2d{{X: 10, Y: 10}}, 2, []string{"bright"}))
	require.Nil(t, e.Reference())
	require.Equal(t, []float64{30, 30}, e.Target(), "target photometry is kept")
	require.ErrorIs(t, e.DifferentialMagnitude(MethodAverage), ErrNotMeasured)

	e.SetFrames(scenarioFrames(t, 4))
	require.Nil(t, e.Target())
	require.NoError(t, e.ReadApertures(ctx))
	require.Len(t, e.Target(), 4)
}

func TestEngineRejectsInvalidConfiguration(t *testing.T) {
	ctx := context.Background()
	e := newScenarioEngine(t, scenarioFrames(t, 2), Point2d{X: 30, Y: 10})
	require.NoError(t, e.ReadApertures(ctx))
	require.NoError(t, e.DifferentialMagnitude(MethodAverage))
	before := e.TargetMagnitude()

	cases := []struct {
		name string
		call func() error
	}{
		{"zero target radius", func() error { return e.SetTarget(Point2d{X: 1, Y: 1}, 0, "") }},
		{"negative target radius", func() error { return e.SetTarget(Point2d{X: 1, Y: 1}, -4, "") }},
		{"zero reference radius", func() error { return e.SetReference([]Point2d{{X: 1, Y: 1}}, 0, nil) }},
		{"empty references", func() error { return e.SetReference(nil, 2, nil) }},
		{"names mismatch", func() error {
			return e.SetReference([]Point2d{{X: 1, Y: 1}, {X: 2, Y: 2}}, 2, []string{"only-one"})
		}},
		{"unknown method", func() error { return e.DifferentialMagnitude(Method("median")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.call(), ErrInvalidConfig)
			require.Equal(t, StageDifferentiated, e.Stage())
			require.Equal(t, before, e.TargetMagnitude())
			target, ok := e.TargetAperture()
			require.True(t, ok)
			require.Equal(t, 2, target.Radius)
			require.Len(t, e.ReferenceApertures(), 1)
		})
	}
}

func TestEngineReadAperturesIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newScenarioEngine(t, scenarioFrames(t, 3), Point2d{X: 30, Y: 10}, Point2d{X: 10, Y: 30})

	require.NoError(t, e.ReadApertures(ctx))
	firstTarget, firstRefs := e.Target(), e.Reference()
	require.NoError(t, e.ReadApertures(ctx))
	require.Equal(t, firstTarget, e.Target())
	require.Equal(t, firstRefs, e.Reference())
}

func TestEngineAccessorsReturnCopies(t *testing.T) {
	e := newScenarioEngine(t, scenarioFrames(t, 2), Point2d{X: 30, Y: 10})
	require.NoError(t, e.ReadApertures(context.Background()))

	target := e.Target()
	target[0] = -1
	require.Equal(t, 110.0, e.Target()[0])
}

func TestEngineReferenceNames(t *testing.T) {
	e := New(nil)
	require.NoError(t, e.SetReference([]Point2d{{X: 1, Y: 2}, {X: 3, Y: 4}}, 5, []string{"A", "B"}))
	refs := e.ReferenceApertures()
	require.Len(t, refs, 2)
	require.Equal(t, "A", refs[0].Name)
	require.Equal(t, "B", refs[1].Label(1))
	require.Equal(t, RoleReference, refs[1].Role)
	require.Equal(t, Point2d{X: 3, Y: 4}, refs[1].Center)

	require.NoError(t, e.SetReference([]Point2d{{X: 1, Y: 2}}, 5, nil))
	require.Equal(t, "ref1", e.ReferenceApertures()[0].Label(0))
}

func TestEngineEmptyFrameSequence(t *testing.T) {
	e := newScenarioEngine(t, nil, Point2d{X: 30, Y: 10})
	require.NoError(t, e.ReadApertures(context.Background()))
	require.Empty(t, e.Target())
	require.NoError(t, e.DifferentialMagnitude(MethodAverage))
	require.Empty(t, e.TargetMagnitude())

	c, err := e.Curve()
	require.NoError(t, err)
	require.Zero(t, c.Len())
}

func TestEngineCurveCarriesTimes(t *testing.T) {
	frames := scenarioFrames(t, 3)
	for i := range frames {
		frames[i].Time = 2460000.5 + float64(i)*0.01
		frames[i].HasTime = true
	}
	e := newScenarioEngine(t, frames, Point2d{X: 30, Y: 10})
	require.NoError(t, e.ReadApertures(context.Background()))
	require.NoError(t, e.DifferentialMagnitude(""))

	c, err := e.Curve()
	require.NoError(t, err)
	require.True(t, c.HasTimes)
	require.Equal(t, MethodAverage, c.Method)
	require.InDelta(t, 2460000.52, c.Times[2], 1e-9)
	require.Equal(t, "var", c.Target.Name)
	require.Equal(t, 3, c.Len())

	frames[1].HasTime = false
	e.SetFrames(frames)
	_, hasTimes := e.Times()
	require.False(t, hasTimes)
}

func TestEngineConcurrentUse(t *testing.T) {
	ctx := context.Background()
	e := newScenarioEngine(t, scenarioFrames(t, 4), Point2d{X: 30, Y: 10})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = e.ReadApertures(ctx)
				_ = e.DifferentialMagnitude(MethodAverage)
				return
			}
			_ = e.Target()
			_ = e.TargetMagnitude()
			_ = e.Stage()
		}(i)
	}
	wg.Wait()

	require.NoError(t, e.ReadApertures(ctx))
	require.NoError(t, e.DifferentialMagnitude(MethodAverage))
	require.Len(t, e.TargetMagnitude(), 4)
}
