package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"lightcurve/internal/config"
	"lightcurve/internal/store"
	"lightcurve/pkg/lightcurve"
)

// sessionResult is what one photometry session produced.
type sessionResult struct {
	Curve      *lightcurve.Curve
	Background []lightcurve.BackgroundEstimate
	RunID      int64
	Duration   time.Duration
}

// runSession loads the frames named by cfg, measures every aperture,
// computes magnitudes and writes the configured outputs. An unnamed target
// takes the OBJECT header of the first frame.
func runSession(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sessionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, err := lightcurve.ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	source := lightcurve.NewFileSource(cfg.Frames, cfg.Debayer)
	frames, err := source.Frames(ctx)
	if err != nil {
		return nil, err
	}
	defer lightcurve.CloseFrames(frames)
	targetName := cfg.Target.Name
	if len(frames) > 0 {
		first := frames[0]
		log.Info("frames loaded", "source", cfg.Frames, "count", len(frames),
			"object", first.Object, "filter", first.Filter, "exposure", first.Exposure)
		if targetName == "" {
			targetName = first.Object
		}
	} else {
		log.Info("frames loaded", "source", cfg.Frames, "count", 0)
	}

	engine := lightcurve.New(frames, lightcurve.WithWorkers(cfg.Workers), lightcurve.WithLogger(log))
	if err := engine.SetTarget(cfg.TargetCenter(), cfg.Radius, targetName); err != nil {
		return nil, err
	}
	centers, names := cfg.ReferenceCenters()
	if err := engine.SetReference(centers, cfg.Radius, names); err != nil {
		return nil, err
	}
	if err := engine.ReadApertures(ctx); err != nil {
		return nil, err
	}
	if err := engine.DifferentialMagnitude(method); err != nil {
		return nil, err
	}
	curve, err := engine.Curve()
	if err != nil {
		return nil, err
	}

	res := &sessionResult{Curve: curve, Duration: time.Since(start)}
	res.Background = make([]lightcurve.BackgroundEstimate, len(frames))
	for i, f := range frames {
		res.Background[i] = lightcurve.EstimateBackground(f.Pixels)
	}

	if cfg.Output.CSV != "" {
		if err := writeCSVFile(cfg.Output.CSV, curve); err != nil {
			return nil, err
		}
		log.Info("csv written", "path", cfg.Output.CSV)
	}
	if cfg.Output.Chart != "" {
		if err := lightcurve.RenderChartFile(curve, cfg.Output.ChartWidth, cfg.Output.ChartHeight, cfg.Output.Chart); err != nil {
			return nil, err
		}
		log.Info("chart written", "path", cfg.Output.Chart)
	}
	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		id, err := st.SaveCurve(ctx, cfg.Store.Label, curve)
		if err != nil {
			return nil, err
		}
		res.RunID = id
		log.Info("run stored", "db", cfg.Store.Path, "run_id", id)
	}
	return res, nil
}

func writeCSVFile(path string, c *lightcurve.Curve) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := lightcurve.WriteCSV(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printReport writes a human-readable summary of a curve.
func printReport(w io.Writer, c *lightcurve.Curve, background []lightcurve.BackgroundEstimate, elapsed time.Duration) {
	fmt.Fprintln(w)
	if elapsed > 0 {
		fmt.Fprintf(w, "=== Light Curve (%.1fs) ===\n", elapsed.Seconds())
	} else {
		fmt.Fprintln(w, "=== Light Curve ===")
	}
	fmt.Fprintf(w, "  Frames:      %d\n", c.Len())
	fmt.Fprintf(w, "  Method:      %s of %d reference(s)\n", c.Method, len(c.References))
	if c.HasTimes && c.Len() > 0 {
		fmt.Fprintf(w, "  JD range:    %.5f .. %.5f\n", c.Times[0], c.Times[c.Len()-1])
	}
	fmt.Fprintf(w, "  Radius:      %d px\n", c.Target.Radius)
	if len(background) > 0 {
		sky, noise := lightcurve.MedianBackground(background)
		fmt.Fprintf(w, "  Sky (median): %.2f +/- %.2f\n", sky, noise)
	}
	fmt.Fprintln(w)

	printSeries(w, c.Target.Label(0), c.Target, lightcurve.Summarize(c.TargetMagnitude))
	for i, ref := range c.References {
		printSeries(w, ref.Label(i), ref, lightcurve.Summarize(c.ReferenceMagnitude[i]))
	}
	fmt.Fprintln(w, "==============================")
}

func printSeries(w io.Writer, label string, a lightcurve.Aperture, s lightcurve.SeriesSummary) {
	defined := s.Count - s.Undefined
	if defined == 0 {
		fmt.Fprintf(w, "  %-10s (%.1f,%.1f)  no defined magnitudes\n", label, a.Center.X, a.Center.Y)
		return
	}
	fmt.Fprintf(w, "  %-10s (%.1f,%.1f)  median=%+.4f  scatter=%.4f  amp=%.4f  n=%d",
		label, a.Center.X, a.Center.Y, s.Median, s.Scatter, s.Amplitude(), defined)
	if s.Undefined > 0 {
		fmt.Fprintf(w, "  undefined=%d", s.Undefined)
	}
	fmt.Fprintln(w)
}

// parseStar accepts "x,y" or "name=x,y".
func parseStar(s string) (config.Star, error) {
	var star config.Star
	coords := s
	if name, rest, ok := strings.Cut(s, "="); ok {
		star.Name = strings.TrimSpace(name)
		coords = rest
	}
	xs, ys, ok := strings.Cut(coords, ",")
	if !ok {
		return star, fmt.Errorf("%w: star position %q must be x,y", lightcurve.ErrInvalidConfig, s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return star, fmt.Errorf("%w: star x in %q: %v", lightcurve.ErrInvalidConfig, s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return star, fmt.Errorf("%w: star y in %q: %v", lightcurve.ErrInvalidConfig, s, err)
	}
	star.X, star.Y = x, y
	return star, nil
}
