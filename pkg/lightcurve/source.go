package lightcurve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fitsExtensions are the file suffixes picked up when a source points at a directory.
var fitsExtensions = []string{".fit", ".fits", ".fts"}

// Frame is one observation in a time-ordered sequence.
type Frame struct {
	Index   int
	Path    string
	Time    float64 // Julian date, valid when HasTime
	HasTime bool
	Pixels  Mat

	// Header values, empty or zero when absent.
	Object   string
	Filter   string
	Exposure float64
}

// NewFrame builds an in-memory frame from row-major pixel data.
func NewFrame(index, width, height int, pixels []float32) Frame {
	return Frame{Index: index, Pixels: NewMatFromFloat32(height, width, pixels)}
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.Pixels.Cols() }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.Pixels.Rows() }

// CloseFrames releases the pixel memory of every frame.
func CloseFrames(frames []Frame) {
	for i := range frames {
		frames[i].Pixels.Close()
	}
}

// Source yields an ordered, finite frame sequence.
type Source interface {
	Frames(ctx context.Context) ([]Frame, error)
}

// FileSource loads frames from disk. Path is either a directory, in which
// case every FITS file in it is used, or a glob pattern.
type FileSource struct {
	Path    string
	Debayer bool
}

// NewFileSource creates a FileSource for a directory or glob pattern.
func NewFileSource(path string, debayer bool) *FileSource {
	return &FileSource{Path: path, Debayer: debayer}
}

// Paths resolves the source into a lexically sorted file list.
func (s *FileSource) Paths() ([]string, error) {
	var paths []string
	if strings.ContainsAny(s.Path, "*?[") {
		matches, err := filepath.Glob(s.Path)
		if err != nil {
			return nil, fmt.Errorf("resolving frame pattern %q: %w", s.Path, err)
		}
		paths = matches
	} else {
		info, err := os.Stat(s.Path)
		if err != nil {
			return nil, fmt.Errorf("resolving frame path: %w", err)
		}
		if !info.IsDir() {
			return []string{s.Path}, nil
		}
		entries, err := os.ReadDir(s.Path)
		if err != nil {
			return nil, fmt.Errorf("listing frame directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && isFitsPath(e.Name()) {
				paths = append(paths, filepath.Join(s.Path, e.Name()))
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Frames loads every resolved file in sorted order.
func (s *FileSource) Frames(ctx context.Context) ([]Frame, error) {
	paths, err := s.Paths()
	if err != nil {
		return nil, err
	}
	if err := scanDimensions(paths); err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			CloseFrames(frames)
			return nil, err
		}
		frame, err := s.load(i, p)
		if err != nil {
			CloseFrames(frames)
			return nil, fmt.Errorf("loading frame %s: %w", p, err)
		}
		frames = append(frames, frame)
	}

	if err := checkDimensions(frames); err != nil {
		CloseFrames(frames)
		return nil, err
	}
	return frames, nil
}

func (s *FileSource) load(index int, path string) (Frame, error) {
	if !isFitsPath(path) {
		mat, err := LoadImage(path)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Index: index, Path: path, Pixels: mat}, nil
	}

	fitsData, err := ReadFits(path)
	if err != nil {
		return Frame{}, err
	}
	return fitsFrame(index, path, fitsData, s.Debayer), nil
}

// scanDimensions reads only the FITS headers so mismatched frame sizes are
// reported before any pixel data is decoded.
func scanDimensions(paths []string) error {
	first := -1
	var width, height int
	for i, p := range paths {
		if !isFitsPath(p) {
			continue
		}
		hdr, err := ReadFitsMetadataOnly(p)
		if err != nil {
			return fmt.Errorf("reading header of %s: %w", p, err)
		}
		if first < 0 {
			first, width, height = i, hdr.Width, hdr.Height
			continue
		}
		if hdr.Width != width || hdr.Height != height {
			return fmt.Errorf("%w: frame %d is %dx%d, frame %d is %dx%d", ErrFrameDimensions, i,
				hdr.Width, hdr.Height, first, width, height)
		}
	}
	return nil
}

func fitsFrame(index int, path string, fitsData *FitsImageData, debayer bool) Frame {
	meta := fitsData.Metadata
	frame := Frame{Index: index, Path: path, Object: meta.ObjectName(), Filter: meta.Filter()}
	frame.Time, frame.HasTime = meta.JulianDate()
	frame.Exposure, _ = meta.ExposureTime()
	if debayer {
		frame.Pixels = DebayerToMat(fitsData.Pixels, fitsData.Width, fitsData.Height)
	} else {
		frame.Pixels = fitsData.Mat()
	}
	return frame
}

// BytesSource decodes FITS buffers held in memory, in slice order.
type BytesSource struct {
	Buffers [][]byte
	Debayer bool
}

func (s *BytesSource) Frames(ctx context.Context) ([]Frame, error) {
	frames := make([]Frame, 0, len(s.Buffers))
	for i, buf := range s.Buffers {
		if err := ctx.Err(); err != nil {
			CloseFrames(frames)
			return nil, err
		}
		fitsData, err := ReadFitsFromBytes(buf)
		if err != nil {
			CloseFrames(frames)
			return nil, fmt.Errorf("decoding frame %d: %w", i, err)
		}
		frames = append(frames, fitsFrame(i, "", fitsData, s.Debayer))
	}
	if err := checkDimensions(frames); err != nil {
		CloseFrames(frames)
		return nil, err
	}
	return frames, nil
}

func isFitsPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range fitsExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
