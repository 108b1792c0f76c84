package lightcurve

import (
	"bytes"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderChart(t *testing.T) {
	img, err := RenderChart(sampleCurve(), 640, 480)
	require.NoError(t, err)
	require.Equal(t, 640, img.Bounds().Dx())
	require.Equal(t, 480, img.Bounds().Dy())

	// At least one pixel of the target series colour must be drawn.
	found := false
	for i := 0; i < len(img.Pix) && !found; i += 4 {
		found = img.Pix[i] == seriesColors[0].R && img.Pix[i+1] == seriesColors[0].G && img.Pix[i+2] == seriesColors[0].B
	}
	require.True(t, found)
}

func TestRenderChartMinimumSize(t *testing.T) {
	img, err := RenderChart(sampleCurve(), 10, 10)
	require.NoError(t, err)
	require.Equal(t, chartMinWidth, img.Bounds().Dx())
	require.Equal(t, chartMinHeight, img.Bounds().Dy())
}

func TestRenderChartAllUndefined(t *testing.T) {
	c := sampleCurve()
	c.TargetMagnitude = []Magnitude{{}, {}}
	c.ReferenceMagnitude = [][]Magnitude{{{}, {}}, {{}, {}}}
	_, err := RenderChart(c, 400, 300)
	require.NoError(t, err)

	_, err = RenderChart(nil, 400, 300)
	require.Error(t, err)
}

func TestRenderChartBytesAndFile(t *testing.T) {
	data, err := RenderChartBytes(sampleCurve(), 400, 300)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 400, cfg.Width)

	path := filepath.Join(t.TempDir(), "curve.jpg")
	require.NoError(t, RenderChartFile(sampleCurve(), 400, 300, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}
