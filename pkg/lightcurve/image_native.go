//go:build !purego && !js

package lightcurve

import (
	"fmt"

	"gocv.io/x/gocv"
)

// LoadImage reads a PNG, JPEG or TIFF frame as single-channel intensities
// at the file's native bit depth.
func LoadImage(path string) (Mat, error) {
	src := gocv.IMRead(path, gocv.IMReadGrayScale|gocv.IMReadAnyDepth)
	if src.Empty() {
		return Mat{}, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()
	return wrapFloatMat(src), nil
}
