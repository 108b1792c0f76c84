//go:build !purego && !js

package lightcurve

import (
	"gocv.io/x/gocv"
)

// Mat wraps gocv.Mat for the native OpenCV backend.
type Mat struct {
	m gocv.Mat
}

func NewMat() Mat                      { return Mat{m: gocv.NewMat()} }
func NewMatWithSize(rows, cols int) Mat { return Mat{m: gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)} }
func (mat Mat) Rows() int              { return mat.m.Rows() }
func (mat Mat) Cols() int              { return mat.m.Cols() }
func (mat Mat) Empty() bool            { return mat.m.Empty() }
func (mat Mat) Clone() Mat             { return Mat{m: mat.m.Clone()} }
func (mat *Mat) Close()                { mat.m.Close() }

// DataFloat32 returns the pixel buffer backing the Mat. The slice aliases
// OpenCV memory and is only valid until Close.
func (mat Mat) DataFloat32() []float32 {
	if mat.m.Empty() {
		return nil
	}
	data, err := mat.m.DataPtrFloat32()
	if err != nil {
		return nil
	}
	return data
}

// NewMatFromFloat32 copies row-major pixel data into a new CV_32F Mat.
func NewMatFromFloat32(rows, cols int, data []float32) Mat {
	mat := NewMatWithSize(rows, cols)
	copy(mat.DataFloat32(), data[:rows*cols])
	return mat
}

// wrapFloatMat converts any single-channel gocv Mat into a CV_32F Mat.
// The source is left untouched.
func wrapFloatMat(src gocv.Mat) Mat {
	dst := gocv.NewMat()
	src.ConvertTo(&dst, gocv.MatTypeCV32F)
	return Mat{m: dst}
}
