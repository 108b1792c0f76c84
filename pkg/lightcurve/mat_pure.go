//go:build purego || js

package lightcurve

// Mat is a pure Go 2D float32 matrix.
type Mat struct {
	data  []float32
	rows  int
	cols  int
	owned bool
}

func NewMat() Mat { return Mat{} }

func NewMatWithSize(rows, cols int) Mat {
	return Mat{
		data:  make([]float32, rows*cols),
		rows:  rows,
		cols:  cols,
		owned: true,
	}
}

// NewMatFromFloat32 copies row-major pixel data into a new Mat.
func NewMatFromFloat32(rows, cols int, data []float32) Mat {
	m := NewMatWithSize(rows, cols)
	copy(m.data, data[:rows*cols])
	return m
}

func (m Mat) Rows() int   { return m.rows }
func (m Mat) Cols() int   { return m.cols }
func (m Mat) Empty() bool { return m.data == nil || m.rows == 0 || m.cols == 0 }

func (m Mat) Clone() Mat {
	newData := make([]float32, m.rows*m.cols)
	copy(newData, m.data)
	return Mat{data: newData, rows: m.rows, cols: m.cols, owned: true}
}

func (m *Mat) Close() {
	if m.owned {
		m.data = nil
	}
	m.rows = 0
	m.cols = 0
}

// DataFloat32 returns the backing float32 slice.
func (m Mat) DataFloat32() []float32 {
	return m.data
}
