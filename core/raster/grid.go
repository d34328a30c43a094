// Package raster provides in-memory raster grids and the pixel operations
// the mask pipeline needs: thresholding, band algebra, focal morphology and
// the directional distance transform.
package raster

import (
	"gonum.org/v1/gonum/mat"
)

// Grid is a single-band raster with a per-pixel validity mask.
// Boolean-valued bands use 0/1 pixel values.
type Grid struct {
	rows, cols int
	data       *mat.Dense
	valid      []bool
}

// New creates a grid of the given size with all pixels zero and valid.
func New(rows, cols int) *Grid {
	g := &Grid{
		rows: rows,
		cols: cols,
		data: mat.NewDense(rows, cols, nil),
	}
	g.valid = make([]bool, rows*cols)
	for i := range g.valid {
		g.valid[i] = true
	}
	return g
}

// FromValues creates a grid from row-major pixel values.
// len(values) must equal rows*cols.
func FromValues(rows, cols int, values []float64) *Grid {
	g := New(rows, cols)
	g.data = mat.NewDense(rows, cols, append([]float64(nil), values...))
	return g
}

// Constant creates a grid with every pixel set to v.
func Constant(rows, cols int, v float64) *Grid {
	g := New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.data.Set(r, c, v)
		}
	}
	return g
}

// Dims returns the grid dimensions.
func (g *Grid) Dims() (rows, cols int) {
	return g.rows, g.cols
}

// At returns the pixel value at (r, c).
func (g *Grid) At(r, c int) float64 {
	return g.data.At(r, c)
}

// Set sets the pixel value at (r, c).
func (g *Grid) Set(r, c int, v float64) {
	g.data.Set(r, c, v)
}

// Valid reports whether the pixel at (r, c) is valid.
func (g *Grid) Valid(r, c int) bool {
	return g.valid[r*g.cols+c]
}

// SetValid sets the validity of the pixel at (r, c).
func (g *Grid) SetValid(r, c int, ok bool) {
	g.valid[r*g.cols+c] = ok
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		rows:  g.rows,
		cols:  g.cols,
		data:  mat.DenseCopyOf(g.data),
		valid: append([]bool(nil), g.valid...),
	}
	return out
}

// CountNonzero returns the number of valid pixels with a nonzero value.
func (g *Grid) CountNonzero() int {
	n := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.Valid(r, c) && g.At(r, c) != 0 {
				n++
			}
		}
	}
	return n
}
