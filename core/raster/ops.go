package raster

import (
	"math"
)

// apply returns a new grid whose pixels are fn(value), preserving validity.
func (g *Grid) apply(fn func(float64) float64) *Grid {
	out := g.Clone()
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			out.Set(r, c, fn(g.At(r, c)))
		}
	}
	return out
}

// combine returns a new grid whose pixels are fn(a, b). A pixel is valid only
// where both inputs are valid.
func (g *Grid) combine(o *Grid, fn func(a, b float64) float64) *Grid {
	out := g.Clone()
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			out.Set(r, c, fn(g.At(r, c), o.At(r, c)))
			out.SetValid(r, c, g.Valid(r, c) && o.Valid(r, c))
		}
	}
	return out
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Gt returns the boolean grid value > v. The boundary value yields 0.
func (g *Grid) Gt(v float64) *Grid {
	return g.apply(func(x float64) float64 { return b2f(x > v) })
}

// Lt returns the boolean grid value < v.
func (g *Grid) Lt(v float64) *Grid {
	return g.apply(func(x float64) float64 { return b2f(x < v) })
}

// Neq returns the boolean grid value != v.
func (g *Grid) Neq(v float64) *Grid {
	return g.apply(func(x float64) float64 { return b2f(x != v) })
}

// Add returns the per-pixel sum of two grids.
func (g *Grid) Add(o *Grid) *Grid {
	return g.combine(o, func(a, b float64) float64 { return a + b })
}

// Mul returns the per-pixel product of two grids. On 0/1 grids this is
// logical AND.
func (g *Grid) Mul(o *Grid) *Grid {
	return g.combine(o, func(a, b float64) float64 { return a * b })
}

// SelfMask invalidates every zero-valued pixel, keeping nonzero values.
func (g *Grid) SelfMask() *Grid {
	out := g.Clone()
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.At(r, c) == 0 {
				out.SetValid(r, c, false)
			}
		}
	}
	return out
}

// UpdateMask invalidates pixels where mask is invalid or zero.
func (g *Grid) UpdateMask(mask *Grid) *Grid {
	out := g.Clone()
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if !mask.Valid(r, c) || mask.At(r, c) == 0 {
				out.SetValid(r, c, false)
			}
		}
	}
	return out
}

// MaskBand returns the validity mask as a 0/1 grid with all pixels valid.
func (g *Grid) MaskBand() *Grid {
	out := New(g.rows, g.cols)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			out.Set(r, c, b2f(g.Valid(r, c)))
		}
	}
	return out
}

// focal computes a neighborhood reduction over a circular kernel of the
// given radius. Out-of-bounds neighbors are skipped.
func (g *Grid) focal(radius float64, reduce func(acc, v float64) float64, seed float64) *Grid {
	out := g.Clone()
	ri := int(math.Ceil(radius))
	r2 := radius * radius
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			acc := seed
			seen := false
			for dr := -ri; dr <= ri; dr++ {
				for dc := -ri; dc <= ri; dc++ {
					if float64(dr*dr+dc*dc) > r2 {
						continue
					}
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= g.rows || nc < 0 || nc >= g.cols {
						continue
					}
					if !g.Valid(nr, nc) {
						continue
					}
					if !seen {
						acc = g.At(nr, nc)
						seen = true
					} else {
						acc = reduce(acc, g.At(nr, nc))
					}
				}
			}
			out.Set(r, c, acc)
		}
	}
	return out
}

// FocalMin erodes the grid with a circular kernel of the given radius.
func (g *Grid) FocalMin(radius float64) *Grid {
	return g.focal(radius, math.Min, 0)
}

// FocalMax dilates the grid with a circular kernel of the given radius.
func (g *Grid) FocalMax(radius float64) *Grid {
	return g.focal(radius, math.Max, 0)
}

// DirectionalDistance computes, for each pixel, the step distance to the
// nearest nonzero source pixel looking back along the given direction. The
// angle is in degrees counterclockwise from grid east; a nonzero pixel at
// step k along the opposite direction yields distance k. Pixels with no
// source within maxDist steps are invalid, so the result doubles as the
// projected mask once MaskBand is applied.
func (g *Grid) DirectionalDistance(angleDeg, maxDist float64) *Grid {
	out := New(g.rows, g.cols)
	theta := angleDeg * math.Pi / 180
	dc := math.Cos(theta)
	// grid rows grow southward, so a northward component is a negative row step
	dr := -math.Sin(theta)
	steps := int(maxDist)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			out.SetValid(r, c, false)
			for k := 1; k <= steps; k++ {
				sr := r - int(math.Round(float64(k)*dr))
				sc := c - int(math.Round(float64(k)*dc))
				if sr < 0 || sr >= g.rows || sc < 0 || sc >= g.cols {
					continue
				}
				if g.Valid(sr, sc) && g.At(sr, sc) != 0 {
					out.Set(r, c, float64(k))
					out.SetValid(r, c, true)
					break
				}
			}
		}
	}
	return out
}

// Mosaic composites grids by taking the first valid pixel at each location,
// in argument order. All grids must share dimensions.
func Mosaic(grids ...*Grid) *Grid {
	if len(grids) == 0 {
		return nil
	}
	rows, cols := grids[0].Dims()
	out := New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.SetValid(r, c, false)
			for _, g := range grids {
				if g.Valid(r, c) {
					out.Set(r, c, g.At(r, c))
					out.SetValid(r, c, true)
					break
				}
			}
		}
	}
	return out
}
