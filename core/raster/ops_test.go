package raster

import (
	"testing"
)

// TestThresholdBoundaries tests the strict/non-strict comparison behavior
// the mask pipeline depends on.
func TestThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		op       func(*Grid) *Grid
		expected float64
	}{
		{
			name:     "gt above threshold is true",
			value:    80,
			op:       func(g *Grid) *Grid { return g.Gt(50) },
			expected: 1,
		},
		{
			name:     "gt at threshold is false",
			value:    50,
			op:       func(g *Grid) *Grid { return g.Gt(50) },
			expected: 0,
		},
		{
			name:     "gt below threshold is false",
			value:    10,
			op:       func(g *Grid) *Grid { return g.Gt(50) },
			expected: 0,
		},
		{
			name:     "lt below threshold is true",
			value:    1200,
			op:       func(g *Grid) *Grid { return g.Lt(1500) },
			expected: 1,
		},
		{
			name:     "lt at threshold is false",
			value:    1500,
			op:       func(g *Grid) *Grid { return g.Lt(1500) },
			expected: 0,
		},
		{
			name:     "neq marks different values",
			value:    4,
			op:       func(g *Grid) *Grid { return g.Neq(6) },
			expected: 1,
		},
		{
			name:     "neq clears equal values",
			value:    6,
			op:       func(g *Grid) *Grid { return g.Neq(6) },
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Constant(1, 1, tt.value)
			out := tt.op(g)
			if got := out.At(0, 0); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestMulActsAsLogicalAnd(t *testing.T) {
	tests := []struct {
		a, b, expected float64
	}{
		{0, 0, 0},
		{0, 1, 0},
		{1, 0, 0},
		{1, 1, 1},
	}
	for _, tt := range tests {
		out := Constant(1, 1, tt.a).Mul(Constant(1, 1, tt.b))
		if got := out.At(0, 0); got != tt.expected {
			t.Errorf("%v AND %v: expected %v, got %v", tt.a, tt.b, tt.expected, got)
		}
	}
}

// TestErosionRemovesIsolatedPixel is the regression test for the radius-2
// erosion step: a single isolated true pixel must not survive.
func TestErosionRemovesIsolatedPixel(t *testing.T) {
	g := New(5, 5)
	g.Set(2, 2, 1)

	eroded := g.FocalMin(2)
	if n := eroded.CountNonzero(); n != 0 {
		t.Errorf("expected isolated pixel removed, %d pixels survive", n)
	}

	// dilation afterwards must not resurrect anything
	dilated := eroded.FocalMax(5)
	if n := dilated.CountNonzero(); n != 0 {
		t.Errorf("expected empty mask after erode+dilate, got %d pixels", n)
	}
}

func TestErosionKeepsSolidRegions(t *testing.T) {
	g := New(9, 9)
	for r := 1; r < 8; r++ {
		for c := 1; c < 8; c++ {
			g.Set(r, c, 1)
		}
	}

	eroded := g.FocalMin(2)
	if eroded.At(4, 4) != 1 {
		t.Error("expected interior of solid region to survive erosion")
	}
	if eroded.At(1, 1) != 0 {
		t.Error("expected region boundary to erode")
	}

	dilated := eroded.FocalMax(2)
	if dilated.At(4, 4) != 1 {
		t.Error("expected dilation to restore interior")
	}
}

func TestDirectionalDistance(t *testing.T) {
	// single source pixel at the west edge, direction due east (angle 0)
	g := New(3, 5)
	g.Set(1, 0, 1)

	d := g.DirectionalDistance(0, 10)

	for c := 1; c < 5; c++ {
		if !d.Valid(1, c) {
			t.Errorf("expected pixel (1,%d) in shadow path, not valid", c)
			continue
		}
		if got := d.At(1, c); got != float64(c) {
			t.Errorf("pixel (1,%d): expected distance %d, got %v", c, c, got)
		}
	}

	// off-path pixels carry no distance
	if d.Valid(0, 2) || d.Valid(2, 2) {
		t.Error("expected off-path pixels to be masked")
	}

	// the source row behind the source is not shadowed
	if d.Valid(1, 0) {
		t.Error("expected the source pixel itself to be masked")
	}
}

func TestDirectionalDistanceRespectsMaxDist(t *testing.T) {
	g := New(1, 8)
	g.Set(0, 0, 1)

	d := g.DirectionalDistance(0, 3)
	if !d.Valid(0, 3) {
		t.Error("expected pixel at max distance to be reached")
	}
	if d.Valid(0, 4) {
		t.Error("expected pixel beyond max distance to be masked")
	}
}

func TestMosaicFirstValidWins(t *testing.T) {
	a := Constant(2, 2, 1)
	a.SetValid(0, 0, false)
	a.SetValid(1, 1, false)

	b := Constant(2, 2, 2)
	b.SetValid(1, 1, false)

	m := Mosaic(a, b)

	if got := m.At(0, 0); got != 2 {
		t.Errorf("expected hole filled from second grid, got %v", got)
	}
	if got := m.At(0, 1); got != 1 {
		t.Errorf("expected first grid to win, got %v", got)
	}
	if m.Valid(1, 1) {
		t.Error("expected pixel invalid in all inputs to stay invalid")
	}
}

func TestSelfMask(t *testing.T) {
	g := New(1, 2)
	g.Set(0, 0, 1)

	masked := g.SelfMask()
	if !masked.Valid(0, 0) {
		t.Error("expected nonzero pixel to stay valid")
	}
	if masked.Valid(0, 1) {
		t.Error("expected zero pixel to be invalidated")
	}
}

func TestMaskBand(t *testing.T) {
	g := New(1, 2)
	g.SetValid(0, 1, false)

	m := g.MaskBand()
	if m.At(0, 0) != 1 || m.At(0, 1) != 0 {
		t.Errorf("unexpected mask band: %v, %v", m.At(0, 0), m.At(0, 1))
	}
	if !m.Valid(0, 1) {
		t.Error("mask band itself must be fully valid")
	}
}
