package eval

import (
	"context"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"cloudmask/core/expr"
	"cloudmask/core/raster"
	"cloudmask/internal/errors"
	"cloudmask/internal/logging"
)

// Value is a materialized image: ordered bands plus the originating scene
// when the image derives from a single observation (nil for mosaics).
type Value struct {
	Bands []NamedBand
	Scene *Scene
}

// Band returns the named band's grid, or nil if absent.
func (v *Value) Band(name string) *raster.Grid {
	for _, b := range v.Bands {
		if b.Name == name {
			return b.Grid
		}
	}
	return nil
}

// Interpreter evaluates expression graphs against a catalog.
type Interpreter struct {
	catalog *Catalog
}

// NewInterpreter creates an interpreter over the given catalog.
func NewInterpreter(catalog *Catalog) *Interpreter {
	return &Interpreter{catalog: catalog}
}

// env binds map-closure argument nodes to the scene being transformed.
type env map[*expr.Node]*Scene

// Collection materializes a collection expression as a scene slice.
func (in *Interpreter) Collection(ctx context.Context, c *expr.Collection) ([]*Scene, error) {
	return in.evalCollection(ctx, c.Node())
}

// Image materializes an image expression.
func (in *Interpreter) Image(ctx context.Context, i *expr.Image) (*Value, error) {
	return in.evalImage(ctx, i.Node(), nil)
}

// ImageFor materializes a per-scene transform built against a placeholder
// argument, binding every argument node to the given scene.
func (in *Interpreter) ImageFor(ctx context.Context, i *expr.Image, s *Scene) (*Value, error) {
	return in.evalImage(ctx, i.Node(), bindArgs(i.Node(), s))
}

// NumberFor materializes a scalar expression in the context of a scene.
func (in *Interpreter) NumberFor(ctx context.Context, num *expr.Number, s *Scene) (float64, error) {
	return in.evalNumber(ctx, num.Node(), bindArgs(num.Node(), s))
}

// bindArgs binds every argument node reachable from n to the scene.
func bindArgs(n *expr.Node, s *Scene) env {
	e := make(env)
	var walk func(*expr.Node)
	walk = func(n *expr.Node) {
		if n.Op == expr.OpArgument {
			e[n] = s
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(n)
	return e
}

func (in *Interpreter) evalCollection(ctx context.Context, n *expr.Node) ([]*Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n.Op {
	case expr.OpCollection:
		scenes, ok := in.catalog.Collection(n.Name)
		if !ok {
			return nil, errors.NotFound("collection", n.Name)
		}
		return append([]*Scene(nil), scenes...), nil

	case expr.OpFilterBounds:
		scenes, err := in.evalCollection(ctx, n.Args[0])
		if err != nil {
			return nil, err
		}
		var out []*Scene
		for _, s := range scenes {
			if intersects(s.Footprint, n.Geom) {
				out = append(out, s)
			}
		}
		return out, nil

	case expr.OpFilterDate:
		scenes, err := in.evalCollection(ctx, n.Args[0])
		if err != nil {
			return nil, err
		}
		var out []*Scene
		for _, s := range scenes {
			if !s.Time.Before(n.Start) && s.Time.Before(n.End) {
				out = append(out, s)
			}
		}
		return out, nil

	case expr.OpFilterMetadata:
		scenes, err := in.evalCollection(ctx, n.Args[0])
		if err != nil {
			return nil, err
		}
		var out []*Scene
		for _, s := range scenes {
			v, ok := s.Props[n.Filter.Field]
			if ok && n.Filter.Matches(v) {
				out = append(out, s)
			}
		}
		return out, nil

	case expr.OpJoinSaveFirst:
		return in.evalJoin(ctx, n)

	case expr.OpMap:
		scenes, err := in.evalCollection(ctx, n.Args[0])
		if err != nil {
			return nil, err
		}
		body, arg := n.Args[1], n.Args[2]
		out := make([]*Scene, 0, len(scenes))
		for _, s := range scenes {
			v, err := in.evalImage(ctx, body, env{arg: s})
			if err != nil {
				return nil, err
			}
			mapped := s.shallow()
			mapped.bands = v.Bands
			out = append(out, mapped)
		}
		return out, nil
	}
	return nil, errors.Newf(errors.TypeEval, "not a collection operation: %s", n.Op)
}

// evalJoin is a save-first inner join: primaries without a secondary match
// and unmatched secondaries are dropped without error.
func (in *Interpreter) evalJoin(ctx context.Context, n *expr.Node) ([]*Scene, error) {
	primary, err := in.evalCollection(ctx, n.Args[0])
	if err != nil {
		return nil, err
	}
	secondary, err := in.evalCollection(ctx, n.Args[1])
	if err != nil {
		return nil, err
	}
	slot, property := n.JoinSlot()

	index := make(map[string]*Scene, len(secondary))
	for _, s := range secondary {
		key, ok := joinKey(s, property)
		if !ok {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = s
		}
	}

	var out []*Scene
	for _, p := range primary {
		key, ok := joinKey(p, property)
		if ok {
			if match, found := index[key]; found {
				out = append(out, p.withLinked(slot, match))
				continue
			}
		}
		logging.Debug("join dropped unmatched scene",
			zap.String("scene", p.ID), zap.String("slot", slot))
	}
	return out, nil
}

// joinKey resolves a scene's join key; system:index is the scene identifier,
// anything else is a stringified metadata value.
func joinKey(s *Scene, property string) (string, bool) {
	if property == "system:index" || property == "" {
		return s.ID, true
	}
	v, ok := s.Props[property]
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(v, 'g', -1, 64), true
}

func (in *Interpreter) evalImage(ctx context.Context, n *expr.Node, e env) (*Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n.Op {
	case expr.OpArgument:
		s, ok := e[n]
		if !ok {
			return nil, errors.New(errors.TypeEval, "unbound argument node")
		}
		return &Value{Bands: s.Bands(), Scene: s}, nil

	case expr.OpSelect:
		v, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return nil, err
		}
		g := v.Band(n.Name)
		if g == nil {
			return nil, errors.Band(n.Name)
		}
		return &Value{Bands: []NamedBand{{Name: n.Name, Grid: g}}, Scene: v.Scene}, nil

	case expr.OpGt:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.Gt(n.Value) })
	case expr.OpLt:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.Lt(n.Value) })
	case expr.OpNeq:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.Neq(n.Value) })
	case expr.OpFocalMin:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.FocalMin(n.Value) })
	case expr.OpFocalMax:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.FocalMax(n.Value) })
	case expr.OpSelfMask:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.SelfMask() })
	case expr.OpMask:
		return in.mapBands(ctx, n, e, func(g *raster.Grid) *raster.Grid { return g.MaskBand() })
	case expr.OpReproject:
		// local grids carry no CRS; the scale is recorded in the graph for
		// the remote path and resampling is identity here
		return in.evalImage(ctx, n.Args[0], e)

	case expr.OpAdd, expr.OpMultiply:
		left, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return nil, err
		}
		right, err := in.evalImage(ctx, n.Args[1], e)
		if err != nil {
			return nil, err
		}
		if len(left.Bands) == 0 || len(right.Bands) == 0 {
			return nil, errors.New(errors.TypeEval, "band algebra on empty image")
		}
		a, b := left.Bands[0], right.Bands[0]
		g := a.Grid.Add(b.Grid)
		if n.Op == expr.OpMultiply {
			g = a.Grid.Mul(b.Grid)
		}
		return &Value{Bands: []NamedBand{{Name: a.Name, Grid: g}}, Scene: left.Scene}, nil

	case expr.OpUpdateMask:
		v, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return nil, err
		}
		m, err := in.evalImage(ctx, n.Args[1], e)
		if err != nil {
			return nil, err
		}
		if len(m.Bands) == 0 {
			return nil, errors.New(errors.TypeEval, "empty mask image")
		}
		bands := make([]NamedBand, 0, len(v.Bands))
		for _, b := range v.Bands {
			bands = append(bands, NamedBand{Name: b.Name, Grid: b.Grid.UpdateMask(m.Bands[0].Grid)})
		}
		return &Value{Bands: bands, Scene: v.Scene}, nil

	case expr.OpRename:
		v, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return nil, err
		}
		if len(v.Bands) == 0 {
			return nil, errors.New(errors.TypeEval, "rename of empty image")
		}
		bands := append([]NamedBand(nil), v.Bands...)
		bands[0] = NamedBand{Name: n.Name, Grid: bands[0].Grid}
		return &Value{Bands: bands, Scene: v.Scene}, nil

	case expr.OpAddBands:
		var bands []NamedBand
		var scene *Scene
		for idx, a := range n.Args {
			v, err := in.evalImage(ctx, a, e)
			if err != nil {
				return nil, err
			}
			if idx == 0 {
				scene = v.Scene
			}
			bands = append(bands, v.Bands...)
		}
		return &Value{Bands: bands, Scene: scene}, nil

	case expr.OpLinked:
		v, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return nil, err
		}
		if v.Scene == nil {
			return nil, errors.New(errors.TypeEval, "linked image outside a scene context")
		}
		other := v.Scene.Linked(n.Name)
		if other == nil {
			return nil, errors.NotFound("join slot", n.Name)
		}
		return &Value{Bands: other.Bands(), Scene: other}, nil

	case expr.OpDirectionalDist:
		v, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return nil, err
		}
		angle, err := in.evalNumber(ctx, n.Args[1], e)
		if err != nil {
			return nil, err
		}
		if len(v.Bands) == 0 {
			return nil, errors.New(errors.TypeEval, "distance transform of empty image")
		}
		g := v.Bands[0].Grid.DirectionalDistance(angle, n.Value)
		return &Value{Bands: []NamedBand{{Name: "distance", Grid: g}}, Scene: v.Scene}, nil

	case expr.OpMosaic:
		scenes, err := in.evalCollection(ctx, n.Args[0])
		if err != nil {
			return nil, err
		}
		if len(scenes) == 0 {
			return nil, errors.Collection("mosaic of empty collection")
		}
		var bands []NamedBand
		for _, b := range scenes[0].Bands() {
			grids := make([]*raster.Grid, 0, len(scenes))
			for _, s := range scenes {
				if g := s.Band(b.Name); g != nil {
					grids = append(grids, g)
				}
			}
			bands = append(bands, NamedBand{Name: b.Name, Grid: raster.Mosaic(grids...)})
		}
		return &Value{Bands: bands}, nil
	}
	return nil, errors.Newf(errors.TypeEval, "not an image operation: %s", n.Op)
}

func (in *Interpreter) mapBands(ctx context.Context, n *expr.Node, e env, fn func(*raster.Grid) *raster.Grid) (*Value, error) {
	v, err := in.evalImage(ctx, n.Args[0], e)
	if err != nil {
		return nil, err
	}
	bands := make([]NamedBand, 0, len(v.Bands))
	for _, b := range v.Bands {
		bands = append(bands, NamedBand{Name: b.Name, Grid: fn(b.Grid)})
	}
	return &Value{Bands: bands, Scene: v.Scene}, nil
}

func (in *Interpreter) evalNumber(ctx context.Context, n *expr.Node, e env) (float64, error) {
	switch n.Op {
	case expr.OpNumber:
		return n.Value, nil
	case expr.OpSubtract:
		a, err := in.evalNumber(ctx, n.Args[0], e)
		if err != nil {
			return 0, err
		}
		b, err := in.evalNumber(ctx, n.Args[1], e)
		if err != nil {
			return 0, err
		}
		return a - b, nil
	case expr.OpProperty:
		v, err := in.evalImage(ctx, n.Args[0], e)
		if err != nil {
			return 0, err
		}
		if v.Scene == nil {
			return 0, errors.New(errors.TypeEval, "property access outside a scene context")
		}
		p, ok := v.Scene.Props[n.Name]
		if !ok {
			return 0, errors.NotFound("scene property", n.Name)
		}
		return p, nil
	}
	return 0, errors.Newf(errors.TypeEval, "not a numeric operation: %s", n.Op)
}

// intersects tests footprint/AOI overlap for the geometry pairs the
// pipeline uses: points against polygons, plus a bound check fallback.
func intersects(footprint, aoi orb.Geometry) bool {
	if footprint == nil || aoi == nil {
		return false
	}
	switch a := aoi.(type) {
	case orb.Point:
		switch f := footprint.(type) {
		case orb.Polygon:
			return planar.PolygonContains(f, a)
		case orb.MultiPolygon:
			return planar.MultiPolygonContains(f, a)
		}
	case orb.Polygon:
		if f, ok := footprint.(orb.Polygon); ok {
			for _, ring := range a {
				for _, pt := range ring {
					if planar.PolygonContains(f, pt) {
						return true
					}
				}
			}
			for _, ring := range f {
				for _, pt := range ring {
					if planar.PolygonContains(a, pt) {
						return true
					}
				}
			}
			return false
		}
	}
	return footprint.Bound().Intersects(aoi.Bound())
}
