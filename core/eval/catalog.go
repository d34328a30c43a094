// Package eval materializes expression graphs against an in-memory catalog
// of scenes. It is the offline counterpart of the remote image service and
// the substrate for the pipeline's local verification.
package eval

import (
	"time"

	"github.com/paulmach/orb"

	"cloudmask/core/raster"
)

// NamedBand is one named raster layer within a scene.
type NamedBand struct {
	Name string
	Grid *raster.Grid
}

// Scene is one satellite observation: an identifier, ordered named bands,
// numeric metadata and, after a join, linked sibling scenes. Scenes are
// immutable-with-accumulation: augmentation returns a new scene with bands
// appended, never mutated or removed.
type Scene struct {
	ID        string
	Time      time.Time
	Footprint orb.Geometry
	Props     map[string]float64
	bands     []NamedBand
	linked    map[string]*Scene
}

// NewScene creates a scene with no bands.
func NewScene(id string, t time.Time, footprint orb.Geometry) *Scene {
	return &Scene{
		ID:        id,
		Time:      t,
		Footprint: footprint,
		Props:     make(map[string]float64),
	}
}

// WithBand returns a copy of the scene with the band appended.
func (s *Scene) WithBand(name string, g *raster.Grid) *Scene {
	out := s.shallow()
	out.bands = append(out.bands, NamedBand{Name: name, Grid: g})
	return out
}

// WithProp returns a copy of the scene with a metadata value set.
func (s *Scene) WithProp(name string, v float64) *Scene {
	out := s.shallow()
	out.Props[name] = v
	return out
}

func (s *Scene) shallow() *Scene {
	out := &Scene{
		ID:        s.ID,
		Time:      s.Time,
		Footprint: s.Footprint,
		Props:     make(map[string]float64, len(s.Props)),
		bands:     append([]NamedBand(nil), s.bands...),
	}
	for k, v := range s.Props {
		out.Props[k] = v
	}
	if s.linked != nil {
		out.linked = make(map[string]*Scene, len(s.linked))
		for k, v := range s.linked {
			out.linked[k] = v
		}
	}
	return out
}

// Band returns the named band's grid, or nil if absent.
func (s *Scene) Band(name string) *raster.Grid {
	for _, b := range s.bands {
		if b.Name == name {
			return b.Grid
		}
	}
	return nil
}

// Bands returns the scene's bands in order.
func (s *Scene) Bands() []NamedBand {
	return s.bands
}

// Linked returns the scene attached under a join slot, or nil.
func (s *Scene) Linked(slot string) *Scene {
	return s.linked[slot]
}

func (s *Scene) withLinked(slot string, other *Scene) *Scene {
	out := s.shallow()
	if out.linked == nil {
		out.linked = make(map[string]*Scene, 1)
	}
	out.linked[slot] = other
	return out
}

// Catalog holds named scene collections for local evaluation.
type Catalog struct {
	collections map[string][]*Scene
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{collections: make(map[string][]*Scene)}
}

// Add appends scenes to a named collection.
func (c *Catalog) Add(collection string, scenes ...*Scene) {
	c.collections[collection] = append(c.collections[collection], scenes...)
}

// Collection returns the scenes of a named collection.
func (c *Catalog) Collection(name string) ([]*Scene, bool) {
	s, ok := c.collections[name]
	return s, ok
}
