// Package render turns a masked scene collection into an interactive map:
// a mosaicked base image plus each diagnostic band as an independently
// togglable, independently styled tile overlay.
package render

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"cloudmask/core/expr"
	"cloudmask/internal/errors"
)

// VisParams shape a tile-rendering request for one layer.
type VisParams struct {
	Bands   []string `json:"bands,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Gamma   *float64 `json:"gamma,omitempty"`
	Palette []string `json:"palette,omitempty"`
}

func f(v float64) *float64 { return &v }

// Layer pairs an image expression with its display styling.
type Layer struct {
	Name    string
	Image   *expr.Image
	Vis     VisParams
	Shown   bool
	Opacity float64
}

// Layers mosaics the masked collection and returns the display layers in
// order: true-color composite, cloud probability, cloud mask, shadow
// projection, dark pixels, combined shadows and the final cloudmask.
func Layers(col *expr.Collection) []Layer {
	img := col.Mosaic()
	return []Layer{
		{
			Name:    "S2 image",
			Image:   img,
			Vis:     VisParams{Bands: []string{"B4", "B3", "B2"}, Min: f(0), Max: f(2500), Gamma: f(1.1)},
			Shown:   true,
			Opacity: 1,
		},
		{
			Name:    "probability (cloud)",
			Image:   img.Select("probability"),
			Vis:     VisParams{Min: f(0), Max: f(100)},
			Opacity: 1,
		},
		{
			Name:    "clouds",
			Image:   img.Select("clouds").SelfMask(),
			Vis:     VisParams{Palette: []string{"e056fd"}},
			Opacity: 1,
		},
		{
			Name:    "cloud_transform",
			Image:   img.Select("cloud_transform"),
			Vis:     VisParams{Min: f(0), Max: f(1), Palette: []string{"white", "black"}},
			Opacity: 1,
		},
		{
			Name:    "dark_pixels",
			Image:   img.Select("dark_pixels").SelfMask(),
			Vis:     VisParams{Palette: []string{"orange"}},
			Opacity: 1,
		},
		{
			Name:    "shadows",
			Image:   img.Select("shadows").SelfMask(),
			Vis:     VisParams{Palette: []string{"yellow"}},
			Opacity: 1,
		},
		{
			Name:    "cloudmask",
			Image:   img.Select("cloudmask").SelfMask(),
			Vis:     VisParams{Palette: []string{"orange"}},
			Shown:   true,
			Opacity: 0.5,
		},
	}
}

// TileProvider materializes one layer as a tile URL template. Implemented
// by the remote engine session; tests substitute a stub.
type TileProvider interface {
	TileLayer(ctx context.Context, img *expr.Image, vis VisParams) (string, error)
}

// TileLayer is a materialized overlay ready for the HTML map.
type TileLayer struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Shown   bool    `json:"shown"`
	Opacity float64 `json:"opacity"`
}

// Map is a fully materialized interactive map.
type Map struct {
	// Center is the AOI centroid as (lat, lon) for the map viewport.
	Lat, Lon float64
	Zoom     int
	MinZoom  int
	Layers   []TileLayer
}

// BuildMap materializes every display layer through the provider and
// centers the viewport on the AOI centroid. A provider failure is fatal;
// there is no partial map.
func BuildMap(ctx context.Context, provider TileProvider, aoi orb.Geometry, col *expr.Collection, zoom, minZoom int) (*Map, error) {
	if aoi == nil {
		return nil, errors.New(errors.TypeRender, "nil area of interest")
	}
	centroid, _ := planar.CentroidArea(aoi)

	m := &Map{
		Lat:     centroid.Lat(),
		Lon:     centroid.Lon(),
		Zoom:    zoom,
		MinZoom: minZoom,
	}
	for _, layer := range Layers(col) {
		url, err := provider.TileLayer(ctx, layer.Image, layer.Vis)
		if err != nil {
			return nil, errors.Render("materializing layer "+layer.Name, err)
		}
		m.Layers = append(m.Layers, TileLayer{
			Name:    layer.Name,
			URL:     url,
			Shown:   layer.Shown,
			Opacity: layer.Opacity,
		})
	}
	return m, nil
}
