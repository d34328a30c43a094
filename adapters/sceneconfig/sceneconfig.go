// Package sceneconfig parses the HCL scene file: area of interest, date
// range, scene-level cloud filter and the mask thresholds.
package sceneconfig

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/paulmach/orb"

	"cloudmask/core/pipeline"
	"cloudmask/internal/errors"
)

const dateLayout = "2006-01-02"

// DefaultCloudFilter is the scene-level cloud percentage cutoff applied
// when the scene file does not set one.
const DefaultCloudFilter = 60

// Run is a fully resolved pipeline invocation.
type Run struct {
	AOI         orb.Geometry
	Dates       pipeline.DateRange
	CloudFilter float64
	Thresholds  *pipeline.Thresholds
}

type sceneFile struct {
	Scene      *sceneBlock      `hcl:"scene,block"`
	Thresholds *thresholdsBlock `hcl:"thresholds,block"`
}

type sceneBlock struct {
	Point       []float64   `hcl:"point,optional"`
	Polygon     [][]float64 `hcl:"polygon,optional"`
	StartDate   string      `hcl:"start_date"`
	EndDate     string      `hcl:"end_date"`
	CloudFilter *float64    `hcl:"cloud_filter,optional"`
}

type thresholdsBlock struct {
	CloudProbability   *float64 `hcl:"cloud_probability,optional"`
	NIRDark            *float64 `hcl:"nir_dark,optional"`
	ProjectionDistance *float64 `hcl:"projection_distance,optional"`
	Buffer             *float64 `hcl:"buffer,optional"`
}

// Load parses and validates a scene file.
func Load(path string) (*Run, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.TypeConfig, "parsing scene file", diags)
	}
	return decode(file.Body)
}

// LoadBytes parses a scene file from memory; filename is for diagnostics.
func LoadBytes(src []byte, filename string) (*Run, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.TypeConfig, "parsing scene file", diags)
	}
	return decode(file.Body)
}

func decode(body hcl.Body) (*Run, error) {
	var raw sceneFile
	diags := gohcl.DecodeBody(body, nil, &raw)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.TypeConfig, "decoding scene file", diags)
	}
	if raw.Scene == nil {
		return nil, errors.Config("scene file must contain a scene block")
	}

	aoi, err := geometry(raw.Scene)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse(dateLayout, raw.Scene.StartDate)
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "parsing start_date", err)
	}
	end, err := time.Parse(dateLayout, raw.Scene.EndDate)
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "parsing end_date", err)
	}

	run := &Run{
		AOI:         aoi,
		Dates:       pipeline.DateRange{Start: start, End: end},
		CloudFilter: DefaultCloudFilter,
		Thresholds:  thresholds(raw.Thresholds),
	}
	if raw.Scene.CloudFilter != nil {
		run.CloudFilter = *raw.Scene.CloudFilter
	}

	if err := run.Dates.Validate(); err != nil {
		return nil, err
	}
	if run.CloudFilter < 0 || run.CloudFilter > 100 {
		return nil, errors.Config("cloud_filter must be in [0, 100]")
	}
	if err := run.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

// geometry resolves the AOI: a point or a polygon, exactly one of which
// must be present.
func geometry(s *sceneBlock) (orb.Geometry, error) {
	switch {
	case len(s.Point) > 0 && len(s.Polygon) > 0:
		return nil, errors.Config("scene block must set point or polygon, not both")
	case len(s.Point) > 0:
		if len(s.Point) != 2 {
			return nil, errors.Config("point must be [lon, lat]")
		}
		return orb.Point{s.Point[0], s.Point[1]}, nil
	case len(s.Polygon) > 0:
		ring := make(orb.Ring, 0, len(s.Polygon)+1)
		for _, coord := range s.Polygon {
			if len(coord) != 2 {
				return nil, errors.Config("polygon coordinates must be [lon, lat] pairs")
			}
			ring = append(ring, orb.Point{coord[0], coord[1]})
		}
		if len(ring) < 3 {
			return nil, errors.Config("polygon needs at least three coordinates")
		}
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}, nil
	}
	return nil, errors.Config("scene block must set point or polygon")
}

// thresholds overlays file values onto the authoring-time defaults.
func thresholds(b *thresholdsBlock) *pipeline.Thresholds {
	th := pipeline.DefaultThresholds()
	if b == nil {
		return th
	}
	if b.CloudProbability != nil {
		th.CloudProbability = *b.CloudProbability
	}
	if b.NIRDark != nil {
		th.NIRDark = *b.NIRDark
	}
	if b.ProjectionDistance != nil {
		th.ProjectionDistance = *b.ProjectionDistance
	}
	if b.Buffer != nil {
		th.Buffer = *b.Buffer
	}
	return th
}
