package api

import (
	"time"

	"github.com/paulmach/orb"

	"cloudmask/core/pipeline"
	"cloudmask/core/render"
	"cloudmask/internal/errors"
)

const dateLayout = "2006-01-02"

// MaskRequest is the JSON body of POST /api/v1/mask. It mirrors the HCL
// scene file: an area of interest, a half-open date interval, the scene
// cloud filter and optional threshold overrides.
type MaskRequest struct {
	Point       []float64   `json:"point,omitempty"`
	Polygon     [][]float64 `json:"polygon,omitempty"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	CloudFilter *float64    `json:"cloud_filter,omitempty"`

	Thresholds *ThresholdOverrides `json:"thresholds,omitempty"`
}

// ThresholdOverrides optionally replaces individual mask thresholds.
type ThresholdOverrides struct {
	CloudProbability   *float64 `json:"cloud_probability,omitempty"`
	NIRDark            *float64 `json:"nir_dark,omitempty"`
	ProjectionDistance *float64 `json:"projection_distance,omitempty"`
	Buffer             *float64 `json:"buffer,omitempty"`
}

// MaskResponse carries the materialized layers and map placement.
type MaskResponse struct {
	RequestID string             `json:"request_id"`
	Center    [2]float64         `json:"center"` // lat, lon
	Zoom      int                `json:"zoom"`
	Layers    []render.TileLayer `json:"layers"`
	Metadata  ResponseMetadata   `json:"metadata"`
}

// ResponseMetadata contains execution context.
type ResponseMetadata struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Version    string    `json:"version"`
}

// ErrorResponse is the structured error envelope.
type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// resolve converts the wire request into pipeline inputs.
func (r *MaskRequest) resolve() (orb.Geometry, pipeline.DateRange, float64, *pipeline.Thresholds, error) {
	var aoi orb.Geometry
	switch {
	case len(r.Point) == 2:
		aoi = orb.Point{r.Point[0], r.Point[1]}
	case len(r.Polygon) >= 3:
		ring := make(orb.Ring, 0, len(r.Polygon)+1)
		for _, c := range r.Polygon {
			if len(c) != 2 {
				return nil, pipeline.DateRange{}, 0, nil, errors.Config("polygon coordinates must be [lon, lat] pairs")
			}
			ring = append(ring, orb.Point{c[0], c[1]})
		}
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		aoi = orb.Polygon{ring}
	default:
		return nil, pipeline.DateRange{}, 0, nil, errors.Config("request must set point or polygon")
	}

	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return nil, pipeline.DateRange{}, 0, nil, errors.Wrap(errors.TypeConfig, "parsing start_date", err)
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return nil, pipeline.DateRange{}, 0, nil, errors.Wrap(errors.TypeConfig, "parsing end_date", err)
	}
	dates := pipeline.DateRange{Start: start, End: end}
	if err := dates.Validate(); err != nil {
		return nil, pipeline.DateRange{}, 0, nil, err
	}

	cloudFilter := 60.0
	if r.CloudFilter != nil {
		cloudFilter = *r.CloudFilter
	}
	if cloudFilter < 0 || cloudFilter > 100 {
		return nil, pipeline.DateRange{}, 0, nil, errors.Config("cloud_filter must be in [0, 100]")
	}

	th := pipeline.DefaultThresholds()
	if o := r.Thresholds; o != nil {
		if o.CloudProbability != nil {
			th.CloudProbability = *o.CloudProbability
		}
		if o.NIRDark != nil {
			th.NIRDark = *o.NIRDark
		}
		if o.ProjectionDistance != nil {
			th.ProjectionDistance = *o.ProjectionDistance
		}
		if o.Buffer != nil {
			th.Buffer = *o.Buffer
		}
	}
	if err := th.Validate(); err != nil {
		return nil, pipeline.DateRange{}, 0, nil, err
	}

	return aoi, dates, cloudFilter, th, nil
}
