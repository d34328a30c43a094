// Package pipeline assembles the cloud/shadow mask expression pipeline:
// filtered and joined scene collections, cloud and shadow band derivation,
// and the combined morphologically cleaned mask.
package pipeline

import (
	"time"

	"cloudmask/internal/errors"
)

// Collection identifiers, band names and classification codes fixed by the
// imagery provider.
const (
	// SurfaceReflectanceCollection is the harmonized surface-reflectance
	// imagery source.
	SurfaceReflectanceCollection = "COPERNICUS/S2_SR_HARMONIZED"

	// CloudProbabilityCollection is the per-pixel cloud-probability source.
	CloudProbabilityCollection = "COPERNICUS/S2_CLOUD_PROBABILITY"

	// CloudProbabilitySlot is the join slot the probability scene is saved
	// under.
	CloudProbabilitySlot = "s2cloudless"

	// SceneIndexProperty is the unique scene identifier both collections
	// share.
	SceneIndexProperty = "system:index"

	// CloudPercentageProperty is the scene-level cloud cover metadata field.
	CloudPercentageProperty = "CLOUDY_PIXEL_PERCENTAGE"

	// SolarAzimuthProperty is the mean solar azimuth metadata field.
	SolarAzimuthProperty = "MEAN_SOLAR_AZIMUTH_ANGLE"

	sceneClassificationBand = "SCL"
	nirBand                 = "B8"
	probabilityBand         = "probability"

	// waterClass is the scene-classification code for water.
	waterClass = 6

	// reflectanceScale converts reflectance thresholds to stored DN values.
	reflectanceScale = 1e4

	// coarseScale is the shadow-projection working resolution.
	coarseScale = 100

	// fineScale is the final mask working resolution.
	fineScale = 20
)

// Thresholds is the fixed configuration bundle shared by every
// augmentation step. Read-only after construction.
type Thresholds struct {
	// CloudProbability is the strict cutoff above which a pixel is cloud.
	CloudProbability float64

	// NIRDark is the near-infrared reflectance below which a pixel is dark.
	NIRDark float64

	// ProjectionDistance scales how far cloud shadows are projected, in
	// tens of native linear units.
	ProjectionDistance float64

	// Buffer is the safety radius added around detected regions, in native
	// linear units.
	Buffer float64
}

// DefaultThresholds returns the authoring-time constants.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		CloudProbability:   50,
		NIRDark:            0.15,
		ProjectionDistance: 1,
		Buffer:             50,
	}
}

// Validate rejects threshold values outside their meaningful ranges.
func (t *Thresholds) Validate() error {
	if t.CloudProbability < 0 || t.CloudProbability > 100 {
		return errors.Config("cloud probability threshold must be in [0, 100]")
	}
	if t.NIRDark < 0 || t.NIRDark > 1 {
		return errors.Config("NIR darkness threshold must be in [0, 1]")
	}
	if t.ProjectionDistance <= 0 {
		return errors.Config("shadow projection distance must be positive")
	}
	if t.Buffer < 0 {
		return errors.Config("buffer radius must not be negative")
	}
	return nil
}

// DateRange is a half-open interval [Start, End) of observation dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty or inverted ranges.
func (d DateRange) Validate() error {
	if !d.Start.Before(d.End) {
		return errors.Config("date range start must precede end")
	}
	return nil
}
