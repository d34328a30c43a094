package pipeline

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"cloudmask/core/expr"
	"cloudmask/internal/logging"
)

// BuildCollection returns the surface-reflectance collection filtered by
// area, date interval and scene-level cloud percentage, save-first-joined
// with the cloud-probability collection on exact scene identifier equality.
// Scenes without a probability counterpart are dropped silently, as are
// unmatched probability records.
func BuildCollection(aoi orb.Geometry, dates DateRange, maxCloudPct float64) *expr.Collection {
	sr := expr.ImageCollection(SurfaceReflectanceCollection).
		FilterBounds(aoi).
		FilterDate(dates.Start, dates.End).
		Filter(expr.Lte(CloudPercentageProperty, maxCloudPct))

	prob := expr.ImageCollection(CloudProbabilityCollection).
		FilterBounds(aoi).
		FilterDate(dates.Start, dates.End)

	logging.Debug("built scene collection expression",
		zap.Float64("max_cloud_pct", maxCloudPct))

	return expr.SaveFirstJoin(sr, prob, CloudProbabilitySlot, SceneIndexProperty)
}

// AddCloudBands derives the cloud bands from the joined probability scene:
// the raw probability band and the strict-threshold boolean cloud band.
// Pure: returns the input plus the two appended bands.
func AddCloudBands(img *expr.Image, th *Thresholds) *expr.Image {
	cldPrb := img.Linked(CloudProbabilitySlot).Select(probabilityBand)
	isCloud := cldPrb.Gt(th.CloudProbability).Rename("clouds")
	return img.AddBands(cldPrb, isCloud)
}

// ShadowAzimuth is the direction shadows are cast along: 90 degrees minus
// the scene's mean solar azimuth. Correct for the assumed projection only;
// azimuths above 90 yield a negative angle and no wrap is applied.
func ShadowAzimuth(img *expr.Image) *expr.Number {
	return expr.Num(90).Sub(img.Property(SolarAzimuthProperty))
}

// AddShadowBands derives dark pixels, the projected cloud shadow transform
// and their conjunction. Requires the cloud band from AddCloudBands.
func AddShadowBands(img *expr.Image, th *Thresholds) *expr.Image {
	notWater := img.Select(sceneClassificationBand).Neq(waterClass)

	darkPixels := img.Select(nirBand).
		Lt(th.NIRDark * reflectanceScale).
		Multiply(notWater).
		Rename("dark_pixels")

	cldProj := img.Select("clouds").
		DirectionalDistanceTransform(ShadowAzimuth(img), th.ProjectionDistance*10).
		Reproject(coarseScale).
		Select("distance").
		Mask().
		Rename("cloud_transform")

	shadows := cldProj.Multiply(darkPixels).Rename("shadows")

	return img.AddBands(darkPixels, cldProj, shadows)
}

// AddCloudShadowMask runs both augmenters and appends the combined mask:
// clouds OR shadows, eroded to drop isolated false positives, dilated by
// the buffer radius, and resampled to the final working resolution. The
// cloudmask band is the only one intended for downstream masking.
func AddCloudShadowMask(img *expr.Image, th *Thresholds) *expr.Image {
	imgCloud := AddCloudBands(img, th)
	imgCloudShadow := AddShadowBands(imgCloud, th)

	isCldShdw := imgCloudShadow.Select("clouds").
		Add(imgCloudShadow.Select("shadows")).
		Gt(0).
		FocalMin(2).
		FocalMax(th.Buffer * 2 / fineScale).
		Reproject(fineScale).
		Rename("cloudmask")

	return imgCloudShadow.AddBands(isCldShdw)
}

// Masked maps the full mask derivation across a joined collection.
func Masked(col *expr.Collection, th *Thresholds) *expr.Collection {
	return col.Map(func(img *expr.Image) *expr.Image {
		return AddCloudShadowMask(img, th)
	})
}
