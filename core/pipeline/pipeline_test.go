package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"cloudmask/core/eval"
	"cloudmask/core/expr"
	"cloudmask/core/raster"
)

var (
	testAOI       = orb.Point{8.642, 49.877}
	testFootprint = orb.Polygon{orb.Ring{
		{8, 49}, {9, 49}, {9, 50}, {8, 50}, {8, 49},
	}}
	testDates = DateRange{
		Start: day("2024-06-03"),
		End:   day("2024-06-04"),
	}
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// testCatalog builds a catalog with one joined scene pair. The reflectance
// scene carries B8 and SCL 3x3 bands plus solar metadata; the probability
// scene carries the given 3x3 probability values.
func testCatalog(prob, b8, scl []float64, azimuth float64) *eval.Catalog {
	when := day("2024-06-03")

	sr := eval.NewScene("A", when, testFootprint).
		WithProp(CloudPercentageProperty, 10).
		WithProp(SolarAzimuthProperty, azimuth).
		WithBand("B8", raster.FromValues(3, 3, b8)).
		WithBand("SCL", raster.FromValues(3, 3, scl))

	probScene := eval.NewScene("A", when, testFootprint).
		WithBand("probability", raster.FromValues(3, 3, prob))

	catalog := eval.NewCatalog()
	catalog.Add(SurfaceReflectanceCollection, sr)
	catalog.Add(CloudProbabilityCollection, probScene)
	return catalog
}

func allVeg() []float64 {
	out := make([]float64, 9)
	for i := range out {
		out[i] = 4 // vegetation class
	}
	return out
}

func bright() []float64 {
	out := make([]float64, 9)
	for i := range out {
		out[i] = 3000
	}
	return out
}

// joinedScene materializes the built collection and returns its only scene.
func joinedScene(t *testing.T, catalog *eval.Catalog) (*eval.Interpreter, *eval.Scene) {
	t.Helper()
	in := eval.NewInterpreter(catalog)
	scenes, err := in.Collection(context.Background(), BuildCollection(testAOI, testDates, 60))
	if err != nil {
		t.Fatalf("building collection: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("expected 1 joined scene, got %d", len(scenes))
	}
	return in, scenes[0]
}

func TestAddCloudBandsThreshold(t *testing.T) {
	// center above threshold, one pixel exactly at it, rest below
	prob := []float64{
		10, 50, 10,
		10, 80, 10,
		10, 10, 10,
	}
	in, scene := joinedScene(t, testCatalog(prob, bright(), allVeg(), 90))

	v, err := in.ImageFor(context.Background(), AddCloudBands(expr.Placeholder(), DefaultThresholds()), scene)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clouds := v.Band("clouds")
	if clouds == nil {
		t.Fatal("clouds band missing")
	}
	if clouds.At(1, 1) != 1 {
		t.Error("expected center pixel (p=80) to be cloud")
	}
	if clouds.At(0, 1) != 0 {
		t.Error("expected boundary pixel (p=50) to NOT be cloud; threshold is strict")
	}
	if clouds.At(0, 0) != 0 {
		t.Error("expected clear pixel (p=10) to not be cloud")
	}

	// probability band is carried alongside
	if p := v.Band("probability"); p == nil || p.At(1, 1) != 80 {
		t.Error("expected probability band appended unchanged")
	}

	// input bands survive augmentation
	for _, name := range []string{"B8", "SCL"} {
		if v.Band(name) == nil {
			t.Errorf("input band %s was dropped", name)
		}
	}
}

func TestDarkPixelsRequireNonWater(t *testing.T) {
	b8 := bright()
	b8[3] = 1000 // (1,0): dark, vegetation
	b8[5] = 1000 // (1,2): dark, but water

	scl := allVeg()
	scl[5] = 6 // (1,2) is water

	prob := make([]float64, 9)
	in, scene := joinedScene(t, testCatalog(prob, b8, scl, 90))

	img := AddShadowBands(AddCloudBands(expr.Placeholder(), DefaultThresholds()), DefaultThresholds())
	v, err := in.ImageFor(context.Background(), img, scene)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dark := v.Band("dark_pixels")
	if dark == nil {
		t.Fatal("dark_pixels band missing")
	}
	if dark.At(1, 0) != 1 {
		t.Error("expected dark non-water pixel to be marked")
	}
	if dark.At(1, 2) != 0 {
		t.Error("expected dark water pixel to be suppressed")
	}
	if dark.At(0, 0) != 0 {
		t.Error("expected bright pixel to be unmarked")
	}
}

func TestDarkPixelThresholdBoundary(t *testing.T) {
	th := DefaultThresholds() // NIRDark 0.15 -> 1500 in stored units
	b8 := bright()
	b8[0] = 1500 // exactly at the cutoff
	b8[1] = 1499 // just below

	prob := make([]float64, 9)
	in, scene := joinedScene(t, testCatalog(prob, b8, allVeg(), 90))

	img := AddShadowBands(AddCloudBands(expr.Placeholder(), th), th)
	v, err := in.ImageFor(context.Background(), img, scene)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dark := v.Band("dark_pixels")
	if dark.At(0, 0) != 0 {
		t.Error("reflectance at the cutoff must not count as dark")
	}
	if dark.At(0, 1) != 1 {
		t.Error("reflectance below the cutoff must count as dark")
	}
}

// TestShadowAzimuthFormula verifies the 90-minus-azimuth direction with no
// wrap handling: azimuths above 90 produce negative angles, unchanged.
func TestShadowAzimuthFormula(t *testing.T) {
	tests := []struct {
		azimuth  float64
		expected float64
	}{
		{0, 90},
		{45, 45},
		{90, 0},
		{135.5, -45.5},
		{180, -90},
		{270, -180},
		{359.9, -269.9},
	}

	for _, tt := range tests {
		catalog := testCatalog(make([]float64, 9), bright(), allVeg(), tt.azimuth)
		in, scene := joinedScene(t, catalog)

		got, err := in.NumberFor(context.Background(), ShadowAzimuth(expr.Placeholder()), scene)
		if err != nil {
			t.Fatalf("azimuth %v: unexpected error: %v", tt.azimuth, err)
		}
		if got != tt.expected {
			t.Errorf("azimuth %v: expected %v, got %v", tt.azimuth, tt.expected, got)
		}
	}
}

func TestShadowProjectionFollowsDirection(t *testing.T) {
	// solar azimuth 90 puts the shadow direction at 0 degrees: due east on
	// the grid. Cloud at the center projects onto the pixel east of it.
	prob := []float64{
		10, 10, 10,
		10, 80, 10,
		10, 10, 10,
	}
	b8 := make([]float64, 9) // everything dark
	in, scene := joinedScene(t, testCatalog(prob, b8, allVeg(), 90))

	img := AddShadowBands(AddCloudBands(expr.Placeholder(), DefaultThresholds()), DefaultThresholds())
	v, err := in.ImageFor(context.Background(), img, scene)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	proj := v.Band("cloud_transform")
	if proj == nil {
		t.Fatal("cloud_transform band missing")
	}
	if proj.At(1, 2) != 1 {
		t.Error("expected pixel east of the cloud in the projection mask")
	}
	if proj.At(1, 0) != 0 {
		t.Error("expected pixel west of the cloud outside the projection mask")
	}

	shadows := v.Band("shadows")
	if shadows.At(1, 2) != 1 {
		t.Error("expected dark pixel under the projection to be shadow")
	}
	if shadows.At(0, 0) != 0 {
		t.Error("expected dark pixel outside the projection to not be shadow")
	}
}

// TestMaskCombinationMonotonic verifies clouds OR shadows before the
// morphological cleanup: any true input yields a true combined pixel.
func TestMaskCombinationMonotonic(t *testing.T) {
	tests := []struct {
		clouds, shadows float64
		expected        float64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 1},
		{1, 1, 1},
	}

	for _, tt := range tests {
		c := raster.Constant(1, 1, tt.clouds)
		s := raster.Constant(1, 1, tt.shadows)
		combined := c.Add(s).Gt(0)
		if got := combined.At(0, 0); got != tt.expected {
			t.Errorf("clouds=%v shadows=%v: expected %v, got %v",
				tt.clouds, tt.shadows, tt.expected, got)
		}
	}
}

// TestIsolatedPixelSuppressed is the end-to-end 3x3 scenario: one cloudy
// center pixel among clear neighbors must survive thresholding but vanish
// from the final mask after erosion and dilation.
func TestIsolatedPixelSuppressed(t *testing.T) {
	prob := []float64{
		10, 10, 10,
		10, 80, 10,
		10, 10, 10,
	}
	in, scene := joinedScene(t, testCatalog(prob, bright(), allVeg(), 90))

	v, err := in.ImageFor(context.Background(), AddCloudShadowMask(expr.Placeholder(), DefaultThresholds()), scene)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clouds := v.Band("clouds")
	if clouds.At(1, 1) != 1 {
		t.Fatal("expected center pixel marked cloud before cleanup")
	}
	if n := clouds.CountNonzero(); n != 1 {
		t.Fatalf("expected exactly the center pixel cloudy, got %d", n)
	}

	mask := v.Band("cloudmask")
	if mask == nil {
		t.Fatal("cloudmask band missing")
	}
	if n := mask.CountNonzero(); n != 0 {
		t.Errorf("expected isolated pixel suppressed by erosion, %d pixels remain", n)
	}
}

// TestMaskedAccumulatesBands checks the full per-scene augmentation: every
// intermediate band is appended and no input band is removed.
func TestMaskedAccumulatesBands(t *testing.T) {
	prob := make([]float64, 9)
	catalog := testCatalog(prob, bright(), allVeg(), 90)

	col := Masked(BuildCollection(testAOI, testDates, 60), DefaultThresholds())
	scenes, err := eval.NewInterpreter(catalog).Collection(context.Background(), col)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(scenes))
	}

	want := []string{"B8", "SCL", "probability", "clouds", "dark_pixels", "cloud_transform", "shadows", "cloudmask"}
	bands := scenes[0].Bands()
	if len(bands) != len(want) {
		t.Fatalf("expected %d bands, got %d", len(want), len(bands))
	}
	for i, name := range want {
		if bands[i].Name != name {
			t.Errorf("band %d: expected %s, got %s", i, name, bands[i].Name)
		}
	}
}

// TestBuildCollectionJoin mirrors the join scenario through the real
// collection builder: unmatched scenes on either side vanish silently.
func TestBuildCollectionJoin(t *testing.T) {
	when := day("2024-06-03")
	catalog := eval.NewCatalog()
	for _, id := range []string{"A", "B", "C"} {
		catalog.Add(SurfaceReflectanceCollection,
			eval.NewScene(id, when, testFootprint).WithProp(CloudPercentageProperty, 10))
	}
	for _, id := range []string{"A", "B", "D"} {
		catalog.Add(CloudProbabilityCollection, eval.NewScene(id, when, testFootprint))
	}

	scenes, err := eval.NewInterpreter(catalog).Collection(
		context.Background(), BuildCollection(testAOI, testDates, 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scenes) != 2 {
		t.Fatalf("expected {A,B}, got %d scenes", len(scenes))
	}
	for i, want := range []string{"A", "B"} {
		if scenes[i].ID != want {
			t.Errorf("scene %d: expected %s, got %s", i, want, scenes[i].ID)
		}
		if scenes[i].Linked(CloudProbabilitySlot) == nil {
			t.Errorf("scene %s: probability counterpart not attached", want)
		}
	}
}

func TestBuildCollectionCloudFilter(t *testing.T) {
	when := day("2024-06-03")
	catalog := eval.NewCatalog()
	catalog.Add(SurfaceReflectanceCollection,
		eval.NewScene("clear", when, testFootprint).WithProp(CloudPercentageProperty, 30),
		eval.NewScene("overcast", when, testFootprint).WithProp(CloudPercentageProperty, 95),
	)
	catalog.Add(CloudProbabilityCollection,
		eval.NewScene("clear", when, testFootprint),
		eval.NewScene("overcast", when, testFootprint),
	)

	scenes, err := eval.NewInterpreter(catalog).Collection(
		context.Background(), BuildCollection(testAOI, testDates, 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scenes) != 1 || scenes[0].ID != "clear" {
		t.Fatalf("expected only the clear scene, got %d scenes", len(scenes))
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Thresholds)
		wantErr bool
	}{
		{"defaults are valid", func(th *Thresholds) {}, false},
		{"probability above 100", func(th *Thresholds) { th.CloudProbability = 101 }, true},
		{"negative probability", func(th *Thresholds) { th.CloudProbability = -1 }, true},
		{"nir dark above 1", func(th *Thresholds) { th.NIRDark = 1.5 }, true},
		{"zero projection distance", func(th *Thresholds) { th.ProjectionDistance = 0 }, true},
		{"negative buffer", func(th *Thresholds) { th.Buffer = -10 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(th)
			err := th.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDateRangeValidate(t *testing.T) {
	ok := DateRange{Start: day("2024-06-03"), End: day("2024-06-04")}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	inverted := DateRange{Start: day("2024-06-04"), End: day("2024-06-03")}
	if err := inverted.Validate(); err == nil {
		t.Error("expected error for inverted range")
	}

	empty := DateRange{Start: day("2024-06-03"), End: day("2024-06-03")}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty range")
	}
}
