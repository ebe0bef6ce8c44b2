package application

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

func TestAnalyzeLocationInsideProtectedArea(t *testing.T) {
	engine := newTestEngine()

	a := engine.AnalyzeLocation(context.Background(), domain.NewCoordinate(-7.5, -55), domain.BoundingArea{})

	if got := a.Degraded(); len(got) != 0 {
		t.Fatalf("Degraded() = %v, want none", got)
	}
	if a.ReferenceSet != "test" {
		t.Errorf("ReferenceSet = %q, want test", a.ReferenceSet)
	}

	pa := a.ProtectedAreas
	if pa.Nearest == nil || pa.Nearest.Name != "Amazon National Park" {
		t.Fatalf("Nearest = %+v, want Amazon National Park", pa.Nearest)
	}
	if pa.MinDistanceKm == nil || *pa.MinDistanceKm != 0 {
		t.Errorf("MinDistanceKm = %v, want 0", pa.MinDistanceKm)
	}
	if pa.ProximityRisk != domain.RiskCritical {
		t.Errorf("ProximityRisk = %s, want CRITICAL", pa.ProximityRisk)
	}
	if pa.NearbyCount != 1 {
		t.Errorf("NearbyCount = %d, want 1", pa.NearbyCount)
	}

	if a.Country.Country != "Brazil" || a.Country.GovernanceScore != 0.6 {
		t.Errorf("Country = %+v, want Brazil with governance 0.6", a.Country)
	}

	rz := a.RiskZones
	if len(rz.Zones) != 4 {
		t.Fatalf("Zones = %d, want 4", len(rz.Zones))
	}
	if !rz.Zones[0].Inside || rz.Zones[0].RiskLevel != domain.RiskHigh {
		t.Errorf("hotspot_1 = %+v, want inside HIGH", rz.Zones[0])
	}
	if rz.OverallRisk != domain.RiskHigh || rz.HighRiskZones != 1 {
		t.Errorf("OverallRisk = %s with %d high zones, want HIGH with 1", rz.OverallRisk, rz.HighRiskZones)
	}

	wantBounds := domain.ExtentAround(domain.NewCoordinate(-7.5, -55), LandUseHalfSpan)
	if a.Bounds != wantBounds {
		t.Errorf("Bounds = %+v, want %+v", a.Bounds, wantBounds)
	}
}

func TestAnalyzeLocationUnknownCountry(t *testing.T) {
	engine := newTestEngine()

	a := engine.AnalyzeLocation(context.Background(), domain.NewCoordinate(45, -30), domain.BoundingArea{})

	if a.Country.Country != domain.UnknownCountryName {
		t.Errorf("Country = %s, want Unknown", a.Country.Country)
	}
	if a.Country.RiskFactors != domain.NeutralRiskFactors() {
		t.Errorf("RiskFactors = %+v, want neutral", a.Country.RiskFactors)
	}
	if a.RiskZones.OverallRisk != domain.RiskLow {
		t.Errorf("OverallRisk = %s, want LOW", a.RiskZones.OverallRisk)
	}
	if a.ProtectedAreas.ProximityRisk != domain.RiskLow {
		t.Errorf("ProximityRisk = %s, want LOW", a.ProtectedAreas.ProximityRisk)
	}
}

func TestAnalyzeLocationProperties(t *testing.T) {
	engine := newTestEngine()

	points := []domain.Coordinate{
		domain.NewCoordinate(-7.5, -55),
		domain.NewCoordinate(0, 20),
		domain.NewCoordinate(3, 115),
		domain.NewCoordinate(60, 10),
		domain.NewCoordinate(-89, 179),
	}

	for _, p := range points {
		a := engine.AnalyzeLocation(context.Background(), p, domain.BoundingArea{})

		sum := 0.0
		for _, v := range a.LandUse.Distribution {
			if v < 0 {
				t.Errorf("%v: negative land-use share %f", p, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("%v: land-use shares sum to %f", p, sum)
		}

		env := a.Environment
		for name, v := range map[string]float64{
			"biodiversity": env.BiodiversityIndex,
			"water_stress": env.WaterStressIndex,
			"carbon":       env.CarbonSequestrationPotential,
			"ecosystem":    env.EcosystemServicesValue,
			"governance":   a.Country.GovernanceScore,
			"regulations":  a.Country.EnvironmentalRegulations,
			"enforcement":  a.Country.EnforcementCapacity,
		} {
			if v < 0 || v > 1 {
				t.Errorf("%v: %s = %f outside [0,1]", p, name, v)
			}
		}
		if env.ClimateZone != domain.ClimateZoneFor(p.Lat) {
			t.Errorf("%v: climate zone %s", p, env.ClimateZone)
		}

		high := 0
		for _, z := range a.RiskZones.Zones {
			if z.RiskLevel == domain.RiskHigh {
				high++
			}
		}
		if high != a.RiskZones.HighRiskZones {
			t.Errorf("%v: HighRiskZones = %d, counted %d", p, a.RiskZones.HighRiskZones, high)
		}
	}
}

func TestAnalyzeLocationDegradesFailingParts(t *testing.T) {
	tests := []struct {
		name      string
		landCover failingLandCover
	}{
		{"estimator error", failingLandCover{}},
		{"estimator panic", failingLandCover{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewGeospatialEngine(
				NewStaticReference(NewReferenceStore(testReferenceSet())),
				tt.landCover,
				NewLatitudeEnvironment(seeded(1)),
				testLogger(),
			)

			a := engine.AnalyzeLocation(context.Background(), domain.NewCoordinate(-7.5, -55), domain.BoundingArea{})

			got := a.Degraded()
			if len(got) != 1 || got[0] != "land_use" {
				t.Errorf("Degraded() = %v, want [land_use]", got)
			}
			if a.ProtectedAreas.Nearest == nil {
				t.Error("other parts should still be computed")
			}
		})
	}
}

func TestAnalyzeLocationWithoutReference(t *testing.T) {
	engine := NewGeospatialEngine(NewStaticReference(nil), NewRandomLandCover(seeded(1)), NewLatitudeEnvironment(seeded(2)), testLogger())

	a := engine.AnalyzeLocation(context.Background(), domain.NewCoordinate(0, 0), domain.BoundingArea{})

	if len(a.Degraded()) != 3 {
		t.Errorf("Degraded() = %v, want the three reference-backed parts", a.Degraded())
	}
	if a.LandUse.Error != "" {
		t.Errorf("land use should not depend on reference data: %s", a.LandUse.Error)
	}
}

func TestRiskMap(t *testing.T) {
	engine := newTestEngine()

	for _, rt := range []domain.RiskType{domain.RiskTypeDeforestation, domain.RiskTypeMining} {
		t.Run(string(rt), func(t *testing.T) {
			m, err := engine.RiskMap(context.Background(), domain.BoundingArea{}, rt)
			if err != nil {
				t.Fatalf("RiskMap() error = %v", err)
			}
			if m.Bounds != DefaultRiskMapExtent {
				t.Errorf("Bounds = %+v, want default extent", m.Bounds)
			}
			if len(m.Grid) != domain.RiskMapResolution || len(m.LatAxis) != domain.RiskMapResolution || len(m.LngAxis) != domain.RiskMapResolution {
				t.Fatalf("grid dimensions wrong")
			}
			if m.LngAxis[0] != -60 || m.LngAxis[19] != -50 || m.LatAxis[0] != -10 || m.LatAxis[19] != -5 {
				t.Errorf("axes = %v / %v", m.LngAxis, m.LatAxis)
			}

			sum := 0.0
			for _, row := range m.Grid {
				if len(row) != domain.RiskMapResolution {
					t.Fatalf("row length = %d", len(row))
				}
				for _, v := range row {
					if v < 0 || v > 1 {
						t.Errorf("cell %f outside [0,1]", v)
					}
					sum += v
				}
			}
			if math.Abs(m.Mean-sum/400) > 1e-9 {
				t.Errorf("Mean = %f, want %f", m.Mean, sum/400)
			}
			if m.Min > m.Mean || m.Mean > m.Max {
				t.Errorf("min/mean/max = %f/%f/%f", m.Min, m.Mean, m.Max)
			}
		})
	}
}

func TestRiskMapDeforestationSaturatesInsideHotspot(t *testing.T) {
	engine := newTestEngine()

	m, err := engine.RiskMap(context.Background(), domain.BoundingArea{}, domain.RiskTypeDeforestation)
	if err != nil {
		t.Fatalf("RiskMap() error = %v", err)
	}
	// The default extent is both the Amazon park and hotspot_1: 0.8 + 0.6.
	if m.Min != 1 || m.Max != 1 {
		t.Errorf("min/max = %f/%f, want clamped to 1", m.Min, m.Max)
	}
}

func TestRiskMapUnsupportedType(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.RiskMap(context.Background(), domain.BoundingArea{}, "flooding")
	if !errors.Is(err, domain.ErrUnsupportedRiskType) {
		t.Errorf("RiskMap() error = %v, want ErrUnsupportedRiskType", err)
	}
}

func TestDistanceToFeatures(t *testing.T) {
	engine := newTestEngine()
	c := domain.NewCoordinate(-7.5, -55)

	tests := []struct {
		feature domain.FeatureType
		wantLen int
		key     string
		want    float64
	}{
		{domain.FeatureProtectedAreas, 3, "Amazon National Park", 0},
		{domain.FeatureRiskZones, 4, "mining_risk_zone_1", 555},
		{domain.FeatureCountryBoundaries, 3, "Brazil", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			got, err := engine.DistanceToFeatures(context.Background(), c, tt.feature)
			if err != nil {
				t.Fatalf("DistanceToFeatures() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
			if math.Abs(got[tt.key]-tt.want) > 1e-9 {
				t.Errorf("%s = %f, want %f", tt.key, got[tt.key], tt.want)
			}
		})
	}

	if _, err := engine.DistanceToFeatures(context.Background(), c, "rivers"); !errors.Is(err, domain.ErrUnsupportedFeatureType) {
		t.Errorf("unsupported feature error = %v", err)
	}
}
