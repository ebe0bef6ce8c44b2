package domain

import "time"

// NearestArea describes the closest protected area to a point.
type NearestArea struct {
	Name       string  `json:"name"`
	Category   string  `json:"type"`
	DistanceKm float64 `json:"distance_km"`
	AreaKm2    float64 `json:"area_km2"`
}

// ProtectedAreaSummary is the proximity part of an analysis.
type ProtectedAreaSummary struct {
	Nearest       *NearestArea `json:"nearest_protected_area"`
	MinDistanceKm *float64     `json:"min_distance_km"`
	ProximityRisk RiskLevel    `json:"proximity_risk,omitempty"`
	NearbyCount   int          `json:"total_protected_areas_nearby"`
	Error         string       `json:"error,omitempty"`
}

// CountryContext is the governance part of an analysis.
type CountryContext struct {
	Country                  string      `json:"country"`
	RiskFactors              RiskFactors `json:"risk_factors"`
	GovernanceScore          float64     `json:"governance_score"`
	EnvironmentalRegulations float64     `json:"environmental_regulations"`
	EnforcementCapacity      float64     `json:"enforcement_capacity"`
	Error                    string      `json:"error,omitempty"`
}

// ZoneAssessment is one risk zone's relation to the analysed point.
type ZoneAssessment struct {
	Zone       string       `json:"zone"`
	Category   ZoneCategory `json:"category"`
	Inside     bool         `json:"inside"`
	DistanceKm float64      `json:"distance_km"`
	RiskLevel  RiskLevel    `json:"risk_level"`
}

// RiskZoneSummary is the zone part of an analysis.
type RiskZoneSummary struct {
	Zones         []ZoneAssessment `json:"zone_analysis"`
	OverallRisk   RiskLevel        `json:"overall_risk,omitempty"`
	HighRiskZones int              `json:"high_risk_zones_count"`
	Error         string           `json:"error,omitempty"`
}

// LandUseCategory is one class of the land-cover distribution.
type LandUseCategory string

// Land-use categories.
const (
	LandForest      LandUseCategory = "forest"
	LandAgriculture LandUseCategory = "agriculture"
	LandUrban       LandUseCategory = "urban"
	LandWater       LandUseCategory = "water"
	LandOther       LandUseCategory = "other"
)

// LandUseCategories lists the categories in reporting order.
var LandUseCategories = []LandUseCategory{LandForest, LandAgriculture, LandUrban, LandWater, LandOther}

// LandUseDistribution maps each category to its share. Shares sum to 1.
type LandUseDistribution map[LandUseCategory]float64

// Normalize scales the distribution to sum to 1, clamping negatives to 0.
// An all-zero distribution becomes entirely LandOther.
func (d LandUseDistribution) Normalize() LandUseDistribution {
	out := make(LandUseDistribution, len(LandUseCategories))
	total := 0.0
	for _, c := range LandUseCategories {
		v := d[c]
		if v < 0 || v != v {
			v = 0
		}
		out[c] = v
		total += v
	}
	if total == 0 {
		for _, c := range LandUseCategories {
			out[c] = 0
		}
		out[LandOther] = 1
		return out
	}
	for c, v := range out {
		out[c] = v / total
	}
	return out
}

// Dominant returns the category with the largest share, ties broken by
// reporting order.
func (d LandUseDistribution) Dominant() LandUseCategory {
	best := LandOther
	bestShare := -1.0
	for _, c := range LandUseCategories {
		if d[c] > bestShare {
			best, bestShare = c, d[c]
		}
	}
	return best
}

// LandUseEstimate is the land-cover part of an analysis.
type LandUseEstimate struct {
	Distribution          LandUseDistribution `json:"land_use_distribution,omitempty"`
	Dominant              LandUseCategory     `json:"dominant_land_use,omitempty"`
	ForestCoverage        float64             `json:"forest_coverage"`
	AgriculturalIntensity float64             `json:"agricultural_intensity"`
	UrbanizationLevel     float64             `json:"urbanization_level"`
	Error                 string              `json:"error,omitempty"`
}

// ClimateZone buckets a latitude band.
type ClimateZone string

// Climate zones.
const (
	ClimateTropical    ClimateZone = "tropical"
	ClimateSubtropical ClimateZone = "subtropical"
	ClimateTemperate   ClimateZone = "temperate"
)

// ClimateZoneFor returns the zone for a latitude: |lat| < 10 tropical,
// < 30 subtropical, otherwise temperate.
func ClimateZoneFor(lat float64) ClimateZone {
	abs := lat
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 10:
		return ClimateTropical
	case abs < 30:
		return ClimateSubtropical
	default:
		return ClimateTemperate
	}
}

// EnvironmentalEstimate is the environmental part of an analysis.
type EnvironmentalEstimate struct {
	ClimateZone                  ClimateZone `json:"climate_zone,omitempty"`
	TemperatureC                 float64     `json:"temperature_c"`
	PrecipitationMmYear          float64     `json:"precipitation_mm_year"`
	BiodiversityIndex            float64     `json:"biodiversity_index"`
	WaterStressIndex             float64     `json:"water_stress_index"`
	CarbonSequestrationPotential float64     `json:"carbon_sequestration_potential"`
	EcosystemServicesValue       float64     `json:"ecosystem_services_value"`
	Error                        string      `json:"error,omitempty"`
}

// GeospatialAnalysis is the composite context of one coordinate. It is built
// once per request and never mutated afterwards.
type GeospatialAnalysis struct {
	Coordinates    Coordinate            `json:"coordinates"`
	Bounds         Extent                `json:"bounds"`
	ProtectedAreas ProtectedAreaSummary  `json:"protected_areas"`
	Country        CountryContext        `json:"country_context"`
	RiskZones      RiskZoneSummary       `json:"risk_zones"`
	LandUse        LandUseEstimate       `json:"land_use"`
	Environment    EnvironmentalEstimate `json:"environmental_factors"`
	ReferenceSet   string                `json:"reference_version,omitempty"`
	AnalyzedAt     time.Time             `json:"analysis_timestamp"`
}

// Degraded lists the sub-fields that carry an error.
func (a GeospatialAnalysis) Degraded() []string {
	var out []string
	if a.ProtectedAreas.Error != "" {
		out = append(out, "protected_areas")
	}
	if a.Country.Error != "" {
		out = append(out, "country_context")
	}
	if a.RiskZones.Error != "" {
		out = append(out, "risk_zones")
	}
	if a.LandUse.Error != "" {
		out = append(out, "land_use")
	}
	if a.Environment.Error != "" {
		out = append(out, "environmental_factors")
	}
	return out
}

// RiskType selects the scoring rule of a risk map.
type RiskType string

// Supported risk-map types.
const (
	RiskTypeDeforestation RiskType = "deforestation"
	RiskTypeMining        RiskType = "mining"
)

// RiskMapResolution is the number of samples along each grid axis.
const RiskMapResolution = 20

// RiskMap is a sampled risk-intensity grid. Grid is indexed [lat][lng].
type RiskMap struct {
	RiskType RiskType    `json:"risk_type"`
	Bounds   Extent      `json:"bounds"`
	Grid     [][]float64 `json:"risk_grid"`
	LngAxis  []float64   `json:"longitude_grid"`
	LatAxis  []float64   `json:"latitude_grid"`
	Max      float64     `json:"max_risk"`
	Min      float64     `json:"min_risk"`
	Mean     float64     `json:"mean_risk"`
}

// FeatureType selects the reference layer of a distance query.
type FeatureType string

// Supported distance feature types.
const (
	FeatureProtectedAreas    FeatureType = "protected_areas"
	FeatureRiskZones         FeatureType = "risk_zones"
	FeatureCountryBoundaries FeatureType = "country_boundaries"
)

// AcquisitionGeometry describes where the imaging satellite was when the
// scene was captured.
type AcquisitionGeometry struct {
	SubSatellitePoint *Coordinate `json:"sub_satellite_point,omitempty"`
	AltitudeKm        float64     `json:"altitude_km,omitempty"`
	GroundOffsetKm    float64     `json:"ground_offset_km,omitempty"`
	AcquiredAt        *time.Time  `json:"acquired_at,omitempty"`
	Error             string      `json:"error,omitempty"`
}
