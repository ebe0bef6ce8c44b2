package domain

// ProtectedArea is a static reference feature such as a national park.
type ProtectedArea struct {
	Name     string
	Category string
	AreaKm2  float64
	Geometry Geometry
}

// ZoneCategory tags the activity a risk zone is flagged for.
type ZoneCategory string

// Known zone categories.
const (
	ZoneDeforestation ZoneCategory = "deforestation"
	ZoneMining        ZoneCategory = "mining"
)

// RiskZone is a statically defined region of elevated activity risk.
type RiskZone struct {
	Name     string
	Category ZoneCategory
	Geometry Geometry
}

// RiskFactors is the governance bundle attached to a country. Every value
// lies in [0, 1].
type RiskFactors struct {
	GovernanceScore          float64 `json:"governance_score"`
	EnvironmentalRegulations float64 `json:"environmental_regulations"`
	EnforcementCapacity      float64 `json:"enforcement_capacity"`
	CorruptionIndex          float64 `json:"corruption_index"`
	PoliticalStability       float64 `json:"political_stability"`
	EconomicDevelopment      float64 `json:"economic_development"`
}

// NeutralRiskFactors is the profile used for countries without data.
func NeutralRiskFactors() RiskFactors {
	return RiskFactors{
		GovernanceScore:          0.5,
		EnvironmentalRegulations: 0.5,
		EnforcementCapacity:      0.5,
		CorruptionIndex:          0.5,
		PoliticalStability:       0.5,
		EconomicDevelopment:      0.5,
	}
}

// Clamped returns a copy with every factor restricted to [0, 1].
func (f RiskFactors) Clamped() RiskFactors {
	return RiskFactors{
		GovernanceScore:          Clamp01(f.GovernanceScore),
		EnvironmentalRegulations: Clamp01(f.EnvironmentalRegulations),
		EnforcementCapacity:      Clamp01(f.EnforcementCapacity),
		CorruptionIndex:          Clamp01(f.CorruptionIndex),
		PoliticalStability:       Clamp01(f.PoliticalStability),
		EconomicDevelopment:      Clamp01(f.EconomicDevelopment),
	}
}

// UnknownCountryName is reported when no boundary contains a point.
const UnknownCountryName = "Unknown"

// CountryProfile couples a country boundary with its risk factors.
type CountryProfile struct {
	Name     string
	Boundary Geometry
	Factors  RiskFactors
}

// UnknownCountry returns the sentinel profile for uncovered locations.
func UnknownCountry() CountryProfile {
	return CountryProfile{Name: UnknownCountryName, Factors: NeutralRiskFactors()}
}

// IsUnknown reports whether the profile is the sentinel.
func (p CountryProfile) IsUnknown() bool {
	return p.Name == UnknownCountryName && p.Boundary == nil
}

// ReferenceSet is the full static dataset backing spatial queries. Slice
// order is significant: country lookup returns the first containing boundary.
type ReferenceSet struct {
	Version        string
	ProtectedAreas []ProtectedArea
	Countries      []CountryProfile
	RiskZones      []RiskZone
}

// AreaDistance pairs a protected area with its distance from a query point.
type AreaDistance struct {
	Area       ProtectedArea
	DistanceKm float64
}

// ZoneProximity describes a query point's relation to one risk zone.
type ZoneProximity struct {
	Zone       RiskZone
	DistanceKm float64
	Inside     bool
}
