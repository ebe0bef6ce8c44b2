package domain

// RiskLevel is an ordinal risk tier.
type RiskLevel string

// Risk tiers, lowest first.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns the ordinal position of the level; unknown levels rank below LOW.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// Score thresholds on the 0-100 supplier risk scale.
const (
	ScoreCritical = 80.0
	ScoreHigh     = 60.0
	ScoreMedium   = 40.0
)

// Protected-area proximity breakpoints in kilometres.
const (
	ProximityCriticalKm = 1.0
	ProximityHighKm     = 5.0
	ProximityMediumKm   = 20.0
	// NearbyRadiusKm is the radius used to count nearby protected areas.
	NearbyRadiusKm = 50.0
)

// Risk-zone distance breakpoints in kilometres.
const (
	ZoneHighKm   = 10.0
	ZoneMediumKm = 50.0
)

// ClassifyScore maps a 0-100 risk score to a tier.
func ClassifyScore(score float64) RiskLevel {
	switch {
	case score >= ScoreCritical:
		return RiskCritical
	case score >= ScoreHigh:
		return RiskHigh
	case score >= ScoreMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClassifyProximity maps the distance to the nearest protected area to a tier.
func ClassifyProximity(distanceKm float64) RiskLevel {
	switch {
	case distanceKm < ProximityCriticalKm:
		return RiskCritical
	case distanceKm < ProximityHighKm:
		return RiskHigh
	case distanceKm < ProximityMediumKm:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClassifyZoneDistance maps containment or distance to a risk zone to a tier.
func ClassifyZoneDistance(inside bool, distanceKm float64) RiskLevel {
	switch {
	case inside || distanceKm < ZoneHighKm:
		return RiskHigh
	case distanceKm < ZoneMediumKm:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// ClampScore restricts v to [0, 100].
func ClampScore(v float64) float64 {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
