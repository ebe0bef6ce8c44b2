package application

import (
	"math/rand"
	"sync"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// RandomSource creates the generator used by the reference estimators.
type RandomSource func() *rand.Rand

// lockedRand serialises access to a *rand.Rand.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand(src RandomSource) *lockedRand {
	return &lockedRand{rng: src()}
}

// uniform draws from [lo, hi).
func (l *lockedRand) uniform(lo, hi float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo + l.rng.Float64()*(hi-lo)
}

// landOtherWeight is the fixed pre-normalisation weight of LandOther.
const landOtherWeight = 0.6

// RandomLandCover is the placeholder land-cover estimator. It samples each
// category from a fixed range and normalises.
type RandomLandCover struct {
	rng *lockedRand
}

// NewRandomLandCover creates the estimator.
func NewRandomLandCover(src RandomSource) *RandomLandCover {
	return &RandomLandCover{rng: newLockedRand(src)}
}

// EstimateLandCover implements output.LandCoverEstimator.
func (r *RandomLandCover) EstimateLandCover(_ domain.Extent) (domain.LandUseDistribution, error) {
	d := domain.LandUseDistribution{
		domain.LandForest:      r.rng.uniform(0.3, 0.8),
		domain.LandAgriculture: r.rng.uniform(0.1, 0.4),
		domain.LandUrban:       r.rng.uniform(0, 0.2),
		domain.LandWater:       r.rng.uniform(0, 0.1),
		domain.LandOther:       landOtherWeight,
	}
	return d.Normalize(), nil
}

type climateRange struct {
	tempLo, tempHi     float64
	precipLo, precipHi float64
}

var climateRanges = map[domain.ClimateZone]climateRange{
	domain.ClimateTropical:    {25, 35, 1500, 3000},
	domain.ClimateSubtropical: {15, 25, 500, 1500},
	domain.ClimateTemperate:   {5, 20, 300, 1000},
}

// LatitudeEnvironment is the placeholder environmental estimator. The climate
// zone follows latitude; everything else is sampled.
type LatitudeEnvironment struct {
	rng *lockedRand
}

// NewLatitudeEnvironment creates the estimator.
func NewLatitudeEnvironment(src RandomSource) *LatitudeEnvironment {
	return &LatitudeEnvironment{rng: newLockedRand(src)}
}

// EstimateEnvironment implements output.EnvironmentalEstimator.
func (l *LatitudeEnvironment) EstimateEnvironment(c domain.Coordinate) (domain.EnvironmentalEstimate, error) {
	zone := domain.ClimateZoneFor(c.Lat)
	cr := climateRanges[zone]
	return domain.EnvironmentalEstimate{
		ClimateZone:                  zone,
		TemperatureC:                 l.rng.uniform(cr.tempLo, cr.tempHi),
		PrecipitationMmYear:          l.rng.uniform(cr.precipLo, cr.precipHi),
		BiodiversityIndex:            l.rng.uniform(0.3, 0.9),
		WaterStressIndex:             l.rng.uniform(0.1, 0.8),
		CarbonSequestrationPotential: l.rng.uniform(0.2, 0.8),
		EcosystemServicesValue:       l.rng.uniform(0.3, 0.9),
	}, nil
}
