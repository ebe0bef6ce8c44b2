package output

import "github.com/dogwifhat6/supplychain-lens/internal/domain"

// LandCoverEstimator estimates the land-use distribution over an extent.
type LandCoverEstimator interface {
	EstimateLandCover(bounds domain.Extent) (domain.LandUseDistribution, error)
}

// EnvironmentalEstimator estimates environmental indicators at a coordinate.
type EnvironmentalEstimator interface {
	EstimateEnvironment(c domain.Coordinate) (domain.EnvironmentalEstimate, error)
}
