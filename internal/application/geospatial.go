package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// LandUseHalfSpan is the half-width in degrees of the default land-use
// extent around a point.
const LandUseHalfSpan = 0.01

// DefaultRiskMapExtent is the extent rendered when a risk map request has no
// bounds.
var DefaultRiskMapExtent = domain.Extent{MinLat: -10, MinLng: -60, MaxLat: -5, MaxLng: -50}

// Risk map contributions.
const (
	deforestationNearAreaKm    = 5.0
	deforestationNearAreaScore = 0.8
	deforestationAreaKm        = 20.0
	deforestationAreaScore     = 0.4
	deforestationZoneScore     = 0.6
	miningZoneScore            = 0.8
	miningNearAreaKm           = 10.0
	miningNearAreaScore        = 0.6
)

// GeospatialEngine turns coordinates into structured risk context. It does no
// I/O; the estimators it is given must not either.
type GeospatialEngine struct {
	refs        ReferenceProvider
	landCover   output.LandCoverEstimator
	environment output.EnvironmentalEstimator
	logger      *slog.Logger
	now         func() time.Time
}

// NewGeospatialEngine creates a new engine.
func NewGeospatialEngine(
	refs ReferenceProvider,
	landCover output.LandCoverEstimator,
	environment output.EnvironmentalEstimator,
	logger *slog.Logger,
) *GeospatialEngine {
	return &GeospatialEngine{
		refs:        refs,
		landCover:   landCover,
		environment: environment,
		logger:      logger,
		now:         time.Now,
	}
}

// AnalyzeLocation builds the full geospatial context of c. A failing part is
// reported in its Error field and never aborts the others.
func (e *GeospatialEngine) AnalyzeLocation(_ context.Context, c domain.Coordinate, bounds domain.BoundingArea) domain.GeospatialAnalysis {
	store := e.refs.Store()
	extent := bounds.Extent(domain.ExtentAround(c, LandUseHalfSpan))

	a := domain.GeospatialAnalysis{
		Coordinates: c,
		Bounds:      extent,
		AnalyzedAt:  e.now().UTC(),
	}
	if store != nil {
		a.ReferenceSet = store.Version()
	}

	var err error
	if a.ProtectedAreas, err = guard(e, "protected_areas", func() (domain.ProtectedAreaSummary, error) {
		return protectedAreaSummary(store, c)
	}); err != nil {
		a.ProtectedAreas = domain.ProtectedAreaSummary{Error: err.Error()}
	}

	if a.Country, err = guard(e, "country_context", func() (domain.CountryContext, error) {
		return countryContext(store, c)
	}); err != nil {
		a.Country = domain.CountryContext{Error: err.Error()}
	}

	if a.RiskZones, err = guard(e, "risk_zones", func() (domain.RiskZoneSummary, error) {
		return riskZoneSummary(store, c)
	}); err != nil {
		a.RiskZones = domain.RiskZoneSummary{Error: err.Error()}
	}

	if a.LandUse, err = guard(e, "land_use", func() (domain.LandUseEstimate, error) {
		return e.landUse(extent)
	}); err != nil {
		a.LandUse = domain.LandUseEstimate{Error: err.Error()}
	}

	if a.Environment, err = guard(e, "environmental_factors", func() (domain.EnvironmentalEstimate, error) {
		return e.environmentFor(c)
	}); err != nil {
		a.Environment = domain.EnvironmentalEstimate{Error: err.Error()}
	}

	return a
}

// guard runs one analysis step, converting panics into errors.
func guard[T any](e *GeospatialEngine, part string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: %v", part, rec)
		}
		if err != nil {
			e.logger.Error("geospatial analysis step failed", "part", part, "error", err)
		}
	}()
	return fn()
}

func protectedAreaSummary(store *ReferenceStore, c domain.Coordinate) (domain.ProtectedAreaSummary, error) {
	if store == nil {
		return domain.ProtectedAreaSummary{}, domain.ErrReferenceNotLoaded
	}

	s := domain.ProtectedAreaSummary{ProximityRisk: domain.RiskLow}
	for _, d := range store.ProtectedAreaDistances(c) {
		if d.DistanceKm < domain.NearbyRadiusKm {
			s.NearbyCount++
		}
		if s.Nearest == nil || d.DistanceKm < s.Nearest.DistanceKm {
			s.Nearest = &domain.NearestArea{
				Name:       d.Area.Name,
				Category:   d.Area.Category,
				DistanceKm: d.DistanceKm,
				AreaKm2:    d.Area.AreaKm2,
			}
		}
	}
	if s.Nearest != nil {
		km := s.Nearest.DistanceKm
		s.MinDistanceKm = &km
		s.ProximityRisk = domain.ClassifyProximity(km)
	}
	return s, nil
}

func countryContext(store *ReferenceStore, c domain.Coordinate) (domain.CountryContext, error) {
	if store == nil {
		return domain.CountryContext{}, domain.ErrReferenceNotLoaded
	}

	p := store.ContainingCountry(c)
	f := p.Factors.Clamped()
	return domain.CountryContext{
		Country:                  p.Name,
		RiskFactors:              f,
		GovernanceScore:          f.GovernanceScore,
		EnvironmentalRegulations: f.EnvironmentalRegulations,
		EnforcementCapacity:      f.EnforcementCapacity,
	}, nil
}

func riskZoneSummary(store *ReferenceStore, c domain.Coordinate) (domain.RiskZoneSummary, error) {
	if store == nil {
		return domain.RiskZoneSummary{}, domain.ErrReferenceNotLoaded
	}

	s := domain.RiskZoneSummary{
		Zones:       []domain.ZoneAssessment{},
		OverallRisk: domain.RiskLow,
	}
	for _, z := range store.ZonesNear(c) {
		level := domain.ClassifyZoneDistance(z.Inside, z.DistanceKm)
		s.Zones = append(s.Zones, domain.ZoneAssessment{
			Zone:       z.Zone.Name,
			Category:   z.Zone.Category,
			Inside:     z.Inside,
			DistanceKm: z.DistanceKm,
			RiskLevel:  level,
		})
		if level == domain.RiskHigh {
			s.HighRiskZones++
		}
		if level.Rank() > s.OverallRisk.Rank() {
			s.OverallRisk = level
		}
	}
	return s, nil
}

func (e *GeospatialEngine) landUse(extent domain.Extent) (domain.LandUseEstimate, error) {
	dist, err := e.landCover.EstimateLandCover(extent)
	if err != nil {
		return domain.LandUseEstimate{}, err
	}
	dist = dist.Normalize()
	return domain.LandUseEstimate{
		Distribution:          dist,
		Dominant:              dist.Dominant(),
		ForestCoverage:        dist[domain.LandForest],
		AgriculturalIntensity: dist[domain.LandAgriculture],
		UrbanizationLevel:     dist[domain.LandUrban],
	}, nil
}

func (e *GeospatialEngine) environmentFor(c domain.Coordinate) (domain.EnvironmentalEstimate, error) {
	env, err := e.environment.EstimateEnvironment(c)
	if err != nil {
		return domain.EnvironmentalEstimate{}, err
	}
	env.BiodiversityIndex = domain.Clamp01(env.BiodiversityIndex)
	env.WaterStressIndex = domain.Clamp01(env.WaterStressIndex)
	env.CarbonSequestrationPotential = domain.Clamp01(env.CarbonSequestrationPotential)
	env.EcosystemServicesValue = domain.Clamp01(env.EcosystemServicesValue)
	return env, nil
}

// RiskMap samples a RiskMapResolution x RiskMapResolution grid over bounds.
func (e *GeospatialEngine) RiskMap(_ context.Context, bounds domain.BoundingArea, riskType domain.RiskType) (*domain.RiskMap, error) {
	var score func(*ReferenceStore, domain.Coordinate) float64
	switch riskType {
	case domain.RiskTypeDeforestation:
		score = deforestationScore
	case domain.RiskTypeMining:
		score = miningScore
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedRiskType, riskType)
	}

	store := e.refs.Store()
	if store == nil {
		return nil, domain.ErrReferenceNotLoaded
	}

	extent := bounds.Extent(DefaultRiskMapExtent)
	m := &domain.RiskMap{
		RiskType: riskType,
		Bounds:   extent,
		LngAxis:  linspace(extent.MinLng, extent.MaxLng, domain.RiskMapResolution),
		LatAxis:  linspace(extent.MinLat, extent.MaxLat, domain.RiskMapResolution),
		Grid:     make([][]float64, domain.RiskMapResolution),
	}

	sum := 0.0
	first := true
	for i, lat := range m.LatAxis {
		row := make([]float64, domain.RiskMapResolution)
		for j, lng := range m.LngAxis {
			v := domain.Clamp01(score(store, domain.Coordinate{Lat: lat, Lng: lng}))
			row[j] = v
			sum += v
			if first || v > m.Max {
				m.Max = v
			}
			if first || v < m.Min {
				m.Min = v
			}
			first = false
		}
		m.Grid[i] = row
	}
	m.Mean = sum / float64(domain.RiskMapResolution*domain.RiskMapResolution)
	return m, nil
}

func deforestationScore(store *ReferenceStore, c domain.Coordinate) float64 {
	risk := 0.0
	for _, d := range store.ProtectedAreaDistances(c) {
		switch {
		case d.DistanceKm < deforestationNearAreaKm:
			risk += deforestationNearAreaScore
		case d.DistanceKm < deforestationAreaKm:
			risk += deforestationAreaScore
		}
	}
	for _, z := range store.RiskZones() {
		if z.Category == domain.ZoneDeforestation && z.Geometry.Contains(c) {
			risk += deforestationZoneScore
		}
	}
	return risk
}

func miningScore(store *ReferenceStore, c domain.Coordinate) float64 {
	risk := 0.0
	for _, z := range store.RiskZones() {
		if z.Category == domain.ZoneMining && z.Geometry.Contains(c) {
			risk += miningZoneScore
		}
	}
	for _, d := range store.ProtectedAreaDistances(c) {
		if d.DistanceKm < miningNearAreaKm {
			risk += miningNearAreaScore
		}
	}
	return risk
}

// linspace returns n evenly spaced samples over [lo, hi], both inclusive.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// DistanceToFeatures returns the distance in kilometres from c to every
// feature of one reference layer, keyed by feature name.
func (e *GeospatialEngine) DistanceToFeatures(_ context.Context, c domain.Coordinate, featureType domain.FeatureType) (map[string]float64, error) {
	store := e.refs.Store()
	if store == nil {
		return nil, domain.ErrReferenceNotLoaded
	}

	switch featureType {
	case domain.FeatureProtectedAreas:
		out := make(map[string]float64)
		for _, d := range store.ProtectedAreaDistances(c) {
			out[d.Area.Name] = d.DistanceKm
		}
		return out, nil
	case domain.FeatureRiskZones:
		out := make(map[string]float64)
		for _, z := range store.ZonesNear(c) {
			out[z.Zone.Name] = z.DistanceKm
		}
		return out, nil
	case domain.FeatureCountryBoundaries:
		return store.CountryDistances(c), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFeatureType, featureType)
	}
}
