package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// Detection listing limits.
const (
	DefaultDetectionLimit = 100
	MaxDetectionLimit     = 1000
)

// CacheConfig sets cache lifetimes.
type CacheConfig struct {
	DefaultTTL time.Duration
	TrendsTTL  time.Duration
}

// AnalyticsService answers read-side queries, caching the expensive ones.
// A nil cache disables caching.
type AnalyticsService struct {
	gateway output.PersistenceGateway
	engine  *GeospatialEngine
	cache   output.Cache
	codec   output.ValueCodec
	cfg     CacheConfig
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(
	gateway output.PersistenceGateway,
	engine *GeospatialEngine,
	cache output.Cache,
	codec output.ValueCodec,
	cfg CacheConfig,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		gateway: gateway,
		engine:  engine,
		cache:   cache,
		codec:   codec,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// SupplierDetections returns the newest detections for a supplier. A zero
// limit selects DefaultDetectionLimit.
func (s *AnalyticsService) SupplierDetections(ctx context.Context, supplierID string, limit int) ([]domain.StoredDetection, error) {
	if supplierID == "" {
		return nil, &domain.ValidationError{Field: "supplier_id", Constraint: "required", Message: "supplier_id is required"}
	}
	if limit == 0 {
		limit = DefaultDetectionLimit
	}
	if limit < 1 || limit > MaxDetectionLimit {
		return nil, &domain.ValidationError{
			Field:      "limit",
			Value:      limit,
			Constraint: "[1, 1000]",
			Message:    "limit must be between 1 and 1000",
		}
	}

	dets, err := s.gateway.SupplierDetections(ctx, supplierID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching detections for supplier %s: %w", supplierID, err)
	}
	if dets == nil {
		dets = []domain.StoredDetection{}
	}
	return dets, nil
}

// Trends groups an organization's daily detection aggregates by category.
func (s *AnalyticsService) Trends(ctx context.Context, q domain.TrendQuery) (*domain.AnalyticsTrends, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := trendsKey(q)
	var cached domain.AnalyticsTrends
	if s.lookup(ctx, key, &cached) {
		// An empty category must still encode as [].
		merged := domain.BuildTrends(nil)
		merged.Deforestation = append(merged.Deforestation, cached.Deforestation...)
		merged.Mining = append(merged.Mining, cached.Mining...)
		merged.Other = append(merged.Other, cached.Other...)
		return &merged, nil
	}

	rows, err := s.gateway.TrendRows(ctx, q.OrganizationID, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("fetching analytics trends: %w", err)
	}
	trends := domain.BuildTrends(rows)

	s.store(ctx, key, trends, s.cfg.TrendsTTL)
	return &trends, nil
}

// AnalyzeLocation runs the geospatial engine, reusing a cached analysis for
// the same coordinate and bounds. Degraded analyses are never cached.
func (s *AnalyticsService) AnalyzeLocation(ctx context.Context, c domain.Coordinate, bounds domain.BoundingArea) domain.GeospatialAnalysis {
	extent := bounds.Extent(domain.ExtentAround(c, LandUseHalfSpan))
	key := fmt.Sprintf("analysis:%.6f:%.6f:%s", c.Lat, c.Lng, extentKey(extent))

	var cached domain.GeospatialAnalysis
	if s.lookup(ctx, key, &cached) {
		return cached
	}

	a := s.engine.AnalyzeLocation(ctx, c, bounds)
	if len(a.Degraded()) == 0 {
		s.store(ctx, key, a, s.cfg.DefaultTTL)
	}
	return a
}

// RiskMap samples a risk grid. Grids are cheap to recompute and not cached.
func (s *AnalyticsService) RiskMap(ctx context.Context, bounds domain.BoundingArea, riskType domain.RiskType) (*domain.RiskMap, error) {
	return s.engine.RiskMap(ctx, bounds, riskType)
}

// DistanceToFeatures reports distances to every feature of one reference layer.
func (s *AnalyticsService) DistanceToFeatures(ctx context.Context, c domain.Coordinate, featureType domain.FeatureType) (map[string]float64, error) {
	return s.engine.DistanceToFeatures(ctx, c, featureType)
}

func (s *AnalyticsService) lookup(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	s.metrics.IncCacheLookup(ok)
	if !ok {
		return false
	}
	if err := s.codec.Unmarshal(data, dst); err != nil {
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *AnalyticsService) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := s.codec.Marshal(v)
	if err != nil {
		s.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// trendsKey is the canonical cache key of a trends query.
func trendsKey(q domain.TrendQuery) string {
	var b strings.Builder
	b.WriteString("trends:")
	b.WriteString(q.OrganizationID)
	for _, t := range []*time.Time{q.Start, q.End} {
		b.WriteByte(':')
		if t != nil {
			b.WriteString(t.UTC().Format(time.RFC3339))
		}
	}
	return b.String()
}

func extentKey(e domain.Extent) string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", e.MinLat, e.MinLng, e.MaxLat, e.MaxLng)
}
