package application

import (
	"context"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/ports/input"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// healthProbeTimeout bounds each dependency ping.
const healthProbeTimeout = 2 * time.Second

// HealthService provides health check functionality.
type HealthService struct {
	models    *ModelRegistry
	gateway   output.PersistenceGateway
	cache     output.Cache
	reference input.ReferenceManager
}

// NewHealthService creates a new health service. gateway and cache may be nil.
func NewHealthService(
	models *ModelRegistry,
	gateway output.PersistenceGateway,
	cache output.Cache,
	reference input.ReferenceManager,
) *HealthService {
	return &HealthService{
		models:    models,
		gateway:   gateway,
		cache:     cache,
		reference: reference,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true // Process is up
}

// IsReady returns true once every model is loaded and the database answers.
func (s *HealthService) IsReady(ctx context.Context) bool {
	if !s.models.AllLoaded() {
		return false
	}
	return s.gateway == nil || s.pingDatabase(ctx)
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	dbOK := s.gateway != nil && s.pingDatabase(ctx)
	cacheOK := s.cache != nil && s.pingCache(ctx)

	components := map[string]string{
		"database": status(s.gateway != nil, dbOK),
		"cache":    status(s.cache != nil, cacheOK),
		"models":   status(true, s.models.AllLoaded()),
	}

	return input.HealthDetails{
		Healthy:           s.IsHealthy(ctx),
		Ready:             s.models.AllLoaded() && (s.gateway == nil || dbOK),
		ModelsLoaded:      s.models.Loaded(),
		DatabaseConnected: dbOK,
		CacheConnected:    cacheOK,
		ReferenceVersion:  s.reference.Info().Version,
		Components:        components,
	}
}

func (s *HealthService) pingDatabase(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return s.gateway.Ping(ctx) == nil
}

func (s *HealthService) pingCache(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return s.cache.Ping(ctx) == nil
}

func status(configured, ok bool) string {
	switch {
	case !configured:
		return "disabled"
	case ok:
		return "ok"
	default:
		return "unavailable"
	}
}
