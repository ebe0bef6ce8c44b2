// Package input defines the primary/driving ports of the application.
package input

import (
	"context"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// ImageProcessor defines the primary port for imagery pipelines.
type ImageProcessor interface {
	// ProcessImage runs the full pipeline for one image.
	ProcessImage(ctx context.Context, req domain.ProcessImageRequest) (*domain.ProcessingResult, error)

	// ProcessBatch runs every image of a batch with failure isolation.
	ProcessBatch(ctx context.Context, req domain.BatchRequest) (*domain.BatchResult, error)
}

// RiskAssessor defines the primary port for supplier risk assessment.
type RiskAssessor interface {
	AssessRisk(ctx context.Context, req domain.RiskAssessmentRequest) (*domain.RiskAssessment, error)
}

// Analytics defines the primary port for read-side queries.
type Analytics interface {
	SupplierDetections(ctx context.Context, supplierID string, limit int) ([]domain.StoredDetection, error)
	Trends(ctx context.Context, q domain.TrendQuery) (*domain.AnalyticsTrends, error)
}

// GeospatialAnalyzer defines the primary port for spatial queries.
type GeospatialAnalyzer interface {
	AnalyzeLocation(ctx context.Context, c domain.Coordinate, bounds domain.BoundingArea) domain.GeospatialAnalysis
	RiskMap(ctx context.Context, bounds domain.BoundingArea, riskType domain.RiskType) (*domain.RiskMap, error)
	DistanceToFeatures(ctx context.Context, c domain.Coordinate, featureType domain.FeatureType) (map[string]float64, error)
}

// ModelCatalog describes the loaded models.
type ModelCatalog interface {
	Loaded() map[string]bool
	Info() []domain.ModelInfo
}

// TaskTracker exposes persistence task state.
type TaskTracker interface {
	Status(id string) (domain.TaskStatus, error)
}

// ReferenceManager defines the primary port for the reference dataset.
type ReferenceManager interface {
	// Info describes the active dataset.
	Info() ReferenceInfo

	// Sync reloads the dataset from storage.
	Sync(ctx context.Context) error
}

// ReferenceInfo summarises the active reference dataset.
type ReferenceInfo struct {
	Version        string     `json:"version"`
	Source         string     `json:"source"`
	ETag           string     `json:"etag,omitempty"`
	ModifiedAt     *time.Time `json:"modified_at,omitempty"`
	ProtectedAreas int        `json:"protected_areas"`
	Countries      int        `json:"countries"`
	RiskZones      int        `json:"risk_zones"`
	LoadedAt       time.Time  `json:"loaded_at"`
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy           bool              // Overall health status
	Ready             bool              // Ready to accept requests
	ModelsLoaded      map[string]bool   // Model name to load state
	DatabaseConnected bool              // Persistence ping succeeded
	CacheConnected    bool              // Cache ping succeeded
	ReferenceVersion  string            // Active reference dataset
	Components        map[string]string // Component statuses
}
