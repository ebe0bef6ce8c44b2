package output

import (
	"context"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// PersistenceGateway defines the secondary port for the relational store.
type PersistenceGateway interface {
	// StoreDetections inserts one row per detection and returns the new IDs.
	StoreDetections(ctx context.Context, imageID, imageURL string, dets []domain.Detection, analysis domain.GeospatialAnalysis) ([]string, error)

	// StoreRiskAssessment inserts an assessment and returns its ID.
	StoreRiskAssessment(ctx context.Context, a *domain.RiskAssessment) (string, error)

	// GetSupplier returns domain.ErrSupplierNotFound when the supplier is absent.
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)

	// RecentDetections returns detections linked to the supplier since the cutoff.
	RecentDetections(ctx context.Context, supplierID string, since time.Time) ([]domain.StoredDetection, error)

	// HistoricalAssessments returns stored assessments since the cutoff.
	HistoricalAssessments(ctx context.Context, supplierID string, since time.Time) ([]domain.HistoricalAssessment, error)

	// SupplierDetections returns the newest detections for a supplier.
	SupplierDetections(ctx context.Context, supplierID string, limit int) ([]domain.StoredDetection, error)

	// TrendRows aggregates an organization's detections by day and type.
	TrendRows(ctx context.Context, orgID string, start, end *time.Time) ([]domain.TrendRow, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// DeadLetterSink receives persistence tasks that could not be stored.
type DeadLetterSink interface {
	Write(ctx context.Context, dl domain.DeadLetter) error
}

// NoOpDeadLetters discards dead letters.
type NoOpDeadLetters struct{}

// Write implements DeadLetterSink.
func (NoOpDeadLetters) Write(_ context.Context, _ domain.DeadLetter) error { return nil }
