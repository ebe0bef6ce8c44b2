package output

import (
	"context"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// DetectionModel identifies activity in preprocessed imagery.
type DetectionModel interface {
	// Name returns the registry key of the model.
	Name() string

	// Load prepares the model for inference.
	Load(ctx context.Context) error

	// Predict runs inference on one image.
	Predict(ctx context.Context, img domain.PreprocessedImage) ([]domain.Detection, error)

	// Info describes the model.
	Info() domain.ModelInfo
}

// RiskAssessorModel scores a supplier from gathered risk data.
type RiskAssessorModel interface {
	Load(ctx context.Context) error
	Assess(ctx context.Context, data domain.RiskData) (domain.RiskScore, error)
	Factors(ctx context.Context, data domain.RiskData) (domain.RiskFactorBreakdown, error)
	Info() domain.ModelInfo
}
