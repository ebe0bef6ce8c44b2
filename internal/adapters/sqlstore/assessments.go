package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// AssessmentType is the stored type of engine-produced assessments.
const AssessmentType = "comprehensive"

type assessmentDetails struct {
	RiskLevel        domain.RiskLevel `json:"risk_level"`
	AssessmentPeriod int              `json:"assessment_period"`
	Recommendations  []string         `json:"recommendations"`
}

// StoreRiskAssessment inserts an assessment and returns its ID.
func (s *Store) StoreRiskAssessment(ctx context.Context, a *domain.RiskAssessment) (string, error) {
	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return "", fmt.Errorf("encoding factors: %w", err)
	}
	details, err := json.Marshal(assessmentDetails{
		RiskLevel:        a.RiskLevel,
		AssessmentPeriod: a.AssessmentPeriod,
		Recommendations:  a.Recommendations,
	})
	if err != nil {
		return "", fmt.Errorf("encoding details: %w", err)
	}

	assessedAt := a.AssessedAt.UTC()
	if assessedAt.IsZero() {
		assessedAt = s.now()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO risk_assessments (
    id, supplier_id, type, score, confidence, factors, details, assessed_at, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, a.SupplierID, AssessmentType, a.RiskScore, a.Confidence,
		string(factors), string(details), assessedAt, s.now(),
	); err != nil {
		return "", &domain.StorageError{Operation: "store_assessment", Key: a.SupplierID, Err: err}
	}
	return id, nil
}

// HistoricalAssessments returns the supplier's assessments since the cutoff,
// newest first.
func (s *Store) HistoricalAssessments(ctx context.Context, supplierID string, since time.Time) ([]domain.HistoricalAssessment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, supplier_id, type, score, confidence, assessed_at
FROM risk_assessments
WHERE supplier_id = ? AND assessed_at >= ?
ORDER BY assessed_at DESC`), supplierID, since.UTC())
	if err != nil {
		return nil, queryErr("historical_assessments", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.HistoricalAssessment{}
	for rows.Next() {
		var h domain.HistoricalAssessment
		if err := rows.Scan(&h.ID, &h.SupplierID, &h.Type, &h.Score, &h.Confidence, &h.AssessedAt); err != nil {
			return nil, queryErr("historical_assessments", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("historical_assessments", err)
	}
	return out, nil
}
