package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// elevatedFactorScore marks a factor worth a dedicated recommendation.
const elevatedFactorScore = 0.6

var levelRecommendations = map[domain.RiskLevel][]string{
	domain.RiskCritical: {
		"Suspend new purchase orders pending an on-site audit",
		"Escalate the supplier to the sustainability committee",
	},
	domain.RiskHigh: {
		"Commission an independent audit within 30 days",
		"Increase satellite monitoring frequency for supplier sites",
	},
	domain.RiskMedium: {
		"Request a remediation plan from the supplier",
		"Review supplier sites at the next monitoring cycle",
	},
	domain.RiskLow: {
		"Continue routine monitoring",
	},
}

var factorRecommendations = map[string]string{
	"deforestation": "Verify zero-deforestation commitments and land titles",
	"mining":        "Review mining permits and tailings management",
	"governance":    "Apply enhanced due diligence for the sourcing jurisdiction",
	"proximity":     "Assess buffer zones around nearby protected areas",
	"historical":    "Investigate recurring risk signals from prior assessments",
}

// Recommendations derives mitigation advice from a level and the factors
// that drove it.
func Recommendations(level domain.RiskLevel, breakdown domain.RiskFactorBreakdown) []string {
	out := append([]string(nil), levelRecommendations[level]...)
	if len(out) == 0 {
		out = append(out, levelRecommendations[domain.RiskLow]...)
	}
	for _, f := range breakdown.Factors {
		if f.Score < elevatedFactorScore {
			continue
		}
		if rec, ok := factorRecommendations[f.Category]; ok {
			out = append(out, rec)
		} else {
			out = append(out, fmt.Sprintf("Address elevated %s risk", f.Category))
		}
	}
	return out
}

// AssessmentService scores suppliers.
type AssessmentService struct {
	gateway output.PersistenceGateway
	models  *ModelRegistry
	refs    ReferenceProvider
	logger  *slog.Logger
	now     func() time.Time
}

// NewAssessmentService creates a new assessment service.
func NewAssessmentService(
	gateway output.PersistenceGateway,
	models *ModelRegistry,
	refs ReferenceProvider,
	logger *slog.Logger,
) *AssessmentService {
	return &AssessmentService{
		gateway: gateway,
		models:  models,
		refs:    refs,
		logger:  logger,
		now:     time.Now,
	}
}

// AssessRisk gathers a supplier's recent activity and asks the risk assessor
// for a verdict. Failing to store the verdict does not fail the call.
func (s *AssessmentService) AssessRisk(ctx context.Context, req domain.RiskAssessmentRequest) (*domain.RiskAssessment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("assessing risk", "supplier_id", req.SupplierID, "period_days", req.Period())

	data, err := s.gather(ctx, req)
	if err != nil {
		s.logger.Error("failed to gather risk data", "supplier_id", req.SupplierID, "error", err)
		return nil, err
	}

	assessor, err := s.models.Assessor()
	if err != nil {
		return nil, err
	}
	score, err := assessor.Assess(ctx, data)
	if err != nil {
		return nil, &domain.ModelError{Model: ModelRiskAssessment, Op: "assess", Err: err}
	}
	breakdown, err := assessor.Factors(ctx, data)
	if err != nil {
		return nil, &domain.ModelError{Model: ModelRiskAssessment, Op: "factors", Err: err}
	}
	breakdown = breakdown.Filter(req.RiskCategories)

	riskScore := domain.ClampScore(score.Score)
	level := domain.ClassifyScore(riskScore)
	a := &domain.RiskAssessment{
		SupplierID:       req.SupplierID,
		RiskScore:        riskScore,
		RiskLevel:        level,
		Factors:          breakdown,
		Confidence:       domain.Clamp01(score.Confidence),
		AssessmentPeriod: req.Period(),
		AssessedAt:       s.now().UTC(),
		Recommendations:  Recommendations(level, breakdown),
	}

	id, err := s.gateway.StoreRiskAssessment(ctx, a)
	if err != nil {
		s.logger.Error("failed to store risk assessment", "supplier_id", req.SupplierID, "error", err)
	} else {
		a.ID = id
	}

	s.logger.Info("risk assessed", "supplier_id", req.SupplierID, "score", a.RiskScore, "level", a.RiskLevel)
	return a, nil
}

func (s *AssessmentService) gather(ctx context.Context, req domain.RiskAssessmentRequest) (domain.RiskData, error) {
	supplier, err := s.gateway.GetSupplier(ctx, req.SupplierID)
	if err != nil {
		return domain.RiskData{}, err
	}

	since := s.now().UTC().AddDate(0, 0, -req.Period())
	detections, err := s.gateway.RecentDetections(ctx, req.SupplierID, since)
	if err != nil {
		return domain.RiskData{}, fmt.Errorf("fetching recent detections: %w", err)
	}

	historical := []domain.HistoricalAssessment{}
	if req.WantsHistorical() {
		historical, err = s.gateway.HistoricalAssessments(ctx, req.SupplierID, since)
		if err != nil {
			return domain.RiskData{}, fmt.Errorf("fetching historical assessments: %w", err)
		}
	}

	factors := domain.NeutralRiskFactors()
	if store := s.refs.Store(); store != nil {
		profile, _ := store.CountryByName(supplier.Country)
		if profile.IsUnknown() && supplier.Location != nil {
			profile = store.ContainingCountry(*supplier.Location)
		}
		factors = profile.Factors.Clamped()
	}

	return domain.RiskData{
		Supplier:         *supplier,
		CountryFactors:   factors,
		Detections:       detections,
		Historical:       historical,
		AssessmentPeriod: req.Period(),
	}, nil
}
