package domain

import "time"

// Supplier is a supply-chain participant whose sites are monitored.
type Supplier struct {
	ID               string      `json:"id"`
	OrganizationID   string      `json:"organization_id"`
	OrganizationName string      `json:"organization_name"`
	Name             string      `json:"name"`
	Country          string      `json:"country"`
	Location         *Coordinate `json:"location,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Assessment period bounds in days.
const (
	DefaultAssessmentPeriod = 30
	MaxAssessmentPeriod     = 3650
)

// RiskAssessmentRequest asks for a supplier-level risk score.
type RiskAssessmentRequest struct {
	SupplierID        string   `json:"supplier_id" validate:"required"`
	AssessmentPeriod  int      `json:"assessment_period" validate:"gte=0,lte=3650"`
	IncludeHistorical *bool    `json:"include_historical,omitempty"`
	RiskCategories    []string `json:"risk_categories,omitempty"`
}

// Period returns the assessment window with the default applied.
func (r RiskAssessmentRequest) Period() int {
	if r.AssessmentPeriod <= 0 {
		return DefaultAssessmentPeriod
	}
	return r.AssessmentPeriod
}

// WantsHistorical reports whether historical assessments should be gathered.
func (r RiskAssessmentRequest) WantsHistorical() bool {
	return r.IncludeHistorical == nil || *r.IncludeHistorical
}

// Validate checks the request.
func (r RiskAssessmentRequest) Validate() error {
	if r.SupplierID == "" {
		return &ValidationError{Field: "supplier_id", Constraint: "required", Message: "supplier_id is required"}
	}
	if r.AssessmentPeriod < 0 || r.AssessmentPeriod > MaxAssessmentPeriod {
		return &ValidationError{
			Field:      "assessment_period",
			Value:      r.AssessmentPeriod,
			Constraint: "[1, 3650]",
			Message:    "assessment_period must be between 1 and 3650 days",
		}
	}
	return nil
}

// HistoricalAssessment is a previously stored supplier assessment.
type HistoricalAssessment struct {
	ID         string    `json:"id"`
	SupplierID string    `json:"supplier_id"`
	Type       string    `json:"type"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	AssessedAt time.Time `json:"assessed_at"`
}

// RiskData is the bundle handed to the risk assessor model.
type RiskData struct {
	Supplier         Supplier               `json:"supplier"`
	CountryFactors   RiskFactors            `json:"country_factors"`
	Detections       []StoredDetection      `json:"detections"`
	Historical       []HistoricalAssessment `json:"historical"`
	AssessmentPeriod int                    `json:"assessment_period"`
}

// RiskScore is the assessor's numeric verdict.
type RiskScore struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// FactorContribution is one named driver of a risk score.
type FactorContribution struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Detail   string  `json:"detail,omitempty"`
}

// RiskFactorBreakdown explains a score by category.
type RiskFactorBreakdown struct {
	Factors []FactorContribution `json:"factors"`
}

// Filter keeps only the named categories. An empty list keeps everything.
func (b RiskFactorBreakdown) Filter(categories []string) RiskFactorBreakdown {
	if len(categories) == 0 {
		return b
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	out := RiskFactorBreakdown{Factors: make([]FactorContribution, 0, len(b.Factors))}
	for _, f := range b.Factors {
		if want[f.Category] {
			out.Factors = append(out.Factors, f)
		}
	}
	return out
}

// Top returns the contribution with the highest weighted score.
func (b RiskFactorBreakdown) Top() (FactorContribution, bool) {
	if len(b.Factors) == 0 {
		return FactorContribution{}, false
	}
	best := b.Factors[0]
	for _, f := range b.Factors[1:] {
		if f.Score*f.Weight > best.Score*best.Weight {
			best = f
		}
	}
	return best, true
}

// RiskAssessment is the derived supplier-level verdict.
type RiskAssessment struct {
	ID               string              `json:"id,omitempty"`
	SupplierID       string              `json:"supplier_id"`
	RiskScore        float64             `json:"risk_score"`
	RiskLevel        RiskLevel           `json:"risk_level"`
	Factors          RiskFactorBreakdown `json:"factors"`
	Confidence       float64             `json:"confidence"`
	AssessmentPeriod int                 `json:"assessment_period"`
	AssessedAt       time.Time           `json:"assessed_at"`
	Recommendations  []string            `json:"recommendations"`
}
