package domain

import "time"

// TrendRow is one aggregated row as returned by the persistence layer:
// detections grouped by calendar day and raw detection type.
type TrendRow struct {
	Date          string
	Type          string
	Count         int
	AvgConfidence float64
	TotalArea     float64
}

// TrendPoint is a single day of activity in one category.
type TrendPoint struct {
	Date       string  `json:"date"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"`
	Area       float64 `json:"area"`
}

// AnalyticsTrends groups trend points by category. Points keep the row order
// of the underlying query, newest first.
type AnalyticsTrends struct {
	Deforestation []TrendPoint `json:"deforestation"`
	Mining        []TrendPoint `json:"mining"`
	Other         []TrendPoint `json:"other"`
}

// BuildTrends buckets rows into categories by detection-type substring.
func BuildTrends(rows []TrendRow) AnalyticsTrends {
	t := AnalyticsTrends{
		Deforestation: []TrendPoint{},
		Mining:        []TrendPoint{},
		Other:         []TrendPoint{},
	}
	for _, r := range rows {
		p := TrendPoint{Date: r.Date, Count: r.Count, Confidence: r.AvgConfidence, Area: r.TotalArea}
		switch CategorizeDetectionType(r.Type) {
		case TrendDeforestation:
			t.Deforestation = append(t.Deforestation, p)
		case TrendMining:
			t.Mining = append(t.Mining, p)
		default:
			t.Other = append(t.Other, p)
		}
	}
	return t
}

// TrendQuery scopes an analytics request.
type TrendQuery struct {
	OrganizationID string
	Start          *time.Time
	End            *time.Time
}

// Validate checks the query.
func (q TrendQuery) Validate() error {
	if q.OrganizationID == "" {
		return &ValidationError{Field: "organization_id", Constraint: "required", Message: "organization_id is required"}
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return &ValidationError{
			Field:      "end_date",
			Value:      q.End.Format(time.DateOnly),
			Constraint: ">= start_date",
			Message:    "end_date must not precede start_date",
		}
	}
	return nil
}
