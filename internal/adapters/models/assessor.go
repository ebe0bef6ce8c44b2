package models

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// Baseline factor weights. Weights of absent factors are redistributed.
const (
	weightDeforestation = 0.35
	weightMining        = 0.25
	weightGovernance    = 0.25
	weightHistorical    = 0.15
)

// BaselineVersion identifies the built-in scoring rules.
const BaselineVersion = "baseline-1"

// BaselineAssessor implements output.RiskAssessorModel with fixed weighted
// rules over detections, country governance and past assessments.
type BaselineAssessor struct{}

// NewBaselineAssessor creates the built-in assessor.
func NewBaselineAssessor() *BaselineAssessor {
	return &BaselineAssessor{}
}

// Load implements output.RiskAssessorModel.
func (b *BaselineAssessor) Load(context.Context) error { return nil }

// Assess returns a 0-100 score. Confidence grows with the amount of evidence.
func (b *BaselineAssessor) Assess(_ context.Context, data domain.RiskData) (domain.RiskScore, error) {
	breakdown := b.breakdown(data)

	var weighted, total float64
	for _, f := range breakdown.Factors {
		weighted += f.Score * f.Weight
		total += f.Weight
	}
	score := 0.0
	if total > 0 {
		score = 100 * weighted / total
	}

	evidence := math.Min(1, float64(len(data.Detections))/10)
	confidence := 0.5 + 0.3*evidence
	if len(data.Historical) > 0 {
		confidence += 0.15
	}

	return domain.RiskScore{
		Score:      domain.ClampScore(score),
		Confidence: domain.Clamp01(confidence),
	}, nil
}

// Factors implements output.RiskAssessorModel. Weights are normalized to
// sum to one.
func (b *BaselineAssessor) Factors(_ context.Context, data domain.RiskData) (domain.RiskFactorBreakdown, error) {
	return b.breakdown(data), nil
}

// Info implements output.RiskAssessorModel.
func (b *BaselineAssessor) Info() domain.ModelInfo {
	return domain.ModelInfo{
		Name:          "risk_assessment",
		Version:       BaselineVersion,
		Architecture:  "weighted-rules",
		OutputClasses: []string{"deforestation", "mining", "governance", "historical"},
		Features:      []string{"detections", "country_factors", "historical_assessments"},
	}
}

func (b *BaselineAssessor) breakdown(data domain.RiskData) domain.RiskFactorBreakdown {
	var forest, mining []float64
	for _, d := range data.Detections {
		t := domain.DetectionType(d.Type)
		switch {
		case t.IsForestRelated():
			forest = append(forest, d.Confidence)
		case t.IsMiningRelated():
			mining = append(mining, d.Confidence)
		}
	}

	f := data.CountryFactors
	governance := ((1 - f.GovernanceScore) + (1 - f.EnvironmentalRegulations) +
		(1 - f.EnforcementCapacity) + f.CorruptionIndex) / 4

	factors := []domain.FactorContribution{
		{
			Category: "deforestation",
			Score:    combine(forest),
			Weight:   weightDeforestation,
			Detail:   fmt.Sprintf("%d forest-related detections", len(forest)),
		},
		{
			Category: "mining",
			Score:    combine(mining),
			Weight:   weightMining,
			Detail:   fmt.Sprintf("%d mining-related detections", len(mining)),
		},
		{
			Category: "governance",
			Score:    domain.Clamp01(governance),
			Weight:   weightGovernance,
			Detail:   "country governance and enforcement profile",
		},
	}

	if len(data.Historical) > 0 {
		var sum float64
		for _, h := range data.Historical {
			sum += h.Score
		}
		factors = append(factors, domain.FactorContribution{
			Category: "historical",
			Score:    domain.Clamp01(sum / float64(len(data.Historical)) / 100),
			Weight:   weightHistorical,
			Detail:   fmt.Sprintf("mean of %d prior assessments", len(data.Historical)),
		})
	}

	var total float64
	for _, fc := range factors {
		total += fc.Weight
	}
	for i := range factors {
		factors[i].Weight /= total
	}
	return domain.RiskFactorBreakdown{Factors: factors}
}

// combine treats confidences as independent evidence: 1 - prod(1 - c).
func combine(confidences []float64) float64 {
	miss := 1.0
	for _, c := range confidences {
		miss *= 1 - domain.Clamp01(c)
	}
	return 1 - miss
}

// AssessorConfig points at a remote risk assessment service.
type AssessorConfig struct {
	Endpoint  string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// RemoteAssessor implements output.RiskAssessorModel against a service
// exposing GET /info, POST /assess and POST /factors.
type RemoteAssessor struct {
	client inferenceClient
	info   domain.ModelInfo
}

// NewRemoteAssessor creates an assessor client.
func NewRemoteAssessor(cfg AssessorConfig) *RemoteAssessor {
	return &RemoteAssessor{
		client: newInferenceClient(cfg.Endpoint, cfg.Timeout, cfg.Transport),
		info:   domain.ModelInfo{Name: "risk_assessment", Architecture: "remote"},
	}
}

// Load implements output.RiskAssessorModel.
func (r *RemoteAssessor) Load(ctx context.Context) error {
	var info domain.ModelInfo
	if err := r.client.do(ctx, http.MethodGet, "/info", "", nil, &info); err != nil {
		return err
	}
	info.Name = r.info.Name
	if info.Architecture == "" {
		info.Architecture = r.info.Architecture
	}
	r.info = info
	return nil
}

// Assess implements output.RiskAssessorModel.
func (r *RemoteAssessor) Assess(ctx context.Context, data domain.RiskData) (domain.RiskScore, error) {
	var score domain.RiskScore
	err := r.client.postJSON(ctx, "/assess", data, &score)
	return score, err
}

// Factors implements output.RiskAssessorModel.
func (r *RemoteAssessor) Factors(ctx context.Context, data domain.RiskData) (domain.RiskFactorBreakdown, error) {
	var b domain.RiskFactorBreakdown
	err := r.client.postJSON(ctx, "/factors", data, &b)
	return b, err
}

// Info implements output.RiskAssessorModel.
func (r *RemoteAssessor) Info() domain.ModelInfo {
	return r.info
}
