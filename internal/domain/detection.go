package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DetectionType identifies the activity a model found.
type DetectionType string

// Detection types emitted by the detection models.
const (
	DetectionDeforestation     DetectionType = "DEFORESTATION"
	DetectionForestDegradation DetectionType = "FOREST_DEGRADATION"
	DetectionMining            DetectionType = "MINING"
	DetectionIllegalMining     DetectionType = "ILLEGAL_MINING"
	DetectionInfrastructure    DetectionType = "INFRASTRUCTURE"
	DetectionOther             DetectionType = "OTHER"
)

// TrendCategory groups detection types for analytics.
type TrendCategory string

// Trend categories.
const (
	TrendDeforestation TrendCategory = "deforestation"
	TrendMining        TrendCategory = "mining"
	TrendOther         TrendCategory = "other"
)

// CategorizeDetectionType buckets a stored detection type by substring.
// Stored rows may predate the DetectionType constants, so raw strings are
// accepted.
func CategorizeDetectionType(t string) TrendCategory {
	upper := strings.ToUpper(t)
	switch {
	case strings.Contains(upper, "FOREST"):
		return TrendDeforestation
	case strings.Contains(upper, "MINING"):
		return TrendMining
	default:
		return TrendOther
	}
}

// IsForestRelated reports whether the type belongs to the deforestation family.
func (t DetectionType) IsForestRelated() bool {
	return CategorizeDetectionType(string(t)) == TrendDeforestation
}

// IsMiningRelated reports whether the type belongs to the mining family.
func (t DetectionType) IsMiningRelated() bool {
	return CategorizeDetectionType(string(t)) == TrendMining
}

// BoundingBox is a pixel rectangle in the preprocessed image.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DeforestationDetail is set only on forest-related detections.
type DeforestationDetail struct {
	CanopyLossRatio float64 `json:"canopy_loss_ratio"`
	ForestType      string  `json:"forest_type,omitempty"`
}

// MiningDetail is set only on mining-related detections.
type MiningDetail struct {
	MiningKind    string  `json:"mining_kind,omitempty"`
	DisturbedSoil float64 `json:"disturbed_soil_ratio"`
}

// DetectionMetadata carries type-dependent detail. At most one of the detail
// variants is set and it must match the detection type.
type DetectionMetadata struct {
	Deforestation *DeforestationDetail `json:"deforestation,omitempty"`
	Mining        *MiningDetail        `json:"mining,omitempty"`
	ModelVersion  string               `json:"model_version,omitempty"`
	Extra         map[string]string    `json:"extra,omitempty"`
}

// Detection is a single model-identified activity instance.
type Detection struct {
	Type         DetectionType     `json:"type"`
	Confidence   float64           `json:"confidence"`
	BBox         BoundingBox       `json:"bbox"`
	AreaHectares float64           `json:"area_hectares"`
	Center       Coordinate        `json:"center_coordinates"`
	ClassName    string            `json:"class_name"`
	Severity     RiskLevel         `json:"severity"`
	ImageURL     string            `json:"image_url,omitempty"`
	Metadata     DetectionMetadata `json:"metadata"`
}

// Normalize clamps the confidence and checks the metadata variant.
func (d *Detection) Normalize() error {
	d.Confidence = Clamp01(d.Confidence)
	if d.AreaHectares < 0 {
		d.AreaHectares = 0
	}
	if d.Severity == "" {
		d.Severity = RiskLow
	}
	if d.Metadata.Deforestation != nil && d.Metadata.Mining != nil {
		return &ValidationError{
			Field:      "metadata",
			Value:      d.Type,
			Constraint: "single variant",
			Message:    "detection metadata may carry only one detail variant",
		}
	}
	if d.Metadata.Deforestation != nil && !d.Type.IsForestRelated() {
		return &ValidationError{
			Field:      "metadata.deforestation",
			Value:      d.Type,
			Constraint: "forest-related type",
			Message:    fmt.Sprintf("deforestation detail not allowed on %s detection", d.Type),
		}
	}
	if d.Metadata.Mining != nil && !d.Type.IsMiningRelated() {
		return &ValidationError{
			Field:      "metadata.mining",
			Value:      d.Type,
			Constraint: "mining-related type",
			Message:    fmt.Sprintf("mining detail not allowed on %s detection", d.Type),
		}
	}
	return nil
}

// StoredDetection is a detection read back from persistence.
type StoredDetection struct {
	ID           string          `json:"id"`
	ImageID      string          `json:"image_id"`
	Type         string          `json:"type"`
	Confidence   float64         `json:"confidence"`
	Center       Coordinate      `json:"center_coordinates"`
	AreaHectares float64         `json:"area_hectares"`
	ClassName    string          `json:"class_name,omitempty"`
	Severity     string          `json:"severity,omitempty"`
	ImageURL     string          `json:"image_url"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Country      string          `json:"country,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	ProcessedAt  time.Time       `json:"processed_at"`
	CreatedAt    time.Time       `json:"created_at"`
}
