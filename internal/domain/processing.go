package domain

import (
	"fmt"
	"strings"
	"time"
)

// PipelineState is the lifecycle position of a single-image request.
type PipelineState string

// Pipeline states. Completed and Failed are terminal.
const (
	StateReceived  PipelineState = "RECEIVED"
	StateAcquiring PipelineState = "ACQUIRING"
	StateDetecting PipelineState = "DETECTING"
	StateEnriching PipelineState = "ENRICHING"
	StateCompleted PipelineState = "COMPLETED"
	StateFailed    PipelineState = "FAILED"
)

var pipelineTransitions = map[PipelineState]PipelineState{
	StateReceived:  StateAcquiring,
	StateAcquiring: StateDetecting,
	StateDetecting: StateEnriching,
	StateEnriching: StateCompleted,
}

// IsTerminal reports whether no further transition is possible.
func (s PipelineState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Transition validates a move to next. Any non-terminal state may fail.
func (s PipelineState) Transition(next PipelineState) (PipelineState, error) {
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, s)
	}
	if next == StateFailed || pipelineTransitions[s] == next {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// SatelliteSource is the imagery provider inferred from an image URL.
type SatelliteSource string

// Known imagery sources.
const (
	SourceSentinel SatelliteSource = "sentinel"
	SourceLandsat  SatelliteSource = "landsat"
	SourcePlanet   SatelliteSource = "planet"
	SourceGeneric  SatelliteSource = "generic"
)

// DetectSatelliteSource infers the provider from a URL by substring.
func DetectSatelliteSource(url string) SatelliteSource {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "sentinel"):
		return SourceSentinel
	case strings.Contains(lower, "landsat"):
		return SourceLandsat
	case strings.Contains(lower, "planet"):
		return SourcePlanet
	default:
		return SourceGeneric
	}
}

// ProcessImageRequest asks for one image to be analysed.
type ProcessImageRequest struct {
	ImageID             string         `json:"image_id" validate:"required,max=256"`
	ImageURL            string         `json:"image_url" validate:"required"`
	Coordinates         Coordinate     `json:"coordinates"`
	Bounds              BoundingArea   `json:"bounds"`
	DetectDeforestation *bool          `json:"detect_deforestation,omitempty"`
	DetectMining        *bool          `json:"detect_mining,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// WantsDeforestation reports whether the deforestation detector should run.
func (r ProcessImageRequest) WantsDeforestation() bool {
	return r.DetectDeforestation == nil || *r.DetectDeforestation
}

// WantsMining reports whether the mining detector should run.
func (r ProcessImageRequest) WantsMining() bool {
	return r.DetectMining == nil || *r.DetectMining
}

// Validate checks the request.
func (r ProcessImageRequest) Validate() error {
	if r.ImageID == "" {
		return &ValidationError{Field: "image_id", Constraint: "required", Message: "image_id is required"}
	}
	if r.ImageURL == "" {
		return &ValidationError{Field: "image_url", Constraint: "required", Message: "image_url is required"}
	}
	if err := r.Coordinates.Validate(); err != nil {
		return err
	}
	return r.Bounds.Validate()
}

// ProcessingResult is the outcome of a successful single-image pipeline.
type ProcessingResult struct {
	ImageID            string               `json:"image_id"`
	Status             string               `json:"status"`
	Source             SatelliteSource      `json:"source"`
	Detections         []Detection          `json:"detections"`
	GeospatialAnalysis GeospatialAnalysis   `json:"geospatial_analysis"`
	Acquisition        *AcquisitionGeometry `json:"acquisition,omitempty"`
	ModelVersions      map[string]string    `json:"model_versions"`
	PersistenceTaskID  string               `json:"persistence_task_id,omitempty"`
	ProcessingTime     time.Duration        `json:"-"`
	ProcessingTimeMs   int64                `json:"processing_time_ms"`
	CompletedAt        time.Time            `json:"completed_at"`
}

// StatusCompleted is the status string of a successful result.
const StatusCompleted = "completed"

// BatchPriority is informational only.
type BatchPriority string

// Batch priorities.
const (
	PriorityLow    BatchPriority = "low"
	PriorityNormal BatchPriority = "normal"
	PriorityHigh   BatchPriority = "high"
)

// BatchRequest fans out several image requests.
type BatchRequest struct {
	BatchID     string                `json:"batch_id" validate:"required"`
	Images      []ProcessImageRequest `json:"images" validate:"required,min=1,dive"`
	Priority    BatchPriority         `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	CallbackURL string                `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// BatchError attributes a failure to its image.
type BatchError struct {
	ImageID string `json:"image_id"`
	Error   string `json:"error"`
}

// BatchResult partitions a batch's outcomes. Successful+Failed always equals
// TotalImages.
type BatchResult struct {
	BatchID     string             `json:"batch_id"`
	TotalImages int                `json:"total_images"`
	Successful  int                `json:"successful"`
	Failed      int                `json:"failed"`
	Results     []ProcessingResult `json:"results"`
	Errors      []BatchError       `json:"errors"`
	CompletedAt time.Time          `json:"completed_at"`
}

// BatchSummary is the payload posted to a batch callback URL.
type BatchSummary struct {
	BatchID     string       `json:"batch_id"`
	TotalImages int          `json:"total_images"`
	Successful  int          `json:"successful"`
	Failed      int          `json:"failed"`
	Errors      []BatchError `json:"errors"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Summary strips per-image results for notification.
func (b *BatchResult) Summary() BatchSummary {
	return BatchSummary{
		BatchID:     b.BatchID,
		TotalImages: b.TotalImages,
		Successful:  b.Successful,
		Failed:      b.Failed,
		Errors:      b.Errors,
		CompletedAt: b.CompletedAt,
	}
}

// PreprocessedImage is model-ready pixel data.
type PreprocessedImage struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Architecture  string   `json:"architecture"`
	InputSize     []int    `json:"input_size,omitempty"`
	OutputClasses []string `json:"output_classes,omitempty"`
	Features      []string `json:"features,omitempty"`
}
