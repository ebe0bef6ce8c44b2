package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// Model registry keys.
const (
	ModelDeforestation  = "deforestation"
	ModelMining         = "mining"
	ModelRiskAssessment = "risk_assessment"
)

// ModelRegistry owns the detection models and the risk assessor.
type ModelRegistry struct {
	mu        sync.RWMutex
	detectors map[string]output.DetectionModel
	order     []string
	assessor  output.RiskAssessorModel
	loaded    map[string]bool
	logger    *slog.Logger
}

// NewModelRegistry creates a registry. Detectors are keyed by Name().
func NewModelRegistry(assessor output.RiskAssessorModel, logger *slog.Logger, detectors ...output.DetectionModel) *ModelRegistry {
	r := &ModelRegistry{
		detectors: make(map[string]output.DetectionModel, len(detectors)),
		assessor:  assessor,
		loaded:    make(map[string]bool),
		logger:    logger,
	}
	for _, d := range detectors {
		r.detectors[d.Name()] = d
		r.order = append(r.order, d.Name())
	}
	return r
}

// LoadAll loads every model. The first failure is returned.
func (r *ModelRegistry) LoadAll(ctx context.Context) error {
	for _, name := range r.order {
		r.logger.Info("loading model", "model", name)
		if err := r.detectors[name].Load(ctx); err != nil {
			return &domain.ModelError{Model: name, Op: "load", Err: err}
		}
		r.markLoaded(name)
	}

	if r.assessor != nil {
		r.logger.Info("loading model", "model", ModelRiskAssessment)
		if err := r.assessor.Load(ctx); err != nil {
			return &domain.ModelError{Model: ModelRiskAssessment, Op: "load", Err: err}
		}
		r.markLoaded(ModelRiskAssessment)
	}
	return nil
}

func (r *ModelRegistry) markLoaded(name string) {
	r.mu.Lock()
	r.loaded[name] = true
	r.mu.Unlock()
}

// Detector returns a loaded detection model.
func (r *ModelRegistry) Detector(name string) (output.DetectionModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.detectors[name]
	if !ok || !r.loaded[name] {
		return nil, &domain.ModelError{Model: name, Op: "predict", Err: domain.ErrModelNotLoaded}
	}
	return d, nil
}

// Assessor returns the loaded risk assessor.
func (r *ModelRegistry) Assessor() (output.RiskAssessorModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.assessor == nil || !r.loaded[ModelRiskAssessment] {
		return nil, &domain.ModelError{Model: ModelRiskAssessment, Op: "assess", Err: domain.ErrModelNotLoaded}
	}
	return r.assessor, nil
}

// Loaded reports the load state of every known model.
func (r *ModelRegistry) Loaded() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[string]bool{
		ModelDeforestation:  r.loaded[ModelDeforestation],
		ModelMining:         r.loaded[ModelMining],
		ModelRiskAssessment: r.loaded[ModelRiskAssessment],
	}
	for name, ok := range r.loaded {
		out[name] = ok
	}
	return out
}

// AllLoaded reports whether every registered model is loaded.
func (r *ModelRegistry) AllLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if !r.loaded[name] {
			return false
		}
	}
	return r.assessor == nil || r.loaded[ModelRiskAssessment]
}

// Info describes every registered model.
func (r *ModelRegistry) Info() []domain.ModelInfo {
	out := make([]domain.ModelInfo, 0, len(r.order)+1)
	for _, name := range r.order {
		out = append(out, r.detectors[name].Info())
	}
	if r.assessor != nil {
		out = append(out, r.assessor.Info())
	}
	return out
}
