package http

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/application"
	"github.com/dogwifhat6/supplychain-lens/internal/config"
	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/input"
)

type mockProcessor struct {
	lastImage domain.ProcessImageRequest
	lastBatch domain.BatchRequest
	err       error
}

func (m *mockProcessor) ProcessImage(_ context.Context, req domain.ProcessImageRequest) (*domain.ProcessingResult, error) {
	m.lastImage = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ProcessingResult{
		ImageID:    req.ImageID,
		Status:     domain.StatusCompleted,
		Detections: []domain.Detection{},
	}, nil
}

func (m *mockProcessor) ProcessBatch(_ context.Context, req domain.BatchRequest) (*domain.BatchResult, error) {
	m.lastBatch = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BatchResult{BatchID: req.BatchID, TotalImages: len(req.Images), Successful: len(req.Images)}, nil
}

type mockAssessor struct {
	err error
}

func (m *mockAssessor) AssessRisk(_ context.Context, req domain.RiskAssessmentRequest) (*domain.RiskAssessment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RiskAssessment{SupplierID: req.SupplierID, RiskScore: 42, AssessmentPeriod: req.Period()}, nil
}

type mockAnalytics struct {
	detections []domain.StoredDetection
	lastLimit  int
	lastQuery  domain.TrendQuery
	err        error
}

func (m *mockAnalytics) SupplierDetections(_ context.Context, _ string, limit int) ([]domain.StoredDetection, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

func (m *mockAnalytics) Trends(_ context.Context, q domain.TrendQuery) (*domain.AnalyticsTrends, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return &domain.AnalyticsTrends{}, nil
}

type mockSpatial struct {
	lastBounds  domain.BoundingArea
	lastRisk    domain.RiskType
	lastFeature domain.FeatureType
	err         error
}

func (m *mockSpatial) AnalyzeLocation(_ context.Context, c domain.Coordinate, bounds domain.BoundingArea) domain.GeospatialAnalysis {
	m.lastBounds = bounds
	return domain.GeospatialAnalysis{Coordinates: c}
}

func (m *mockSpatial) RiskMap(_ context.Context, bounds domain.BoundingArea, riskType domain.RiskType) (*domain.RiskMap, error) {
	m.lastBounds = bounds
	m.lastRisk = riskType
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RiskMap{RiskType: riskType}, nil
}

func (m *mockSpatial) DistanceToFeatures(_ context.Context, _ domain.Coordinate, featureType domain.FeatureType) (map[string]float64, error) {
	m.lastFeature = featureType
	if m.err != nil {
		return nil, m.err
	}
	return map[string]float64{"Tapajos": 12.5}, nil
}

type mockModels struct{}

func (mockModels) Loaded() map[string]bool {
	return map[string]bool{"deforestation": true, "mining": true, "risk_assessment": true}
}

func (mockModels) Info() []domain.ModelInfo {
	return []domain.ModelInfo{{Name: "deforestation", Version: "1.0.0"}}
}

type mockTasks struct {
	tasks map[string]domain.TaskStatus
}

func (m *mockTasks) Status(id string) (domain.TaskStatus, error) {
	st, ok := m.tasks[id]
	if !ok {
		return domain.TaskStatus{}, domain.ErrTaskNotFound
	}
	return st, nil
}

type mockReference struct{}

func (mockReference) Info() input.ReferenceInfo {
	return input.ReferenceInfo{Version: "v1", Source: "reference.yaml", ProtectedAreas: 2}
}

func (mockReference) Sync(context.Context) error { return nil }

type mockSync struct {
	err error
}

func (m *mockSync) TriggerSync(context.Context) (application.SyncResult, error) {
	if m.err != nil {
		return application.SyncResult{}, m.err
	}
	return application.SyncResult{Version: "v2", SyncedAt: time.Now()}, nil
}

type mockHealth struct {
	healthy bool
	ready   bool
}

func (m *mockHealth) IsHealthy(context.Context) bool { return m.healthy }
func (m *mockHealth) IsReady(context.Context) bool   { return m.ready }

func (m *mockHealth) GetHealthDetails(context.Context) input.HealthDetails {
	return input.HealthDetails{
		Healthy:           m.healthy,
		Ready:             m.ready,
		ModelsLoaded:      map[string]bool{"deforestation": true, "mining": true, "risk_assessment": true},
		DatabaseConnected: true,
		ReferenceVersion:  "v1",
	}
}

// testHarness bundles a server with the mocks behind it.
type testHarness struct {
	srv       *Server
	processor *mockProcessor
	assessor  *mockAssessor
	analytics *mockAnalytics
	spatial   *mockSpatial
	sync      *mockSync
	health    *mockHealth
}

func newTestHarness(mutate func(*config.ServerConfig)) *testHarness {
	h := &testHarness{
		processor: &mockProcessor{},
		assessor:  &mockAssessor{},
		analytics: &mockAnalytics{},
		spatial:   &mockSpatial{},
		sync:      &mockSync{},
		health:    &mockHealth{healthy: true, ready: true},
	}

	cfg := config.ServerConfig{
		Host:         "localhost",
		Port:         8000,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.srv = NewServer(cfg, Services{
		Processor: h.processor,
		Assessor:  h.assessor,
		Analytics: h.analytics,
		Spatial:   h.spatial,
		Models:    mockModels{},
		Tasks: &mockTasks{tasks: map[string]domain.TaskStatus{
			"task-1": {ID: "task-1", ImageID: "img-1", State: domain.TaskSucceeded},
		}},
		Reference: mockReference{},
		Sync:      h.sync,
		Health:    h.health,
	}, Options{Version: "test"}, logger)

	return h
}
