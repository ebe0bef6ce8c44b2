package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seeded(seed int64) RandomSource {
	return func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
}

// testReferenceSet mirrors the built-in placeholder dataset.
func testReferenceSet() domain.ReferenceSet {
	return domain.ReferenceSet{
		Version: "test",
		ProtectedAreas: []domain.ProtectedArea{
			{Name: "Amazon National Park", Category: "National Park", AreaKm2: 10000, Geometry: domain.NewBox(-60, -10, -50, -5)},
			{Name: "Congo Basin Reserve", Category: "Reserve", AreaKm2: 5000, Geometry: domain.NewBox(15, -5, 25, 5)},
			{Name: "Borneo Rainforest", Category: "Forest Reserve", AreaKm2: 8000, Geometry: domain.NewBox(110, -5, 120, 5)},
		},
		Countries: []domain.CountryProfile{
			{Name: "Brazil", Boundary: domain.NewBox(-75, -35, -35, 5), Factors: domain.RiskFactors{
				GovernanceScore: 0.6, EnvironmentalRegulations: 0.7, EnforcementCapacity: 0.5,
				CorruptionIndex: 0.4, PoliticalStability: 0.6, EconomicDevelopment: 0.7,
			}},
			{Name: "Congo", Boundary: domain.NewBox(12, -5, 30, 5), Factors: domain.RiskFactors{
				GovernanceScore: 0.3, EnvironmentalRegulations: 0.4, EnforcementCapacity: 0.2,
				CorruptionIndex: 0.8, PoliticalStability: 0.3, EconomicDevelopment: 0.3,
			}},
			{Name: "Peru", Boundary: domain.NewBox(-85, -20, -70, 0), Factors: domain.NeutralRiskFactors()},
		},
		RiskZones: []domain.RiskZone{
			{Name: "deforestation_hotspot_1", Category: domain.ZoneDeforestation, Geometry: domain.NewBox(-60, -10, -50, -5)},
			{Name: "deforestation_hotspot_2", Category: domain.ZoneDeforestation, Geometry: domain.NewBox(15, -5, 25, 5)},
			{Name: "mining_risk_zone_1", Category: domain.ZoneMining, Geometry: domain.NewBox(-70, -15, -60, -5)},
			{Name: "mining_risk_zone_2", Category: domain.ZoneMining, Geometry: domain.NewBox(20, -3, 30, 3)},
		},
	}
}

func newTestEngine() *GeospatialEngine {
	return NewGeospatialEngine(
		NewStaticReference(NewReferenceStore(testReferenceSet())),
		NewRandomLandCover(seeded(1)),
		NewLatitudeEnvironment(seeded(2)),
		testLogger(),
	)
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	readErr error
	reads   int
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: domain.ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Stat derives the ETag from the content, so rewriting an object with new
// bytes changes its version.
func (m *mockStorage) Stat(_ context.Context, key string) (output.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return output.StorageObject{}, m.readErr
	}
	data, ok := m.objects[key]
	if !ok {
		return output.StorageObject{}, &domain.StorageError{Operation: "stat", Key: key, Err: domain.ErrNotFound}
	}
	return output.StorageObject{Key: key, Size: int64(len(data)), ETag: "etag-" + string(data)}, nil
}

func (m *mockStorage) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *mockStorage) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// mockDecoder implements output.ReferenceDecoder. A document is the dataset
// version; "bad" fails validation.
type mockDecoder struct{}

func (mockDecoder) Decode(name string, data []byte) (domain.ReferenceSet, error) {
	if string(data) == "bad" {
		return domain.ReferenceSet{}, &domain.ReferenceError{Source: name, Reason: "schema violation"}
	}
	set := testReferenceSet()
	set.Version = string(data)
	set.ProtectedAreas = set.ProtectedAreas[:1]
	return set, nil
}

func (mockDecoder) Default() (domain.ReferenceSet, error) {
	set := testReferenceSet()
	set.Version = "builtin"
	return set, nil
}

// mockImages implements output.ImageSource.
type mockImages struct {
	fail  map[string]error
	delay time.Duration
}

func (m *mockImages) Fetch(ctx context.Context, url string) ([]byte, domain.SatelliteSource, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if err, ok := m.fail[url]; ok {
		return nil, "", err
	}
	return []byte(url), domain.DetectSatelliteSource(url), nil
}

// mockPreprocessor implements output.Preprocessor.
type mockPreprocessor struct{}

func (mockPreprocessor) Preprocess(_ context.Context, img []byte, w, h int) (domain.PreprocessedImage, error) {
	return domain.PreprocessedImage{Data: img, Width: w, Height: h, Format: "png"}, nil
}

// mockDetector implements output.DetectionModel.
type mockDetector struct {
	name    string
	dets    []domain.Detection
	err     error
	loadErr error
	panicOn string // image payload that makes Predict panic
	calls   atomic.Int32
}

func (m *mockDetector) Name() string { return m.name }

func (m *mockDetector) Load(_ context.Context) error { return m.loadErr }

func (m *mockDetector) Predict(_ context.Context, img domain.PreprocessedImage) ([]domain.Detection, error) {
	m.calls.Add(1)
	if m.panicOn != "" && string(img.Data) == m.panicOn {
		panic("detector crashed")
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Detection, len(m.dets))
	copy(out, m.dets)
	return out, nil
}

func (m *mockDetector) Info() domain.ModelInfo {
	return domain.ModelInfo{Name: m.name, Version: "1.0.0"}
}

// mockAssessor implements output.RiskAssessorModel.
type mockAssessor struct {
	score     domain.RiskScore
	breakdown domain.RiskFactorBreakdown
	err       error
	got       domain.RiskData
}

func (m *mockAssessor) Load(_ context.Context) error { return nil }

func (m *mockAssessor) Assess(_ context.Context, data domain.RiskData) (domain.RiskScore, error) {
	m.got = data
	return m.score, m.err
}

func (m *mockAssessor) Factors(_ context.Context, _ domain.RiskData) (domain.RiskFactorBreakdown, error) {
	return m.breakdown, nil
}

func (m *mockAssessor) Info() domain.ModelInfo {
	return domain.ModelInfo{Name: ModelRiskAssessment, Version: "baseline"}
}

// mockGateway implements output.PersistenceGateway.
type mockGateway struct {
	mu          sync.Mutex
	suppliers   map[string]*domain.Supplier
	detections  []domain.StoredDetection
	historical  []domain.HistoricalAssessment
	trendRows   []domain.TrendRow
	trendCalls  int
	storeErr    error
	assessErr   error
	pingErr     error
	stored      map[string][]domain.Detection
	assessments []*domain.RiskAssessment
	since       time.Time
	block       chan struct{}
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		suppliers: map[string]*domain.Supplier{},
		stored:    map[string][]domain.Detection{},
	}
}

func (m *mockGateway) StoreDetections(_ context.Context, imageID, _ string, dets []domain.Detection, _ domain.GeospatialAnalysis) ([]string, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	m.stored[imageID] = dets
	ids := make([]string, len(dets))
	for i := range dets {
		ids[i] = imageID + "-" + string(rune('a'+i))
	}
	return ids, nil
}

func (m *mockGateway) StoreRiskAssessment(_ context.Context, a *domain.RiskAssessment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assessErr != nil {
		return "", m.assessErr
	}
	m.assessments = append(m.assessments, a)
	return "assessment-1", nil
}

func (m *mockGateway) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return nil, domain.ErrSupplierNotFound
	}
	return s, nil
}

func (m *mockGateway) RecentDetections(_ context.Context, _ string, since time.Time) ([]domain.StoredDetection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	return m.detections, nil
}

func (m *mockGateway) HistoricalAssessments(_ context.Context, _ string, _ time.Time) ([]domain.HistoricalAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historical, nil
}

func (m *mockGateway) SupplierDetections(_ context.Context, _ string, limit int) ([]domain.StoredDetection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit < len(m.detections) {
		return m.detections[:limit], nil
	}
	return m.detections, nil
}

func (m *mockGateway) TrendRows(_ context.Context, _ string, _, _ *time.Time) ([]domain.TrendRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trendCalls++
	return m.trendRows, nil
}

func (m *mockGateway) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *mockGateway) storedFor(imageID string) ([]domain.Detection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.stored[imageID]
	return d, ok
}

// mockSink implements output.DeadLetterSink.
type mockSink struct {
	mu      sync.Mutex
	letters []domain.DeadLetter
}

func (m *mockSink) Write(_ context.Context, dl domain.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, dl)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.letters)
}

// mockCache implements output.Cache in memory, ignoring TTLs.
type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	pingErr error
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string][]byte{}}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *mockCache) Ping(_ context.Context) error { return m.pingErr }

func (m *mockCache) Close() error { return nil }

// jsonCodec implements output.ValueCodec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// mockNotifier implements output.CallbackNotifier.
type mockNotifier struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, _ string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return m.err
}

// failingLandCover implements output.LandCoverEstimator.
type failingLandCover struct {
	panics bool
}

func (f failingLandCover) EstimateLandCover(_ domain.Extent) (domain.LandUseDistribution, error) {
	if f.panics {
		panic("land cover exploded")
	}
	return nil, errors.New("land cover unavailable")
}
