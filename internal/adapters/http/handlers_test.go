package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/application"
	"github.com/dogwifhat6/supplychain-lens/internal/config"
	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var env ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal error envelope: %v (%s)", err, rr.Body.String())
	}
	if env.Timestamp.IsZero() {
		t.Error("envelope timestamp is zero")
	}
	return env
}

func TestHandleHealth(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["version"] != "test" || resp["reference_version"] != "v1" {
		t.Errorf("version fields = %v / %v", resp["version"], resp["reference_version"])
	}
	if resp["database_connected"] != true || resp["cache_connected"] != false {
		t.Errorf("connectivity = %v / %v", resp["database_connected"], resp["cache_connected"])
	}
	models, ok := resp["models_loaded"].(map[string]any)
	if !ok {
		t.Fatalf("models_loaded = %T", resp["models_loaded"])
	}
	for _, name := range []string{"deforestation", "mining", "risk_assessment"} {
		if models[name] != true {
			t.Errorf("models_loaded[%s] = %v", name, models[name])
		}
	}

	h.health.healthy = false
	if rr := serve(h.srv, http.MethodGet, "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rr.Code)
	}
}

func TestProbes(t *testing.T) {
	h := newTestHarness(nil)
	h.health.ready = false

	if rr := serve(h.srv, http.MethodGet, "/health/live", ""); rr.Code != http.StatusOK {
		t.Errorf("live = %d, want 200", rr.Code)
	}
	if rr := serve(h.srv, http.MethodGet, "/health/ready", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("ready = %d, want 503", rr.Code)
	}
}

func TestHandleProcessImage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
	}{
		{
			name:     "valid",
			body:     `{"image_id":"img-1","image_url":"https://example.com/a.tif","coordinates":{"lat":-3.4,"lng":-55.1},"detect_mining":false}`,
			wantCode: http.StatusOK,
		},
		{
			name:      "missing image id",
			body:      `{"image_url":"https://example.com/a.tif"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "image_id",
		},
		{
			name:      "latitude out of range",
			body:      `{"image_id":"img-1","image_url":"s3://a.tif","coordinates":{"lat":200,"lng":0}}`,
			wantCode:  http.StatusBadRequest,
			wantField: "coordinates.lat",
		},
		{
			name:      "ring too short",
			body:      `{"image_id":"img-1","image_url":"a.tif","bounds":{"ring":[{"lat":0,"lng":0},{"lat":1,"lng":1}]}}`,
			wantCode:  http.StatusBadRequest,
			wantField: "bounds.ring",
		},
		{
			name:     "malformed json",
			body:     `{"image_id":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(nil)
			rr := serve(h.srv, http.MethodPost, "/process/satellite-image", tt.body)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				if h.processor.lastImage.ImageID != "img-1" || h.processor.lastImage.WantsMining() {
					t.Errorf("request not forwarded: %+v", h.processor.lastImage)
				}
				return
			}

			env := decodeEnvelope(t, rr)
			if env.ErrorCode != CodeValidation {
				t.Errorf("error_code = %q, want %q", env.ErrorCode, CodeValidation)
			}
			if tt.wantField == "" {
				return
			}
			raw, _ := json.Marshal(env.Details)
			if !strings.Contains(string(raw), `"field":"`+tt.wantField+`"`) {
				t.Errorf("details = %s, want field %q", raw, tt.wantField)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h := newTestHarness(func(c *config.ServerConfig) { c.MaxBodyBytes = 64 })

	body := fmt.Sprintf(`{"image_id":"img-1","image_url":"%s"}`, strings.Repeat("x", 200))
	rr := serve(h.srv, http.MethodPost, "/process/satellite-image", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if env := decodeEnvelope(t, rr); !strings.Contains(env.Error, "64 bytes") {
		t.Errorf("error = %q", env.Error)
	}
}

func TestHandleProcessBatch(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodPost, "/process/batch", `{"batch_id":"b1","images":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rr.Code)
	}

	rr = serve(h.srv, http.MethodPost, "/process/batch", `{"batch_id":"b1","priority":"urgent","images":[{"image_id":"a","image_url":"a.tif"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad priority status = %d, want 400", rr.Code)
	}

	rr = serve(h.srv, http.MethodPost, "/process/batch",
		`{"batch_id":"b1","callback_url":"https://hooks.example.com/done","images":[{"image_id":"a","image_url":"a.tif"},{"image_id":"b","image_url":"b.tif"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	var res domain.BatchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.TotalImages != 2 || len(h.processor.lastBatch.Images) != 2 {
		t.Errorf("total = %d, forwarded = %d", res.TotalImages, len(h.processor.lastBatch.Images))
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantEnv  string
		wantMsg  string
	}{
		{
			name:     "validation",
			err:      &domain.ValidationError{Field: "lat", Constraint: "[-90, 90]", Message: "latitude out of range"},
			wantCode: http.StatusBadRequest,
			wantEnv:  CodeValidation,
			wantMsg:  "latitude out of range",
		},
		{
			name:     "unsupported",
			err:      domain.ErrUnsupportedRiskType,
			wantCode: http.StatusBadRequest,
			wantEnv:  CodeValidation,
		},
		{
			name:     "supplier not found",
			err:      fmt.Errorf("assessing: %w", domain.ErrSupplierNotFound),
			wantCode: http.StatusNotFound,
			wantEnv:  CodeNotFound,
		},
		{
			name:     "queue full",
			err:      domain.ErrQueueFull,
			wantCode: http.StatusServiceUnavailable,
			wantEnv:  CodeUnavailable,
		},
		{
			name:     "pipeline failure keeps message",
			err:      &domain.PipelineError{ImageID: "img-1", Stage: domain.StateDetecting, Err: errors.New("detector timed out")},
			wantCode: http.StatusInternalServerError,
			wantEnv:  CodeProcessingFailed,
			wantMsg:  "detector timed out",
		},
		{
			name:     "model failure",
			err:      &domain.ModelError{Model: "risk_assessment", Op: "assess", Err: errors.New("bad gateway")},
			wantCode: http.StatusInternalServerError,
			wantEnv:  CodeProcessingFailed,
		},
		{
			name:     "unknown keeps message",
			err:      errors.New("connection reset by peer"),
			wantCode: http.StatusInternalServerError,
			wantEnv:  CodeInternal,
			wantMsg:  "connection reset by peer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(nil)
			h.assessor.err = tt.err

			rr := serve(h.srv, http.MethodPost, "/assess/risk", `{"supplier_id":"sup-1"}`)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			env := decodeEnvelope(t, rr)
			if env.ErrorCode != tt.wantEnv {
				t.Errorf("error_code = %q, want %q", env.ErrorCode, tt.wantEnv)
			}
			if tt.wantMsg != "" && !strings.Contains(env.Error, tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", env.Error, tt.wantMsg)
			}
		})
	}
}

func TestHandleAssessRisk(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodPost, "/assess/risk", `{"supplier_id":"sup-1","assessment_period":4000}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("period above max status = %d, want 400", rr.Code)
	}

	rr = serve(h.srv, http.MethodPost, "/assess/risk", `{"supplier_id":"sup-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var a domain.RiskAssessment
	if err := json.Unmarshal(rr.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if a.SupplierID != "sup-1" || a.AssessmentPeriod != domain.DefaultAssessmentPeriod {
		t.Errorf("assessment = %+v", a)
	}
}

func TestHandleDetections(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "/detections/sup-1", http.StatusOK, 0},
		{"explicit limit", "/detections/sup-1?limit=5", http.StatusOK, 5},
		{"limit not a number", "/detections/sup-1?limit=abc", http.StatusBadRequest, 0},
		{"limit above max", "/detections/sup-1?limit=5000", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(nil)
			h.analytics.detections = []domain.StoredDetection{{ID: "d1", Type: "DEFORESTATION", Confidence: 0.9}}

			rr := serve(h.srv, http.MethodGet, tt.target, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if h.analytics.lastLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", h.analytics.lastLimit, tt.wantLimit)
			}

			var resp struct {
				SupplierID string `json:"supplier_id"`
				Count      int    `json:"count"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.SupplierID != "sup-1" || resp.Count != 1 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestHandleTrends(t *testing.T) {
	h := newTestHarness(nil)

	if rr := serve(h.srv, http.MethodGet, "/analytics/trends", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing organization status = %d, want 400", rr.Code)
	}
	if rr := serve(h.srv, http.MethodGet, "/analytics/trends?organization_id=org&start_date=yesterday", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rr.Code)
	}

	rr := serve(h.srv, http.MethodGet, "/analytics/trends?organization_id=org&start_date=2024-01-01&end_date=2024-03-31T12:00:00Z", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	q := h.analytics.lastQuery
	if q.OrganizationID != "org" || q.Start == nil || q.End == nil {
		t.Fatalf("query = %+v", q)
	}
	if !q.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", q.Start)
	}
	if !q.End.Equal(time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", q.End)
	}
}

func TestHandleRiskMap(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode int
		wantType domain.RiskType
		wantBox  bool
	}{
		{"defaults", "/analytics/risk-map", http.StatusOK, domain.RiskTypeDeforestation, false},
		{"full box", "/analytics/risk-map?min_lat=-4&min_lng=-56&max_lat=-3&max_lng=-55&risk_type=mining", http.StatusOK, domain.RiskTypeMining, true},
		{"partial box", "/analytics/risk-map?min_lat=-4&max_lat=-3", http.StatusBadRequest, "", false},
		{"inverted box", "/analytics/risk-map?min_lat=-3&min_lng=-56&max_lat=-4&max_lng=-55", http.StatusBadRequest, "", false},
		{"latitude out of range", "/analytics/risk-map?min_lat=-100&min_lng=-56&max_lat=-3&max_lng=-55", http.StatusBadRequest, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(nil)

			rr := serve(h.srv, http.MethodGet, tt.target, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if h.spatial.lastRisk != tt.wantType {
				t.Errorf("risk type = %q, want %q", h.spatial.lastRisk, tt.wantType)
			}
			if (h.spatial.lastBounds.Box != nil) != tt.wantBox {
				t.Errorf("box = %v, want present=%v", h.spatial.lastBounds.Box, tt.wantBox)
			}
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		h := newTestHarness(nil)
		h.spatial.err = domain.ErrUnsupportedRiskType

		rr := serve(h.srv, http.MethodGet, "/analytics/risk-map?risk_type=flooding", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

func TestHandleDistance(t *testing.T) {
	h := newTestHarness(nil)

	if rr := serve(h.srv, http.MethodGet, "/analytics/distance?lng=10", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing lat status = %d, want 400", rr.Code)
	}

	rr := serve(h.srv, http.MethodGet, "/analytics/distance?lat=-3.5&lng=-55.2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if h.spatial.lastFeature != domain.FeatureProtectedAreas {
		t.Errorf("feature = %q, want default", h.spatial.lastFeature)
	}

	var resp struct {
		Distances map[string]float64 `json:"distances_km"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Distances["Tapajos"] != 12.5 {
		t.Errorf("distances = %v", resp.Distances)
	}
}

func TestHandleAnalyzeLocation(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodPost, "/analyze/location", `{"coordinates":{"lat":-3.4,"lng":-55.1},"bounds":{"box":{"min_lat":-4,"min_lng":-56,"max_lat":-3,"max_lng":-55}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if h.spatial.lastBounds.Box == nil {
		t.Error("bounds not forwarded")
	}

	rr = serve(h.srv, http.MethodPost, "/analyze/location", `{"coordinates":{"lat":0,"lng":0},"bounds":{"box":{"min_lat":1,"min_lng":0,"max_lat":0,"max_lng":1}}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("inverted box status = %d, want 400", rr.Code)
	}
}

func TestHandleTaskStatus(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodGet, "/persistence/tasks/task-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var st domain.TaskStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.State != domain.TaskSucceeded {
		t.Errorf("state = %q", st.State)
	}

	rr = serve(h.srv, http.MethodGet, "/persistence/tasks/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing task status = %d, want 404", rr.Code)
	}
}

func TestReferenceEndpoints(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodGet, "/api/v1/reference", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"version":"v1"`) {
		t.Errorf("info = %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(h.srv, http.MethodPost, "/api/v1/reference/sync", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"version":"v2"`) {
		t.Errorf("sync = %d %s", rr.Code, rr.Body.String())
	}

	h.sync.err = &application.RateLimitError{RetryAfter: 29200 * time.Millisecond}
	rr = serve(h.srv, http.MethodPost, "/api/v1/reference/sync", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("rate limited status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != CodeRateLimited {
		t.Errorf("error_code = %q", env.ErrorCode)
	}
}

func TestModelsInfo(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodGet, "/models/info", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"risk_assessment":true`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := newTestHarness(func(c *config.ServerConfig) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, Rate: 0.001, Burst: 1}
	})

	if rr := serve(h.srv, http.MethodGet, "/models/info", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", rr.Code)
	}

	rr := serve(h.srv, http.MethodGet, "/models/info", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != CodeRateLimited {
		t.Errorf("error_code = %q", env.ErrorCode)
	}

	if rr := serve(h.srv, http.MethodGet, "/health/live", ""); rr.Code != http.StatusOK {
		t.Errorf("health probe throttled: %d", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := newTestHarness(nil)
	h.srv.Router().HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("exploded")
	})

	rr := serve(h.srv, http.MethodGet, "/boom", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != CodeInternal || env.Error != "exploded" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != CodeNotFound {
		t.Errorf("error_code = %q", env.ErrorCode)
	}
}

func TestOpenAPIAndDocs(t *testing.T) {
	h := newTestHarness(nil)

	rr := serve(h.srv, http.MethodGet, "/openapi.json", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi.json is not JSON: %v", err)
	}
	for _, path := range []string{"/process/satellite-image", "/analytics/risk-map", "/api/v1/reference/sync"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("openapi.json lacks %s", path)
		}
	}

	rr = serve(h.srv, http.MethodGet, "/docs", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/openapi.json") {
		t.Errorf("docs = %d", rr.Code)
	}
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("lens_up 1\n"))
	})
	h := newTestHarness(nil)
	srv := NewServer(config.ServerConfig{Port: 8000}, h.srv.services,
		Options{MetricsHandler: metrics, MetricsPath: "/metrics"}, h.srv.logger)

	rr := serve(srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "lens_up 1\n" {
		t.Errorf("metrics = %d %q", rr.Code, rr.Body.String())
	}
}
