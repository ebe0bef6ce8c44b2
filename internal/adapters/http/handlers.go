package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// detectionsQuery are the query parameters of GET /detections/{supplier_id}.
type detectionsQuery struct {
	Limit int `schema:"limit" validate:"omitempty,gte=1,lte=1000"`
}

// trendsQuery are the query parameters of GET /analytics/trends.
type trendsQuery struct {
	OrganizationID string `schema:"organization_id" validate:"required"`
	StartDate      string `schema:"start_date"`
	EndDate        string `schema:"end_date"`
}

// riskMapQuery are the query parameters of GET /analytics/risk-map. The box
// is optional but must be given in full.
type riskMapQuery struct {
	MinLat   *float64 `schema:"min_lat" validate:"omitempty,gte=-90,lte=90"`
	MinLng   *float64 `schema:"min_lng" validate:"omitempty,gte=-180,lte=180"`
	MaxLat   *float64 `schema:"max_lat" validate:"omitempty,gte=-90,lte=90"`
	MaxLng   *float64 `schema:"max_lng" validate:"omitempty,gte=-180,lte=180"`
	RiskType string   `schema:"risk_type"`
}

// distanceQuery are the query parameters of GET /analytics/distance.
type distanceQuery struct {
	Lat         *float64 `schema:"lat" validate:"required,gte=-90,lte=90"`
	Lng         *float64 `schema:"lng" validate:"required,gte=-180,lte=180"`
	FeatureType string   `schema:"feature_type"`
}

// locationRequest is the body of POST /analyze/location.
type locationRequest struct {
	Coordinates domain.Coordinate   `json:"coordinates"`
	Bounds      domain.BoundingArea `json:"bounds"`
}

// handleProcessImage runs the pipeline for one image.
func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	var req domain.ProcessImageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.services.Processor.ProcessImage(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleProcessBatch runs a batch of images.
func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.services.Processor.ProcessBatch(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleAssessRisk assesses one supplier.
func (s *Server) handleAssessRisk(w http.ResponseWriter, r *http.Request) {
	var req domain.RiskAssessmentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	assessment, err := s.services.Assessor.AssessRisk(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, assessment)
}

// handleAnalyzeLocation analyses a point against the reference dataset.
func (s *Server) handleAnalyzeLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Bounds.Validate(); err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	analysis := s.services.Spatial.AnalyzeLocation(r.Context(), req.Coordinates, req.Bounds)
	s.writeJSON(w, http.StatusOK, analysis)
}

// handleDetections lists stored detections for a supplier.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	supplierID := mux.Vars(r)["supplier_id"]

	var q detectionsQuery
	if !s.decodeQuery(w, r, &q) {
		return
	}

	dets, err := s.services.Analytics.SupplierDetections(r.Context(), supplierID, q.Limit)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"supplier_id": supplierID,
		"detections":  dets,
		"count":       len(dets),
	})
}

// handleTrends aggregates detection trends for an organization.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	var q trendsQuery
	if !s.decodeQuery(w, r, &q) {
		return
	}

	start, err := parseDate("start_date", q.StartDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	end, err := parseDate("end_date", q.EndDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}

	trends, err := s.services.Analytics.Trends(r.Context(), domain.TrendQuery{
		OrganizationID: q.OrganizationID,
		Start:          start,
		End:            end,
	})
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, trends)
}

// handleRiskMap samples a risk grid over the requested box.
func (s *Server) handleRiskMap(w http.ResponseWriter, r *http.Request) {
	var q riskMapQuery
	if !s.decodeQuery(w, r, &q) {
		return
	}

	var bounds domain.BoundingArea
	switch countSet(q.MinLat, q.MinLng, q.MaxLat, q.MaxLng) {
	case 0:
	case 4:
		bounds.Box = &domain.Extent{MinLat: *q.MinLat, MinLng: *q.MinLng, MaxLat: *q.MaxLat, MaxLng: *q.MaxLng}
	default:
		s.writeError(w, http.StatusBadRequest, CodeValidation,
			"min_lat, min_lng, max_lat and max_lng must be given together", nil)
		return
	}
	if err := bounds.Validate(); err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	riskType := domain.RiskType(q.RiskType)
	if riskType == "" {
		riskType = domain.RiskTypeDeforestation
	}

	riskMap, err := s.services.Spatial.RiskMap(r.Context(), bounds, riskType)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, riskMap)
}

// handleDistance reports distances from a point to one feature layer.
func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	var q distanceQuery
	if !s.decodeQuery(w, r, &q) {
		return
	}

	featureType := domain.FeatureType(q.FeatureType)
	if featureType == "" {
		featureType = domain.FeatureProtectedAreas
	}
	c := domain.NewCoordinate(*q.Lat, *q.Lng)

	distances, err := s.services.Spatial.DistanceToFeatures(r.Context(), c, featureType)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"coordinates":  c,
		"feature_type": featureType,
		"distances_km": distances,
	})
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.services.Health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]any{
		"status":             boolToStatus(details.Healthy),
		"timestamp":          time.Now().UTC(),
		"ready":              details.Ready,
		"models_loaded":      details.ModelsLoaded,
		"database_connected": details.DatabaseConnected,
		"cache_connected":    details.CacheConnected,
		"reference_version":  details.ReferenceVersion,
		"version":            s.opts.Version,
		"components":         details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.services.Health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.services.Health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleModelsInfo describes every registered model.
func (s *Server) handleModelsInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"models": s.services.Models.Info(),
		"loaded": s.services.Models.Loaded(),
	})
}

// handleTaskStatus reports a persistence task.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.services.Tasks.Status(mux.Vars(r)["task_id"])
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleReferenceInfo describes the active reference dataset.
func (s *Server) handleReferenceInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.services.Reference.Info())
}

// handleReferenceSync reloads the reference dataset from storage.
func (s *Server) handleReferenceSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Sync.TriggerSync(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func countSet(values ...*float64) int {
	n := 0
	for _, v := range values {
		if v != nil {
			n++
		}
	}
	return n
}

func boolToStatus(b bool) string {
	if b {
		return "healthy"
	}
	return "unhealthy"
}
