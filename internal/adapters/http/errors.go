package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/application"
	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// Error codes carried in the error envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeProcessingFailed = "PROCESSING_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "UNAVAILABLE"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	ErrorCode string    `json:"error_code"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint,omitempty"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     message,
		ErrorCode: code,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

// handleServiceError maps the domain error taxonomy onto the envelope.
// Server-side failures keep the original message.
func (s *Server) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *domain.ValidationError
		rateErr       *application.RateLimitError
		pipelineErr   *domain.PipelineError
		modelErr      *domain.ModelError
	)

	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
		s.writeError(w, http.StatusTooManyRequests, CodeRateLimited, err.Error(), map[string]float64{
			"retry_after_seconds": math.Ceil(rateErr.RetryAfter.Seconds()),
		})
		return
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, CodeValidation, validationErr.Message, []FieldError{{
			Field:      validationErr.Field,
			Constraint: validationErr.Constraint,
			Value:      validationErr.Value,
		}})
		return
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupported):
		s.writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
		return
	case errors.Is(err, domain.ErrUnavailable):
		s.logger.Warn("dependency unavailable", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
		return
	case errors.As(err, &pipelineErr):
		s.logger.Error("processing failed", "image_id", pipelineErr.ImageID, "stage", pipelineErr.Stage, "error", err)
		s.writeError(w, http.StatusInternalServerError, CodeProcessingFailed, err.Error(), map[string]string{
			"image_id": pipelineErr.ImageID,
			"stage":    string(pipelineErr.Stage),
		})
		return
	case errors.As(err, &modelErr):
		s.logger.Error("model failed", "model", modelErr.Model, "error", err)
		s.writeError(w, http.StatusInternalServerError, CodeProcessingFailed, err.Error(), nil)
		return
	}

	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path, nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusMethodNotAllowed, CodeValidation, r.Method+" not allowed on "+r.URL.Path, nil)
}
