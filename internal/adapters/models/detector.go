package models

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// DetectorConfig points at a remote detection service.
type DetectorConfig struct {
	Name      string
	Endpoint  string
	Version   string
	Timeout   time.Duration
	InputSize int
	Transport http.RoundTripper
}

// RemoteDetector implements output.DetectionModel against an inference
// service exposing GET /info and POST /predict.
type RemoteDetector struct {
	name      string
	inputSize int
	client    inferenceClient

	mu   sync.RWMutex
	info domain.ModelInfo
}

type predictResponse struct {
	ModelVersion string             `json:"model_version"`
	Detections   []domain.Detection `json:"detections"`
}

// NewRemoteDetector creates a detector client.
func NewRemoteDetector(cfg DetectorConfig) *RemoteDetector {
	return &RemoteDetector{
		name:      cfg.Name,
		inputSize: cfg.InputSize,
		client:    newInferenceClient(cfg.Endpoint, cfg.Timeout, cfg.Transport),
		info: domain.ModelInfo{
			Name:         cfg.Name,
			Version:      cfg.Version,
			Architecture: "remote",
			InputSize:    []int{cfg.InputSize, cfg.InputSize, 3},
		},
	}
}

// Name implements output.DetectionModel.
func (d *RemoteDetector) Name() string { return d.name }

// Load fetches the model description and fails if the service is down.
func (d *RemoteDetector) Load(ctx context.Context) error {
	var info domain.ModelInfo
	if err := d.client.do(ctx, http.MethodGet, "/info", "", nil, &info); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Version != "" {
		d.info.Version = info.Version
	}
	if info.Architecture != "" {
		d.info.Architecture = info.Architecture
	}
	if len(info.OutputClasses) > 0 {
		d.info.OutputClasses = info.OutputClasses
	}
	d.info.Features = info.Features
	return nil
}

// Predict posts the preprocessed image and validates the returned detections.
func (d *RemoteDetector) Predict(ctx context.Context, img domain.PreprocessedImage) ([]domain.Detection, error) {
	path := "/predict?width=" + strconv.Itoa(img.Width) + "&height=" + strconv.Itoa(img.Height)

	var resp predictResponse
	if err := d.client.do(ctx, http.MethodPost, path, "image/"+img.Format, bytes.NewReader(img.Data), &resp); err != nil {
		return nil, err
	}

	version := resp.ModelVersion
	if version == "" {
		version = d.Info().Version
	}

	out := make([]domain.Detection, 0, len(resp.Detections))
	for i := range resp.Detections {
		det := resp.Detections[i]
		if err := det.Normalize(); err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		det.Metadata.ModelVersion = version
		out = append(out, det)
	}
	return out, nil
}

// Info implements output.DetectionModel.
func (d *RemoteDetector) Info() domain.ModelInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info
}

// NullDetector is used when no inference endpoint is configured. It loads
// successfully and never detects anything.
type NullDetector struct {
	name string
}

// NewNullDetector creates a detector that reports no activity.
func NewNullDetector(name string) *NullDetector {
	return &NullDetector{name: name}
}

// Name implements output.DetectionModel.
func (n *NullDetector) Name() string { return n.name }

// Load implements output.DetectionModel.
func (n *NullDetector) Load(context.Context) error { return nil }

// Predict implements output.DetectionModel.
func (n *NullDetector) Predict(context.Context, domain.PreprocessedImage) ([]domain.Detection, error) {
	return []domain.Detection{}, nil
}

// Info implements output.DetectionModel.
func (n *NullDetector) Info() domain.ModelInfo {
	return domain.ModelInfo{Name: n.name, Version: "0.0.0", Architecture: "none"}
}
