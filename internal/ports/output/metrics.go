package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncPipelineStage counts a pipeline state transition.
	IncPipelineStage(stage string, status string)

	// ObservePipelineDuration records the wall time of a single-image run.
	ObservePipelineDuration(status string, duration time.Duration)

	// AddDetections counts emitted detections by type.
	AddDetections(detectionType string, n int)

	// ObserveBatchSize records the number of images in a batch.
	ObserveBatchSize(n int)

	// SetQueueDepth sets the number of pending persistence tasks.
	SetQueueDepth(n int)

	// IncPersistenceTasks counts finished persistence tasks by outcome.
	IncPersistenceTasks(state string)

	// IncCacheLookup counts cache hits and misses.
	IncCacheLookup(hit bool)

	// SetReferenceFeatures sets the number of loaded reference features by kind.
	SetReferenceFeatures(kind string, count int)

	// IncReferenceReloads counts reference dataset reloads.
	IncReferenceReloads(success bool)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncPipelineStage implements MetricsCollector.
func (n *NoOpMetrics) IncPipelineStage(_, _ string) {}

// ObservePipelineDuration implements MetricsCollector.
func (n *NoOpMetrics) ObservePipelineDuration(_ string, _ time.Duration) {}

// AddDetections implements MetricsCollector.
func (n *NoOpMetrics) AddDetections(_ string, _ int) {}

// ObserveBatchSize implements MetricsCollector.
func (n *NoOpMetrics) ObserveBatchSize(_ int) {}

// SetQueueDepth implements MetricsCollector.
func (n *NoOpMetrics) SetQueueDepth(_ int) {}

// IncPersistenceTasks implements MetricsCollector.
func (n *NoOpMetrics) IncPersistenceTasks(_ string) {}

// IncCacheLookup implements MetricsCollector.
func (n *NoOpMetrics) IncCacheLookup(_ bool) {}

// SetReferenceFeatures implements MetricsCollector.
func (n *NoOpMetrics) SetReferenceFeatures(_ string, _ int) {}

// IncReferenceReloads implements MetricsCollector.
func (n *NoOpMetrics) IncReferenceReloads(_ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
