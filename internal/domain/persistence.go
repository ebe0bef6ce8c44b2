package domain

import "time"

// TaskState tracks a background persistence task.
type TaskState string

// Persistence task states.
const (
	TaskPending      TaskState = "PENDING"
	TaskRunning      TaskState = "RUNNING"
	TaskSucceeded    TaskState = "SUCCEEDED"
	TaskDeadLettered TaskState = "DEAD_LETTERED"
)

// TaskStatus is the observable state of one persistence task.
type TaskStatus struct {
	ID          string    `json:"task_id"`
	ImageID     string    `json:"image_id"`
	State       TaskState `json:"state"`
	StoredIDs   []string  `json:"stored_ids,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// DeadLetter records a persistence task that could not be stored.
type DeadLetter struct {
	TaskID     string             `json:"task_id"`
	ImageID    string             `json:"image_id"`
	ImageURL   string             `json:"image_url"`
	Reason     string             `json:"reason"`
	Detections []Detection        `json:"detections"`
	Analysis   GeospatialAnalysis `json:"geospatial_analysis"`
	FailedAt   time.Time          `json:"failed_at"`
}
