package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// Dead-letter reasons.
const (
	ReasonQueueFull   = "queue full"
	ReasonQueueClosed = "queue closed"
)

// QueueConfig sizes the persistence queue.
type QueueConfig struct {
	Size         int           // Buffered tasks
	Workers      int           // Concurrent writers
	TaskTimeout  time.Duration // Bound on a single store call
	RetainStatus int           // Task statuses kept for lookup
}

// PersistenceTask is one batch of detections to store.
type PersistenceTask struct {
	ImageID    string
	ImageURL   string
	Detections []domain.Detection
	Analysis   domain.GeospatialAnalysis
}

type queuedTask struct {
	id   string
	task PersistenceTask
}

// PersistenceQueue stores pipeline results in the background. Every task's
// state is observable and failures go to a dead-letter sink instead of being
// dropped.
type PersistenceQueue struct {
	gateway output.PersistenceGateway
	sink    output.DeadLetterSink
	cfg     QueueConfig
	metrics output.MetricsCollector
	logger  *slog.Logger

	tasks chan queuedTask
	wg    sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
	started sync.Once

	statusMu sync.RWMutex
	statuses map[string]*domain.TaskStatus
	order    []string

	newID func() string
	now   func() time.Time
}

// NewPersistenceQueue creates a queue. Call Start to launch the workers.
func NewPersistenceQueue(
	gateway output.PersistenceGateway,
	sink output.DeadLetterSink,
	cfg QueueConfig,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *PersistenceQueue {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = time.Minute
	}
	if cfg.RetainStatus <= 0 {
		cfg.RetainStatus = 10000
	}
	if sink == nil {
		sink = output.NoOpDeadLetters{}
	}

	return &PersistenceQueue{
		gateway:  gateway,
		sink:     sink,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		tasks:    make(chan queuedTask, cfg.Size),
		statuses: make(map[string]*domain.TaskStatus),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Start launches the workers. It is safe to call more than once.
func (q *PersistenceQueue) Start() {
	q.started.Do(func() {
		q.logger.Info("starting persistence workers", "workers", q.cfg.Workers, "queue_size", q.cfg.Size)
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.work()
		}
	})
}

// Submit enqueues a task and returns its ID. A task that cannot be queued is
// dead-lettered immediately and the error says why; its ID stays valid.
func (q *PersistenceQueue) Submit(ctx context.Context, task PersistenceTask) (string, error) {
	id := q.newID()
	q.record(&domain.TaskStatus{
		ID:          id,
		ImageID:     task.ImageID,
		State:       domain.TaskPending,
		SubmittedAt: q.now().UTC(),
	})

	q.closeMu.RLock()
	if q.closed {
		q.closeMu.RUnlock()
		q.deadLetter(ctx, id, task, ReasonQueueClosed)
		return id, domain.ErrQueueClosed
	}

	select {
	case q.tasks <- queuedTask{id: id, task: task}:
		q.closeMu.RUnlock()
		q.metrics.SetQueueDepth(len(q.tasks))
		return id, nil
	default:
		q.closeMu.RUnlock()
		q.deadLetter(ctx, id, task, ReasonQueueFull)
		return id, domain.ErrQueueFull
	}
}

// Status returns the state of a task.
func (q *PersistenceQueue) Status(id string) (domain.TaskStatus, error) {
	q.statusMu.RLock()
	defer q.statusMu.RUnlock()

	st, ok := q.statuses[id]
	if !ok {
		return domain.TaskStatus{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	out := *st
	out.StoredIDs = append([]string(nil), st.StoredIDs...)
	return out, nil
}

// Depth returns the number of queued tasks.
func (q *PersistenceQueue) Depth() int {
	return len(q.tasks)
}

// Drain stops accepting tasks and waits for queued ones to finish or for ctx
// to expire.
func (q *PersistenceQueue) Drain(ctx context.Context) error {
	q.closeMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.closeMu.Unlock()

	// Workers that never started would leave tasks behind.
	q.Start()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("persistence queue drained")
		return nil
	case <-ctx.Done():
		q.logger.Warn("persistence queue drain interrupted", "pending", len(q.tasks))
		return ctx.Err()
	}
}

func (q *PersistenceQueue) work() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.metrics.SetQueueDepth(len(q.tasks))
		q.process(t)
	}
}

func (q *PersistenceQueue) process(t queuedTask) {
	q.update(t.id, func(st *domain.TaskStatus) { st.State = domain.TaskRunning })

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.TaskTimeout)
	defer cancel()

	ids, err := q.gateway.StoreDetections(ctx, t.task.ImageID, t.task.ImageURL, t.task.Detections, t.task.Analysis)
	if err != nil {
		q.logger.Error("failed to store processing results",
			"task_id", t.id,
			"image_id", t.task.ImageID,
			"error", err,
		)
		q.deadLetter(ctx, t.id, t.task, err.Error())
		return
	}

	q.update(t.id, func(st *domain.TaskStatus) {
		st.State = domain.TaskSucceeded
		st.StoredIDs = ids
		st.FinishedAt = q.now().UTC()
	})
	q.metrics.IncPersistenceTasks(string(domain.TaskSucceeded))
	q.logger.Debug("stored processing results", "task_id", t.id, "image_id", t.task.ImageID, "detections", len(ids))
}

func (q *PersistenceQueue) deadLetter(ctx context.Context, id string, task PersistenceTask, reason string) {
	now := q.now().UTC()
	q.update(id, func(st *domain.TaskStatus) {
		st.State = domain.TaskDeadLettered
		st.Error = reason
		st.FinishedAt = now
	})
	q.metrics.IncPersistenceTasks(string(domain.TaskDeadLettered))

	dl := domain.DeadLetter{
		TaskID:     id,
		ImageID:    task.ImageID,
		ImageURL:   task.ImageURL,
		Reason:     reason,
		Detections: task.Detections,
		Analysis:   task.Analysis,
		FailedAt:   now,
	}
	if err := q.sink.Write(context.WithoutCancel(ctx), dl); err != nil {
		q.logger.Error("failed to write dead letter", "task_id", id, "error", err)
	}
}

func (q *PersistenceQueue) record(st *domain.TaskStatus) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()

	q.statuses[st.ID] = st
	q.order = append(q.order, st.ID)
	for len(q.order) > q.cfg.RetainStatus {
		delete(q.statuses, q.order[0])
		q.order = q.order[1:]
	}
}

func (q *PersistenceQueue) update(id string, fn func(*domain.TaskStatus)) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()

	if st, ok := q.statuses[id]; ok {
		fn(st)
	}
}
