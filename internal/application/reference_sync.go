package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncCooldown is the minimum spacing between API-triggered syncs.
const SyncCooldown = 30 * time.Second

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return ErrRateLimited.Error()
}

// Unwrap returns ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	Version         string    `json:"version"`
	Source          string    `json:"source"`
	Changed         bool      `json:"changed"`
	ProtectedAreas  int       `json:"protected_areas"`
	Countries       int       `json:"countries"`
	RiskZones       int       `json:"risk_zones"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService periodically reloads the reference dataset.
type SyncService struct {
	registry *ReferenceRegistry
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	// Rate limiting for API triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Prevents concurrent sync operations
	syncOpMutex sync.Mutex

	nextSync time.Time
	syncMu   sync.RWMutex
}

// NewSyncService creates a new sync service.
func NewSyncService(registry *ReferenceRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run reloads the dataset every interval until ctx is canceled.
func (s *SyncService) Run(ctx context.Context) error {
	s.logger.Info("starting reference sync", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(s.now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reference sync stopped")
			return nil
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.doSync(ctx); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
			s.setNextSync(s.now().Add(s.interval))
		}
	}
}

// TriggerSync runs a sync on behalf of an API caller. Calls closer than
// SyncCooldown apart get a *RateLimitError.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.apiMutex.Lock()
	now := s.now()
	if !s.lastAPISync.IsZero() {
		if wait := SyncCooldown - now.Sub(s.lastAPISync); wait > 0 {
			s.apiMutex.Unlock()
			return SyncResult{}, &RateLimitError{RetryAfter: wait}
		}
	}
	s.lastAPISync = now
	s.apiMutex.Unlock()

	return s.doSync(ctx)
}

func (s *SyncService) doSync(ctx context.Context) (SyncResult, error) {
	s.syncOpMutex.Lock()
	defer s.syncOpMutex.Unlock()

	changed, err := s.registry.Refresh(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	info := s.registry.Info()
	return SyncResult{
		Version:         info.Version,
		Source:          info.Source,
		Changed:         changed,
		ProtectedAreas:  info.ProtectedAreas,
		Countries:       info.Countries,
		RiskZones:       info.RiskZones,
		SyncedAt:        s.now().UTC(),
		NextScheduledAt: s.getNextSync(),
	}, nil
}

func (s *SyncService) setNextSync(t time.Time) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.nextSync = t
}

func (s *SyncService) getNextSync() time.Time {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
