package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// BadgerConfig holds embedded cache settings.
type BadgerConfig struct {
	Path       string
	InMemory   bool
	GCInterval time.Duration // 0 disables value log GC
}

// BadgerCache implements output.Cache on an embedded Badger database.
type BadgerCache struct {
	db      *badger.DB
	metrics output.MetricsCollector
	logger  *slog.Logger
	stop    chan struct{}
	done    chan struct{}
}

// badgerLogger routes Badger's internal logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadgerCache opens the database.
func NewBadgerCache(cfg BadgerConfig, metrics output.MetricsCollector, logger *slog.Logger) (*BadgerCache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for a persistent cache")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache: %w", err)
	}

	c := &BadgerCache{
		db:      db,
		metrics: metrics,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go c.runGC(cfg.GCInterval)
	} else {
		close(c.done)
	}
	return c, nil
}

// Get returns the cached value. Missing and expired keys are (nil, false, nil).
func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		c.metrics.IncCacheLookup(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StorageError{Operation: "cache_get", Key: key, Err: err}
	}
	c.metrics.IncCacheLookup(true)
	return val, true, nil
}

// Set stores value with the given TTL. A zero TTL never expires.
func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return &domain.StorageError{Operation: "cache_set", Key: key, Err: err}
	}
	return nil
}

// Ping reports whether the database is open.
func (c *BadgerCache) Ping(_ context.Context) error {
	if c.db.IsClosed() {
		return fmt.Errorf("badger cache closed: %w", domain.ErrUnavailable)
	}
	return nil
}

// Close stops GC and closes the database.
func (c *BadgerCache) Close() error {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
	return c.db.Close()
}

func (c *BadgerCache) runGC(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			for {
				err := c.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						c.logger.Warn("cache value log GC failed", "error", err)
					}
					break
				}
			}
		}
	}
}
