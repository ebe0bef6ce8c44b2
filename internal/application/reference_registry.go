package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/input"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// ReferenceProvider hands out the current reference snapshot.
type ReferenceProvider interface {
	Store() *ReferenceStore
}

// StaticReference is a ReferenceProvider that never changes.
type StaticReference struct {
	store *ReferenceStore
}

// NewStaticReference wraps a fixed store.
func NewStaticReference(store *ReferenceStore) *StaticReference {
	return &StaticReference{store: store}
}

// Store implements ReferenceProvider.
func (s *StaticReference) Store() *ReferenceStore { return s.store }

// defaultSource names the built-in dataset.
const defaultSource = "builtin"

// ReferenceRegistry holds the active reference snapshot and reloads it from
// object storage. Readers never block; a failed reload keeps the previous
// snapshot.
type ReferenceRegistry struct {
	current atomic.Pointer[referenceEntry]
	loadMu  sync.Mutex

	storage output.ObjectStorage
	decoder output.ReferenceDecoder
	key     string
	metrics output.MetricsCollector
	logger  *slog.Logger
}

type referenceEntry struct {
	store    *ReferenceStore
	source   string
	object   output.StorageObject
	loadedAt time.Time
}

// NewReferenceRegistry creates a registry and installs the built-in dataset.
// key names the dataset object in storage; an empty key or nil storage keeps
// the built-in dataset.
func NewReferenceRegistry(
	storage output.ObjectStorage,
	decoder output.ReferenceDecoder,
	key string,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) (*ReferenceRegistry, error) {
	r := &ReferenceRegistry{
		storage: storage,
		decoder: decoder,
		key:     key,
		metrics: metrics,
		logger:  logger,
	}

	set, err := decoder.Default()
	if err != nil {
		return nil, fmt.Errorf("loading built-in reference dataset: %w", err)
	}
	r.install(set, defaultSource, output.StorageObject{})
	return r, nil
}

// Store implements ReferenceProvider.
func (r *ReferenceRegistry) Store() *ReferenceStore {
	return r.current.Load().store
}

// Key returns the configured dataset key.
func (r *ReferenceRegistry) Key() string {
	return r.key
}

// Load fetches, validates and installs the configured dataset.
func (r *ReferenceRegistry) Load(ctx context.Context) error {
	_, err := r.load(ctx, true)
	return err
}

// Refresh reloads the dataset only when its storage metadata differs from
// the installed snapshot. It reports whether a new snapshot was installed.
func (r *ReferenceRegistry) Refresh(ctx context.Context) (bool, error) {
	return r.load(ctx, false)
}

func (r *ReferenceRegistry) load(ctx context.Context, force bool) (bool, error) {
	if r.key == "" || r.storage == nil {
		return false, nil
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	obj, err := r.storage.Stat(ctx, r.key)
	if err == nil && !force {
		if cur := r.current.Load(); cur.source == r.key && cur.object.SameContent(obj) {
			r.logger.Debug("reference dataset unchanged", "key", r.key, "version", cur.store.Version())
			return false, nil
		}
	}

	r.logger.Info("loading reference dataset", "key", r.key, "size", obj.Size, "etag", obj.ETag)

	start := time.Now()
	var set domain.ReferenceSet
	if err == nil {
		set, err = r.fetch(ctx)
	}
	r.metrics.ObserveStorageDuration("reference", time.Since(start))
	r.metrics.IncStorageOperations("reference", err == nil)
	r.metrics.IncReferenceReloads(err == nil)
	if err != nil {
		r.logger.Error("failed to load reference dataset, keeping previous snapshot",
			"key", r.key,
			"version", r.Store().Version(),
			"error", err,
		)
		return false, err
	}

	r.install(set, r.key, obj)
	return true, nil
}

// Sync implements input.ReferenceManager.
func (r *ReferenceRegistry) Sync(ctx context.Context) error {
	return r.Load(ctx)
}

// Matches reports whether a local path refers to the configured dataset.
func (r *ReferenceRegistry) Matches(path string) bool {
	return r.key != "" && filepath.Base(path) == filepath.Base(r.key)
}

// Info implements input.ReferenceManager.
func (r *ReferenceRegistry) Info() input.ReferenceInfo {
	e := r.current.Load()
	areas, countries, zones := e.store.Counts()
	info := input.ReferenceInfo{
		Version:        e.store.Version(),
		Source:         e.source,
		ETag:           e.object.ETag,
		ProtectedAreas: areas,
		Countries:      countries,
		RiskZones:      zones,
		LoadedAt:       e.loadedAt,
	}
	if !e.object.LastModified.IsZero() {
		modified := e.object.LastModified
		info.ModifiedAt = &modified
	}
	return info
}

func (r *ReferenceRegistry) fetch(ctx context.Context) (domain.ReferenceSet, error) {
	rc, err := r.storage.GetReader(ctx, r.key)
	if err != nil {
		return domain.ReferenceSet{}, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.ReferenceSet{}, &domain.StorageError{Operation: "read", Key: r.key, Err: err}
	}
	return r.decoder.Decode(r.key, data)
}

func (r *ReferenceRegistry) install(set domain.ReferenceSet, source string, obj output.StorageObject) {
	r.current.Store(&referenceEntry{
		store:    NewReferenceStore(set),
		source:   source,
		object:   obj,
		loadedAt: time.Now().UTC(),
	})

	r.metrics.SetReferenceFeatures("protected_areas", len(set.ProtectedAreas))
	r.metrics.SetReferenceFeatures("countries", len(set.Countries))
	r.metrics.SetReferenceFeatures("risk_zones", len(set.RiskZones))

	r.logger.Info("reference dataset installed",
		"source", source,
		"version", set.Version,
		"protected_areas", len(set.ProtectedAreas),
		"countries", len(set.Countries),
		"risk_zones", len(set.RiskZones),
	)
}
