// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/afero"

	"github.com/dogwifhat6/supplychain-lens/internal/adapters/cache"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/deadletter"
	httpAdapter "github.com/dogwifhat6/supplychain-lens/internal/adapters/http"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/imagery"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/metrics"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/models"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/notify"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/orbit"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/preprocess"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/reference"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/sqlstore"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/storage"
	tlsAdapter "github.com/dogwifhat6/supplychain-lens/internal/adapters/tls"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/tracing"
	"github.com/dogwifhat6/supplychain-lens/internal/adapters/watcher"
	"github.com/dogwifhat6/supplychain-lens/internal/application"
	"github.com/dogwifhat6/supplychain-lens/internal/config"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string

	Storage   output.ObjectStorage
	Store     *sqlstore.Store
	Cache     output.Cache
	Models    *application.ModelRegistry
	Reference *application.ReferenceRegistry
	Sync      *application.SyncService
	Engine    *application.GeospatialEngine
	Queue     *application.PersistenceQueue
	Pipeline  *application.Pipeline
	Assessor  *application.AssessmentService
	Analytics *application.AnalyticsService
	Health    *application.HealthService

	HTTPServer    *httpAdapter.Server
	TLS           *tlsAdapter.Manager
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
	Tracing       *tracing.Provider

	closers []func() error
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	}

	if err := app.init(ctx); err != nil {
		_ = app.close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: a.Version,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SamplingRate:   cfg.Tracing.SamplingRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	a.Tracing = tp

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewCollector("lens")
		metricsCollector = a.Metrics
		if addr := cfg.MetricsAddress(); addr != "" {
			a.MetricsServer = metrics.NewServer(addr, cfg.Metrics.Path, a.Metrics.Handler(), logger)
		}
	}

	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	a.Storage = store

	a.Store, err = sqlstore.Open(ctx, sqlstore.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		CommandTimeout:  cfg.Database.CommandTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)
	if cfg.Database.Migrate {
		if err := a.Store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	if err := a.initCache(metricsCollector); err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	codec, err := cache.NewCBORCodec()
	if err != nil {
		return fmt.Errorf("initializing cache codec: %w", err)
	}

	a.Reference, err = application.NewReferenceRegistry(store, reference.NewCodec(), cfg.Reference.Dataset, metricsCollector, logger)
	if err != nil {
		return err
	}
	a.Sync = application.NewSyncService(a.Reference, cfg.Reference.SyncInterval, logger)

	a.Models = initModels(cfg, logger)
	a.Engine = newEngine(a.Reference, logger)

	var sink output.DeadLetterSink
	if cfg.Persistence.DeadLetterPath != "" {
		sink = deadletter.NewFileSink(afero.NewOsFs(), cfg.Persistence.DeadLetterPath)
	}
	a.Queue = application.NewPersistenceQueue(a.Store, sink, application.QueueConfig{
		Size:        cfg.Persistence.QueueSize,
		Workers:     cfg.Persistence.Workers,
		TaskTimeout: cfg.Persistence.TaskTimeout,
	}, metricsCollector, logger)

	a.Pipeline = application.NewPipeline(application.PipelineDeps{
		Images: imagery.NewFetcher(imagery.Config{
			Timeout:    cfg.Imagery.HTTPTimeout,
			MaxRetries: cfg.Imagery.MaxRetries,
			MaxBytes:   cfg.Imagery.MaxImageBytes,
		}, store, logger),
		Preprocessor: preprocess.NewVipsPreprocessor(),
		Models:       a.Models,
		Engine:       a.Engine,
		Queue:        a.Queue,
		Orbit:        orbit.NewSGP4Locator(),
		Notifier: notify.NewHTTPNotifier(notify.Config{
			Timeout:    cfg.Callback.Timeout,
			MaxRetries: cfg.Callback.MaxRetries,
			UserAgent:  "supplychain-lens/" + a.Version,
		}, logger),
	}, application.PipelineConfig{
		ProcessingTimeout:     cfg.Pipeline.ProcessingTimeout,
		MaxConcurrent:         cfg.Pipeline.MaxConcurrentProcessing,
		ConfidenceThreshold:   cfg.Pipeline.ConfidenceThreshold,
		MaxDetectionsPerImage: cfg.Pipeline.MaxDetectionsPerImage,
		InputSize:             cfg.Pipeline.InputSize,
	}, metricsCollector, logger)

	a.Assessor = application.NewAssessmentService(a.Store, a.Models, a.Reference, logger)
	a.Analytics = application.NewAnalyticsService(a.Store, a.Engine, a.Cache, codec, application.CacheConfig{
		DefaultTTL: cfg.Cache.DefaultTTL,
		TrendsTTL:  cfg.Cache.TrendsTTL,
	}, metricsCollector, logger)
	a.Health = application.NewHealthService(a.Models, a.Store, a.Cache, a.Reference)

	a.TLS, err = tlsAdapter.NewManager(tlsAdapter.Config{
		Enabled:  cfg.TLS.Enabled,
		Domains:  cfg.TLS.Domains,
		Email:    cfg.TLS.Email,
		CacheDir: cfg.TLS.CacheDir,
		Staging:  cfg.TLS.Staging,
		DNS: tlsAdapter.DNSConfig{
			SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
			ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
			ClientID:          cfg.TLS.DNS.ClientID,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing TLS: %w", err)
	}

	opts := httpAdapter.Options{
		Version:   a.Version,
		Tracing:   a.Tracing.Enabled(),
		TLSConfig: a.TLS.TLSConfig(),
	}
	if a.Metrics != nil {
		opts.MetricsMiddleware = a.Metrics.Middleware
		if a.MetricsServer == nil {
			opts.MetricsHandler = a.Metrics.Handler()
			opts.MetricsPath = cfg.Metrics.Path
		}
	}

	var syncer httpAdapter.ReferenceSyncer
	if cfg.Reference.Dataset != "" {
		syncer = a.Sync
	}
	a.HTTPServer = httpAdapter.NewServer(cfg.Server, httpAdapter.Services{
		Processor: a.Pipeline,
		Assessor:  a.Assessor,
		Analytics: a.Analytics,
		Spatial:   a.Analytics,
		Models:    a.Models,
		Tasks:     a.Queue,
		Reference: a.Reference,
		Sync:      syncer,
		Health:    a.Health,
	}, opts, logger)

	// Initialize file watcher for hot-reload
	if cfg.Storage.Type == string(output.StorageTypeLocal) && cfg.Reference.Watch && cfg.Reference.Dataset != "" {
		w, err := watcher.New(watcher.Config{
			Paths:      []string{cfg.Storage.LocalPath},
			Extensions: output.ReferenceExtensions,
		}, a.handleFileEvent, logger)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			a.Watcher = w
		}
	}

	return nil
}

// Run loads models and reference data, then serves until ctx is canceled or
// an actor fails. Components are shut down before Run returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.Models.LoadAll(ctx); err != nil {
		a.Logger.Warn("model loading failed, service not ready", "error", err)
	}
	if err := a.Reference.Load(ctx); err != nil {
		a.Logger.Warn("reference dataset load failed, keeping built-in set", "error", err)
	}
	if a.TLS.Enabled() {
		if err := a.TLS.ManageCertificates(ctx); err != nil {
			return fmt.Errorf("managing certificates: %w", err)
		}
	}

	a.Queue.Start()

	var g run.Group

	runCtx, cancel := context.WithCancel(ctx)
	g.Add(func() error {
		<-runCtx.Done()
		return nil
	}, func(error) {
		cancel()
	})

	g.Add(a.HTTPServer.Start, func(error) {
		shutdownCtx, done := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer done()
		if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("HTTP server shutdown error", "error", err)
		}
	})

	if a.MetricsServer != nil {
		g.Add(a.MetricsServer.Start, func(error) {
			shutdownCtx, done := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
			defer done()
			if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error("metrics server shutdown error", "error", err)
			}
		})
	}

	if a.Config.Reference.Dataset != "" && a.Config.Reference.SyncInterval > 0 {
		syncCtx, stopSync := context.WithCancel(context.Background())
		g.Add(func() error {
			return a.Sync.Run(syncCtx)
		}, func(error) {
			stopSync()
		})
	}

	if a.Watcher != nil {
		watchCtx, stopWatch := context.WithCancel(context.Background())
		g.Add(func() error {
			return a.Watcher.Run(watchCtx)
		}, func(error) {
			stopWatch()
		})
	}

	err := g.Run()
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer done()
	return errors.Join(err, a.Shutdown(shutdownCtx))
}

// Shutdown drains background work and releases resources. Servers are
// stopped by Run.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	var errs []error
	if err := a.Pipeline.WaitCallbacks(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for callbacks: %w", err))
	}
	if err := a.Queue.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining persistence queue: %w", err))
	}
	if err := a.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing traces: %w", err))
	}
	errs = append(errs, a.close())
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// handleFileEvent reloads the reference dataset when its file changes.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	if !a.Reference.Matches(event.Path) {
		return nil
	}
	a.Logger.Info("reference file event", "path", event.Path, "operation", event.Operation.String())

	if event.Operation == watcher.OpDelete {
		a.Logger.Warn("reference dataset removed, keeping current set", "path", event.Path)
		return nil
	}
	return a.Reference.Load(ctx)
}

func (a *App) initCache(m output.MetricsCollector) error {
	switch a.Config.Cache.Type {
	case "redis":
		c := cache.NewRedisCache(cache.RedisConfig{
			Addr:     a.Config.Cache.Redis.Addr,
			Password: a.Config.Cache.Redis.Password,
			DB:       a.Config.Cache.Redis.DB,
		}, m)
		a.Cache = c
		a.closers = append(a.closers, c.Close)
	case "badger":
		c, err := cache.NewBadgerCache(cache.BadgerConfig{
			Path:       a.Config.Cache.Badger.Path,
			InMemory:   a.Config.Cache.Badger.InMemory,
			GCInterval: 10 * time.Minute,
		}, m, a.Logger)
		if err != nil {
			return err
		}
		a.Cache = c
		a.closers = append(a.closers, c.Close)
	case "", "none":
		a.Logger.Info("analysis cache disabled")
	default:
		return fmt.Errorf("unknown cache type: %s", a.Config.Cache.Type)
	}
	return nil
}

// initModels builds the model registry. A detector without an endpoint is
// registered as a null model that never reports anything.
func initModels(cfg *config.Config, logger *slog.Logger) *application.ModelRegistry {
	detector := func(name string, dc config.DetectorConfig) output.DetectionModel {
		if dc.Endpoint == "" {
			logger.Warn("no endpoint configured, detector disabled", "model", name)
			return models.NewNullDetector(name)
		}
		return models.NewRemoteDetector(models.DetectorConfig{
			Name:      name,
			Endpoint:  dc.Endpoint,
			Version:   dc.Version,
			Timeout:   dc.Timeout,
			InputSize: cfg.Pipeline.InputSize,
		})
	}

	var assessor output.RiskAssessorModel = models.NewBaselineAssessor()
	if cfg.Models.RiskAssessor.Type == "remote" {
		assessor = models.NewRemoteAssessor(models.AssessorConfig{
			Endpoint: cfg.Models.RiskAssessor.Endpoint,
			Timeout:  cfg.Models.RiskAssessor.Timeout,
		})
	}

	return application.NewModelRegistry(assessor, logger,
		detector(application.ModelDeforestation, cfg.Models.Deforestation),
		detector(application.ModelMining, cfg.Models.Mining),
	)
}

func newEngine(refs application.ReferenceProvider, logger *slog.Logger) *application.GeospatialEngine {
	seed := func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) } //nolint:gosec // estimates, not secrets
	return application.NewGeospatialEngine(refs,
		application.NewRandomLandCover(seed),
		application.NewLatitudeEnvironment(seed),
		logger,
	)
}

// NewEngine builds a standalone geospatial engine for offline commands. The
// configured reference dataset is loaded when present.
func NewEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application.GeospatialEngine, error) {
	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	registry, err := application.NewReferenceRegistry(store, reference.NewCodec(), cfg.Reference.Dataset, &output.NoOpMetrics{}, logger)
	if err != nil {
		return nil, err
	}
	if err := registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading reference dataset: %w", err)
	}
	return newEngine(registry, logger), nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(afero.NewOsFs(), cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:  cfg.HTTP.BaseURL,
			Timeout:  cfg.HTTP.Timeout,
			Username: cfg.HTTP.Username,
			Password: cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
