// Package server builds the application from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/api"
	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/catalog"
	"github.com/JakeFAU/shelfscan/internal/clock/system"
	"github.com/JakeFAU/shelfscan/internal/config"
	"github.com/JakeFAU/shelfscan/internal/enrich"
	"github.com/JakeFAU/shelfscan/internal/id/uuid"
	"github.com/JakeFAU/shelfscan/internal/ingest"
	"github.com/JakeFAU/shelfscan/internal/logging"
	"github.com/JakeFAU/shelfscan/internal/metrics"
	"github.com/JakeFAU/shelfscan/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/shelfscan/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/shelfscan/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/shelfscan/internal/storage/gcs"
	localstorage "github.com/JakeFAU/shelfscan/internal/storage/local"
	memorystorage "github.com/JakeFAU/shelfscan/internal/storage/memory"
	pgstore "github.com/JakeFAU/shelfscan/internal/storage/postgres"
	"github.com/JakeFAU/shelfscan/internal/telemetry"
	"github.com/JakeFAU/shelfscan/internal/vision"
)

// defaultTopic is used for in-process batch events when Pub/Sub is off.
const defaultTopic = "shelfscan-batches"

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	store          book.Store
	sweeper        *ingest.Sweeper
	gemini         *vision.Gemini
	gcsImages      *gcsstorage.ImageStore
	pubsub         *gcppublisher.Publisher
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("environment", cfg.App.Env),
	)

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{Environment: cfg.App.Env})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown
	metrics.Init()

	if err := app.build(ctx); err != nil {
		app.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	clock := system.New()

	primary, fallback, backfill := a.setupCatalogs()
	enricher := enrich.New(primary, fallback, a.logger)

	var err error
	a.store, err = a.setupStore(ctx, clock)
	if err != nil {
		return err
	}

	images, err := a.setupImages(ctx)
	if err != nil {
		return err
	}

	publisher, topic, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}

	extractor, err := a.setupVision(ctx)
	if err != nil {
		return err
	}

	orchestrator, err := ingest.NewOrchestrator(ingest.OrchestratorConfig{
		Store:     a.store,
		Enricher:  enricher,
		Images:    images,
		Publisher: publisher,
		Topic:     topic,
		Clock:     clock,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("orchestrator init failed: %w", err)
	}

	a.sweeper, err = ingest.NewSweeper(a.store, backfill, a.logger)
	if err != nil {
		return fmt.Errorf("sweeper init failed: %w", err)
	}

	a.apiServer, err = api.NewServer(api.Deps{
		Store:     a.store,
		Images:    images,
		Extractor: extractor,
		Ingester:  orchestrator,
		Sweeper:   a.sweeper,
		Names:     uuid.New(),
		Clock:     clock,
		Logger:    a.logger,
	}, a.cfg)
	if err != nil {
		return fmt.Errorf("api init failed: %w", err)
	}
	return nil
}

// setupCatalogs returns the primary and fallback providers sharing one
// per-host limiter, plus the uncached Google Books client for backfill
// sweeps, which must see upstream changes.
func (a *App) setupCatalogs() (primary, fallback book.CatalogProvider, backfill *catalog.GoogleBooks) {
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   a.cfg.Catalog.RateLimitRPS,
		Burst: a.cfg.Catalog.RateLimitBurst,
	})
	if a.cfg.Catalog.RateLimitRPS > 0 {
		a.logger.Info("catalog rate limiter enabled",
			zap.Float64("rps", a.cfg.Catalog.RateLimitRPS),
			zap.Int("burst", a.cfg.Catalog.RateLimitBurst),
		)
	}

	naver := catalog.NewNaver(catalog.NaverConfig{
		ClientID:     a.cfg.Naver.ClientID,
		ClientSecret: a.cfg.Naver.ClientSecret,
		BaseURL:      a.cfg.Naver.BaseURL,
		Timeout:      a.cfg.NaverTimeout(),
		Limiter:      limiter,
		Logger:       a.logger,
	})
	if !naver.Configured() {
		a.logger.Warn("Naver credentials missing, primary catalog disabled")
	}
	google := catalog.NewGoogleBooks(catalog.GoogleBooksConfig{
		APIKey:   a.cfg.GoogleBooks.APIKey,
		BaseURL:  a.cfg.GoogleBooks.BaseURL,
		Language: a.cfg.GoogleBooks.Language,
		Timeout:  a.cfg.GoogleBooksTimeout(),
		Retry: catalog.FixedRetryPolicy{
			MaxAttempts: a.cfg.GoogleBooks.MaxAttempts,
			Delay:       a.cfg.RetryDelay(),
		},
		Limiter: limiter,
		Logger:  a.logger,
	})

	primary, fallback = naver, google
	if ttl := a.cfg.CacheTTL(); ttl > 0 {
		primary = catalog.NewCached(primary, ttl)
		fallback = catalog.NewCached(fallback, ttl)
		a.logger.Info("catalog lookup cache enabled", zap.Duration("ttl", ttl))
	}
	return primary, fallback, google
}

func (a *App) setupStore(ctx context.Context, clock book.Clock) (book.Store, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("No DSN specified for database, using in-memory inventory")
		return memorystorage.NewInventoryStore(system.Truncated{Base: clock, Precision: time.Microsecond}), nil
	}
	store, err := pgstore.NewInventoryStore(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory store init failed: %w", err)
	}
	if a.cfg.DB.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("inventory schema init failed: %w", err)
		}
		a.logger.Info("inventory schema ensured")
	}
	a.logger.Info("inventory store initialized")
	return store, nil
}

func (a *App) setupImages(ctx context.Context) (book.ImageStore, error) {
	switch a.cfg.Upload.Backend {
	case "gcs":
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Upload.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs image store init failed: %w", err)
		}
		a.gcsImages = store
		a.logger.Info("using GCS image storage", zap.String("bucket", a.cfg.Upload.GCSBucket))
		return store, nil
	default:
		store, err := localstorage.New(localstorage.Config{Dir: a.cfg.Upload.Dir})
		if err != nil {
			return nil, fmt.Errorf("local image store init failed: %w", err)
		}
		a.logger.Info("using local image storage", zap.String("dir", a.cfg.Upload.Dir))
		return store, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (book.Publisher, string, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(0), defaultTopic, nil
	}
	pub, err := gcppublisher.Open(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("pubsub init failed: %w", err)
	}
	a.pubsub = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, a.cfg.PubSub.TopicName, nil
}

func (a *App) setupVision(ctx context.Context) (book.Extractor, error) {
	if a.cfg.Vision.APIKey == "" {
		a.logger.Warn("No vision API key configured, shelf photo uploads are disabled")
		return nil, nil
	}
	g, err := vision.NewGemini(ctx, vision.Config{
		APIKey:  a.cfg.Vision.APIKey,
		Model:   a.cfg.Vision.Model,
		Timeout: a.cfg.VisionTimeout(),
		Logger:  a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("vision init failed: %w", err)
	}
	a.gemini = g
	a.logger.Info("vision extractor initialized", zap.String("model", a.cfg.Vision.Model))
	return g, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Sweep runs one re-enrichment sweep outside the HTTP server.
func (a *App) Sweep(ctx context.Context) (ingest.SweepResult, error) {
	res, err := a.sweeper.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("re-enrichment sweep: %w", err)
	}
	return res, nil
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives. Callers still own Close.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases clients and flushes telemetry. It is safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub close failed", zap.Error(err))
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.logger.Warn("vision client close failed", zap.Error(err))
		}
	}
	if a.gcsImages != nil {
		if err := a.gcsImages.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}
